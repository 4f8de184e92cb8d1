// Package debounce turns noisy switch levels into clean press events.
package debounce

import (
	"periph.io/x/conn/v3/gpio"
)

// State is the state of a Debouncer.
type State int

// Debouncer states
const (
	Idle State = iota
	Debouncing
	Held
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Held:
		return "held"
	}
	return "invalid"
}

// Output is the result of one Debouncer step.
type Output struct {
	// Held follows the debounced level.
	Held bool
	// Pressed is asserted for exactly one tick per press.
	Pressed bool
}

// Debouncer filters one input. The input is checked again Ticks ticks after
// it first goes active, and a press is reported if it is still active then.
// A release re-arms the Debouncer after one inactive tick.
type Debouncer struct {
	ticks  int
	active gpio.Level
	regs   regs
}

type regs struct {
	state State
	count int
}

// New creates a Debouncer.
func New(conf Config) *Debouncer {
	return &Debouncer{ticks: conf.Ticks, active: conf.ActiveLevel}
}

// Step consumes one raw sample.
func (d *Debouncer) Step(raw gpio.Level) (out Output) {
	d.regs, out = d.regs.next(d.ticks, d.active, raw)
	return
}

// State returns the current state.
func (d *Debouncer) State() State {
	return d.regs.state
}

// Held indicates the input is currently held.
func (d *Debouncer) Held() bool {
	return d.regs.state == Held
}

// Reset returns to Idle and clears the counter.
func (d *Debouncer) Reset() {
	d.regs = regs{}
}

func (r regs) next(ticks int, active, raw gpio.Level) (regs, Output) {
	var out Output
	switch r.state {
	case Idle:
		if raw == active {
			r.state, r.count = Debouncing, 0
		}
	case Debouncing:
		if r.count++; r.count < ticks {
			break
		}
		if raw == active {
			r.state = Held
			out.Held, out.Pressed = true, true
		} else {
			r.state = Idle
		}
		r.count = 0
	case Held:
		if raw == active {
			out.Held = true
		} else {
			r.state = Idle
		}
	}
	return r, out
}
