package uart

import (
	"periph.io/x/conn/v3/gpio"
)

// RxState is the state of the Receiver.
type RxState int

// Receiver states
const (
	// RxIdle waits for the line to fall.
	RxIdle RxState = iota
	// RxStart confirms the start bit at its midpoint.
	RxStart
	// RxData samples the 8 data bits.
	RxData
	// RxStop checks the stop bit at its midpoint and waits out the rest of it.
	RxStop
)

func (s RxState) String() string {
	switch s {
	case RxIdle:
		return "idle"
	case RxStart:
		return "start"
	case RxData:
		return "data"
	case RxStop:
		return "stop"
	}
	return "invalid"
}

// RxOutput is the result of one Receiver step.
type RxOutput struct {
	// Frame is the received byte, valid only when Ready is set.
	Frame byte
	// Ready is asserted for exactly one tick per accepted frame.
	Ready bool
	// Busy is set on every tick that starts or ends outside Idle. It stays
	// set through the last tick of the stop bit, and is also set on the tick
	// a start glitch sends the Receiver back to Idle.
	Busy bool
}

// Receiver recovers 8N1 frames from an oversampled line.
type Receiver struct {
	factor int
	regs   rxRegs
}

type rxRegs struct {
	state  RxState
	sample int // ticks elapsed in the current bit period
	bit    int // completed data bits
	shift  byte

	// stop bit already checked, counting out its second half.
	stopped bool
}

// NewReceiver creates a Receiver stepped at factor samples per bit.
// factor must be even and at least 2.
func NewReceiver(factor int) *Receiver {
	if factor < 2 || factor%2 != 0 {
		panic("uart: oversample factor must be even and at least 2")
	}
	return &Receiver{factor: factor}
}

// Step consumes one line sample.
func (r *Receiver) Step(sample gpio.Level) (out RxOutput) {
	r.regs, out = r.regs.next(r.factor, sample)
	return
}

// State returns the current state.
func (r *Receiver) State() RxState {
	return r.regs.state
}

// Busy indicates a frame is in progress.
func (r *Receiver) Busy() bool {
	return r.regs.state != RxIdle
}

// Reset returns the Receiver to idle and clears all registers.
func (r *Receiver) Reset() {
	r.regs = rxRegs{}
}

func (r rxRegs) next(factor int, in gpio.Level) (rxRegs, RxOutput) {
	var out RxOutput
	prev := r.state
	switch r.state {
	case RxIdle:
		if in == gpio.Low {
			r.state, r.sample = RxStart, 0
		}
	case RxStart:
		if r.sample != factor/2-1 {
			r.sample++
			break
		}
		// from here on the counter wraps at the middle of each bit.
		r.sample = 0
		if in == gpio.Low {
			r.state, r.bit = RxData, 0
		} else {
			r.state = RxIdle
		}
	case RxData:
		if r.sample != factor-1 {
			r.sample++
			break
		}
		r.sample = 0
		r.shift >>= 1
		if in == gpio.High {
			r.shift |= 0x80
		}
		if r.bit == 7 {
			r.state, r.bit = RxStop, 0
		} else {
			r.bit++
		}
	case RxStop:
		switch {
		case r.stopped, r.sample != factor-1:
			r.sample++
		default:
			if in == gpio.High {
				out.Frame, out.Ready = r.shift, true
			}
			r.stopped, r.sample = true, 0
		}
		if r.stopped && r.sample == factor/2-1 {
			r.state, r.sample, r.stopped = RxIdle, 0, false
		}
	}
	out.Busy = prev != RxIdle || r.state != RxIdle
	return r, out
}
