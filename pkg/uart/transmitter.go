package uart

import (
	"periph.io/x/conn/v3/gpio"
)

// TxState is the state of the Transmitter.
type TxState int

// Transmitter states
const (
	TxIdle TxState = iota
	TxStartBit
	TxDataBits
	TxStopBit
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxStartBit:
		return "start"
	case TxDataBits:
		return "data"
	case TxStopBit:
		return "stop"
	}
	return "invalid"
}

// TxOutput is the result of one Transmitter step.
type TxOutput struct {
	// Line is the level to drive for this bit period.
	Line gpio.Level
	// Busy is set from the tick a frame is accepted through its stop bit.
	Busy bool
}

// Transmitter serializes bytes onto the line, one bit per Step.
type Transmitter struct {
	regs txRegs
}

type txRegs struct {
	state TxState
	bit   int
	shift byte
}

// NewTransmitter creates an idle Transmitter.
func NewTransmitter() *Transmitter {
	return &Transmitter{}
}

// Step advances one bit period. When send is set and the Transmitter is
// idle, data is latched for transmission; otherwise the request is ignored.
func (t *Transmitter) Step(data byte, send bool) (out TxOutput) {
	t.regs, out = t.regs.next(data, send)
	return
}

// State returns the current state.
func (t *Transmitter) State() TxState {
	return t.regs.state
}

// Busy reports whether a send request on the next Step would be ignored.
func (t *Transmitter) Busy() bool {
	return t.regs.state != TxIdle
}

// Reset returns the Transmitter to idle and clears the shift register.
func (t *Transmitter) Reset() {
	t.regs = txRegs{}
}

func (r txRegs) next(data byte, send bool) (txRegs, TxOutput) {
	out := TxOutput{Line: gpio.High}
	switch r.state {
	case TxIdle:
		if send {
			r.shift, r.state = data, TxStartBit
			out.Busy = true
		}
	case TxStartBit:
		out.Line, out.Busy = gpio.Low, true
		r.state, r.bit = TxDataBits, 0
	case TxDataBits:
		out.Line, out.Busy = gpio.Level(r.shift&1 != 0), true
		r.shift >>= 1
		if r.bit == 7 {
			r.state, r.bit = TxStopBit, 0
		} else {
			r.bit++
		}
	case TxStopBit:
		out.Busy = true
		r.state = TxIdle
	}
	return r, out
}
