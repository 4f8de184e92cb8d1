package debounce

import (
	"periph.io/x/conn/v3/gpio"
)

// Bank debounces a set of inputs keyed by ID with shared parameters.
type Bank[ID comparable] struct {
	conf       Config
	ids        []ID
	debouncers map[ID]*Debouncer
}

// NewBank creates a Bank with the inputs ids.
func NewBank[ID comparable](conf Config, ids ...ID) *Bank[ID] {
	b := &Bank[ID]{conf: conf, debouncers: make(map[ID]*Debouncer)}
	for _, id := range ids {
		b.Add(id)
	}
	return b
}

// Add registers an input. Adding an existing ID is a no-op.
func (b *Bank[ID]) Add(id ID) {
	if _, ok := b.debouncers[id]; ok {
		return
	}
	b.ids = append(b.ids, id)
	b.debouncers[id] = New(b.conf)
}

// IDs returns the inputs in registration order.
func (b *Bank[ID]) IDs() []ID {
	return append([]ID(nil), b.ids...)
}

// Step advances every input by one tick. sample is called once per input
// in registration order. The inputs which are pressed on this tick are
// returned.
func (b *Bank[ID]) Step(sample func(ID) gpio.Level) (pressed []ID) {
	for _, id := range b.ids {
		if b.debouncers[id].Step(sample(id)).Pressed {
			pressed = append(pressed, id)
		}
	}
	return
}

// Held indicates the input is held. Unknown inputs are never held.
func (b *Bank[ID]) Held(id ID) bool {
	if d := b.debouncers[id]; d != nil {
		return d.Held()
	}
	return false
}

// State returns the state of an input.
func (b *Bank[ID]) State(id ID) State {
	if d := b.debouncers[id]; d != nil {
		return d.State()
	}
	return Idle
}

// Reset resets all inputs.
func (b *Bank[ID]) Reset() {
	for _, d := range b.debouncers {
		d.Reset()
	}
}
