// Package line provides digital line endpoints for the tick domain.
//
// Reader and Writer are satisfied by periph.io gpio pins, so a board can
// be wired to real hardware or to the in-memory Wire and Switch.
package line

import (
	"reflect"
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
)

// Reader samples a line.
type Reader interface {
	Read() gpio.Level
}

// Writer drives a line.
type Writer interface {
	Out(l gpio.Level) error
}

// Same reports whether r and w are the same line, so whatever w drives r
// reads back.
func Same(r Reader, w Writer) bool {
	if r == nil || w == nil {
		return false
	}
	if t := reflect.TypeOf(r); t != reflect.TypeOf(w) || !t.Comparable() {
		return false
	}
	return any(r) == any(w)
}

// Wire is an in-memory line. Whatever is driven with Out is read back.
type Wire struct {
	high atomic.Bool
}

// NewWire creates a Wire at level l.
func NewWire(l gpio.Level) *Wire {
	w := &Wire{}
	w.high.Store(bool(l))
	return w
}

// Read implements Reader.
func (w *Wire) Read() gpio.Level {
	return gpio.Level(w.high.Load())
}

// Out implements Writer.
func (w *Wire) Out(l gpio.Level) error {
	w.high.Store(bool(l))
	return nil
}

// Switch simulates a push button. Scripted levels queued by Bounce are
// returned one per Read before the steady level.
type Switch struct {
	active gpio.Level

	lock   sync.Mutex
	level  gpio.Level
	script []gpio.Level
}

// NewSwitch creates a released Switch pressed at the active level.
func NewSwitch(active gpio.Level) *Switch {
	return &Switch{active: active, level: !active}
}

// Set presses or releases the switch.
func (s *Switch) Set(pressed bool) {
	s.lock.Lock()
	if pressed {
		s.level = s.active
	} else {
		s.level = !s.active
	}
	s.lock.Unlock()
}

// Pressed indicates the steady level is active.
func (s *Switch) Pressed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.level == s.active
}

// Bounce queues a sequence of contact states, true meaning closed.
func (s *Switch) Bounce(closed ...bool) {
	s.lock.Lock()
	for _, c := range closed {
		if c {
			s.script = append(s.script, s.active)
		} else {
			s.script = append(s.script, !s.active)
		}
	}
	s.lock.Unlock()
}

// Read implements Reader.
func (s *Switch) Read() gpio.Level {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.script) > 0 {
		l := s.script[0]
		s.script = s.script[1:]
		return l
	}
	return s.level
}
