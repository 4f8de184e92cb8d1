package sh

import (
	"context"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/softuart/pkg/board"
	"github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/line"
)

// Sim is a board with its transmit line wired to its receive line and
// simulated buttons, stepped synchronously.
type Sim struct {
	Board    *board.Board
	Loop     *framework.Loop
	Wire     *line.Wire
	Switches map[int]*line.Switch

	events []board.Event
}

// NewSim creates a Sim with a switch for every mapped button.
func NewSim(conf board.Config) (*Sim, error) {
	s := &Sim{
		Wire:     line.NewWire(gpio.High),
		Switches: make(map[int]*line.Switch),
	}
	buttons := make(map[int]line.Reader)
	for _, id := range conf.Buttons.IDs() {
		sw := line.NewSwitch(conf.Debounce.ActiveLevel)
		s.Switches[id], buttons[id] = sw, sw
	}
	b, err := board.New(conf, s.Wire, s.Wire, buttons)
	if err != nil {
		return nil, err
	}
	s.Board = b
	s.Board.Subscribe(board.EventHandlerFunc(func(e board.Event) {
		s.events = append(s.events, e)
	}))
	s.Loop = framework.NewLoop().Add(b)
	return s, nil
}

// FrameTicks is the number of ticks covering a whole frame with margin.
func (s *Sim) FrameTicks() uint64 {
	conf := s.Board.Config()
	return uint64(11 * conf.UART.TicksPerBit())
}

// Run steps n ticks and returns the events emitted.
func (s *Sim) Run(n uint64) []board.Event {
	s.Loop.RunTicks(context.Background(), n)
	events := s.events
	s.events = nil
	return events
}

// Send transmits data byte by byte and runs until the last frame is
// received back.
func (s *Sim) Send(data []byte) ([]board.Event, error) {
	var events []board.Event
	for _, b := range data {
		for n := uint64(0); s.Board.TrySend(b) != nil; n++ {
			if n >= s.FrameTicks()*4 {
				return events, errors.Errorf("transmitter stalled sending 0x%02x", b)
			}
			events = append(events, s.Run(1)...)
		}
	}
	return append(events, s.Run(s.FrameTicks()*2)...), nil
}

func (s *Sim) switchOf(id int) (*line.Switch, error) {
	sw := s.Switches[id]
	if sw == nil {
		return nil, errors.Errorf("unknown button %d", id)
	}
	return sw, nil
}

// Press holds the button for ticks and releases it. The events include
// a frame transmitted for the button.
func (s *Sim) Press(id int, ticks uint64) ([]board.Event, error) {
	sw, err := s.switchOf(id)
	if err != nil {
		return nil, err
	}
	sw.Set(true)
	events := s.Run(ticks)
	sw.Set(false)
	return append(events, s.Run(s.FrameTicks()*2)...), nil
}

// Bounce replays contact states on the button, then keeps it released.
func (s *Sim) Bounce(id int, closed []bool) ([]board.Event, error) {
	sw, err := s.switchOf(id)
	if err != nil {
		return nil, err
	}
	sw.Set(false)
	sw.Bounce(closed...)
	conf := s.Board.Config()
	return s.Run(uint64(len(closed)+conf.Debounce.Ticks+1) + s.FrameTicks()*2), nil
}

// Reset resets the board.
func (s *Sim) Reset() {
	s.Board.Reset()
	s.Run(1)
}

// ParseBounce parses a contact pattern like "1101".
func ParseBounce(pattern string) ([]bool, error) {
	closed := make([]bool, 0, len(pattern))
	for _, c := range pattern {
		switch c {
		case '1':
			closed = append(closed, true)
		case '0':
			closed = append(closed, false)
		default:
			return nil, errors.Errorf("invalid contact %q in pattern, expect 0 or 1", c)
		}
	}
	return closed, nil
}
