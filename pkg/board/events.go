package board

import (
	"fmt"
)

// EventKind identifies an Event.
type EventKind int

// Event kinds.
const (
	FrameReceived EventKind = iota
	FrameSent
	ButtonPressed
)

func (k EventKind) String() string {
	switch k {
	case FrameReceived:
		return "FrameReceived"
	case FrameSent:
		return "FrameSent"
	case ButtonPressed:
		return "ButtonPressed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted by the board at the end of a tick.
type Event struct {
	Kind EventKind
	Tick uint64
	// Data is the frame for FrameReceived and FrameSent.
	Data byte
	// Button is the ID for ButtonPressed.
	Button int
}

func (e Event) String() string {
	if e.Kind == ButtonPressed {
		return fmt.Sprintf("%s[%d] button=%d", e.Kind, e.Tick, e.Button)
	}
	return fmt.Sprintf("%s[%d] data=0x%02x", e.Kind, e.Tick, e.Data)
}

// EventHandler receives board events on the tick goroutine.
// It must not block.
type EventHandler interface {
	HandleEvent(Event)
}

// EventHandlerFunc is the func form of EventHandler.
type EventHandlerFunc func(Event)

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(e Event) {
	f(e)
}
