package mqtt

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/board"
	"github.com/robotalks/softuart/pkg/line"
	"github.com/robotalks/softuart/pkg/msgs"
)

// Topics relative to the board ID.
const (
	TopicRx      = "rx"
	TopicTx      = "tx"
	TopicButton  = "button"
	TopicMeta    = "meta"
	TopicSend    = "send"
	TopicButtons = "buttons"
)

// Board is the part of board.Board used by the Reporter.
type Board interface {
	Send(ctx context.Context, data byte) error
	Subscribe(board.EventHandler) (cancel func())
}

// Meta is published retained on <id>/meta.
type Meta struct {
	ID               string         `json:"id"`
	BitRate          int            `json:"bit_rate"`
	OversampleFactor int            `json:"oversample"`
	TickFrequency    int            `json:"tick_freq"`
	Loopback         bool           `json:"loopback"`
	Buttons          map[int]string `json:"buttons,omitempty"`
}

// MetaFromConfig describes a board.
func MetaFromConfig(id string, conf board.Config) Meta {
	m := Meta{
		ID:               id,
		BitRate:          conf.UART.BitRate,
		OversampleFactor: conf.UART.OversampleFactor,
		TickFrequency:    conf.UART.TickFrequency,
		Loopback:         conf.Loopback,
	}
	if len(conf.Buttons) > 0 {
		m.Buttons = make(map[int]string)
		for id, b := range conf.Buttons {
			m.Buttons[id] = string([]byte{b})
		}
	}
	return m
}

// DefaultEventBuffer is the number of events buffered before dropping.
const DefaultEventBuffer = 64

// Reporter publishes board events and forwards commands to the board.
type Reporter struct {
	Queue *Queue
	Board Board
	Meta  Meta
	// Switches are the simulated buttons driven by <id>/buttons.
	Switches map[int]*line.Switch

	events chan board.Event
	sends  chan []byte
}

// NewReporter creates a Reporter.
func NewReporter(q *Queue, b Board, meta Meta) *Reporter {
	return &Reporter{
		Queue:    q,
		Board:    b,
		Meta:     meta,
		Switches: make(map[int]*line.Switch),
		events:   make(chan board.Event, DefaultEventBuffer),
		sends:    make(chan []byte, 16),
	}
}

// Name implements framework.Named.
func (r *Reporter) Name() string {
	return "telemetry"
}

func (r *Reporter) topic(name string) string {
	return r.Meta.ID + "/" + name
}

// HandleEvent implements board.EventHandler.
func (r *Reporter) HandleEvent(e board.Event) {
	select {
	case r.events <- e:
	default:
		glog.Warningf("telemetry behind, dropped %s", e)
	}
}

// Run implements framework.Runnable.
func (r *Reporter) Run(ctx context.Context) error {
	r.Queue.Sub(r.topic(TopicSend), r.handleSend)
	r.Queue.Sub(r.topic(TopicButtons), r.handleButtons)
	r.Queue.OnConnect = func(*Queue) { r.publishMeta() }
	token := r.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return errors.Wrap(err, "telemetry connect")
	}
	defer r.Queue.Close()

	cancel := r.Board.Subscribe(r)
	defer cancel()

	go r.sendLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-r.events:
			r.publish(e)
		}
	}
}

func (r *Reporter) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-r.sends:
			for _, b := range data {
				if err := r.Board.Send(ctx, b); err != nil {
					return
				}
			}
		}
	}
}

func (r *Reporter) publish(e board.Event) {
	var topic string
	var m proto.Message
	switch e.Kind {
	case board.FrameReceived:
		topic, m = TopicRx, &msgs.FrameEvent{Tick: e.Tick, Data: uint32(e.Data), Direction: msgs.DirectionRx}
	case board.FrameSent:
		topic, m = TopicTx, &msgs.FrameEvent{Tick: e.Tick, Data: uint32(e.Data), Direction: msgs.DirectionTx}
	case board.ButtonPressed:
		topic, m = TopicButton, &msgs.ButtonEvent{Tick: e.Tick, Button: int32(e.Button)}
	default:
		return
	}
	payload, err := msgs.Encode(m)
	if err != nil {
		glog.Errorf("telemetry %s: %v", topic, err)
		return
	}
	r.Queue.Pub(r.topic(topic), payload)
}

func (r *Reporter) publishMeta() {
	payload, err := json.Marshal(&r.Meta)
	if err != nil {
		glog.Errorf("telemetry meta: %v", err)
		return
	}
	r.Queue.PubWith(r.topic(TopicMeta), payload, 1, true)
}

func (r *Reporter) handleSend(topic string, payload []byte) {
	var req msgs.SendRequest
	if err := msgs.Decode(payload, &req); err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	if len(req.Data) == 0 {
		return
	}
	select {
	case r.sends <- req.Data:
	default:
		glog.Warningf("%s: send queue full, dropped %d bytes", topic, len(req.Data))
	}
}

func (r *Reporter) handleButtons(topic string, payload []byte) {
	var lvl msgs.ButtonLevel
	if err := msgs.Decode(payload, &lvl); err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	sw := r.Switches[int(lvl.Button)]
	if sw == nil {
		glog.Warningf("%s: unknown button %d", topic, lvl.Button)
		return
	}
	sw.Set(lvl.Active)
}
