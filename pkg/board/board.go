// Package board coordinates the UART and the buttons on a tick loop.
//
// A Board registers itself on a framework.Loop. Every base tick inputs are
// sampled at PrLvSense, the state machines advance at PrLvControl, the
// transmit line is driven at PrLvActuate and events are dispatched at
// PrLvPostProc. The receiver is stepped every SampleDivider ticks and the
// transmitter every TicksPerBit ticks; the debouncers run on every tick.
package board

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/softuart/pkg/debounce"
	"github.com/robotalks/softuart/pkg/display"
	"github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/line"
	"github.com/robotalks/softuart/pkg/uart"
)

// Status is a snapshot of the board taken at the end of a tick.
type Status struct {
	Tick     uint64
	RxState  uart.RxState
	RxBusy   bool
	TxState  uart.TxState
	TxBusy   bool
	Held     []int
	Display  string
	Glyphs   [3]display.Segments
	Received uint64
	Sent     uint64
	Pressed  uint64
	Dropped  uint64
}

// Board is the coordinator.
type Board struct {
	conf Config

	rxLine  line.Reader
	txLine  line.Writer
	buttons map[int]line.Reader
	ids     []int

	// rxLine reads back txLine, every received frame is our own.
	selfWired bool

	rx        *uart.Receiver
	tx        *uart.Transmitter
	bank      *debounce.Bank[int]
	sampleDiv *framework.Divider
	bitDiv    *framework.Divider
	display   display.Display

	rxDue     bool
	rxSample  gpio.Level
	btnSample map[int]gpio.Level
	inflight  byte
	counters  Status
	events    []Event

	// status is stale beyond its Tick.
	dirty bool

	// pending holds the byte produced by the board itself, which is
	// transmitted before anything from outgoing.
	pending  *framework.Slot[byte]
	outgoing *framework.Slot[byte]
	resetReq atomic.Bool
	loopback atomic.Bool

	handlersLock sync.Mutex
	handlers     map[int]EventHandler
	nextHandler  int

	statusLock sync.RWMutex
	status     Status
}

// New creates a Board. rxLine is sampled by the receiver, txLine is
// driven by the transmitter and buttons are the raw switch inputs.
func New(conf Config, rxLine line.Reader, txLine line.Writer, buttons map[int]line.Reader) (*Board, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	b := &Board{
		conf:      conf,
		rxLine:    rxLine,
		txLine:    txLine,
		selfWired: line.Same(rxLine, txLine),
		buttons:   make(map[int]line.Reader),
		rx:        uart.NewReceiver(conf.UART.OversampleFactor),
		tx:        uart.NewTransmitter(),
		bank:      debounce.NewBank[int](conf.Debounce),
		sampleDiv: framework.NewDivider(uint64(conf.UART.SampleDivider())),
		bitDiv:    framework.NewDivider(uint64(conf.UART.TicksPerBit())),
		rxSample:  gpio.High,
		btnSample: make(map[int]gpio.Level),
		pending:   framework.NewSlot[byte](),
		outgoing:  framework.NewSlot[byte](),
		handlers:  make(map[int]EventHandler),
	}
	ids := make([]int, 0, len(buttons))
	for id := range buttons {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	b.ids = ids
	for _, id := range ids {
		b.buttons[id] = buttons[id]
		b.btnSample[id] = !conf.Debounce.ActiveLevel
		b.bank.Add(id)
	}
	b.SetLoopback(conf.Loopback)
	b.status = b.snapshot(0)
	return b, nil
}

// Config returns the board config.
func (b *Board) Config() Config {
	conf := b.conf
	conf.Loopback = b.loopback.Load()
	return conf
}

// SetLoopback enables or disables re-transmitting received frames.
// A board receiving its own transmit line never echoes, otherwise each
// echo would be received and echoed again.
func (b *Board) SetLoopback(en bool) {
	if en && b.selfWired {
		glog.Warning("rx reads back tx, received frames are not echoed")
	}
	b.loopback.Store(en)
}

// AddToLoop implements framework.LoopAdder.
func (b *Board) AddToLoop(l *framework.Loop) {
	l.AddController(framework.PrLvSense, framework.ControlFunc(b.sense))
	l.AddController(framework.PrLvControl, framework.ControlFunc(b.control))
	l.AddController(framework.PrLvActuate, framework.ControlFunc(b.actuate))
	l.AddController(framework.PrLvPostProc, framework.ControlFunc(b.postProc))
}

// Send queues a byte for transmission, blocking until the single slot
// accepts it or ctx is done.
func (b *Board) Send(ctx context.Context, data byte) error {
	return b.outgoing.Put(ctx, data)
}

// TrySend queues a byte without blocking. framework.ErrSlotFull is
// returned if a byte is already waiting.
func (b *Board) TrySend(data byte) error {
	return b.outgoing.Offer(data)
}

// Subscribe registers an EventHandler. The returned func unregisters it.
func (b *Board) Subscribe(h EventHandler) (cancel func()) {
	b.handlersLock.Lock()
	id := b.nextHandler
	b.nextHandler++
	b.handlers[id] = h
	b.handlersLock.Unlock()
	return func() {
		b.handlersLock.Lock()
		delete(b.handlers, id)
		b.handlersLock.Unlock()
	}
}

// Status returns the snapshot taken at the end of the last tick.
func (b *Board) Status() Status {
	b.statusLock.RLock()
	defer b.statusLock.RUnlock()
	s := b.status
	s.Held = append([]int(nil), s.Held...)
	return s
}

// Reset requests all state machines, counters, slots and the display to
// be cleared. It takes effect at the beginning of the next tick.
func (b *Board) Reset() {
	b.resetReq.Store(true)
}

func (b *Board) reset() {
	b.rx.Reset()
	b.tx.Reset()
	b.bank.Reset()
	b.sampleDiv.Reset()
	b.bitDiv.Reset()
	b.display.Clear()
	b.pending.Clear()
	b.outgoing.Clear()
	b.rxDue, b.rxSample = false, gpio.High
	b.counters = Status{}
	b.events = nil
	b.dirty = true
	glog.Info("board reset")
}

func (b *Board) sense(ctx framework.ControlContext) error {
	if b.resetReq.Swap(false) {
		b.reset()
	}
	if b.rxDue = b.sampleDiv.Tick(); b.rxDue {
		b.rxSample = b.rxLine.Read()
	}
	for id, r := range b.buttons {
		b.btnSample[id] = r.Read()
	}
	return nil
}

func (b *Board) control(ctx framework.ControlContext) error {
	if b.rxDue {
		prev := b.rx.State()
		out := b.rx.Step(b.rxSample)
		if b.rx.State() != prev {
			b.dirty = true
		}
		if out.Ready {
			b.counters.Received++
			b.display.Show(out.Frame)
			b.emit(Event{Kind: FrameReceived, Tick: ctx.Tick(), Data: out.Frame})
			glog.V(2).Infof("received 0x%02x at tick %d", out.Frame, ctx.Tick())
			if b.loopback.Load() && !b.selfWired {
				b.enqueue(out.Frame)
			}
		}
	}
	for _, id := range b.bank.Step(b.sampleButton) {
		b.counters.Pressed++
		b.emit(Event{Kind: ButtonPressed, Tick: ctx.Tick(), Button: id})
		glog.V(1).Infof("button %d pressed at tick %d", id, ctx.Tick())
		if data, ok := b.conf.Buttons[id]; ok {
			b.enqueue(data)
		}
	}
	return nil
}

func (b *Board) sampleButton(id int) gpio.Level {
	return b.btnSample[id]
}

func (b *Board) enqueue(data byte) {
	if err := b.pending.Offer(data); err != nil {
		b.counters.Dropped++
		b.dirty = true
		glog.Warningf("transmit pending, dropped 0x%02x", data)
	}
}

func (b *Board) actuate(ctx framework.ControlContext) error {
	if !b.bitDiv.Tick() {
		return nil
	}
	var data byte
	var send bool
	if !b.tx.Busy() {
		if data, send = b.pending.Take(); !send {
			data, send = b.outgoing.Take()
		}
	}
	prev := b.tx.State()
	out := b.tx.Step(data, send)
	if b.tx.State() != prev {
		b.dirty = true
	}
	switch {
	case prev == uart.TxIdle && send:
		b.inflight = data
	case prev == uart.TxStopBit:
		b.counters.Sent++
		b.emit(Event{Kind: FrameSent, Tick: ctx.Tick(), Data: b.inflight})
		glog.V(2).Infof("sent 0x%02x at tick %d", b.inflight, ctx.Tick())
	}
	return b.txLine.Out(out.Line)
}

func (b *Board) postProc(ctx framework.ControlContext) error {
	if b.dirty || b.heldChanged() {
		s := b.snapshot(ctx.Tick())
		b.statusLock.Lock()
		b.status = s
		b.statusLock.Unlock()
		b.dirty = false
	} else {
		b.statusLock.Lock()
		b.status.Tick = ctx.Tick()
		b.statusLock.Unlock()
	}

	if len(b.events) == 0 {
		return nil
	}
	events := b.events
	b.events = nil
	b.handlersLock.Lock()
	handlers := make([]EventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.handlersLock.Unlock()
	for _, e := range events {
		for _, h := range handlers {
			h.HandleEvent(e)
		}
	}
	return nil
}

func (b *Board) emit(e Event) {
	b.events = append(b.events, e)
	b.dirty = true
}

// heldChanged compares the held buttons with the last snapshot. Only the
// loop goroutine writes status, so it is read without the lock.
func (b *Board) heldChanged() bool {
	n := 0
	for _, id := range b.ids {
		if !b.bank.Held(id) {
			continue
		}
		if n >= len(b.status.Held) || b.status.Held[n] != id {
			return true
		}
		n++
	}
	return n != len(b.status.Held)
}

func (b *Board) snapshot(tick uint64) Status {
	s := b.counters
	s.Tick = tick
	s.RxState, s.RxBusy = b.rx.State(), b.rx.Busy()
	s.TxState, s.TxBusy = b.tx.State(), b.tx.Busy()
	s.Display = b.display.String()
	s.Glyphs = b.display.Glyphs()
	for _, id := range b.ids {
		if b.bank.Held(id) {
			s.Held = append(s.Held, id)
		}
	}
	return s
}
