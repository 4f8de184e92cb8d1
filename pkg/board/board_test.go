package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/softuart/pkg/debounce"
	"github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/line"
	"github.com/robotalks/softuart/pkg/uart"
)

// 16 ticks per bit, a receiver sample every 2 ticks.
func testConfig() Config {
	return Config{
		UART:     uart.Config{TickFrequency: 16, BitRate: 1, OversampleFactor: 8},
		Debounce: debounce.Config{Ticks: 4, ActiveLevel: gpio.Low},
		Buttons:  ButtonMap{},
	}
}

type recorder struct {
	events []Event
}

func (r *recorder) HandleEvent(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) data(kind EventKind) (frames []byte) {
	for _, e := range r.events {
		if e.Kind == kind {
			frames = append(frames, e.Data)
		}
	}
	return
}

func (r *recorder) buttons() (ids []int, ticks []uint64) {
	for _, e := range r.events {
		if e.Kind == ButtonPressed {
			ids = append(ids, e.Button)
			ticks = append(ticks, e.Tick)
		}
	}
	return
}

func newWiredBoard(t *testing.T, conf Config, buttons map[int]line.Reader) (*Board, *recorder, *framework.Loop) {
	wire := line.NewWire(gpio.High)
	b, err := New(conf, wire, wire, buttons)
	require.NoError(t, err)
	rec := &recorder{}
	b.Subscribe(rec)
	loop := framework.NewLoop().Add(b)
	return b, rec, loop
}

func runTicks(t *testing.T, loop *framework.Loop, n uint64) {
	require.NoError(t, loop.RunTicks(context.Background(), n))
}

func TestBoardSendReceive(t *testing.T) {
	b, rec, loop := newWiredBoard(t, testConfig(), nil)
	require.NoError(t, b.TrySend(0xb2))
	runTicks(t, loop, 400)

	require.Equal(t, []byte{0xb2}, rec.data(FrameSent))
	require.Equal(t, []byte{0xb2}, rec.data(FrameReceived))
	for _, e := range rec.events {
		switch e.Kind {
		case FrameSent:
			require.Equal(t, uint64(160), e.Tick)
		case FrameReceived:
			require.Equal(t, uint64(170), e.Tick)
		}
	}

	s := b.Status()
	require.Equal(t, uint64(399), s.Tick)
	require.Equal(t, "178", s.Display)
	require.Equal(t, uint64(1), s.Received)
	require.Equal(t, uint64(1), s.Sent)
	require.Equal(t, uart.RxIdle, s.RxState)
	require.Equal(t, uart.TxIdle, s.TxState)
	require.False(t, s.RxBusy)
	require.False(t, s.TxBusy)
}

func TestBoardTxIdleHigh(t *testing.T) {
	wire := line.NewWire(gpio.Low)
	b, err := New(testConfig(), wire, wire, nil)
	require.NoError(t, err)
	loop := framework.NewLoop().Add(b)
	loop.Step(context.Background())
	require.Equal(t, gpio.High, wire.Read())
}

func TestBoardLoopback(t *testing.T) {
	toB, toA := line.NewWire(gpio.High), line.NewWire(gpio.High)
	a, err := New(testConfig(), toA, toB, nil)
	require.NoError(t, err)
	confB := testConfig()
	confB.Loopback = true
	b, err := New(confB, toB, toA, nil)
	require.NoError(t, err)
	recA, recB := &recorder{}, &recorder{}
	a.Subscribe(recA)
	b.Subscribe(recB)
	loop := framework.NewLoop().Add(a, b)

	require.NoError(t, a.TrySend(0x41))
	runTicks(t, loop, 800)

	require.Equal(t, []byte{0x41}, recB.data(FrameReceived))
	require.Equal(t, []byte{0x41}, recB.data(FrameSent))
	require.Equal(t, []byte{0x41}, recA.data(FrameReceived))
	require.Equal(t, "065", a.Status().Display)
	require.Equal(t, "065", b.Status().Display)
}

func TestBoardButtonSendsByte(t *testing.T) {
	conf := testConfig()
	conf.Buttons[1] = 0x31
	sw := line.NewSwitch(gpio.Low)
	b, rec, loop := newWiredBoard(t, conf, map[int]line.Reader{1: sw})

	sw.Set(true)
	runTicks(t, loop, 4)
	require.Empty(t, b.Status().Held)
	runTicks(t, loop, 1)
	ids, ticks := rec.buttons()
	require.Equal(t, []int{1}, ids)
	require.Equal(t, []uint64{4}, ticks)
	require.Equal(t, []int{1}, b.Status().Held)

	runTicks(t, loop, 400)
	require.Equal(t, []byte{0x31}, rec.data(FrameSent))
	require.Equal(t, []byte{0x31}, rec.data(FrameReceived))

	sw.Set(false)
	runTicks(t, loop, 2)
	s := b.Status()
	require.Empty(t, s.Held)
	require.Equal(t, uint64(1), s.Pressed)
}

func TestBoardButtonBounceRejected(t *testing.T) {
	conf := testConfig()
	conf.Buttons[1] = 0x31
	sw := line.NewSwitch(gpio.Low)
	b, rec, loop := newWiredBoard(t, conf, map[int]line.Reader{1: sw})

	sw.Bounce(true, false, true, true, false, false)
	runTicks(t, loop, 100)
	ids, _ := rec.buttons()
	require.Empty(t, ids)
	require.Empty(t, rec.data(FrameSent))
	require.Equal(t, uint64(0), b.Status().Pressed)
}

func TestBoardPendingDropped(t *testing.T) {
	conf := testConfig()
	conf.Buttons[1] = 0x31
	conf.Buttons[2] = 0x32
	sw1, sw2 := line.NewSwitch(gpio.Low), line.NewSwitch(gpio.Low)
	b, rec, loop := newWiredBoard(t, conf, map[int]line.Reader{1: sw1, 2: sw2})

	sw1.Set(true)
	sw2.Set(true)
	runTicks(t, loop, 400)
	ids, _ := rec.buttons()
	require.Equal(t, []int{1, 2}, ids)
	require.Equal(t, []byte{0x31}, rec.data(FrameSent))
	require.Equal(t, uint64(1), b.Status().Dropped)
}

func TestBoardPendingBeforeOutgoing(t *testing.T) {
	conf := testConfig()
	conf.Buttons[1] = 0x03
	sw := line.NewSwitch(gpio.Low)
	b, rec, loop := newWiredBoard(t, conf, map[int]line.Reader{1: sw})

	require.NoError(t, b.TrySend(0x01))
	runTicks(t, loop, 1)
	require.NoError(t, b.TrySend(0x02))
	require.Equal(t, framework.ErrSlotFull, b.TrySend(0x04))
	sw.Set(true)
	runTicks(t, loop, 700)
	require.Equal(t, []byte{0x01, 0x03, 0x02}, rec.data(FrameSent))
	require.Equal(t, []byte{0x01, 0x03, 0x02}, rec.data(FrameReceived))
}

func TestBoardSendCanceled(t *testing.T) {
	b, _, _ := newWiredBoard(t, testConfig(), nil)
	require.NoError(t, b.Send(context.Background(), 0x10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, b.Send(ctx, 0x11))
}

func TestBoardSubscribeCancel(t *testing.T) {
	b, rec, loop := newWiredBoard(t, testConfig(), nil)
	other := &recorder{}
	cancel := b.Subscribe(other)
	cancel()
	require.NoError(t, b.TrySend(0x55))
	runTicks(t, loop, 400)
	require.NotEmpty(t, rec.events)
	require.Empty(t, other.events)
}

func TestBoardReset(t *testing.T) {
	b, _, loop := newWiredBoard(t, testConfig(), nil)
	require.NoError(t, b.TrySend(0x07))
	runTicks(t, loop, 400)
	require.Equal(t, "007", b.Status().Display)

	require.NoError(t, b.TrySend(0x08))
	b.Reset()
	runTicks(t, loop, 1)
	s := b.Status()
	require.Equal(t, "---", s.Display)
	require.Equal(t, uint64(0), s.Received)
	require.Equal(t, uint64(0), s.Sent)
	require.Equal(t, uart.TxIdle, s.TxState)
	require.NoError(t, b.TrySend(0x09))
}

func TestBoardInvalidConfig(t *testing.T) {
	conf := testConfig()
	conf.UART.OversampleFactor = 3
	_, err := New(conf, line.NewWire(gpio.High), line.NewWire(gpio.High), nil)
	require.Error(t, err)
}

func TestButtonMap(t *testing.T) {
	m := ButtonMap{}
	require.NoError(t, m.Set("1=0x41,2=66"))
	require.NoError(t, m.Set("0=7"))
	require.Equal(t, ButtonMap{0: 7, 1: 0x41, 2: 66}, m)
	require.Equal(t, []int{0, 1, 2}, m.IDs())
	require.Equal(t, "0=0x07,1=0x41,2=0x42", m.String())

	require.Error(t, m.Set("x"))
	require.Error(t, m.Set("=1"))
	require.Error(t, m.Set("a=1"))
	require.Error(t, m.Set("1=300"))
}

func TestNewConfigCopiesButtons(t *testing.T) {
	conf := NewConfig()
	conf.Buttons[9] = 1
	_, ok := Default().Buttons[9]
	require.False(t, ok)
	require.NoError(t, conf.Validate())
}

func TestBoardSetLoopback(t *testing.T) {
	toB, toA := line.NewWire(gpio.High), line.NewWire(gpio.High)
	a, err := New(testConfig(), toA, toB, nil)
	require.NoError(t, err)
	b, err := New(testConfig(), toB, toA, nil)
	require.NoError(t, err)
	recA := &recorder{}
	a.Subscribe(recA)
	loop := framework.NewLoop().Add(a, b)

	require.False(t, b.Config().Loopback)
	b.SetLoopback(true)
	require.True(t, b.Config().Loopback)
	require.NoError(t, a.TrySend(0x2a))
	runTicks(t, loop, 800)
	require.Equal(t, []byte{0x2a}, recA.data(FrameReceived))

	b.SetLoopback(false)
	require.False(t, b.Config().Loopback)
	require.NoError(t, a.TrySend(0x2b))
	runTicks(t, loop, 800)
	require.Equal(t, []byte{0x2a}, recA.data(FrameReceived))
	require.Equal(t, "043", b.Status().Display)
}

func TestBoardSelfWiredNoEcho(t *testing.T) {
	conf := testConfig()
	conf.Loopback = true
	b, rec, loop := newWiredBoard(t, conf, nil)
	require.True(t, b.Config().Loopback)

	require.NoError(t, b.TrySend(0x2a))
	runTicks(t, loop, 20*11*16)
	require.Equal(t, []byte{0x2a}, rec.data(FrameSent))
	require.Equal(t, []byte{0x2a}, rec.data(FrameReceived))
	require.Equal(t, "042", b.Status().Display)
}

type tickContext struct {
	framework.ControlContext
	tick uint64
}

func (c *tickContext) Tick() uint64 {
	return c.tick
}

func TestBoardIdleStatusNoAlloc(t *testing.T) {
	sw := line.NewSwitch(gpio.Low)
	b, _, loop := newWiredBoard(t, testConfig(), map[int]line.Reader{1: sw})
	runTicks(t, loop, 10)

	cc := &tickContext{tick: 10}
	allocs := testing.AllocsPerRun(100, func() {
		cc.tick++
		_ = b.postProc(cc)
	})
	require.Zero(t, allocs)
	require.Equal(t, cc.tick, b.Status().Tick)

	sw.Set(true)
	runTicks(t, loop, 10)
	require.Equal(t, []int{1}, b.Status().Held)
	sw.Set(false)
	runTicks(t, loop, 10)
	require.Empty(t, b.Status().Held)

	require.NoError(t, b.TrySend(0x07))
	runTicks(t, loop, 400)
	require.Equal(t, "007", b.Status().Display)
}
