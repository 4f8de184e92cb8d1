package bridge

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/softuart/pkg/board"
	"github.com/robotalks/softuart/pkg/debounce"
	"github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/line"
	"github.com/robotalks/softuart/pkg/uart"
)

type chanReadWriter struct {
	readCh  chan byte
	writeCh chan byte
	readErr chan error

	closeOnce sync.Once
	closed    chan struct{}
}

func newChanReadWriter() *chanReadWriter {
	return &chanReadWriter{
		readCh:  make(chan byte, 16),
		writeCh: make(chan byte, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *chanReadWriter) Read(p []byte) (int, error) {
	select {
	case p[0] = <-c.readCh:
		return 1, nil
	case err := <-c.readErr:
		return 0, err
	case <-c.closed:
		return 0, io.EOF
	}
}

func (c *chanReadWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		c.writeCh <- b
	}
	return len(p), nil
}

func (c *chanReadWriter) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type fakeBoard struct {
	sent chan byte

	lock    sync.Mutex
	handler board.EventHandler
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{sent: make(chan byte, 16)}
}

func (b *fakeBoard) Send(ctx context.Context, data byte) error {
	select {
	case b.sent <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBoard) Subscribe(h board.EventHandler) func() {
	b.lock.Lock()
	b.handler = h
	b.lock.Unlock()
	return func() {
		b.lock.Lock()
		b.handler = nil
		b.lock.Unlock()
	}
}

func (b *fakeBoard) subscribed() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.handler != nil
}

func recvByte(t *testing.T, ch <-chan byte) byte {
	select {
	case b := <-ch:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
		return 0
	}
}

func waitFor(t *testing.T, cond func() bool) {
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestBridgeForwards(t *testing.T) {
	port, b := newChanReadWriter(), newFakeBoard()
	br := New(port, b)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- br.Run(ctx) }()
	waitFor(t, b.subscribed)

	port.readCh <- 'a'
	port.readCh <- 'b'
	require.Equal(t, byte('a'), recvByte(t, b.sent))
	require.Equal(t, byte('b'), recvByte(t, b.sent))

	br.HandleEvent(board.Event{Kind: board.FrameSent, Data: 0x10})
	br.HandleEvent(board.Event{Kind: board.FrameReceived, Data: 0x42})
	require.Equal(t, byte(0x42), recvByte(t, port.writeCh))

	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.False(t, b.subscribed())
	select {
	case <-port.closed:
	default:
		t.Fatal("port not closed")
	}
}

func TestBridgeReadError(t *testing.T) {
	port, b := newChanReadWriter(), newFakeBoard()
	port.readErr <- errors.New("unplugged")
	err := New(port, b).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unplugged")
}

func TestBridgeDropsWhenSlow(t *testing.T) {
	br := NewWithBuffer(newChanReadWriter(), newFakeBoard(), 2)
	for i := 0; i < 5; i++ {
		br.HandleEvent(board.Event{Kind: board.FrameReceived, Data: byte(i)})
	}
	require.Len(t, br.frames, 2)
	require.Equal(t, byte(0), <-br.frames)
	require.Equal(t, byte(1), <-br.frames)
}

func TestBridgeThroughBoard(t *testing.T) {
	wire := line.NewWire(gpio.High)
	conf := board.Config{
		UART:     uart.Config{TickFrequency: 16, BitRate: 1, OversampleFactor: 8},
		Debounce: debounce.Config{Ticks: 4, ActiveLevel: gpio.Low},
	}
	b, err := board.New(conf, wire, wire, nil)
	require.NoError(t, err)
	loop := framework.NewLoop().Add(b)
	loop.Interval, loop.TicksPerInterval = time.Millisecond, 64

	port := newChanReadWriter()
	loop.AddRunnable(New(port, b))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	for _, data := range []byte("hi!") {
		port.readCh <- data
	}
	require.Equal(t, "hi!", string([]byte{
		recvByte(t, port.writeCh),
		recvByte(t, port.writeCh),
		recvByte(t, port.writeCh),
	}))
	cancel()
	<-done
}

func TestWebSocketServer(t *testing.T) {
	b := newFakeBoard()
	srv := httptest.NewServer(WebSocketHandler(b))
	defer srv.Close()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	waitFor(t, b.subscribed)

	_, err = conn.Write([]byte{0x31})
	require.NoError(t, err)
	require.Equal(t, byte(0x31), recvByte(t, b.sent))

	b.lock.Lock()
	h := b.handler
	b.lock.Unlock()
	h.HandleEvent(board.Event{Kind: board.FrameReceived, Data: 0x32})
	var msg []byte
	require.NoError(t, websocket.Message.Receive(conn, &msg))
	require.Equal(t, []byte{0x32}, msg)
}

type readTracker struct {
	*chanReadWriter
	readDone chan struct{}
}

func (p *readTracker) Read(b []byte) (int, error) {
	n, err := p.chanReadWriter.Read(b)
	if err != nil {
		close(p.readDone)
	}
	return n, err
}

func TestBridgeClosesPortOnStop(t *testing.T) {
	port := &readTracker{chanReadWriter: newChanReadWriter(), readDone: make(chan struct{})}
	b := newFakeBoard()
	br := New(port, b)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- br.Run(ctx) }()
	waitFor(t, b.subscribed)
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("bridge not stopped")
	}
	select {
	case <-port.readDone:
	case <-time.After(time.Second):
		t.Fatal("read goroutine still blocked")
	}
}
