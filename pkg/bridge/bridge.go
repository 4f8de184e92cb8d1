// Package bridge connects a byte stream, like a host serial port or a
// websocket, to a board. Bytes read from the stream are transmitted by
// the board and frames received by the board are written to the stream.
package bridge

import (
	"context"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/board"
	"github.com/robotalks/softuart/pkg/framework"
)

// Board is the part of board.Board used by the Bridge.
type Board interface {
	Send(ctx context.Context, data byte) error
	Subscribe(board.EventHandler) (cancel func())
}

// DefaultBuffer is the number of received frames buffered for a slow port.
const DefaultBuffer = 256

// Bridge forwards bytes between Port and Board.
type Bridge struct {
	// Port should also be an io.Closer. Closing it is the only way to
	// unblock a pending Read, otherwise the read goroutine outlives Run
	// until the next byte or error arrives.
	Port  io.ReadWriter
	Board Board

	frames chan byte
}

// New creates a Bridge.
func New(port io.ReadWriter, b Board) *Bridge {
	return NewWithBuffer(port, b, DefaultBuffer)
}

// NewWithBuffer creates a Bridge buffering at most size received frames.
func NewWithBuffer(port io.ReadWriter, b Board, size int) *Bridge {
	return &Bridge{Port: port, Board: b, frames: make(chan byte, size)}
}

// HandleEvent implements board.EventHandler.
func (b *Bridge) HandleEvent(e board.Event) {
	if e.Kind != board.FrameReceived {
		return
	}
	select {
	case b.frames <- e.Data:
	default:
		glog.Warningf("bridge port slow, dropped 0x%02x", e.Data)
	}
}

// Run implements framework.Runnable. If Port is an io.Closer, it is
// closed when Run returns and the read goroutine exits with it.
func (b *Bridge) Run(ctx context.Context) error {
	cancel := b.Board.Subscribe(b)
	defer cancel()
	if closer, ok := b.Port.(io.Closer); ok {
		return framework.RunWithContextCloser(ctx, closer, func() error {
			return b.run(ctx)
		})
	}
	return b.run(ctx)
}

func (b *Bridge) run(ctx context.Context) error {
	byteCh, errCh := make(chan byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case data := <-byteCh:
			if err := b.Board.Send(ctx, data); err != nil {
				return err
			}
		case data := <-b.frames:
			if _, err := b.Port.Write([]byte{data}); err != nil {
				return errors.Wrap(err, "bridge write")
			}
		}
	}
}

func (b *Bridge) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 64)
	for {
		n, err := b.Port.Read(buf)
		for _, data := range buf[:n] {
			select {
			case byteCh <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- errors.Wrap(err, "bridge read")
			return
		}
	}
}
