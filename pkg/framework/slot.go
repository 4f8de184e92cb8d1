package framework

import (
	"context"
	"errors"
)

// ErrSlotFull indicates the Slot already holds a value.
var ErrSlotFull = errors.New("slot full")

// Slot is a single-element handoff between the tick driver and other
// goroutines. A value put into the Slot is taken at most once.
type Slot[T any] struct {
	ch chan T
}

// NewSlot creates an empty Slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan T, 1)}
}

// Offer puts v into the Slot without blocking.
func (s *Slot[T]) Offer(v T) error {
	select {
	case s.ch <- v:
		return nil
	default:
		return ErrSlotFull
	}
}

// Put blocks until v is accepted or ctx is done.
func (s *Slot[T]) Put(ctx context.Context, v T) error {
	select {
	case s.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take removes the value without blocking.
func (s *Slot[T]) Take() (v T, ok bool) {
	select {
	case v = <-s.ch:
		ok = true
	default:
	}
	return
}

// Wait blocks until a value is available or ctx is done.
func (s *Slot[T]) Wait(ctx context.Context) (v T, err error) {
	select {
	case v = <-s.ch:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}

// Full indicates a value is waiting in the Slot.
func (s *Slot[T]) Full() bool {
	return len(s.ch) > 0
}

// Clear drops the pending value if any.
func (s *Slot[T]) Clear() {
	s.Take()
}

// Chan exposes the receiving side for use in select statements.
func (s *Slot[T]) Chan() <-chan T {
	return s.ch
}
