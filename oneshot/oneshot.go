// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oneshot provides a single-value reply channel between an asking
// component and an answering collaborator. The receiver observes exactly one
// of: the delivered value, the sender closing without a value, or its own
// context expiring. A collaborator that will not answer must close its
// sender; closing without sending is how "the answering side went away" is
// made observable.
package oneshot

import (
	"context"
	"errors"
	"sync"
)

// ErrSenderClosed is returned by Recv when the sender was closed before
// delivering a value.
var ErrSenderClosed = errors.New("oneshot: sender closed before send")

// New returns a connected sender/receiver pair.
func New[T any]() (*Sender[T], *Receiver[T]) {
	ch := make(chan T, 1)
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

// Sender is the answering half of the pair. At most one of Send or Close
// has any effect; whichever happens first wins and the rest are no-ops.
type Sender[T any] struct {
	once sync.Once
	ch   chan T
}

// Send delivers v to the receiver. It reports whether v is the value the
// receiver will observe.
func (s *Sender[T]) Send(v T) bool {
	delivered := false
	s.once.Do(func() {
		s.ch <- v
		close(s.ch)
		delivered = true
	})
	return delivered
}

// Close finishes the sender without delivering a value. The receiver
// observes ErrSenderClosed.
func (s *Sender[T]) Close() {
	s.once.Do(func() {
		close(s.ch)
	})
}

// Receiver is the asking half of the pair. It is intended for a single
// consumer; after the first Recv resolves, later calls report
// ErrSenderClosed.
type Receiver[T any] struct {
	ch <-chan T
}

// Recv blocks until the sender delivers a value, the sender is closed, or
// ctx is done, whichever happens first.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	select {
	case v, ok := <-r.ch:
		if !ok {
			var zero T
			return zero, ErrSenderClosed
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
