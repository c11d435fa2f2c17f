// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrMailboxClosed = errors.New("mailbox is closed")

// DefaultMailboxSize is the default bound on buffered inbox messages.
const DefaultMailboxSize = 256

// Mailbox is the subsystem's bounded inbox. Push applies backpressure by
// blocking while the inbox is full; TryPush refuses instead. The buffer
// channel is exposed directly so the actor loop can select across its
// inputs, and Done resolving while the subsystem still runs is the
// closed-inbox signal the subsystem treats as fatal.
type Mailbox struct {
	ch   chan Message
	done chan struct{}
	once sync.Once

	enqueued  atomic.Uint64
	dropped   atomic.Uint64
	highWater atomic.Int64
}

// NewMailbox returns a mailbox buffering up to size messages, or
// DefaultMailboxSize if size is zero.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{
		ch:   make(chan Message, size),
		done: make(chan struct{}),
	}
}

// Push enqueues msg, blocking while the inbox is full.
func (m *Mailbox) Push(ctx context.Context, msg Message) error {
	select {
	case <-m.done:
		return ErrMailboxClosed
	default:
	}

	select {
	case m.ch <- msg:
		m.noteEnqueued()
		return nil
	case <-m.done:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues msg without blocking and reports whether it fit.
func (m *Mailbox) TryPush(msg Message) bool {
	select {
	case <-m.done:
		m.dropped.Add(1)
		return false
	default:
	}

	select {
	case m.ch <- msg:
		m.noteEnqueued()
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

func (m *Mailbox) noteEnqueued() {
	m.enqueued.Add(1)
	depth := int64(len(m.ch))
	for {
		highWater := m.highWater.Load()
		if depth <= highWater || m.highWater.CompareAndSwap(highWater, depth) {
			break
		}
	}
}

// C is the receive side of the inbox, for use in select loops.
func (m *Mailbox) C() <-chan Message {
	return m.ch
}

// Done resolves once the mailbox is closed. Buffered messages are
// abandoned; a closed inbox means no more work is coming.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Close closes the mailbox and releases blocked pushers. Idempotent.
func (m *Mailbox) Close() {
	m.once.Do(func() {
		close(m.done)
	})
}

// Depth returns the number of buffered messages.
func (m *Mailbox) Depth() int {
	return len(m.ch)
}

// Stats returns mailbox counters.
func (m *Mailbox) Stats() MailboxStats {
	return MailboxStats{
		Depth:     len(m.ch),
		Enqueued:  m.enqueued.Load(),
		Dropped:   m.dropped.Load(),
		HighWater: m.highWater.Load(),
	}
}

// MailboxStats contains mailbox counters.
type MailboxStats struct {
	Depth     int
	Enqueued  uint64
	Dropped   uint64
	HighWater int64
}
