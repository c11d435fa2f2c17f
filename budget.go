// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import "sync/atomic"

// DefaultFetchLimit is the default number of chunk fetches allowed in
// flight at once.
const DefaultFetchLimit = 64

// FetchBudget bounds the number of chunk fetches in flight. The limit
// is adjustable at runtime; shrinking it does not interrupt fetches
// that already hold a slot.
type FetchBudget struct {
	limit atomic.Int64
	live  atomic.Int64
}

func NewFetchBudget(limit int64) *FetchBudget {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	b := &FetchBudget{}
	b.limit.Store(limit)
	return b
}

// TryAcquire reserves a fetch slot and reports whether one was free.
func (b *FetchBudget) TryAcquire() bool {
	for {
		live := b.live.Load()
		if live >= b.limit.Load() {
			return false
		}
		if b.live.CompareAndSwap(live, live+1) {
			return true
		}
	}
}

// Release returns a reserved fetch slot.
func (b *FetchBudget) Release() {
	b.live.Add(-1)
}

// Live returns the number of reserved fetch slots.
func (b *FetchBudget) Live() int64 {
	return b.live.Load()
}

func (b *FetchBudget) Limit() int64 {
	return b.limit.Load()
}

func (b *FetchBudget) SetLimit(limit int64) {
	if limit < 1 {
		limit = 1
	}
	b.limit.Store(limit)
}
