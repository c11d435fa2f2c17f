// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"sync"

	"github.com/luxfi/ids"
	"golang.org/x/time/rate"
)

const (
	// DefaultThrottleRate is the default sustained rate of requests
	// served per peer, per second.
	DefaultThrottleRate = rate.Limit(8)
	// DefaultThrottleBurst is the default number of requests a peer may
	// issue back to back.
	DefaultThrottleBurst = 16

	// maxThrottledPeers bounds the per-peer limiter map. When the bound
	// is hit the map is reset, forgiving old peers rather than growing
	// without bound.
	maxThrottledPeers = 512
)

// Throttler rate-limits inbound requests per peer.
type Throttler interface {
	// Handle returns true if a message from [nodeID] should be handled.
	Handle(nodeID ids.NodeID) bool
}

var _ Throttler = (*TokenBucketThrottler)(nil)

// TokenBucketThrottler grants each peer an independent token bucket.
type TokenBucketThrottler struct {
	limit rate.Limit
	burst int

	lock     sync.Mutex
	limiters map[ids.NodeID]*rate.Limiter
}

func NewTokenBucketThrottler(limit rate.Limit, burst int) *TokenBucketThrottler {
	return &TokenBucketThrottler{
		limit:    limit,
		burst:    burst,
		limiters: make(map[ids.NodeID]*rate.Limiter),
	}
}

func (t *TokenBucketThrottler) Handle(nodeID ids.NodeID) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	limiter, ok := t.limiters[nodeID]
	if !ok {
		if len(t.limiters) >= maxThrottledPeers {
			t.limiters = make(map[ids.NodeID]*rate.Limiter)
		}
		limiter = rate.NewLimiter(t.limit, t.burst)
		t.limiters[nodeID] = limiter
	}
	return limiter.Allow()
}
