// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sessions resolves which validators form a session and caches the
// answers. It is the shared session-information helper: consumers hand it
// an anchor and get back the validator set of the session that anchor
// belongs to. Failures carry their own severity so consumers can decide
// whether to absorb or abort without inspecting query mechanics.
package sessions

import (
	"context"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
)

// DefaultCachedSessions bounds how many sessions worth of validator sets
// are retained. Sessions rotate slowly; a handful covers every live anchor.
const DefaultCachedSessions = 4

// API is the runtime API surface the helper queries. Replies arrive on
// one-shot channels; a closed sender means the API went away.
type API interface {
	SessionIndex(ctx context.Context, anchor ids.ID) *oneshot.Receiver[message.APIReply[message.SessionIndex]]
	SessionValidators(ctx context.Context, index message.SessionIndex) *oneshot.Receiver[message.APIReply[[]ids.NodeID]]
}

// Cache answers session-information queries, remembering the last few
// sessions. Safe for concurrent use.
type Cache struct {
	api API

	lock     sync.Mutex
	anchors  map[ids.ID]message.SessionIndex
	sets     map[message.SessionIndex]set.Set[ids.NodeID]
	order    []message.SessionIndex
	capacity int
}

// NewCache returns a cache over api retaining up to capacity sessions, or
// DefaultCachedSessions if capacity is zero.
func NewCache(api API, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCachedSessions
	}
	return &Cache{
		api:      api,
		anchors:  make(map[ids.ID]message.SessionIndex),
		sets:     make(map[message.SessionIndex]set.Set[ids.NodeID]),
		capacity: capacity,
	}
}

// ValidatorsAt returns the validator set of the session anchor belongs to.
// Errors are *Error values carrying their own severity.
func (c *Cache) ValidatorsAt(ctx context.Context, anchor ids.ID) (set.Set[ids.NodeID], error) {
	index, err := c.sessionIndex(ctx, anchor)
	if err != nil {
		return nil, err
	}
	return c.validators(ctx, index)
}

func (c *Cache) sessionIndex(ctx context.Context, anchor ids.ID) (message.SessionIndex, error) {
	c.lock.Lock()
	index, ok := c.anchors[anchor]
	c.lock.Unlock()
	if ok {
		return index, nil
	}

	reply, err := c.api.SessionIndex(ctx, anchor).Recv(ctx)
	if err != nil {
		return 0, QueryCanceledError(err)
	}
	if reply.Err != nil {
		return 0, QueryError(0, reply.Err)
	}

	c.lock.Lock()
	c.anchors[anchor] = reply.Value
	c.lock.Unlock()
	return reply.Value, nil
}

func (c *Cache) validators(ctx context.Context, index message.SessionIndex) (set.Set[ids.NodeID], error) {
	c.lock.Lock()
	validators, ok := c.sets[index]
	c.lock.Unlock()
	if ok {
		return validators, nil
	}

	reply, err := c.api.SessionValidators(ctx, index).Recv(ctx)
	if err != nil {
		return nil, QueryCanceledError(err)
	}
	if reply.Err != nil {
		return nil, QueryError(index, reply.Err)
	}
	if len(reply.Value) == 0 {
		return nil, UnknownSessionError(index)
	}

	validators = set.Of(reply.Value...)
	c.lock.Lock()
	if _, ok := c.sets[index]; !ok {
		c.sets[index] = validators
		c.order = append(c.order, index)
		c.evictLocked()
	}
	c.lock.Unlock()
	return validators, nil
}

func (c *Cache) evictLocked() {
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.sets, oldest)
		for anchor, index := range c.anchors {
			if index == oldest {
				delete(c.anchors, anchor)
			}
		}
	}
}
