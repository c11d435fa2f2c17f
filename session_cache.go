// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"

	"github.com/luxfi/ids"

	"github.com/luxfi/availability/message"
)

const defaultCachedSessions = 4

// SessionInfo describes the validator set backing one session.
type SessionInfo struct {
	// Validators is ordered by validator index.
	Validators []ids.NodeID
	// OurIndex is this node's position in Validators. Only meaningful
	// when IsValidator is true.
	OurIndex    message.ValidatorIndex
	IsValidator bool
}

// sessionCache resolves anchors to session info through the runtime and
// keeps the most recent sessions around. Sessions rotate rarely, so a
// small cache absorbs nearly all lookups.
//
// Not safe for concurrent use. The requester owns it and touches it
// only from the subsystem goroutine.
type sessionCache struct {
	api      RuntimeAPI
	nodeID   ids.NodeID
	capacity int

	byAnchor  map[ids.ID]message.SessionIndex
	bySession map[message.SessionIndex]*SessionInfo
	// order holds cached sessions, oldest first.
	order []message.SessionIndex
}

func newSessionCache(api RuntimeAPI, nodeID ids.NodeID, capacity int) *sessionCache {
	if capacity <= 0 {
		capacity = defaultCachedSessions
	}
	return &sessionCache{
		api:       api,
		nodeID:    nodeID,
		capacity:  capacity,
		byAnchor:  make(map[ids.ID]message.SessionIndex),
		bySession: make(map[message.SessionIndex]*SessionInfo),
	}
}

// sessionAt resolves the session active at [anchor], querying the
// runtime on a cache miss.
func (c *sessionCache) sessionAt(ctx context.Context, anchor ids.ID) (message.SessionIndex, *SessionInfo, error) {
	if index, ok := c.byAnchor[anchor]; ok {
		if info, ok := c.bySession[index]; ok {
			return index, info, nil
		}
	}

	index, err := RecvRuntime(ctx, c.api.SessionIndex(ctx, anchor))
	if err != nil {
		return 0, nil, err
	}
	if info, ok := c.bySession[index]; ok {
		c.byAnchor[anchor] = index
		return index, info, nil
	}

	validatorList, err := RecvRuntime(ctx, c.api.SessionValidators(ctx, index))
	if err != nil {
		return 0, nil, err
	}
	if len(validatorList) == 0 {
		return 0, nil, FromNonFatal(&NonFatal{
			Kind:    NonFatalNoSuchSession,
			Session: index,
		})
	}

	info := &SessionInfo{Validators: validatorList}
	for i, nodeID := range validatorList {
		if nodeID == c.nodeID {
			info.OurIndex = message.ValidatorIndex(i)
			info.IsValidator = true
			break
		}
	}
	c.insert(anchor, index, info)
	return index, info, nil
}

// cached returns the session info for [index] if it is still cached.
// Fetch reports can outlive the session that justified them.
func (c *sessionCache) cached(index message.SessionIndex) (*SessionInfo, bool) {
	info, ok := c.bySession[index]
	return info, ok
}

func (c *sessionCache) insert(anchor ids.ID, index message.SessionIndex, info *SessionInfo) {
	if _, ok := c.bySession[index]; !ok {
		for len(c.bySession) >= c.capacity {
			c.evictOldest()
		}
		c.bySession[index] = info
		c.order = append(c.order, index)
	}
	c.byAnchor[anchor] = index
}

func (c *sessionCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.bySession, oldest)
	for anchor, index := range c.byAnchor {
		if index == oldest {
			delete(c.byAnchor, anchor)
		}
	}
}
