// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availtest

import (
	"context"
	"sync"

	"github.com/luxfi/ids"

	"github.com/luxfi/availability"
	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
)

var _ availability.RuntimeAPI = (*Runtime)(nil)

// Runtime is a scripted test implementation of availability.RuntimeAPI.
// Set Drop* fields to true to drop the reply channel for that query,
// and Err* fields to answer with an application error.
type Runtime struct {
	lock       sync.Mutex
	sessionOf  map[ids.ID]message.SessionIndex
	validators map[message.SessionIndex][]ids.NodeID
	pending    map[ids.ID][]availability.PendingBlob

	DropSessionQueries   bool
	DropValidatorQueries bool
	DropPendingQueries   bool
	ErrSessionQueries    *message.AppError
	ErrPendingQueries    *message.AppError

	SessionQueries   int
	ValidatorQueries int
	PendingQueries   int
}

func NewRuntime() *Runtime {
	return &Runtime{
		sessionOf:  make(map[ids.ID]message.SessionIndex),
		validators: make(map[message.SessionIndex][]ids.NodeID),
		pending:    make(map[ids.ID][]availability.PendingBlob),
	}
}

// SetSession scripts the session active at [anchor].
func (r *Runtime) SetSession(anchor ids.ID, index message.SessionIndex) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.sessionOf[anchor] = index
}

// SetValidators scripts the validator set of [index], ordered by
// validator index.
func (r *Runtime) SetValidators(index message.SessionIndex, nodeIDs []ids.NodeID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.validators[index] = nodeIDs
}

// SetPending scripts the pending blobs listed under [anchor].
func (r *Runtime) SetPending(anchor ids.ID, blobs ...availability.PendingBlob) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.pending[anchor] = blobs
}

func (r *Runtime) SessionIndex(_ context.Context, anchor ids.ID) *oneshot.Receiver[message.APIReply[message.SessionIndex]] {
	sender, receiver := oneshot.New[message.APIReply[message.SessionIndex]]()

	r.lock.Lock()
	defer r.lock.Unlock()

	r.SessionQueries++
	switch {
	case r.DropSessionQueries:
		sender.Close()
	case r.ErrSessionQueries != nil:
		sender.Send(message.APIReply[message.SessionIndex]{Err: r.ErrSessionQueries})
	default:
		index, ok := r.sessionOf[anchor]
		if !ok {
			sender.Send(message.APIReply[message.SessionIndex]{Err: message.ErrUnexpected})
			break
		}
		sender.Send(message.APIReply[message.SessionIndex]{Value: index})
	}
	return receiver
}

func (r *Runtime) SessionValidators(_ context.Context, index message.SessionIndex) *oneshot.Receiver[message.APIReply[[]ids.NodeID]] {
	sender, receiver := oneshot.New[message.APIReply[[]ids.NodeID]]()

	r.lock.Lock()
	defer r.lock.Unlock()

	r.ValidatorQueries++
	if r.DropValidatorQueries {
		sender.Close()
		return receiver
	}
	sender.Send(message.APIReply[[]ids.NodeID]{Value: r.validators[index]})
	return receiver
}

func (r *Runtime) PendingBlobs(_ context.Context, anchor ids.ID) *oneshot.Receiver[message.APIReply[[]availability.PendingBlob]] {
	sender, receiver := oneshot.New[message.APIReply[[]availability.PendingBlob]]()

	r.lock.Lock()
	defer r.lock.Unlock()

	r.PendingQueries++
	switch {
	case r.DropPendingQueries:
		sender.Close()
	case r.ErrPendingQueries != nil:
		sender.Send(message.APIReply[[]availability.PendingBlob]{Err: r.ErrPendingQueries})
	default:
		sender.Send(message.APIReply[[]availability.PendingBlob]{Value: r.pending[anchor]})
	}
	return receiver
}
