// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
)

// testRuntime is a scripted RuntimeAPI answering from maps. It counts
// queries so tests can assert what hit the cache.
type testRuntime struct {
	sessionOf  map[ids.ID]message.SessionIndex
	validators map[message.SessionIndex][]ids.NodeID
	pending    map[ids.ID][]PendingBlob

	sessionQueries   int
	validatorQueries int
	pendingQueries   int

	dropSessionQueries bool
	dropPendingQueries bool

	sessionErr *message.AppError
	pendingErr *message.AppError
}

func (r *testRuntime) SessionIndex(_ context.Context, anchor ids.ID) *oneshot.Receiver[message.APIReply[message.SessionIndex]] {
	r.sessionQueries++
	tx, rx := oneshot.New[message.APIReply[message.SessionIndex]]()
	switch {
	case r.dropSessionQueries:
		tx.Close()
	case r.sessionErr != nil:
		tx.Send(message.APIReply[message.SessionIndex]{Err: r.sessionErr})
	default:
		index, ok := r.sessionOf[anchor]
		if !ok {
			tx.Send(message.APIReply[message.SessionIndex]{Err: message.ErrUnexpected})
			break
		}
		tx.Send(message.APIReply[message.SessionIndex]{Value: index})
	}
	return rx
}

func (r *testRuntime) SessionValidators(_ context.Context, index message.SessionIndex) *oneshot.Receiver[message.APIReply[[]ids.NodeID]] {
	r.validatorQueries++
	tx, rx := oneshot.New[message.APIReply[[]ids.NodeID]]()
	tx.Send(message.APIReply[[]ids.NodeID]{Value: r.validators[index]})
	return rx
}

func (r *testRuntime) PendingBlobs(_ context.Context, anchor ids.ID) *oneshot.Receiver[message.APIReply[[]PendingBlob]] {
	r.pendingQueries++
	tx, rx := oneshot.New[message.APIReply[[]PendingBlob]]()
	switch {
	case r.dropPendingQueries:
		tx.Close()
	case r.pendingErr != nil:
		tx.Send(message.APIReply[[]PendingBlob]{Err: r.pendingErr})
	default:
		tx.Send(message.APIReply[[]PendingBlob]{Value: r.pending[anchor]})
	}
	return rx
}

func TestSessionCacheResolves(t *testing.T) {
	require := require.New(t)

	anchor := ids.GenerateTestID()
	us := ids.GenerateTestNodeID()
	validators := []ids.NodeID{
		ids.GenerateTestNodeID(),
		ids.GenerateTestNodeID(),
		us,
	}
	runtime := &testRuntime{
		sessionOf:  map[ids.ID]message.SessionIndex{anchor: 5},
		validators: map[message.SessionIndex][]ids.NodeID{5: validators},
	}
	cache := newSessionCache(runtime, us, 0)

	index, info, err := cache.sessionAt(context.Background(), anchor)
	require.NoError(err)
	require.Equal(message.SessionIndex(5), index)
	require.Equal(validators, info.Validators)
	require.True(info.IsValidator)
	require.Equal(message.ValidatorIndex(2), info.OurIndex)
	require.Equal(1, runtime.sessionQueries)
	require.Equal(1, runtime.validatorQueries)

	// Same anchor again resolves from the cache.
	_, again, err := cache.sessionAt(context.Background(), anchor)
	require.NoError(err)
	require.Same(info, again)
	require.Equal(1, runtime.sessionQueries)
	require.Equal(1, runtime.validatorQueries)

	cached, ok := cache.cached(5)
	require.True(ok)
	require.Same(info, cached)

	_, ok = cache.cached(6)
	require.False(ok)
}

func TestSessionCacheSharesSessionAcrossAnchors(t *testing.T) {
	require := require.New(t)

	first := ids.GenerateTestID()
	second := ids.GenerateTestID()
	us := ids.GenerateTestNodeID()
	runtime := &testRuntime{
		sessionOf: map[ids.ID]message.SessionIndex{
			first:  7,
			second: 7,
		},
		validators: map[message.SessionIndex][]ids.NodeID{
			7: {us},
		},
	}
	cache := newSessionCache(runtime, us, 0)

	_, info, err := cache.sessionAt(context.Background(), first)
	require.NoError(err)

	// A new anchor in a known session asks for the index but reuses
	// the validator set.
	_, again, err := cache.sessionAt(context.Background(), second)
	require.NoError(err)
	require.Same(info, again)
	require.Equal(2, runtime.sessionQueries)
	require.Equal(1, runtime.validatorQueries)
}

func TestSessionCacheNotValidator(t *testing.T) {
	require := require.New(t)

	anchor := ids.GenerateTestID()
	runtime := &testRuntime{
		sessionOf: map[ids.ID]message.SessionIndex{anchor: 1},
		validators: map[message.SessionIndex][]ids.NodeID{
			1: {ids.GenerateTestNodeID()},
		},
	}
	cache := newSessionCache(runtime, ids.GenerateTestNodeID(), 0)

	_, info, err := cache.sessionAt(context.Background(), anchor)
	require.NoError(err)
	require.False(info.IsValidator)
}

func TestSessionCacheNoSuchSession(t *testing.T) {
	require := require.New(t)

	anchor := ids.GenerateTestID()
	runtime := &testRuntime{
		sessionOf: map[ids.ID]message.SessionIndex{anchor: 9},
	}
	cache := newSessionCache(runtime, ids.GenerateTestNodeID(), 0)

	_, _, err := cache.sessionAt(context.Background(), anchor)
	require.Error(err)

	var serr *Error
	require.ErrorAs(err, &serr)
	n, ok := serr.NonFatal()
	require.True(ok)
	require.Equal(NonFatalNoSuchSession, n.Kind)
	require.Equal(message.SessionIndex(9), n.Session)
}

func TestSessionCacheQueryDropped(t *testing.T) {
	require := require.New(t)

	runtime := &testRuntime{dropSessionQueries: true}
	cache := newSessionCache(runtime, ids.GenerateTestNodeID(), 0)

	_, _, err := cache.sessionAt(context.Background(), ids.GenerateTestID())
	require.Error(err)

	var serr *Error
	require.ErrorAs(err, &serr)
	f, ok := serr.Fatal()
	require.True(ok)
	require.Equal(FatalRuntimeRequestCanceled, f.Kind)
}

func TestSessionCacheQueryErrored(t *testing.T) {
	require := require.New(t)

	runtime := &testRuntime{sessionErr: message.ErrUnexpected}
	cache := newSessionCache(runtime, ids.GenerateTestNodeID(), 0)

	_, _, err := cache.sessionAt(context.Background(), ids.GenerateTestID())
	require.Error(err)

	var serr *Error
	require.ErrorAs(err, &serr)
	n, ok := serr.NonFatal()
	require.True(ok)
	require.Equal(NonFatalRuntimeRequest, n.Kind)
}

func TestSessionCacheEviction(t *testing.T) {
	require := require.New(t)

	first := ids.GenerateTestID()
	second := ids.GenerateTestID()
	us := ids.GenerateTestNodeID()
	runtime := &testRuntime{
		sessionOf: map[ids.ID]message.SessionIndex{
			first:  1,
			second: 2,
		},
		validators: map[message.SessionIndex][]ids.NodeID{
			1: {us},
			2: {us},
		},
	}
	cache := newSessionCache(runtime, us, 1)

	_, _, err := cache.sessionAt(context.Background(), first)
	require.NoError(err)
	_, _, err = cache.sessionAt(context.Background(), second)
	require.NoError(err)

	// Capacity one: resolving the second session evicted the first,
	// anchors included.
	_, ok := cache.cached(1)
	require.False(ok)
	_, ok = cache.cached(2)
	require.True(ok)

	_, _, err = cache.sessionAt(context.Background(), first)
	require.NoError(err)
	require.Equal(3, runtime.sessionQueries)
	require.Equal(3, runtime.validatorQueries)
}
