// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package availtest provides doubles for exercising the availability
// subsystem without a node around it.
package availtest

import (
	"context"
	"sync"

	"github.com/luxfi/ids"

	"github.com/luxfi/availability"
	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
)

var _ availability.Store = (*Store)(nil)

// Store is an in-memory test implementation of availability.Store.
// Set Drop* fields to true to drop the reply channel for that query
// kind, the way real storage signals failure.
type Store struct {
	lock   sync.Mutex
	chunks map[ids.ID]map[message.ValidatorIndex]*message.Chunk
	data   map[ids.ID][]byte

	DropChunkQueries bool
	DropDataQueries  bool
	DropStores       bool
	// RefuseStores makes every chunk store answer with a refusal.
	RefuseStores bool
}

func NewStore() *Store {
	return &Store{
		chunks: make(map[ids.ID]map[message.ValidatorIndex]*message.Chunk),
		data:   make(map[ids.ID][]byte),
	}
}

func (s *Store) QueryChunk(_ context.Context, blob ids.ID, index message.ValidatorIndex) *oneshot.Receiver[*message.Chunk] {
	sender, receiver := oneshot.New[*message.Chunk]()

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.DropChunkQueries {
		sender.Close()
		return receiver
	}
	sender.Send(s.chunks[blob][index])
	return receiver
}

func (s *Store) QueryData(_ context.Context, blob ids.ID) *oneshot.Receiver[[]byte] {
	sender, receiver := oneshot.New[[]byte]()

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.DropDataQueries {
		sender.Close()
		return receiver
	}
	sender.Send(s.data[blob])
	return receiver
}

func (s *Store) StoreChunk(_ context.Context, blob ids.ID, chunk *message.Chunk) *oneshot.Receiver[bool] {
	sender, receiver := oneshot.New[bool]()

	s.lock.Lock()
	defer s.lock.Unlock()

	switch {
	case s.DropStores:
		sender.Close()
	case s.RefuseStores:
		sender.Send(false)
	default:
		s.putChunkLocked(blob, chunk)
		sender.Send(true)
	}
	return receiver
}

// PutChunk seeds a chunk.
func (s *Store) PutChunk(blob ids.ID, chunk *message.Chunk) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.putChunkLocked(blob, chunk)
}

func (s *Store) putChunkLocked(blob ids.ID, chunk *message.Chunk) {
	byIndex, ok := s.chunks[blob]
	if !ok {
		byIndex = make(map[message.ValidatorIndex]*message.Chunk)
		s.chunks[blob] = byIndex
	}
	byIndex[chunk.Index] = chunk
}

// PutData seeds a blob's full data.
func (s *Store) PutData(blob ids.ID, data []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.data[blob] = data
}

// Chunk returns a stored chunk, or nil.
func (s *Store) Chunk(blob ids.ID, index message.ValidatorIndex) *message.Chunk {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.chunks[blob][index]
}
