// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"

	"github.com/luxfi/ids"

	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
)

// Store is the availability storage collaborator. Every call returns a
// one-shot receiver; storage signals internal failure by dropping the
// sender rather than delivering an error value.
type Store interface {
	// QueryChunk asks for one stored chunk of a blob. A nil chunk means
	// the chunk is not stored.
	QueryChunk(ctx context.Context, blob ids.ID, index message.ValidatorIndex) *oneshot.Receiver[*message.Chunk]

	// QueryData asks for a blob's full reassembled data. Nil means the
	// blob is not available.
	QueryData(ctx context.Context, blob ids.ID) *oneshot.Receiver[[]byte]

	// StoreChunk hands a fetched chunk over for storage. The reply
	// reports whether the chunk was accepted.
	StoreChunk(ctx context.Context, blob ids.ID, chunk *message.Chunk) *oneshot.Receiver[bool]
}
