// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package message defines the availability protocol vocabulary: the
// requests and responses exchanged between validators, the application
// error codes reported across subsystem boundaries, and the chunk proof
// helpers. A blob is identified by the merkle root of its erasure-coded
// chunks, and a chunk's index is the index of the validator responsible
// for holding it.
package message

import (
	"fmt"

	"github.com/luxfi/ids"
)

// SessionIndex identifies an era of the validator set.
type SessionIndex uint64

// ValidatorIndex is a validator's position in its session's validator
// list. The chunk with this index is the chunk that validator holds.
type ValidatorIndex uint32

// Chunk is one erasure-coded piece of a blob together with the proof that
// it belongs to the blob's chunk root.
type Chunk struct {
	Index ValidatorIndex
	Data  []byte
	Proof []ids.ID
}

// ChunkRequest asks a validator for one chunk of one blob.
type ChunkRequest struct {
	Blob  ids.ID
	Index ValidatorIndex
}

// ChunkResponse answers a ChunkRequest. A nil Chunk means the responder
// does not have the requested chunk.
type ChunkResponse struct {
	Chunk *Chunk
}

// DataRequest asks a validator for the full reassembled data of a blob.
type DataRequest struct {
	Blob ids.ID
}

// DataResponse answers a DataRequest. Nil Data means the responder does
// not have the blob.
type DataResponse struct {
	Data []byte
}

// AppError is an application-level error reported by a collaborator,
// either a remote peer or a sibling subsystem on this node.
type AppError struct {
	Code    int32
	Message string
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("app error %d: %s", e.Code, e.Message)
}

var (
	// ErrUnexpected should be used to indicate that a request failed due
	// to a generic error
	ErrUnexpected = &AppError{
		Code:    -1,
		Message: "unexpected error",
	}
	// ErrBadRequest should be used to indicate that a request could not
	// be parsed
	ErrBadRequest = &AppError{
		Code:    -2,
		Message: "bad request",
	}
	// ErrNotValidator should be used to indicate that a request failed
	// due to the requesting peer not being a validator
	ErrNotValidator = &AppError{
		Code:    -3,
		Message: "not a validator",
	}
	// ErrThrottled should be used to indicate that a request failed due
	// to the requesting peer exceeding a rate limit
	ErrThrottled = &AppError{
		Code:    -4,
		Message: "throttled",
	}
)

// APIReply is the payload carried on one-shot reply channels from the
// runtime API: either a value or the application error the API reported.
type APIReply[V any] struct {
	Value V
	Err   *AppError
}
