// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/luxfi/ids"

	"github.com/luxfi/availability"
	"github.com/luxfi/availability/message"
)

// HandlerFunc answers one request on behalf of a peer.
type HandlerFunc func(ctx context.Context, requestBytes []byte) ([]byte, *message.AppError)

// ChunkServer returns a HandlerFunc that serves chunks out of [chunks],
// answering absent indices with an absent chunk response.
func ChunkServer(t *testing.T, chunks map[message.ValidatorIndex]*message.Chunk) HandlerFunc {
	return func(_ context.Context, requestBytes []byte) ([]byte, *message.AppError) {
		request, err := message.ParseRequest(requestBytes)
		if err != nil || request.Chunk == nil {
			return nil, message.ErrBadRequest
		}
		responseBytes, err := message.MarshalChunkResponse(&message.ChunkResponse{
			Chunk: chunks[request.Chunk.Index],
		})
		if err != nil {
			t.Errorf("marshaling chunk response: %v", err)
			return nil, message.ErrUnexpected
		}
		return responseBytes, nil
	}
}

var _ availability.Client = (*Client)(nil)

// Client is a test implementation of availability.Client that routes
// requests to per-node handlers. Responses come back on new goroutines,
// the way a real network delivers them. Set RequestF to replace the
// routing wholesale.
type Client struct {
	T     *testing.T
	Peers map[ids.NodeID]HandlerFunc

	RequestF func(ctx context.Context, nodeID ids.NodeID, request []byte, onResponse availability.ResponseCallback) error
}

func (c *Client) Request(ctx context.Context, nodeID ids.NodeID, request []byte, onResponse availability.ResponseCallback) error {
	if c.RequestF != nil {
		return c.RequestF(ctx, nodeID, request, onResponse)
	}

	handler, ok := c.Peers[nodeID]
	if !ok {
		return fmt.Errorf("%s is not connected", nodeID)
	}
	go func() {
		responseBytes, appErr := handler(ctx, request)
		if appErr != nil {
			onResponse(ctx, nodeID, nil, appErr)
			return
		}
		onResponse(ctx, nodeID, responseBytes, nil)
	}()
	return nil
}

// SentResponse is one response recorded by Sender.
type SentResponse struct {
	NodeID    ids.NodeID
	RequestID uint32
	Bytes     []byte
}

// SentError is one application error recorded by Sender.
type SentError struct {
	NodeID    ids.NodeID
	RequestID uint32
	Code      int32
	Message   string
}

var _ availability.Sender = (*Sender)(nil)

// Sender is a test implementation of availability.Sender that records
// everything sent. Set the function fields to customize behavior.
type Sender struct {
	lock      sync.Mutex
	responses []SentResponse
	errors    []SentError

	SendResponseF func(context.Context, ids.NodeID, uint32, []byte) error
	SendErrorF    func(context.Context, ids.NodeID, uint32, int32, string) error
}

func (s *Sender) SendResponse(ctx context.Context, nodeID ids.NodeID, requestID uint32, response []byte) error {
	if s.SendResponseF != nil {
		return s.SendResponseF(ctx, nodeID, requestID, response)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.responses = append(s.responses, SentResponse{
		NodeID:    nodeID,
		RequestID: requestID,
		Bytes:     response,
	})
	return nil
}

func (s *Sender) SendError(ctx context.Context, nodeID ids.NodeID, requestID uint32, errorCode int32, errorMessage string) error {
	if s.SendErrorF != nil {
		return s.SendErrorF(ctx, nodeID, requestID, errorCode, errorMessage)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.errors = append(s.errors, SentError{
		NodeID:    nodeID,
		RequestID: requestID,
		Code:      errorCode,
		Message:   errorMessage,
	})
	return nil
}

// Responses returns a copy of the recorded responses.
func (s *Sender) Responses() []SentResponse {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]SentResponse(nil), s.responses...)
}

// Errors returns a copy of the recorded application errors.
func (s *Sender) Errors() []SentError {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]SentError(nil), s.errors...)
}

// BadProvider is one report recorded by Reporter.
type BadProvider struct {
	NodeID ids.NodeID
	Blob   ids.ID
}

var _ availability.Reporter = (*Reporter)(nil)

// Reporter is a test implementation of availability.Reporter that
// records every report.
type Reporter struct {
	lock    sync.Mutex
	reports []BadProvider
}

func (r *Reporter) ReportBadProvider(nodeID ids.NodeID, blob ids.ID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.reports = append(r.reports, BadProvider{NodeID: nodeID, Blob: blob})
}

// Reports returns a copy of the recorded reports.
func (r *Reporter) Reports() []BadProvider {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]BadProvider(nil), r.reports...)
}
