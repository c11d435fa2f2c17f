// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"

	"github.com/luxfi/ids"
)

// Sender sends replies to other nodes. It is implemented by the node's
// networking layer.
type Sender interface {
	// SendResponse sends a response to a previous request
	SendResponse(ctx context.Context, nodeID ids.NodeID, requestID uint32, response []byte) error

	// SendError sends an error response to a previous request
	SendError(ctx context.Context, nodeID ids.NodeID, requestID uint32, errorCode int32, errorMessage string) error
}

// ResponseCallback is called upon receiving a response for a request
// issued through Client.
// Callers should check [err] to see whether the request failed or not.
type ResponseCallback func(
	ctx context.Context,
	nodeID ids.NodeID,
	responseBytes []byte,
	err error,
)

// Client issues requests to remote validators. Implementations invoke the
// callback exactly once per accepted request, with either the response or
// the failure, including timeouts.
type Client interface {
	Request(ctx context.Context, nodeID ids.NodeID, request []byte, onResponse ResponseCallback) error
}
