// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"

	"github.com/luxfi/ids"

	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
	"github.com/luxfi/availability/sessions"
)

// RuntimeAPI is the runtime state surface the subsystem queries: session
// membership plus the blobs awaiting distribution. Replies arrive on
// one-shot channels whose senders are dropped only when the API is going
// away.
type RuntimeAPI interface {
	sessions.API

	// PendingBlobs lists the blobs the runtime expects validators to
	// hold chunks of, as of the given anchor.
	PendingBlobs(ctx context.Context, anchor ids.ID) *oneshot.Receiver[message.APIReply[[]PendingBlob]]
}

// PendingBlob is one blob awaiting distribution. Providers are the
// validator indices of the group that backed the blob and already holds
// its data. The blob inherits the session of the anchor it was listed
// under.
type PendingBlob struct {
	Blob      ids.ID
	Providers []message.ValidatorIndex
}
