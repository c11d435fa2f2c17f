// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/availability/message"
)

// Message is a unit of subsystem work. Exactly one field is set.
type Message struct {
	ActiveHeads  *ActiveHeadsUpdate
	ChunkRequest *InboundChunkRequest
	DataRequest  *InboundDataRequest
}

// ActiveHeadsUpdate reports anchors that entered or left the active set.
// Chunks are fetched for every pending blob reachable from an activated
// anchor; deactivated anchors cancel the fetches they justified.
type ActiveHeadsUpdate struct {
	Activated   []ids.ID
	Deactivated []ids.ID
}

// InboundChunkRequest asks for this node's chunk of a blob on behalf of
// a remote peer. A zero Deadline means the peer waits indefinitely.
type InboundChunkRequest struct {
	NodeID    ids.NodeID
	RequestID uint32
	Deadline  time.Time
	Blob      ids.ID
	Index     message.ValidatorIndex
}

// InboundDataRequest asks for a blob's full reassembled data on behalf
// of a remote peer. A zero Deadline means the peer waits indefinitely.
type InboundDataRequest struct {
	NodeID    ids.NodeID
	RequestID uint32
	Deadline  time.Time
	Blob      ids.ID
}
