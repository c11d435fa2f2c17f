// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"
	"time"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/vm/utils/timer/mockable"

	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
)

// DefaultFetchTimeout bounds one provider's chance to answer a chunk
// request before the task moves to the next provider.
const DefaultFetchTimeout = 10 * time.Second

// provider is one validator that holds the full blob.
type provider struct {
	nodeID ids.NodeID
	index  message.ValidatorIndex
}

// fetchReport ends a fetch task. bad lists providers whose chunks
// failed verification. err carries the classification of the last
// failure when the task ended without a stored chunk.
type fetchReport struct {
	blob    ids.ID
	session message.SessionIndex
	bad     []message.ValidatorIndex
	err     error
}

type fetchResponse struct {
	bytes []byte
	err   error
}

// fetchTask retrieves this node's chunk of one blob. Providers are
// tried in order until one serves a chunk that verifies against the
// blob root; the task then hands the chunk to storage and reports back.
type fetchTask struct {
	blob      ids.ID
	session   message.SessionIndex
	ourIndex  message.ValidatorIndex
	providers []provider
	request   []byte

	client  Client
	store   Store
	tracker *ProviderTracker
	metrics *Metrics
	clock   *mockable.Clock
	timeout time.Duration
	log     log.Logger

	reports chan<- fetchReport
}

func (t *fetchTask) run(ctx context.Context) {
	var (
		start   = t.clock.Time()
		report  = fetchReport{blob: t.blob, session: t.session}
		fetched bool
	)

	for _, p := range t.providers {
		if ctx.Err() != nil {
			t.metrics.FetchEnded(canceledLabel)
			return
		}

		sentAt := time.Now()
		chunk, err := t.fetchFrom(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				t.metrics.FetchEnded(canceledLabel)
				return
			}
			report.err = err

			kind, _ := nonFatalKind(err)
			switch kind {
			case NonFatalNoSuchChunk:
				// An honest answer; the provider just lacks the chunk.
				t.tracker.RegisterResponse(p.nodeID, 0)
				t.log.Debug("provider has no chunk",
					log.Stringer("blob", t.blob),
					log.Stringer("nodeID", p.nodeID),
				)
			case NonFatalUnexpectedChunk:
				report.bad = append(report.bad, p.index)
				t.tracker.RegisterFailure(p.nodeID)
				t.log.Debug("provider served invalid chunk",
					log.Stringer("blob", t.blob),
					log.Stringer("nodeID", p.nodeID),
					log.Uint32("validatorIndex", uint32(p.index)),
				)
			default:
				t.tracker.RegisterFailure(p.nodeID)
				t.log.Debug("chunk fetch failed",
					log.Stringer("blob", t.blob),
					log.Stringer("nodeID", p.nodeID),
					log.Err(err),
				)
			}
			continue
		}

		elapsed := time.Since(sentAt)
		if elapsed <= 0 {
			elapsed = time.Millisecond
		}
		t.tracker.RegisterResponse(p.nodeID, float64(len(chunk.Data))/elapsed.Seconds())

		if err := t.storeChunk(ctx, chunk); err != nil {
			// Storage trouble is not the provider's fault. Give up on
			// the whole task rather than fetch the chunk again.
			report.err = err
			break
		}

		report.err = nil
		fetched = true
		t.metrics.FetchSucceeded(len(chunk.Data), t.clock.Time().Sub(start))
		break
	}

	if !fetched {
		if kind, ok := nonFatalKind(report.err); !ok || kind == NonFatalNoSuchChunk {
			t.metrics.FetchEnded(exhaustedLabel)
		} else {
			t.metrics.FetchEnded(failedLabel)
		}
	}

	select {
	case t.reports <- report:
	case <-ctx.Done():
	}
}

// fetchFrom requests our chunk from one provider and verifies whatever
// comes back.
func (t *fetchTask) fetchFrom(ctx context.Context, p provider) (*message.Chunk, error) {
	reqCtx, cancel := context.WithDeadline(ctx, t.clock.Time().Add(t.timeout))
	defer cancel()

	sender, receiver := oneshot.New[fetchResponse]()
	err := t.client.Request(reqCtx, p.nodeID, t.request, func(_ context.Context, _ ids.NodeID, responseBytes []byte, err error) {
		sender.Send(fetchResponse{bytes: responseBytes, err: err})
	})
	if err != nil {
		return nil, FromNonFatal(&NonFatal{Kind: NonFatalUtilRequest, Cause: err})
	}

	response, err := receiver.Recv(reqCtx)
	if err != nil {
		return nil, FromNonFatal(&NonFatal{Kind: NonFatalFetchChunk, Cause: err})
	}
	if response.err != nil {
		return nil, FromNonFatal(&NonFatal{Kind: NonFatalFetchChunk, Cause: response.err})
	}

	parsed, err := message.ParseChunkResponse(response.bytes)
	if err != nil {
		return nil, FromNonFatal(&NonFatal{Kind: NonFatalFetchChunk, Cause: err})
	}
	if parsed.Chunk == nil {
		return nil, FromNonFatal(&NonFatal{Kind: NonFatalNoSuchChunk})
	}

	chunk := parsed.Chunk
	if chunk.Index != t.ourIndex || !message.VerifyChunk(t.blob, chunk) {
		return nil, FromNonFatal(&NonFatal{
			Kind:  NonFatalUnexpectedChunk,
			Index: chunk.Index,
		})
	}
	return chunk, nil
}

func (t *fetchTask) storeChunk(ctx context.Context, chunk *message.Chunk) error {
	stored, err := t.store.StoreChunk(ctx, t.blob, chunk).Recv(ctx)
	if err != nil {
		return FromNonFatal(&NonFatal{Kind: NonFatalQueryChunkChannel, Cause: err})
	}
	if !stored {
		return FromNonFatal(&NonFatal{Kind: NonFatalStoreChunk})
	}
	return nil
}
