// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"
	"time"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/vm/utils/timer/mockable"

	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/sessions"
)

// responder answers chunk and data requests from peers. Its state
// belongs to the subsystem goroutine.
type responder struct {
	log       log.Logger
	metrics   *Metrics
	store     Store
	sender    Sender
	throttler Throttler
	clock     *mockable.Clock
	// gate restricts chunk requests to validators of the current
	// session. nil serves everyone.
	gate *sessions.Cache
	// anchor is the most recently activated head, used to resolve the
	// current session for gating. Gating is skipped until the first
	// activation.
	anchor ids.ID
}

func newResponder(config *Config, metrics *Metrics, throttler Throttler, clock *mockable.Clock) *responder {
	var gate *sessions.Cache
	if config.ValidatorsOnly {
		gate = sessions.NewCache(config.Runtime, config.CachedSessions)
	}
	return &responder{
		log:       config.Log,
		metrics:   metrics,
		store:     config.Store,
		sender:    config.Sender,
		throttler: throttler,
		clock:     clock,
		gate:      gate,
	}
}

// expired reports whether the requesting peer has already given up.
func (r *responder) expired(deadline time.Time) bool {
	return !deadline.IsZero() && r.clock.Time().After(deadline)
}

// updateAnchor records the most recently activated head.
func (r *responder) updateAnchor(anchor ids.ID) {
	r.anchor = anchor
}

// serveChunk answers one chunk request.
func (r *responder) serveChunk(ctx context.Context, req *InboundChunkRequest) error {
	if r.expired(req.Deadline) {
		r.metrics.ServedChunks.With(metric.Labels{resultLabel: canceledLabel}).Inc()
		return nil
	}

	allowed, err := r.admit(ctx, req.NodeID, req.RequestID)
	if err != nil || !allowed {
		r.metrics.ServedChunks.With(metric.Labels{resultLabel: refusedLabel}).Inc()
		return err
	}

	chunk, err := r.store.QueryChunk(ctx, req.Blob, req.Index).Recv(ctx)
	if err != nil {
		r.metrics.ServedChunks.With(metric.Labels{resultLabel: failedLabel}).Inc()
		return FromNonFatal(&NonFatal{Kind: NonFatalQueryChunkChannel, Cause: err})
	}

	responseBytes, err := message.MarshalChunkResponse(&message.ChunkResponse{Chunk: chunk})
	if err != nil {
		r.metrics.ServedChunks.With(metric.Labels{resultLabel: failedLabel}).Inc()
		return FromNonFatal(&NonFatal{Kind: NonFatalSendResponse, Cause: err})
	}
	if err := r.sender.SendResponse(ctx, req.NodeID, req.RequestID, responseBytes); err != nil {
		r.metrics.ServedChunks.With(metric.Labels{resultLabel: failedLabel}).Inc()
		return FromNonFatal(&NonFatal{Kind: NonFatalSendResponse, Cause: err})
	}

	if chunk == nil {
		r.metrics.ServedChunks.With(metric.Labels{resultLabel: missingLabel}).Inc()
	} else {
		r.metrics.ServedChunks.With(metric.Labels{resultLabel: succeededLabel}).Inc()
	}
	return nil
}

// serveData answers one full-data request.
func (r *responder) serveData(ctx context.Context, req *InboundDataRequest) error {
	if r.expired(req.Deadline) {
		r.metrics.ServedData.With(metric.Labels{resultLabel: canceledLabel}).Inc()
		return nil
	}

	allowed, err := r.admit(ctx, req.NodeID, req.RequestID)
	if err != nil || !allowed {
		r.metrics.ServedData.With(metric.Labels{resultLabel: refusedLabel}).Inc()
		return err
	}

	data, err := r.store.QueryData(ctx, req.Blob).Recv(ctx)
	if err != nil {
		r.metrics.ServedData.With(metric.Labels{resultLabel: failedLabel}).Inc()
		return FromNonFatal(&NonFatal{Kind: NonFatalQueryDataChannel, Cause: err})
	}

	responseBytes, err := message.MarshalDataResponse(&message.DataResponse{Data: data})
	if err != nil {
		r.metrics.ServedData.With(metric.Labels{resultLabel: failedLabel}).Inc()
		return FromNonFatal(&NonFatal{Kind: NonFatalSendResponse, Cause: err})
	}
	if err := r.sender.SendResponse(ctx, req.NodeID, req.RequestID, responseBytes); err != nil {
		r.metrics.ServedData.With(metric.Labels{resultLabel: failedLabel}).Inc()
		return FromNonFatal(&NonFatal{Kind: NonFatalSendResponse, Cause: err})
	}

	if data == nil {
		r.metrics.ServedData.With(metric.Labels{resultLabel: missingLabel}).Inc()
	} else {
		r.metrics.ServedData.With(metric.Labels{resultLabel: succeededLabel}).Inc()
	}
	return nil
}

// admit applies throttling and validator gating. A refusal is answered
// with an application error and reported as allowed=false with a nil
// error; only send failures and session lookups produce errors.
func (r *responder) admit(ctx context.Context, nodeID ids.NodeID, requestID uint32) (bool, error) {
	if !r.throttler.Handle(nodeID) {
		r.log.Debug("dropping request",
			log.Stringer("nodeID", nodeID),
			log.UserString("reason", "throttled"),
		)
		return false, r.refuse(ctx, nodeID, requestID, message.ErrThrottled)
	}

	if r.gate == nil || r.anchor == ids.Empty {
		return true, nil
	}

	validators, err := r.gate.ValidatorsAt(ctx, r.anchor)
	if err != nil {
		return false, FromSessions(err)
	}
	if !validators.Contains(nodeID) {
		r.log.Debug("dropping request",
			log.Stringer("nodeID", nodeID),
			log.UserString("reason", "not a validator"),
		)
		return false, r.refuse(ctx, nodeID, requestID, message.ErrNotValidator)
	}
	return true, nil
}

func (r *responder) refuse(ctx context.Context, nodeID ids.NodeID, requestID uint32, appErr *message.AppError) error {
	if err := r.sender.SendError(ctx, nodeID, requestID, appErr.Code, appErr.Message); err != nil {
		return FromNonFatal(&NonFatal{Kind: NonFatalSendResponse, Cause: err})
	}
	return nil
}
