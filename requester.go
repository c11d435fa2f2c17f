// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/vm/utils/timer/mockable"

	"github.com/luxfi/availability/message"
)

// reportBuffer is the capacity of the fetch report channel. Tasks block
// on a full channel, so the buffer only smooths bursts.
const reportBuffer = 64

// Reporter receives reports about validators that served chunks failing
// verification.
type Reporter interface {
	ReportBadProvider(nodeID ids.NodeID, blob ids.ID)
}

var _ Reporter = (*NoOpReporter)(nil)

// NoOpReporter drops all reports.
type NoOpReporter struct{}

func (NoOpReporter) ReportBadProvider(ids.NodeID, ids.ID) {}

// fetchEntry tracks one blob's fetch. cancel is nil while the fetch
// waits for a budget slot.
type fetchEntry struct {
	task   *fetchTask
	liveIn set.Set[ids.ID]
	cancel context.CancelFunc
}

// requester drives chunk fetching for every pending blob reachable from
// an active anchor. Its state belongs to the subsystem goroutine; fetch
// tasks run on their own goroutines and come back over reports.
type requester struct {
	log      log.Logger
	metrics  *Metrics
	client   Client
	store    Store
	runtime  RuntimeAPI
	reporter Reporter
	spawner  Spawner
	tracker  *ProviderTracker
	budget   *FetchBudget
	clock    *mockable.Clock
	timeout  time.Duration

	sessions *sessionCache
	fetches  map[ids.ID]*fetchEntry
	// queued holds blobs whose fetch is waiting for a budget slot,
	// oldest first.
	queued  []ids.ID
	reports chan fetchReport
}

func newRequester(
	config *Config,
	metrics *Metrics,
	tracker *ProviderTracker,
	budget *FetchBudget,
	spawner Spawner,
	clock *mockable.Clock,
) *requester {
	return &requester{
		log:      config.Log,
		metrics:  metrics,
		client:   config.Client,
		store:    config.Store,
		runtime:  config.Runtime,
		reporter: config.Reporter,
		spawner:  spawner,
		tracker:  tracker,
		budget:   budget,
		clock:    clock,
		timeout:  config.FetchTimeout,
		sessions: newSessionCache(config.Runtime, config.NodeID, config.CachedSessions),
		fetches:  make(map[ids.ID]*fetchEntry),
		reports:  make(chan fetchReport, reportBuffer),
	}
}

// update reacts to an active heads update. Deactivations are processed
// first so their budget slots are free for new fetches.
func (r *requester) update(ctx context.Context, heads *ActiveHeadsUpdate) error {
	for _, anchor := range heads.Deactivated {
		if err := r.deactivate(ctx, anchor); err != nil {
			return err
		}
	}
	for _, anchor := range heads.Activated {
		if err := r.activate(ctx, anchor); err != nil {
			return err
		}
	}
	return nil
}

func (r *requester) deactivate(ctx context.Context, anchor ids.ID) error {
	for blob, entry := range r.fetches {
		entry.liveIn.Remove(anchor)
		if entry.liveIn.Len() == 0 {
			r.cancelFetch(blob, entry)
		}
	}
	// Canceled fetches may have freed budget.
	return r.startQueued(ctx)
}

func (r *requester) activate(ctx context.Context, anchor ids.ID) error {
	index, info, err := r.sessions.sessionAt(ctx, anchor)
	if err != nil {
		return err
	}
	if !info.IsValidator {
		return FromNonFatal(&NonFatal{
			Kind:    NonFatalNotAValidator,
			Session: index,
		})
	}

	pending, err := RecvRuntime(ctx, r.runtime.PendingBlobs(ctx, anchor))
	if err != nil {
		return err
	}
	for _, blob := range pending {
		if err := r.startFetch(ctx, anchor, index, info, blob); err != nil {
			return err
		}
	}
	return nil
}

// startFetch begins fetching our chunk of one pending blob, or extends
// the lifetime of an already running fetch.
func (r *requester) startFetch(
	ctx context.Context,
	anchor ids.ID,
	session message.SessionIndex,
	info *SessionInfo,
	pending PendingBlob,
) error {
	if entry, ok := r.fetches[pending.Blob]; ok {
		entry.liveIn.Add(anchor)
		return nil
	}

	byNode := make(map[ids.NodeID]message.ValidatorIndex, len(pending.Providers))
	nodeIDs := make([]ids.NodeID, 0, len(pending.Providers))
	for _, validatorIndex := range pending.Providers {
		if int(validatorIndex) >= len(info.Validators) {
			return FromNonFatal(&NonFatal{
				Kind:    NonFatalInvalidValidatorIndex,
				Session: session,
				Index:   validatorIndex,
			})
		}
		if validatorIndex == info.OurIndex {
			// We cannot serve ourselves.
			continue
		}
		nodeID := info.Validators[validatorIndex]
		byNode[nodeID] = validatorIndex
		nodeIDs = append(nodeIDs, nodeID)
	}

	providers := make([]provider, 0, len(nodeIDs))
	for _, nodeID := range r.tracker.Order(nodeIDs) {
		providers = append(providers, provider{nodeID: nodeID, index: byNode[nodeID]})
	}

	entry := &fetchEntry{
		task: &fetchTask{
			blob:      pending.Blob,
			session:   session,
			ourIndex:  info.OurIndex,
			providers: providers,
			request: message.MarshalChunkRequest(&message.ChunkRequest{
				Blob:  pending.Blob,
				Index: info.OurIndex,
			}),
			client:  r.client,
			store:   r.store,
			tracker: r.tracker,
			metrics: r.metrics,
			clock:   r.clock,
			timeout: r.timeout,
			log:     r.log,
			reports: r.reports,
		},
		liveIn: set.Of(anchor),
	}
	r.fetches[pending.Blob] = entry

	if !r.budget.TryAcquire() {
		r.queued = append(r.queued, pending.Blob)
		return nil
	}
	return r.spawnFetch(ctx, pending.Blob, entry)
}

// spawnFetch starts the fetch task goroutine. The budget slot must
// already be held.
func (r *requester) spawnFetch(ctx context.Context, blob ids.ID, entry *fetchEntry) error {
	taskCtx, cancel := context.WithCancel(ctx)
	entry.cancel = cancel

	name := fmt.Sprintf("fetch-%s", blob)
	if err := r.spawner.Spawn(name, func(context.Context) {
		entry.task.run(taskCtx)
	}); err != nil {
		cancel()
		delete(r.fetches, blob)
		r.budget.Release()
		r.metrics.LiveFetches.Set(float64(r.budget.Live()))
		return FromFatal(&Fatal{Kind: FatalSpawnTask, Cause: err})
	}
	r.metrics.LiveFetches.Set(float64(r.budget.Live()))
	return nil
}

// startQueued starts waiting fetches while budget slots are free.
func (r *requester) startQueued(ctx context.Context) error {
	for len(r.queued) > 0 {
		if !r.budget.TryAcquire() {
			return nil
		}
		blob := r.queued[0]
		r.queued = r.queued[1:]

		entry, ok := r.fetches[blob]
		if !ok || entry.cancel != nil {
			// Canceled, or already running. Give the slot back.
			r.budget.Release()
			continue
		}
		if err := r.spawnFetch(ctx, blob, entry); err != nil {
			return err
		}
	}
	return nil
}

// cancelFetch stops one fetch and forgets it.
func (r *requester) cancelFetch(blob ids.ID, entry *fetchEntry) {
	delete(r.fetches, blob)
	if entry.cancel != nil {
		entry.cancel()
		r.budget.Release()
		r.metrics.LiveFetches.Set(float64(r.budget.Live()))
		return
	}
	// Still queued; drop the queue entry so it is never started.
	for i, queued := range r.queued {
		if queued == blob {
			r.queued = append(r.queued[:i], r.queued[i+1:]...)
			break
		}
	}
}

// handleReport finishes one fetch. Budget moves to the next queued
// fetch, bad providers are reported, and any failure classification is
// handed back for the error sink.
func (r *requester) handleReport(ctx context.Context, report fetchReport) error {
	entry, ok := r.fetches[report.blob]
	if !ok {
		// Canceled before the report arrived.
		return nil
	}
	delete(r.fetches, report.blob)
	if entry.cancel != nil {
		entry.cancel()
	}
	r.budget.Release()
	r.metrics.LiveFetches.Set(float64(r.budget.Live()))

	err := report.err
	for _, badIndex := range report.bad {
		if reportErr := r.reportBad(report.session, badIndex, report.blob); reportErr != nil && err == nil {
			err = reportErr
		}
	}

	if spawnErr := r.startQueued(ctx); spawnErr != nil {
		return spawnErr
	}
	return err
}

// reportBad resolves a validator index against its session and hands
// the node to the reporter. The session can have been evicted between
// fetch start and report.
func (r *requester) reportBad(session message.SessionIndex, index message.ValidatorIndex, blob ids.ID) error {
	info, ok := r.sessions.cached(session)
	if !ok {
		return FromNonFatal(&NonFatal{
			Kind:    NonFatalNoSuchCachedSession,
			Session: session,
		})
	}
	if int(index) >= len(info.Validators) {
		return FromNonFatal(&NonFatal{
			Kind:    NonFatalInvalidValidatorIndex,
			Session: session,
			Index:   index,
		})
	}
	r.reporter.ReportBadProvider(info.Validators[index], blob)
	return nil
}

// shutdown cancels every live fetch.
func (r *requester) shutdown() {
	for blob, entry := range r.fetches {
		r.cancelFetch(blob, entry)
	}
}
