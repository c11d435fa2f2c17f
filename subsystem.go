// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"
	"time"

	"github.com/luxfi/codec/jsonrpc"
	validators "github.com/luxfi/consensus/validator"
	consensusversion "github.com/luxfi/consensus/version"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/vm/utils/timer/mockable"

	"github.com/luxfi/availability/message"
)

var _ validators.Connector = (*Subsystem)(nil)

// Config configures a Subsystem.
type Config struct {
	Log        log.Logger
	Registerer metric.Registerer
	Namespace  string
	Clock      mockable.Clock

	NodeID  ids.NodeID
	Store   Store
	Runtime RuntimeAPI
	Client  Client
	Sender  Sender

	// Reporter receives bad-provider reports. Defaults to NoOpReporter.
	Reporter Reporter
	// Spawner runs fetch task goroutines. Defaults to an owned
	// TaskGroup that Run winds down on exit.
	Spawner Spawner
	// Throttler bounds per-peer request handling. Defaults to a token
	// bucket at DefaultThrottleRate.
	Throttler Throttler

	// ValidatorsOnly restricts chunk and data serving to validators of
	// the current session.
	ValidatorsOnly bool

	MailboxSize    int
	CachedSessions int
	FetchLimit     int64
	FetchTimeout   time.Duration
}

// Subsystem fetches this node's chunk of every pending blob and serves
// chunks and full data to peers. All mutable state belongs to the
// goroutine running Run; the exported methods only parse, queue, and
// snapshot.
type Subsystem struct {
	log     log.Logger
	metrics *Metrics
	clock   mockable.Clock

	nodeID  ids.NodeID
	sender  Sender
	mailbox *Mailbox
	tracker *ProviderTracker
	budget  *FetchBudget
	spawner Spawner
	// ownGroup is set when the default spawner is used, so Run can wait
	// for fetch tasks on the way out.
	ownGroup *TaskGroup

	requester *requester
	responder *responder
}

func New(config Config) (*Subsystem, error) {
	m, err := NewMetrics(config.Registerer, config.Namespace)
	if err != nil {
		return nil, err
	}
	tracker, err := NewProviderTracker(config.Log, config.Namespace, config.Registerer)
	if err != nil {
		return nil, err
	}

	if config.Reporter == nil {
		config.Reporter = NoOpReporter{}
	}
	throttler := config.Throttler
	if throttler == nil {
		throttler = NewTokenBucketThrottler(DefaultThrottleRate, DefaultThrottleBurst)
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}

	s := &Subsystem{
		log:     config.Log,
		metrics: m,
		clock:   config.Clock,
		nodeID:  config.NodeID,
		sender:  config.Sender,
		mailbox: NewMailbox(config.MailboxSize),
		tracker: tracker,
		budget:  NewFetchBudget(config.FetchLimit),
		spawner: config.Spawner,
	}
	if s.spawner == nil {
		s.ownGroup = NewTaskGroup(context.Background())
		s.spawner = s.ownGroup
	}

	s.requester = newRequester(&config, m, tracker, s.budget, s.spawner, &s.clock)
	s.responder = newResponder(&config, m, throttler, &s.clock)
	return s, nil
}

// Run drives the subsystem until a fatal failure or until ctx is
// canceled. Non-fatal failures are logged and absorbed; the returned
// error is the fatal failure, or ctx.Err().
func (s *Subsystem) Run(ctx context.Context) error {
	defer func() {
		s.requester.shutdown()
		if s.ownGroup != nil {
			s.ownGroup.Shutdown()
		}
	}()

	for {
		s.metrics.MailboxDepth.Set(float64(s.mailbox.Depth()))

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.mailbox.Done():
			return s.absorb(FromFatal(&Fatal{Kind: FatalIncomingMessageChannel}), "message loop")

		case msg := <-s.mailbox.C():
			if err := s.absorb(s.dispatch(ctx, msg), "message loop"); err != nil {
				return err
			}

		case report, ok := <-s.requester.reports:
			if !ok {
				return s.absorb(FromFatal(&Fatal{Kind: FatalRequesterExhausted}), "fetch reports")
			}
			if err := s.absorb(s.requester.handleReport(ctx, report), "fetch reports"); err != nil {
				return err
			}
		}
	}
}

func (s *Subsystem) dispatch(ctx context.Context, msg Message) error {
	switch {
	case msg.ActiveHeads != nil:
		s.metrics.InboundMessages.With(metric.Labels{opLabel: activeHeadsOp}).Inc()
		if n := len(msg.ActiveHeads.Activated); n > 0 {
			s.responder.updateAnchor(msg.ActiveHeads.Activated[n-1])
		}
		return s.requester.update(ctx, msg.ActiveHeads)

	case msg.ChunkRequest != nil:
		s.metrics.InboundMessages.With(metric.Labels{opLabel: chunkRequestOp}).Inc()
		return s.responder.serveChunk(ctx, msg.ChunkRequest)

	case msg.DataRequest != nil:
		s.metrics.InboundMessages.With(metric.Labels{opLabel: dataRequestOp}).Inc()
		return s.responder.serveData(ctx, msg.DataRequest)

	default:
		return nil
	}
}

// absorb runs one unit's result through the error sink, counting
// whatever the sink swallows.
func (s *Subsystem) absorb(err error, label string) error {
	if kind, ok := nonFatalKind(err); ok {
		s.metrics.ErrorAbsorbed(kind.String())
	}
	return LogError(s.log, err, label)
}

// UpdateActiveHeads queues an active heads update, blocking while the
// mailbox is full.
func (s *Subsystem) UpdateActiveHeads(ctx context.Context, update *ActiveHeadsUpdate) error {
	return s.mailbox.Push(ctx, Message{ActiveHeads: update})
}

// AppRequest parses an inbound request and queues it for the subsystem
// goroutine. Malformed requests and a full mailbox are answered with an
// application error right away.
func (s *Subsystem) AppRequest(ctx context.Context, nodeID ids.NodeID, requestID uint32, deadline time.Time, requestBytes []byte) error {
	request, err := message.ParseRequest(requestBytes)
	if err != nil {
		s.log.Debug("dropping malformed request",
			log.Stringer("nodeID", nodeID),
			log.Err(err),
		)
		return s.sender.SendError(ctx, nodeID, requestID, message.ErrBadRequest.Code, message.ErrBadRequest.Message)
	}

	var msg Message
	switch {
	case request.Chunk != nil:
		msg.ChunkRequest = &InboundChunkRequest{
			NodeID:    nodeID,
			RequestID: requestID,
			Deadline:  deadline,
			Blob:      request.Chunk.Blob,
			Index:     request.Chunk.Index,
		}
	case request.Data != nil:
		msg.DataRequest = &InboundDataRequest{
			NodeID:    nodeID,
			RequestID: requestID,
			Deadline:  deadline,
			Blob:      request.Data.Blob,
		}
	default:
		return nil
	}

	if !s.mailbox.TryPush(msg) {
		s.log.Debug("dropping request",
			log.Stringer("nodeID", nodeID),
			log.UserString("reason", "mailbox full"),
		)
		return s.sender.SendError(ctx, nodeID, requestID, message.ErrThrottled.Code, message.ErrThrottled.Message)
	}
	return nil
}

// Connected is a no-op; providers are tracked once they answer a
// request.
func (*Subsystem) Connected(context.Context, ids.NodeID, *consensusversion.Application) error {
	return nil
}

// Disconnected drops the peer's provider history.
func (s *Subsystem) Disconnected(_ context.Context, nodeID ids.NodeID) error {
	s.tracker.Forget(nodeID)
	return nil
}

// Close closes the subsystem inbox. A running Run exits with the
// closed-inbox fatal.
func (s *Subsystem) Close() {
	s.mailbox.Close()
}

// Info is a point-in-time snapshot of subsystem state.
type Info struct {
	NodeID              ids.NodeID  `json:"nodeID"`
	LiveFetches         json.Uint32 `json:"liveFetches"`
	MailboxDepth        json.Uint32 `json:"mailboxDepth"`
	MailboxHighWater    json.Uint32 `json:"mailboxHighWater"`
	MailboxDropped      json.Uint32 `json:"mailboxDropped"`
	ResponsiveProviders json.Uint32 `json:"responsiveProviders"`
}

func (s *Subsystem) Info() Info {
	stats := s.mailbox.Stats()
	return Info{
		NodeID:              s.nodeID,
		LiveFetches:         json.Uint32(s.budget.Live()),
		MailboxDepth:        json.Uint32(stats.Depth),
		MailboxHighWater:    json.Uint32(stats.HighWater),
		MailboxDropped:      json.Uint32(stats.Dropped),
		ResponsiveProviders: json.Uint32(s.tracker.Responsive()),
	}
}
