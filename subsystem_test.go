// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/availability"
	"github.com/luxfi/availability/availmock"
	"github.com/luxfi/availability/availtest"
	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
)

type harness struct {
	config   availability.Config
	store    *availtest.Store
	runtime  *availtest.Runtime
	client   *availtest.Client
	sender   *availtest.Sender
	reporter *availtest.Reporter
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		store:    availtest.NewStore(),
		runtime:  availtest.NewRuntime(),
		client:   &availtest.Client{T: t},
		sender:   &availtest.Sender{},
		reporter: &availtest.Reporter{},
	}
	h.config = availability.Config{
		Log:        log.NewNoOpLogger(),
		Registerer: metric.NewRegistry(),
		NodeID:     ids.GenerateTestNodeID(),
		Store:      h.store,
		Runtime:    h.runtime,
		Client:     h.client,
		Sender:     h.sender,
		Reporter:   h.reporter,
	}
	return h
}

// start builds the subsystem and runs its loop until the test ends.
func (h *harness) start(t *testing.T) (*availability.Subsystem, <-chan error) {
	s, err := availability.New(h.config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()
	t.Cleanup(cancel)
	return s, errCh
}

func awaitExit(t *testing.T, errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("subsystem did not stop")
		return nil
	}
}

func makeBlob(t *testing.T, n int) (ids.ID, []*message.Chunk) {
	raw := make([][]byte, n)
	for i := range raw {
		raw[i] = []byte(fmt.Sprintf("chunk-%d", i))
	}
	root := message.ChunkRoot(raw)
	chunks := make([]*message.Chunk, n)
	for i := range raw {
		proof, err := message.ChunkProof(raw, i)
		require.NoError(t, err)
		chunks[i] = &message.Chunk{
			Index: message.ValidatorIndex(i),
			Data:  raw[i],
			Proof: proof,
		}
	}
	return root, chunks
}

func parseChunk(t *testing.T, responseBytes []byte) *message.Chunk {
	response, err := message.ParseChunkResponse(responseBytes)
	require.NoError(t, err)
	return response.Chunk
}

func TestSubsystemFetchesPendingBlob(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	blob, chunks := makeBlob(t, 4)
	anchor := ids.GenerateTestID()
	first := ids.GenerateTestNodeID()
	second := ids.GenerateTestNodeID()

	h.runtime.SetSession(anchor, 1)
	h.runtime.SetValidators(1, []ids.NodeID{h.config.NodeID, first, second})
	h.runtime.SetPending(anchor, availability.PendingBlob{
		Blob:      blob,
		Providers: []message.ValidatorIndex{1, 2},
	})
	ours := map[message.ValidatorIndex]*message.Chunk{0: chunks[0]}
	h.client.Peers = map[ids.NodeID]availtest.HandlerFunc{
		first:  availtest.ChunkServer(t, ours),
		second: availtest.ChunkServer(t, ours),
	}

	s, _ := h.start(t)
	require.NoError(s.UpdateActiveHeads(context.Background(), &availability.ActiveHeadsUpdate{
		Activated: []ids.ID{anchor},
	}))

	require.Eventually(func() bool {
		return h.store.Chunk(blob, 0) != nil
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(chunks[0], h.store.Chunk(blob, 0))
	require.Empty(h.reporter.Reports())
}

func TestSubsystemReportsBadProvider(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	blob, chunks := makeBlob(t, 4)
	anchor := ids.GenerateTestID()
	liar := ids.GenerateTestNodeID()

	h.runtime.SetSession(anchor, 1)
	h.runtime.SetValidators(1, []ids.NodeID{h.config.NodeID, liar})
	h.runtime.SetPending(anchor, availability.PendingBlob{
		Blob:      blob,
		Providers: []message.ValidatorIndex{1},
	})
	// A real chunk of the blob, but not the one asked for.
	h.client.Peers = map[ids.NodeID]availtest.HandlerFunc{
		liar: availtest.ChunkServer(t, map[message.ValidatorIndex]*message.Chunk{0: chunks[1]}),
	}

	s, _ := h.start(t)
	require.NoError(s.UpdateActiveHeads(context.Background(), &availability.ActiveHeadsUpdate{
		Activated: []ids.ID{anchor},
	}))

	require.Eventually(func() bool {
		return len(h.reporter.Reports()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal([]availtest.BadProvider{{NodeID: liar, Blob: blob}}, h.reporter.Reports())
	require.Nil(h.store.Chunk(blob, 0))
}

func TestSubsystemServesChunk(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	blob, chunks := makeBlob(t, 2)
	h.store.PutChunk(blob, chunks[1])

	s, _ := h.start(t)
	peer := ids.GenerateTestNodeID()
	ctx := context.Background()

	request := message.MarshalChunkRequest(&message.ChunkRequest{Blob: blob, Index: 1})
	require.NoError(s.AppRequest(ctx, peer, 1, time.Time{}, request))

	missing := message.MarshalChunkRequest(&message.ChunkRequest{Blob: ids.GenerateTestID(), Index: 0})
	require.NoError(s.AppRequest(ctx, peer, 2, time.Time{}, missing))

	require.Eventually(func() bool {
		return len(h.sender.Responses()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	responses := h.sender.Responses()
	require.Equal(uint32(1), responses[0].RequestID)
	require.Equal(chunks[1], parseChunk(t, responses[0].Bytes))
	require.Equal(uint32(2), responses[1].RequestID)
	require.Nil(parseChunk(t, responses[1].Bytes))
	require.Empty(h.sender.Errors())
}

func TestSubsystemServesData(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	blob := ids.GenerateTestID()
	data := []byte("the whole blob")
	h.store.PutData(blob, data)

	s, _ := h.start(t)
	request := message.MarshalDataRequest(&message.DataRequest{Blob: blob})
	require.NoError(s.AppRequest(context.Background(), ids.GenerateTestNodeID(), 7, time.Time{}, request))

	require.Eventually(func() bool {
		return len(h.sender.Responses()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	response, err := message.ParseDataResponse(h.sender.Responses()[0].Bytes)
	require.NoError(err)
	require.Equal(data, response.Data)
}

func TestSubsystemRejectsMalformedRequest(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	s, err := availability.New(h.config)
	require.NoError(err)

	peer := ids.GenerateTestNodeID()
	require.NoError(s.AppRequest(context.Background(), peer, 9, time.Time{}, []byte{0xff, 0x00}))

	errs := h.sender.Errors()
	require.Len(errs, 1)
	require.Equal(peer, errs[0].NodeID)
	require.Equal(uint32(9), errs[0].RequestID)
	require.Equal(message.ErrBadRequest.Code, errs[0].Code)
}

type denyThrottler struct{}

func (denyThrottler) Handle(ids.NodeID) bool { return false }

func TestSubsystemThrottlesPeer(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.config.Throttler = denyThrottler{}

	s, _ := h.start(t)
	request := message.MarshalChunkRequest(&message.ChunkRequest{Blob: ids.GenerateTestID(), Index: 0})
	require.NoError(s.AppRequest(context.Background(), ids.GenerateTestNodeID(), 3, time.Time{}, request))

	require.Eventually(func() bool {
		return len(h.sender.Errors()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(message.ErrThrottled.Code, h.sender.Errors()[0].Code)
	require.Empty(h.sender.Responses())
}

func TestSubsystemServesValidatorsOnly(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	h.config.ValidatorsOnly = true

	blob, chunks := makeBlob(t, 2)
	h.store.PutChunk(blob, chunks[0])

	anchor := ids.GenerateTestID()
	validator := ids.GenerateTestNodeID()
	stranger := ids.GenerateTestNodeID()
	h.runtime.SetSession(anchor, 1)
	h.runtime.SetValidators(1, []ids.NodeID{h.config.NodeID, validator})

	s, _ := h.start(t)
	ctx := context.Background()
	require.NoError(s.UpdateActiveHeads(ctx, &availability.ActiveHeadsUpdate{
		Activated: []ids.ID{anchor},
	}))

	request := message.MarshalChunkRequest(&message.ChunkRequest{Blob: blob, Index: 0})
	require.NoError(s.AppRequest(ctx, validator, 1, time.Time{}, request))
	require.NoError(s.AppRequest(ctx, stranger, 2, time.Time{}, request))

	require.Eventually(func() bool {
		return len(h.sender.Responses()) == 1 && len(h.sender.Errors()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(validator, h.sender.Responses()[0].NodeID)
	require.Equal(chunks[0], parseChunk(t, h.sender.Responses()[0].Bytes))

	refusal := h.sender.Errors()[0]
	require.Equal(stranger, refusal.NodeID)
	require.Equal(message.ErrNotValidator.Code, refusal.Code)
}

func TestSubsystemCloseStopsRun(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	s, errCh := h.start(t)

	s.Close()

	var fatal *availability.Fatal
	require.ErrorAs(awaitExit(t, errCh), &fatal)
	require.Equal(availability.FatalIncomingMessageChannel, fatal.Kind)
}

func TestSubsystemRuntimeGoneIsFatal(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	anchor := ids.GenerateTestID()
	h.runtime.SetSession(anchor, 1)
	h.runtime.SetValidators(1, []ids.NodeID{h.config.NodeID})
	h.runtime.DropPendingQueries = true

	s, errCh := h.start(t)
	require.NoError(s.UpdateActiveHeads(context.Background(), &availability.ActiveHeadsUpdate{
		Activated: []ids.ID{anchor},
	}))

	var fatal *availability.Fatal
	require.ErrorAs(awaitExit(t, errCh), &fatal)
	require.Equal(availability.FatalRuntimeRequestCanceled, fatal.Kind)
}

func TestSubsystemAbsorbsNonFatal(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	anchor := ids.GenerateTestID()
	// Not a validator in this session: absorbed, the loop keeps going.
	h.runtime.SetSession(anchor, 1)
	h.runtime.SetValidators(1, []ids.NodeID{ids.GenerateTestNodeID()})

	blob := ids.GenerateTestID()
	data := []byte("still serving")
	h.store.PutData(blob, data)

	s, _ := h.start(t)
	ctx := context.Background()
	require.NoError(s.UpdateActiveHeads(ctx, &availability.ActiveHeadsUpdate{
		Activated: []ids.ID{anchor},
	}))

	request := message.MarshalDataRequest(&message.DataRequest{Blob: blob})
	require.NoError(s.AppRequest(ctx, ids.GenerateTestNodeID(), 1, time.Time{}, request))

	require.Eventually(func() bool {
		return len(h.sender.Responses()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubsystemDisconnectedForgetsProvider(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	s, err := availability.New(h.config)
	require.NoError(err)

	nodeID := ids.GenerateTestNodeID()
	require.NoError(s.Connected(context.Background(), nodeID, nil))
	require.NoError(s.Disconnected(context.Background(), nodeID))
}

func TestSubsystemInfo(t *testing.T) {
	require := require.New(t)

	h := newHarness(t)
	s, err := availability.New(h.config)
	require.NoError(err)

	require.NoError(s.UpdateActiveHeads(context.Background(), &availability.ActiveHeadsUpdate{}))

	info := s.Info()
	require.Equal(h.config.NodeID, info.NodeID)
	require.Equal(uint32(1), uint32(info.MailboxDepth))
	require.Equal(uint32(1), uint32(info.MailboxHighWater))
	require.Zero(uint32(info.LiveFetches))
}

func TestSubsystemServesChunkFromMockStore(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	blob, chunks := makeBlob(t, 2)
	store := availmock.NewMockStore(ctrl)
	sender, receiver := oneshot.New[*message.Chunk]()
	sender.Send(chunks[0])
	store.EXPECT().
		QueryChunk(gomock.Any(), blob, message.ValidatorIndex(0)).
		Return(receiver)

	h := newHarness(t)
	h.config.Store = store

	s, _ := h.start(t)
	request := message.MarshalChunkRequest(&message.ChunkRequest{Blob: blob, Index: 0})
	require.NoError(s.AppRequest(context.Background(), ids.GenerateTestNodeID(), 4, time.Time{}, request))

	require.Eventually(func() bool {
		return len(h.sender.Responses()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(chunks[0], parseChunk(t, h.sender.Responses()[0].Bytes))
}

func TestSubsystemAnswersMalformedViaMockSender(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := availmock.NewMockSender(ctrl)
	peer := ids.GenerateTestNodeID()
	sender.EXPECT().
		SendError(gomock.Any(), peer, uint32(11), message.ErrBadRequest.Code, message.ErrBadRequest.Message).
		Return(nil)

	h := newHarness(t)
	h.config.Sender = sender

	s, err := availability.New(h.config)
	require.NoError(err)
	require.NoError(s.AppRequest(context.Background(), peer, 11, time.Time{}, []byte{0xff}))
}
