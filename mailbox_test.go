// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func headsMessage() Message {
	return Message{
		ActiveHeads: &ActiveHeadsUpdate{
			Activated: []ids.ID{ids.GenerateTestID()},
		},
	}
}

func TestMailboxPushReceive(t *testing.T) {
	require := require.New(t)

	mailbox := NewMailbox(4)
	sent := headsMessage()
	require.NoError(mailbox.Push(context.Background(), sent))

	got := <-mailbox.C()
	require.Equal(sent, got)

	stats := mailbox.Stats()
	require.Equal(uint64(1), stats.Enqueued)
	require.Zero(stats.Depth)
}

func TestMailboxTryPushFull(t *testing.T) {
	require := require.New(t)

	mailbox := NewMailbox(2)
	require.True(mailbox.TryPush(headsMessage()))
	require.True(mailbox.TryPush(headsMessage()))
	require.False(mailbox.TryPush(headsMessage()))

	stats := mailbox.Stats()
	require.Equal(uint64(2), stats.Enqueued)
	require.Equal(uint64(1), stats.Dropped)
	require.Equal(2, stats.Depth)
	require.Equal(int64(2), stats.HighWater)
}

func TestMailboxPushBlocksUntilDrained(t *testing.T) {
	require := require.New(t)

	mailbox := NewMailbox(1)
	require.NoError(mailbox.Push(context.Background(), headsMessage()))

	pushed := make(chan error)
	go func() {
		pushed <- mailbox.Push(context.Background(), headsMessage())
	}()

	select {
	case err := <-pushed:
		require.FailNow("push returned before drain", "err: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	<-mailbox.C()
	require.NoError(<-pushed)
}

func TestMailboxPushCanceled(t *testing.T) {
	require := require.New(t)

	mailbox := NewMailbox(1)
	require.NoError(mailbox.Push(context.Background(), headsMessage()))

	ctx, cancel := context.WithCancel(context.Background())
	pushed := make(chan error)
	go func() {
		pushed <- mailbox.Push(ctx, headsMessage())
	}()

	cancel()
	require.ErrorIs(<-pushed, context.Canceled)
}

func TestMailboxCloseReleasesPusher(t *testing.T) {
	require := require.New(t)

	mailbox := NewMailbox(1)
	require.NoError(mailbox.Push(context.Background(), headsMessage()))

	pushed := make(chan error)
	go func() {
		pushed <- mailbox.Push(context.Background(), headsMessage())
	}()

	mailbox.Close()
	require.ErrorIs(<-pushed, ErrMailboxClosed)

	select {
	case <-mailbox.Done():
	default:
		require.FailNow("mailbox not done after close")
	}

	require.ErrorIs(mailbox.Push(context.Background(), headsMessage()), ErrMailboxClosed)
	require.False(mailbox.TryPush(headsMessage()))

	// Close is idempotent.
	mailbox.Close()
}
