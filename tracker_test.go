// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

func newTestTracker(t *testing.T) *ProviderTracker {
	tracker, err := NewProviderTracker(log.NewNoOpLogger(), "", metric.NewRegistry())
	require.NoError(t, err)
	return tracker
}

func TestProviderTrackerOrder(t *testing.T) {
	require := require.New(t)

	tracker := newTestTracker(t)

	slow := ids.GenerateTestNodeID()
	fast := ids.GenerateTestNodeID()
	unknown := ids.GenerateTestNodeID()

	tracker.RegisterResponse(slow, 10)
	tracker.RegisterResponse(fast, 100)

	// Unmeasured providers lead so they get exercised, then measured
	// providers fastest first.
	order := tracker.Order([]ids.NodeID{slow, fast, unknown})
	require.Equal([]ids.NodeID{unknown, fast, slow}, order)
}

func TestProviderTrackerResponsive(t *testing.T) {
	require := require.New(t)

	tracker := newTestTracker(t)
	nodeID := ids.GenerateTestNodeID()

	require.Zero(tracker.Responsive())

	tracker.RegisterResponse(nodeID, 50)
	require.Equal(1, tracker.Responsive())

	// A failure drops the provider from the responsive set but keeps
	// its bandwidth history.
	tracker.RegisterFailure(nodeID)
	require.Zero(tracker.Responsive())

	other := ids.GenerateTestNodeID()
	order := tracker.Order([]ids.NodeID{nodeID, other})
	require.Equal([]ids.NodeID{other, nodeID}, order)
}

func TestProviderTrackerForget(t *testing.T) {
	require := require.New(t)

	tracker := newTestTracker(t)
	nodeID := ids.GenerateTestNodeID()

	tracker.RegisterResponse(nodeID, 50)
	require.Equal(1, tracker.Responsive())

	tracker.Forget(nodeID)
	require.Zero(tracker.Responsive())

	// Forgotten providers are unmeasured again.
	order := tracker.Order([]ids.NodeID{nodeID})
	require.Equal([]ids.NodeID{nodeID}, order)
}
