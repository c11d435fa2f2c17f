// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchBudgetAcquireRelease(t *testing.T) {
	require := require.New(t)

	budget := NewFetchBudget(2)
	require.Equal(int64(2), budget.Limit())

	require.True(budget.TryAcquire())
	require.True(budget.TryAcquire())
	require.Equal(int64(2), budget.Live())

	require.False(budget.TryAcquire())

	budget.Release()
	require.Equal(int64(1), budget.Live())
	require.True(budget.TryAcquire())
}

func TestFetchBudgetDefaultLimit(t *testing.T) {
	require := require.New(t)

	require.Equal(int64(DefaultFetchLimit), NewFetchBudget(0).Limit())
	require.Equal(int64(DefaultFetchLimit), NewFetchBudget(-3).Limit())
}

func TestFetchBudgetSetLimit(t *testing.T) {
	require := require.New(t)

	budget := NewFetchBudget(4)
	require.True(budget.TryAcquire())
	require.True(budget.TryAcquire())

	// Shrinking below the live count blocks new slots but does not
	// revoke held ones.
	budget.SetLimit(1)
	require.Equal(int64(1), budget.Limit())
	require.False(budget.TryAcquire())
	require.Equal(int64(2), budget.Live())

	budget.Release()
	budget.Release()
	require.True(budget.TryAcquire())
	require.False(budget.TryAcquire())

	budget.SetLimit(0)
	require.Equal(int64(1), budget.Limit())
}
