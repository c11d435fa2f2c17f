// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var ErrSpawnerClosed = errors.New("spawner is closed")

// Spawner starts named background tasks on behalf of the subsystem.
type Spawner interface {
	Spawn(name string, task func(context.Context)) error
}

// SpawnerFunc is a function that implements Spawner.
type SpawnerFunc func(name string, task func(context.Context)) error

func (f SpawnerFunc) Spawn(name string, task func(context.Context)) error {
	return f(name, task)
}

// TaskGroup is the default Spawner. Tasks share a context that is
// canceled on shutdown, and Shutdown blocks until every task returns.
type TaskGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	closed atomic.Bool
}

func NewTaskGroup(ctx context.Context) *TaskGroup {
	ctx, cancel := context.WithCancel(ctx)
	return &TaskGroup{
		ctx:    ctx,
		cancel: cancel,
		group:  &errgroup.Group{},
	}
}

func (g *TaskGroup) Spawn(name string, task func(context.Context)) error {
	if g.closed.Load() {
		return fmt.Errorf("spawning %s: %w", name, ErrSpawnerClosed)
	}
	g.group.Go(func() error {
		task(g.ctx)
		return nil
	})
	return nil
}

// Shutdown cancels the task context and waits for every spawned task.
func (g *TaskGroup) Shutdown() {
	g.closed.Store(true)
	g.cancel()
	_ = g.group.Wait()
}
