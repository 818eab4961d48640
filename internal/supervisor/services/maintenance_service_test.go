// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct{ calls atomic.Int32 }

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 1
}

type countingGC struct {
	calls atomic.Int32
	err   error
}

func (c *countingGC) RunGC() error {
	c.calls.Add(1)
	return c.err
}

func TestMaintenanceRunsBothTasks(t *testing.T) {
	sweeper := &countingSweeper{}
	gc := &countingGC{}
	svc := NewMaintenanceService(sweeper, gc, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v", err)
	}
	if sweeper.calls.Load() == 0 {
		t.Error("sweeper never ran")
	}
	if gc.calls.Load() == 0 {
		t.Error("gc never ran")
	}
}

func TestMaintenanceToleratesGCFailure(t *testing.T) {
	gc := &countingGC{err: errors.New("disk full")}
	svc := NewMaintenanceService(nil, gc, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// A failing GC must not abort the service loop.
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v", err)
	}
	if gc.calls.Load() < 2 {
		t.Errorf("gc ran %d times, want at least 2", gc.calls.Load())
	}
}

func TestMaintenanceNilDependencies(t *testing.T) {
	svc := NewMaintenanceService(nil, nil, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v", err)
	}
}

func TestMaintenanceDefaultInterval(t *testing.T) {
	svc := NewMaintenanceService(nil, nil, 0)
	if svc.interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", svc.interval)
	}
}
