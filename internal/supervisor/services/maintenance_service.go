// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package services

import (
	"context"
	"time"

	"github.com/portunus-gw/portunus/internal/logging"
)

// Sweeper removes expired rate-limit windows. Satisfied by
// *ratelimit.Limiter.
type Sweeper interface {
	Sweep() int
}

// GarbageCollector reclaims store space. Satisfied by *store.Store.
type GarbageCollector interface {
	RunGC() error
}

// MaintenanceService periodically sweeps stale rate-limit counters and
// runs value-log garbage collection on the record store.
type MaintenanceService struct {
	sweeper  Sweeper
	gc       GarbageCollector
	interval time.Duration
	name     string
}

// NewMaintenanceService creates the periodic maintenance runner. Either
// dependency may be nil; its task is skipped.
func NewMaintenanceService(sweeper Sweeper, gc GarbageCollector, interval time.Duration) *MaintenanceService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MaintenanceService{
		sweeper:  sweeper,
		gc:       gc,
		interval: interval,
		name:     "maintenance",
	}
}

// Serve implements suture.Service.
func (m *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *MaintenanceService) runOnce(ctx context.Context) {
	if m.sweeper != nil {
		swept := m.sweeper.Sweep()
		if swept > 0 {
			logging.Debug().Int("windows", swept).Msg("Swept stale rate-limit windows")
		}
	}

	if m.gc != nil {
		if err := m.gc.RunGC(); err != nil {
			logging.Warn().Err(err).Msg("Store garbage collection failed")
		}
	}
}

// String identifies the service in suture's event log.
func (m *MaintenanceService) String() string {
	return m.name
}
