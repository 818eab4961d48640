// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package ratelimit implements a fixed-window rate limiter keyed by
// (client, route). Each key holds a counter and a window start; the counter
// resets when a request arrives after the window has elapsed. Sensitive
// routes (invite creation, validation, consumption) carry their own rules;
// everything else falls back to the default rule.
package ratelimit

import (
	"sync"
	"time"

	"github.com/portunus-gw/portunus/internal/config"
	"github.com/portunus-gw/portunus/internal/metrics"
)

// window tracks one (client, route) counter.
type window struct {
	count   int
	startAt time.Time
}

// Limiter is a fixed-window rate limiter. Safe for concurrent use.
type Limiter struct {
	cfg      config.RateLimitConfig
	mu       sync.Mutex
	windows  map[string]*window
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a limiter and starts its sweep goroutine.
func New(cfg config.RateLimitConfig) *Limiter {
	if cfg.Default.Max <= 0 {
		cfg.Default = config.RateLimitRule{Max: 60, Window: time.Minute}
	}
	if cfg.Default.Window <= 0 {
		cfg.Default.Window = time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	l := &Limiter{
		cfg:      cfg,
		windows:  make(map[string]*window),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go l.sweep()
	return l
}

// rule returns the configured rule for a route, or the default.
func (l *Limiter) rule(route string) config.RateLimitRule {
	if r, ok := l.cfg.Routes[route]; ok && r.Max > 0 && r.Window > 0 {
		return r
	}
	return l.cfg.Default
}

// Allow reports whether a request from client on route may proceed, and
// counts it against the current window. The first request past the limit
// and every one after it within the window are rejected; the next window
// starts clean.
func (l *Limiter) Allow(client, route string) bool {
	if l.cfg.Disabled {
		return true
	}

	r := l.rule(route)
	key := client + "|" + route
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.startAt) >= r.Window {
		l.windows[key] = &window{count: 1, startAt: now}
		return true
	}

	w.count++
	if w.count > r.Max {
		metrics.RecordRateLimitRejection(route)
		return false
	}
	return true
}

// RetryAfter returns how long the client must wait before the route's
// window resets. Zero when the client has no active window.
func (l *Limiter) RetryAfter(client, route string) time.Duration {
	r := l.rule(route)
	key := client + "|" + route
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	remaining := r.Window - now.Sub(w.startAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// sweep periodically removes windows that ended more than one full window
// ago. Windows that merely expired are left for Allow to reset in place.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			maxWindow := l.cfg.Default.Window
			for _, r := range l.cfg.Routes {
				if r.Window > maxWindow {
					maxWindow = r.Window
				}
			}
			for key, w := range l.windows {
				if now.Sub(w.startAt) >= 2*maxWindow {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Sweep runs one sweep pass immediately. Used by the maintenance service.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	maxWindow := l.cfg.Default.Window
	for _, r := range l.cfg.Routes {
		if r.Window > maxWindow {
			maxWindow = r.Window
		}
	}

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.startAt) >= 2*maxWindow {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Stop stops the sweep goroutine. Safe to call multiple times.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
}
