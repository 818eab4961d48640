// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package ratelimit

import (
	"testing"
	"time"

	"github.com/portunus-gw/portunus/internal/config"
)

func newTestLimiter(t *testing.T, cfg config.RateLimitConfig) (*Limiter, *time.Time) {
	t.Helper()

	l := New(cfg)
	t.Cleanup(l.Stop)

	// Deterministic clock
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowWithinLimit(t *testing.T) {
	l, _ := newTestLimiter(t, config.RateLimitConfig{
		Default: config.RateLimitRule{Max: 3, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4", "session") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4", "session") {
		t.Error("request 4 should be rejected")
	}
}

func TestWindowReset(t *testing.T) {
	l, now := newTestLimiter(t, config.RateLimitConfig{
		Default: config.RateLimitRule{Max: 2, Window: time.Minute},
	})

	l.Allow("1.2.3.4", "session")
	l.Allow("1.2.3.4", "session")
	if l.Allow("1.2.3.4", "session") {
		t.Fatal("expected rejection at max+1")
	}

	*now = now.Add(time.Minute)
	if !l.Allow("1.2.3.4", "session") {
		t.Error("expected next window to start clean")
	}
}

func TestPerRouteRules(t *testing.T) {
	l, _ := newTestLimiter(t, config.RateLimitConfig{
		Default: config.RateLimitRule{Max: 100, Window: time.Minute},
		Routes: map[string]config.RateLimitRule{
			"invite_create": {Max: 1, Window: time.Minute},
		},
	})

	if !l.Allow("1.2.3.4", "invite_create") {
		t.Fatal("first invite_create should be allowed")
	}
	if l.Allow("1.2.3.4", "invite_create") {
		t.Error("second invite_create should hit the tight rule")
	}
	// Other routes use the default rule
	if !l.Allow("1.2.3.4", "session") {
		t.Error("session should use the default rule")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, config.RateLimitConfig{
		Default: config.RateLimitRule{Max: 1, Window: time.Minute},
	})

	if !l.Allow("1.2.3.4", "session") {
		t.Fatal("first client should be allowed")
	}
	if l.Allow("1.2.3.4", "session") {
		t.Fatal("first client should now be limited")
	}
	if !l.Allow("5.6.7.8", "session") {
		t.Error("second client must not share the first client's window")
	}
	if !l.Allow("1.2.3.4", "invites") {
		t.Error("same client on another route must not share the window")
	}
}

func TestDisabled(t *testing.T) {
	l, _ := newTestLimiter(t, config.RateLimitConfig{
		Disabled: true,
		Default:  config.RateLimitRule{Max: 1, Window: time.Minute},
	})

	for i := 0; i < 100; i++ {
		if !l.Allow("1.2.3.4", "session") {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestRetryAfter(t *testing.T) {
	l, now := newTestLimiter(t, config.RateLimitConfig{
		Default: config.RateLimitRule{Max: 1, Window: time.Minute},
	})

	l.Allow("1.2.3.4", "session")
	*now = now.Add(15 * time.Second)

	got := l.RetryAfter("1.2.3.4", "session")
	if got != 45*time.Second {
		t.Errorf("RetryAfter = %v, want 45s", got)
	}

	if l.RetryAfter("9.9.9.9", "session") != 0 {
		t.Error("unknown client should have zero retry-after")
	}
}

func TestSweepRemovesStaleWindows(t *testing.T) {
	l, now := newTestLimiter(t, config.RateLimitConfig{
		Default: config.RateLimitRule{Max: 5, Window: time.Minute},
	})

	l.Allow("1.2.3.4", "session")
	l.Allow("5.6.7.8", "session")

	// A window that ended less than one full window ago stays; Allow
	// resets those in place.
	*now = now.Add(90 * time.Second)
	if removed := l.Sweep(); removed != 0 {
		t.Errorf("expected recently ended windows retained, got %d swept", removed)
	}

	*now = now.Add(30 * time.Second)
	if removed := l.Sweep(); removed != 2 {
		t.Errorf("expected 2 windows swept, got %d", removed)
	}
	if removed := l.Sweep(); removed != 0 {
		t.Errorf("expected nothing left to sweep, got %d", removed)
	}
}
