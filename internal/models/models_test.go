// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package models

import (
	"testing"
	"time"
)

func TestValidPermission(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"sales:proposals:read", true},
		{"*:*:*", true},
		{"sales:*:*", true},
		{"sales:proposals", false},
		{"sales:proposals:read:extra", false},
		{"sales::read", false},
		{"", false},
		{":::", false},
	}

	for _, tt := range tests {
		if got := ValidPermission(tt.input); got != tt.want {
			t.Errorf("ValidPermission(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestGrant_IsExpired(t *testing.T) {
	now := time.Now()

	forever := &Grant{UserID: "u1", SetName: "s1"}
	if forever.IsExpired(now) {
		t.Error("grant without expiry should never expire")
	}

	past := now.Add(-time.Hour)
	expired := &Grant{UserID: "u1", SetName: "s1", ExpiresAt: &past}
	if !expired.IsExpired(now) {
		t.Error("grant with past expiry should be expired")
	}

	future := now.Add(time.Hour)
	live := &Grant{UserID: "u1", SetName: "s1", ExpiresAt: &future}
	if live.IsExpired(now) {
		t.Error("grant with future expiry should not be expired")
	}
}

func TestInviteToken_Status(t *testing.T) {
	now := time.Now()
	used := now.Add(-time.Minute)

	tests := []struct {
		name  string
		token InviteToken
		want  InviteStatus
	}{
		{"pending", InviteToken{ExpiresAt: now.Add(time.Hour)}, InviteStatusPending},
		{"expired", InviteToken{ExpiresAt: now.Add(-time.Hour)}, InviteStatusExpired},
		{"used", InviteToken{ExpiresAt: now.Add(time.Hour), UsedAt: &used}, InviteStatusUsed},
		{"revoked", InviteToken{ExpiresAt: now.Add(time.Hour), IsRevoked: true}, InviteStatusRevoked},
		// Revocation wins over use; a revoked token stays revoked even if it was consumed first.
		{"revoked_and_used", InviteToken{ExpiresAt: now.Add(time.Hour), UsedAt: &used, IsRevoked: true}, InviteStatusRevoked},
		// Used wins over expired; consumption happened before expiry.
		{"used_then_expired", InviteToken{ExpiresAt: now.Add(-time.Hour), UsedAt: &used}, InviteStatusUsed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Status(now); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInviteToken_IsPending(t *testing.T) {
	now := time.Now()
	tok := InviteToken{ExpiresAt: now.Add(time.Hour)}
	if !tok.IsPending(now) {
		t.Error("fresh token should be pending")
	}

	tok.IsRevoked = true
	if tok.IsPending(now) {
		t.Error("revoked token should not be pending")
	}
}

func TestRBACContext_HasProfile(t *testing.T) {
	ctx := &RBACContext{UserID: "u1", ProfileName: "sales_user"}
	if !ctx.HasProfile("admin", "sales_user") {
		t.Error("expected profile match")
	}
	if ctx.HasProfile("admin") {
		t.Error("unexpected profile match")
	}

	noProfile := &RBACContext{UserID: "u2"}
	if noProfile.HasProfile("sales_user") {
		t.Error("nil profile must never match an allow-list")
	}
}

func TestRBACContext_HasPermission(t *testing.T) {
	ctx := &RBACContext{Permissions: []string{"sales:proposals:read"}}
	if !ctx.HasPermission("sales:proposals:read") {
		t.Error("expected exact permission match")
	}
	// HasPermission is exact-only; wildcard semantics belong to the decision engine.
	if ctx.HasPermission("sales:proposals:write") {
		t.Error("unexpected permission match")
	}
}
