// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package rbac

import (
	"testing"

	"github.com/portunus-gw/portunus/internal/models"
)

func TestAllowProfile(t *testing.T) {
	tests := []struct {
		name     string
		profile  string
		allowed  []string
		want     bool
	}{
		{"exact match", "admin", []string{"admin"}, true},
		{"in list", "sales_user", []string{"admin", "sales_user"}, true},
		{"not in list", "viewer", []string{"admin", "sales_user"}, false},
		{"no profile", "", []string{"admin"}, false},
		{"empty allow list", "admin", nil, false},
		{"no wildcard in profiles", "sales_user", []string{"*"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &models.RBACContext{UserID: "u-1", ProfileName: tt.profile, IsActive: true}
			if got := AllowProfile(rc, tt.allowed); got != tt.want {
				t.Errorf("AllowProfile(%q, %v) = %v, want %v", tt.profile, tt.allowed, got, tt.want)
			}
		})
	}

	if AllowProfile(nil, []string{"admin"}) {
		t.Error("nil context must never match")
	}
}

func TestAllowPermission(t *testing.T) {
	tests := []struct {
		name   string
		held   []string
		target string
		want   bool
	}{
		{"exact", []string{"leads:records:read"}, "leads:records:read", true},
		{"exact miss", []string{"leads:records:read"}, "leads:records:write", false},
		{"super admin", []string{"*:*:*"}, "anything:at:all", true},
		{"action wildcard", []string{"leads:records:*"}, "leads:records:write", true},
		{"resource wildcard", []string{"leads:*:read"}, "leads:exports:read", true},
		{"module wildcard", []string{"*:records:read"}, "leads:records:read", true},
		{"module wildcard wrong action", []string{"leads:*:*"}, "billing:records:read", false},
		{"wildcard target segment literal", []string{"leads:records:read"}, "leads:records:*", false},
		{"two segment held never matches", []string{"leads:records"}, "leads:records:read", false},
		{"four segment target never matches", []string{"leads:records:*"}, "leads:records:read:extra", false},
		{"empty held", nil, "leads:records:read", false},
		{"union across entries", []string{"billing:invoices:read", "leads:*:*"}, "leads:records:delete", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &models.RBACContext{UserID: "u-1", Permissions: tt.held, IsActive: true}
			if got := AllowPermission(rc, tt.target); got != tt.want {
				t.Errorf("AllowPermission(%v, %q) = %v, want %v", tt.held, tt.target, got, tt.want)
			}
		})
	}

	if AllowPermission(nil, "leads:records:read") {
		t.Error("nil context must never match")
	}
}

func TestMatchPermission(t *testing.T) {
	tests := []struct {
		held   string
		target string
		want   bool
	}{
		{"a:b:c", "a:b:c", true},
		{"a:b:*", "a:b:c", true},
		{"a:*:*", "a:b:c", true},
		{"*:*:*", "a:b:c", true},
		{"a:b:c", "a:b:d", false},
		{"a:b", "a:b:c", false},
		{"a:b:c:d", "a:b:c", false},
		{"*", "a:b:c", false},
	}

	for _, tt := range tests {
		if got := matchPermission(tt.held, tt.target); got != tt.want {
			t.Errorf("matchPermission(%q, %q) = %v, want %v", tt.held, tt.target, got, tt.want)
		}
	}
}
