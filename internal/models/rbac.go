// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package models

import (
	"strings"
	"time"
)

// PermissionSegments is the number of segments in a permission string.
// Permissions are three-segment tokens of the form module:resource:action.
const PermissionSegments = 3

// PermissionWildcard is the per-segment wildcard marker.
const PermissionWildcard = "*"

// SuperAdminPermission grants everything.
const SuperAdminPermission = "*:*:*"

// ValidPermission reports whether s is a structurally valid permission
// string: exactly three non-empty colon-separated segments. Each segment may
// be the wildcard. Policy storage holds only these tokens; no regex is
// permitted beyond segment-level star matching at decision time.
func ValidPermission(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != PermissionSegments {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// User is a business-user record. Existence in the identity provider does not
// imply existence here; the gateway rejects identities without a user record.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	ProfileName string    `json:"profile_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile names a set of permissions assigned to users as a unit.
type Profile struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Permissions []string `json:"permissions"`
}

// PermissionSet is a named bundle of permissions grantable to individual
// users on top of their profile.
type PermissionSet struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
}

// Grant links a user to a permission set, optionally until an expiry.
// Expired grants contribute no permissions.
type Grant struct {
	UserID    string     `json:"user_id"`
	SetName   string     `json:"set_name"`
	GrantedBy string     `json:"granted_by,omitempty"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the grant has expired relative to now.
// Grants without an expiry never expire.
func (g *Grant) IsExpired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}
