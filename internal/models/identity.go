// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package models

// Identity is the verified end-user identity returned by the identity
// provider for a bearer token. It is sourced fresh per request and never
// persisted by the gateway.
type Identity struct {
	// ID is the identity provider's unique identifier for the user.
	ID string `json:"id"`

	// Email is the user's primary email address.
	Email string `json:"email"`

	// DisplayName is the human-readable name, if the provider exposes one.
	DisplayName string `json:"display_name,omitempty"`
}

// RBACContext is the resolved authorization context for a user: the effective
// profile name, the deduplicated permission set, and the active flag. Every
// authorization decision in the gateway is made against this value.
//
// A context is computed on demand by the resolver and cached with a short
// TTL; explicit invalidation always wins over TTL.
type RBACContext struct {
	// UserID is the business-user identifier the context was resolved for.
	UserID string `json:"user_id"`

	// ProfileName is the user's effective profile. Empty when the user has
	// no profile assigned; such users can still reach profile-less routes.
	ProfileName string `json:"profile_name,omitempty"`

	// Permissions is the union of profile permissions and unexpired
	// permission-set grants, deduplicated.
	Permissions []string `json:"permissions"`

	// IsActive mirrors the user record's active flag at resolution time.
	IsActive bool `json:"is_active"`
}

// HasPermission reports whether the context holds the exact permission string.
// Wildcard semantics live in the decision engine, not here.
func (c *RBACContext) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasProfile reports whether the context's profile is one of the given names.
func (c *RBACContext) HasProfile(names ...string) bool {
	if c.ProfileName == "" {
		return false
	}
	for _, n := range names {
		if n == c.ProfileName {
			return true
		}
	}
	return false
}
