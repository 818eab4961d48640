// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package models

import "time"

// InviteStatus is a read-time classification of an invite token.
// USED and REVOKED are stored terminal states; EXPIRED is derived from
// expires_at and never stored.
type InviteStatus string

const (
	InviteStatusPending InviteStatus = "pending"
	InviteStatusUsed    InviteStatus = "used"
	InviteStatusRevoked InviteStatus = "revoked"
	InviteStatusExpired InviteStatus = "expired"
)

// InviteToken is a single-use, time-limited credential binding an email
// address to a profile, used to onboard users outside self-service signup.
type InviteToken struct {
	ID           string     `json:"id"`
	Token        string     `json:"token"`
	Email        string     `json:"email"`
	ProfileName  string     `json:"profile_name"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	UsedByUserID string     `json:"used_by_user_id,omitempty"`
	IsRevoked    bool       `json:"is_revoked"`
}

// IsExpired reports whether the token's lifetime has elapsed.
func (t *InviteToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed reports whether the token has been consumed.
func (t *InviteToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsPending reports whether the token is still consumable: not used, not
// revoked, not expired.
func (t *InviteToken) IsPending(now time.Time) bool {
	return !t.IsUsed() && !t.IsRevoked && !t.IsExpired(now)
}

// Status classifies the token at read time. Revocation wins over use, use
// wins over expiry, matching the lifecycle's terminal ordering.
func (t *InviteToken) Status(now time.Time) InviteStatus {
	switch {
	case t.IsRevoked:
		return InviteStatusRevoked
	case t.IsUsed():
		return InviteStatusUsed
	case t.IsExpired(now):
		return InviteStatusExpired
	default:
		return InviteStatusPending
	}
}
