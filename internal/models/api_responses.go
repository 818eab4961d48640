// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package models

import "time"

// APIResponse is the standardized response wrapper used by every locally
// handled HTTP endpoint (proxied responses pass through untouched).
//
// Status is "success" or "error". Data carries the payload on success;
// Error carries structured details on failure.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError carries a machine-readable code plus a human-readable message.
//
// Denials that imply the client should clear its session set RequiresLogout
// so the UI does not have to infer re-authentication from the status code.
// Transient failures (identity provider outage, upstream down) never set it.
//
// Common codes:
//   - UNAUTHENTICATED: missing or malformed Authorization header
//   - INVALID_TOKEN: token rejected by the identity provider
//   - AUTH_SERVICE_UNAVAILABLE: identity provider unreachable (retryable)
//   - USER_NOT_FOUND, USER_DEACTIVATED, NO_PROFILE_ASSIGNED: authenticated
//     but not authorized to exist here
//   - FORBIDDEN: insufficient profile or permission for the route
//   - RATE_LIMITED, INVITE_CONFLICT, INVITE_INVALID, UPSTREAM_UNAVAILABLE
type APIError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        map[string]interface{} `json:"details,omitempty"`
	RequiresLogout bool                   `json:"requiresLogout,omitempty"`
}
