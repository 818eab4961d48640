// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package models defines the gateway's shared data types.
//
// Identity and RBACContext are the two request-scoped values the
// authorization pipeline operates on. User, Profile, PermissionSet, Grant
// and InviteToken are the persisted record types. APIResponse/APIError wrap
// every locally handled HTTP response.
package models
