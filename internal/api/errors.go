// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package api

import (
	"errors"
	"net/http"

	"github.com/portunus-gw/portunus/internal/identity"
	"github.com/portunus-gw/portunus/internal/invite"
	"github.com/portunus-gw/portunus/internal/rbac"
	"github.com/portunus-gw/portunus/internal/store"
)

// writeAuthError maps authentication and authorization failures to their
// HTTP status, machine-readable code, and requiresLogout hint.
//
// Transient provider failures map to 503, never 401: a UI must not clear
// its session because the identity provider had a bad minute.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		respondDenial(w, http.StatusUnauthorized, "UNAUTHENTICATED",
			"Missing or malformed credentials", false)
	case errors.Is(err, identity.ErrInvalidToken):
		respondDenial(w, http.StatusUnauthorized, "INVALID_TOKEN",
			"Token rejected by identity provider", true)
	case errors.Is(err, identity.ErrProviderUnavailable):
		respondDenial(w, http.StatusServiceUnavailable, "AUTH_SERVICE_UNAVAILABLE",
			"Identity provider temporarily unavailable", false)
	case errors.Is(err, rbac.ErrUserNotFound):
		respondDenial(w, http.StatusForbidden, "USER_NOT_FOUND",
			"No account exists for this identity", true)
	case errors.Is(err, rbac.ErrUserDeactivated):
		respondDenial(w, http.StatusForbidden, "USER_DEACTIVATED",
			"Account has been deactivated", true)
	case errors.Is(err, rbac.ErrNoProfileAssigned):
		respondDenial(w, http.StatusForbidden, "NO_PROFILE_ASSIGNED",
			"No profile assigned to this account", false)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", err)
	}
}

// writeInviteError maps invite lifecycle failures.
func writeInviteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invite.ErrInviteInvalid):
		// Deliberately generic: not found, wrong email, expired, revoked,
		// and used are indistinguishable to the caller.
		respondError(w, http.StatusBadRequest, "INVITE_INVALID",
			"Invite token is invalid", nil)
	case errors.Is(err, invite.ErrConflict):
		respondError(w, http.StatusConflict, "INVITE_CONFLICT",
			"A pending invite already exists for this email", nil)
	case errors.Is(err, invite.ErrProfileNotFound):
		respondError(w, http.StatusBadRequest, "PROFILE_NOT_FOUND",
			"Requested profile does not exist", nil)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND",
			"Invite not found", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", err)
	}
}
