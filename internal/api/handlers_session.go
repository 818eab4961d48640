// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package api

import (
	"net/http"

	"github.com/portunus-gw/portunus/internal/identity"
	"github.com/portunus-gw/portunus/internal/logging"
)

// sessionResponse is the introspection payload for GET /session.
type sessionResponse struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	Profile     string   `json:"profile,omitempty"`
	Permissions []string `json:"permissions"`
}

// Session returns the caller's resolved identity and authorization context.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	id, okID := identityFromContext(r.Context())
	rc, okRC := rbacFromContext(r.Context())
	if !okID || !okRC {
		writeAuthError(w, identity.ErrUnauthenticated)
		return
	}

	perms := rc.Permissions
	if perms == nil {
		perms = []string{}
	}
	respondSuccess(w, http.StatusOK, &sessionResponse{
		UserID:      rc.UserID,
		Email:       id.Email,
		Name:        id.DisplayName,
		Profile:     rc.ProfileName,
		Permissions: perms,
	})
}

// Logout invalidates the caller's cached RBAC context. The identity token
// itself stays valid until the provider expires it; the gateway only clears
// its own state.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeAuthError(w, identity.ErrUnauthenticated)
		return
	}

	h.resolver.Invalidate(id.ID)
	logging.Ctx(r.Context()).Info().Str("user_id", id.ID).Msg("Session logged out")
	respondSuccess(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
