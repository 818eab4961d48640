// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portunus-gw/portunus/internal/identity"
	"github.com/portunus-gw/portunus/internal/logging"
	"github.com/portunus-gw/portunus/internal/models"
)

type inviteCreateRequest struct {
	Email       string `json:"email" validate:"required,email"`
	ProfileName string `json:"profile_name" validate:"required,min=1,max=128"`
	TTLDays     int    `json:"ttl_days" validate:"omitempty,min=1,max=30"`
}

type inviteValidateRequest struct {
	Token string `json:"token" validate:"required,min=16"`
	Email string `json:"email" validate:"required,email"`
}

type inviteConsumeRequest struct {
	Token string `json:"token" validate:"required,min=16"`
	Email string `json:"email" validate:"required,email"`
}

// inviteView is the admin-facing projection of an invite. The raw token
// appears only in the creation response; afterwards it is never echoed.
type inviteView struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	ProfileName string              `json:"profile_name"`
	CreatedBy   string              `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Status      models.InviteStatus `json:"status"`
	UsedAt      *time.Time          `json:"used_at,omitempty"`
}

func toInviteView(t *models.InviteToken, now time.Time) *inviteView {
	return &inviteView{
		ID:          t.ID,
		Email:       t.Email,
		ProfileName: t.ProfileName,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
		Status:      t.Status(now),
		UsedAt:      t.UsedAt,
	}
}

// InviteCreate issues a new invite. Admin-only.
func (h *Handlers) InviteCreate(w http.ResponseWriter, r *http.Request) {
	var req inviteCreateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	createdBy := ""
	if id, ok := identityFromContext(r.Context()); ok {
		createdBy = id.ID
	}

	inv, mailFailed, err := h.invites.Create(r.Context(), req.Email, req.ProfileName, req.TTLDays, createdBy)
	if err != nil {
		writeInviteError(w, err)
		return
	}

	resp := map[string]interface{}{
		"invite": toInviteView(inv, time.Now().UTC()),
		"token":  inv.Token,
	}
	if mailFailed {
		resp["warning"] = "invite created but notification email failed to send"
	}
	respondSuccess(w, http.StatusCreated, resp)
}

// InviteList returns invites, pending-only unless ?all=true.
func (h *Handlers) InviteList(w http.ResponseWriter, r *http.Request) {
	includeAll := r.URL.Query().Get("all") == "true"

	invites, err := h.invites.List(r.Context(), includeAll)
	if err != nil {
		writeInviteError(w, err)
		return
	}

	now := time.Now().UTC()
	views := make([]*inviteView, 0, len(invites))
	for _, inv := range invites {
		views = append(views, toInviteView(inv, now))
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"invites": views,
		"count":   len(views),
	})
}

// InviteRevoke cancels a pending invite by ID. Revoking an already used or
// revoked invite is a no-op that still returns the current state.
func (h *Handlers) InviteRevoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.invites.Revoke(r.Context(), id)
	if err != nil {
		writeInviteError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, toInviteView(inv, time.Now().UTC()))
}

// InviteValidate is the public pre-flight check a signup UI runs before
// asking the user to authenticate. It leaks nothing beyond valid/invalid.
func (h *Handlers) InviteValidate(w http.ResponseWriter, r *http.Request) {
	var req inviteValidateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	inv, err := h.invites.Validate(r.Context(), req.Token, req.Email)
	if err != nil {
		writeInviteError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"valid":        true,
		"profile_name": inv.ProfileName,
		"expires_at":   inv.ExpiresAt,
	})
}

// InviteConsume binds the invite to the caller's verified identity, creating
// or reactivating the user record. Requires Authenticate but deliberately
// not ResolveContext: the whole point is that no user record exists yet.
func (h *Handlers) InviteConsume(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeAuthError(w, identity.ErrUnauthenticated)
		return
	}

	var req inviteConsumeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	inv, err := h.invites.Consume(r.Context(), req.Token, req.Email, id.ID, id.DisplayName)
	if err != nil {
		writeInviteError(w, err)
		return
	}

	// An existing user consuming a re-invite may still have a cached
	// context with the old profile; drop it so the next request sees
	// the fresh assignment.
	h.resolver.Invalidate(id.ID)

	logging.Ctx(r.Context()).Info().
		Str("user_id", id.ID).
		Str("invite_id", inv.ID).
		Str("profile", inv.ProfileName).
		Msg("Invite consumed")

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"user_id":      id.ID,
		"profile_name": inv.ProfileName,
	})
}
