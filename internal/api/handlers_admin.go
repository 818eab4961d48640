// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portunus-gw/portunus/internal/logging"
	"github.com/portunus-gw/portunus/internal/models"
	"github.com/portunus-gw/portunus/internal/store"
)

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, store.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "ALREADY_EXISTS", "Resource already exists", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", err)
	}
}

// actorID returns the authenticated admin's identity for audit logging.
func actorID(r *http.Request) string {
	if id, ok := identityFromContext(r.Context()); ok {
		return id.ID
	}
	return ""
}

// --- users ---

// UserList returns all user records.
func (h *Handlers) UserList(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// UserGet returns one user with their current grants.
func (h *Handlers) UserGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	grants, err := h.store.ListGrantsByUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"user":   user,
		"grants": grants,
	})
}

type userProfileRequest struct {
	ProfileName string `json:"profile_name" validate:"required,min=1,max=128"`
}

// UserSetProfile re-points a user's profile. The profile must exist; a typo
// here would otherwise silently strip the user of all profile permissions.
func (h *Handlers) UserSetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req userProfileRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if _, err := h.store.GetProfile(r.Context(), req.ProfileName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "PROFILE_NOT_FOUND",
				"Requested profile does not exist", nil)
			return
		}
		writeStoreError(w, err)
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	user.ProfileName = req.ProfileName
	user.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.Invalidate(id)

	logging.Ctx(r.Context()).Info().
		Str("user_id", id).
		Str("profile", req.ProfileName).
		Str("actor", actorID(r)).
		Msg("User profile changed")
	respondSuccess(w, http.StatusOK, user)
}

type userActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// UserSetActive activates or deactivates a user. Deactivation takes effect
// on the user's next request once their cached context is dropped.
func (h *Handlers) UserSetActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req userActiveRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	user.IsActive = *req.IsActive
	user.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.Invalidate(id)

	logging.Ctx(r.Context()).Info().
		Str("user_id", id).
		Bool("is_active", user.IsActive).
		Str("actor", actorID(r)).
		Msg("User activation changed")
	respondSuccess(w, http.StatusOK, user)
}

// UserForceLogout drops a user's cached context immediately. Admin remedy
// for a compromised or offboarded account between cache refreshes.
func (h *Handlers) UserForceLogout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetUser(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.Invalidate(id)

	logging.Ctx(r.Context()).Info().
		Str("user_id", id).
		Str("actor", actorID(r)).
		Msg("User force-logged-out")
	respondSuccess(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// --- grants ---

type grantRequest struct {
	SetName   string     `json:"set_name" validate:"required,min=1,max=128"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// UserGrant assigns a permission set to a user. Re-granting overwrites the
// previous grant, including its expiry.
func (h *Handlers) UserGrant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req grantRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if _, err := h.store.GetUser(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := h.store.GetPermissionSet(r.Context(), req.SetName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "PERMISSION_SET_NOT_FOUND",
				"Requested permission set does not exist", nil)
			return
		}
		writeStoreError(w, err)
		return
	}

	grant := &models.Grant{
		UserID:    id,
		SetName:   req.SetName,
		GrantedBy: actorID(r),
		GrantedAt: time.Now().UTC(),
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.store.PutGrant(r.Context(), grant); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.Invalidate(id)

	logging.Ctx(r.Context()).Info().
		Str("user_id", id).
		Str("set", req.SetName).
		Str("actor", actorID(r)).
		Msg("Permission set granted")
	respondSuccess(w, http.StatusCreated, grant)
}

// UserRevokeGrant removes a permission-set grant from a user.
func (h *Handlers) UserRevokeGrant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	setName := chi.URLParam(r, "set")

	if err := h.store.DeleteGrant(r.Context(), id, setName); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.Invalidate(id)

	logging.Ctx(r.Context()).Info().
		Str("user_id", id).
		Str("set", setName).
		Str("actor", actorID(r)).
		Msg("Permission set revoked")
	respondSuccess(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// --- profiles ---

type profileRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=128"`
	DisplayName string   `json:"display_name" validate:"omitempty,max=256"`
	Permissions []string `json:"permissions" validate:"required,dive,permission"`
}

// ProfilePut creates or replaces a profile. Changing a profile affects
// every user assigned to it, so the whole cache is flushed.
func (h *Handlers) ProfilePut(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	profile := &models.Profile{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Permissions: req.Permissions,
	}
	if err := h.store.PutProfile(r.Context(), profile); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.InvalidateAll()

	logging.Ctx(r.Context()).Info().
		Str("profile", req.Name).
		Str("actor", actorID(r)).
		Msg("Profile stored")
	respondSuccess(w, http.StatusOK, profile)
}

// ProfileList returns all profiles.
func (h *Handlers) ProfileList(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListProfiles(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// ProfileDelete removes a profile. Users still pointing at it resolve with
// an empty profile until reassigned.
func (h *Handlers) ProfileDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.store.DeleteProfile(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.InvalidateAll()

	logging.Ctx(r.Context()).Info().
		Str("profile", name).
		Str("actor", actorID(r)).
		Msg("Profile deleted")
	respondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- permission sets ---

type permissionSetRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=128"`
	Description string   `json:"description" validate:"omitempty,max=512"`
	Permissions []string `json:"permissions" validate:"required,dive,permission"`
}

// PermissionSetPut creates or replaces a permission set.
func (h *Handlers) PermissionSetPut(w http.ResponseWriter, r *http.Request) {
	var req permissionSetRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	set := &models.PermissionSet{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	}
	if err := h.store.PutPermissionSet(r.Context(), set); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.InvalidateAll()

	logging.Ctx(r.Context()).Info().
		Str("set", req.Name).
		Str("actor", actorID(r)).
		Msg("Permission set stored")
	respondSuccess(w, http.StatusOK, set)
}

// PermissionSetList returns all permission sets.
func (h *Handlers) PermissionSetList(w http.ResponseWriter, r *http.Request) {
	sets, err := h.store.ListPermissionSets(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"permission_sets": sets,
		"count":           len(sets),
	})
}

// PermissionSetDelete removes a permission set. Existing grants referencing
// it stop contributing permissions.
func (h *Handlers) PermissionSetDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.store.DeletePermissionSet(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}
	h.resolver.InvalidateAll()

	logging.Ctx(r.Context()).Info().
		Str("set", name).
		Str("actor", actorID(r)).
		Msg("Permission set deleted")
	respondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"})
}
