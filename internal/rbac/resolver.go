// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package rbac resolves verified identities into authorization contexts and
// decides access against profile and permission requirements.
//
// Resolution reads the user record, its profile, and its unexpired
// permission-set grants, and caches the result with a TTL. Admin writes that
// change a user's authorization must call Invalidate so the next request
// re-reads the store instead of waiting out the TTL.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/portunus-gw/portunus/internal/logging"
	"github.com/portunus-gw/portunus/internal/metrics"
	"github.com/portunus-gw/portunus/internal/models"
	"github.com/portunus-gw/portunus/internal/store"
)

// Sentinel errors for use with errors.Is()
var (
	// ErrUserNotFound indicates the identity has no business-user record.
	ErrUserNotFound = errors.New("no user record for identity")

	// ErrUserDeactivated indicates the user record exists but is inactive.
	ErrUserDeactivated = errors.New("user is deactivated")

	// ErrNoProfileAssigned indicates a route demanded a profile and the
	// user has none.
	ErrNoProfileAssigned = errors.New("no profile assigned")
)

// Resolver turns user IDs into RBAC contexts, with TTL caching.
type Resolver struct {
	store *store.Store
	cache *contextCache
}

// NewResolver creates a resolver over the record store.
func NewResolver(st *store.Store, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		store: st,
		cache: newContextCache(cacheTTL),
	}
}

// Resolve returns the RBAC context for a user, from cache when fresh.
//
// A missing user returns ErrUserNotFound and a deactivated user returns
// ErrUserDeactivated; neither outcome is cached, so reactivating a user
// takes effect on their next request. A user without a profile still
// resolves, with an empty profile name and only grant-derived permissions.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*models.RBACContext, error) {
	if cached, ok := r.cache.get(userID); ok {
		metrics.RBACCacheHits.Inc()
		return cached, nil
	}
	metrics.RBACCacheMisses.Inc()

	user, err := r.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserDeactivated
	}

	rc := &models.RBACContext{
		UserID:   user.ID,
		IsActive: true,
	}

	permSet := make(map[string]struct{})

	if user.ProfileName != "" {
		profile, err := r.store.GetProfile(ctx, user.ProfileName)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Dangling profile reference; user keeps grant permissions only.
			logging.Ctx(ctx).Warn().
				Str("user_id", user.ID).
				Str("profile", user.ProfileName).
				Msg("User references missing profile")
		case err != nil:
			return nil, fmt.Errorf("load profile: %w", err)
		default:
			rc.ProfileName = profile.Name
			for _, p := range profile.Permissions {
				permSet[p] = struct{}{}
			}
		}
	}

	now := time.Now()
	grants, err := r.store.ListGrantsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}
	for _, grant := range grants {
		if grant.IsExpired(now) {
			continue
		}
		set, err := r.store.GetPermissionSet(ctx, grant.SetName)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load permission set: %w", err)
		}
		for _, p := range set.Permissions {
			permSet[p] = struct{}{}
		}
	}

	rc.Permissions = make([]string, 0, len(permSet))
	for p := range permSet {
		rc.Permissions = append(rc.Permissions, p)
	}
	sort.Strings(rc.Permissions)

	r.cache.set(userID, rc)
	return rc, nil
}

// Invalidate drops a user's cached context. Call after any admin write that
// changes the user's profile, grants, or active flag, and on logout.
func (r *Resolver) Invalidate(userID string) {
	metrics.RBACCacheInvalidations.Inc()
	r.cache.invalidate(userID)
}

// InvalidateAll drops every cached context. Used when a profile or
// permission set changes, since any user may reference it.
func (r *Resolver) InvalidateAll() {
	metrics.RBACCacheInvalidations.Inc()
	r.cache.clear()
}

// Stop stops the cache janitor.
func (r *Resolver) Stop() {
	r.cache.stop()
}
