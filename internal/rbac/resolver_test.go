// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/portunus-gw/portunus/internal/config"
	"github.com/portunus-gw/portunus/internal/models"
	"github.com/portunus-gw/portunus/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()

	st, err := store.Open(config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	r := NewResolver(st, time.Minute)
	t.Cleanup(func() {
		r.Stop()
		st.Close()
	})
	return r, st
}

func seedUser(t *testing.T, st *store.Store, user *models.User) {
	t.Helper()
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestResolveWithProfileAndGrants(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	if err := st.PutProfile(ctx, &models.Profile{
		Name:        "sales_user",
		Permissions: []string{"leads:records:read", "leads:records:write"},
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := st.PutPermissionSet(ctx, &models.PermissionSet{
		Name:        "exports",
		Permissions: []string{"leads:exports:create", "leads:records:read"},
	}); err != nil {
		t.Fatalf("seed permission set: %v", err)
	}
	seedUser(t, st, &models.User{ID: "u-1", Email: "rep@example.com", ProfileName: "sales_user", IsActive: true})
	if err := st.PutGrant(ctx, &models.Grant{UserID: "u-1", SetName: "exports", GrantedAt: time.Now()}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	rc, err := r.Resolve(ctx, "u-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rc.ProfileName != "sales_user" {
		t.Errorf("expected profile sales_user, got %q", rc.ProfileName)
	}

	// Union of profile and grant permissions, deduplicated
	want := []string{"leads:exports:create", "leads:records:read", "leads:records:write"}
	if len(rc.Permissions) != len(want) {
		t.Fatalf("expected %d permissions, got %v", len(want), rc.Permissions)
	}
	for i, p := range want {
		if rc.Permissions[i] != p {
			t.Errorf("permission[%d] = %q, want %q", i, rc.Permissions[i], p)
		}
	}
}

func TestResolveUserNotFound(t *testing.T) {
	r, _ := newTestResolver(t)

	if _, err := r.Resolve(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestResolveDeactivatedNotCached(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	user := &models.User{ID: "u-1", Email: "rep@example.com", IsActive: false}
	seedUser(t, st, user)

	if _, err := r.Resolve(ctx, "u-1"); !errors.Is(err, ErrUserDeactivated) {
		t.Fatalf("expected ErrUserDeactivated, got %v", err)
	}

	// Reactivation takes effect immediately: denials are never cached
	user.IsActive = true
	if err := st.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if _, err := r.Resolve(ctx, "u-1"); err != nil {
		t.Errorf("expected resolve after reactivation, got %v", err)
	}
}

func TestResolveNoProfile(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	seedUser(t, st, &models.User{ID: "u-1", Email: "rep@example.com", IsActive: true})

	rc, err := r.Resolve(ctx, "u-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rc.ProfileName != "" {
		t.Errorf("expected empty profile name, got %q", rc.ProfileName)
	}
	if len(rc.Permissions) != 0 {
		t.Errorf("expected no permissions, got %v", rc.Permissions)
	}
}

func TestResolveMissingProfileRow(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	seedUser(t, st, &models.User{ID: "u-1", Email: "rep@example.com", ProfileName: "ghost", IsActive: true})

	rc, err := r.Resolve(ctx, "u-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rc.ProfileName != "" {
		t.Errorf("expected empty profile name for dangling reference, got %q", rc.ProfileName)
	}
}

func TestResolveSkipsExpiredGrants(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	if err := st.PutPermissionSet(ctx, &models.PermissionSet{
		Name:        "exports",
		Permissions: []string{"leads:exports:create"},
	}); err != nil {
		t.Fatalf("seed permission set: %v", err)
	}
	seedUser(t, st, &models.User{ID: "u-1", Email: "rep@example.com", IsActive: true})

	expired := time.Now().Add(-time.Hour)
	if err := st.PutGrant(ctx, &models.Grant{
		UserID:    "u-1",
		SetName:   "exports",
		GrantedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: &expired,
	}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	rc, err := r.Resolve(ctx, "u-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rc.Permissions) != 0 {
		t.Errorf("expected expired grant to contribute nothing, got %v", rc.Permissions)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	if err := st.PutProfile(ctx, &models.Profile{
		Name:        "sales_user",
		Permissions: []string{"leads:records:read"},
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	user := &models.User{ID: "u-1", Email: "rep@example.com", ProfileName: "sales_user", IsActive: true}
	seedUser(t, st, user)

	first, err := r.Resolve(ctx, "u-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(first.Permissions) != 1 {
		t.Fatalf("unexpected permissions: %v", first.Permissions)
	}

	// A store write alone is invisible while cached
	user.ProfileName = ""
	if err := st.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	stale, err := r.Resolve(ctx, "u-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if stale.ProfileName != "sales_user" {
		t.Errorf("expected cached context before invalidation, got %q", stale.ProfileName)
	}

	r.Invalidate("u-1")

	fresh, err := r.Resolve(ctx, "u-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if fresh.ProfileName != "" || len(fresh.Permissions) != 0 {
		t.Errorf("expected reloaded context after invalidation, got %+v", fresh)
	}
}

func TestDeactivatedRejectedAfterTTL(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	if err := st.PutProfile(ctx, &models.Profile{
		Name:        "sales_user",
		Permissions: []string{"leads:records:read"},
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	user := &models.User{ID: "u-1", Email: "rep@example.com", ProfileName: "sales_user", IsActive: true}
	seedUser(t, st, user)

	// Deterministic clock
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	r.cache.now = func() time.Time { return now }

	if _, err := r.Resolve(ctx, "u-1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Deactivation without invalidation stays invisible while the cached
	// context is fresh.
	user.IsActive = false
	if err := st.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if _, err := r.Resolve(ctx, "u-1"); err != nil {
		t.Fatalf("expected cached context inside TTL, got %v", err)
	}

	// Once the TTL elapses the next resolve re-reads the store.
	now = now.Add(time.Minute + time.Second)
	if _, err := r.Resolve(ctx, "u-1"); !errors.Is(err, ErrUserDeactivated) {
		t.Errorf("expected ErrUserDeactivated after TTL, got %v", err)
	}
}
