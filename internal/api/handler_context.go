// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package api

import (
	"context"

	"github.com/portunus-gw/portunus/internal/config"
	"github.com/portunus-gw/portunus/internal/identity"
	"github.com/portunus-gw/portunus/internal/invite"
	"github.com/portunus-gw/portunus/internal/models"
	"github.com/portunus-gw/portunus/internal/proxy"
	"github.com/portunus-gw/portunus/internal/ratelimit"
	"github.com/portunus-gw/portunus/internal/rbac"
	"github.com/portunus-gw/portunus/internal/store"
)

// Handlers aggregates the dependencies every endpoint needs. Constructed
// once at startup and shared by all requests.
type Handlers struct {
	cfg       *config.Config
	store     *store.Store
	verifier  identity.Verifier
	resolver  *rbac.Resolver
	invites   *invite.Service
	limiter   *ratelimit.Limiter
	forwarder *proxy.Forwarder
}

// NewHandlers wires the handler set.
func NewHandlers(
	cfg *config.Config,
	st *store.Store,
	verifier identity.Verifier,
	resolver *rbac.Resolver,
	invites *invite.Service,
	limiter *ratelimit.Limiter,
	forwarder *proxy.Forwarder,
) *Handlers {
	return &Handlers{
		cfg:       cfg,
		store:     st,
		verifier:  verifier,
		resolver:  resolver,
		invites:   invites,
		limiter:   limiter,
		forwarder: forwarder,
	}
}

type identityCtxKey struct{}
type rbacCtxKey struct{}

// contextWithIdentity stores the verified identity on the request context.
func contextWithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// identityFromContext returns the verified identity, if the request passed
// the authentication middleware.
func identityFromContext(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(*models.Identity)
	return id, ok
}

// contextWithRBAC stores the resolved RBAC context on the request context.
func contextWithRBAC(ctx context.Context, rc *models.RBACContext) context.Context {
	return context.WithValue(ctx, rbacCtxKey{}, rc)
}

// rbacFromContext returns the resolved RBAC context, if the request passed
// the resolution middleware.
func rbacFromContext(ctx context.Context) (*models.RBACContext, bool) {
	rc, ok := ctx.Value(rbacCtxKey{}).(*models.RBACContext)
	return rc, ok
}
