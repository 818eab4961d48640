// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package main is the entry point for the Portunus gateway.
//
// Portunus sits between browser clients and a downstream business-logic
// service. It verifies bearer tokens against an external identity provider,
// resolves each caller's profile and permissions from its own record store,
// enforces per-route access rules, and forwards allowed requests upstream
// with a trusted identity envelope in place of the original credentials.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML file, env)
//  2. Record store: BadgerDB holding users, profiles, grants, and invites
//  3. Identity client: provider verification behind a circuit breaker
//  4. RBAC resolver: TTL cache with explicit invalidation
//  5. Invite service, rate limiter, upstream forwarder
//  6. HTTP server under a Suture supervisor tree
//
// Graceful shutdown on SIGINT and SIGTERM: the server stops accepting
// connections, waits for in-flight requests (bounded), then closes the
// store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portunus-gw/portunus/internal/api"
	"github.com/portunus-gw/portunus/internal/config"
	"github.com/portunus-gw/portunus/internal/identity"
	"github.com/portunus-gw/portunus/internal/invite"
	"github.com/portunus-gw/portunus/internal/logging"
	"github.com/portunus-gw/portunus/internal/models"
	"github.com/portunus-gw/portunus/internal/proxy"
	"github.com/portunus-gw/portunus/internal/ratelimit"
	"github.com/portunus-gw/portunus/internal/rbac"
	"github.com/portunus-gw/portunus/internal/store"
	"github.com/portunus-gw/portunus/internal/supervisor"
	"github.com/portunus-gw/portunus/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("identity_url", cfg.Identity.URL).
		Str("upstream_url", cfg.Upstream.URL).
		Int("mounts", len(cfg.Upstream.Mounts)).
		Str("environment", cfg.Server.Environment).
		Msg("Configuration loaded")

	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing record store")
		}
	}()

	if err := seedProfiles(context.Background(), st); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed default profiles")
	}

	verifier := identity.NewClient(cfg.Identity)
	resolver := rbac.NewResolver(st, cfg.Cache.TTL)
	defer resolver.Stop()

	limiter := ratelimit.New(cfg.RateLimit)
	defer limiter.Stop()

	invites := invite.NewService(st, invite.NewSender(cfg.Mail), cfg.Invite)

	forwarder, err := proxy.NewForwarder(cfg.Upstream)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize upstream forwarder")
	}

	handlers := api.NewHandlers(cfg, st, verifier, resolver, invites, limiter, forwarder)
	router := api.NewRouter(handlers)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		// No WriteTimeout: proxied responses stream for minutes.
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMaintenanceService(services.NewMaintenanceService(limiter, st, cfg.RateLimit.SweepInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error during shutdown")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("Shutdown complete")
}

// seedProfiles installs the built-in profiles on first start. An empty
// profile table means nobody, including the first admin, could pass any
// profile-gated route.
func seedProfiles(ctx context.Context, st *store.Store) error {
	profiles, err := st.ListProfiles(ctx)
	if err != nil {
		return err
	}
	if len(profiles) > 0 {
		return nil
	}

	defaults := []*models.Profile{
		{Name: "admin", DisplayName: "Administrator", Permissions: []string{"*:*:*"}},
		{Name: "sales_user", DisplayName: "Sales User", Permissions: []string{
			"sales:leads:read",
			"sales:leads:write",
			"sales:records:read",
		}},
	}
	for _, p := range defaults {
		if err := st.PutProfile(ctx, p); err != nil {
			return err
		}
		logging.Info().Str("profile", p.Name).Msg("Seeded default profile")
	}
	return nil
}
