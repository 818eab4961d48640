// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package api wires HTTP routing with Chi: middleware composition, the
// control-plane endpoints, and the proxied mounts.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portunus-gw/portunus/internal/middleware"
)

// Router builds the gateway's HTTP handler tree.
type Router struct {
	handlers *Handlers
}

// NewRouter creates a Router around the shared handler set.
func NewRouter(h *Handlers) *Router {
	return &Router{handlers: h}
}

// Setup assembles the full route tree.
//
// Every route passes the global chain (request ID, real IP, panic recovery,
// CORS). Sensitive routes add the gateway's own fixed-window limiter with
// per-route rules; the coarse httprate limit on public endpoints only stops
// runaway clients from hammering health and metrics.
func (router *Router) Setup() http.Handler {
	h := router.handlers
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public, unauthenticated.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Use(SecurityHeaders)
		r.Get("/api/v1/health/live", h.HealthLive)
		r.Get("/api/v1/health/ready", h.HealthReady)
		r.Get("/api/v1/health", h.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Invite pre-flight: public, no bearer token yet.
	r.With(SecurityHeaders, middleware.PrometheusMetrics, h.RateLimit("invite_validate")).
		Post("/api/v1/invites/validate", h.InviteValidate)

	// Invite consumption: verified identity required, but no user record.
	r.With(SecurityHeaders, middleware.PrometheusMetrics, h.RateLimit("invite_consume"), h.Authenticate).
		Post("/api/v1/invites/consume", h.InviteConsume)

	// Authenticated control plane.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)
		r.Use(h.RateLimit("session"))
		r.Use(h.Authenticate)
		r.Use(h.ResolveContext)

		r.Get("/session", h.Session)
		r.Post("/session/logout", h.Logout)

		// Admin surface.
		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission("admin:invites:*"))
			r.With(h.RateLimit("invite_create")).Post("/invites", h.InviteCreate)
			r.Get("/invites", h.InviteList)
			r.Delete("/invites/{id}", h.InviteRevoke)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission("admin:users:*"))

			r.Get("/users", h.UserList)
			r.Get("/users/{id}", h.UserGet)
			r.Put("/users/{id}/profile", h.UserSetProfile)
			r.Put("/users/{id}/active", h.UserSetActive)
			r.Post("/users/{id}/logout", h.UserForceLogout)
			r.Post("/users/{id}/grants", h.UserGrant)
			r.Delete("/users/{id}/grants/{set}", h.UserRevokeGrant)

			r.Get("/profiles", h.ProfileList)
			r.Put("/profiles", h.ProfilePut)
			r.Delete("/profiles/{name}", h.ProfileDelete)

			r.Get("/permission-sets", h.PermissionSetList)
			r.Put("/permission-sets", h.PermissionSetPut)
			r.Delete("/permission-sets/{name}", h.PermissionSetDelete)
		})
	})

	// Proxied mounts: the data plane.
	for _, mount := range h.cfg.Upstream.Mounts {
		handler := h.forwarder.Handler(mount)

		r.Group(func(r chi.Router) {
			// Rejecting on a counter comes before any verification work.
			r.Use(h.RateLimit("proxy"))
			r.Use(h.Authenticate)
			r.Use(h.ResolveContext)
			if len(mount.RequiredProfiles) > 0 {
				r.Use(h.RequireProfiles(mount.RequiredProfiles...))
			}
			if mount.RequiredPermission != "" {
				r.Use(h.RequirePermission(mount.RequiredPermission))
			}
			r.Use(h.InjectEnvelope)

			r.Handle(mount.Prefix, handler)
			r.Handle(mount.Prefix+"/*", handler)
		})
	}

	return r
}
