// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package api

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/portunus-gw/portunus/internal/identity"
	"github.com/portunus-gw/portunus/internal/logging"
	"github.com/portunus-gw/portunus/internal/metrics"
	"github.com/portunus-gw/portunus/internal/proxy"
	"github.com/portunus-gw/portunus/internal/rbac"
)

// clientIP returns the rate-limit key for a request. chi's RealIP runs
// first in the global chain, so RemoteAddr already reflects X-Forwarded-For
// from trusted front proxies.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit is the first middleware on sensitive routes: rejecting on a
// counter is the cheapest possible denial. route names the configured rule.
func (h *Handlers) RateLimit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.limiter.Allow(clientIP(r), route) {
				retryAfter := h.limiter.RetryAfter(clientIP(r), route)
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				}
				respondError(w, http.StatusTooManyRequests, "RATE_LIMITED",
					"Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate verifies the bearer token and stores the resulting identity
// on the request context. Runs after the rate limiter, before resolution.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		token, err := identity.ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			metrics.RecordTokenVerification("unauthenticated", time.Since(start))
			writeAuthError(w, err)
			return
		}

		id, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			metrics.RecordTokenVerification(verificationOutcome(err), time.Since(start))
			writeAuthError(w, err)
			return
		}
		metrics.RecordTokenVerification("ok", time.Since(start))

		next.ServeHTTP(w, r.WithContext(contextWithIdentity(r.Context(), id)))
	})
}

func verificationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, identity.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, identity.ErrProviderUnavailable):
		return "provider_unavailable"
	default:
		return "unauthenticated"
	}
}

// ResolveContext turns the verified identity into an RBAC context. Requires
// Authenticate earlier in the chain.
func (h *Handlers) ResolveContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFromContext(r.Context())
		if !ok {
			writeAuthError(w, identity.ErrUnauthenticated)
			return
		}

		rc, err := h.resolver.Resolve(r.Context(), id.ID)
		if err != nil {
			logging.Ctx(r.Context()).Info().
				Err(err).
				Str("user_id", id.ID).
				Msg("RBAC resolution denied request")
			writeAuthError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithRBAC(r.Context(), rc)))
	})
}

// RequirePermission guards a route with a single target permission.
func (h *Handlers) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, ok := rbacFromContext(r.Context())
			if !ok || !rbac.AllowPermission(rc, permission) {
				respondDenial(w, http.StatusForbidden, "FORBIDDEN",
					"Insufficient permissions", false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireProfiles guards a route with a profile allow-list. A user with no
// profile gets the distinct NO_PROFILE_ASSIGNED rejection.
func (h *Handlers) RequireProfiles(profiles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, ok := rbacFromContext(r.Context())
			if !ok {
				writeAuthError(w, identity.ErrUnauthenticated)
				return
			}
			if rc.ProfileName == "" {
				writeAuthError(w, rbac.ErrNoProfileAssigned)
				return
			}
			if !rbac.AllowProfile(rc, profiles) {
				respondDenial(w, http.StatusForbidden, "FORBIDDEN",
					"Profile not permitted on this route", false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InjectEnvelope builds the trusted envelope from the resolved context and
// hands it to the proxy through the request context. Last middleware before
// a forwarding handler.
func (h *Handlers) InjectEnvelope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, okID := identityFromContext(r.Context())
		rc, okRC := rbacFromContext(r.Context())
		if !okID || !okRC {
			writeAuthError(w, identity.ErrUnauthenticated)
			return
		}

		env := &proxy.TrustedEnvelope{
			UserID:      rc.UserID,
			Email:       id.Email,
			Name:        id.DisplayName,
			Profile:     rc.ProfileName,
			Permissions: rc.Permissions,
		}
		next.ServeHTTP(w, r.WithContext(proxy.NewContext(r.Context(), env)))
	})
}
