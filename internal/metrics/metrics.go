// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package metrics provides Prometheus metrics collection and export.
//
// Metrics cover the full request pipeline: token verification outcomes,
// authorization decisions, RBAC cache efficiency, rate limiting, invite
// lifecycle events, and proxy forwarding.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests handled by the gateway",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Authentication
	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_token_verifications_total",
			Help: "Total number of bearer token verifications by outcome",
		},
		[]string{"outcome"}, // "ok", "unauthenticated", "invalid", "provider_unavailable"
	)

	IdentityProviderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_identity_provider_duration_seconds",
			Help:    "Duration of identity provider lookups",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Authorization
	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_access_decisions_total",
			Help: "Total number of access decisions by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: "profile", "permission"; outcome: "allow", "deny"
	)

	RBACCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rbac_cache_hits_total",
			Help: "Total number of RBAC context cache hits",
		},
	)

	RBACCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rbac_cache_misses_total",
			Help: "Total number of RBAC context cache misses",
		},
	)

	RBACCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rbac_cache_invalidations_total",
			Help: "Total number of explicit RBAC cache invalidations",
		},
	)

	RBACCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_rbac_cache_entries",
			Help: "Current number of cached RBAC contexts",
		},
	)

	// Rate limiting
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	// Invite lifecycle
	InviteEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_invite_events_total",
			Help: "Total number of invite lifecycle events",
		},
		[]string{"event"}, // "created", "validated", "consumed", "revoked", "rejected"
	)

	// Proxy forwarding
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_proxy_requests_total",
			Help: "Total number of requests forwarded upstream by mount and status",
		},
		[]string{"mount", "status_code"},
	)

	ProxyUpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_proxy_upstream_errors_total",
			Help: "Total number of upstream transport failures",
		},
		[]string{"mount"},
	)

	ProxyStreamingRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_proxy_streaming_requests_total",
			Help: "Total number of requests forwarded with buffering disabled",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)
)

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	HTTPRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordTokenVerification records a bearer token verification outcome.
func RecordTokenVerification(outcome string, duration time.Duration) {
	TokenVerifications.WithLabelValues(outcome).Inc()
	IdentityProviderDuration.Observe(duration.Seconds())
}

// RecordAccessDecision records an allow/deny decision.
func RecordAccessDecision(kind string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	AccessDecisions.WithLabelValues(kind, outcome).Inc()
}

// RecordRateLimitRejection records a 429 emitted for a route.
func RecordRateLimitRejection(route string) {
	RateLimitRejections.WithLabelValues(route).Inc()
}

// RecordInviteEvent records an invite lifecycle event.
func RecordInviteEvent(event string) {
	InviteEvents.WithLabelValues(event).Inc()
}

// RecordProxyRequest records one upstream-forwarded request.
func RecordProxyRequest(mount string, statusCode int) {
	ProxyRequests.WithLabelValues(mount, strconv.Itoa(statusCode)).Inc()
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}
