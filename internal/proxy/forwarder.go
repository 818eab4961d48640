// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package proxy forwards authorized requests to the downstream business
// service with trusted identity headers injected. The downstream trusts the
// gateway's headers and the shared proxy secret instead of re-verifying
// tokens.
package proxy

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/portunus-gw/portunus/internal/config"
	"github.com/portunus-gw/portunus/internal/logging"
	"github.com/portunus-gw/portunus/internal/metrics"
)

// Forwarder builds per-mount reverse proxies against the upstream service.
type Forwarder struct {
	target    *url.URL
	secret    string
	suffixes  []string
	transport http.RoundTripper
}

// NewForwarder creates a forwarder from upstream configuration.
//
// The transport carries a minutes-scale ResponseHeaderTimeout: the
// downstream performs long-running work, and the gateway must not cut it
// off on the short timeouts used for identity and store calls.
func NewForwarder(cfg config.UpstreamConfig) (*Forwarder, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream url %q missing scheme or host", cfg.URL)
	}

	headerTimeout := cfg.ResponseHeaderTimeout
	if headerTimeout <= 0 {
		headerTimeout = 5 * time.Minute
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
	}

	return &Forwarder{
		target:    target,
		secret:    cfg.ProxySecret,
		suffixes:  cfg.StreamPathSuffixes,
		transport: transport,
	}, nil
}

// isStreamPath reports whether a path is forwarded with buffering disabled
// before the upstream declares a content type.
func (f *Forwarder) isStreamPath(path string) bool {
	for _, suffix := range f.suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// Handler returns the forwarding handler for one mount. The router guards
// it with the mount's access requirement; by the time a request reaches it,
// the trusted envelope is in the request context.
func (f *Forwarder) Handler(mount config.Mount) http.Handler {
	rewrite := func(pr *httputil.ProxyRequest) {
		pr.SetXForwarded()
		pr.Out.URL.Scheme = f.target.Scheme
		pr.Out.URL.Host = f.target.Host
		pr.Out.Host = f.target.Host

		// Static mount-point rewrite: /gw/leads/records -> /api/leads/records
		rest := strings.TrimPrefix(pr.In.URL.Path, mount.Prefix)
		pr.Out.URL.Path = singleJoin(mount.UpstreamPrefix, rest)

		stripInbound(pr.Out.Header)
		if env, ok := FromContext(pr.In.Context()); ok {
			env.Apply(pr.Out.Header, f.secret)
		}
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		metrics.ProxyUpstreamErrors.WithLabelValues(mount.Prefix).Inc()
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("mount", mount.Prefix).
			Str("path", r.URL.Path).
			Msg("Upstream request failed")
		respondUpstreamError(w)
	}

	modifyResponse := func(resp *http.Response) error {
		metrics.RecordProxyRequest(mount.Prefix, resp.StatusCode)
		if isEventStream(resp.Header.Get("Content-Type")) {
			resp.Header.Set("X-Accel-Buffering", "no")
		}
		return nil
	}

	buffered := &httputil.ReverseProxy{
		Rewrite:        rewrite,
		Transport:      f.transport,
		ErrorHandler:   errorHandler,
		ModifyResponse: modifyResponse,
	}
	streaming := &httputil.ReverseProxy{
		Rewrite:        rewrite,
		Transport:      f.transport,
		ErrorHandler:   errorHandler,
		ModifyResponse: modifyResponse,
		FlushInterval:  -1,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Event-stream responses already flush immediately; the explicit
		// streaming proxy covers path-suffix streams with other content
		// types. Client disconnect cancels upstream via request context.
		if f.isStreamPath(r.URL.Path) {
			metrics.ProxyStreamingRequests.Inc()
			w.Header().Set("X-Accel-Buffering", "no")
			streaming.ServeHTTP(w, r)
			return
		}
		buffered.ServeHTTP(w, r)
	})
}

// singleJoin joins two path segments with exactly one slash.
func singleJoin(a, b string) string {
	aSlash := strings.HasSuffix(a, "/")
	bSlash := strings.HasPrefix(b, "/")
	switch {
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		if b == "" {
			return a
		}
		return a + "/" + b
	}
	return a + b
}

// isEventStream reports whether a content type is a server-sent event stream.
func isEventStream(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "text/event-stream")
}

// respondUpstreamError writes the 502 body for a failed upstream exchange.
// Kept local to avoid buffering concerns of the shared responder on a
// possibly half-written connection.
func respondUpstreamError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	body := map[string]interface{}{
		"status": "error",
		"error": map[string]string{
			"code":    "UPSTREAM_UNAVAILABLE",
			"message": "Upstream service unavailable",
		},
	}
	//nolint:errcheck // Best effort on an already-failed exchange
	json.NewEncoder(w).Encode(body)
}
