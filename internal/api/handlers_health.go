// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthLive reports process liveness. Always 200 while the process runs.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports readiness: the record store must answer.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.ListProfiles(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"Record store not ready", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Health reports overall gateway health. The upstream probe is best-effort:
// an unreachable upstream degrades the report but readiness stays governed
// by the store alone, since the gateway's control plane still works.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if _, err := h.store.ListProfiles(r.Context()); err != nil {
		storeOK = false
	}

	upstreamOK := h.probeUpstream(r.Context())

	status := http.StatusOK
	overall := "healthy"
	if !storeOK {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	} else if !upstreamOK {
		overall = "degraded"
	}

	respondSuccess(w, status, map[string]interface{}{
		"status": overall,
		"components": map[string]bool{
			"store":    storeOK,
			"upstream": upstreamOK,
		},
	})
}

func (h *Handlers) probeUpstream(ctx context.Context) bool {
	if h.cfg.Upstream.URL == "" {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, h.cfg.Upstream.URL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
