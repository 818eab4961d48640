// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package proxy

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
)

// Trusted header names consumed by the downstream service. The downstream
// rejects any request whose X-Proxy-Secret does not match the shared secret.
const (
	HeaderProxySecret     = "X-Proxy-Secret"
	HeaderUserID          = "X-Trusted-User-Id"
	HeaderUserEmail       = "X-Trusted-User-Email"
	HeaderUserName        = "X-Trusted-User-Name"
	HeaderUserProfile     = "X-Trusted-User-Profile"
	HeaderUserPermissions = "X-Trusted-User-Permissions"
)

// TrustedEnvelope carries the resolved identity and authorization for one
// forwarded request. Built fresh per request; never persisted.
type TrustedEnvelope struct {
	UserID      string
	Email       string
	Name        string
	Profile     string
	Permissions []string
}

// Apply writes the envelope onto outbound headers. Any inbound values under
// the trusted names were stripped before this runs; what the upstream sees
// comes only from the gateway.
func (e *TrustedEnvelope) Apply(h http.Header, proxySecret string) {
	h.Set(HeaderProxySecret, proxySecret)
	h.Set(HeaderUserID, e.UserID)
	h.Set(HeaderUserEmail, e.Email)
	h.Set(HeaderUserName, e.Name)
	h.Set(HeaderUserProfile, e.Profile)

	perms := e.Permissions
	if perms == nil {
		perms = []string{}
	}
	encoded, err := json.Marshal(perms)
	if err != nil {
		encoded = []byte("[]")
	}
	h.Set(HeaderUserPermissions, string(encoded))
}

// stripInbound removes credentials and any spoofed trusted headers from the
// client request before forwarding.
func stripInbound(h http.Header) {
	h.Del("Authorization")
	h.Del(HeaderProxySecret)
	h.Del(HeaderUserID)
	h.Del(HeaderUserEmail)
	h.Del(HeaderUserName)
	h.Del(HeaderUserProfile)
	h.Del(HeaderUserPermissions)
}

type envelopeCtxKey struct{}

// NewContext returns a context carrying the trusted envelope.
func NewContext(ctx context.Context, env *TrustedEnvelope) context.Context {
	return context.WithValue(ctx, envelopeCtxKey{}, env)
}

// FromContext extracts the trusted envelope, if present.
func FromContext(ctx context.Context) (*TrustedEnvelope, bool) {
	env, ok := ctx.Value(envelopeCtxKey{}).(*TrustedEnvelope)
	return env, ok
}
