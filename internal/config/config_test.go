// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a config that passes Validate, for tests to mutate.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Identity.URL = "http://identity.internal:9000"
	cfg.Upstream.URL = "http://backend.internal:4000"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_MissingIdentityURL(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing identity.url")
	}
}

func TestValidate_MissingUpstreamURL(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing upstream.url")
	}
}

func TestValidate_PortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for port 0")
	}

	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for port 70000")
	}
}

func TestValidate_MountPrefix(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.Mounts = []Mount{
		{Prefix: "api/v1/sales", UpstreamPrefix: "/sales"},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must start with /") {
		t.Fatalf("expected prefix error, got %v", err)
	}
}

func TestValidate_DuplicateMounts(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.Mounts = []Mount{
		{Prefix: "/api/v1/sales", UpstreamPrefix: "/sales"},
		{Prefix: "/api/v1/sales", UpstreamPrefix: "/other"},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicated") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestValidate_MountRequirementExclusive(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.Mounts = []Mount{
		{
			Prefix:             "/api/v1/sales",
			UpstreamPrefix:     "/sales",
			RequiredPermission: "sales:proposals:read",
			RequiredProfiles:   []string{"sales_user"},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when both requirement kinds are set")
	}
}

func TestValidate_InviteTTLBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Invite.MinTTLDays = 10
	cfg.Invite.MaxTTLDays = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min > max")
	}

	cfg = validConfig()
	cfg.Invite.DefaultTTLDays = 31
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for default outside bounds")
	}
}

func TestValidate_Production(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Environment = "production"

	// No proxy secret.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing proxy secret in production")
	}

	// Short secret.
	cfg.Upstream.ProxySecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short proxy secret in production")
	}

	// Wildcard CORS.
	cfg.Upstream.ProxySecret = strings.Repeat("s", 32)
	cfg.Security.CORSOrigins = []string{"*"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for wildcard CORS in production")
	}

	cfg.Security.CORSOrigins = []string{"https://console.example.com"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestDefaultConfig_SensitiveRouteLimits(t *testing.T) {
	cfg := defaultConfig()

	rule, ok := cfg.RateLimit.Routes["invite_create"]
	if !ok {
		t.Fatal("expected default rule for invite_create")
	}
	if rule.Max >= cfg.RateLimit.Default.Max {
		t.Errorf("invite_create limit %d should be stricter than default %d",
			rule.Max, cfg.RateLimit.Default.Max)
	}
	if rule.Window != time.Minute {
		t.Errorf("invite_create window = %v, want 1m", rule.Window)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"IDENTITY_URL", "identity.url"},
		{"PROXY_SECRET", "upstream.proxy_secret"},
		{"RBAC_CACHE_TTL", "cache.ttl"},
		{"HTTP_PORT", "server.port"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}
