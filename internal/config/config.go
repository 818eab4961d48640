// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package config defines the gateway configuration and its layered loading.
//
// Configuration is loaded via Koanf v2 with layered sources, highest
// priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or the default search paths)
//  3. Environment variables (PROXY_SECRET, IDENTITY_URL, ...)
//
// Proxy mounts and per-route rate-limit rules are structured lists and are
// expected to come from the config file; scalar settings may come from
// either source.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for the gateway.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Identity  IdentityConfig  `koanf:"identity"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Invite    InviteConfig    `koanf:"invite"`
	Store     StoreConfig     `koanf:"store"`
	Mail      MailConfig      `koanf:"mail"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// Timeout applies to locally handled requests (read header/idle).
	// Proxied requests carry their own upstream timeouts.
	Timeout time.Duration `koanf:"timeout"`

	// Environment is "development" or "production"; production enables
	// stricter validation (secrets must be set, CORS must not be *).
	Environment string `koanf:"environment"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IdentityConfig holds identity-provider client settings.
type IdentityConfig struct {
	// URL is the base URL of the identity provider.
	URL string `koanf:"url" validate:"required,url"`

	// APIKey authenticates the gateway itself to the provider, if required.
	APIKey string `koanf:"api_key"`

	// Timeout bounds a single lookup-by-token call. Seconds, not minutes:
	// a slow provider must not stall the whole request pipeline.
	Timeout time.Duration `koanf:"timeout"`

	// BreakerMaxFailures is the consecutive-failure count that opens the
	// circuit breaker around provider calls.
	BreakerMaxFailures uint32 `koanf:"breaker_max_failures"`

	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// Mount declares one proxied route group: a gateway path prefix, the
// upstream prefix it rewrites to, and the access requirement the decision
// engine enforces before forwarding. Exactly one of RequiredPermission or
// RequiredProfiles should be set; when both are empty any resolved, active
// user may pass.
type Mount struct {
	Prefix             string   `koanf:"prefix" validate:"required"`
	UpstreamPrefix     string   `koanf:"upstream_prefix" validate:"required"`
	RequiredPermission string   `koanf:"required_permission"`
	RequiredProfiles   []string `koanf:"required_profiles"`
}

// UpstreamConfig holds trusted-proxy forwarding settings.
type UpstreamConfig struct {
	// URL is the base URL of the downstream business-logic service.
	URL string `koanf:"url" validate:"required,url"`

	// ProxySecret is the shared secret sent as X-Proxy-Secret. The
	// downstream rejects requests that lack the correct value.
	ProxySecret string `koanf:"proxy_secret"`

	// ResponseHeaderTimeout bounds the wait for upstream response headers.
	// Minutes-scale: the downstream performs long-running generative work.
	ResponseHeaderTimeout time.Duration `koanf:"response_header_timeout"`

	// StreamPathSuffixes lists path suffixes treated as streaming even
	// before the upstream declares a content type (e.g. "/stream").
	StreamPathSuffixes []string `koanf:"stream_path_suffixes"`

	// Mounts maps gateway prefixes to upstream prefixes with access
	// requirements.
	Mounts []Mount `koanf:"mounts"`
}

// CacheConfig holds RBAC cache settings.
type CacheConfig struct {
	// TTL is how long a resolved RBAC context may be trusted. Explicit
	// invalidation always wins over TTL.
	TTL time.Duration `koanf:"ttl"`
}

// RateLimitRule is a fixed-window limit: at most Max requests per Window
// per (client, route) key.
type RateLimitRule struct {
	Max    int           `koanf:"max"`
	Window time.Duration `koanf:"window"`
}

// RateLimitConfig holds the fixed-window limiter settings.
type RateLimitConfig struct {
	Disabled bool `koanf:"disabled"`

	// Default applies to limited routes without a specific rule.
	Default RateLimitRule `koanf:"default"`

	// Routes maps a route label (e.g. "invite_create") to its rule.
	Routes map[string]RateLimitRule `koanf:"routes"`

	// SweepInterval is how often stale counters are removed.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// InviteConfig holds invite-token lifecycle settings.
type InviteConfig struct {
	// DefaultTTLDays is used when a create request omits the TTL.
	DefaultTTLDays int `koanf:"default_ttl_days" validate:"min=1,max=30"`

	// MinTTLDays and MaxTTLDays clamp requested TTLs.
	MinTTLDays int `koanf:"min_ttl_days" validate:"min=1"`
	MaxTTLDays int `koanf:"max_ttl_days" validate:"max=30"`
}

// StoreConfig holds BadgerDB settings for the record store.
type StoreConfig struct {
	// Path is the on-disk location of the store.
	Path string `koanf:"path"`

	// InMemory runs the store without persistence. Tests only.
	InMemory bool `koanf:"in_memory"`
}

// MailConfig holds the email collaborator settings. Delivery mechanics are
// external; the gateway only hands off (recipient, subject, template, params).
type MailConfig struct {
	Enabled    bool   `koanf:"enabled"`
	URL        string `koanf:"url"`
	APIKey     string `koanf:"api_key"`
	From       string `koanf:"from"`
	TemplateID string `koanf:"template_id"`
}

// SecurityConfig holds cross-cutting HTTP security settings.
type SecurityConfig struct {
	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// IsProduction reports whether the gateway runs with production checks.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Validate performs semantic validation beyond struct tags.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Identity.URL == "" {
		return fmt.Errorf("identity.url is required")
	}
	if _, err := url.Parse(c.Identity.URL); err != nil {
		return fmt.Errorf("identity.url invalid: %w", err)
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}
	if _, err := url.Parse(c.Upstream.URL); err != nil {
		return fmt.Errorf("upstream.url invalid: %w", err)
	}

	seen := make(map[string]bool, len(c.Upstream.Mounts))
	for i := range c.Upstream.Mounts {
		m := &c.Upstream.Mounts[i]
		if !strings.HasPrefix(m.Prefix, "/") {
			return fmt.Errorf("upstream.mounts[%d].prefix %q must start with /", i, m.Prefix)
		}
		if seen[m.Prefix] {
			return fmt.Errorf("upstream.mounts[%d].prefix %q duplicated", i, m.Prefix)
		}
		seen[m.Prefix] = true
		if m.RequiredPermission != "" && len(m.RequiredProfiles) > 0 {
			return fmt.Errorf("upstream.mounts[%d]: required_permission and required_profiles are mutually exclusive", i)
		}
	}

	if c.Invite.MinTTLDays > c.Invite.MaxTTLDays {
		return fmt.Errorf("invite.min_ttl_days %d exceeds invite.max_ttl_days %d",
			c.Invite.MinTTLDays, c.Invite.MaxTTLDays)
	}
	if c.Invite.DefaultTTLDays < c.Invite.MinTTLDays || c.Invite.DefaultTTLDays > c.Invite.MaxTTLDays {
		return fmt.Errorf("invite.default_ttl_days %d outside [%d, %d]",
			c.Invite.DefaultTTLDays, c.Invite.MinTTLDays, c.Invite.MaxTTLDays)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if c.IsProduction() {
		if err := c.validateProduction(); err != nil {
			return err
		}
	}

	return nil
}

// validateProduction enforces settings that are unsafe to leave defaulted
// outside development.
func (c *Config) validateProduction() error {
	if c.Upstream.ProxySecret == "" {
		return fmt.Errorf("upstream.proxy_secret is required in production")
	}
	if len(c.Upstream.ProxySecret) < 32 {
		return fmt.Errorf("upstream.proxy_secret must be at least 32 characters in production")
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("security.cors_origins must not contain * in production")
		}
	}
	if c.Store.InMemory {
		return fmt.Errorf("store.in_memory is not allowed in production")
	}
	return nil
}
