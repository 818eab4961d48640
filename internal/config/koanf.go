// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/portunus/config.yaml",
	"/etc/portunus/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8484,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Identity: IdentityConfig{
			URL:                "",
			APIKey:             "",
			Timeout:            5 * time.Second,
			BreakerMaxFailures: 5,
			BreakerCooldown:    30 * time.Second,
		},
		Upstream: UpstreamConfig{
			URL:                   "",
			ProxySecret:           "",
			ResponseHeaderTimeout: 5 * time.Minute,
			StreamPathSuffixes:    []string{"/stream"},
			Mounts:                nil,
		},
		Cache: CacheConfig{
			TTL: 60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Disabled:      false,
			Default:       RateLimitRule{Max: 100, Window: time.Minute},
			SweepInterval: time.Minute,
			Routes: map[string]RateLimitRule{
				// Invite creation is the most sensitive write path.
				"invite_create":   {Max: 5, Window: time.Minute},
				"invite_validate": {Max: 20, Window: time.Minute},
				"invite_consume":  {Max: 10, Window: time.Minute},
				"session":         {Max: 60, Window: time.Minute},
			},
		},
		Invite: InviteConfig{
			DefaultTTLDays: 7,
			MinTTLDays:     1,
			MaxTTLDays:     30,
		},
		Store: StoreConfig{
			Path:     "/data/portunus",
			InMemory: false,
		},
		Mail: MailConfig{
			Enabled:    false,
			URL:        "",
			APIKey:     "",
			From:       "",
			TemplateID: "invite",
		},
		Security: SecurityConfig{
			CORSOrigins:    []string{"*"},
			TrustedProxies: []string{},
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: override any scalar setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file: CONFIG_PATH first, then the
// default paths. Returns empty string if none is found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive through the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
	"upstream.stream_path_suffixes",
}

// processSliceFields converts comma-separated env values to slices for
// known slice fields. YAML-provided slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - IDENTITY_URL       -> identity.url
//   - PROXY_SECRET       -> upstream.proxy_secret
//   - RBAC_CACHE_TTL     -> cache.ttl
//   - HTTP_PORT          -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"http_host":   "server.host",
		"http_port":   "server.port",
		"environment": "server.environment",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		"identity_url":                  "identity.url",
		"identity_api_key":              "identity.api_key",
		"identity_timeout":              "identity.timeout",
		"identity_breaker_max_failures": "identity.breaker_max_failures",
		"identity_breaker_cooldown":     "identity.breaker_cooldown",

		"upstream_url":                     "upstream.url",
		"proxy_secret":                     "upstream.proxy_secret",
		"upstream_response_header_timeout": "upstream.response_header_timeout",
		"upstream_stream_path_suffixes":    "upstream.stream_path_suffixes",

		"rbac_cache_ttl": "cache.ttl",

		"rate_limit_disabled":       "rate_limit.disabled",
		"rate_limit_max":            "rate_limit.default.max",
		"rate_limit_window":         "rate_limit.default.window",
		"rate_limit_sweep_interval": "rate_limit.sweep_interval",

		"invite_default_ttl_days": "invite.default_ttl_days",
		"invite_min_ttl_days":     "invite.min_ttl_days",
		"invite_max_ttl_days":     "invite.max_ttl_days",

		"store_path":      "store.path",
		"store_in_memory": "store.in_memory",

		"mail_enabled":     "mail.enabled",
		"mail_url":         "mail.url",
		"mail_api_key":     "mail.api_key",
		"mail_from":        "mail.from",
		"mail_template_id": "mail.template_id",

		"cors_origins":    "security.cors_origins",
		"trusted_proxies": "security.trusted_proxies",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown variables are dropped rather than guessed into paths;
	// unrelated environment noise must not override config.
	return ""
}
