// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package identity verifies bearer tokens against the external identity
// provider. The gateway never validates token signatures itself; it performs
// a cheap structural pre-parse to reject garbage, then asks the provider who
// the token belongs to. Provider outages are surfaced as a distinct error so
// callers can avoid clearing client sessions during an outage.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/portunus-gw/portunus/internal/config"
	"github.com/portunus-gw/portunus/internal/logging"
	"github.com/portunus-gw/portunus/internal/metrics"
	"github.com/portunus-gw/portunus/internal/models"
)

// Sentinel errors for use with errors.Is()
var (
	// ErrUnauthenticated indicates a missing or structurally malformed token.
	// No provider call is made in this case.
	ErrUnauthenticated = errors.New("missing or malformed credentials")

	// ErrInvalidToken indicates the provider rejected the token.
	ErrInvalidToken = errors.New("token rejected by identity provider")

	// ErrProviderUnavailable indicates the provider could not be reached or
	// answered with a server error. Distinct from ErrInvalidToken so callers
	// do not treat an outage as a revoked credential.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Verifier resolves a bearer token to an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// ExtractBearer pulls the bare token out of an Authorization header value.
// Returns ErrUnauthenticated for empty or non-Bearer headers.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", ErrUnauthenticated
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrUnauthenticated
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

// Client is an HTTP client for the identity provider's userinfo endpoint,
// wrapped in a circuit breaker.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*models.Identity]
	parser     *jwt.Parser
}

// userinfoResponse is the provider's token-introspection payload.
type userinfoResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewClient creates an identity provider client from configuration.
// The circuit breaker opens after cfg.BreakerMaxFailures consecutive
// transport failures and stays open for cfg.BreakerCooldown. Token
// rejections by the provider do not count as breaker failures.
func NewClient(cfg config.IdentityConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*models.Identity](gobreaker.Settings{
		Name:    "identity-provider",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// A definitive rejection is a healthy provider answer.
			return err == nil || errors.Is(err, ErrInvalidToken)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Identity provider circuit breaker state change")
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
		parser:     jwt.NewParser(),
	}
}

// breakerStateValue maps breaker states onto the gauge's encoding
// (0=closed, 1=half-open, 2=open).
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Verify resolves a bearer token to an Identity.
//
// Structurally malformed tokens fail fast with ErrUnauthenticated before any
// network call. Provider 401/403 maps to ErrInvalidToken; transport errors,
// 5xx answers, and an open breaker map to ErrProviderUnavailable. No retries.
func (c *Client) Verify(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	// Structural pre-parse only; signature verification is the provider's job.
	if _, _, err := c.parser.ParseUnverified(token, jwt.MapClaims{}); err != nil {
		return nil, ErrUnauthenticated
	}

	identity, err := c.cb.Execute(func() (*models.Identity, error) {
		return c.lookup(ctx, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Ctx(ctx).Warn().Msg("Identity lookup rejected: circuit open")
			return nil, ErrProviderUnavailable
		}
		return nil, err
	}
	return identity, nil
}

// lookup performs a single userinfo call against the provider.
func (c *Client) lookup(ctx context.Context, token string) (*models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oidc/me", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Identity provider unreachable")
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Parsed below
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		logging.Ctx(ctx).Warn().Int("status", resp.StatusCode).Msg("Identity provider error response")
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var info userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: response missing subject", ErrProviderUnavailable)
	}

	return &models.Identity{
		ID:          info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}
