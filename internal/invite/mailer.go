// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package invite

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/portunus-gw/portunus/internal/config"
	"github.com/portunus-gw/portunus/internal/logging"
)

// Sender delivers invite emails. Delivery failures never fail invite
// creation; they surface as soft warnings.
type Sender interface {
	SendInvite(ctx context.Context, email, token string, expiresAt time.Time) error
}

// NopSender discards invite emails. Used when mail is disabled.
type NopSender struct{}

// SendInvite does nothing.
func (NopSender) SendInvite(ctx context.Context, email, token string, expiresAt time.Time) error {
	logging.Ctx(ctx).Debug().Str("email", email).Msg("Mail disabled; invite email skipped")
	return nil
}

// HTTPSender delivers invite emails through an external mail API.
type HTTPSender struct {
	cfg        config.MailConfig
	httpClient *http.Client
}

// NewSender builds a Sender from mail configuration.
func NewSender(cfg config.MailConfig) Sender {
	if !cfg.Enabled || cfg.URL == "" {
		return NopSender{}
	}
	return &HTTPSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendInvite posts a templated send request to the mail API.
func (s *HTTPSender) SendInvite(ctx context.Context, email, token string, expiresAt time.Time) error {
	payload := map[string]interface{}{
		"to":          email,
		"from":        s.cfg.From,
		"template_id": s.cfg.TemplateID,
		"params": map[string]string{
			"token":      token,
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send invite mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail api status %d", resp.StatusCode)
	}
	return nil
}
