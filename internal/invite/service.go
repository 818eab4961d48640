// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package invite manages the single-use invite token lifecycle: creation by
// admins, validation and consumption during onboarding, and revocation.
//
// Validation failures are deliberately indistinguishable: not found, wrong
// email, expired, revoked, and already used all surface as ErrInviteInvalid
// so callers cannot probe which tokens exist.
package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/portunus-gw/portunus/internal/config"
	"github.com/portunus-gw/portunus/internal/logging"
	"github.com/portunus-gw/portunus/internal/metrics"
	"github.com/portunus-gw/portunus/internal/models"
	"github.com/portunus-gw/portunus/internal/store"
)

// tokenBytes is the entropy of a generated invite token.
const tokenBytes = 32

// Sentinel errors for use with errors.Is()
var (
	// ErrConflict indicates a pending invite already exists for the email.
	ErrConflict = errors.New("pending invite already exists for email")

	// ErrProfileNotFound indicates the requested profile does not exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInviteInvalid is the single answer for every validation failure.
	ErrInviteInvalid = errors.New("invite token invalid")
)

// Service orchestrates the invite token lifecycle.
type Service struct {
	store  *store.Store
	sender Sender
	cfg    config.InviteConfig
}

// NewService creates an invite service.
func NewService(st *store.Store, sender Sender, cfg config.InviteConfig) *Service {
	if cfg.DefaultTTLDays <= 0 {
		cfg.DefaultTTLDays = 7
	}
	if cfg.MinTTLDays <= 0 {
		cfg.MinTTLDays = 1
	}
	if cfg.MaxTTLDays <= 0 {
		cfg.MaxTTLDays = 30
	}
	return &Service{store: st, sender: sender, cfg: cfg}
}

// clampTTL resolves a requested TTL in days against configured bounds.
func (s *Service) clampTTL(ttlDays int) int {
	if ttlDays <= 0 {
		ttlDays = s.cfg.DefaultTTLDays
	}
	if ttlDays < s.cfg.MinTTLDays {
		ttlDays = s.cfg.MinTTLDays
	}
	if ttlDays > s.cfg.MaxTTLDays {
		ttlDays = s.cfg.MaxTTLDays
	}
	return ttlDays
}

// generateToken returns a URL-safe random token.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Create issues a new invite token for an email address.
//
// The profile must exist. A pending unexpired unrevoked invite for the same
// email returns ErrConflict. The returned bool is a soft warning: true when
// the invite was persisted but the email could not be sent.
func (s *Service) Create(ctx context.Context, email, profileName string, ttlDays int, createdBy string) (*models.InviteToken, bool, error) {
	if _, err := s.store.GetProfile(ctx, profileName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, ErrProfileNotFound
		}
		return nil, false, fmt.Errorf("check profile: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	invite := &models.InviteToken{
		ID:          uuid.NewString(),
		Token:       token,
		Email:       email,
		ProfileName: profileName,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		ExpiresAt:   now.AddDate(0, 0, s.clampTTL(ttlDays)),
	}

	if err := s.store.CreateInvite(ctx, invite, now); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			metrics.RecordInviteEvent("rejected")
			return nil, false, ErrConflict
		}
		return nil, false, fmt.Errorf("persist invite: %w", err)
	}
	metrics.RecordInviteEvent("created")

	if err := s.sender.SendInvite(ctx, email, token, invite.ExpiresAt); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("email", email).Msg("Invite persisted but email delivery failed")
		return invite, true, nil
	}

	logging.Ctx(ctx).Info().
		Str("invite_id", invite.ID).
		Str("profile", profileName).
		Msg("Invite created")
	return invite, false, nil
}

// Validate checks a token against an email address without consuming it.
// Every failure collapses to ErrInviteInvalid.
func (s *Service) Validate(ctx context.Context, token, email string) (*models.InviteToken, error) {
	invite, err := s.store.GetInviteByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordInviteEvent("rejected")
			return nil, ErrInviteInvalid
		}
		return nil, fmt.Errorf("load invite: %w", err)
	}

	if !strings.EqualFold(invite.Email, email) || !invite.IsPending(time.Now()) {
		metrics.RecordInviteEvent("rejected")
		return nil, ErrInviteInvalid
	}

	metrics.RecordInviteEvent("validated")
	return invite, nil
}

// Consume marks a token used and upserts the business-user record with the
// invite's profile. Consuming an invite that was already used for the same
// email succeeds idempotently. Any other failure is ErrInviteInvalid.
func (s *Service) Consume(ctx context.Context, token, email, userID, name string) (*models.InviteToken, error) {
	invite, err := s.store.GetInviteByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordInviteEvent("rejected")
			return nil, ErrInviteInvalid
		}
		return nil, fmt.Errorf("load invite: %w", err)
	}
	if !strings.EqualFold(invite.Email, email) {
		metrics.RecordInviteEvent("rejected")
		return nil, ErrInviteInvalid
	}

	now := time.Now().UTC()
	invite, updated, err := s.store.MarkInviteUsed(ctx, token, userID, now)
	if err != nil {
		return nil, fmt.Errorf("consume invite: %w", err)
	}
	if !updated {
		if invite.IsUsed() {
			// Already consumed; repeat calls for the same email succeed.
			metrics.RecordInviteEvent("consumed")
			return invite, nil
		}
		metrics.RecordInviteEvent("rejected")
		return nil, ErrInviteInvalid
	}

	if _, err := s.store.GetProfile(ctx, invite.ProfileName); errors.Is(err, store.ErrNotFound) {
		logging.Ctx(ctx).Warn().
			Str("invite_id", invite.ID).
			Str("profile", invite.ProfileName).
			Msg("Invite references missing profile; user created without permissions")
	}

	if err := s.upsertUser(ctx, userID, email, name, invite.ProfileName, now); err != nil {
		return nil, err
	}

	metrics.RecordInviteEvent("consumed")
	logging.Ctx(ctx).Info().
		Str("invite_id", invite.ID).
		Str("user_id", userID).
		Str("profile", invite.ProfileName).
		Msg("Invite consumed")
	return invite, nil
}

// upsertUser creates the user record or re-points an existing one at the
// invite's profile, reactivating it.
func (s *Service) upsertUser(ctx context.Context, userID, email, name, profileName string, now time.Time) error {
	existing, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		user := &models.User{
			ID:          userID,
			Email:       email,
			Name:        name,
			ProfileName: profileName,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	existing.ProfileName = profileName
	existing.IsActive = true
	if name != "" {
		existing.Name = name
	}
	existing.UpdatedAt = now
	if err := s.store.UpdateUser(ctx, existing); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Revoke marks an invite revoked by ID. Revoking a used invite is a no-op
// success. Returns store.ErrNotFound for unknown IDs.
func (s *Service) Revoke(ctx context.Context, tokenID string) (*models.InviteToken, error) {
	invite, err := s.store.MarkInviteRevoked(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	metrics.RecordInviteEvent("revoked")
	return invite, nil
}

// List returns invite tokens, pending-only unless includeAll is set.
func (s *Service) List(ctx context.Context, includeAll bool) ([]*models.InviteToken, error) {
	invites, err := s.store.ListInvites(ctx)
	if err != nil {
		return nil, err
	}
	if includeAll {
		return invites, nil
	}

	now := time.Now()
	pending := make([]*models.InviteToken, 0, len(invites))
	for _, inv := range invites {
		if inv.IsPending(now) {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}
