// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/portunus-gw/portunus/internal/models"
)

// CreateInvite stores a new invite token with its token and email indexes.
// Returns ErrAlreadyExists if a pending invite already exists for the same
// email address; the check and the write happen in one transaction.
func (s *Store) CreateInvite(ctx context.Context, invite *models.InviteToken, now time.Time) error {
	email := normalizeEmail(invite.Email)

	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)

		prefix := []byte(inviteEmailKeyPrefix + email + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var inviteID string
			err := it.Item().Value(func(val []byte) error {
				inviteID = string(val)
				return nil
			})
			if err != nil {
				continue
			}

			var existing models.InviteToken
			if err := getJSON(txn, []byte(inviteKeyPrefix+inviteID), &existing); err != nil {
				continue
			}
			if existing.IsPending(now) {
				it.Close()
				return ErrAlreadyExists
			}
		}
		it.Close()

		if err := setJSON(txn, []byte(inviteKeyPrefix+invite.ID), invite); err != nil {
			return err
		}
		if err := txn.Set([]byte(inviteTokenKeyPrefix+invite.Token), []byte(invite.ID)); err != nil {
			return fmt.Errorf("set token index: %w", err)
		}
		if err := txn.Set([]byte(inviteEmailKeyPrefix+email+":"+invite.ID), []byte(invite.ID)); err != nil {
			return fmt.Errorf("set email index: %w", err)
		}
		return nil
	})
}

// GetInvite retrieves an invite by ID.
func (s *Store) GetInvite(ctx context.Context, id string) (*models.InviteToken, error) {
	var invite models.InviteToken
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(inviteKeyPrefix+id), &invite)
	})
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// GetInviteByToken retrieves an invite via the token index.
func (s *Store) GetInviteByToken(ctx context.Context, token string) (*models.InviteToken, error) {
	var invite models.InviteToken
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(inviteTokenKeyPrefix + token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get token index: %w", err)
		}

		var inviteID string
		if err := item.Value(func(val []byte) error {
			inviteID = string(val)
			return nil
		}); err != nil {
			return err
		}

		return getJSON(txn, []byte(inviteKeyPrefix+inviteID), &invite)
	})
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// MarkInviteUsed atomically consumes the invite identified by token. If the
// invite is pending it is marked used by userID and updated=true is returned.
// Any other state leaves the record untouched and returns it with
// updated=false so the caller can decide idempotency.
func (s *Store) MarkInviteUsed(ctx context.Context, token, userID string, now time.Time) (*models.InviteToken, bool, error) {
	var invite models.InviteToken
	var updated bool

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(inviteTokenKeyPrefix + token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get token index: %w", err)
		}

		var inviteID string
		if err := item.Value(func(val []byte) error {
			inviteID = string(val)
			return nil
		}); err != nil {
			return err
		}

		key := []byte(inviteKeyPrefix + inviteID)
		if err := getJSON(txn, key, &invite); err != nil {
			return err
		}

		if !invite.IsPending(now) {
			return nil
		}

		usedAt := now
		invite.UsedAt = &usedAt
		invite.UsedByUserID = userID
		updated = true
		return setJSON(txn, key, &invite)
	})
	if err != nil {
		return nil, false, err
	}
	return &invite, updated, nil
}

// MarkInviteRevoked atomically revokes an invite by ID. Used invites stay
// used; revoking one is a no-op and the stored record is returned unchanged.
func (s *Store) MarkInviteRevoked(ctx context.Context, id string) (*models.InviteToken, error) {
	var invite models.InviteToken

	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(inviteKeyPrefix + id)
		if err := getJSON(txn, key, &invite); err != nil {
			return err
		}

		if invite.IsUsed() || invite.IsRevoked {
			return nil
		}

		invite.IsRevoked = true
		return setJSON(txn, key, &invite)
	})
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// ListInvites returns all invite tokens.
func (s *Store) ListInvites(ctx context.Context) ([]*models.InviteToken, error) {
	var invites []*models.InviteToken

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(inviteKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var invite models.InviteToken
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &invite)
			})
			if err != nil {
				continue
			}
			invites = append(invites, &invite)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}

	return invites, nil
}

// ListInvitesByEmail returns all invite tokens for an email address.
func (s *Store) ListInvitesByEmail(ctx context.Context, email string) ([]*models.InviteToken, error) {
	var invites []*models.InviteToken

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(inviteEmailKeyPrefix + normalizeEmail(email) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var inviteID string
			err := it.Item().Value(func(val []byte) error {
				inviteID = string(val)
				return nil
			})
			if err != nil {
				continue
			}

			var invite models.InviteToken
			if err := getJSON(txn, []byte(inviteKeyPrefix+inviteID), &invite); err != nil {
				continue
			}
			invites = append(invites, &invite)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list invites by email: %w", err)
	}

	return invites, nil
}
