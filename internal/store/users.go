// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/portunus-gw/portunus/internal/models"
)

// normalizeEmail lowercases an email address for index keys. Identity
// providers report emails with inconsistent casing; lookups must not care.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser stores a new user record and its email index.
// Returns ErrAlreadyExists if the ID or email is already taken.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		userKey := []byte(userKeyPrefix + user.ID)
		if _, err := txn.Get(userKey); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check user: %w", err)
		}

		emailKey := []byte(userEmailKeyPrefix + normalizeEmail(user.Email))
		if _, err := txn.Get(emailKey); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check email index: %w", err)
		}

		if err := setJSON(txn, userKey, user); err != nil {
			return err
		}
		if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
			return fmt.Errorf("set email index: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(userKeyPrefix+id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user via the email index.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		emailKey := []byte(userEmailKeyPrefix + normalizeEmail(email))
		item, err := txn.Get(emailKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get email index: %w", err)
		}

		var userID string
		if err := item.Value(func(val []byte) error {
			userID = string(val)
			return nil
		}); err != nil {
			return err
		}

		return getJSON(txn, []byte(userKeyPrefix+userID), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser replaces an existing user record, maintaining the email index
// if the address changed. Returns ErrNotFound if the user does not exist.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		userKey := []byte(userKeyPrefix + user.ID)

		var existing models.User
		if err := getJSON(txn, userKey, &existing); err != nil {
			return err
		}

		oldEmail := normalizeEmail(existing.Email)
		newEmail := normalizeEmail(user.Email)
		if oldEmail != newEmail {
			if err := txn.Delete([]byte(userEmailKeyPrefix + oldEmail)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete email index: %w", err)
			}
			if err := txn.Set([]byte(userEmailKeyPrefix+newEmail), []byte(user.ID)); err != nil {
				return fmt.Errorf("set email index: %w", err)
			}
		}

		return setJSON(txn, userKey, user)
	})
}

// DeleteUser removes a user, its email index, and all its grants.
// Deleting an absent user is not an error.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		userKey := []byte(userKeyPrefix + id)

		var user models.User
		err := getJSON(txn, userKey, &user)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := txn.Delete(userKey); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		emailKey := []byte(userEmailKeyPrefix + normalizeEmail(user.Email))
		if err := txn.Delete(emailKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete email index: %w", err)
		}

		// Collect grant keys first; deleting while iterating is unsafe.
		var grantKeys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(grantKeyPrefix + id + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			grantKeys = append(grantKeys, it.Item().KeyCopy(nil))
		}
		for _, key := range grantKeys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete grant: %w", err)
			}
		}
		return nil
	})
}

// ListUsers returns all user records.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(userKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user models.User
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			})
			if err != nil {
				continue
			}
			users = append(users, &user)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}
