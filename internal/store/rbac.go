// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/portunus-gw/portunus/internal/models"
)

// PutProfile creates or replaces a profile by name.
func (s *Store) PutProfile(ctx context.Context, profile *models.Profile) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(profileKeyPrefix+profile.Name), profile)
	})
}

// GetProfile retrieves a profile by name. Returns ErrNotFound if absent.
func (s *Store) GetProfile(ctx context.Context, name string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(profileKeyPrefix+name), &profile)
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// DeleteProfile removes a profile by name. Absent profiles are not an error.
func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(profileKeyPrefix + name))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete profile: %w", err)
		}
		return nil
	})
}

// ListProfiles returns all profiles.
func (s *Store) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	var profiles []*models.Profile

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(profileKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var profile models.Profile
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &profile)
			})
			if err != nil {
				continue
			}
			profiles = append(profiles, &profile)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	return profiles, nil
}

// PutPermissionSet creates or replaces a permission set by name.
func (s *Store) PutPermissionSet(ctx context.Context, set *models.PermissionSet) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(permSetKeyPrefix+set.Name), set)
	})
}

// GetPermissionSet retrieves a permission set by name.
func (s *Store) GetPermissionSet(ctx context.Context, name string) (*models.PermissionSet, error) {
	var set models.PermissionSet
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(permSetKeyPrefix+name), &set)
	})
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// DeletePermissionSet removes a permission set by name.
func (s *Store) DeletePermissionSet(ctx context.Context, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(permSetKeyPrefix + name))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete permission set: %w", err)
		}
		return nil
	})
}

// ListPermissionSets returns all permission sets.
func (s *Store) ListPermissionSets(ctx context.Context) ([]*models.PermissionSet, error) {
	var sets []*models.PermissionSet

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(permSetKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var set models.PermissionSet
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &set)
			})
			if err != nil {
				continue
			}
			sets = append(sets, &set)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list permission sets: %w", err)
	}

	return sets, nil
}

// PutGrant creates or replaces a user's grant of a permission set.
// Re-granting an existing set overwrites the previous grant's expiry.
func (s *Store) PutGrant(ctx context.Context, grant *models.Grant) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(grantKeyPrefix + grant.UserID + ":" + grant.SetName)
		return setJSON(txn, key, grant)
	})
}

// DeleteGrant removes a user's grant of a permission set.
func (s *Store) DeleteGrant(ctx context.Context, userID, setName string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(grantKeyPrefix + userID + ":" + setName))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete grant: %w", err)
		}
		return nil
	})
}

// ListGrantsByUser returns all grants for a user, including expired ones.
// Expiry filtering is the caller's concern.
func (s *Store) ListGrantsByUser(ctx context.Context, userID string) ([]*models.Grant, error) {
	var grants []*models.Grant

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(grantKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var grant models.Grant
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &grant)
			})
			if err != nil {
				continue
			}
			grants = append(grants, &grant)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	return grants, nil
}
