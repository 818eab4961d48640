// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

// Package store provides the durable record store for users, profiles,
// permission sets, grants, and invite tokens, backed by BadgerDB.
//
// Records are stored as JSON values under typed key prefixes. Secondary
// lookups (user by email, invite by token, invites by email) are maintained
// as index keys whose value is the primary record ID.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/portunus-gw/portunus/internal/config"
)

// Key prefixes for BadgerDB storage
const (
	userKeyPrefix        = "user:"
	userEmailKeyPrefix   = "user_email:"
	profileKeyPrefix     = "profile:"
	permSetKeyPrefix     = "permset:"
	grantKeyPrefix       = "grant:"
	inviteKeyPrefix      = "invite:"
	inviteTokenKeyPrefix = "invite_token:"
	inviteEmailKeyPrefix = "invite_email:"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a record with the same key already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// Store is a BadgerDB-backed record store.
type Store struct {
	db *badger.DB
}

// Open opens the record store at the configured path. With InMemory set,
// nothing is written to disk; state is lost on close.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing BadgerDB connection.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying BadgerDB connection.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Close closes the underlying BadgerDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC triggers one round of BadgerDB value-log garbage collection.
// Returns badger.ErrNoRewrite when there was nothing to collect; callers
// treat that as success.
func (s *Store) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// getJSON reads the value at key within txn and unmarshals it into out.
// Returns ErrNotFound if the key is absent.
func getJSON(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// setJSON marshals v and writes it at key within txn.
func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}
