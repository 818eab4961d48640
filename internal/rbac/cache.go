// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package rbac

import (
	"sync"
	"time"

	"github.com/portunus-gw/portunus/internal/metrics"
	"github.com/portunus-gw/portunus/internal/models"
)

// contextCache caches resolved RBAC contexts by user ID.
type contextCache struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[string]*cacheItem
	now      func() time.Time // overridable for tests
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	ctx       *models.RBACContext
	expiresAt time.Time
}

// newContextCache creates a new cache and starts its janitor goroutine.
func newContextCache(ttl time.Duration) *contextCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &contextCache{
		ttl:      ttl,
		items:    make(map[string]*cacheItem),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// get retrieves a cached context if present and unexpired.
func (c *contextCache) get(userID string) (*models.RBACContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[userID]
	if !ok {
		return nil, false
	}
	if c.now().After(item.expiresAt) {
		return nil, false
	}
	return item.ctx, true
}

// set stores a context. Writes are idempotent upserts by user ID.
func (c *contextCache) set(userID string, ctx *models.RBACContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[userID] = &cacheItem{
		ctx:       ctx,
		expiresAt: c.now().Add(c.ttl),
	}
	metrics.RBACCacheEntries.Set(float64(len(c.items)))
}

// invalidate removes a user's cached context.
func (c *contextCache) invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, userID)
	metrics.RBACCacheEntries.Set(float64(len(c.items)))
}

// clear removes all cached contexts.
func (c *contextCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*cacheItem)
	metrics.RBACCacheEntries.Set(0)
}

// cleanup periodically removes expired items.
func (c *contextCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			metrics.RBACCacheEntries.Set(float64(len(c.items)))
			c.mu.Unlock()
		}
	}
}

// stop stops the janitor goroutine. Safe to call multiple times.
func (c *contextCache) stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
