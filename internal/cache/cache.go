// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

// Package cache provides the thread-safe in-memory TTL cache backing
// aggregated event results. Expired entries are retained for a configurable
// grace window so they can be served stale when providers are unavailable;
// a supervised janitor calls CleanupExpired periodically to reclaim them.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/nearlive/nearlive/internal/metrics"
)

// Entry represents a cached item with expiration
type Entry struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Config tunes a cache instance.
type Config struct {
	// TTL is the default time-to-live for entries.
	TTL time.Duration

	// StaleGrace is how long past expiry an entry remains eligible for
	// GetStale before the janitor reclaims it.
	StaleGrace time.Duration
}

// DefaultConfig returns production defaults: 10 minute TTL with a one hour
// stale grace window.
func DefaultConfig() Config {
	return Config{
		TTL:        10 * time.Minute,
		StaleGrace: time.Hour,
	}
}

// Cache provides a thread-safe in-memory cache with TTL support.
// It runs no background goroutine of its own; wire CleanupExpired to a
// supervised janitor.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	cfg     Config
	stats   Stats

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// Stats tracks cache performance metrics
type Stats struct {
	mu          sync.RWMutex
	Hits        int64
	Misses      int64
	StaleHits   int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// New creates a cache with the given configuration.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.StaleGrace < 0 {
		cfg.StaleGrace = 0
	}
	return &Cache{
		entries: make(map[string]Entry),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Get retrieves a fresh value from the cache by key.
//
// Returns (nil, false) if the key is absent or the entry has expired.
// Expired entries are left in place for GetStale; the janitor reclaims them
// once the grace window passes.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || c.now().After(entry.ExpiresAt) {
		c.recordMiss()
		metrics.CacheMisses.Inc()
		return nil, false
	}

	c.recordHit()
	metrics.CacheHits.Inc()
	return entry.Data, true
}

// GetStale retrieves a value even after it has expired, as long as expiry is
// within the stale grace window. Used to serve the last known results when a
// provider's circuit is open. Fresh entries are returned as-is.
func (c *Cache) GetStale(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	now := c.now()
	if now.After(entry.ExpiresAt.Add(c.cfg.StaleGrace)) {
		return nil, false
	}

	if now.After(entry.ExpiresAt) {
		c.stats.mu.Lock()
		c.stats.StaleHits++
		c.stats.mu.Unlock()
		metrics.CacheStaleServed.Inc()
	}
	return entry.Data, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.cfg.TTL)
}

// SetWithTTL stores a value in the cache with a custom TTL
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Data:      value,
		ExpiresAt: c.now().Add(ttl),
	}

	c.stats.mu.Lock()
	c.stats.TotalKeys = int64(len(c.entries))
	c.stats.mu.Unlock()
}

// Delete removes a specific cache entry by key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	c.recordEviction()
}

// Clear removes all entries from the cache in a single atomic operation.
func (c *Cache) Clear() {
	c.mu.Lock()
	evictions := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = 0
	c.stats.mu.Unlock()
}

// CleanupExpired removes entries whose expiry plus the stale grace window has
// passed, and returns how many were reclaimed. The supervised janitor calls
// this on its tick.
func (c *Cache) CleanupExpired() int64 {
	now := c.now()
	cutoff := now.Add(-c.cfg.StaleGrace)

	c.mu.Lock()
	evictions := int64(0)
	for key, entry := range c.entries {
		if entry.ExpiresAt.Before(cutoff) {
			delete(c.entries, key)
			evictions++
		}
	}
	remaining := int64(len(c.entries))
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = remaining
	c.stats.LastCleanup = now
	c.stats.mu.Unlock()

	return evictions
}

// GetStats returns a snapshot of current cache performance statistics.
// The returned Stats is a copy, safe to read without holding locks.
func (c *Cache) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		Hits:        c.stats.Hits,
		Misses:      c.stats.Misses,
		StaleHits:   c.stats.StaleHits,
		Evictions:   c.stats.Evictions,
		TotalKeys:   c.stats.TotalKeys,
		LastCleanup: c.stats.LastCleanup,
	}
}

// HitRate returns the cache hit rate as a percentage
func (c *Cache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

func (c *Cache) recordEviction() {
	c.stats.mu.Lock()
	c.stats.Evictions++
	c.stats.mu.Unlock()
}

// GenerateKey creates a cache key from the method name and parameters
func GenerateKey(method string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Fallback to simple string key
		return fmt.Sprintf("%s:%v", method, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", method, hash[:16])
}
