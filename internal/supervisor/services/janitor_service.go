// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package services

import (
	"context"
	"time"

	"github.com/nearlive/nearlive/internal/logging"
)

// ExpiredCleaner is the cache-side contract for the janitor.
//
// Satisfied by *cache.Cache, which removes entries whose stale grace has
// fully elapsed and returns the number removed.
type ExpiredCleaner interface {
	CleanupExpired() int64
}

// CacheJanitorService periodically sweeps expired entries out of the
// result cache. The cache itself runs no goroutines; supervision and
// scheduling live here so a janitor crash is restarted like any other
// service.
type CacheJanitorService struct {
	cache    ExpiredCleaner
	interval time.Duration
	name     string
}

// NewCacheJanitorService creates the janitor. Non-positive intervals fall
// back to 5 minutes.
func NewCacheJanitorService(cache ExpiredCleaner, interval time.Duration) *CacheJanitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheJanitorService{
		cache:    cache,
		interval: interval,
		name:     "cache-janitor",
	}
}

// Serve implements suture.Service: sweep on every tick until the context
// is canceled.
func (j *CacheJanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := j.cache.CleanupExpired()
			if removed > 0 {
				logging.Debug().
					Int64("removed", removed).
					Msg("cache janitor swept expired entries")
			}
		}
	}
}

// String implements fmt.Stringer; suture uses it in event logs.
func (j *CacheJanitorService) String() string {
	return j.name
}
