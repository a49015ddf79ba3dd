// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package resilience

import (
	"sync"
	"time"

	"github.com/nearlive/nearlive/internal/metrics"
)

// LimiterConfig tunes a per-source sliding window rate limiter.
type LimiterConfig struct {
	// PerSecond is the maximum calls admitted within any one-second window.
	PerSecond int

	// PerMinute is the maximum calls admitted within any one-minute window.
	PerMinute int
}

// DefaultLimiterConfig returns conservative defaults suitable for free-tier
// provider API keys.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		PerSecond: 5,
		PerMinute: 100,
	}
}

// SlidingWindowLimiter enforces per-second and per-minute ceilings on
// outbound calls to one source. It keeps a window of recent request
// timestamps, pruned on every check; checking and recording are a single
// atomic operation, so concurrent callers cannot race between them.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	source string
	cfg    LimiterConfig
	stamps []time.Time

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewSlidingWindowLimiter creates a limiter for the given source.
func NewSlidingWindowLimiter(source string, cfg LimiterConfig) *SlidingWindowLimiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultLimiterConfig().PerSecond
	}
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = DefaultLimiterConfig().PerMinute
	}
	return &SlidingWindowLimiter{
		source: source,
		cfg:    cfg,
		stamps: make([]time.Time, 0, cfg.PerMinute),
		now:    time.Now,
	}
}

// Allow checks both ceilings and, if the call is admitted, records its
// timestamp in the same critical section. On rejection it returns a
// *RateLimitedError carrying a retry-after estimate derived from when the
// oldest relevant timestamp slides out of its window.
func (l *SlidingWindowLimiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.stamps) >= l.cfg.PerMinute {
		retry := l.stamps[0].Add(time.Minute).Sub(now)
		metrics.RateLimitRejections.WithLabelValues(l.source, "minute").Inc()
		return &RateLimitedError{Source: l.source, Window: "minute", RetryAfter: positive(retry)}
	}

	secondCutoff := now.Add(-time.Second)
	secondCount := 0
	oldestInSecond := now
	for i := len(l.stamps) - 1; i >= 0; i-- {
		if l.stamps[i].Before(secondCutoff) {
			break
		}
		secondCount++
		oldestInSecond = l.stamps[i]
	}
	if secondCount >= l.cfg.PerSecond {
		retry := oldestInSecond.Add(time.Second).Sub(now)
		metrics.RateLimitRejections.WithLabelValues(l.source, "second").Inc()
		return &RateLimitedError{Source: l.source, Window: "second", RetryAfter: positive(retry)}
	}

	l.stamps = append(l.stamps, now)
	return nil
}

// prune drops timestamps older than one minute. Must be called with l.mu
// held. Timestamps are appended in order, so the window stays sorted.
func (l *SlidingWindowLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.stamps) && l.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// WindowSize returns the number of timestamps currently in the window.
func (l *SlidingWindowLimiter) WindowSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
