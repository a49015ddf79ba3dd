// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

// Package resilience guards every outbound provider call with a per-source
// circuit breaker, a sliding-window rate limiter, in-flight request
// coalescing, and a hard wall-clock timeout.
//
// No component outside this package observes or mutates breaker or limiter
// state directly; adapters go through Controller.Execute and receive the
// error taxonomy defined in errors.go. Controller state is instance-scoped:
// constructing two controllers yields fully independent breakers, limiters,
// and coalescing groups.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nearlive/nearlive/internal/logging"
	"github.com/nearlive/nearlive/internal/metrics"
)

// Config tunes the controller. The same breaker and limiter settings apply
// to every source; each source still gets its own independent instances.
type Config struct {
	// CallTimeout bounds each underlying provider call. On expiry the call
	// is abandoned and recorded as a breaker failure. No automatic retry
	// happens; retry is a caller decision.
	CallTimeout time.Duration

	Breaker BreakerConfig
	Limiter LimiterConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 10 * time.Second,
		Breaker:     DefaultBreakerConfig(),
		Limiter:     DefaultLimiterConfig(),
	}
}

// Controller is the single entry point for guarded outbound calls.
// It is safe for concurrent use.
type Controller struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	limiters map[string]*SlidingWindowLimiter

	flight singleflight.Group
}

// NewController creates a controller with lazily-created per-source state.
func NewController(cfg Config) *Controller {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Controller{
		cfg:      cfg,
		breakers: make(map[string]*CircuitBreaker),
		limiters: make(map[string]*SlidingWindowLimiter),
	}
}

// Execute runs fn under the full guard stack for the given source:
//
//  1. circuit breaker admission — an open circuit fails immediately with
//     ErrCircuitOpen and no network attempt,
//  2. rate limiter check — rejection returns *RateLimitedError,
//  3. request coalescing — concurrent calls sharing the same dedupKey attach
//     to the in-flight call and receive its outcome,
//  4. timeout — fn runs under a context bounded by Config.CallTimeout.
//
// Outcome recording: a nil error records a breaker success; server errors,
// 429 responses, timeouts, and transport errors record a failure; other
// client errors leave the breaker untouched.
func (c *Controller) Execute(ctx context.Context, source, dedupKey string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	br := c.breakerFor(source)
	if err := br.Acquire(); err != nil {
		metrics.ProviderRequests.WithLabelValues(source, "rejected").Inc()
		logging.Debug().Str("source", source).Msg("call rejected by open circuit")
		return nil, fmt.Errorf("source %s: %w", source, err)
	}

	if err := c.limiterFor(source).Allow(); err != nil {
		br.Cancel()
		metrics.ProviderRequests.WithLabelValues(source, "rate_limited").Inc()
		return nil, err
	}

	start := time.Now()
	key := source + "\x00" + dedupKey
	result, err, shared := c.flight.Do(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()

		res, callErr := fn(callCtx)
		if callErr != nil && callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("source %s after %s: %w", source, c.cfg.CallTimeout, ErrTimeout)
		}
		return res, callErr
	})
	metrics.ProviderRequestDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if shared {
		// This caller attached to another call's flight; the executing
		// caller records the breaker outcome.
		br.Cancel()
		metrics.CoalescedRequests.WithLabelValues(source).Inc()
		return result, err
	}

	switch classifyOutcome(err) {
	case outcomeSuccess:
		br.Record(true)
		metrics.ProviderRequests.WithLabelValues(source, "success").Inc()
	case outcomeFailure:
		br.Record(false)
		if IsTimeout(err) {
			metrics.ProviderRequests.WithLabelValues(source, "timeout").Inc()
		} else {
			metrics.ProviderRequests.WithLabelValues(source, "failure").Inc()
		}
		logging.Warn().Err(err).Str("source", source).Msg("guarded call failed")
	case outcomeNeutral:
		br.Cancel()
		metrics.ProviderRequests.WithLabelValues(source, "client_error").Inc()
	}

	return result, err
}

// breakerFor returns the breaker for a source, creating it on first use.
func (c *Controller) breakerFor(source string) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	br, ok := c.breakers[source]
	if !ok {
		br = NewCircuitBreaker(source, c.cfg.Breaker)
		c.breakers[source] = br
	}
	return br
}

// limiterFor returns the limiter for a source, creating it on first use.
func (c *Controller) limiterFor(source string) *SlidingWindowLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters[source]
	if !ok {
		lim = NewSlidingWindowLimiter(source, c.cfg.Limiter)
		c.limiters[source] = lim
	}
	return lim
}

// BreakerOpen reports whether the named source's breaker is currently open.
// Sources that have never been called report false.
func (c *Controller) BreakerOpen(source string) bool {
	c.mu.Lock()
	br, ok := c.breakers[source]
	c.mu.Unlock()

	return ok && br.IsOpen()
}

// AnyBreakerOpen reports whether any source's breaker is currently open.
func (c *Controller) AnyBreakerOpen() bool {
	c.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(c.breakers))
	for _, br := range c.breakers {
		breakers = append(breakers, br)
	}
	c.mu.Unlock()

	for _, br := range breakers {
		if br.IsOpen() {
			return true
		}
	}
	return false
}

// SourceStatus is a point-in-time view of one source's guard state,
// served by the sources status endpoint.
type SourceStatus struct {
	Source      string          `json:"source"`
	Breaker     BreakerSnapshot `json:"breaker"`
	WindowCalls int             `json:"window_calls"`
}

// Statuses returns a snapshot for every source the controller has seen.
func (c *Controller) Statuses() []SourceStatus {
	c.mu.Lock()
	sources := make([]string, 0, len(c.breakers))
	for s := range c.breakers {
		sources = append(sources, s)
	}
	c.mu.Unlock()

	statuses := make([]SourceStatus, 0, len(sources))
	for _, s := range sources {
		status := SourceStatus{
			Source:  s,
			Breaker: c.breakerFor(s).Snapshot(),
		}
		status.WindowCalls = c.limiterFor(s).WindowSize()
		statuses = append(statuses, status)
	}
	return statuses
}
