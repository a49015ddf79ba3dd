// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package resilience

import (
	"sync"
	"time"

	"github.com/nearlive/nearlive/internal/logging"
	"github.com/nearlive/nearlive/internal/metrics"
)

// BreakerState is the lifecycle state of a circuit breaker.
type BreakerState int

const (
	// StateClosed admits all calls; consecutive failures are counted.
	StateClosed BreakerState = iota

	// StateOpen rejects all calls until the cooldown elapses.
	StateOpen

	// StateHalfOpen admits a bounded number of concurrent probe calls.
	StateHalfOpen
)

// String returns the state name for logging and metrics.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before admitting probes.
	Cooldown time.Duration

	// HalfOpenProbes bounds the number of concurrent probe calls admitted
	// while half-open. Any single probe success closes the breaker.
	HalfOpenProbes int
}

// DefaultBreakerConfig returns production defaults: open after 5 consecutive
// failures, stay open for 30 seconds, admit 2 concurrent probes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   2,
	}
}

// CircuitBreaker prevents cascading failures by rejecting calls to a source
// that keeps failing. One breaker exists per source; it is safe for
// concurrent use, and admission plus outcome recording are atomic with
// respect to other in-flight calls.
//
// Lifecycle: starts closed; opens after FailureThreshold consecutive
// failures; after Cooldown the next admission moves it to half-open, which
// admits up to HalfOpenProbes concurrent probes. Any probe success resets
// the breaker to closed; any probe failure reopens it and restarts the
// cooldown clock.
type CircuitBreaker struct {
	mu sync.Mutex

	source string
	cfg    BreakerConfig

	state               BreakerState
	consecutiveFailures int
	lastFailureAt       time.Time
	openedAt            time.Time
	halfOpenProbesUsed  int
	probesInFlight      int

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker for the given source.
func NewCircuitBreaker(source string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = DefaultBreakerConfig().HalfOpenProbes
	}

	metrics.CircuitBreakerState.WithLabelValues(source).Set(0)

	return &CircuitBreaker{
		source: source,
		cfg:    cfg,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Acquire asks the breaker to admit a call. It returns ErrCircuitOpen when
// the breaker is open and cooling down, or when the half-open probe budget
// is exhausted. A successful Acquire must be balanced by exactly one call to
// Record or Cancel.
func (cb *CircuitBreaker) Acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		// Cooldown elapsed: this call becomes the first half-open probe.
		cb.transition(StateHalfOpen)
		cb.halfOpenProbesUsed = 1
		cb.probesInFlight = 1
		return nil

	case StateHalfOpen:
		if cb.probesInFlight >= cb.cfg.HalfOpenProbes {
			return ErrCircuitOpen
		}
		cb.halfOpenProbesUsed++
		cb.probesInFlight++
		return nil
	}

	return nil
}

// Record reports the outcome of an admitted call.
//
// Success closes the breaker (from any state) and resets the failure count.
// Failure increments the consecutive-failure count in the closed state and
// opens the breaker at the threshold; in the half-open state a single
// failure reopens immediately and restarts the cooldown.
func (cb *CircuitBreaker) Record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.probesInFlight > 0 {
		cb.probesInFlight--
	}

	if success {
		cb.consecutiveFailures = 0
		if cb.state != StateClosed {
			cb.transition(StateClosed)
			cb.probesInFlight = 0
			cb.halfOpenProbesUsed = 0
		}
		return
	}

	cb.consecutiveFailures++
	cb.lastFailureAt = cb.now()

	switch cb.state {
	case StateHalfOpen:
		// A failed probe reopens the breaker and restarts the cooldown.
		cb.transition(StateOpen)
		cb.openedAt = cb.now()
		cb.probesInFlight = 0
	case StateClosed:
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
			cb.openedAt = cb.now()
		}
	case StateOpen:
		// Already open; nothing further to do.
	}
}

// Cancel releases an admitted call without recording an outcome. Used when
// a downstream check (rate limiter) rejects the call before any network
// attempt, and for plain client errors that must not move the breaker.
func (cb *CircuitBreaker) Cancel() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.probesInFlight > 0 {
		cb.probesInFlight--
	}
}

// transition moves to a new state, emitting metrics and a log line.
// Must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	metrics.CircuitBreakerState.WithLabelValues(cb.source).Set(float64(to))
	metrics.CircuitBreakerTransitions.WithLabelValues(cb.source, from.String(), to.String()).Inc()

	logging.Info().
		Str("source", cb.source).
		Str("from", from.String()).
		Str("to", to.String()).
		Int("consecutive_failures", cb.consecutiveFailures).
		Msg("circuit breaker state transition")
}

// BreakerSnapshot is a point-in-time view of breaker state for status
// endpoints and tests.
type BreakerSnapshot struct {
	Source              string     `json:"source"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	HalfOpenProbesUsed  int        `json:"half_open_probes_used"`
}

// Snapshot returns the current breaker state.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	snap := BreakerSnapshot{
		Source:              cb.source,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		HalfOpenProbesUsed:  cb.halfOpenProbesUsed,
	}
	if !cb.lastFailureAt.IsZero() {
		t := cb.lastFailureAt
		snap.LastFailureAt = &t
	}
	return snap
}

// IsOpen reports whether the breaker currently rejects calls outright.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen
}
