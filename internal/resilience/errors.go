// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for guarded call outcomes.
var (
	// ErrCircuitOpen is returned when a source's circuit breaker rejects the
	// call without any network attempt: the breaker is open and its cooldown
	// has not elapsed, or the half-open probe budget is exhausted.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrTimeout is returned when the underlying call exceeded the
	// controller's wall-clock deadline and was abandoned.
	ErrTimeout = errors.New("call timed out")
)

// RateLimitedError is returned when the per-source sliding window limiter
// rejects a call. RetryAfter estimates how long until a slot frees up.
type RateLimitedError struct {
	Source     string
	Window     string // "second" or "minute"
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: source=%s window=%s retry_after=%s",
		e.Source, e.Window, e.RetryAfter)
}

// ProviderError represents a non-2xx response from a provider.
// Adapters return it from guarded calls so the controller can classify the
// outcome for breaker bookkeeping.
type ProviderError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s returned status %d", e.Source, e.StatusCode)
}

// Retryable reports whether the response indicates a provider-side problem
// that should count against the circuit breaker. Server errors and explicit
// rate-limit responses trip the breaker; other client errors do not.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// classifyOutcome maps a guarded call result to breaker bookkeeping.
//
//	outcomeSuccess — record a breaker success
//	outcomeFailure — record a breaker failure
//	outcomeNeutral — record neither (plain client errors)
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeNeutral
)

func classifyOutcome(err error) outcome {
	if err == nil {
		return outcomeSuccess
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Retryable() {
			return outcomeFailure
		}
		return outcomeNeutral
	}

	// Timeouts, cancellations, and transport errors all count as failures.
	return outcomeFailure
}

// IsTimeout reports whether err is a deadline expiry, either the
// controller's own sentinel or a context deadline from the transport.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
