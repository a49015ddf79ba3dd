// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package resilience

import (
	"errors"
	"testing"
	"time"
)

func newTestLimiter(clock *fakeClock, cfg LimiterConfig) *SlidingWindowLimiter {
	l := NewSlidingWindowLimiter("test-source", cfg)
	l.now = clock.Now
	return l
}

func TestLimiterAllowsUpToPerSecond(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, LimiterConfig{PerSecond: 3, PerMinute: 100})

	for i := 0; i < 3; i++ {
		if err := l.Allow(); err != nil {
			t.Fatalf("call %d: Allow() = %v, want admission", i+1, err)
		}
	}

	err := l.Allow()
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("Allow() = %v, want *RateLimitedError", err)
	}
	if rl.Window != "second" {
		t.Fatalf("Window = %s, want second", rl.Window)
	}
	if rl.RetryAfter <= 0 || rl.RetryAfter > time.Second {
		t.Fatalf("RetryAfter = %s, want within (0, 1s]", rl.RetryAfter)
	}
}

func TestLimiterSecondWindowSlides(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, LimiterConfig{PerSecond: 2, PerMinute: 100})

	if err := l.Allow(); err != nil {
		t.Fatalf("Allow() = %v", err)
	}
	clock.Advance(600 * time.Millisecond)
	if err := l.Allow(); err != nil {
		t.Fatalf("Allow() = %v", err)
	}

	// Both stamps are still inside the trailing second.
	if err := l.Allow(); err == nil {
		t.Fatal("Allow() admitted a third call inside one second")
	}

	// The first stamp slides out; one slot frees up.
	clock.Advance(500 * time.Millisecond)
	if err := l.Allow(); err != nil {
		t.Fatalf("Allow() after window slid = %v, want admission", err)
	}
}

func TestLimiterPerMinuteCeiling(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, LimiterConfig{PerSecond: 10, PerMinute: 20})

	// Spread 20 calls over 40 seconds, never tripping the second ceiling.
	for i := 0; i < 20; i++ {
		if err := l.Allow(); err != nil {
			t.Fatalf("call %d: Allow() = %v", i+1, err)
		}
		clock.Advance(2 * time.Second)
	}

	err := l.Allow()
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("Allow() = %v, want *RateLimitedError", err)
	}
	if rl.Window != "minute" {
		t.Fatalf("Window = %s, want minute", rl.Window)
	}

	// Oldest stamp is 40s old, so it leaves the minute window in 20s.
	want := 20 * time.Second
	if rl.RetryAfter != want {
		t.Fatalf("RetryAfter = %s, want %s", rl.RetryAfter, want)
	}

	clock.Advance(want)
	if err := l.Allow(); err != nil {
		t.Fatalf("Allow() after retry-after elapsed = %v, want admission", err)
	}
}

func TestLimiterRejectionDoesNotConsumeSlot(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, LimiterConfig{PerSecond: 1, PerMinute: 100})

	if err := l.Allow(); err != nil {
		t.Fatalf("Allow() = %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := l.Allow(); err == nil {
			t.Fatal("Allow() admitted a call over the second ceiling")
		}
	}

	// Rejected attempts recorded no timestamps.
	if got := l.WindowSize(); got != 1 {
		t.Fatalf("WindowSize() = %d, want 1", got)
	}

	clock.Advance(time.Second)
	if err := l.Allow(); err != nil {
		t.Fatalf("Allow() after slide = %v, want admission", err)
	}
}

func TestLimiterWindowSizePrunes(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, LimiterConfig{PerSecond: 5, PerMinute: 100})

	for i := 0; i < 3; i++ {
		if err := l.Allow(); err != nil {
			t.Fatalf("Allow() = %v", err)
		}
		clock.Advance(200 * time.Millisecond)
	}
	if got := l.WindowSize(); got != 3 {
		t.Fatalf("WindowSize() = %d, want 3", got)
	}

	clock.Advance(time.Minute)
	if got := l.WindowSize(); got != 0 {
		t.Fatalf("WindowSize() after a minute = %d, want 0", got)
	}
}
