// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

// Package metrics provides Prometheus instrumentation for NearLive:
// provider call outcomes, circuit breaker state, rate limiter rejections,
// request coalescing, cache efficiency, and pipeline latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider call metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total outbound provider requests by outcome",
		},
		[]string{"source", "outcome"}, // "success", "failure", "rejected", "timeout", "rate_limited"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of outbound provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	ProviderEventsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_events_fetched_total",
			Help: "Total canonical events produced by each source adapter",
		},
		[]string{"source"},
	)

	ProviderRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_records_skipped_total",
			Help: "Provider records dropped during normalization (missing identity)",
		},
		[]string{"source"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=open, 2=half-open)",
		},
		[]string{"source"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"source", "from", "to"},
	)

	// Rate limiter metrics
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Outbound calls rejected by the per-source rate limiter",
		},
		[]string{"source", "window"}, // "second", "minute"
	)

	// Request coalescing metrics
	CoalescedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalesced_requests_total",
			Help: "Calls attached to an identical in-flight request instead of issuing a new one",
		},
		[]string{"source"},
	)

	// Result cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_cache_hits_total",
			Help: "Total event result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_cache_misses_total",
			Help: "Total event result cache misses",
		},
	)

	CacheStaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_cache_stale_served_total",
			Help: "Expired cache entries served because providers were unavailable",
		},
	)

	// Pipeline metrics
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_get_events_duration_seconds",
			Help:    "End-to-end GetEvents duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	PipelineEventsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_events_returned",
			Help:    "Number of events returned per GetEvents call",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250},
		},
	)

	PipelineDuplicatesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_duplicates_removed_total",
			Help: "Events collapsed by cross-provider deduplication",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)
