// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the service router with the full middleware stack.
func NewRouter(h *Handlers, mw MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(RequestLogger)
	r.Use(Metrics)
	r.Use(CORS(mw.CORSOrigins))

	// Operational endpoints are exempt from the inbound rate limit.
	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(mw.RateLimitReqs, mw.RateLimitWindow))

		r.Get("/events", h.GetEvents)
		r.Get("/sources", h.GetSources)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		rw := NewResponseWriter(w, req)
		rw.Error(http.StatusNotFound, ErrCodeNotFound, "endpoint not found")
	})

	return r
}
