// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/nearlive/nearlive/internal/logging"
	"github.com/nearlive/nearlive/internal/models"
	"github.com/nearlive/nearlive/internal/resilience"
	"github.com/nearlive/nearlive/internal/validation"
)

// EventsProvider is the aggregation entrypoint the events handler calls.
type EventsProvider interface {
	GetEvents(ctx context.Context, q models.Query) (*models.EventsResult, error)
}

// StatusProvider exposes per-source resilience state for the sources
// endpoint.
type StatusProvider interface {
	Statuses() []resilience.SourceStatus
}

// Handlers bundles the dependencies behind the HTTP endpoints.
type Handlers struct {
	events  EventsProvider
	status  StatusProvider
	version string
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(events EventsProvider, status StatusProvider, version string) *Handlers {
	if version == "" {
		version = "dev"
	}
	return &Handlers{events: events, status: status, version: version}
}

// defaultRadiusKm applies when the radius_km query parameter is absent.
const defaultRadiusKm = 25

// GetEvents handles GET /api/v1/events.
//
// lat and lng are required; radius_km, pages, start_page, and sort are
// optional. Malformed numbers are a 400; out-of-range values are rejected
// by query validation with field-level details.
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	q, err := parseEventsQuery(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	result, err := h.events.GetEvents(r.Context(), q)
	if err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			rw.ValidationError("query validation failed", verr.Errors())
			return
		}

		logging.Ctx(r.Context()).Error().Err(err).Msg("get events failed")
		rw.InternalError("failed to fetch events")
		return
	}

	rw.Success(result)
}

// GetSources handles GET /api/v1/sources.
func (h *Handlers) GetSources(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	statuses := h.status.Statuses()
	rw.Success(map[string]interface{}{
		"sources": statuses,
	})
}

// Healthz handles GET /healthz.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// parseEventsQuery builds a models.Query from URL query parameters.
// Only syntax is checked here; range validation happens in the pipeline.
func parseEventsQuery(r *http.Request) (models.Query, error) {
	var q models.Query
	params := r.URL.Query()

	lat, err := requiredFloat(params.Get("lat"), "lat")
	if err != nil {
		return q, err
	}
	lng, err := requiredFloat(params.Get("lng"), "lng")
	if err != nil {
		return q, err
	}
	q.Latitude = lat
	q.Longitude = lng

	q.RadiusKm = defaultRadiusKm
	if raw := params.Get("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, &paramError{name: "radius_km", value: raw}
		}
		q.RadiusKm = v
	}

	if raw := params.Get("pages"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, &paramError{name: "pages", value: raw}
		}
		q.Pages = v
	}
	if raw := params.Get("start_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, &paramError{name: "start_page", value: raw}
		}
		q.StartPage = v
	}

	q.Sort = models.SortMode(params.Get("sort"))

	return q, nil
}

func requiredFloat(raw, name string) (float64, error) {
	if raw == "" {
		return 0, &paramError{name: name, missing: true}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &paramError{name: name, value: raw}
	}
	return v, nil
}

// paramError describes a missing or malformed query parameter.
type paramError struct {
	name    string
	value   string
	missing bool
}

func (e *paramError) Error() string {
	if e.missing {
		return "missing required query parameter: " + e.name
	}
	return "invalid value for query parameter " + e.name + ": " + e.value
}
