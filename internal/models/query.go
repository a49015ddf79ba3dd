// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package models

// SortMode selects the ordering strategy applied to the final event list.
type SortMode string

const (
	// SortRecommended orders by relevance score descending, soonest-first
	// tiebreak. This is the default.
	SortRecommended SortMode = "recommended"

	// SortSoonest orders by start time ascending; undated events last.
	SortSoonest SortMode = "soonest"

	// SortNearest orders by distance ascending; unknown distance last.
	SortNearest SortMode = "nearest"

	// SortPopular orders by the popularity signal descending, then soonest.
	SortPopular SortMode = "popular"
)

// ValidSortMode reports whether s is a recognized sort mode.
func ValidSortMode(s SortMode) bool {
	switch s {
	case SortRecommended, SortSoonest, SortNearest, SortPopular:
		return true
	}
	return false
}

// Query is the inbound event search request.
//
// Validation happens before any network call: out-of-range values are
// rejected locally as a validation failure, never a provider error.
type Query struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	RadiusKm  float64 `json:"radius_km" validate:"min=1,max=200"`

	// Pages is the number of provider pages to fetch per source in this
	// call; StartPage is the 1-based first page of the window.
	Pages     int `json:"pages" validate:"min=1,max=5"`
	StartPage int `json:"start_page" validate:"min=1"`

	Sort SortMode `json:"sort" validate:"omitempty,oneof=recommended soonest nearest popular"`
}

// IsInitialPage reports whether the query targets the first page window.
// Only initial-page results are cached.
func (q Query) IsInitialPage() bool {
	return q.StartPage <= 1
}

// EventsResult is the pipeline output contract.
//
// Events is always non-nil (possibly empty). Provider-level failures degrade
// the result set size; they never surface as an error to the caller.
type EventsResult struct {
	Events         []CanonicalEvent `json:"events"`
	HasMore        bool             `json:"has_more"`
	TotalAvailable int              `json:"total_available"`
	NextPageToken  string           `json:"next_page_token,omitempty"`
}
