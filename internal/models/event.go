// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

// Package models defines the canonical event model shared by the source
// adapters, the aggregation pipeline, and the API layer.
//
// Every provider payload is normalized into CanonicalEvent before it leaves
// its adapter. The pipeline only ever operates on canonical events; it never
// sees provider-specific shapes.
package models

import (
	"fmt"
	"time"
)

// Source identifies a third-party event provider.
type Source string

// Known providers, in no particular order. Priority between providers is
// defined by SourcePriority, not by these constants.
const (
	SourceTicketmaster Source = "ticketmaster"
	SourceSeatGeek     Source = "seatgeek"
	SourceEventbrite   Source = "eventbrite"
)

// SourcePriority is the fixed provider priority order used to resolve
// deduplication conflicts. Lower index wins: when two providers report the
// same real-world event, the record from the earlier source is kept.
var SourcePriority = []Source{
	SourceTicketmaster,
	SourceSeatGeek,
	SourceEventbrite,
}

// PriorityRank returns the priority rank for a source (lower is better).
// Unknown sources rank below all known ones.
func PriorityRank(s Source) int {
	for i, p := range SourcePriority {
		if p == s {
			return i
		}
	}
	return len(SourcePriority)
}

// Prefix returns the ID namespace prefix for a source ("tm", "sg", "eb").
func (s Source) Prefix() string {
	switch s {
	case SourceTicketmaster:
		return "tm"
	case SourceSeatGeek:
		return "sg"
	case SourceEventbrite:
		return "eb"
	default:
		return "xx"
	}
}

// EventID builds a globally unique, source-namespaced event ID from a
// provider-local identifier.
func EventID(s Source, providerID string) string {
	return fmt.Sprintf("%s_%s", s.Prefix(), providerID)
}

// Venue is the location an event takes place at. Coordinates are optional:
// some providers only supply a venue name and address.
type Venue struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (v Venue) HasCoordinates() bool {
	return v.Latitude != nil && v.Longitude != nil
}

// EventDateTime carries the normalized, UTC-aware schedule of an event.
// When a provider supplies only a calendar date with no time of day,
// Start holds midnight UTC of that date and IsTimeTBA is set.
type EventDateTime struct {
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Timezone  string     `json:"timezone,omitempty"`
	DoorsOpen *time.Time `json:"doors_open,omitempty"`
	IsTimeTBA bool       `json:"is_time_tba"`
}

// Pricing is the normalized price information for an event.
// A nil MinPrice means the provider reported no price data at all, which is
// distinct from a free event (IsFree with MinPrice of zero).
type Pricing struct {
	IsFree   bool     `json:"is_free"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// Normalized category vocabulary. Adapters map provider taxonomies onto
// these tags; unknown provider categories fall back to CategoryOther.
const (
	CategoryMusic     = "music"
	CategoryNightlife = "nightlife"
	CategoryArts      = "arts"
	CategorySports    = "sports"
	CategoryFoodDrink = "food-drink"
	CategoryComedy    = "comedy"
	CategoryFilm      = "film"
	CategoryCommunity = "community"
	CategoryFamily    = "family"
	CategoryBusiness  = "business"
	CategoryWellness  = "wellness"
	CategoryOther     = "other"
)

// CanonicalEvent is the unified event representation produced by the source
// adapters and consumed by the aggregation pipeline.
//
// Invariant: ID and Source are set for every event that survives adapter
// normalization. A record lacking a stable provider identifier is dropped
// inside its adapter and never reaches the pipeline.
type CanonicalEvent struct {
	// ID is globally unique and namespaced by source: "<prefix>_<provider-id>".
	ID     string `json:"id"`
	Source Source `json:"source"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Venue    Venue         `json:"venue"`
	DateTime EventDateTime `json:"datetime"`
	Pricing  Pricing       `json:"pricing"`

	// Categories is an ordered set of normalized category tags.
	Categories []string `json:"categories,omitempty"`

	TicketURL string `json:"ticket_url,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	IsSoldOut bool   `json:"is_sold_out"`

	// GoingCount is a provider-reported attendance/popularity signal.
	// Zero means the provider does not report one.
	GoingCount int `json:"going_count,omitempty"`

	// DistanceKm and Score are derived fields, set by the pipeline during
	// enrichment and ranking. They are never populated by adapters.
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Score      float64  `json:"score,omitempty"`
}

// HasIdentity reports whether the event satisfies the identity invariant.
func (e *CanonicalEvent) HasIdentity() bool {
	return e.ID != "" && e.Source != ""
}
