// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package pipeline

import (
	"testing"
	"time"

	"github.com/nearlive/nearlive/internal/models"
)

func coordEvent(src models.Source, id, name string, start time.Time, lat, lng float64) models.CanonicalEvent {
	return models.CanonicalEvent{
		ID:     models.EventID(src, id),
		Source: src,
		Name:   name,
		Venue: models.Venue{
			Name:      "Test Venue",
			Latitude:  &lat,
			Longitude: &lng,
		},
		DateTime: models.EventDateTime{Start: &start},
	}
}

func TestDedupeExactMatch(t *testing.T) {
	start := time.Date(2026, 6, 15, 20, 0, 0, 0, time.UTC)
	events := []models.CanonicalEvent{
		coordEvent(models.SourceSeatGeek, "1", "Arcade Fire", start, 40.7128, -74.006),
		coordEvent(models.SourceTicketmaster, "2", "Arcade Fire", start, 40.7129, -74.0061),
		coordEvent(models.SourceEventbrite, "3", "Arcade Fire", start, 40.7128, -74.006),
	}

	got := dedupe(events, DefaultDedupConfig())
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	// Ticketmaster outranks both SeatGeek and Eventbrite.
	if got[0].Source != models.SourceTicketmaster {
		t.Errorf("kept source = %s, want ticketmaster", got[0].Source)
	}
}

func TestDedupeFuzzyTitleVariants(t *testing.T) {
	start := time.Date(2026, 6, 15, 19, 0, 0, 0, time.UTC)
	events := []models.CanonicalEvent{
		coordEvent(models.SourceEventbrite, "1", "Taylor Swift - Eras Tour", start, 40.75, -73.99),
		coordEvent(models.SourceTicketmaster, "2", "Taylor Swift: The Eras Tour", start, 40.7501, -73.9901),
	}

	got := dedupe(events, DefaultDedupConfig())
	if len(got) != 1 {
		t.Fatalf("fuzzy variants not collapsed: got %d events", len(got))
	}
	if got[0].Source != models.SourceTicketmaster {
		t.Errorf("kept source = %s, want ticketmaster", got[0].Source)
	}
}

func TestDedupeDifferentDaysKept(t *testing.T) {
	d1 := time.Date(2026, 6, 15, 20, 0, 0, 0, time.UTC)
	d2 := d1.Add(24 * time.Hour)
	events := []models.CanonicalEvent{
		coordEvent(models.SourceTicketmaster, "1", "Residency Night", d1, 40.7, -74.0),
		coordEvent(models.SourceTicketmaster, "2", "Residency Night", d2, 40.7, -74.0),
	}

	got := dedupe(events, DefaultDedupConfig())
	if len(got) != 2 {
		t.Fatalf("distinct days collapsed: got %d events, want 2", len(got))
	}
}

func TestDedupeDistantVenuesKept(t *testing.T) {
	start := time.Date(2026, 6, 15, 20, 0, 0, 0, time.UTC)
	// Same name and day, venues ~20km apart. With fuzzy matching off the
	// exact key's location bucket keeps them distinct.
	events := []models.CanonicalEvent{
		coordEvent(models.SourceTicketmaster, "1", "Jazz Brunch", start, 40.7128, -74.006),
		coordEvent(models.SourceSeatGeek, "2", "Jazz Brunch", start, 40.88, -73.90),
	}

	cfg := DefaultDedupConfig()
	cfg.FuzzyWordCount = 0

	got := dedupe(events, cfg)
	if len(got) != 2 {
		t.Fatalf("distant venues collapsed: got %d events, want 2", len(got))
	}
}

func TestDedupeVenueNameFallback(t *testing.T) {
	start := time.Date(2026, 6, 15, 20, 0, 0, 0, time.UTC)
	noCoords := func(src models.Source, id, venue string) models.CanonicalEvent {
		return models.CanonicalEvent{
			ID:       models.EventID(src, id),
			Source:   src,
			Name:     "Open Mic",
			Venue:    models.Venue{Name: venue},
			DateTime: models.EventDateTime{Start: &start},
		}
	}

	events := []models.CanonicalEvent{
		noCoords(models.SourceEventbrite, "1", "The Bitter End"),
		noCoords(models.SourceSeatGeek, "2", "Bitter End, The"),
		noCoords(models.SourceEventbrite, "3", "Caveat"),
		noCoords(models.SourceSeatGeek, "4", "Caveat"),
	}

	// Fuzzy matching off: the exact key falls back to the normalized venue
	// name when coordinates are missing. "The Bitter End" and "Bitter End,
	// The" normalize to different venue strings and survive; the two
	// identical "Caveat" listings collapse.
	cfg := DefaultDedupConfig()
	cfg.FuzzyWordCount = 0

	got := dedupe(events, cfg)
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}

	caveats := 0
	for _, ev := range got {
		if ev.Venue.Name == "Caveat" {
			caveats++
			if ev.Source != models.SourceSeatGeek {
				t.Errorf("kept Caveat source = %s, want seatgeek", ev.Source)
			}
		}
	}
	if caveats != 1 {
		t.Errorf("identical venue-name events not collapsed: %d Caveat entries", caveats)
	}
}

func TestDedupeFuzzyIgnoresLocation(t *testing.T) {
	start := time.Date(2026, 6, 15, 20, 0, 0, 0, time.UTC)
	// Same occurrence listed with coordinates by one provider and without by
	// another, under a different venue spelling. The exact keys differ, but
	// the fuzzy key matches on name and day alone.
	withCoords := coordEvent(models.SourceTicketmaster, "1", "Phoebe Bridgers - Reunion Tour", start, 40.7128, -74.006)
	without := models.CanonicalEvent{
		ID:       models.EventID(models.SourceEventbrite, "2"),
		Source:   models.SourceEventbrite,
		Name:     "Phoebe Bridgers: Reunion Tour",
		Venue:    models.Venue{Name: "Webster Hall NYC"},
		DateTime: models.EventDateTime{Start: &start},
	}

	got := dedupe([]models.CanonicalEvent{without, withCoords}, DefaultDedupConfig())
	if len(got) != 1 {
		t.Fatalf("location kept title variants apart: got %d events, want 1", len(got))
	}
	if got[0].Source != models.SourceTicketmaster {
		t.Errorf("kept source = %s, want ticketmaster", got[0].Source)
	}
}

func TestDedupeThreeWayCollisionKeepsHighestPriority(t *testing.T) {
	start := time.Date(2026, 6, 15, 19, 0, 0, 0, time.UTC)
	// The eventbrite and seatgeek listings share an exact key; ticketmaster
	// joins them only through the fuzzy key. After ticketmaster displaces
	// the eventbrite record, the later seatgeek arrival must lose to the
	// slot's current occupant, not to the record that first claimed the key.
	events := []models.CanonicalEvent{
		coordEvent(models.SourceEventbrite, "1", "Taylor Swift - Eras Tour", start, 40.75, -73.99),
		coordEvent(models.SourceTicketmaster, "2", "Taylor Swift: The Eras Tour", start, 40.7501, -73.9901),
		coordEvent(models.SourceSeatGeek, "3", "Taylor Swift - Eras Tour", start, 40.75, -73.99),
	}

	got := dedupe(events, DefaultDedupConfig())
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Source != models.SourceTicketmaster {
		t.Errorf("kept source = %s, want ticketmaster", got[0].Source)
	}
}

func TestDedupePreservesOrder(t *testing.T) {
	start := time.Date(2026, 6, 15, 20, 0, 0, 0, time.UTC)
	events := []models.CanonicalEvent{
		coordEvent(models.SourceTicketmaster, "a", "First Show", start, 40.70, -74.00),
		coordEvent(models.SourceTicketmaster, "b", "Second Show", start, 40.72, -74.02),
		coordEvent(models.SourceSeatGeek, "c", "First Show", start, 40.70, -74.00),
		coordEvent(models.SourceTicketmaster, "d", "Third Show", start, 40.74, -74.04),
	}

	got := dedupe(events, DefaultDedupConfig())
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	wantOrder := []string{"First Show", "Second Show", "Third Show"}
	for i, want := range wantOrder {
		if got[i].Name != want {
			t.Errorf("position %d = %s, want %s", i, got[i].Name, want)
		}
	}
}

func TestDedupeFuzzyDisabled(t *testing.T) {
	start := time.Date(2026, 6, 15, 19, 0, 0, 0, time.UTC)
	events := []models.CanonicalEvent{
		coordEvent(models.SourceEventbrite, "1", "Taylor Swift - Eras Tour", start, 40.75, -73.99),
		coordEvent(models.SourceTicketmaster, "2", "Taylor Swift: The Eras Tour", start, 40.75, -73.99),
	}

	cfg := DefaultDedupConfig()
	cfg.FuzzyWordCount = 0

	got := dedupe(events, cfg)
	if len(got) != 2 {
		t.Fatalf("fuzzy matching ran while disabled: got %d events", len(got))
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Taylor Swift: The Eras Tour", "taylorswifttheerastour"},
		{"  Jazz  Night!  ", "jazznight"},
		{"DJ Set (21+)", "djset21"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeName(tt.input); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSignificantWords(t *testing.T) {
	cfg := DefaultDedupConfig()

	got := significantWords("Taylor Swift - The Eras Tour", cfg)
	want := []string{"taylor", "swift", "eras"}
	if len(got) != len(want) {
		t.Fatalf("significantWords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %s, want %s", i, got[i], want[i])
		}
	}

	if got := significantWords("A + B", cfg); len(got) != 0 {
		t.Errorf("short words survived: %v", got)
	}
}
