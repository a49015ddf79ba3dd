// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nearlive/nearlive/internal/cache"
	"github.com/nearlive/nearlive/internal/models"
	"github.com/nearlive/nearlive/internal/resilience"
	"github.com/nearlive/nearlive/internal/source"
	"github.com/nearlive/nearlive/internal/validation"
)

// stubSource is a scripted provider for pipeline tests.
type stubSource struct {
	name   models.Source
	events []models.CanonicalEvent
	err    error
	calls  atomic.Int32
}

func (s *stubSource) Name() models.Source { return s.name }

func (s *stubSource) FetchPage(ctx context.Context, q models.Query, page int) (*source.Page, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &source.Page{Events: s.events, TotalAvailable: len(s.events)}, nil
}

func testController() *resilience.Controller {
	return resilience.NewController(resilience.Config{
		CallTimeout: 5 * time.Second,
		Breaker:     resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute, HalfOpenProbes: 1},
		Limiter:     resilience.LimiterConfig{PerSecond: 1000, PerMinute: 10000},
	})
}

func testPipeline(sources ...source.Source) (*Pipeline, *cache.Cache) {
	results := cache.New(cache.Config{TTL: 10 * time.Minute, StaleGrace: time.Hour})
	p := New(sources, testController(), results, DefaultConfig())
	return p, results
}

func queryAt(lat, lng float64) models.Query {
	return models.Query{Latitude: lat, Longitude: lng, RadiusKm: 25, Pages: 1, StartPage: 1}
}

func eventNear(src models.Source, id, name string, start time.Time, lat, lng float64) models.CanonicalEvent {
	return models.CanonicalEvent{
		ID:       models.EventID(src, id),
		Source:   src,
		Name:     name,
		Venue:    models.Venue{Name: "Venue " + id, Latitude: &lat, Longitude: &lng},
		DateTime: models.EventDateTime{Start: &start},
	}
}

func TestGetEventsCrossProviderScenario(t *testing.T) {
	now := time.Now().UTC()
	concert := now.Add(5 * time.Hour)

	// Two providers report the same concert; each also has a unique event.
	tm := &stubSource{
		name: models.SourceTicketmaster,
		events: []models.CanonicalEvent{
			eventNear(models.SourceTicketmaster, "c1", "Phoenix Live in Concert", concert, 40.7128, -74.006),
			eventNear(models.SourceTicketmaster, "u1", "Stadium Derby", now.Add(30*time.Hour), 40.73, -74.02),
		},
	}
	sg := &stubSource{
		name: models.SourceSeatGeek,
		events: []models.CanonicalEvent{
			eventNear(models.SourceSeatGeek, "c2", "Phoenix - Live in Concert", concert, 40.7129, -74.0061),
			eventNear(models.SourceSeatGeek, "u2", "Comedy Cellar Late Show", now.Add(8*time.Hour), 40.728, -74.001),
		},
	}

	p, _ := testPipeline(tm, sg)

	res, err := p.GetEvents(context.Background(), queryAt(40.7128, -74.006))
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}

	if len(res.Events) != 3 {
		t.Fatalf("got %d events, want 3 (duplicate collapsed)", len(res.Events))
	}

	// The duplicated concert survives as the Ticketmaster record.
	var foundConcert bool
	for _, ev := range res.Events {
		if ev.ID == "tm_c1" {
			foundConcert = true
		}
		if ev.ID == "sg_c2" {
			t.Error("lower-priority duplicate survived dedup")
		}
		if ev.DistanceKm == nil {
			t.Errorf("event %s missing distance enrichment", ev.ID)
		}
		if ev.Score == 0 {
			t.Errorf("event %s missing score", ev.ID)
		}
	}
	if !foundConcert {
		t.Error("ticketmaster concert record missing")
	}

	// Recommended sort: scores non-increasing.
	for i := 1; i < len(res.Events); i++ {
		if res.Events[i].Score > res.Events[i-1].Score {
			t.Errorf("events not sorted by score: %v then %v",
				res.Events[i-1].Score, res.Events[i].Score)
		}
	}

	if res.TotalAvailable != 4 {
		t.Errorf("TotalAvailable = %d, want 4", res.TotalAvailable)
	}
}

func TestGetEventsValidationRejectedBeforeFetch(t *testing.T) {
	src := &stubSource{name: models.SourceTicketmaster}
	p, _ := testPipeline(src)

	q := queryAt(91, -74.006) // latitude out of range
	_, err := p.GetEvents(context.Background(), q)
	if err == nil {
		t.Fatal("GetEvents() = nil error for invalid query")
	}
	if !validation.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if src.calls.Load() != 0 {
		t.Error("adapter called despite validation failure")
	}
}

func TestGetEventsProviderFailureDegrades(t *testing.T) {
	now := time.Now().UTC()
	healthy := &stubSource{
		name: models.SourceTicketmaster,
		events: []models.CanonicalEvent{
			eventNear(models.SourceTicketmaster, "a", "Surviving Event", now.Add(2*time.Hour), 40.71, -74.0),
		},
	}
	broken := &stubSource{
		name: models.SourceEventbrite,
		err:  &resilience.ProviderError{Source: "eventbrite", StatusCode: 503},
	}

	p, _ := testPipeline(healthy, broken)

	res, err := p.GetEvents(context.Background(), queryAt(40.7128, -74.006))
	if err != nil {
		t.Fatalf("GetEvents() error = %v, want degraded success", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1 from the healthy source", len(res.Events))
	}
}

func TestGetEventsInitialPageCached(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{
		name: models.SourceTicketmaster,
		events: []models.CanonicalEvent{
			eventNear(models.SourceTicketmaster, "a", "Cached Event", now.Add(2*time.Hour), 40.71, -74.0),
		},
	}
	p, _ := testPipeline(src)

	q := queryAt(40.7128, -74.006)
	if _, err := p.GetEvents(context.Background(), q); err != nil {
		t.Fatalf("first GetEvents() = %v", err)
	}
	first := src.calls.Load()

	if _, err := p.GetEvents(context.Background(), q); err != nil {
		t.Fatalf("second GetEvents() = %v", err)
	}
	if src.calls.Load() != first {
		t.Error("identical initial-page query hit the provider again")
	}

	// A different location is a different cache entry.
	if _, err := p.GetEvents(context.Background(), queryAt(41.88, -87.63)); err != nil {
		t.Fatalf("third GetEvents() = %v", err)
	}
	if src.calls.Load() == first {
		t.Error("different location served from the same cache entry")
	}
}

func TestGetEventsLoadMoreNotCached(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{
		name: models.SourceTicketmaster,
		events: []models.CanonicalEvent{
			eventNear(models.SourceTicketmaster, "a", "Page Two Event", now.Add(2*time.Hour), 40.71, -74.0),
		},
	}
	p, _ := testPipeline(src)

	q := queryAt(40.7128, -74.006)
	q.StartPage = 2

	if _, err := p.GetEvents(context.Background(), q); err != nil {
		t.Fatalf("GetEvents() = %v", err)
	}
	first := src.calls.Load()

	if _, err := p.GetEvents(context.Background(), q); err != nil {
		t.Fatalf("GetEvents() = %v", err)
	}
	if src.calls.Load() == first {
		t.Error("load-more window was served from cache")
	}
}

func TestGetEventsFiltersStaleEvents(t *testing.T) {
	now := time.Now().UTC()
	src := &stubSource{
		name: models.SourceTicketmaster,
		events: []models.CanonicalEvent{
			eventNear(models.SourceTicketmaster, "old", "Ended Matinee", now.Add(-4*time.Hour), 40.71, -74.0),
			eventNear(models.SourceTicketmaster, "ongoing", "Ongoing Festival", now.Add(-time.Hour), 40.72, -74.01),
			eventNear(models.SourceTicketmaster, "future", "Tonight Show", now.Add(6*time.Hour), 40.73, -74.02),
		},
	}
	p, _ := testPipeline(src)

	res, err := p.GetEvents(context.Background(), queryAt(40.7128, -74.006))
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}

	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2 (started >3h ago dropped)", len(res.Events))
	}
	for _, ev := range res.Events {
		if ev.ID == "tm_old" {
			t.Error("stale event survived the filter")
		}
	}
}

func TestGetEventsKeepsUndatedEvents(t *testing.T) {
	undated := models.CanonicalEvent{
		ID:     "eb_nodate",
		Source: models.SourceEventbrite,
		Name:   "Date To Be Announced",
	}
	src := &stubSource{name: models.SourceEventbrite, events: []models.CanonicalEvent{undated}}
	p, _ := testPipeline(src)

	res, err := p.GetEvents(context.Background(), queryAt(40.7128, -74.006))
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("undated event dropped by staleness filter")
	}
}

func TestGetEventsServesStaleWhenBreakerOpen(t *testing.T) {
	broken := &stubSource{
		name: models.SourceTicketmaster,
		err:  &resilience.ProviderError{Source: "ticketmaster", StatusCode: 500},
	}
	p, results := testPipeline(broken)

	q := queryAt(40.7128, -74.006)

	// First call trips the breaker (threshold 1) and returns empty.
	res, err := p.GetEvents(context.Background(), q)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("got %d events from a dead provider", len(res.Events))
	}

	// Plant an expired entry for this query, as if a previous fetch had
	// aged out.
	applyDefaults(&q)
	key := cache.GenerateKey("events", cacheKeyParams{
		Lat:    roundCoord(q.Latitude),
		Lng:    roundCoord(q.Longitude),
		Radius: q.RadiusKm,
		Sort:   q.Sort,
		Pages:  q.Pages,
	})
	stale := &models.EventsResult{
		Events: []models.CanonicalEvent{{ID: "tm_old", Source: models.SourceTicketmaster, Name: "Last Known"}},
	}
	results.SetWithTTL(key, stale, -time.Minute)

	got, err := p.GetEvents(context.Background(), q)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(got.Events) != 1 || got.Events[0].ID != "tm_old" {
		t.Fatalf("stale entry not served: %+v", got.Events)
	}
}

func TestGetEventsNeverReturnsNilEvents(t *testing.T) {
	broken := &stubSource{
		name: models.SourceSeatGeek,
		err:  &resilience.ProviderError{Source: "seatgeek", StatusCode: 500},
	}
	p, _ := testPipeline(broken)

	res, err := p.GetEvents(context.Background(), queryAt(40.7128, -74.006))
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if res.Events == nil {
		t.Fatal("Events is nil, want empty slice")
	}
}

func TestGetEventsDefaults(t *testing.T) {
	src := &stubSource{name: models.SourceTicketmaster}
	p, _ := testPipeline(src)

	q := models.Query{Latitude: 40.7128, Longitude: -74.006, RadiusKm: 25}
	res, err := p.GetEvents(context.Background(), q)
	if err != nil {
		t.Fatalf("GetEvents() with zero pages/sort = %v", err)
	}
	if res == nil {
		t.Fatal("nil result")
	}
}
