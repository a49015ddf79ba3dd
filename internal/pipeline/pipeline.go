// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

// Package pipeline aggregates events from every registered source into one
// ranked result list: concurrent fan-out, cross-provider deduplication,
// staleness filtering, distance enrichment, relevance scoring, sorting, and
// a short-lived result cache.
//
// The pipeline degrades, it does not fail: provider errors shrink the result
// set and validation failures are the only errors callers ever see.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nearlive/nearlive/internal/cache"
	"github.com/nearlive/nearlive/internal/logging"
	"github.com/nearlive/nearlive/internal/metrics"
	"github.com/nearlive/nearlive/internal/models"
	"github.com/nearlive/nearlive/internal/resilience"
	"github.com/nearlive/nearlive/internal/source"
	"github.com/nearlive/nearlive/internal/validation"
)

// Config tunes the aggregation pipeline.
type Config struct {
	// StalenessGrace keeps events that started up to this long ago; an
	// event is not gone the moment it begins.
	StalenessGrace time.Duration

	// Dedup tunes cross-provider deduplication.
	Dedup DedupConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		StalenessGrace: 3 * time.Hour,
		Dedup:          DefaultDedupConfig(),
	}
}

// Pipeline is the aggregation orchestrator. Construct with New; safe for
// concurrent use.
type Pipeline struct {
	sources []source.Source
	ctrl    *resilience.Controller
	results *cache.Cache
	cfg     Config

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// New creates a pipeline over the given sources.
func New(sources []source.Source, ctrl *resilience.Controller, results *cache.Cache, cfg Config) *Pipeline {
	if cfg.StalenessGrace <= 0 {
		cfg.StalenessGrace = DefaultConfig().StalenessGrace
	}
	if cfg.Dedup.FuzzyWordCount == 0 && cfg.Dedup.MinWordLen == 0 {
		cfg.Dedup = DefaultDedupConfig()
	}
	return &Pipeline{
		sources: sources,
		ctrl:    ctrl,
		results: results,
		cfg:     cfg,
		now:     time.Now,
	}
}

// cacheKeyParams is what identifies a cacheable result. Coordinates are
// rounded so nearby clients share entries.
type cacheKeyParams struct {
	Lat    float64         `json:"lat"`
	Lng    float64         `json:"lng"`
	Radius float64         `json:"radius"`
	Sort   models.SortMode `json:"sort"`
	Pages  int             `json:"pages"`
}

// GetEvents runs the full aggregation for one query.
//
// The only error callers see is a validation failure; provider trouble
// degrades the result set instead. Initial-page results are served from and
// written to the cache; load-more windows always fetch fresh.
func (p *Pipeline) GetEvents(ctx context.Context, q models.Query) (*models.EventsResult, error) {
	start := p.now()

	applyDefaults(&q)
	if err := validation.ValidateStruct(&q); err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}

	key := cache.GenerateKey("events", cacheKeyParams{
		Lat:    roundCoord(q.Latitude),
		Lng:    roundCoord(q.Longitude),
		Radius: q.RadiusKm,
		Sort:   q.Sort,
		Pages:  q.Pages,
	})

	if q.IsInitialPage() {
		if cached, ok := p.results.Get(key); ok {
			if res, ok := cached.(*models.EventsResult); ok {
				return res, nil
			}
		}
	}

	events, hasMore, total := p.fanOut(ctx, q)

	if len(events) == 0 && p.ctrl.AnyBreakerOpen() {
		if stale, ok := p.results.GetStale(key); ok {
			if res, ok := stale.(*models.EventsResult); ok {
				logging.Info().Str("key", key).Msg("serving stale results while providers are unavailable")
				return res, nil
			}
		}
	}

	events = dedupe(events, p.cfg.Dedup)
	events = p.filterStale(events)
	p.enrich(events, q)
	p.score(events, q)
	sortEvents(events, q.Sort)

	result := &models.EventsResult{
		Events:         events,
		HasMore:        hasMore,
		TotalAvailable: total,
	}
	if hasMore {
		result.NextPageToken = strconv.Itoa(q.StartPage + q.Pages)
	}

	// Degraded empty results are not cached: an open breaker with nothing
	// fetched must not mask recovery for the next caller.
	if q.IsInitialPage() && !(len(result.Events) == 0 && p.ctrl.AnyBreakerOpen()) {
		p.results.Set(key, result)
	}

	elapsed := p.now().Sub(start)
	metrics.PipelineDuration.Observe(elapsed.Seconds())
	metrics.PipelineEventsReturned.Observe(float64(len(result.Events)))
	logging.Ctx(ctx).Debug().
		Int("events", len(result.Events)).
		Dur("elapsed", elapsed).
		Bool("initial_page", q.IsInitialPage()).
		Msg("pipeline completed")

	return result, nil
}

// fanOut queries every source concurrently. A failed source contributes
// nothing; the batch never fails as a whole.
func (p *Pipeline) fanOut(ctx context.Context, q models.Query) (events []models.CanonicalEvent, hasMore bool, total int) {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range p.sources {
		g.Go(func() error {
			res, err := source.FetchEvents(gctx, p.ctrl, src, q)
			if err != nil {
				logging.Warn().Err(err).
					Str("source", string(src.Name())).
					Msg("source contributed no events")
				return nil
			}

			mu.Lock()
			events = append(events, res.Events...)
			if res.HasMore {
				hasMore = true
			}
			total += res.TotalAvailable
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	if events == nil {
		events = []models.CanonicalEvent{}
	}
	return events, hasMore, total
}

// filterStale drops events that started before now minus the grace window.
// Events without a parseable start time are kept.
func (p *Pipeline) filterStale(events []models.CanonicalEvent) []models.CanonicalEvent {
	cutoff := p.now().Add(-p.cfg.StalenessGrace)

	kept := events[:0]
	for _, ev := range events {
		if ev.DateTime.Start != nil && ev.DateTime.Start.Before(cutoff) {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

// enrich computes the distance from the query point for every event with
// venue coordinates.
func (p *Pipeline) enrich(events []models.CanonicalEvent, q models.Query) {
	for i := range events {
		v := events[i].Venue
		if !v.HasCoordinates() {
			continue
		}
		d := haversineKm(q.Latitude, q.Longitude, *v.Latitude, *v.Longitude)
		events[i].DistanceKm = &d
	}
}

// score assigns the relevance score used by the recommended sort.
func (p *Pipeline) score(events []models.CanonicalEvent, q models.Query) {
	now := p.now()
	for i := range events {
		events[i].Score = scoreEvent(&events[i], q.RadiusKm, now)
	}
}

func applyDefaults(q *models.Query) {
	if q.Sort == "" {
		q.Sort = models.SortRecommended
	}
	if q.Pages == 0 {
		q.Pages = 1
	}
	if q.StartPage == 0 {
		q.StartPage = 1
	}
}

// roundCoord rounds to two decimal places, about a kilometer of latitude.
func roundCoord(v float64) float64 {
	return float64(int(v*100+copysignHalf(v))) / 100
}

func copysignHalf(v float64) float64 {
	if v < 0 {
		return -0.5
	}
	return 0.5
}
