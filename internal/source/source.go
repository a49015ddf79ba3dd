// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

// Package source contains one adapter per event provider. Each adapter owns
// its provider's URL construction, credentials, payload decoding, and
// normalization into the canonical event model. Adapters are isolated: they
// never call each other and never touch the aggregation cache.
package source

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nearlive/nearlive/internal/logging"
	"github.com/nearlive/nearlive/internal/models"
	"github.com/nearlive/nearlive/internal/resilience"
)

// Source is implemented by every provider adapter.
type Source interface {
	// Name identifies the provider.
	Name() models.Source

	// FetchPage fetches and normalizes one page of events for the query.
	// Page numbers are 1-based.
	FetchPage(ctx context.Context, q models.Query, page int) (*Page, error)
}

// Page is one normalized page of provider results.
type Page struct {
	Events []models.CanonicalEvent

	// NextPage is the 1-based number of the following page, nil when this
	// is the last page the provider reports.
	NextPage *int

	// TotalAvailable is the provider's total result count for the query,
	// zero when the provider does not report one.
	TotalAvailable int
}

// Config holds the settings common to every adapter.
type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int

	// HTTPClient is injectable for tests; a default client is used when nil.
	// Timeouts are enforced by the resilience controller's context, not here.
	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// FetchResult is the merged outcome of a multi-page fetch from one source.
type FetchResult struct {
	Events         []models.CanonicalEvent
	TotalAvailable int
	HasMore        bool
}

// maxConcurrentPages bounds per-source page parallelism so a single query
// cannot burst through the provider's per-second ceiling.
const maxConcurrentPages = 3

// FetchEvents fetches q.Pages pages from src starting at q.StartPage, each
// page guarded by the resilience controller. Pages are fetched concurrently
// and merged without ordering assumptions; a failed page contributes zero
// events rather than failing the batch. An error is returned only when every
// page failed, so the caller can distinguish a dead source from a thin one.
func FetchEvents(ctx context.Context, ctrl *resilience.Controller, src Source, q models.Query) (*FetchResult, error) {
	name := src.Name()

	var (
		mu       sync.Mutex
		result   FetchResult
		pagesOK  int
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPages)

	for i := 0; i < q.Pages; i++ {
		page := q.StartPage + i
		g.Go(func() error {
			key := fmt.Sprintf("lat=%.4f|lng=%.4f|r=%.1f|page=%d", q.Latitude, q.Longitude, q.RadiusKm, page)
			v, err := ctrl.Execute(gctx, string(name), key, func(callCtx context.Context) (interface{}, error) {
				return src.FetchPage(callCtx, q, page)
			})
			if err != nil {
				logging.Warn().Err(err).
					Str("source", string(name)).
					Int("page", page).
					Msg("page fetch failed")
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				// Tolerated: the batch continues with the pages that worked.
				return nil
			}

			p, ok := v.(*Page)
			if !ok || p == nil {
				return nil
			}

			mu.Lock()
			result.Events = append(result.Events, p.Events...)
			if p.TotalAvailable > result.TotalAvailable {
				result.TotalAvailable = p.TotalAvailable
			}
			if p.NextPage != nil {
				result.HasMore = true
			}
			pagesOK++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if pagesOK == 0 && firstErr != nil {
		return nil, fmt.Errorf("source %s: all pages failed: %w", name, firstErr)
	}
	return &result, nil
}
