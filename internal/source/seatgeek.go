// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/nearlive/nearlive/internal/models"
	"github.com/nearlive/nearlive/internal/resilience"
)

const seatgeekDefaultBaseURL = "https://api.seatgeek.com"

// seatgeekCategories maps taxonomy names onto the normalized vocabulary.
var seatgeekCategories = map[string]string{
	"concert":          models.CategoryMusic,
	"concerts":         models.CategoryMusic,
	"music_festival":   models.CategoryMusic,
	"sports":           models.CategorySports,
	"theater":          models.CategoryArts,
	"broadway_tickets": models.CategoryArts,
	"dance":            models.CategoryArts,
	"comedy":           models.CategoryComedy,
	"film":             models.CategoryFilm,
	"family":           models.CategoryFamily,
}

// SeatGeek adapts the SeatGeek Platform /2/events API.
type SeatGeek struct {
	cfg    Config
	client *http.Client
}

// NewSeatGeek creates the adapter. cfg.APIKey is the client_id query
// parameter SeatGeek uses for application auth.
func NewSeatGeek(cfg Config) *SeatGeek {
	if cfg.BaseURL == "" {
		cfg.BaseURL = seatgeekDefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &SeatGeek{cfg: cfg, client: cfg.httpClient()}
}

// Name implements Source.
func (s *SeatGeek) Name() models.Source {
	return models.SourceSeatGeek
}

type sgResponse struct {
	Events []sgEvent `json:"events"`
	Meta   struct {
		Total   int `json:"total"`
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
	} `json:"meta"`
}

type sgEvent struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	DatetimeUTC string `json:"datetime_utc"`
	DateTBD     bool   `json:"date_tbd"`
	TimeTBD     bool   `json:"time_tbd"`
	Venue       struct {
		Name     string `json:"name"`
		Address  string `json:"address"`
		Extended string `json:"extended_address"`
		Location struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		} `json:"location"`
		Timezone string `json:"timezone"`
	} `json:"venue"`
	Performers []struct {
		Image string `json:"image"`
	} `json:"performers"`
	Stats struct {
		LowestPrice  *float64 `json:"lowest_price"`
		HighestPrice *float64 `json:"highest_price"`
		ListingCount *int     `json:"listing_count"`
	} `json:"stats"`
	// Score is SeatGeek's 0..1 popularity estimate for the event.
	Score      float64 `json:"score"`
	Taxonomies []struct {
		Name string `json:"name"`
	} `json:"taxonomies"`
}

// FetchPage implements Source. SeatGeek pages are 1-based on the wire.
func (s *SeatGeek) FetchPage(ctx context.Context, q models.Query, page int) (*Page, error) {
	params := url.Values{}
	params.Set("client_id", s.cfg.APIKey)
	params.Set("lat", fmt.Sprintf("%.4f", q.Latitude))
	params.Set("lon", fmt.Sprintf("%.4f", q.Longitude))
	params.Set("range", fmt.Sprintf("%dkm", int(q.RadiusKm)))
	params.Set("per_page", strconv.Itoa(s.cfg.PageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("sort", "datetime_utc.asc")

	endpoint := s.cfg.BaseURL + "/2/events?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("seatgeek: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seatgeek: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &resilience.ProviderError{
			Source:     string(models.SourceSeatGeek),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var payload sgResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("seatgeek: decode response: %w", err)
	}

	events := make([]models.CanonicalEvent, 0, len(payload.Events))
	for i := range payload.Events {
		if ev, ok := s.normalize(&payload.Events[i]); ok {
			events = append(events, ev)
		}
	}
	countFetched(models.SourceSeatGeek, len(events))

	p := &Page{Events: events, TotalAvailable: payload.Meta.Total}
	if payload.Meta.PerPage > 0 && payload.Meta.Page*payload.Meta.PerPage < payload.Meta.Total {
		next := page + 1
		p.NextPage = &next
	}
	return p, nil
}

func (s *SeatGeek) normalize(raw *sgEvent) (models.CanonicalEvent, bool) {
	if raw.ID == 0 {
		skipRecord(models.SourceSeatGeek, "missing event id")
		return models.CanonicalEvent{}, false
	}

	ev := models.CanonicalEvent{
		ID:        models.EventID(models.SourceSeatGeek, strconv.FormatInt(raw.ID, 10)),
		Source:    models.SourceSeatGeek,
		Name:      collapseSpaces(raw.Title),
		TicketURL: raw.URL,
	}

	// datetime_utc carries no zone designator; it is UTC by contract.
	if !raw.DateTBD {
		ev.DateTime.Start = parseUTC(raw.DatetimeUTC, "2006-01-02T15:04:05")
	}
	ev.DateTime.IsTimeTBA = raw.TimeTBD || raw.DateTBD
	ev.DateTime.Timezone = raw.Venue.Timezone

	// Null lowest_price means no listings data, which is unknown, not free.
	ev.Pricing = models.Pricing{
		MinPrice: raw.Stats.LowestPrice,
		MaxPrice: raw.Stats.HighestPrice,
		Currency: "USD",
	}

	for _, tax := range raw.Taxonomies {
		if tax.Name == "" {
			continue
		}
		ev.Categories = appendUnique(ev.Categories, categoryFor(seatgeekCategories, tax.Name))
	}

	for _, perf := range raw.Performers {
		if perf.Image != "" {
			ev.ImageURL = perf.Image
			break
		}
	}

	address := raw.Venue.Address
	if raw.Venue.Extended != "" {
		if address != "" {
			address += ", "
		}
		address += raw.Venue.Extended
	}
	ev.Venue = models.Venue{
		Name:      raw.Venue.Name,
		Latitude:  raw.Venue.Location.Lat,
		Longitude: raw.Venue.Location.Lon,
		Address:   address,
	}

	// SeatGeek reports a 0..1 score rather than attendance; scale it into a
	// count-like signal so popularity ranking can compare across providers.
	if raw.Score > 0 {
		ev.GoingCount = int(raw.Score * 1000)
	}

	// A sold-out event still lists with zero listings.
	if raw.Stats.ListingCount != nil && *raw.Stats.ListingCount == 0 && raw.Stats.LowestPrice == nil {
		ev.IsSoldOut = true
	}

	return ev, true
}
