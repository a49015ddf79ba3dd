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
	"time"

	"github.com/goccy/go-json"

	"github.com/nearlive/nearlive/internal/models"
	"github.com/nearlive/nearlive/internal/resilience"
)

const ticketmasterDefaultBaseURL = "https://app.ticketmaster.com"

// ticketmasterCategories maps Discovery API segment names onto the
// normalized vocabulary.
var ticketmasterCategories = map[string]string{
	"music":          models.CategoryMusic,
	"sports":         models.CategorySports,
	"arts & theatre": models.CategoryArts,
	"film":           models.CategoryFilm,
	"comedy":         models.CategoryComedy,
	"family":         models.CategoryFamily,
	"miscellaneous":  models.CategoryOther,
}

// Ticketmaster adapts the Ticketmaster Discovery v2 API.
type Ticketmaster struct {
	cfg    Config
	client *http.Client
}

// NewTicketmaster creates the adapter. cfg.APIKey is the Discovery API key
// sent as the apikey query parameter.
func NewTicketmaster(cfg Config) *Ticketmaster {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ticketmasterDefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &Ticketmaster{cfg: cfg, client: cfg.httpClient()}
}

// Name implements Source.
func (t *Ticketmaster) Name() models.Source {
	return models.SourceTicketmaster
}

// Discovery v2 payload shapes, limited to the fields we read.
type tmResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
	Page struct {
		Size          int `json:"size"`
		TotalElements int `json:"totalElements"`
		TotalPages    int `json:"totalPages"`
		Number        int `json:"number"`
	} `json:"page"`
}

type tmEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Info   string `json:"info"`
	Images []struct {
		URL   string `json:"url"`
		Ratio string `json:"ratio"`
		Width int    `json:"width"`
	} `json:"images"`
	Dates struct {
		Start struct {
			DateTime       string `json:"dateTime"`
			LocalDate      string `json:"localDate"`
			DateTBD        bool   `json:"dateTBD"`
			TimeTBD        bool   `json:"timeTBD"`
			NoSpecificTime bool   `json:"noSpecificTime"`
		} `json:"start"`
		Timezone string `json:"timezone"`
		Status   struct {
			Code string `json:"code"`
		} `json:"status"`
	} `json:"dates"`
	Classifications []struct {
		Segment struct {
			Name string `json:"name"`
		} `json:"segment"`
	} `json:"classifications"`
	PriceRanges []struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"priceRanges"`
	Embedded struct {
		Venues []struct {
			Name    string `json:"name"`
			Address struct {
				Line1 string `json:"line1"`
			} `json:"address"`
			City struct {
				Name string `json:"name"`
			} `json:"city"`
			Location struct {
				Latitude  string `json:"latitude"`
				Longitude string `json:"longitude"`
			} `json:"location"`
		} `json:"venues"`
	} `json:"_embedded"`
}

// FetchPage implements Source. Discovery pages are 0-based on the wire.
func (t *Ticketmaster) FetchPage(ctx context.Context, q models.Query, page int) (*Page, error) {
	params := url.Values{}
	params.Set("apikey", t.cfg.APIKey)
	params.Set("latlong", fmt.Sprintf("%.4f,%.4f", q.Latitude, q.Longitude))
	params.Set("radius", strconv.Itoa(int(q.RadiusKm)))
	params.Set("unit", "km")
	params.Set("size", strconv.Itoa(t.cfg.PageSize))
	params.Set("page", strconv.Itoa(page-1))
	params.Set("sort", "date,asc")

	endpoint := t.cfg.BaseURL + "/discovery/v2/events.json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ticketmaster: build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticketmaster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &resilience.ProviderError{
			Source:     string(models.SourceTicketmaster),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var payload tmResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ticketmaster: decode response: %w", err)
	}

	events := make([]models.CanonicalEvent, 0, len(payload.Embedded.Events))
	for i := range payload.Embedded.Events {
		if ev, ok := t.normalize(&payload.Embedded.Events[i]); ok {
			events = append(events, ev)
		}
	}
	countFetched(models.SourceTicketmaster, len(events))

	p := &Page{Events: events, TotalAvailable: payload.Page.TotalElements}
	if payload.Page.Number+1 < payload.Page.TotalPages {
		next := page + 1
		p.NextPage = &next
	}
	return p, nil
}

func (t *Ticketmaster) normalize(raw *tmEvent) (models.CanonicalEvent, bool) {
	if raw.ID == "" {
		skipRecord(models.SourceTicketmaster, "missing event id")
		return models.CanonicalEvent{}, false
	}

	ev := models.CanonicalEvent{
		ID:          models.EventID(models.SourceTicketmaster, raw.ID),
		Source:      models.SourceTicketmaster,
		Name:        collapseSpaces(raw.Name),
		Description: normalizeDescription(raw.Info),
		TicketURL:   raw.URL,
		ImageURL:    t.bestImage(raw),
		IsSoldOut:   raw.Dates.Status.Code == "offsale",
	}

	ev.DateTime = t.normalizeDates(raw)

	if len(raw.PriceRanges) > 0 {
		pr := raw.PriceRanges[0]
		min, max := pr.Min, pr.Max
		ev.Pricing = models.Pricing{
			IsFree:   min == 0 && max == 0,
			MinPrice: &min,
			MaxPrice: &max,
			Currency: pr.Currency,
		}
	}

	for _, cl := range raw.Classifications {
		if cl.Segment.Name == "" {
			continue
		}
		cat := categoryFor(ticketmasterCategories, cl.Segment.Name)
		ev.Categories = appendUnique(ev.Categories, cat)
	}

	if len(raw.Embedded.Venues) > 0 {
		v := raw.Embedded.Venues[0]
		address := v.Address.Line1
		if v.City.Name != "" {
			if address != "" {
				address += ", "
			}
			address += v.City.Name
		}
		ev.Venue = models.Venue{
			Name:      v.Name,
			Latitude:  parseCoord(v.Location.Latitude),
			Longitude: parseCoord(v.Location.Longitude),
			Address:   address,
		}
	}

	return ev, true
}

// normalizeDates maps Discovery's start shapes: a full dateTime when known,
// otherwise a bare localDate meaning the time of day is still TBA.
func (t *Ticketmaster) normalizeDates(raw *tmEvent) models.EventDateTime {
	dt := models.EventDateTime{
		Timezone:  raw.Dates.Timezone,
		IsTimeTBA: raw.Dates.Start.TimeTBD || raw.Dates.Start.NoSpecificTime,
	}

	if start := parseUTC(raw.Dates.Start.DateTime, time.RFC3339); start != nil {
		dt.Start = start
		return dt
	}

	if start := parseUTC(raw.Dates.Start.LocalDate, "2006-01-02"); start != nil {
		dt.Start = start
		dt.IsTimeTBA = true
	}
	return dt
}

// bestImage prefers wide 16_9 images, largest first.
func (t *Ticketmaster) bestImage(raw *tmEvent) string {
	best := ""
	bestWidth := 0
	for _, img := range raw.Images {
		if img.Ratio == "16_9" && img.Width > bestWidth {
			best = img.URL
			bestWidth = img.Width
		}
	}
	if best == "" && len(raw.Images) > 0 {
		best = raw.Images[0].URL
	}
	return best
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
