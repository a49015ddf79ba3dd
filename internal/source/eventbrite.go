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

const eventbriteDefaultBaseURL = "https://www.eventbriteapi.com"

// eventbriteCategories maps Eventbrite numeric category IDs onto the
// normalized vocabulary. IDs are stable and documented by the provider.
var eventbriteCategories = map[string]string{
	"103": models.CategoryMusic,
	"104": models.CategoryFilm,
	"105": models.CategoryArts,
	"107": models.CategoryWellness,
	"108": models.CategorySports,
	"110": models.CategoryFoodDrink,
	"111": models.CategoryCommunity, // charity & causes
	"113": models.CategoryCommunity,
	"115": models.CategoryFamily,
	"101": models.CategoryBusiness,
	"116": models.CategoryNightlife, // holiday/seasonal parties
}

// Eventbrite adapts the Eventbrite /v3/events/search API.
type Eventbrite struct {
	cfg    Config
	client *http.Client
}

// NewEventbrite creates the adapter. cfg.APIKey is the private OAuth token
// sent as a bearer credential.
func NewEventbrite(cfg Config) *Eventbrite {
	if cfg.BaseURL == "" {
		cfg.BaseURL = eventbriteDefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &Eventbrite{cfg: cfg, client: cfg.httpClient()}
}

// Name implements Source.
func (e *Eventbrite) Name() models.Source {
	return models.SourceEventbrite
}

type ebResponse struct {
	Events     []ebEvent `json:"events"`
	Pagination struct {
		ObjectCount  int  `json:"object_count"`
		PageNumber   int  `json:"page_number"`
		PageSize     int  `json:"page_size"`
		PageCount    int  `json:"page_count"`
		HasMoreItems bool `json:"has_more_items"`
	} `json:"pagination"`
}

type ebEvent struct {
	ID   string `json:"id"`
	Name struct {
		Text string `json:"text"`
	} `json:"name"`
	Description struct {
		Text string `json:"text"`
		HTML string `json:"html"`
	} `json:"description"`
	URL   string `json:"url"`
	Start struct {
		UTC      string `json:"utc"`
		Timezone string `json:"timezone"`
	} `json:"start"`
	End struct {
		UTC string `json:"utc"`
	} `json:"end"`
	IsFree bool `json:"is_free"`
	Logo   struct {
		Original struct {
			URL string `json:"url"`
		} `json:"original"`
	} `json:"logo"`
	CategoryID string `json:"category_id"`
	Venue      struct {
		Name    string `json:"name"`
		Address struct {
			LocalizedDisplay string `json:"localized_address_display"`
		} `json:"address"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"venue"`
	TicketAvailability struct {
		IsSoldOut bool `json:"is_sold_out"`
	} `json:"ticket_availability"`
}

// FetchPage implements Source. Eventbrite pages are 1-based on the wire.
func (e *Eventbrite) FetchPage(ctx context.Context, q models.Query, page int) (*Page, error) {
	params := url.Values{}
	params.Set("location.latitude", fmt.Sprintf("%.4f", q.Latitude))
	params.Set("location.longitude", fmt.Sprintf("%.4f", q.Longitude))
	params.Set("location.within", fmt.Sprintf("%dkm", int(q.RadiusKm)))
	params.Set("expand", "venue,ticket_availability")
	params.Set("page", strconv.Itoa(page))
	params.Set("sort_by", "date")

	endpoint := e.cfg.BaseURL + "/v3/events/search/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("eventbrite: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eventbrite: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &resilience.ProviderError{
			Source:     string(models.SourceEventbrite),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var payload ebResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("eventbrite: decode response: %w", err)
	}

	events := make([]models.CanonicalEvent, 0, len(payload.Events))
	for i := range payload.Events {
		if ev, ok := e.normalize(&payload.Events[i]); ok {
			events = append(events, ev)
		}
	}
	countFetched(models.SourceEventbrite, len(events))

	p := &Page{Events: events, TotalAvailable: payload.Pagination.ObjectCount}
	if payload.Pagination.HasMoreItems {
		next := page + 1
		p.NextPage = &next
	}
	return p, nil
}

func (e *Eventbrite) normalize(raw *ebEvent) (models.CanonicalEvent, bool) {
	if raw.ID == "" {
		skipRecord(models.SourceEventbrite, "missing event id")
		return models.CanonicalEvent{}, false
	}

	description := raw.Description.Text
	if description == "" {
		description = raw.Description.HTML
	}

	ev := models.CanonicalEvent{
		ID:          models.EventID(models.SourceEventbrite, raw.ID),
		Source:      models.SourceEventbrite,
		Name:        collapseSpaces(raw.Name.Text),
		Description: normalizeDescription(description),
		TicketURL:   raw.URL,
		ImageURL:    raw.Logo.Original.URL,
		IsSoldOut:   raw.TicketAvailability.IsSoldOut,
	}

	ev.DateTime = models.EventDateTime{
		Start:    parseUTC(raw.Start.UTC, time.RFC3339),
		End:      parseUTC(raw.End.UTC, time.RFC3339),
		Timezone: raw.Start.Timezone,
	}

	// is_free is authoritative; paid events carry no price in the search
	// payload, so MinPrice stays nil (unknown) unless the event is free.
	if raw.IsFree {
		zero := 0.0
		ev.Pricing = models.Pricing{IsFree: true, MinPrice: &zero, MaxPrice: &zero}
	}

	if raw.CategoryID != "" {
		ev.Categories = appendUnique(ev.Categories, categoryFor(eventbriteCategories, raw.CategoryID))
	}

	ev.Venue = models.Venue{
		Name:      raw.Venue.Name,
		Latitude:  parseCoord(raw.Venue.Latitude),
		Longitude: parseCoord(raw.Venue.Longitude),
		Address:   raw.Venue.Address.LocalizedDisplay,
	}

	return ev, true
}
