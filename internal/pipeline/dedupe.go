// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/nearlive/nearlive/internal/metrics"
	"github.com/nearlive/nearlive/internal/models"
)

// DedupConfig tunes cross-provider deduplication.
type DedupConfig struct {
	// FuzzyWordCount is how many significant name words make up the fuzzy
	// key. Zero disables fuzzy matching.
	FuzzyWordCount int

	// MinWordLen filters short words out of the fuzzy key.
	MinWordLen int

	// CoordBucketDegrees is the side length of the location bucket used in
	// dedup keys. 0.01 degrees is roughly one kilometer.
	CoordBucketDegrees float64
}

// DefaultDedupConfig returns production defaults.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		FuzzyWordCount:     3,
		MinWordLen:         3,
		CoordBucketDegrees: 0.01,
	}
}

// fuzzyStopwords are filler words excluded from fuzzy name keys so that
// "The Eras Tour" and "Eras Tour" collide.
var fuzzyStopwords = map[string]struct{}{
	"the": {}, "and": {}, "with": {}, "feat": {}, "featuring": {},
	"live": {}, "presents": {}, "tour": {}, "show": {}, "night": {},
	"event": {}, "2025": {}, "2026": {},
}

// dedupe collapses events that describe the same real-world occurrence.
//
// Two passes over the same principle: an exact key (normalized name +
// calendar day + ~1km location bucket) catches same-name listings; a fuzzy
// key (first significant name words + day) catches cross-provider title
// variants like "Artist - Tour" vs "Artist: The Tour". When keys collide,
// the event from the higher-priority source wins. Output preserves the
// input order of the surviving events.
func dedupe(events []models.CanonicalEvent, cfg DedupConfig) []models.CanonicalEvent {
	kept := make([]models.CanonicalEvent, 0, len(events))
	byPrimary := make(map[string]int)
	byFuzzy := make(map[string]int)
	removed := 0

	for _, ev := range events {
		primary := primaryKey(&ev, cfg)
		fuzzy := fuzzyKey(&ev, cfg)

		idx, dup := byPrimary[primary]
		if !dup && fuzzy != "" {
			idx, dup = byFuzzy[fuzzy]
		}

		if dup {
			removed++
			// Rank against the slot's current occupant, not whichever record
			// first claimed this key: an earlier replacement through the
			// other key may already have promoted the slot.
			if models.PriorityRank(ev.Source) < models.PriorityRank(kept[idx].Source) {
				kept[idx] = ev
				byPrimary[primary] = idx
				if fuzzy != "" {
					byFuzzy[fuzzy] = idx
				}
			}
			continue
		}

		kept = append(kept, ev)
		byPrimary[primary] = len(kept) - 1
		if fuzzy != "" {
			byFuzzy[fuzzy] = len(kept) - 1
		}
	}

	if removed > 0 {
		metrics.PipelineDuplicatesRemoved.Add(float64(removed))
	}
	return kept
}

// primaryKey builds the exact dedup key: normalized name, calendar day, and
// a coordinate bucket. When coordinates are missing the venue name stands in
// for the bucket.
func primaryKey(ev *models.CanonicalEvent, cfg DedupConfig) string {
	return normalizeName(ev.Name) + "|" + dayKey(ev) + "|" + locationKey(ev, cfg)
}

// fuzzyKey builds the loose key from the first significant name words and
// the calendar day. Location is deliberately absent: providers disagree on
// venue coordinates and spelling for the same occurrence, so the loose pass
// matches on name and day alone.
// Empty when the name yields no significant words or fuzzy matching is off.
func fuzzyKey(ev *models.CanonicalEvent, cfg DedupConfig) string {
	if cfg.FuzzyWordCount <= 0 {
		return ""
	}

	words := significantWords(ev.Name, cfg)
	if len(words) == 0 {
		return ""
	}
	if len(words) > cfg.FuzzyWordCount {
		words = words[:cfg.FuzzyWordCount]
	}
	return strings.Join(words, " ") + "|" + dayKey(ev)
}

// normalizeName lowercases and strips everything but letters and digits.
func normalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// significantWords tokenizes a name, dropping punctuation, stopwords, and
// short words.
func significantWords(name string, cfg DedupConfig) []string {
	raw := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := make([]string, 0, len(raw))
	for _, w := range raw {
		if len([]rune(w)) < cfg.MinWordLen {
			continue
		}
		if _, stop := fuzzyStopwords[w]; stop {
			continue
		}
		words = append(words, w)
	}
	return words
}

// dayKey is the event's calendar day in UTC, or a fixed marker when the
// start time is unknown.
func dayKey(ev *models.CanonicalEvent) string {
	if ev.DateTime.Start == nil {
		return "nodate"
	}
	return ev.DateTime.Start.UTC().Format("2006-01-02")
}

// locationKey buckets coordinates to cfg.CoordBucketDegrees; venue name is
// the fallback identity when a provider omits coordinates.
func locationKey(ev *models.CanonicalEvent, cfg DedupConfig) string {
	if ev.Venue.HasCoordinates() {
		bucket := cfg.CoordBucketDegrees
		if bucket <= 0 {
			bucket = DefaultDedupConfig().CoordBucketDegrees
		}
		latB := int(*ev.Venue.Latitude / bucket)
		lngB := int(*ev.Venue.Longitude / bucket)
		return fmt.Sprintf("%d:%d", latB, lngB)
	}
	if v := normalizeName(ev.Venue.Name); v != "" {
		return "v:" + v
	}
	return "nowhere"
}
