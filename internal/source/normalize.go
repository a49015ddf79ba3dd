// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package source

import (
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/nearlive/nearlive/internal/logging"
	"github.com/nearlive/nearlive/internal/metrics"
	"github.com/nearlive/nearlive/internal/models"
)

// maxDescriptionLen caps normalized descriptions; provider descriptions can
// run to tens of kilobytes of marketing copy.
const maxDescriptionLen = 500

// stripHTML removes tags and unescapes entities, collapsing the result's
// whitespace. Good enough for provider descriptions; not a sanitizer.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			// Tag boundaries separate words ("<p>foo</p><p>bar</p>").
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	return collapseSpaces(html.UnescapeString(b.String()))
}

// collapseSpaces trims and squeezes runs of whitespace to single spaces.
func collapseSpaces(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// truncate limits s to n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// normalizeDescription strips markup and bounds length.
func normalizeDescription(s string) string {
	return truncate(stripHTML(s), maxDescriptionLen)
}

// parseUTC parses a provider timestamp into UTC, trying the given layouts
// in order. Returns nil when nothing matches.
func parseUTC(value string, layouts ...string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// parseCoord converts a provider's stringly-typed coordinate to a float
// pointer, nil on absence or garbage.
func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

// categoryFor maps a provider taxonomy label through the adapter's table,
// falling back to CategoryOther. Lookup is case-insensitive.
func categoryFor(table map[string]string, label string) string {
	if c, ok := table[strings.ToLower(strings.TrimSpace(label))]; ok {
		return c
	}
	return models.CategoryOther
}

// skipRecord drops a provider record that lacks a stable identity.
// Skips are logged and counted, never surfaced as errors.
func skipRecord(src models.Source, reason string) {
	metrics.ProviderRecordsSkipped.WithLabelValues(string(src)).Inc()
	logging.Debug().
		Str("source", string(src)).
		Str("reason", reason).
		Msg("skipping provider record")
}

// countFetched records how many canonical events one page produced.
func countFetched(src models.Source, n int) {
	metrics.ProviderEventsFetched.WithLabelValues(string(src)).Add(float64(n))
}
