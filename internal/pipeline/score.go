// NearLive - Local Event Discovery and Aggregation
// Copyright 2026 NearLive Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nearlive/nearlive

package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/nearlive/nearlive/internal/models"
)

// Relevance scoring is additive: each factor contributes an independent
// number of points and the total orders the recommended sort. Factors are
// tuned so time proximity dominates, distance matters, and metadata
// completeness breaks ties.
const (
	scoreTimeWithin6h  = 100.0
	scoreTimeWithin24h = 80.0
	scoreTimeWithin3d  = 60.0
	scoreTimeWithin1w  = 40.0
	scoreTimeWithin2w  = 25.0
	scoreTimeFurther   = 10.0
	scoreTimeTBA       = 10.0

	scoreDistanceMax     = 50.0
	scoreDistanceUnknown = 10.0

	scoreFreeBonus      = 15.0
	scoreSoldOutPenalty = -25.0
	scoreImageBonus     = 10.0

	scoreDescriptionCap = 10.0
	scorePopularityCap  = 25.0
)

// sourceTrust is the fixed per-provider tiebreak. Values are small enough
// that trust never outweighs a real signal.
func sourceTrust(s models.Source) float64 {
	return float64(len(models.SourcePriority) - models.PriorityRank(s))
}

// scoreEvent computes the relevance score for one event at query time.
func scoreEvent(ev *models.CanonicalEvent, radiusKm float64, now time.Time) float64 {
	score := timeProximityScore(ev, now)
	score += distanceScore(ev, radiusKm)

	if ev.Pricing.IsFree {
		score += scoreFreeBonus
	}
	if ev.IsSoldOut {
		score += scoreSoldOutPenalty
	}
	if ev.ImageURL != "" {
		score += scoreImageBonus
	}
	score += math.Min(float64(len(ev.Description))/50.0, scoreDescriptionCap)

	if ev.GoingCount > 0 {
		score += math.Min(8*math.Log10(float64(ev.GoingCount)+1), scorePopularityCap)
	}

	score += sourceTrust(ev.Source)
	return score
}

// timeProximityScore rewards events starting soon. Events with an unknown
// or TBA start get a flat low score; an already-started event that survived
// the staleness filter counts as imminent.
func timeProximityScore(ev *models.CanonicalEvent, now time.Time) float64 {
	if ev.DateTime.Start == nil || ev.DateTime.IsTimeTBA {
		return scoreTimeTBA
	}

	until := ev.DateTime.Start.Sub(now)
	switch {
	case until <= 6*time.Hour:
		return scoreTimeWithin6h
	case until <= 24*time.Hour:
		return scoreTimeWithin24h
	case until <= 3*24*time.Hour:
		return scoreTimeWithin3d
	case until <= 7*24*time.Hour:
		return scoreTimeWithin1w
	case until <= 14*24*time.Hour:
		return scoreTimeWithin2w
	default:
		return scoreTimeFurther
	}
}

// distanceScore falls off linearly from the full bonus at zero distance to
// nothing at the query radius.
func distanceScore(ev *models.CanonicalEvent, radiusKm float64) float64 {
	if ev.DistanceKm == nil || radiusKm <= 0 {
		return scoreDistanceUnknown
	}
	frac := 1 - *ev.DistanceKm/radiusKm
	if frac < 0 {
		frac = 0
	}
	return scoreDistanceMax * frac
}

// sortEvents orders events in place according to the requested mode.
func sortEvents(events []models.CanonicalEvent, mode models.SortMode) {
	switch mode {
	case models.SortSoonest:
		sort.SliceStable(events, func(i, j int) bool {
			return startBefore(&events[i], &events[j])
		})
	case models.SortNearest:
		sort.SliceStable(events, func(i, j int) bool {
			di, dj := events[i].DistanceKm, events[j].DistanceKm
			switch {
			case di == nil && dj == nil:
				return false
			case di == nil:
				return false // unknown distance sorts last
			case dj == nil:
				return true
			default:
				return *di < *dj
			}
		})
	case models.SortPopular:
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].GoingCount != events[j].GoingCount {
				return events[i].GoingCount > events[j].GoingCount
			}
			return startBefore(&events[i], &events[j])
		})
	default: // recommended
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].Score != events[j].Score {
				return events[i].Score > events[j].Score
			}
			return startBefore(&events[i], &events[j])
		})
	}
}

// startBefore orders by start time ascending with undated events last.
func startBefore(a, b *models.CanonicalEvent) bool {
	sa, sb := a.DateTime.Start, b.DateTime.Start
	switch {
	case sa == nil && sb == nil:
		return false
	case sa == nil:
		return false
	case sb == nil:
		return true
	default:
		return sa.Before(*sb)
	}
}
