// Package reputation computes a raider's decayed threat score and tier.
//
// Each non-comment report contributes a weight based on its age: recent
// reports count in full, older ones decay in two steps. The tier is a
// banded classification of the full-precision score; only the displayed
// score is rounded.
package reputation

import (
	"math"
	"time"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/report"
)

// Decay weights by report age in whole days.
const (
	weightFresh = 1.0 // age <= 7 days
	weightMid   = 0.5 // 8..30 days
	weightOld   = 0.2 // > 30 days
)

// Tier is the threat classification band.
type Tier string

const (
	TierFriendly   Tier = "Friendly"
	TierNeutral    Tier = "Neutral"
	TierSuspicious Tier = "Suspicious"
	TierHostile    Tier = "Hostile"
	TierKOS        Tier = "KOS"
)

// Weight returns the decay weight of a report created at the given
// time, as seen from now. Zero or future timestamps count as fresh
// rather than dropping the report.
func Weight(createdAt, now time.Time) float64 {
	if createdAt.IsZero() || createdAt.After(now) {
		return weightFresh
	}
	days := int(math.Floor(now.Sub(createdAt).Hours() / 24))
	switch {
	case days <= 7:
		return weightFresh
	case days <= 30:
		return weightMid
	default:
		return weightOld
	}
}

// Score sums the decay weights of the given reports. Comment-sentinel
// rows never reach here; callers list with comments excluded.
func Score(reports []*report.Report, now time.Time) float64 {
	var score float64
	for _, r := range reports {
		score += Weight(r.CreatedAt, now)
	}
	return score
}

// TierFor classifies a full-precision score. Band edges are inclusive
// on the upper side.
func TierFor(score float64) Tier {
	switch {
	case score == 0:
		return TierFriendly
	case score <= 1.5:
		return TierNeutral
	case score <= 3:
		return TierSuspicious
	case score <= 5:
		return TierHostile
	default:
		return TierKOS
	}
}

// Round2 rounds a score for display. Tier classification always uses
// the unrounded value.
func Round2(score float64) float64 {
	return math.Round(score*100) / 100
}

// Summary is the read-side reputation view of one raider.
type Summary struct {
	Tag          string                `json:"tag"`
	DisplayTag   string                `json:"displayTag"`
	Slug         string                `json:"slug"`
	Score        float64               `json:"score"` // rounded to 2 decimals
	Tier         Tier                  `json:"tier"`
	ReportCount  int                   `json:"reportCount"`
	ReasonCounts map[report.Reason]int `json:"reasonCounts"`
	LastReported *time.Time            `json:"lastReportedAt,omitempty"`
}

// Summarize builds a Summary from a raider's non-comment reports.
func Summarize(raider *report.Raider, reports []*report.Report, now time.Time) *Summary {
	score := Score(reports, now)

	counts := make(map[report.Reason]int, len(reports))
	var last *time.Time
	for _, r := range reports {
		counts[r.Reason]++
		if last == nil || r.CreatedAt.After(*last) {
			t := r.CreatedAt
			last = &t
		}
	}

	return &Summary{
		Tag:          raider.Tag,
		DisplayTag:   raider.DisplayTag,
		Slug:         identity.Tag(raider.Tag).Slug(),
		Score:        Round2(score),
		Tier:         TierFor(score),
		ReportCount:  len(reports),
		ReasonCounts: counts,
		LastReported: last,
	}
}
