// Package leaderboard ranks the most-reported raiders over a bounded
// sample of recent activity.
//
// The board is intentionally approximate: it scans the most recent
// reports rather than the full history, so it answers "who is being
// reported right now" and stays cheap regardless of table size.
package leaderboard

import (
	"time"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/report"
)

// ScanLimit bounds the recent-report sample the board is built from.
const ScanLimit = 500

// Limit clamps for the entries query parameter.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Entry is one leaderboard row.
type Entry struct {
	Rank         int           `json:"rank"`
	Tag          string        `json:"tag"`
	DisplayTag   string        `json:"displayTag"`
	Slug         string        `json:"slug"`
	Count        int           `json:"count"`
	LastReason   report.Reason `json:"lastReason"`
	LastReported time.Time     `json:"lastReportedAt"`
}

// ClampLimit normalizes the requested entry count.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Build groups a newest-first recent-report sample by raider and
// returns the top entries by count. Ties keep the order raiders first
// appeared in the sample, so more recently reported raiders win.
func Build(recent []*report.RecentReport, limit int) []*Entry {
	limit = ClampLimit(limit)

	byTag := make(map[string]*Entry)
	var order []*Entry
	for _, rr := range recent {
		e, ok := byTag[rr.Tag]
		if !ok {
			e = &Entry{
				Tag:          rr.Tag,
				DisplayTag:   rr.DisplayTag,
				Slug:         identity.Tag(rr.Tag).Slug(),
				LastReason:   rr.Reason,
				LastReported: rr.CreatedAt,
			}
			byTag[rr.Tag] = e
			order = append(order, e)
		}
		e.Count++
		if rr.CreatedAt.After(e.LastReported) {
			e.LastReason = rr.Reason
			e.LastReported = rr.CreatedAt
		}
	}

	// Stable sort preserves first-seen order between equal counts
	sortByCountDesc(order)

	if len(order) > limit {
		order = order[:limit]
	}
	for i, e := range order {
		e.Rank = i + 1
	}
	return order
}

func sortByCountDesc(entries []*Entry) {
	// Insertion sort keeps stability and the slices are tiny (at most
	// one entry per raider in a 500-row sample)
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Count > entries[j-1].Count; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
