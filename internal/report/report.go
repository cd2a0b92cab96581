// Package report holds the core domain model: raiders (reported player
// identities) and the reports filed against them.
//
// Reports are immutable once created except for the vote pair on
// comment-type rows, which only the comment ledger mutates. Free-text
// comments are reports carrying the comment sentinel reason; they feed
// the comment ledger only and never count toward reputation, stats
// buckets, or the leaderboard.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/raidwatch/raidwatch/internal/identity"
)

var (
	ErrRaiderNotFound = errors.New("raider not found")
	ErrReportNotFound = errors.New("report not found")
	ErrUnknownReason  = errors.New("unknown report reason")
)

// Reason categorizes a report.
type Reason string

const (
	ReasonBetrayal      Reason = "betrayal"
	ReasonRatTactics    Reason = "rat-tactics"
	ReasonAFKGriefing   Reason = "afk-griefing"
	ReasonVerbalAbuse   Reason = "verbal-abuse"
	ReasonCheating      Reason = "cheating-exploiting"
	ReasonOffensiveName Reason = "offensive-name"

	// ReasonComment is the sentinel for free-text community comments.
	ReasonComment Reason = "comment"
)

// ReasonInfo carries the display metadata for a reason category.
type ReasonInfo struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// reasonTable is the single source of truth for the reason set and its
// display labels/colors. Order matters: it fixes chart series order.
var reasonTable = []struct {
	Reason Reason
	Info   ReasonInfo
}{
	{ReasonBetrayal, ReasonInfo{Label: "Betrayal", Color: "#e74c3c"}},
	{ReasonRatTactics, ReasonInfo{Label: "Rat Tactics", Color: "#9b59b6"}},
	{ReasonAFKGriefing, ReasonInfo{Label: "AFK / Griefing", Color: "#f39c12"}},
	{ReasonVerbalAbuse, ReasonInfo{Label: "Verbal Abuse", Color: "#e67e22"}},
	{ReasonCheating, ReasonInfo{Label: "Cheating / Exploiting", Color: "#c0392b"}},
	{ReasonOffensiveName, ReasonInfo{Label: "Offensive Name", Color: "#7f8c8d"}},
}

// ReportableReasons returns the fixed reason set, excluding the comment
// sentinel, in display order.
func ReportableReasons() []Reason {
	out := make([]Reason, len(reasonTable))
	for i, r := range reasonTable {
		out[i] = r.Reason
	}
	return out
}

// Info returns display metadata for a reportable reason.
func Info(r Reason) (ReasonInfo, bool) {
	for _, e := range reasonTable {
		if e.Reason == r {
			return e.Info, true
		}
	}
	return ReasonInfo{}, false
}

// ParseReason validates a submitted reason string. The comment sentinel
// is not submittable through report intake.
func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if _, ok := Info(r); !ok {
		return "", ErrUnknownReason
	}
	return r, nil
}

// Raider is a reported player identity, created on first report.
type Raider struct {
	ID         int64     `json:"id"`
	Tag        string    `json:"tag"`        // canonical lowercase
	DisplayTag string    `json:"displayTag"` // as first submitted
	CreatedAt  time.Time `json:"createdAt"`
}

// Report is a single report row. CreatedAt is server-assigned at
// insert time and immutable.
type Report struct {
	ID            string    `json:"id"`
	RaiderID      int64     `json:"raiderId"`
	Reason        Reason    `json:"reason"`
	Comments      string    `json:"comments,omitempty"`
	EvidenceURLs  []string  `json:"evidenceUrls,omitempty"`
	Upvotes       int       `json:"upvotes"`
	Downvotes     int       `json:"downvotes"`
	ReporterLabel string    `json:"reporterLabel,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RecentReport is a leaderboard scan row: one recent non-comment
// report joined with its raider's tags.
type RecentReport struct {
	Tag        string
	DisplayTag string
	Reason     Reason
	CreatedAt  time.Time
}

// Sort orders for report listings.
type Sort string

const (
	SortRecent Sort = "recent" // created_at descending
	SortTop    Sort = "top"    // upvotes descending (comment feeds)
)

// Query filters a report listing for one raider.
type Query struct {
	RaiderID     int64
	OnlyComments bool // comment-sentinel rows only
	From, To     time.Time
	Sort         Sort
	Limit        int
}

// Store is the persistence boundary for raiders and reports. It is an
// injected dependency: PostgresStore in production, MemoryStore in
// tests and demo mode.
type Store interface {
	// UpsertRaider creates or fetches the raider for a canonical tag.
	// The display tag is only set on first insert.
	UpsertRaider(ctx context.Context, tag identity.Tag, displayTag string) (*Raider, error)
	GetRaiderByTag(ctx context.Context, tag identity.Tag) (*Raider, error)

	CreateReport(ctx context.Context, r *Report) error
	// ListReports returns one raider's reports. Comment-sentinel rows
	// are excluded unless OnlyComments is set.
	ListReports(ctx context.Context, q Query) ([]*Report, error)
	// ListRecent returns the most recent non-comment reports across all
	// raiders, newest first, capped at limit.
	ListRecent(ctx context.Context, limit int) ([]*RecentReport, error)

	GetComment(ctx context.Context, id string) (*Report, error)
	// ApplyVoteDelta atomically adjusts a comment's vote counters,
	// flooring each at zero, and returns the resulting pair.
	ApplyVoteDelta(ctx context.Context, id string, upDelta, downDelta int) (upvotes, downvotes int, err error)
}
