package report

import (
	"context"
	"testing"
	"time"

	"github.com/raidwatch/raidwatch/internal/identity"
)

func TestParseReason(t *testing.T) {
	for _, r := range ReportableReasons() {
		got, err := ParseReason(string(r))
		if err != nil {
			t.Errorf("ParseReason(%q) unexpected error: %v", r, err)
		}
		if got != r {
			t.Errorf("ParseReason(%q) = %q", r, got)
		}
	}

	// The comment sentinel is not submittable as a report reason.
	if _, err := ParseReason(string(ReasonComment)); err != ErrUnknownReason {
		t.Errorf("ParseReason(comment) expected ErrUnknownReason, got %v", err)
	}
	if _, err := ParseReason("teamkilling"); err != ErrUnknownReason {
		t.Errorf("ParseReason(unknown) expected ErrUnknownReason, got %v", err)
	}
	if _, err := ParseReason(""); err != ErrUnknownReason {
		t.Errorf("ParseReason(empty) expected ErrUnknownReason, got %v", err)
	}
}

func TestReportableReasons(t *testing.T) {
	reasons := ReportableReasons()
	if len(reasons) != 6 {
		t.Fatalf("expected 6 reportable reasons, got %d", len(reasons))
	}
	for _, r := range reasons {
		if r == ReasonComment {
			t.Error("comment sentinel must not be reportable")
		}
		info, ok := Info(r)
		if !ok {
			t.Errorf("missing info for %q", r)
		}
		if info.Label == "" || info.Color == "" {
			t.Errorf("incomplete info for %q: %+v", r, info)
		}
	}
}

func mustTag(t *testing.T, raw string) identity.Tag {
	t.Helper()
	tag, err := identity.NormalizeTag(raw)
	if err != nil {
		t.Fatalf("NormalizeTag(%q): %v", raw, err)
	}
	return tag
}

func TestMemoryStore_UpsertRaider(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	r1, err := store.UpsertRaider(ctx, mustTag(t, "Ghost#0420"), "Ghost#0420")
	if err != nil {
		t.Fatalf("UpsertRaider: %v", err)
	}
	r2, err := store.UpsertRaider(ctx, mustTag(t, "GHOST#0420"), "GHOST#0420")
	if err != nil {
		t.Fatalf("UpsertRaider second: %v", err)
	}

	if r1.ID != r2.ID {
		t.Errorf("same canonical tag should upsert to one raider: %d vs %d", r1.ID, r2.ID)
	}
	// Display tag keeps the first-submitted casing
	if r2.DisplayTag != "Ghost#0420" {
		t.Errorf("display tag overwritten: %q", r2.DisplayTag)
	}

	got, err := store.GetRaiderByTag(ctx, mustTag(t, "ghost#0420"))
	if err != nil {
		t.Fatalf("GetRaiderByTag: %v", err)
	}
	if got.ID != r1.ID {
		t.Errorf("lookup mismatch: %d vs %d", got.ID, r1.ID)
	}

	if _, err := store.GetRaiderByTag(ctx, mustTag(t, "nobody#0001")); err != ErrRaiderNotFound {
		t.Errorf("expected ErrRaiderNotFound, got %v", err)
	}
}

func seedReport(t *testing.T, store *MemoryStore, raiderID int64, reason Reason, age time.Duration) *Report {
	t.Helper()
	r := &Report{
		RaiderID:  raiderID,
		Reason:    reason,
		CreatedAt: time.Now().UTC().Add(-age),
	}
	if err := store.CreateReport(context.Background(), r); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	return r
}

func TestMemoryStore_ListReports_ExcludesComments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	raider, _ := store.UpsertRaider(ctx, mustTag(t, "ghost#0420"), "ghost#0420")

	seedReport(t, store, raider.ID, ReasonBetrayal, time.Hour)
	seedReport(t, store, raider.ID, ReasonComment, time.Minute)
	seedReport(t, store, raider.ID, ReasonRatTactics, 2*time.Hour)

	reports, err := store.ListReports(ctx, Query{RaiderID: raider.ID})
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 non-comment reports, got %d", len(reports))
	}
	for _, r := range reports {
		if r.Reason == ReasonComment {
			t.Error("comment row leaked into report listing")
		}
	}

	comments, err := store.ListReports(ctx, Query{RaiderID: raider.ID, OnlyComments: true})
	if err != nil {
		t.Fatalf("ListReports comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Reason != ReasonComment {
		t.Fatalf("expected only the comment row, got %+v", comments)
	}
}

func TestMemoryStore_ListReports_Window(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	raider, _ := store.UpsertRaider(ctx, mustTag(t, "ghost#0420"), "ghost#0420")

	old := seedReport(t, store, raider.ID, ReasonBetrayal, 40*24*time.Hour)
	recent := seedReport(t, store, raider.ID, ReasonBetrayal, time.Hour)

	from := time.Now().UTC().Add(-7 * 24 * time.Hour)
	reports, err := store.ListReports(ctx, Query{RaiderID: raider.ID, From: from})
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != recent.ID {
		t.Fatalf("window filter failed: got %d reports", len(reports))
	}

	to := time.Now().UTC().Add(-30 * 24 * time.Hour)
	reports, err = store.ListReports(ctx, Query{RaiderID: raider.ID, To: to})
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != old.ID {
		t.Fatalf("upper bound filter failed: got %d reports", len(reports))
	}
}

func TestMemoryStore_ListReports_TopSort(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	raider, _ := store.UpsertRaider(ctx, mustTag(t, "ghost#0420"), "ghost#0420")

	low := seedReport(t, store, raider.ID, ReasonComment, time.Minute)
	high := seedReport(t, store, raider.ID, ReasonComment, time.Hour)
	if _, _, err := store.ApplyVoteDelta(ctx, high.ID, 5, 0); err != nil {
		t.Fatalf("ApplyVoteDelta: %v", err)
	}

	comments, err := store.ListReports(ctx, Query{
		RaiderID: raider.ID, OnlyComments: true, Sort: SortTop,
	})
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].ID != high.ID || comments[1].ID != low.ID {
		t.Error("top sort should order by upvotes descending")
	}
}

func TestMemoryStore_ListRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a, _ := store.UpsertRaider(ctx, mustTag(t, "alpha#0001"), "Alpha#0001")
	b, _ := store.UpsertRaider(ctx, mustTag(t, "bravo#0002"), "Bravo#0002")

	seedReport(t, store, a.ID, ReasonBetrayal, 3*time.Hour)
	seedReport(t, store, b.ID, ReasonCheating, time.Hour)
	seedReport(t, store, a.ID, ReasonComment, time.Minute) // excluded

	recent, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent reports, got %d", len(recent))
	}
	if recent[0].Tag != "bravo#0002" {
		t.Errorf("expected newest first, got %q", recent[0].Tag)
	}
	if recent[0].DisplayTag != "Bravo#0002" {
		t.Errorf("display tag missing from scan row: %q", recent[0].DisplayTag)
	}

	capped, err := store.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent capped: %v", err)
	}
	if len(capped) != 1 {
		t.Fatalf("limit not applied: got %d", len(capped))
	}
}

func TestMemoryStore_VoteDelta(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	raider, _ := store.UpsertRaider(ctx, mustTag(t, "ghost#0420"), "ghost#0420")
	c := seedReport(t, store, raider.ID, ReasonComment, time.Minute)

	up, down, err := store.ApplyVoteDelta(ctx, c.ID, 1, 0)
	if err != nil || up != 1 || down != 0 {
		t.Fatalf("first upvote: up=%d down=%d err=%v", up, down, err)
	}

	// Switching vote: remove the up, add a down
	up, down, err = store.ApplyVoteDelta(ctx, c.ID, -1, 1)
	if err != nil || up != 0 || down != 1 {
		t.Fatalf("switch: up=%d down=%d err=%v", up, down, err)
	}

	// Counters never go negative
	up, down, err = store.ApplyVoteDelta(ctx, c.ID, -5, -5)
	if err != nil || up != 0 || down != 0 {
		t.Fatalf("floor: up=%d down=%d err=%v", up, down, err)
	}

	// Non-comment rows are not votable
	r := seedReport(t, store, raider.ID, ReasonBetrayal, time.Minute)
	if _, _, err := store.ApplyVoteDelta(ctx, r.ID, 1, 0); err != ErrReportNotFound {
		t.Errorf("expected ErrReportNotFound for non-comment, got %v", err)
	}
	if _, _, err := store.ApplyVoteDelta(ctx, "cmt_missing", 1, 0); err != ErrReportNotFound {
		t.Errorf("expected ErrReportNotFound for missing id, got %v", err)
	}
}

func TestMemoryStore_GetComment(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	raider, _ := store.UpsertRaider(ctx, mustTag(t, "ghost#0420"), "ghost#0420")

	c := seedReport(t, store, raider.ID, ReasonComment, time.Minute)
	r := seedReport(t, store, raider.ID, ReasonBetrayal, time.Minute)

	got, err := store.GetComment(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetComment: %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("wrong comment returned: %q", got.ID)
	}

	if _, err := store.GetComment(ctx, r.ID); err != ErrReportNotFound {
		t.Errorf("report row must not resolve as comment, got %v", err)
	}
}
