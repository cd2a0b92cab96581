package reputation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/report"
)

func seedWorkerStore(t *testing.T) *report.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := report.NewMemoryStore()

	for _, tag := range []string{"alpha#0001", "bravo#0002"} {
		raider, err := store.UpsertRaider(ctx, identity.Tag(tag), tag)
		if err != nil {
			t.Fatalf("UpsertRaider: %v", err)
		}
		if err := store.CreateReport(ctx, &report.Report{
			RaiderID:  raider.ID,
			Reason:    report.ReasonBetrayal,
			CreatedAt: time.Now().UTC().Add(-time.Hour),
		}); err != nil {
			t.Fatalf("CreateReport: %v", err)
		}
	}
	return store
}

func TestWorker_Snapshot(t *testing.T) {
	store := seedWorkerStore(t)
	snaps := NewMemorySnapshotStore()
	w := NewWorker(store, snaps, time.Hour, slog.Default())

	w.snapshot(context.Background())

	for _, tag := range []string{"alpha#0001", "bravo#0002"} {
		latest, err := snaps.Latest(context.Background(), tag)
		if err != nil {
			t.Fatalf("Latest(%q): %v", tag, err)
		}
		if latest == nil {
			t.Fatalf("no snapshot for %q", tag)
		}
		if latest.Score != 1.0 || latest.Tier != TierNeutral || latest.ReportCount != 1 {
			t.Errorf("snapshot %q = %+v", tag, latest)
		}
	}
}

func TestWorker_SnapshotEmptyStore(t *testing.T) {
	snaps := NewMemorySnapshotStore()
	w := NewWorker(report.NewMemoryStore(), snaps, time.Hour, slog.Default())

	// Should not panic or write anything
	w.snapshot(context.Background())

	latest, err := snaps.Latest(context.Background(), "anyone#0001")
	if err != nil || latest != nil {
		t.Errorf("expected no snapshots, got %v err=%v", latest, err)
	}
}

func TestWorker_StartStop(t *testing.T) {
	store := seedWorkerStore(t)
	snaps := NewMemorySnapshotStore()
	w := NewWorker(store, snaps, 10*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}

	latest, err := snaps.Latest(context.Background(), "alpha#0001")
	if err != nil || latest == nil {
		t.Errorf("expected snapshots from running worker, got %v err=%v", latest, err)
	}
}
