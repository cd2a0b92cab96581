package reputation

import (
	"context"
	"log/slog"
	"time"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/report"
)

// activeScanLimit bounds how many recent reports the worker scans to
// find raiders worth snapshotting.
const activeScanLimit = 500

// Worker periodically snapshots reputation scores for recently
// reported raiders.
type Worker struct {
	source   ReportSource
	store    SnapshotStore
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewWorker creates a reputation snapshot worker.
// interval is typically 1 hour in production, 10 seconds in demo mode.
func NewWorker(source ReportSource, store SnapshotStore, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		source:   source,
		store:    store,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the snapshot loop. Call in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on start
	w.snapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.snapshot(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *Worker) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
}

func (w *Worker) snapshot(ctx context.Context) {
	recent, err := w.source.ListRecent(ctx, activeScanLimit)
	if err != nil {
		w.logger.Warn("reputation snapshot failed to scan recent reports", "error", err)
		return
	}
	if len(recent) == 0 {
		return
	}

	seen := make(map[string]bool)
	now := time.Now().UTC()
	var snaps []*Snapshot
	for _, rr := range recent {
		if seen[rr.Tag] {
			continue
		}
		seen[rr.Tag] = true

		raider, err := w.source.GetRaiderByTag(ctx, identity.Tag(rr.Tag))
		if err != nil {
			continue
		}
		reports, err := w.source.ListReports(ctx, report.Query{RaiderID: raider.ID})
		if err != nil {
			continue
		}

		score := Score(reports, now)
		snaps = append(snaps, &Snapshot{
			Tag:         raider.Tag,
			Score:       Round2(score),
			Tier:        TierFor(score),
			ReportCount: len(reports),
			CreatedAt:   now,
		})
	}

	if len(snaps) == 0 {
		return
	}
	if err := w.store.SaveBatch(ctx, snaps); err != nil {
		w.logger.Warn("reputation snapshot failed to save", "error", err, "count", len(snaps))
		return
	}

	w.logger.Info("reputation snapshot completed", "raiders", len(snaps))
}
