package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/idgen"
)

// MemoryStore is an in-memory implementation of Store for tests and
// demo mode.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	raiders map[identity.Tag]*Raider
	reports []*Report
	byID    map[string]*Report
	tags    map[int64]identity.Tag // raider id -> canonical tag
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		raiders: make(map[identity.Tag]*Raider),
		byID:    make(map[string]*Report),
		tags:    make(map[int64]identity.Tag),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) UpsertRaider(ctx context.Context, tag identity.Tag, displayTag string) (*Raider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.raiders[tag]; ok {
		cp := *r
		return &cp, nil
	}
	r := &Raider{
		ID:         m.nextID,
		Tag:        string(tag),
		DisplayTag: displayTag,
		CreatedAt:  time.Now().UTC(),
	}
	m.nextID++
	m.raiders[tag] = r
	m.tags[r.ID] = tag
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) GetRaiderByTag(ctx context.Context, tag identity.Tag) (*Raider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.raiders[tag]
	if !ok {
		return nil, ErrRaiderNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) CreateReport(ctx context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = idgen.WithPrefix("rpt_")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	m.reports = append(m.reports, &cp)
	m.byID[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) ListReports(ctx context.Context, q Query) ([]*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Report
	for _, r := range m.reports {
		if r.RaiderID != q.RaiderID {
			continue
		}
		if q.OnlyComments != (r.Reason == ReasonComment) {
			continue
		}
		if !q.From.IsZero() && r.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && r.CreatedAt.After(q.To) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}

	switch q.Sort {
	case SortTop:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Upvotes != out[j].Upvotes {
				return out[i].Upvotes > out[j].Upvotes
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*RecentReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]*Report, 0, len(m.reports))
	for _, r := range m.reports {
		if r.Reason != ReasonComment {
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]*RecentReport, 0, len(recs))
	for _, r := range recs {
		tag := m.tags[r.RaiderID]
		raider := m.raiders[tag]
		if raider == nil {
			continue
		}
		out = append(out, &RecentReport{
			Tag:        raider.Tag,
			DisplayTag: raider.DisplayTag,
			Reason:     r.Reason,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

func (m *MemoryStore) GetComment(ctx context.Context, id string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.byID[id]
	if !ok || r.Reason != ReasonComment {
		return nil, ErrReportNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ApplyVoteDelta(ctx context.Context, id string, upDelta, downDelta int) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.byID[id]
	if !ok || r.Reason != ReasonComment {
		return 0, 0, ErrReportNotFound
	}
	r.Upvotes += upDelta
	if r.Upvotes < 0 {
		r.Upvotes = 0
	}
	r.Downvotes += downDelta
	if r.Downvotes < 0 {
		r.Downvotes = 0
	}
	return r.Upvotes, r.Downvotes, nil
}
