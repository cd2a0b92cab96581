package report

import (
	"context"
	"fmt"

	"github.com/raidwatch/raidwatch/internal/evidence"
	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/logging"
	"github.com/raidwatch/raidwatch/internal/metrics"
	"github.com/raidwatch/raidwatch/internal/traces"
	"github.com/raidwatch/raidwatch/internal/validation"
)

// EventEmitter broadcasts report events to realtime subscribers.
type EventEmitter interface {
	EmitReport(data map[string]interface{})
}

// Attachment is one uploaded evidence file, held in memory through the
// intake request.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Submission is a validated-on-entry report intake request.
type Submission struct {
	Tag           string // raw user input, canonicalized by Submit
	Reason        string
	Comments      string
	ReporterLabel string
	Attachments   []Attachment
}

// Service implements report intake on top of a Store and an evidence
// blob store.
type Service struct {
	store          Store
	evidence       evidence.Store
	events         EventEmitter
	maxAttachments int
}

// NewService creates a report service.
func NewService(store Store, ev evidence.Store, maxAttachments int) *Service {
	return &Service{
		store:          store,
		evidence:       ev,
		maxAttachments: maxAttachments,
	}
}

// WithEvents adds a realtime event emitter.
func (s *Service) WithEvents(events EventEmitter) *Service {
	s.events = events
	return s
}

// Store exposes the underlying store for read-side adapters.
func (s *Service) Store() Store {
	return s.store
}

// Submit validates and persists a report against a raider, creating
// the raider row on first report. Evidence attachments upload before
// the report row is written; any upload failure aborts the whole
// submission so a report never references half-attached evidence.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Report, *Raider, error) {
	tag, err := identity.NormalizeTag(sub.Tag)
	if err != nil {
		return nil, nil, err
	}
	reason, err := ParseReason(sub.Reason)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := traces.StartSpan(ctx, "report.submit",
		traces.RaiderTag(tag.String()),
		traces.ReportReason(string(reason)),
	)
	defer span.End()

	if len(sub.Attachments) > s.maxAttachments {
		return nil, nil, fmt.Errorf("%w: at most %d evidence files per report",
			evidence.ErrUploadFailed, s.maxAttachments)
	}
	for _, a := range sub.Attachments {
		if !evidence.AllowedContentType(a.ContentType) {
			return nil, nil, fmt.Errorf("%w: unsupported content type %q",
				evidence.ErrUploadFailed, a.ContentType)
		}
		if len(a.Data) > evidence.MaxAttachmentBytes {
			return nil, nil, fmt.Errorf("%w: attachment %q too large",
				evidence.ErrUploadFailed, a.Filename)
		}
	}

	var urls []string
	for _, a := range sub.Attachments {
		url, err := s.evidence.Put(ctx, a.Filename, a.ContentType, a.Data)
		if err != nil {
			metrics.EvidenceUploadsTotal.WithLabelValues("error").Inc()
			logging.L(ctx).Error("evidence upload failed, aborting submission",
				"tag", tag, "filename", a.Filename, "error", err)
			return nil, nil, err
		}
		metrics.EvidenceUploadsTotal.WithLabelValues("ok").Inc()
		urls = append(urls, url)
	}

	raider, err := s.store.UpsertRaider(ctx, tag, displayTag(sub.Tag))
	if err != nil {
		return nil, nil, err
	}

	r := &Report{
		RaiderID:      raider.ID,
		Reason:        reason,
		Comments:      validation.SanitizeString(sub.Comments, validation.MaxCommentLength),
		EvidenceURLs:  urls,
		ReporterLabel: validation.SanitizeString(sub.ReporterLabel, validation.MaxLabelLength),
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, nil, err
	}

	metrics.ReportsSubmittedTotal.WithLabelValues(string(reason)).Inc()
	span.SetAttributes(traces.ReportID(r.ID))
	logging.L(ctx).Info("report filed",
		"report_id", r.ID, "tag", tag, "reason", reason, "evidence", len(urls))

	if s.events != nil {
		s.events.EmitReport(map[string]interface{}{
			"reportId": r.ID,
			"tag":      tag.String(),
			"slug":     tag.Slug(),
			"reason":   string(reason),
		})
	}

	return r, raider, nil
}

// Lookup resolves a slug to its raider row.
func (s *Service) Lookup(ctx context.Context, tag identity.Tag) (*Raider, error) {
	return s.store.GetRaiderByTag(ctx, tag)
}

// displayTag trims the raw input without lowercasing, preserving the
// casing the first reporter typed.
func displayTag(raw string) string {
	return validation.SanitizeString(raw, validation.MaxLabelLength)
}
