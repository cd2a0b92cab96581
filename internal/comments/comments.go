// Package comments is the community comment ledger for raiders.
//
// Comments ride on the report store as comment-sentinel rows, so they
// share its persistence and vote counters without their own table.
// Votes are honor-system: the client reports its previous vote and the
// server applies the matching counter transition, flooring at zero.
package comments

import (
	"context"
	"errors"
	"time"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/idgen"
	"github.com/raidwatch/raidwatch/internal/logging"
	"github.com/raidwatch/raidwatch/internal/metrics"
	"github.com/raidwatch/raidwatch/internal/report"
	"github.com/raidwatch/raidwatch/internal/validation"
)

var (
	ErrEmptyComment = errors.New("comment body is empty")
	ErrInvalidVote  = errors.New("vote must be up or down")
	ErrInvalidSort  = errors.New("sort must be recent or top")
)

// Limit clamps for comment listings.
const (
	DefaultLimit = 200
	MaxLimit     = 500
)

// Direction is a vote direction. The empty value means no prior vote.
type Direction string

const (
	VoteNone Direction = ""
	VoteUp   Direction = "up"
	VoteDown Direction = "down"
)

// ParseVote validates a submitted vote direction.
func ParseVote(s string) (Direction, error) {
	switch Direction(s) {
	case VoteUp, VoteDown:
		return Direction(s), nil
	default:
		return VoteNone, ErrInvalidVote
	}
}

// ParsePrevVote validates the client-reported previous vote. Both the
// empty string and the literal "none" mean the client has not voted on
// this comment before.
func ParsePrevVote(s string) (Direction, error) {
	switch Direction(s) {
	case VoteNone, Direction("none"):
		return VoteNone, nil
	case VoteUp, VoteDown:
		return Direction(s), nil
	default:
		return VoteNone, ErrInvalidVote
	}
}

// ParseSort validates a listing sort. Empty defaults to recent.
func ParseSort(s string) (report.Sort, error) {
	switch s {
	case "", string(report.SortRecent):
		return report.SortRecent, nil
	case string(report.SortTop):
		return report.SortTop, nil
	default:
		return "", ErrInvalidSort
	}
}

// ClampLimit normalizes the requested comment count.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Comment is the public view of a comment row. Score is derived from
// the vote pair and never stored.
type Comment struct {
	ID            string    `json:"id"`
	Body          string    `json:"body"`
	ReporterLabel string    `json:"reporterLabel,omitempty"`
	Upvotes       int       `json:"upvotes"`
	Downvotes     int       `json:"downvotes"`
	Score         int       `json:"score"`
	CreatedAt     time.Time `json:"createdAt"`
}

func fromReport(r *report.Report) *Comment {
	return &Comment{
		ID:            r.ID,
		Body:          r.Comments,
		ReporterLabel: r.ReporterLabel,
		Upvotes:       r.Upvotes,
		Downvotes:     r.Downvotes,
		Score:         r.Upvotes - r.Downvotes,
		CreatedAt:     r.CreatedAt,
	}
}

// EventEmitter broadcasts comment events to realtime subscribers.
type EventEmitter interface {
	EmitComment(data map[string]interface{})
}

// Service implements the comment ledger on top of the report store.
type Service struct {
	store  report.Store
	events EventEmitter
}

// NewService creates a comment service.
func NewService(store report.Store) *Service {
	return &Service{store: store}
}

// WithEvents adds a realtime event emitter.
func (s *Service) WithEvents(events EventEmitter) *Service {
	s.events = events
	return s
}

// Add posts a comment against a raider. Unlike report intake, comments
// never create the raider row: commenting on an identity nobody has
// reported fails with report.ErrRaiderNotFound.
func (s *Service) Add(ctx context.Context, rawTag, body, reporterLabel string) (*Comment, error) {
	tag, err := identity.NormalizeTag(rawTag)
	if err != nil {
		return nil, err
	}

	body = validation.SanitizeString(body, validation.MaxCommentLength)
	if body == "" {
		return nil, ErrEmptyComment
	}

	raider, err := s.store.GetRaiderByTag(ctx, tag)
	if err != nil {
		return nil, err
	}

	r := &report.Report{
		ID:            idgen.WithPrefix("cmt_"),
		RaiderID:      raider.ID,
		Reason:        report.ReasonComment,
		Comments:      body,
		ReporterLabel: validation.SanitizeString(reporterLabel, validation.MaxLabelLength),
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, err
	}

	metrics.CommentsPostedTotal.Inc()
	logging.L(ctx).Info("comment posted", "comment_id", r.ID, "tag", tag)

	if s.events != nil {
		s.events.EmitComment(map[string]interface{}{
			"commentId": r.ID,
			"tag":       tag.String(),
			"slug":      tag.Slug(),
		})
	}

	return fromReport(r), nil
}

// List returns a raider's comments. Sort top orders by raw upvotes
// with newest-first tiebreak; recent is newest first.
func (s *Service) List(ctx context.Context, tag identity.Tag, sort report.Sort, limit int) ([]*Comment, error) {
	raider, err := s.store.GetRaiderByTag(ctx, tag)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.ListReports(ctx, report.Query{
		RaiderID:     raider.ID,
		OnlyComments: true,
		Sort:         sort,
		Limit:        ClampLimit(limit),
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromReport(r))
	}
	return out, nil
}

// Vote applies one voter's transition on a comment and returns the
// resulting counters. The same vote twice is a no-op; switching sides
// moves one count from the old side to the new.
func (s *Service) Vote(ctx context.Context, commentID string, vote, prev Direction) (upvotes, downvotes int, err error) {
	if vote != VoteUp && vote != VoteDown {
		return 0, 0, ErrInvalidVote
	}

	if prev == vote {
		// Idempotent re-click: report current counts without mutating
		c, err := s.store.GetComment(ctx, commentID)
		if err != nil {
			return 0, 0, err
		}
		return c.Upvotes, c.Downvotes, nil
	}

	var upDelta, downDelta int
	if vote == VoteUp {
		upDelta = 1
	} else {
		downDelta = 1
	}
	switch prev {
	case VoteUp:
		upDelta--
	case VoteDown:
		downDelta--
	}

	upvotes, downvotes, err = s.store.ApplyVoteDelta(ctx, commentID, upDelta, downDelta)
	if err != nil {
		return 0, 0, err
	}

	metrics.VotesTotal.WithLabelValues(string(vote)).Inc()
	return upvotes, downvotes, nil
}
