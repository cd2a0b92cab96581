// Package stats aggregates a raider's reports into per-day, per-reason
// time series for the report activity charts.
//
// Windows are calendar-aligned in UTC: a span covers whole days, the
// current window always ends today, and older windows step back by
// whole spans. Bucketing uses the report's creation date only; rows
// with reasons outside the known set are dropped from the chart rather
// than failing the request.
package stats

import (
	"errors"
	"strconv"
	"time"

	"github.com/raidwatch/raidwatch/internal/report"
)

var ErrInvalidSpan = errors.New("invalid span: must be week or month")

// Span is the chart window size.
type Span string

const (
	SpanWeek  Span = "week"  // 7 days
	SpanMonth Span = "month" // 30 days
)

// Days returns the number of calendar days the span covers.
func (s Span) Days() int {
	if s == SpanMonth {
		return 30
	}
	return 7
}

// ParseSpan validates a span query value. Empty defaults to week.
func ParseSpan(s string) (Span, error) {
	switch s {
	case "", string(SpanWeek):
		return SpanWeek, nil
	case string(SpanMonth):
		return SpanMonth, nil
	default:
		return "", ErrInvalidSpan
	}
}

// Window is a resolved chart window. Start is the first covered day at
// 00:00 UTC; End is the last covered day just before midnight.
type Window struct {
	Span   Span
	Offset int
	Start  time.Time
	End    time.Time
}

// WindowFor resolves a span and offset against now. Offset 0 is the
// window ending today; offset N steps back N whole spans. Negative
// offsets clamp to 0.
func WindowFor(span Span, offset int, now time.Time) Window {
	if offset < 0 {
		offset = 0
	}
	days := span.Days()

	today := now.UTC()
	endDay := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -offset*days)
	end := endDay.AddDate(0, 0, 1).Add(-time.Nanosecond)
	start := endDay.AddDate(0, 0, -(days - 1))

	return Window{Span: span, Offset: offset, Start: start, End: end}
}

// Labels returns one label per covered day. Week windows use "Jan 2"
// labels with the final day shown as "Today" in the current window;
// month windows use the day of month.
func (w Window) Labels() []string {
	days := w.Span.Days()
	labels := make([]string, days)
	for i := 0; i < days; i++ {
		d := w.Start.AddDate(0, 0, i)
		if w.Span == SpanMonth {
			labels[i] = strconv.Itoa(d.Day())
		} else {
			labels[i] = d.Format("Jan 2")
		}
	}
	if w.Span == SpanWeek && w.Offset == 0 {
		labels[days-1] = "Today"
	}
	return labels
}

// Days returns the covered days as YYYY-MM-DD strings, ascending.
func (w Window) Days() []string {
	days := w.Span.Days()
	out := make([]string, days)
	for i := 0; i < days; i++ {
		out[i] = w.Start.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}

// MonthLabel names the window after its starting month, "January 2006".
func (w Window) MonthLabel() string {
	return w.Start.Format("January 2006")
}

// ReasonSeries is one chart line: a reason and its per-day counts.
type ReasonSeries struct {
	Reason report.Reason `json:"reason"`
	Label  string        `json:"label"`
	Color  string        `json:"color"`
	Counts []int         `json:"counts"`
}

// Series is the full chart payload for one window.
type Series struct {
	Span   Span           `json:"span"`
	Offset int            `json:"offset"`
	Month  string         `json:"month"`
	Start  time.Time      `json:"start"`
	End    time.Time      `json:"end"`
	Days   []string       `json:"days"` // covered days, YYYY-MM-DD ascending
	Labels []string       `json:"labels"`
	Series []ReasonSeries `json:"series"`
	Total  int            `json:"total"`
}

// Build buckets the given reports into the window. Reports outside the
// window and comment or unknown reasons are skipped.
func Build(reports []*report.Report, w Window) *Series {
	days := w.Span.Days()

	counts := make(map[report.Reason][]int)
	for _, reason := range report.ReportableReasons() {
		counts[reason] = make([]int, days)
	}

	total := 0
	for _, r := range reports {
		if _, ok := counts[r.Reason]; !ok {
			continue
		}
		created := r.CreatedAt.UTC()
		if created.Before(w.Start) || created.After(w.End) {
			continue
		}
		idx := dayIndex(w.Start, created)
		if idx < 0 || idx >= days {
			continue
		}
		counts[r.Reason][idx]++
		total++
	}

	series := make([]ReasonSeries, 0, len(counts))
	for _, reason := range report.ReportableReasons() {
		info, _ := report.Info(reason)
		series = append(series, ReasonSeries{
			Reason: reason,
			Label:  info.Label,
			Color:  info.Color,
			Counts: counts[reason],
		})
	}

	return &Series{
		Span:   w.Span,
		Offset: w.Offset,
		Month:  w.MonthLabel(),
		Start:  w.Start,
		End:    w.End,
		Days:   w.Days(),
		Labels: w.Labels(),
		Series: series,
		Total:  total,
	}
}

// dayIndex counts whole calendar days between the window start and the
// report's creation date.
func dayIndex(start, created time.Time) int {
	cd := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
	return int(cd.Sub(start).Hours() / 24)
}
