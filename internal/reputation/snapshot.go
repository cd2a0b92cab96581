package reputation

import "time"

// Snapshot is a point-in-time reputation score stored for history.
// A worker writes one row per active raider on each tick, giving the
// score chart its data without recomputing old windows.
type Snapshot struct {
	ID          int       `json:"id"`
	Tag         string    `json:"tag"`
	Score       float64   `json:"score"`
	Tier        Tier      `json:"tier"`
	ReportCount int       `json:"reportCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HistoryQuery holds query parameters for historical scores.
type HistoryQuery struct {
	Tag   string
	From  time.Time
	To    time.Time
	Limit int
}
