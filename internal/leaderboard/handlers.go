package leaderboard

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raidwatch/raidwatch/internal/report"
)

// ReportSource is the read side the board needs from the report store.
// report.Store satisfies it.
type ReportSource interface {
	ListRecent(ctx context.Context, limit int) ([]*report.RecentReport, error)
}

// Handler provides the leaderboard endpoint.
type Handler struct {
	source ReportSource
}

// NewHandler creates a leaderboard handler.
func NewHandler(source ReportSource) *Handler {
	return &Handler{source: source}
}

// RegisterRoutes sets up leaderboard endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/leaderboard", h.GetLeaderboard)
}

// GetLeaderboard handles GET /leaderboard?limit=N
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit := DefaultLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = ClampLimit(parsed)
	}

	recent, err := h.source.ListRecent(c.Request.Context(), ScanLimit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Failed to load recent reports",
		})
		return
	}

	entries := Build(recent, limit)
	if entries == nil {
		entries = []*Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
