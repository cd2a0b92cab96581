package reputation

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/report"
	"github.com/raidwatch/raidwatch/internal/validation"
)

// ReportSource is the read side the scorer needs from the report store.
// report.Store satisfies it.
type ReportSource interface {
	GetRaiderByTag(ctx context.Context, tag identity.Tag) (*report.Raider, error)
	ListReports(ctx context.Context, q report.Query) ([]*report.Report, error)
	ListRecent(ctx context.Context, limit int) ([]*report.RecentReport, error)
}

// Handler provides HTTP endpoints for reputation
type Handler struct {
	source        ReportSource
	snapshotStore SnapshotStore
	now           func() time.Time
}

// NewHandler creates a new reputation handler
func NewHandler(source ReportSource) *Handler {
	return &Handler{
		source: source,
		now:    time.Now,
	}
}

// WithSnapshots adds the history store backing /history.
func (h *Handler) WithSnapshots(store SnapshotStore) *Handler {
	h.snapshotStore = store
	return h
}

// RegisterRoutes sets up reputation endpoints
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/raiders/:slug/summary", h.GetSummary)
	r.GET("/raiders/:slug/history", h.GetHistory)
}

// GetSummary handles GET /raiders/:slug/summary
func (h *Handler) GetSummary(c *gin.Context) {
	tag, ok := validation.TagFromContext(c)
	if !ok {
		var err error
		tag, err = identity.ParseSlug(c.Param("slug"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_slug",
				"message": "slug must match name-NNNN (4-digit discriminator)",
			})
			return
		}
	}

	ctx := c.Request.Context()
	raider, err := h.source.GetRaiderByTag(ctx, tag)
	if err != nil {
		if errors.Is(err, report.ErrRaiderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No reports filed against this raider",
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Failed to load raider",
		})
		return
	}

	reports, err := h.source.ListReports(ctx, report.Query{RaiderID: raider.ID})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Failed to load reports",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": Summarize(raider, reports, h.now().UTC())})
}

// GetHistory handles GET /raiders/:slug/history. Returns the stored
// score snapshots, newest first.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.snapshotStore == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Score history is not enabled",
		})
		return
	}

	tag, ok := validation.TagFromContext(c)
	if !ok {
		var err error
		tag, err = identity.ParseSlug(c.Param("slug"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_slug",
				"message": "slug must match name-NNNN (4-digit discriminator)",
			})
			return
		}
	}

	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	snaps, err := h.snapshotStore.Query(c.Request.Context(), HistoryQuery{
		Tag:   tag.String(),
		Limit: limit,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Failed to load score history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tag":     tag.String(),
		"history": snaps,
		"count":   len(snaps),
	})
}
