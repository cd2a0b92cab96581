package stats

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

// maxOffset bounds how far back the chart can page.
const maxOffset = 52

// ReportSource is the read side the aggregator needs from the report
// store. report.Store satisfies it.
type ReportSource interface {
	GetRaiderByTag(ctx context.Context, tag identity.Tag) (*report.Raider, error)
	ListReports(ctx context.Context, q report.Query) ([]*report.Report, error)
}

// Handler provides the stats chart endpoint.
type Handler struct {
	source ReportSource
	now    func() time.Time
}

// NewHandler creates a stats handler.
func NewHandler(source ReportSource) *Handler {
	return &Handler{source: source, now: time.Now}
}

// RegisterRoutes sets up stats endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/raiders/:slug/stats", h.GetStats)
}

// GetStats handles GET /raiders/:slug/stats?span=week|month&offset=N
func (h *Handler) GetStats(c *gin.Context) {
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

	span, err := ParseSpan(c.Query("span"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "span must be week or month",
		})
		return
	}

	// Negative offsets clamp to the current window; the upper cap just
	// bounds how much history a single chart request can page through.
	offset := 0
	if o := c.Query("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed > maxOffset {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "offset must be an integer no greater than 52",
			})
			return
		}
		if parsed > 0 {
			offset = parsed
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

	w := WindowFor(span, offset, h.now())
	reports, err := h.source.ListReports(ctx, report.Query{
		RaiderID: raider.ID,
		From:     w.Start,
		To:       w.End,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Failed to load reports",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": Build(reports, w)})
}
