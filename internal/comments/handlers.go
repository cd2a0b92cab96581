package comments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/report"
	"github.com/raidwatch/raidwatch/internal/validation"
)

// Handler provides HTTP endpoints for the comment ledger.
type Handler struct {
	service *Service
}

// NewHandler creates a comment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up comment endpoints. The raider routes expect
// the slug middleware; the vote route addresses comments by ID.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/raiders/:slug/comments", h.ListComments)
	r.POST("/raiders/:slug/comments", h.PostComment)
	r.POST("/comments/:id/vote", h.VoteComment)
}

// ListComments handles GET /raiders/:slug/comments?sort=recent|top&limit=N
func (h *Handler) ListComments(c *gin.Context) {
	tag, ok := validation.TagFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_slug",
			"message": "slug must match name-NNNN (4-digit discriminator)",
		})
		return
	}

	sort, err := ParseSort(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "sort must be recent or top",
		})
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	list, err := h.service.List(c.Request.Context(), tag, sort, limit)
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
			"message": "Failed to load comments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": list})
}

// PostCommentRequest is the comment intake body.
type PostCommentRequest struct {
	Body          string `json:"body" binding:"required"`
	ReporterLabel string `json:"reporterLabel"`
}

// PostComment handles POST /raiders/:slug/comments
func (h *Handler) PostComment(c *gin.Context) {
	tag, ok := validation.TagFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_slug",
			"message": "slug must match name-NNNN (4-digit discriminator)",
		})
		return
	}

	var req PostCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	comment, err := h.service.Add(c.Request.Context(), tag.String(), req.Body, req.ReporterLabel)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidTag):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_identity",
				"message": "Tag must match name#NNNN (4-digit discriminator)",
			})
		case errors.Is(err, report.ErrRaiderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No reports filed against this raider",
			})
		case errors.Is(err, ErrEmptyComment):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "Comment body must not be empty",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "store_unavailable",
				"message": "Failed to persist comment",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// VoteRequest is the vote transition body. PreviousVote is the client's
// remembered prior vote, empty or "none" when voting for the first time.
type VoteRequest struct {
	Vote         string `json:"vote" binding:"required"`
	PreviousVote string `json:"previousVote"`
}

// VoteComment handles POST /comments/:id/vote
func (h *Handler) VoteComment(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	vote, err := ParseVote(req.Vote)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "vote must be up or down",
		})
		return
	}
	prev, err := ParsePrevVote(req.PreviousVote)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "previousVote must be up, down, none, or empty",
		})
		return
	}

	up, down, err := h.service.Vote(c.Request.Context(), c.Param("id"), vote, prev)
	if err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Comment not found",
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Failed to record vote",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upvotes":   up,
		"downvotes": down,
		"score":     up - down,
	})
}
