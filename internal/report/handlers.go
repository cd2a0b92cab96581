package report

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raidwatch/raidwatch/internal/evidence"
	"github.com/raidwatch/raidwatch/internal/identity"
	"github.com/raidwatch/raidwatch/internal/validation"
)

// Handler provides HTTP endpoints for report intake.
type Handler struct {
	service *Service
}

// NewHandler creates a new report handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up report routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/reports", h.SubmitReport)
	r.GET("/reasons", h.ListReasons)
}

// SubmitRequest is the JSON intake body. Multipart submissions carry
// the same fields as form values plus "evidence" file parts.
type SubmitRequest struct {
	Tag           string `json:"tag" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
	Comments      string `json:"comments"`
	ReporterLabel string `json:"reporterLabel"`
}

// SubmitReport handles POST /reports. Accepts JSON or multipart form
// data; only multipart can attach evidence files.
func (h *Handler) SubmitReport(c *gin.Context) {
	var sub Submission

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "Invalid multipart form",
			})
			return
		}
		sub = Submission{
			Tag:           formValue(form, "tag"),
			Reason:        formValue(form, "reason"),
			Comments:      formValue(form, "comments"),
			ReporterLabel: formValue(form, "reporterLabel"),
		}
		for _, fh := range form.File["evidence"] {
			att, err := readAttachment(fh)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation_error",
					"message": "Unreadable evidence attachment",
				})
				return
			}
			sub.Attachments = append(sub.Attachments, att)
		}
	} else {
		var req SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "Invalid request body",
			})
			return
		}
		sub = Submission{
			Tag:           req.Tag,
			Reason:        req.Reason,
			Comments:      req.Comments,
			ReporterLabel: req.ReporterLabel,
		}
	}

	if verrs := validation.Validate(
		validation.Required("tag", sub.Tag),
		validation.Required("reason", sub.Reason),
		validation.MaxLength("comments", sub.Comments, validation.MaxStringLength),
		validation.MaxLength("reporterLabel", sub.ReporterLabel, validation.MaxStringLength),
	); len(verrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": verrs.Error(),
		})
		return
	}

	report, raider, err := h.service.Submit(c.Request.Context(), sub)
	if err != nil {
		h.submitError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"report": report,
		"raider": gin.H{
			"tag":  raider.Tag,
			"slug": identity.Tag(raider.Tag).Slug(),
		},
	})
}

func (h *Handler) submitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidTag):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_identity",
			"message": "Tag must match name#NNNN (4-digit discriminator)",
		})
	case errors.Is(err, ErrUnknownReason):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_reason",
			"message": "Reason must be one of the known report reasons",
		})
	case errors.Is(err, evidence.ErrUploadFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "upstream_failure",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Failed to persist report",
		})
	}
}

// ListReasons handles GET /reasons: the fixed reason catalog with
// display metadata, in chart order.
func (h *Handler) ListReasons(c *gin.Context) {
	type entry struct {
		Reason Reason `json:"reason"`
		ReasonInfo
	}
	out := make([]entry, 0, len(reasonTable))
	for _, e := range reasonTable {
		out = append(out, entry{Reason: e.Reason, ReasonInfo: e.Info})
	}
	c.JSON(http.StatusOK, gin.H{"reasons": out})
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func readAttachment(fh *multipart.FileHeader) (Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return Attachment{}, err
	}
	defer f.Close()

	// Size check happens again in the service; the extra byte makes an
	// oversized upload detectable without buffering all of it.
	data, err := io.ReadAll(io.LimitReader(f, evidence.MaxAttachmentBytes+1))
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
