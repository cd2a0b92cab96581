// Package validation provides input validation middleware for the RaidWatch API.
package validation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raidwatch/raidwatch/internal/identity"
)

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// MaxCommentLength bounds free-text comment bodies.
const MaxCommentLength = 2000

// MaxLabelLength bounds the optional reporter label.
const MaxLabelLength = 64

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// SlugParamMiddleware validates the :slug URL parameter on routes that use it.
// Apply to route groups that include :slug params to reject malformed slugs
// early, before any handler runs. The parsed canonical tag is stored on the
// context under "tag".
func SlugParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		if slug == "" {
			c.Next()
			return
		}
		tag, err := identity.ParseSlug(slug)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_slug",
				"message": "slug must match name-NNNN (4-digit discriminator)",
			})
			return
		}
		c.Set("tag", tag)
		c.Next()
	}
}

// TagFromContext returns the canonical tag parsed by SlugParamMiddleware.
func TagFromContext(c *gin.Context) (identity.Tag, bool) {
	v, ok := c.Get("tag")
	if !ok {
		return "", false
	}
	tag, ok := v.(identity.Tag)
	return tag, ok
}
