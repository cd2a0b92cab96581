// Package evidence stores report attachments (screenshots, clips) in a
// blob store and hands back public URLs for the report rows.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/raidwatch/raidwatch/internal/idgen"
)

var ErrUploadFailed = errors.New("evidence upload failed")

// maxAttachmentBytes bounds a single uploaded attachment.
const MaxAttachmentBytes = 8 << 20 // 8 MiB

// allowedContentTypes are the attachment types report intake accepts.
var allowedContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"video/mp4":  true,
	"video/webm": true,
}

// AllowedContentType reports whether intake accepts the given MIME type.
func AllowedContentType(ct string) bool {
	return allowedContentTypes[strings.ToLower(strings.TrimSpace(ct))]
}

// Store is the blob-storage boundary for evidence attachments. Put
// persists one attachment and returns its public URL. A Put failure
// aborts the whole report submission; nothing is half-attached.
type Store interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// ObjectName builds the stored object key for an attachment: a random
// prefix plus the sanitized original extension, so uploads never
// collide and never leak the uploader's filename.
func ObjectName(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("evidence/%s%s", idgen.Hex(16), ext)
}
