// Package blobstore uploads submission images to an external object store
// and derives publicly dereferenceable URLs for them.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Uploader is the storage service boundary the submission pipeline depends
// on. Implementations must reject overwrites only by path collision; callers
// keep paths unique per submission via SubmissionPath.
type Uploader interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) error
	PublicURL(path string) string
	Remove(ctx context.Context, path string) error
}

// SubmissionPath builds a collision-free object path for one submission:
// the upload timestamp in millis prefixes the sanitized original filename.
func SubmissionPath(now time.Time, filename string) string {
	return fmt.Sprintf("%d-%s", now.UTC().UnixMilli(), sanitizeFilename(filename))
}

func sanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
