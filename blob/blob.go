// Package blob stores uploaded media and supporting documents. The core only
// keeps the returned URL; content is never inspected.
package blob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxUploadSize = 10 << 20

// Store puts an object and returns the URL it can be fetched from.
type Store interface {
	Put(ctx context.Context, folder string, data []byte, contentType string) (string, error)
}

var extensions = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpeg",
	"image/jpg":       "jpeg",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"application/pdf": "pdf",
	"video/mp4":       "mp4",
}

// Allowed reports whether uploads of contentType are accepted.
func Allowed(contentType string) bool {
	_, ok := extensions[strings.ToLower(contentType)]
	return ok
}

// objectName builds a collision-free key under folder.
func objectName(folder, contentType string) string {
	ext, ok := extensions[strings.ToLower(contentType)]
	if !ok {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s_%d.%s", folder, uuid.NewString(), time.Now().UnixNano(), ext)
}
