// Package storage holds route images. Records persist only an opaque object
// key; readers resolve keys into time-limited URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// SignedURLTTL is how long a resolved image URL stays valid.
const SignedURLTTL = time.Hour

// ObjectStore is the object-storage collaborator for route images.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string) (string, error)
}

// ObjectKey builds the stored key for an uploaded file name.
func ObjectKey(now time.Time, fileName string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), fileName)
}

// IsExternalURL reports whether ref is a full URL rather than a stored
// object key. External image URLs are never deleted or re-signed.
func IsExternalURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
