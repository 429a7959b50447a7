// Package blob stores proposal documents attached to concepts. Objects are
// keyed "<conceptID>/<uuid>-<filename>" so a concept's attachments group under
// one prefix and repeated uploads of the same filename never collide.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// Store persists proposal blobs.
type Store interface {
	// Upload writes the object under key and returns a URL that can later be
	// resolved back to the key with KeyFromURL.
	Upload(ctx context.Context, key string, r io.Reader) (string, error)

	// Download opens the object for reading. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// NewKey builds the storage key for a proposal upload.
func NewKey(conceptID int64, filename string) string {
	return fmt.Sprintf("%d/%s-%s", conceptID, uuid.NewString(), sanitizeFilename(filename))
}

// KeyFromURL recovers the "<conceptID>/<uuid>-<filename>" key from a stored
// proposal URL. Both path segments are needed; the filename alone is not
// unique across concepts.
func KeyFromURL(rawURL string) (string, error) {
	trimmed := strings.TrimRight(rawURL, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[len(parts)-1] == "" || parts[len(parts)-2] == "" {
		return "", fmt.Errorf("malformed proposal URL: %q", rawURL)
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1], nil
}

// sanitizeFilename strips any path components from a client-supplied filename
// so it cannot escape its concept prefix.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
