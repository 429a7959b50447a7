package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore keeps proposal blobs on local disk under a root directory.
// It is the default backend and needs no external services.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a filesystem blob store rooted at dir, creating
// the directory if needed.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("blob: failed to resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blob: failed to create root directory: %w", err)
	}
	return &FilesystemStore{root: abs}, nil
}

// Upload writes the object under key and returns a /proposals/<key> URL
// served by the HTTP layer.
func (s *FilesystemStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("blob: failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("blob: failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("blob: failed to write file: %w", err)
	}

	return "/proposals/" + key, nil
}

// Download opens the object for reading.
func (s *FilesystemStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: failed to open file: %w", err)
	}
	return f, nil
}

// resolve maps a key to an on-disk path, rejecting keys that would escape the
// root.
func (s *FilesystemStore) resolve(key string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}
	return path, nil
}

var _ Store = (*FilesystemStore)(nil)
