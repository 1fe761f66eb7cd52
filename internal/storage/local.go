package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// Local implements Storage using the local filesystem. It serves as the
// fallback backend when the remote store is unreachable.
type Local struct {
	basePath string
}

// NewLocal creates a new local filesystem storage rooted at basePath.
func NewLocal(basePath string) (*Local, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	return &Local{basePath: abs}, nil
}

// Upload writes data from reader to a local file.
func (l *Local) Upload(_ context.Context, path string, reader io.Reader, _ string) error {
	fullPath := filepath.Join(l.basePath, filepath.Clean(path))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("storage: create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("storage: write file: %w", err)
	}
	return nil
}

// URL returns a file:// URL for the local file.
func (l *Local) URL(_ context.Context, path string) (string, error) {
	u := &url.URL{Scheme: "file", Path: filepath.Join(l.basePath, path)}
	return u.String(), nil
}

// compile-time check
var _ Storage = (*Local)(nil)
