// Package artifacts stores the evidence of a run: failure screenshots, page
// sources and reports. Evidence goes to a local directory, an S3-compatible
// bucket, or nowhere.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store persists one artifact and returns where it can be found.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

// Key joins the run ID and a file name into an artifact key.
func Key(runID, name string) string {
	return path.Join("runs", runID, name)
}

// DirStore writes artifacts below a local directory.
type DirStore struct {
	root string
}

// NewDirStore creates root if needed.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: failed to create %s: %w", root, err)
	}
	return &DirStore{root: root}, nil
}

// Put writes content to root/key and returns the file path.
func (d *DirStore) Put(ctx context.Context, key string, content []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("artifacts: invalid key %q", key)
	}
	full := filepath.Join(d.root, clean)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("artifacts: failed to create directory for %q: %w", key, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: failed to write %q: %w", key, err)
	}
	return full, nil
}

// Discard drops every artifact.
type Discard struct{}

// Put accepts and forgets content.
func (Discard) Put(context.Context, string, []byte, string) (string, error) {
	return "", nil
}
