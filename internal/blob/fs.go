package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Filesystem stores artifacts as files below a root directory.
type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at root, creating the directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact directory required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Driver implements Store.
func (f *Filesystem) Driver() Driver { return DriverFilesystem }

// Root is the directory artifacts are written under.
func (f *Filesystem) Root() string { return f.root }

// Location implements Store.
func (f *Filesystem) Location() string { return f.root }

// Put streams r to a temporary file next to the destination and renames it into place.
func (f *Filesystem) Put(ctx context.Context, key string, r io.Reader, _ string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	clean, err := sanitizeKey(key)
	if err != nil {
		return Info{}, err
	}

	dataPath := filepath.Join(f.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o750); err != nil {
		return Info{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, fmt.Errorf("failed to move %s into place: %w", key, err)
	}

	return Info{
		Key:      clean,
		Location: dataPath,
		ETag:     hex.EncodeToString(h.Sum(nil)),
		Size:     size,
	}, nil
}
