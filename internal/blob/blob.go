// Package blob stores run artifacts (plots, CSV exports) on the local filesystem or in S3.
package blob

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Driver names a storage backend.
type Driver string

// Supported drivers.
const (
	DriverFilesystem Driver = "filesystem"
	DriverS3         Driver = "s3"
)

// Content types used for artifacts.
const (
	ContentTypeCSV = "text/csv"
	ContentTypePNG = "image/png"
)

// Info describes a stored artifact.
type Info struct {
	Key      string
	Location string
	ETag     string
	Size     int64
}

// Store writes artifacts. Writing an existing key replaces it.
type Store interface {
	Driver() Driver
	Location() string
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
}

// Config selects and configures the artifact store.
type Config struct {
	Dir string   `mapstructure:"dir"`
	S3  S3Config `mapstructure:"s3"`
}

// Open returns the S3 store when a bucket is configured, else the filesystem store rooted at Dir.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.S3.Bucket != "" {
		return NewS3(ctx, cfg.S3)
	}
	return NewFilesystem(cfg.Dir)
}

// sanitizeKey rejects keys that would escape the store root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key traversal %q", key)
	}
	return clean, nil
}
