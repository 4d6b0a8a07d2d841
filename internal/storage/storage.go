// Package storage stores uploaded media on the local filesystem or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"snapshare/internal/config"
)

// ErrNotFound is returned by Read when the key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Storage defines the operations the media pipeline needs from a backend.
type Storage interface {
	// Write stores content from r under key. size is -1 when unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for key. The caller closes the ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL clients can fetch key from. Backends without a
	// public base URL presign for expires.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// New builds the backend selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch strings.ToLower(cfg.StorageDriver) {
	case "s3":
		return NewS3Storage(ctx, S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicURL:       s3PublicURL(cfg),
		})
	case "local", "":
		return NewLocalStorage(LocalConfig{
			BasePath:  cfg.StorageLocalDir,
			PublicURL: cfg.StoragePublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// The local default "/media" is meaningless for S3.
func s3PublicURL(cfg *config.Config) string {
	if strings.HasPrefix(cfg.StoragePublicURL, "http://") || strings.HasPrefix(cfg.StoragePublicURL, "https://") {
		return cfg.StoragePublicURL
	}
	return ""
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}
