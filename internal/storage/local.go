package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage implements Storage on the local filesystem. Files are served
// by the HTTP server under PublicURL.
type LocalStorage struct {
	basePath  string
	publicURL string
}

// LocalConfig holds configuration for local storage.
type LocalConfig struct {
	BasePath  string
	PublicURL string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = "/media"
	}
	return &LocalStorage{basePath: absPath, publicURL: publicURL}, nil
}

// BasePath is the directory served as static media.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// fullPath maps key into basePath, refusing keys that climb out of it.
func (s *LocalStorage) fullPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	path := filepath.Join(s.basePath, clean)
	if !strings.HasPrefix(path, s.basePath+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return path, nil
}

// Write goes through a temp file and rename so readers never see a partial file.
func (s *LocalStorage) Write(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := s.fullPath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	committed = true
	return nil
}

func (s *LocalStorage) Read(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.fullPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// GetURL ignores expires; local media is public.
func (s *LocalStorage) GetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, err := s.fullPath(key); err != nil {
		return "", err
	}
	return joinURL(s.publicURL, key), nil
}
