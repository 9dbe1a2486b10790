package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore persists evidence files on disk under a base directory. The
// content type is kept in a sidecar .meta file so Open can report it back
// without guessing from the extension.
type LocalStore struct {
	baseDir string
}

type localMeta struct {
	ContentType string `json:"content_type"`
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Save copies the reader into the target file and records its content type.
func (s *LocalStore) Save(_ context.Context, key string, r io.Reader, contentType string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create evidence file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write evidence file: %w", err)
	}
	meta, _ := json.Marshal(localMeta{ContentType: contentType})
	if err := os.WriteFile(path+".meta", meta, 0o644); err != nil {
		return fmt.Errorf("write evidence metadata: %w", err)
	}
	return nil
}

// Open returns a read handle for the stored file plus its content type.
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open evidence file: %w", err)
	}
	contentType := "application/octet-stream"
	if raw, err := os.ReadFile(path + ".meta"); err == nil {
		var meta localMeta
		if json.Unmarshal(raw, &meta) == nil && meta.ContentType != "" {
			contentType = meta.ContentType
		}
	}
	return file, contentType, nil
}

// Delete removes a stored file and its metadata if present.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete evidence file: %w", err)
	}
	_ = os.Remove(path + ".meta")
	return nil
}

// CleanupOlderThan removes files older than the provided TTL and returns the
// deleted keys.
func (s *LocalStore) CleanupOlderThan(_ context.Context, ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".meta") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		_ = os.Remove(path + ".meta")
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			rel = path
		}
		deleted = append(deleted, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup uploads: %w", err)
	}
	return deleted, nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalStore) Path(key string) string {
	p, err := s.resolve(key)
	if err != nil {
		return filepath.Join(s.baseDir, filepath.Base(key))
	}
	return p
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean(key)
	if filepath.IsAbs(clean) || strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid evidence key %q", key)
	}
	path := filepath.Join(s.baseDir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare uploads directory: %w", err)
	}
	return path, nil
}
