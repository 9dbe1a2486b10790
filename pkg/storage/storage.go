package storage

import (
	"context"
	"io"
	"time"
)

// Backend identifiers accepted by the EVIDENCE_BACKEND setting.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// EvidenceStore abstracts where violation photos live. Keys are opaque object
// names assigned at upload time; callers never see filesystem paths or bucket
// layout.
type EvidenceStore interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}
