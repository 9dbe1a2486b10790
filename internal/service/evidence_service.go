package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/pkg/config"
	appErrors "github.com/osa-scan/dresscode-api/pkg/errors"
	"github.com/osa-scan/dresscode-api/pkg/storage"
)

const latestEvidenceCacheKey = "dresscode:evidence:latest"

// extByContentType maps accepted photo types to stored extensions.
var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UploadedEvidence describes a stored photo.
type UploadedEvidence struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// EvidenceService stores violation photos and mints the signed links dashboards
// use to fetch them. Records reference evidence by opaque key only.
type EvidenceService struct {
	store  storage.EvidenceStore
	signer *storage.SignedURLSigner
	cache  queryCache
	cfg    config.EvidenceConfig
	latest time.Duration
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEvidenceService constructs the service.
func NewEvidenceService(store storage.EvidenceStore, signer *storage.SignedURLSigner, cache queryCache, cfg config.EvidenceConfig, latestTTL time.Duration, logger *zap.Logger) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceService{
		store:  store,
		signer: signer,
		cache:  cache,
		cfg:    cfg,
		latest: latestTTL,
		logger: logger,
	}
}

// Upload validates and stores a photo, returning the key records reference.
// Only image content types are accepted and uploads over the configured size
// cap are rejected.
func (s *EvidenceService) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (*UploadedEvidence, error) {
	ext, ok := extByContentType[strings.ToLower(contentType)]
	if !ok {
		if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
			return nil, appErrors.Clone(appErrors.ErrValidation, "evidence must be an image")
		}
		ext = strings.ToLower(path.Ext(filename))
	}
	if size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("evidence exceeds maximum size of %d bytes", s.cfg.MaxFileSizeBytes))
	}

	key := "evidence/" + uuid.NewString() + ext
	// Callers can understate the size, so the cap is enforced on the bytes
	// actually read. The extra byte detects a stream running past it.
	counted := &byteCounter{r: io.LimitReader(r, s.cfg.MaxFileSizeBytes+1)}
	if err := s.store.Save(ctx, key, counted, contentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store evidence")
	}
	if counted.n > s.cfg.MaxFileSizeBytes {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to remove oversize evidence", zap.String("key", key), zap.Error(err))
		}
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("evidence exceeds maximum size of %d bytes", s.cfg.MaxFileSizeBytes))
	}

	uploaded := &UploadedEvidence{
		Key:         key,
		ContentType: contentType,
		Size:        counted.n,
		UploadedAt:  time.Now().UTC(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, latestEvidenceCacheKey, uploaded, s.latest); err != nil {
			s.logger.Warn("latest evidence cache write failed", zap.Error(err))
		}
	}
	return uploaded, nil
}

// Latest returns the most recently uploaded photo descriptor, if one landed
// within the retention TTL. Backs the guard-station "last capture" widget.
func (s *EvidenceService) Latest(ctx context.Context) (*UploadedEvidence, error) {
	if s.cache == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no recent evidence")
	}
	var latest UploadedEvidence
	if err := s.cache.Get(ctx, latestEvidenceCacheKey, &latest); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no recent evidence")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read latest evidence")
	}
	return &latest, nil
}

// EvidenceURL mints a signed download path for a record's photo. Empty string
// when signing is unavailable; the record is still served without a link.
func (s *EvidenceService) EvidenceURL(recordID, evidenceKey string) string {
	if s.signer == nil {
		return ""
	}
	token, _, err := s.signer.Generate(recordID, evidenceKey)
	if err != nil {
		s.logger.Warn("failed to sign evidence url", zap.String("record_id", recordID), zap.Error(err))
		return ""
	}
	return "/api/v1/violations/evidence/" + token
}

// Open validates a signed token and streams the referenced photo.
func (s *EvidenceService) Open(ctx context.Context, token string) (io.ReadCloser, string, error) {
	if s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "evidence links not enabled")
	}
	_, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired evidence link")
	}
	rc, contentType, err := s.store.Open(ctx, key)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "evidence not found")
	}
	return rc, contentType, nil
}

// Delete removes a stored photo. Used when a record sheds its evidence.
func (s *EvidenceService) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete evidence")
	}
	return nil
}

// byteCounter tracks how much of the upload was actually consumed.
type byteCounter struct {
	r io.Reader
	n int64
}

func (b *byteCounter) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.n += int64(n)
	return n, err
}

// StartCleanup launches the retention sweeper, removing photos older than the
// configured TTL on each interval tick.
func (s *EvidenceService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 || s.cfg.CleanupTTL <= 0 {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.store.CleanupOlderThan(ctx, s.cfg.CleanupTTL)
				if err != nil {
					s.logger.Warn("evidence cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("evidence cleanup removed expired photos", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

// StopCleanup halts the sweeper and waits for it to exit.
func (s *EvidenceService) StopCleanup() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}
