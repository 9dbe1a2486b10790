package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/pkg/config"
	appErrors "github.com/osa-scan/dresscode-api/pkg/errors"
)

const (
	statsCacheKey     = "dresscode:stats"
	analyticsCacheKey = "dresscode:stats:analytics"

	// statsCachePattern covers every cached aggregate.
	statsCachePattern = "dresscode:stats*"
)

type violationReader interface {
	GetByID(ctx context.Context, id string) (*models.ViolationRecord, error)
	List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationRecord, int, error)
	ListBySubject(ctx context.Context, normalizedName string) ([]models.ViolationRecord, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.ViolationRecord, error)
	Stats(ctx context.Context) (*models.ViolationStats, error)
	CountByDate(ctx context.Context, offsetHours int) ([]models.DateCount, error)
	CountByType(ctx context.Context) ([]models.TypeCount, error)
}

type queryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// evidenceURLResolver turns an evidence reference into a fetchable URL for
// responses. Nil means records go out without URLs.
type evidenceURLResolver interface {
	EvidenceURL(recordID, evidenceKey string) string
}

// ListResult is a page of records plus pagination metadata.
type ListResult struct {
	Records    []models.ViolationRecord `json:"records"`
	Pagination models.Pagination        `json:"pagination"`
}

// QueryService is the read side: listings, single-record lookups, the "today"
// view and dashboard stats. It annotates derived fields (offense ordinal,
// evidence URL) that are never persisted, and is the only reader the HTTP
// layer talks to.
type QueryService struct {
	repo     violationReader
	cache    queryCache
	evidence evidenceURLResolver
	cfg      config.DashboardConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewQueryService constructs the read facade.
func NewQueryService(repo violationReader, cache queryCache, evidence evidenceURLResolver, cfg config.DashboardConfig, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		repo:     repo,
		cache:    cache,
		evidence: evidence,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns one record. Soft-deleted records are served too, flagged, so a
// hidden entry can still be inspected before a restore. Deleted records carry
// no offense ordinal.
func (s *QueryService) Get(ctx context.Context, id string) (*models.ViolationRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "violation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load violation")
	}
	recs := []models.ViolationRecord{*rec}
	s.decorate(ctx, recs)
	return &recs[0], nil
}

// List returns a filtered page, newest first, soft-deleted excluded.
func (s *QueryService) List(ctx context.Context, filter models.ViolationFilter) (*ListResult, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list violations")
	}
	s.decorate(ctx, records)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return &ListResult{
		Records: records,
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   size,
			TotalCount: total,
		},
	}, nil
}

// ListToday returns records from the current campus day, a fixed-offset
// window independent of server timezone.
func (s *QueryService) ListToday(ctx context.Context) ([]models.ViolationRecord, error) {
	from, to := s.TodayWindow()
	records, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list today's violations")
	}
	s.decorate(ctx, records)
	return records, nil
}

// TodayWindow computes the half-open UTC interval covering the current day in
// the campus timezone.
func (s *QueryService) TodayWindow() (time.Time, time.Time) {
	zone := time.FixedZone("campus", s.cfg.TimezoneOffsetHours*3600)
	local := s.now().In(zone)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	return start.UTC(), start.Add(24 * time.Hour).UTC()
}

// Stats returns dashboard counters, served from cache inside the configured
// TTL. Cache trouble degrades to a direct query, never to an error.
func (s *QueryService) Stats(ctx context.Context) (*models.ViolationStats, error) {
	if s.cache != nil {
		var cached models.ViolationStats
		err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to compute stats")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.cfg.StatsCacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// Analytics returns the dashboard breakdown: totals plus per-day and per-type
// counts over non-deleted records. Cached alongside the counters and subject
// to the same degradation policy.
func (s *QueryService) Analytics(ctx context.Context) (*models.ViolationAnalytics, error) {
	if s.cache != nil {
		var cached models.ViolationAnalytics
		err := s.cache.Get(ctx, analyticsCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("analytics cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to compute analytics")
	}
	byDate, err := s.repo.CountByDate(ctx, s.cfg.TimezoneOffsetHours)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to compute analytics")
	}
	byType, err := s.repo.CountByType(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to compute analytics")
	}

	analytics := &models.ViolationAnalytics{Totals: *stats, ByDate: byDate, ByType: byType}
	if s.cache != nil {
		if err := s.cache.Set(ctx, analyticsCacheKey, analytics, s.cfg.StatsCacheTTL); err != nil {
			s.logger.Warn("analytics cache write failed", zap.Error(err))
		}
	}
	return analytics, nil
}

// InvalidateStats drops the cached aggregates, counters and breakdown both.
// Called after any mutation so the dashboard never shows stale numbers past
// the TTL.
func (s *QueryService) InvalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, statsCachePattern); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// decorate fills the derived fields on a batch of records: offense ordinals
// per subject and evidence URLs.
func (s *QueryService) decorate(ctx context.Context, records []models.ViolationRecord) {
	if len(records) == 0 {
		return
	}

	subjects := make(map[string]struct{})
	for i := range records {
		subjects[models.NormalizeSubjectName(records[i].StudentName)] = struct{}{}
	}

	ordinals := make(map[string]int)
	for subject := range subjects {
		history, err := s.repo.ListBySubject(ctx, subject)
		if err != nil {
			s.logger.Warn("failed to load subject history", zap.String("subject", subject), zap.Error(err))
			continue
		}
		for id, n := range ComputeOffenseOrdinals(history) {
			ordinals[id] = n
		}
	}

	for i := range records {
		records[i].OffenseOrdinal = ordinals[records[i].ID]
		if s.evidence != nil && records[i].EvidenceID != nil {
			records[i].EvidenceURL = s.evidence.EvidenceURL(records[i].ID, *records[i].EvidenceID)
		}
	}
}
