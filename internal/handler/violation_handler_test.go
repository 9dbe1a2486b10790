package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/osa-scan/dresscode-api/internal/middleware"
	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/internal/repository"
	"github.com/osa-scan/dresscode-api/internal/service"
	"github.com/osa-scan/dresscode-api/pkg/config"
)

type memoryViolationRepo struct {
	mu      sync.Mutex
	seq     int
	records map[string]*models.ViolationRecord
}

func newMemoryViolationRepo() *memoryViolationRepo {
	return &memoryViolationRepo{records: make(map[string]*models.ViolationRecord)}
}

func (m *memoryViolationRepo) Create(_ context.Context, rec *models.ViolationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		m.seq++
		rec.ID = fmt.Sprintf("v-%02d", m.seq)
	}
	clone := *rec
	m.records[rec.ID] = &clone
	return nil
}

func (m *memoryViolationRepo) GetByID(_ context.Context, id string) (*models.ViolationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *rec
	return &clone, nil
}

func (m *memoryViolationRepo) Update(_ context.Context, id string, params repository.UpdateViolationParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.IsDeleted {
		return false, nil
	}
	if params.StudentName != nil {
		rec.StudentName = *params.StudentName
	}
	if params.ViolationType != nil {
		rec.ViolationType = *params.ViolationType
	}
	if params.OccurredAt != nil {
		rec.OccurredAt = *params.OccurredAt
	}
	if params.Status != nil {
		rec.Status = *params.Status
	}
	if params.ResolvedBy != nil {
		rec.ResolvedBy = params.ResolvedBy
	}
	if params.ResolvedAt != nil {
		rec.ResolvedAt = params.ResolvedAt
	}
	if params.Notes != nil {
		rec.Notes = *params.Notes
	}
	return true, nil
}

func (m *memoryViolationRepo) SetDeleted(_ context.Context, id string, deleted bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.IsDeleted == deleted {
		return false, nil
	}
	rec.IsDeleted = deleted
	return true, nil
}

func (m *memoryViolationRepo) ListBySubject(_ context.Context, normalizedName string) ([]models.ViolationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ViolationRecord
	for _, rec := range m.records {
		if !rec.IsDeleted && models.NormalizeSubjectName(rec.StudentName) == normalizedName {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryViolationRepo) List(_ context.Context, filter models.ViolationFilter) ([]models.ViolationRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ViolationRecord
	for _, rec := range m.records {
		if rec.IsDeleted {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, len(out), nil
}

func (m *memoryViolationRepo) ListBetween(_ context.Context, from, to time.Time) ([]models.ViolationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ViolationRecord
	for _, rec := range m.records {
		if rec.IsDeleted || rec.OccurredAt.Before(from) || !rec.OccurredAt.Before(to) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (m *memoryViolationRepo) CountByDate(_ context.Context, offsetHours int) ([]models.DateCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zone := time.FixedZone("campus", offsetHours*3600)
	buckets := make(map[string]int)
	for _, rec := range m.records {
		if rec.IsDeleted {
			continue
		}
		buckets[rec.OccurredAt.In(zone).Format("2006-01-02")]++
	}
	var out []models.DateCount
	for date, count := range buckets {
		out = append(out, models.DateCount{Date: date, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memoryViolationRepo) CountByType(_ context.Context) ([]models.TypeCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buckets := make(map[string]int)
	for _, rec := range m.records {
		if rec.IsDeleted {
			continue
		}
		buckets[rec.ViolationType]++
	}
	var out []models.TypeCount
	for vt, count := range buckets {
		out = append(out, models.TypeCount{ViolationType: vt, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ViolationType < out[j].ViolationType
	})
	return out, nil
}

func (m *memoryViolationRepo) Stats(_ context.Context) (*models.ViolationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.ViolationStats{}
	for _, rec := range m.records {
		if rec.IsDeleted {
			continue
		}
		stats.Total++
		switch rec.Status {
		case models.ViolationPending:
			stats.Pending++
		case models.ViolationResolved:
			stats.Resolved++
		case models.ViolationNotYetResolved:
			stats.NotYetResolved++
		}
	}
	return stats, nil
}

func newViolationRouter(t *testing.T) (*gin.Engine, *memoryViolationRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemoryViolationRepo()
	lifecycle := service.NewLifecycleService(repo, nil, nil, nil)
	query := service.NewQueryService(repo, nil, nil, config.DashboardConfig{TimezoneOffsetHours: 8}, nil)
	exports := service.NewExportService(query, config.ExportsConfig{MaxRows: 100}, nil)
	h := NewViolationHandler(lifecycle, query, nil, exports, nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{
			UserID:   "u-osa",
			Username: "osa-admin",
			Role:     models.RoleOSA,
		})
	})
	group := router.Group("/api/v1/violations")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/today", h.Today)
	group.GET("/stats", h.Stats)
	group.GET("/analytics", h.Analytics)
	group.GET("/export", h.Export)
	group.GET("/:id", h.Get)
	group.PATCH("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/restore", h.Restore)
	return router, repo
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) models.ViolationRecord {
	t.Helper()
	var envelope struct {
		Data models.ViolationRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestViolationCreateReturnsPendingRecord(t *testing.T) {
	router, _ := newViolationRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        gin.H{"name": "Anna Cruz", "course": "BSIT"},
		"violation_type": "Croptop",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeRecord(t, rec)
	require.Equal(t, "Anna Cruz", created.StudentName)
	require.Equal(t, models.ViolationPending, created.Status)
	require.Equal(t, 1, created.OffenseOrdinal)
}

func TestViolationCreateAcceptsBareSubjectString(t *testing.T) {
	router, _ := newViolationRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Anna Cruz",
		"violation_type": "Croptop",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "Anna Cruz", decodeRecord(t, rec).StudentName)
}

func TestViolationCreateRejectsMissingFields(t *testing.T) {
	router, _ := newViolationRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject": gin.H{"name": "Anna Cruz"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViolationResolveFlow(t *testing.T) {
	router, _ := newViolationRouter(t)

	created := decodeRecord(t, doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Anna Cruz",
		"violation_type": "Croptop",
	}))

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/violations/"+created.ID, gin.H{
		"status": "resolved",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeRecord(t, rec)
	require.Equal(t, models.ViolationResolved, updated.Status)
	require.NotNil(t, updated.ResolvedBy)
	require.Equal(t, "osa-admin", *updated.ResolvedBy)
	require.NotNil(t, updated.ResolvedAt)
}

func TestViolationDeleteHidesFromListButStaysAuditable(t *testing.T) {
	router, _ := newViolationRouter(t)

	created := decodeRecord(t, doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Anna Cruz",
		"violation_type": "Croptop",
	}))

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodDelete, "/api/v1/violations/"+created.ID, nil).Code)

	// Gone from listings, but the single-record view still serves it
	// flagged so a delete can be reviewed before a restore.
	var listing struct {
		Data []models.ViolationRecord `json:"data"`
	}
	listRec := doJSON(t, router, http.MethodGet, "/api/v1/violations", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listing))
	require.Empty(t, listing.Data)

	getRec := doJSON(t, router, http.MethodGet, "/api/v1/violations/"+created.ID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	require.True(t, decodeRecord(t, getRec).IsDeleted)

	// Deleting again still succeeds.
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodDelete, "/api/v1/violations/"+created.ID, nil).Code)

	// Updates on a deleted record are rejected.
	patch := doJSON(t, router, http.MethodPatch, "/api/v1/violations/"+created.ID, gin.H{"notes": "late"})
	require.Equal(t, http.StatusNotFound, patch.Code)
}

func TestViolationRestoreBringsRecordBack(t *testing.T) {
	router, _ := newViolationRouter(t)

	created := decodeRecord(t, doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Anna Cruz",
		"violation_type": "Croptop",
	}))

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodDelete, "/api/v1/violations/"+created.ID, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/v1/violations/"+created.ID+"/restore", nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/api/v1/violations/"+created.ID, nil).Code)
}

func TestViolationStatsReflectLifecycle(t *testing.T) {
	router, _ := newViolationRouter(t)

	first := decodeRecord(t, doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Anna Cruz",
		"violation_type": "Croptop",
	}))
	doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Ben Reyes",
		"violation_type": "No ID",
	})
	doJSON(t, router, http.MethodPatch, "/api/v1/violations/"+first.ID, gin.H{"status": "resolved"})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/violations/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.ViolationStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, 2, envelope.Data.Total)
	require.Equal(t, 1, envelope.Data.Pending)
	require.Equal(t, 1, envelope.Data.Resolved)
}

func TestViolationAnalyticsBreakdown(t *testing.T) {
	router, _ := newViolationRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Anna Cruz",
		"violation_type": "Croptop",
	})
	doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Ben Reyes",
		"violation_type": "Croptop",
	})
	removed := decodeRecord(t, doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Cara Lim",
		"violation_type": "No ID",
	}))
	doJSON(t, router, http.MethodDelete, "/api/v1/violations/"+removed.ID, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/violations/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.ViolationAnalytics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, 2, envelope.Data.Totals.Total)
	require.Equal(t, []models.TypeCount{{ViolationType: "Croptop", Count: 2}}, envelope.Data.ByType)
	require.Len(t, envelope.Data.ByDate, 1)
	require.Equal(t, 2, envelope.Data.ByDate[0].Count)
}

func TestViolationListRejectsBadFilter(t *testing.T) {
	router, _ := newViolationRouter(t)

	require.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/v1/violations?status=bogus", nil).Code)
	require.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/v1/violations?page=zero", nil).Code)
}

func TestViolationExportCSV(t *testing.T) {
	router, _ := newViolationRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/violations", gin.H{
		"subject":        "Anna Cruz",
		"violation_type": "Croptop",
	})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/violations/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "Anna Cruz")
}
