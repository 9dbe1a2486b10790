package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/pkg/config"
)

func newExportFixture(t *testing.T) (*ExportService, *fakeViolationRepo) {
	t.Helper()
	repo := newFakeViolationRepo()
	query := NewQueryService(repo, nil, nil, dashboardConfig(), nil)
	return NewExportService(query, config.ExportsConfig{MaxRows: 100}, nil), repo
}

func TestExportCSVIncludesRecords(t *testing.T) {
	svc, repo := newExportFixture(t)
	ctx := context.Background()

	resolver := "osa-admin"
	seedRecord(t, repo, models.ViolationRecord{
		StudentName:   "Anna Cruz",
		Course:        "BSIT",
		ViolationType: "Croptop",
		OccurredAt:    time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		Status:        models.ViolationResolved,
		ResolvedBy:    &resolver,
	})

	file, err := svc.Export(ctx, "csv", models.ViolationFilter{})
	require.NoError(t, err)
	require.Equal(t, "text/csv", file.ContentType)
	require.True(t, strings.HasSuffix(file.Filename, ".csv"))

	body := string(file.Content)
	require.Contains(t, body, "Anna Cruz")
	require.Contains(t, body, "Croptop")
	require.Contains(t, body, "resolved")
	require.Contains(t, body, "osa-admin")
}

func TestExportPDFRenders(t *testing.T) {
	svc, repo := newExportFixture(t)
	ctx := context.Background()

	seedRecord(t, repo, models.ViolationRecord{
		StudentName:   "Anna Cruz",
		ViolationType: "Croptop",
		OccurredAt:    time.Now().UTC(),
		Status:        models.ViolationPending,
	})

	file, err := svc.Export(ctx, "pdf", models.ViolationFilter{})
	require.NoError(t, err)
	require.Equal(t, "application/pdf", file.ContentType)
	require.True(t, strings.HasPrefix(string(file.Content), "%PDF"))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.Export(context.Background(), "xlsx", models.ViolationFilter{})
	require.Error(t, err)
}

func TestExportExcludesSoftDeleted(t *testing.T) {
	svc, repo := newExportFixture(t)
	ctx := context.Background()

	kept := seedRecord(t, repo, models.ViolationRecord{
		StudentName:   "Anna Cruz",
		ViolationType: "Croptop",
		OccurredAt:    time.Now().UTC(),
		Status:        models.ViolationPending,
	})
	removed := seedRecord(t, repo, models.ViolationRecord{
		StudentName:   "Ben Reyes",
		ViolationType: "No ID",
		OccurredAt:    time.Now().UTC(),
		Status:        models.ViolationPending,
	})
	_, err := repo.SetDeleted(ctx, removed.ID, true)
	require.NoError(t, err)

	file, err := svc.Export(ctx, "csv", models.ViolationFilter{})
	require.NoError(t, err)
	require.Contains(t, string(file.Content), kept.StudentName)
	require.NotContains(t, string(file.Content), removed.StudentName)
}
