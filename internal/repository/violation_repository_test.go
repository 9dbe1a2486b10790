package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/osa-scan/dresscode-api/internal/models"
)

func newViolationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func violationRows(recs ...models.ViolationRecord) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "student_name", "year_level", "course", "violation_type", "occurred_at", "status", "evidence_id", "submitted_by", "resolved_by", "resolved_at", "notes", "is_deleted", "created_at", "updated_at"})
	for _, rec := range recs {
		rows.AddRow(rec.ID, rec.StudentName, rec.YearLevel, rec.Course, rec.ViolationType, rec.OccurredAt, rec.Status, rec.EvidenceID, rec.SubmittedBy, rec.ResolvedBy, rec.ResolvedAt, rec.Notes, rec.IsDeleted, rec.CreatedAt, rec.UpdatedAt)
	}
	return rows
}

func TestViolationRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newViolationRepoMock(t)
	defer cleanup()

	repo := NewViolationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO violations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	submitter := "guard-1"
	rec := &models.ViolationRecord{
		StudentName:   "Anna Cruz",
		ViolationType: "Croptop",
		OccurredAt:    time.Now().UTC(),
		Status:        models.ViolationPending,
		SubmittedBy:   &submitter,
	}
	require.NoError(t, repo.Create(context.Background(), rec))
	require.NotEmpty(t, rec.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + violationColumns + " FROM violations WHERE id = $1 LIMIT 1")).
		WithArgs(rec.ID).
		WillReturnRows(violationRows(*rec))

	fetched, err := repo.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, fetched.ID)
	require.Equal(t, models.ViolationPending, fetched.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationRepositoryListFiltersDeleted(t *testing.T) {
	db, mock, cleanup := newViolationRepoMock(t)
	defer cleanup()
	repo := NewViolationRepository(db)

	status := models.ViolationPending
	mock.ExpectQuery(`SELECT .+ FROM violations WHERE is_deleted = FALSE AND status = \$1 ORDER BY occurred_at DESC, id DESC LIMIT 50 OFFSET 0`).
		WithArgs(status).
		WillReturnRows(violationRows(models.ViolationRecord{ID: "v-1", StudentName: "Anna Cruz", ViolationType: "Croptop", Status: status}))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM violations WHERE is_deleted = FALSE AND status = \$1`).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.ViolationFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newViolationRepoMock(t)
	defer cleanup()
	repo := NewViolationRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM violations WHERE is_deleted = FALSE AND \(student_name ILIKE \$1 OR violation_type ILIKE \$1 OR course ILIKE \$1\)`).
		WithArgs("%cruz%").
		WillReturnRows(violationRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM violations`).
		WithArgs("%cruz%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	records, total, err := repo.List(context.Background(), models.ViolationFilter{Search: "cruz"})
	require.NoError(t, err)
	require.Empty(t, records)
	require.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationRepositoryUpdateSkipsDeleted(t *testing.T) {
	db, mock, cleanup := newViolationRepoMock(t)
	defer cleanup()
	repo := NewViolationRepository(db)

	status := models.ViolationResolved
	resolver := "osa-admin"
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE violations SET status = $1, resolved_by = $2, resolved_at = $3, updated_at = $4 WHERE id = $5 AND is_deleted = FALSE")).
		WithArgs(status, resolver, now, sqlmock.AnyArg(), "v-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	matched, err := repo.Update(context.Background(), "v-1", UpdateViolationParams{
		Status:     &status,
		ResolvedBy: &resolver,
		ResolvedAt: &now,
	})
	require.NoError(t, err)
	require.True(t, matched)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE violations SET status = $1, resolved_by = $2, resolved_at = $3, updated_at = $4 WHERE id = $5 AND is_deleted = FALSE")).
		WithArgs(status, resolver, now, sqlmock.AnyArg(), "v-deleted").
		WillReturnResult(sqlmock.NewResult(0, 0))

	matched, err = repo.Update(context.Background(), "v-deleted", UpdateViolationParams{
		Status:     &status,
		ResolvedBy: &resolver,
		ResolvedAt: &now,
	})
	require.NoError(t, err)
	require.False(t, matched)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationRepositorySetDeletedIdempotent(t *testing.T) {
	db, mock, cleanup := newViolationRepoMock(t)
	defer cleanup()
	repo := NewViolationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE violations SET is_deleted = $2, updated_at = $3 WHERE id = $1 AND is_deleted = NOT $2")).
		WithArgs("v-1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.SetDeleted(context.Background(), "v-1", true)
	require.NoError(t, err)
	require.True(t, changed)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE violations SET is_deleted = $2, updated_at = $3 WHERE id = $1 AND is_deleted = NOT $2")).
		WithArgs("v-1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err = repo.SetDeleted(context.Background(), "v-1", true)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationRepositorySubjectKeyTrimsPaddedNames(t *testing.T) {
	db, mock, cleanup := newViolationRepoMock(t)
	defer cleanup()
	repo := NewViolationRepository(db)

	// The grouping expression trims after collapsing, matching
	// NormalizeSubjectName, so a padded row still joins its history.
	mock.ExpectQuery(regexp.QuoteMeta(`btrim(LOWER(regexp_replace(student_name, '\s+', ' ', 'g'))) = $1`)).
		WithArgs("anna cruz").
		WillReturnRows(violationRows(models.ViolationRecord{ID: "v-1", StudentName: " Anna  Cruz ", ViolationType: "Croptop", Status: models.ViolationPending}))

	records, err := repo.ListBySubject(context.Background(), models.NormalizeSubjectName(" Anna  Cruz "))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationRepositoryAnalyticsCounts(t *testing.T) {
	db, mock, cleanup := newViolationRepoMock(t)
	defer cleanup()
	repo := NewViolationRepository(db)

	mock.ExpectQuery(`SELECT to_char\(occurred_at \+ make_interval`).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"date", "count"}).
			AddRow("2026-03-10", 2).
			AddRow("2026-03-11", 1))

	byDate, err := repo.CountByDate(context.Background(), 8)
	require.NoError(t, err)
	require.Equal(t, []models.DateCount{
		{Date: "2026-03-10", Count: 2},
		{Date: "2026-03-11", Count: 1},
	}, byDate)

	mock.ExpectQuery(`SELECT violation_type, COUNT\(\*\) AS count`).
		WillReturnRows(sqlmock.NewRows([]string{"violation_type", "count"}).
			AddRow("Croptop", 2).
			AddRow("No ID", 1))

	byType, err := repo.CountByType(context.Background())
	require.NoError(t, err)
	require.Equal(t, []models.TypeCount{
		{ViolationType: "Croptop", Count: 2},
		{ViolationType: "No ID", Count: 1},
	}, byType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationRepositoryStats(t *testing.T) {
	db, mock, cleanup := newViolationRepoMock(t)
	defer cleanup()
	repo := NewViolationRepository(db)

	rows := sqlmock.NewRows([]string{"total", "pending", "resolved", "not_yet_resolved"}).AddRow(5, 2, 2, 1)
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total`).WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, stats.Total)
	require.Equal(t, 2, stats.Pending)
	require.Equal(t, 2, stats.Resolved)
	require.Equal(t, 1, stats.NotYetResolved)
	require.NoError(t, mock.ExpectationsWereMet())
}
