package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/osa-scan/dresscode-api/internal/models"
)

const violationColumns = `id, student_name, year_level, course, violation_type, occurred_at, status, evidence_id, submitted_by, resolved_by, resolved_at, notes, is_deleted, created_at, updated_at`

// ViolationRepository manages persistence for violation records.
type ViolationRepository struct {
	db *sqlx.DB
}

// NewViolationRepository constructs a new repository.
func NewViolationRepository(db *sqlx.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

// Create inserts a new violation record.
func (r *ViolationRepository) Create(ctx context.Context, rec *models.ViolationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	query := `INSERT INTO violations (id, student_name, year_level, course, violation_type, occurred_at, status, evidence_id, submitted_by, resolved_by, resolved_at, notes, is_deleted, created_at, updated_at)
VALUES (:id, :student_name, :year_level, :course, :violation_type, :occurred_at, :status, :evidence_id, :submitted_by, :resolved_by, :resolved_at, :notes, :is_deleted, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("create violation: %w", err)
	}
	return nil
}

// GetByID returns a single record, soft-deleted ones included.
func (r *ViolationRepository) GetByID(ctx context.Context, id string) (*models.ViolationRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM violations WHERE id = $1 LIMIT 1", violationColumns)
	var rec models.ViolationRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get violation: %w", err)
	}
	return &rec, nil
}

// List returns non-deleted records per the provided filter with total count.
func (r *ViolationRepository) List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationRecord, int, error) {
	base := "FROM violations"
	where := []string{"is_deleted = FALSE"}
	args := []interface{}{}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("occurred_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		where = append(where, fmt.Sprintf("(student_name ILIKE $%d OR violation_type ILIKE $%d OR course ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT %d OFFSET %d",
		violationColumns, base, whereClause, size, offset)
	var records []models.ViolationRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list violations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count violations: %w", err)
	}
	return records, total, nil
}

// ListBySubject returns the full non-deleted history for a subject grouping
// key, ordered for offense numbering. The SQL expression must fold names the
// same way NormalizeSubjectName does: lowercase, whitespace collapsed and
// trimmed, so padded rows still join their subject's history.
func (r *ViolationRepository) ListBySubject(ctx context.Context, normalizedName string) ([]models.ViolationRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM violations
WHERE is_deleted = FALSE AND btrim(LOWER(regexp_replace(student_name, '\s+', ' ', 'g'))) = $1
ORDER BY occurred_at ASC, id ASC`, violationColumns)
	var records []models.ViolationRecord
	if err := r.db.SelectContext(ctx, &records, query, normalizedName); err != nil {
		return nil, fmt.Errorf("list violations by subject: %w", err)
	}
	return records, nil
}

// UpdateViolationParams carries the partial update; nil fields are untouched.
type UpdateViolationParams struct {
	StudentName   *string
	YearLevel     *string
	Course        *string
	ViolationType *string
	OccurredAt    *time.Time
	Status        *models.ViolationStatus
	EvidenceID    *string
	ResolvedBy    *string
	ResolvedAt    *time.Time
	Notes         *string
}

// Update applies the patch to a non-deleted record in one statement and
// reports whether a row matched. Soft-deleted rows never match, which is how
// the immutability policy is enforced at the store.
func (r *ViolationRepository) Update(ctx context.Context, id string, params UpdateViolationParams) (bool, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	if params.StudentName != nil {
		add("student_name", *params.StudentName)
	}
	if params.YearLevel != nil {
		add("year_level", *params.YearLevel)
	}
	if params.Course != nil {
		add("course", *params.Course)
	}
	if params.ViolationType != nil {
		add("violation_type", *params.ViolationType)
	}
	if params.OccurredAt != nil {
		add("occurred_at", *params.OccurredAt)
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.EvidenceID != nil {
		add("evidence_id", *params.EvidenceID)
	}
	if params.ResolvedBy != nil {
		add("resolved_by", *params.ResolvedBy)
	}
	if params.ResolvedAt != nil {
		add("resolved_at", *params.ResolvedAt)
	}
	if params.Notes != nil {
		add("notes", *params.Notes)
	}
	if len(sets) == 0 {
		return true, nil
	}
	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE violations SET %s WHERE id = $%d AND is_deleted = FALSE",
		strings.Join(sets, ", "), len(args)+1)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update violation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update violation rows: %w", err)
	}
	return affected > 0, nil
}

// SetDeleted flips the soft-delete flag and reports whether the flag actually
// changed, so callers can keep delete idempotent without emitting twice.
func (r *ViolationRepository) SetDeleted(ctx context.Context, id string, deleted bool) (bool, error) {
	query := `UPDATE violations SET is_deleted = $2, updated_at = $3 WHERE id = $1 AND is_deleted = NOT $2`
	res, err := r.db.ExecContext(ctx, query, id, deleted, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set violation deleted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set violation deleted rows: %w", err)
	}
	return affected > 0, nil
}

// Stats aggregates dashboard counters over non-deleted records only.
func (r *ViolationRepository) Stats(ctx context.Context) (*models.ViolationStats, error) {
	query := `SELECT COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),0) AS pending,
        COALESCE(SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END),0) AS resolved,
        COALESCE(SUM(CASE WHEN status = 'not-yet-resolved' THEN 1 ELSE 0 END),0) AS not_yet_resolved
FROM violations
WHERE is_deleted = FALSE`
	var stats models.ViolationStats
	if err := r.db.QueryRowxContext(ctx, query).Scan(&stats.Total, &stats.Pending, &stats.Resolved, &stats.NotYetResolved); err != nil {
		return nil, fmt.Errorf("violation stats: %w", err)
	}
	return &stats, nil
}

// CountByDate buckets non-deleted records per campus day. The offset shifts
// timestamps into the campus timezone before truncating to a date.
func (r *ViolationRepository) CountByDate(ctx context.Context, offsetHours int) ([]models.DateCount, error) {
	query := `SELECT to_char(occurred_at + make_interval(hours => $1), 'YYYY-MM-DD') AS date, COUNT(*) AS count
FROM violations
WHERE is_deleted = FALSE
GROUP BY 1
ORDER BY 1 ASC`
	var counts []models.DateCount
	if err := r.db.SelectContext(ctx, &counts, query, offsetHours); err != nil {
		return nil, fmt.Errorf("count violations by date: %w", err)
	}
	return counts, nil
}

// CountByType buckets non-deleted records per violation type, busiest first.
func (r *ViolationRepository) CountByType(ctx context.Context) ([]models.TypeCount, error) {
	query := `SELECT violation_type, COUNT(*) AS count
FROM violations
WHERE is_deleted = FALSE
GROUP BY violation_type
ORDER BY count DESC, violation_type ASC`
	var counts []models.TypeCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count violations by type: %w", err)
	}
	return counts, nil
}

// ListBetween returns non-deleted records whose occurred_at falls in the
// half-open window [from, to), newest first. Backs the "today" view.
func (r *ViolationRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.ViolationRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM violations WHERE is_deleted = FALSE AND occurred_at >= $1 AND occurred_at < $2 ORDER BY occurred_at DESC, id DESC", violationColumns)
	var records []models.ViolationRecord
	if err := r.db.SelectContext(ctx, &records, query, from, to); err != nil {
		return nil, fmt.Errorf("list violations between: %w", err)
	}
	return records, nil
}
