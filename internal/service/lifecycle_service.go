package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/internal/repository"
	appErrors "github.com/osa-scan/dresscode-api/pkg/errors"
)

const maxNotesLength = 500

// Actor identifies who is performing a lifecycle operation. Authorization
// happened at the boundary; the engine trusts these values.
type Actor struct {
	ID       string
	Username string
	Role     models.UserRole
}

type violationRepository interface {
	Create(ctx context.Context, rec *models.ViolationRecord) error
	GetByID(ctx context.Context, id string) (*models.ViolationRecord, error)
	Update(ctx context.Context, id string, params repository.UpdateViolationParams) (bool, error)
	SetDeleted(ctx context.Context, id string, deleted bool) (bool, error)
	ListBySubject(ctx context.Context, normalizedName string) ([]models.ViolationRecord, error)
	Stats(ctx context.Context) (*models.ViolationStats, error)
}

type lifecyclePublisher interface {
	Publish(event models.LifecycleEvent)
}

// LifecycleService is the sole authority for creating and mutating violation
// records. Every transition it persists is valid, and every user-visible
// mutation emits exactly one lifecycle event after the write lands.
type LifecycleService struct {
	repo      violationRepository
	publisher lifecyclePublisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(repo violationRepository, publisher lifecyclePublisher, validate *validator.Validate, logger *zap.Logger) *LifecycleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		repo:      repo,
		publisher: publisher,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TransitionAllowed is the single place the status graph lives. Any enum
// member may currently follow any other; tightening the graph later means
// changing only this predicate.
func TransitionAllowed(from, to models.ViolationStatus) bool {
	return models.ValidStatus(from) && models.ValidStatus(to)
}

// CreateViolationRequest describes the create payload. Subject accepts a bare
// name string or a structured object.
type CreateViolationRequest struct {
	Subject       models.Subject `json:"subject"`
	ViolationType string         `json:"violation_type" validate:"required"`
	OccurredAt    *time.Time     `json:"occurred_at"`
	Notes         string         `json:"notes" validate:"omitempty,max=500"`
	EvidenceID    *string        `json:"evidence_id"`
}

// Create validates and persists a new pending record, then emits `created`.
// The returned record's ID is immediately usable for lookups.
func (s *LifecycleService) Create(ctx context.Context, req CreateViolationRequest, actor Actor) (*models.ViolationRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid violation payload")
	}
	name := req.Subject.DisplayName()
	violationType := strings.TrimSpace(req.ViolationType)
	if name == "" || violationType == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student name and violation type are required")
	}

	occurredAt := s.now()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	rec := &models.ViolationRecord{
		StudentName:   name,
		YearLevel:     strings.TrimSpace(req.Subject.YearLevel),
		Course:        strings.TrimSpace(req.Subject.Course),
		ViolationType: violationType,
		OccurredAt:    occurredAt,
		Status:        models.ViolationPending,
		EvidenceID:    req.EvidenceID,
		Notes:         strings.TrimSpace(req.Notes),
	}
	if actor.Username != "" {
		submitter := actor.Username
		rec.SubmittedBy = &submitter
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store violation")
	}

	s.annotateOrdinal(ctx, rec)
	s.emit(models.LifecycleEvent{
		Type:       models.EventCreated,
		RecordID:   rec.ID,
		Record:     rec,
		Actor:      actor.Username,
		OriginRole: actor.Role,
	})
	return rec, nil
}

// UpdateViolationRequest describes a partial update; nil fields are left
// untouched.
type UpdateViolationRequest struct {
	StudentName   *string                 `json:"student_name"`
	YearLevel     *string                 `json:"year_level"`
	Course        *string                 `json:"course"`
	ViolationType *string                 `json:"violation_type"`
	OccurredAt    *time.Time              `json:"occurred_at"`
	Status        *models.ViolationStatus `json:"status"`
	Notes         *string                 `json:"notes"`
	EvidenceID    *string                 `json:"evidence_id"`
}

// UpdateFields applies a partial update to a non-deleted record and emits
// `updated`. Soft-deleted records are immutable and report NotFound.
func (s *LifecycleService) UpdateFields(ctx context.Context, id string, req UpdateViolationRequest, actor Actor) (*models.ViolationRecord, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "violation not found")
	}

	params := repository.UpdateViolationParams{}
	changed := make([]string, 0, 8)

	if req.StudentName != nil {
		name := strings.TrimSpace(*req.StudentName)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student name cannot be empty")
		}
		params.StudentName = &name
		changed = append(changed, "student_name")
	}
	if req.YearLevel != nil {
		year := strings.TrimSpace(*req.YearLevel)
		params.YearLevel = &year
		changed = append(changed, "year_level")
	}
	if req.Course != nil {
		course := strings.TrimSpace(*req.Course)
		params.Course = &course
		changed = append(changed, "course")
	}
	if req.ViolationType != nil {
		violationType := strings.TrimSpace(*req.ViolationType)
		if violationType == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "violation type cannot be empty")
		}
		params.ViolationType = &violationType
		changed = append(changed, "violation_type")
	}
	if req.OccurredAt != nil {
		occurredAt := req.OccurredAt.UTC()
		params.OccurredAt = &occurredAt
		changed = append(changed, "occurred_at")
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if len(notes) > maxNotesLength {
			return nil, appErrors.Clone(appErrors.ErrValidation, "notes exceed maximum length")
		}
		params.Notes = &notes
		changed = append(changed, "notes")
	}
	if req.EvidenceID != nil {
		params.EvidenceID = req.EvidenceID
		changed = append(changed, "evidence_id")
	}
	if req.Status != nil {
		next := *req.Status
		if !models.ValidStatus(next) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status value")
		}
		if !TransitionAllowed(current.Status, next) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status transition not allowed")
		}
		params.Status = &next
		changed = append(changed, "status")

		// Entering resolved refreshes the stamp; leaving it keeps the last
		// resolution sticky.
		if next == models.ViolationResolved && current.Status != models.ViolationResolved {
			resolver := actor.Username
			resolvedAt := s.now()
			params.ResolvedBy = &resolver
			params.ResolvedAt = &resolvedAt
			changed = append(changed, "resolved_by", "resolved_at")
		}
	}

	if len(changed) == 0 {
		s.annotateOrdinal(ctx, current)
		return current, nil
	}

	matched, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update violation")
	}
	if !matched {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "violation not found")
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.annotateOrdinal(ctx, updated)
	s.emit(models.LifecycleEvent{
		Type:          models.EventUpdated,
		RecordID:      updated.ID,
		Record:        updated,
		ChangedFields: changed,
		Actor:         actor.Username,
		OriginRole:    actor.Role,
	})
	return updated, nil
}

// SoftDelete hides a record from default views and aggregates. Idempotent:
// deleting an already-deleted record succeeds without emitting again.
func (s *LifecycleService) SoftDelete(ctx context.Context, id string, actor Actor) (*models.ViolationRecord, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	flipped, err := s.repo.SetDeleted(ctx, id, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to soft-delete violation")
	}

	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if flipped {
		s.emit(models.LifecycleEvent{
			Type:       models.EventDeleted,
			RecordID:   rec.ID,
			Record:     rec,
			Actor:      actor.Username,
			OriginRole: actor.Role,
		})
	}
	return rec, nil
}

// Undelete restores a soft-deleted record, the only mutation allowed on one.
func (s *LifecycleService) Undelete(ctx context.Context, id string, actor Actor) (*models.ViolationRecord, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	flipped, err := s.repo.SetDeleted(ctx, id, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to restore violation")
	}

	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.annotateOrdinal(ctx, rec)
	if flipped {
		s.emit(models.LifecycleEvent{
			Type:          models.EventUpdated,
			RecordID:      rec.ID,
			Record:        rec,
			ChangedFields: []string{"is_deleted"},
			Actor:         actor.Username,
			OriginRole:    actor.Role,
		})
	}
	return rec, nil
}

// GetStats returns dashboard counters over non-deleted records only.
func (s *LifecycleService) GetStats(ctx context.Context) (*models.ViolationStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to compute stats")
	}
	return stats, nil
}

func (s *LifecycleService) load(ctx context.Context, id string) (*models.ViolationRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "violation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load violation")
	}
	return rec, nil
}

func (s *LifecycleService) annotateOrdinal(ctx context.Context, rec *models.ViolationRecord) {
	history, err := s.repo.ListBySubject(ctx, models.NormalizeSubjectName(rec.StudentName))
	if err != nil {
		s.logger.Warn("failed to load subject history for ordinal", zap.String("record_id", rec.ID), zap.Error(err))
		return
	}
	ordinals := ComputeOffenseOrdinals(history)
	rec.OffenseOrdinal = ordinals[rec.ID]
}

func (s *LifecycleService) emit(event models.LifecycleEvent) {
	if s.publisher == nil {
		return
	}
	event.EmittedAt = s.now()
	s.publisher.Publish(event)
}

// ComputeOffenseOrdinals derives the 1-based offense number for each record:
// records are ordered by occurrence time (id as tie-break) and numbered per
// normalized subject name. Recomputed on every read so a backdated record
// renumbers later ones; never persisted.
func ComputeOffenseOrdinals(records []models.ViolationRecord) map[string]int {
	ordered := make([]models.ViolationRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsDeleted {
			continue
		}
		ordered = append(ordered, rec)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].OccurredAt.Equal(ordered[j].OccurredAt) {
			return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	counts := make(map[string]int)
	ordinals := make(map[string]int, len(ordered))
	for _, rec := range ordered {
		key := models.NormalizeSubjectName(rec.StudentName)
		counts[key]++
		ordinals[rec.ID] = counts[key]
	}
	return ordinals
}
