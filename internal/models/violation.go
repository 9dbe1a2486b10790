package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ViolationStatus enumerates the review states of a violation record.
type ViolationStatus string

const (
	ViolationPending        ViolationStatus = "pending"
	ViolationResolved       ViolationStatus = "resolved"
	ViolationNotYetResolved ViolationStatus = "not-yet-resolved"
)

// ValidStatus reports whether the value is a member of the status enum.
func ValidStatus(s ViolationStatus) bool {
	switch s {
	case ViolationPending, ViolationResolved, ViolationNotYetResolved:
		return true
	default:
		return false
	}
}

// ViolationRecord is one cited dress-code infraction. OccurredAt is the
// capture time and drives ordering and the "today" window; CreatedAt is the
// row insertion time and the two are stored independently.
type ViolationRecord struct {
	ID            string          `db:"id" json:"id"`
	StudentName   string          `db:"student_name" json:"student_name"`
	YearLevel     string          `db:"year_level" json:"year_level,omitempty"`
	Course        string          `db:"course" json:"course,omitempty"`
	ViolationType string          `db:"violation_type" json:"violation_type"`
	OccurredAt    time.Time       `db:"occurred_at" json:"occurred_at"`
	Status        ViolationStatus `db:"status" json:"status"`
	EvidenceID    *string         `db:"evidence_id" json:"evidence_id,omitempty"`
	EvidenceURL   string          `db:"-" json:"evidence_url,omitempty"`
	SubmittedBy   *string         `db:"submitted_by" json:"submitted_by,omitempty"`
	ResolvedBy    *string         `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	IsDeleted     bool            `db:"is_deleted" json:"is_deleted"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	// OffenseOrdinal is derived at read time, never persisted.
	OffenseOrdinal int `db:"-" json:"offense_ordinal,omitempty"`
}

// Subject is the person cited on a record. Legacy clients send a bare string,
// newer ones a structured object; both normalize to a display name plus
// optional sub-fields.
type Subject struct {
	Name      string `json:"name"`
	Course    string `json:"course,omitempty"`
	YearLevel string `json:"year_level,omitempty"`
}

// UnmarshalJSON accepts either "Anna Cruz" or {"name":"Anna Cruz",...}.
func (s *Subject) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.Name = plain
		return nil
	}
	type alias Subject
	var structured alias
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	*s = Subject(structured)
	return nil
}

// DisplayName returns the trimmed subject name.
func (s Subject) DisplayName() string {
	return strings.TrimSpace(s.Name)
}

// NormalizeSubjectName folds a display name into the grouping key used for
// offense counting: case-insensitive, inner whitespace collapsed.
func NormalizeSubjectName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ViolationFilter captures listing criteria. Zero values mean "no
// constraint"; soft-deleted records are always excluded.
type ViolationFilter struct {
	Status   *ViolationStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Page     int
	PageSize int
}

// ViolationStats are the dashboard counters, non-deleted records only.
type ViolationStats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	Resolved       int `json:"resolved"`
	NotYetResolved int `json:"not_yet_resolved"`
}

// DateCount is one analytics bucket: violations recorded on a campus day.
type DateCount struct {
	Date  string `json:"date" db:"date"`
	Count int    `json:"count" db:"count"`
}

// TypeCount is one analytics bucket: violations of a given type.
type TypeCount struct {
	ViolationType string `json:"violation_type" db:"violation_type"`
	Count         int    `json:"count" db:"count"`
}

// ViolationAnalytics is the dashboard breakdown over non-deleted records:
// totals plus per-day and per-type counts.
type ViolationAnalytics struct {
	Totals ViolationStats `json:"totals"`
	ByDate []DateCount    `json:"by_date"`
	ByType []TypeCount    `json:"by_type"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
