package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies which subsystem owns a recurrence source.
// Value object - immutable string enum.
type SourceKind string

const (
	SourceKindTask        SourceKind = "task"
	SourceKindTransaction SourceKind = "transaction"
)

// NewSourceKind validates and creates a SourceKind.
func NewSourceKind(s string) (SourceKind, error) {
	kind := SourceKind(strings.ToLower(strings.TrimSpace(s)))

	switch kind {
	case SourceKindTask, SourceKindTransaction:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidKind, s)
	}
}

// RecurrenceSource is an aggregate root pairing a frequency rule with
// the template data needed to materialize concrete instances.
//
// The owning entity lives in the backend (a Task or a recurring
// Transaction template); this service stores the scheduling view of it:
//  1. The rule says when occurrences fall.
//  2. The driver materializes an Instance per due occurrence.
//  3. LastProcessed is the driver's checkpoint; it advances
//     transactionally with each materialization so re-running a batch
//     never duplicates instances.
type RecurrenceSource struct {
	ID   string
	Kind SourceKind

	// Template fields copied onto each materialized instance.
	Title       string
	AmountCents *int64 // transactions only, minor currency units
	Currency    string // transactions only, ISO 4217

	Rule     FrequencyRule
	IsActive bool

	// LastProcessed is the date of the most recently materialized
	// occurrence. Zero means the source has never been processed.
	LastProcessed time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Optimistic locking version for concurrent update protection
	Version int
}

// Etag returns the entity tag for this source, derived from the
// optimistic-locking version.
func (s *RecurrenceSource) Etag() string {
	return fmt.Sprintf("%d", s.Version)
}

// Validate checks aggregate invariants beyond the embedded rule.
func (s *RecurrenceSource) Validate() error {
	if _, err := NewSourceKind(string(s.Kind)); err != nil {
		return err
	}

	title := strings.TrimSpace(s.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if len(title) > 255 {
		return ErrTitleTooLong
	}

	if s.Kind == SourceKindTransaction && s.AmountCents == nil {
		return ErrAmountRequired
	}

	return s.Rule.Validate()
}

// Occurrence is a single concrete scheduled date derived from a rule.
// Computed on demand and never persisted by the calculator itself.
type Occurrence struct {
	SourceID    string
	ScheduledOn time.Time // date-only
}

// Instance is a materialized occurrence: the Task or Transaction row
// the driver asks the backend to create.
//
// Uniqueness over (SourceID, OccursOn) is what makes materialization
// at-most-once; storage enforces it with a unique constraint.
type Instance struct {
	ID          string
	SourceID    string
	Kind        SourceKind
	Title       string
	AmountCents *int64
	Currency    string
	OccursOn    time.Time // date-only
	CreatedAt   time.Time
}

// ScheduleStatus classifies a scheduled item relative to "now".
// Value object - immutable string enum.
type ScheduleStatus string

const (
	StatusOverdue   ScheduleStatus = "overdue"
	StatusDueToday  ScheduleStatus = "due_today"
	StatusUpcoming  ScheduleStatus = "upcoming"
	StatusScheduled ScheduleStatus = "scheduled"
	StatusInactive  ScheduleStatus = "inactive"
)
