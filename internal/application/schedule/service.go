// Package schedule contains the application service behind the HTTP
// API: source CRUD plus the read-side queries (next occurrence,
// expansion windows, schedule status) built on the recurring package.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/recaller/recur/internal/domain"
	"github.com/recaller/recur/internal/recurring"
)

// Service coordinates source persistence with occurrence math.
type Service struct {
	repo       Repository
	classifier recurring.Classifier
}

// NewService creates a schedule service. horizonDays configures the
// upcoming window of the classifier; zero means the default.
func NewService(repo Repository, horizonDays int) *Service {
	return &Service{
		repo:       repo,
		classifier: recurring.NewClassifier(horizonDays),
	}
}

// CreateSourceParams carries the caller's input for a new source.
type CreateSourceParams struct {
	Kind        string
	Title       string
	AmountCents *int64
	Currency    string
	Rule        domain.FrequencyRule
}

// CreateSource validates and persists a new recurrence source.
func (s *Service) CreateSource(ctx context.Context, params CreateSourceParams) (*domain.RecurrenceSource, error) {
	kind, err := domain.NewSourceKind(params.Kind)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate source ID: %w", err)
	}

	now := time.Now().UTC()
	src := &domain.RecurrenceSource{
		ID:          id.String(),
		Kind:        kind,
		Title:       params.Title,
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
		Rule:        params.Rule,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	if err := src.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateSource(ctx, src); err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	return src, nil
}

// GetSource retrieves a source by ID.
func (s *Service) GetSource(ctx context.Context, id string) (*domain.RecurrenceSource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrInvalidID
	}
	return s.repo.FindSourceByID(ctx, id)
}

// ListSources retrieves sources matching the filters.
func (s *Service) ListSources(ctx context.Context, params ListSourcesParams) ([]*domain.RecurrenceSource, error) {
	return s.repo.ListSources(ctx, params)
}

// SetSourceActive pauses or resumes a source. Paused sources are
// skipped by the processing driver and classify as inactive.
func (s *Service) SetSourceActive(ctx context.Context, id string, active bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrInvalidID
	}
	return s.repo.SetSourceActive(ctx, id, active)
}

// DeleteSource removes a source and its materialized instances.
func (s *Service) DeleteSource(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrInvalidID
	}
	return s.repo.DeleteSource(ctx, id)
}

// NextOccurrence returns the source's first occurrence strictly after
// the given date, or None when its rule has ended.
func (s *Service) NextOccurrence(ctx context.Context, id string, after time.Time) (mo.Option[time.Time], error) {
	src, err := s.GetSource(ctx, id)
	if err != nil {
		return mo.None[time.Time](), err
	}
	return recurring.Next(src.Rule, after)
}

// Occurrences expands the source's rule over [from, to].
func (s *Service) Occurrences(ctx context.Context, id string, from, to time.Time) ([]time.Time, error) {
	src, err := s.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}
	return recurring.Between(src.Rule, from, to)
}

// Status classifies the source against the given "now".
func (s *Service) Status(ctx context.Context, id string, now time.Time) (domain.ScheduleStatus, error) {
	src, err := s.GetSource(ctx, id)
	if err != nil {
		return "", err
	}
	return s.classifier.StatusForSource(src, now)
}

// Instances lists the materialized instances of a source in [from, to].
func (s *Service) Instances(ctx context.Context, id string, from, to time.Time) ([]*domain.Instance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.repo.FindSourceByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListInstances(ctx, id, domain.DateOnly(from), domain.DateOnly(to))
}

// UpcomingEntry pairs a source with one of its upcoming occurrences,
// for calendar rendering.
type UpcomingEntry struct {
	Source      *domain.RecurrenceSource
	ScheduledOn time.Time
}

// Upcoming expands every active source over [now, now+days] for the
// calendar feed.
func (s *Service) Upcoming(ctx context.Context, now time.Time, days int) ([]UpcomingEntry, error) {
	active := true
	sources, err := s.repo.ListSources(ctx, ListSourcesParams{IsActive: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	from := domain.DateOnly(now)
	to := from.AddDate(0, 0, days)

	var entries []UpcomingEntry
	for _, src := range sources {
		occurrences, err := recurring.Between(src.Rule, from, to)
		if err != nil {
			// A stored rule that no longer validates must not break
			// the whole feed; it surfaces via the source's own
			// endpoints instead.
			continue
		}
		for _, on := range occurrences {
			entries = append(entries, UpcomingEntry{Source: src, ScheduledOn: on})
		}
	}

	return entries, nil
}
