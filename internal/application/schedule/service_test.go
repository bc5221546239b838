package schedule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recaller/recur/internal/domain"
)

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	sources   map[string]*domain.RecurrenceSource
	instances []*domain.Instance
}

func newMemRepo() *memRepo {
	return &memRepo{sources: make(map[string]*domain.RecurrenceSource)}
}

func (m *memRepo) CreateSource(_ context.Context, src *domain.RecurrenceSource) error {
	m.sources[src.ID] = src
	return nil
}

func (m *memRepo) FindSourceByID(_ context.Context, id string) (*domain.RecurrenceSource, error) {
	src, ok := m.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	return src, nil
}

func (m *memRepo) ListSources(_ context.Context, params ListSourcesParams) ([]*domain.RecurrenceSource, error) {
	var out []*domain.RecurrenceSource
	for _, src := range m.sources {
		if params.Kind != nil && src.Kind != *params.Kind {
			continue
		}
		if params.IsActive != nil && src.IsActive != *params.IsActive {
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

func (m *memRepo) SetSourceActive(_ context.Context, id string, active bool) error {
	src, ok := m.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	src.IsActive = active
	return nil
}

func (m *memRepo) DeleteSource(_ context.Context, id string) error {
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	delete(m.sources, id)
	return nil
}

func (m *memRepo) ListInstances(_ context.Context, sourceID string, from, to time.Time) ([]*domain.Instance, error) {
	var out []*domain.Instance
	for _, inst := range m.instances {
		if inst.SourceID == sourceID && !inst.OccursOn.Before(from) && !inst.OccursOn.After(to) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustDailyRule(t *testing.T, start time.Time, interval int) domain.FrequencyRule {
	t.Helper()
	rule, err := domain.NewDailyRule(start, interval)
	require.NoError(t, err)
	return rule
}

func TestCreateSource_GeneratesIdentityAndDefaults(t *testing.T) {
	svc := NewService(newMemRepo(), 0)

	src, err := svc.CreateSource(context.Background(), CreateSourceParams{
		Kind:  "task",
		Title: "weekly review",
		Rule:  mustDailyRule(t, date(2024, 1, 1), 1),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, src.ID)
	assert.Equal(t, domain.SourceKindTask, src.Kind)
	assert.True(t, src.IsActive)
	assert.Equal(t, 1, src.Version)
	assert.False(t, src.CreatedAt.IsZero())
}

func TestCreateSource_RejectsInvalid(t *testing.T) {
	svc := NewService(newMemRepo(), 0)

	_, err := svc.CreateSource(context.Background(), CreateSourceParams{
		Kind:  "reminder",
		Title: "x",
		Rule:  mustDailyRule(t, date(2024, 1, 1), 1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	_, err = svc.CreateSource(context.Background(), CreateSourceParams{
		Kind:  "transaction",
		Title: "rent",
		Rule:  mustDailyRule(t, date(2024, 1, 1), 1),
	})
	assert.ErrorIs(t, err, domain.ErrAmountRequired)
}

func TestGetSource_InvalidID(t *testing.T) {
	svc := NewService(newMemRepo(), 0)

	_, err := svc.GetSource(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestNextOccurrence(t *testing.T) {
	svc := NewService(newMemRepo(), 0)
	src, err := svc.CreateSource(context.Background(), CreateSourceParams{
		Kind:  "task",
		Title: "stretch",
		Rule:  mustDailyRule(t, date(2024, 1, 1), 2),
	})
	require.NoError(t, err)

	next, err := svc.NextOccurrence(context.Background(), src.ID, date(2024, 1, 2))
	require.NoError(t, err)
	v, ok := next.Get()
	require.True(t, ok)
	assert.True(t, v.Equal(date(2024, 1, 3)))
}

func TestNextOccurrence_EndedRule(t *testing.T) {
	svc := NewService(newMemRepo(), 0)
	rule := mustDailyRule(t, date(2024, 1, 1), 1).WithEndDate(date(2024, 1, 10))
	src, err := svc.CreateSource(context.Background(), CreateSourceParams{
		Kind:  "task",
		Title: "sprint",
		Rule:  rule,
	})
	require.NoError(t, err)

	next, err := svc.NextOccurrence(context.Background(), src.ID, date(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, next.IsAbsent())
}

func TestStatus_UsesClassifier(t *testing.T) {
	svc := NewService(newMemRepo(), 7)
	src, err := svc.CreateSource(context.Background(), CreateSourceParams{
		Kind:  "task",
		Title: "water the plants",
		Rule:  mustDailyRule(t, date(2024, 6, 1), 1),
	})
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), src.ID, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDueToday, status)

	require.NoError(t, svc.SetSourceActive(context.Background(), src.ID, false))
	status, err = svc.Status(context.Background(), src.ID, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, status)
}

func TestUpcoming_SkipsCorruptRules(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, 7)

	good, err := svc.CreateSource(context.Background(), CreateSourceParams{
		Kind:  "task",
		Title: "daily",
		Rule:  mustDailyRule(t, date(2024, 1, 1), 1),
	})
	require.NoError(t, err)

	// A rule corrupted after persistence must not break the feed.
	bad := *good
	bad.ID = "broken"
	bad.Rule.Interval = 0
	repo.sources["broken"] = &bad

	entries, err := svc.Upcoming(context.Background(), date(2024, 3, 1), 3)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, entry := range entries {
		assert.Equal(t, good.ID, entry.Source.ID)
	}
}

func TestInstances_ValidatesSourceExists(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, 0)

	src, err := svc.CreateSource(context.Background(), CreateSourceParams{
		Kind:  "task",
		Title: "daily",
		Rule:  mustDailyRule(t, date(2024, 1, 1), 1),
	})
	require.NoError(t, err)

	repo.instances = append(repo.instances, &domain.Instance{
		ID:       "inst-1",
		SourceID: src.ID,
		OccursOn: date(2024, 1, 2),
	})

	instances, err := svc.Instances(context.Background(), src.ID, date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, instances, 1)

	_, err = svc.Instances(context.Background(), "018f0000-0000-7000-8000-000000000000", date(2024, 1, 1), date(2024, 1, 31))
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}
