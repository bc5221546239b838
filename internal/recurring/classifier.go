package recurring

import (
	"time"

	"github.com/recaller/recur/internal/domain"
)

// DefaultHorizonDays is the default look-ahead window for classifying
// an item as upcoming rather than merely scheduled.
const DefaultHorizonDays = 7

// Classifier turns a due date plus "now" into a ScheduleStatus.
// Comparisons are by calendar date only, so a task due today at 23:59
// is never overdue at 9am.
type Classifier struct {
	HorizonDays int
}

// NewClassifier creates a classifier with the given horizon.
// A non-positive horizon falls back to DefaultHorizonDays.
func NewClassifier(horizonDays int) Classifier {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return Classifier{HorizonDays: horizonDays}
}

// Classify returns the status of an item with the given due date.
// A nil due date means no date is set and yields StatusScheduled.
func (c Classifier) Classify(dueDate *time.Time, now time.Time) domain.ScheduleStatus {
	return c.classify(dueDate, now, 0)
}

// ClassifyItem is Classify for items that can be completed. Completed
// items are outside the schedule status enum entirely; the second
// return value is false for them and the caller keeps its own
// "completed" presentation.
func (c Classifier) ClassifyItem(dueDate *time.Time, now time.Time, completed bool) (domain.ScheduleStatus, bool) {
	if completed {
		return "", false
	}
	return c.Classify(dueDate, now), true
}

// StatusForSource classifies a recurrence source by its next
// occurrence on or after today. The rule's lead time widens the
// upcoming window for this source only.
func (c Classifier) StatusForSource(src *domain.RecurrenceSource, now time.Time) (domain.ScheduleStatus, error) {
	if !src.IsActive {
		return domain.StatusInactive, nil
	}

	next, err := Next(src.Rule, domain.DateOnly(now).AddDate(0, 0, -1))
	if err != nil {
		return "", err
	}

	date, ok := next.Get()
	if !ok {
		// Rule has ended; nothing will ever be due again.
		return domain.StatusInactive, nil
	}

	return c.classify(&date, now, src.Rule.LeadTimeDays), nil
}

// classify applies the status rules in order, first match wins.
func (c Classifier) classify(dueDate *time.Time, now time.Time, extraHorizonDays int) domain.ScheduleStatus {
	if dueDate == nil {
		return domain.StatusScheduled
	}

	due := domain.DateOnly(*dueDate)
	today := domain.DateOnly(now)

	switch {
	case due.Before(today):
		return domain.StatusOverdue
	case due.Equal(today):
		return domain.StatusDueToday
	case !due.After(today.AddDate(0, 0, c.HorizonDays+extraHorizonDays)):
		return domain.StatusUpcoming
	default:
		return domain.StatusScheduled
	}
}
