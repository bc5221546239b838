package recurring

import (
	"time"

	"github.com/recaller/recur/internal/domain"
)

// PatternCalculator computes raw occurrence dates for one frequency.
// Implementations ignore the rule's end date; Next applies it.
type PatternCalculator interface {
	// NextAfter returns the first date strictly after the given date
	// that the pattern allows. The rule is assumed validated and the
	// input date normalized to a UTC calendar date.
	NextAfter(rule domain.FrequencyRule, after time.Time) time.Time
}

// GetCalculator returns the calculator for the given frequency, or nil
// for an unknown frequency.
func GetCalculator(f domain.Frequency) PatternCalculator {
	switch f {
	case domain.FrequencyDaily:
		return &DailyCalculator{}
	case domain.FrequencyWeekly, domain.FrequencyCustom:
		return &WeeklyCalculator{}
	case domain.FrequencyMonthly:
		return &MonthlyCalculator{months: 1}
	case domain.FrequencyQuarterly:
		return &MonthlyCalculator{months: 3}
	case domain.FrequencyYearly:
		return &MonthlyCalculator{months: 12}
	default:
		return nil
	}
}

// DailyCalculator generates occurrences every Interval days from the
// rule's start date.
type DailyCalculator struct{}

func (c *DailyCalculator) NextAfter(rule domain.FrequencyRule, after time.Time) time.Time {
	start := rule.StartDate
	if after.Before(start) {
		return start
	}

	days := daysBetween(start, after)
	k := days/rule.Interval + 1
	return start.AddDate(0, 0, k*rule.Interval)
}

// WeeklyCalculator generates occurrences on the rule's weekday mask,
// in weeks whose offset from the start date's week is a multiple of
// Interval. Weeks are anchored on the Sunday of the start date's week,
// matching the 0=Sunday weekday indices of the mask.
type WeeklyCalculator struct{}

func (c *WeeklyCalculator) NextAfter(rule domain.FrequencyRule, after time.Time) time.Time {
	anchor := weekStart(rule.StartDate)

	d := after.AddDate(0, 0, 1)
	if d.Before(rule.StartDate) {
		d = rule.StartDate
	}

	// An aligned week appears every Interval weeks and holds at least
	// one selected weekday, so the scan is bounded.
	limit := 7 * (rule.Interval + 2)
	for i := 0; i < limit; i++ {
		if rule.Weekdays.Has(d.Weekday()) {
			weeks := daysBetween(anchor, weekStart(d)) / 7
			if weeks%rule.Interval == 0 {
				return d
			}
			// Skip ahead to the next aligned week.
			d = weekStart(d).AddDate(0, 0, 7*(rule.Interval-weeks%rule.Interval))
			continue
		}
		d = d.AddDate(0, 0, 1)
	}

	// Unreachable for validated rules.
	return d
}

// MonthlyCalculator generates occurrences every Interval*months calendar
// months from the start date, clamping the day of month to the last
// valid day of the target month (Jan 31 + 1 month = Feb 28/29, and a
// Feb 29 start falls on Feb 28 in non-leap years).
type MonthlyCalculator struct {
	months int // months per period: 1 monthly, 3 quarterly, 12 yearly
}

func (c *MonthlyCalculator) NextAfter(rule domain.FrequencyRule, after time.Time) time.Time {
	start := rule.StartDate
	if after.Before(start) {
		return start
	}

	step := rule.Interval * c.months

	// Lower bound for k from whole-month distance; the loop settles
	// day-level differences. Never overshoots the minimal k because
	// the k-1 candidate lands in a month before the target.
	diff := (after.Year()-start.Year())*12 + int(after.Month()) - int(start.Month())
	k := diff / step
	if k < 0 {
		k = 0
	}

	for {
		next := addMonthsClamped(start, k*step)
		if next.After(after) {
			return next
		}
		k++
	}
}

// addMonthsClamped advances a date by whole months, clamping the day to
// the target month's length instead of rolling over like AddDate.
func addMonthsClamped(anchor time.Time, months int) time.Time {
	total := int(anchor.Month()) - 1 + months
	year := anchor.Year() + total/12
	month := time.Month(total%12 + 1)

	day := anchor.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysBetween returns the whole days from a to b (both UTC midnight).
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// weekStart returns the Sunday starting the week containing d.
func weekStart(d time.Time) time.Time {
	return d.AddDate(0, 0, -int(d.Weekday()))
}
