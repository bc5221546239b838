package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency represents the cadence of a recurrence rule.
// Value object - immutable string enum.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"

	// FrequencyCustom is a weekly cadence with an explicit weekday mask.
	// Kept distinct from weekly so callers can tell a user-picked mask
	// apart from the default "same weekday as start".
	FrequencyCustom Frequency = "custom"
)

// NewFrequency validates and creates a Frequency.
func NewFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))

	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyYearly, FrequencyCustom:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidFrequency, s)
	}
}

// WeekdaySet is a set of weekdays stored as a bitmask over
// time.Weekday (Sunday=0 .. Saturday=6).
// Value object - the zero value is the empty set.
type WeekdaySet uint8

// NewWeekdaySet builds a set from the given weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// ParseWeekdaySet parses the legacy comma-separated form ("1,3,5")
// where each value is a weekday index in [0,6], 0 = Sunday.
func ParseWeekdaySet(s string) (WeekdaySet, error) {
	var set WeekdaySet
	if strings.TrimSpace(s) == "" {
		return set, nil
	}

	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, part)
		}
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidWeekday, n)
		}
		set |= 1 << uint(n)
	}

	return set, nil
}

// Has reports whether the set contains the given weekday.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// IsEmpty reports whether no weekday is selected.
func (s WeekdaySet) IsEmpty() bool {
	return s == 0
}

// Days returns the selected weekdays in Sunday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// String returns the comma-separated index form ("1,3,5").
func (s WeekdaySet) String() string {
	var b strings.Builder
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !s.Has(d) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", int(d))
	}
	return b.String()
}

// FrequencyRule describes how often and until when an item repeats.
//
// The rule is a value object: callers construct it once, validation
// happens at construction, and the scheduling code never mutates it.
// All dates are date-only (UTC midnight); time of day is ignored.
type FrequencyRule struct {
	Frequency Frequency
	Interval  int // every N periods, >= 1

	// Weekdays applies only to weekly/custom rules and must be
	// non-empty for those frequencies.
	Weekdays WeekdaySet

	StartDate time.Time  // inclusive, first possible occurrence
	EndDate   *time.Time // optional, inclusive

	// LeadTimeDays widens the "upcoming" window for items generated by
	// this rule. Stored and honored by the classifier; notification
	// delivery is owned elsewhere.
	LeadTimeDays int
}

// NewDailyRule creates a rule that repeats every interval days.
func NewDailyRule(start time.Time, interval int) (FrequencyRule, error) {
	r := FrequencyRule{
		Frequency: FrequencyDaily,
		Interval:  interval,
		StartDate: DateOnly(start),
	}
	return r, r.Validate()
}

// NewWeeklyRule creates a rule that repeats every interval weeks on the
// given weekdays. When no weekdays are passed, the start date's weekday
// is used.
func NewWeeklyRule(start time.Time, interval int, days ...time.Weekday) (FrequencyRule, error) {
	set := NewWeekdaySet(days...)
	if set.IsEmpty() {
		set = NewWeekdaySet(DateOnly(start).Weekday())
	}
	r := FrequencyRule{
		Frequency: FrequencyWeekly,
		Interval:  interval,
		Weekdays:  set,
		StartDate: DateOnly(start),
	}
	return r, r.Validate()
}

// NewCustomRule creates a weekly-cadence rule with an explicit weekday
// mask. Unlike NewWeeklyRule, an empty mask is rejected.
func NewCustomRule(start time.Time, interval int, days WeekdaySet) (FrequencyRule, error) {
	r := FrequencyRule{
		Frequency: FrequencyCustom,
		Interval:  interval,
		Weekdays:  days,
		StartDate: DateOnly(start),
	}
	return r, r.Validate()
}

// NewMonthlyRule creates a rule that repeats every interval calendar
// months, clamping to the last valid day of shorter months.
func NewMonthlyRule(start time.Time, interval int) (FrequencyRule, error) {
	r := FrequencyRule{
		Frequency: FrequencyMonthly,
		Interval:  interval,
		StartDate: DateOnly(start),
	}
	return r, r.Validate()
}

// NewQuarterlyRule creates a rule that repeats every interval quarters.
func NewQuarterlyRule(start time.Time, interval int) (FrequencyRule, error) {
	r := FrequencyRule{
		Frequency: FrequencyQuarterly,
		Interval:  interval,
		StartDate: DateOnly(start),
	}
	return r, r.Validate()
}

// NewYearlyRule creates a rule that repeats every interval years,
// clamping Feb 29 starts to Feb 28 in non-leap years.
func NewYearlyRule(start time.Time, interval int) (FrequencyRule, error) {
	r := FrequencyRule{
		Frequency: FrequencyYearly,
		Interval:  interval,
		StartDate: DateOnly(start),
	}
	return r, r.Validate()
}

// WithEndDate returns a copy of the rule that stops producing
// occurrences after the given date (inclusive).
func (r FrequencyRule) WithEndDate(end time.Time) FrequencyRule {
	e := DateOnly(end)
	r.EndDate = &e
	return r
}

// WithLeadTime returns a copy of the rule with the given lead time.
func (r FrequencyRule) WithLeadTime(days int) FrequencyRule {
	r.LeadTimeDays = days
	return r
}

// Validate checks the rule invariants. A rule that fails validation must
// never reach the calculator.
func (r FrequencyRule) Validate() error {
	if _, err := NewFrequency(string(r.Frequency)); err != nil {
		return err
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, r.Interval)
	}
	if r.StartDate.IsZero() {
		return ErrStartDateZero
	}
	if r.LeadTimeDays < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeLeadTime, r.LeadTimeDays)
	}
	if r.EndDate != nil && DateOnly(*r.EndDate).Before(DateOnly(r.StartDate)) {
		return ErrEndBeforeStart
	}

	switch r.Frequency {
	case FrequencyWeekly, FrequencyCustom:
		if r.Weekdays.IsEmpty() {
			return ErrEmptyWeekdaySet
		}
	default:
		// Weekday masks are meaningless for other frequencies; a set
		// left over from a frequency change is ignored, not rejected.
	}

	return nil
}

// Ended reports whether the rule can produce no occurrence after the
// given date.
func (r FrequencyRule) Ended(after time.Time) bool {
	return r.EndDate != nil && !DateOnly(after).Before(DateOnly(*r.EndDate))
}

// DateOnly truncates a timestamp to its UTC calendar date.
// All scheduling math operates on these midnight-UTC values.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
