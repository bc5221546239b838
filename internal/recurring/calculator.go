// Package recurring computes occurrence dates from frequency rules and
// classifies scheduled items against "now".
//
// Both the task and the transaction subsystems call into this package,
// so the date math lives here once instead of being re-derived at each
// call site. Everything is pure: "now" is always an explicit parameter
// and no function reads a clock.
package recurring

import (
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/recaller/recur/internal/domain"
)

// maxExpansion bounds Between against misuse with absurd ranges.
const maxExpansion = 10000

// Next returns the smallest occurrence date of the rule strictly after
// the given date, or None when the rule has ended. When after precedes
// the rule's start date, the first occurrence on or after the start
// date is returned.
//
// The input rule is validated; a malformed rule is an error, not an
// empty result - it can never become valid by retrying.
func Next(rule domain.FrequencyRule, after time.Time) (mo.Option[time.Time], error) {
	if err := rule.Validate(); err != nil {
		return mo.None[time.Time](), err
	}

	calc := GetCalculator(rule.Frequency)
	if calc == nil {
		return mo.None[time.Time](), fmt.Errorf("%w: %s", domain.ErrInvalidFrequency, rule.Frequency)
	}

	next := calc.NextAfter(rule, domain.DateOnly(after))
	if rule.EndDate != nil && next.After(domain.DateOnly(*rule.EndDate)) {
		return mo.None[time.Time](), nil
	}

	return mo.Some(next), nil
}

// Between returns every occurrence of the rule in [from, to], in
// ascending order. The range is inclusive on both ends and honors the
// rule's start and end dates.
func Between(rule domain.FrequencyRule, from, to time.Time) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	to = domain.DateOnly(to)
	cursor := domain.DateOnly(from).AddDate(0, 0, -1)

	var occurrences []time.Time
	for len(occurrences) < maxExpansion {
		next, err := Next(rule, cursor)
		if err != nil {
			return nil, err
		}

		date, ok := next.Get()
		if !ok || date.After(to) {
			break
		}

		occurrences = append(occurrences, date)
		cursor = date
	}

	return occurrences, nil
}
