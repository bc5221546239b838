package recurring

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/recaller/recur/internal/domain"
)

// rruleWeekdays maps time.Weekday to rrule weekday constants.
var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// RRule converts a frequency rule to an RFC 5545 recurrence rule for
// calendar-sync consumers.
//
// RRULE has no day-of-month clamping: a monthly rule starting on the
// 31st skips shorter months instead of landing on their last day, so
// exports of such rules diverge from Next in those months. The ICS
// feed avoids this by emitting discrete events computed by Between.
func RRule(rule domain.FrequencyRule) (*rrule.RRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	opt := rrule.ROption{
		Interval: rule.Interval,
		Dtstart:  rule.StartDate,
	}

	switch rule.Frequency {
	case domain.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case domain.FrequencyWeekly, domain.FrequencyCustom:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.Weekdays.Days() {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case domain.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	case domain.FrequencyQuarterly:
		opt.Freq = rrule.MONTHLY
		opt.Interval = rule.Interval * 3
	case domain.FrequencyYearly:
		opt.Freq = rrule.YEARLY
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFrequency, rule.Frequency)
	}

	if rule.EndDate != nil {
		opt.Until = domain.DateOnly(*rule.EndDate)
	}

	return rrule.NewRRule(opt)
}
