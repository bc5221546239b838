package handler

import (
	"fmt"
	"time"

	"github.com/recaller/recur/internal/domain"
)

// dateLayout is the wire format for all date-only fields.
const dateLayout = "2006-01-02"

// RuleDTO is the wire form of a frequency rule.
type RuleDTO struct {
	Frequency    string  `json:"frequency"`
	Interval     int     `json:"interval"`
	Weekdays     []int   `json:"weekdays,omitempty"`
	StartDate    string  `json:"start_date"`
	EndDate      *string `json:"end_date,omitempty"`
	LeadTimeDays int     `json:"lead_time_days,omitempty"`
}

// SourceDTO is the wire form of a recurrence source.
type SourceDTO struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	AmountCents   *int64    `json:"amount_cents,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Rule          RuleDTO   `json:"rule"`
	IsActive      bool      `json:"is_active"`
	LastProcessed *string   `json:"last_processed,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int       `json:"version"`
}

// InstanceDTO is the wire form of a materialized instance.
type InstanceDTO struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	AmountCents *int64    `json:"amount_cents,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	OccursOn    string    `json:"occurs_on"`
	CreatedAt   time.Time `json:"created_at"`
}

func mapRuleToDTO(rule domain.FrequencyRule) RuleDTO {
	dto := RuleDTO{
		Frequency:    string(rule.Frequency),
		Interval:     rule.Interval,
		StartDate:    rule.StartDate.Format(dateLayout),
		LeadTimeDays: rule.LeadTimeDays,
	}
	for _, d := range rule.Weekdays.Days() {
		dto.Weekdays = append(dto.Weekdays, int(d))
	}
	if rule.EndDate != nil {
		end := rule.EndDate.Format(dateLayout)
		dto.EndDate = &end
	}
	return dto
}

func mapSourceToDTO(src *domain.RecurrenceSource) SourceDTO {
	dto := SourceDTO{
		ID:          src.ID,
		Kind:        string(src.Kind),
		Title:       src.Title,
		AmountCents: src.AmountCents,
		Currency:    src.Currency,
		Rule:        mapRuleToDTO(src.Rule),
		IsActive:    src.IsActive,
		CreatedAt:   src.CreatedAt,
		UpdatedAt:   src.UpdatedAt,
		Version:     src.Version,
	}
	if !src.LastProcessed.IsZero() {
		lp := src.LastProcessed.Format(dateLayout)
		dto.LastProcessed = &lp
	}
	return dto
}

func mapInstanceToDTO(inst *domain.Instance) InstanceDTO {
	return InstanceDTO{
		ID:          inst.ID,
		SourceID:    inst.SourceID,
		Kind:        string(inst.Kind),
		Title:       inst.Title,
		AmountCents: inst.AmountCents,
		Currency:    inst.Currency,
		OccursOn:    inst.OccursOn.Format(dateLayout),
		CreatedAt:   inst.CreatedAt,
	}
}

// badDateError reports a date field that is not in YYYY-MM-DD form.
type badDateError struct {
	field string
}

func (e *badDateError) Error() string {
	return e.field + ": invalid date"
}

// ruleFromDTO builds a domain rule from its wire form. Full invariant
// checking happens in the service; only the parts that cannot survive
// the type conversion are validated here.
func ruleFromDTO(dto RuleDTO) (domain.FrequencyRule, error) {
	var rule domain.FrequencyRule

	freq, err := domain.NewFrequency(dto.Frequency)
	if err != nil {
		return rule, err
	}

	if dto.StartDate == "" {
		return rule, domain.ErrStartDateZero
	}
	start, err := parseDate(dto.StartDate)
	if err != nil {
		return rule, &badDateError{field: "start_date"}
	}

	var set domain.WeekdaySet
	for _, n := range dto.Weekdays {
		if n < 0 || n > 6 {
			return rule, fmt.Errorf("%w: %d", domain.ErrInvalidWeekday, n)
		}
		set |= domain.NewWeekdaySet(time.Weekday(n))
	}
	if freq == domain.FrequencyWeekly && set.IsEmpty() {
		set = domain.NewWeekdaySet(start.Weekday())
	}

	rule = domain.FrequencyRule{
		Frequency:    freq,
		Interval:     dto.Interval,
		Weekdays:     set,
		StartDate:    start,
		LeadTimeDays: dto.LeadTimeDays,
	}
	if dto.EndDate != nil {
		end, err := parseDate(*dto.EndDate)
		if err != nil {
			return rule, &badDateError{field: "end_date"}
		}
		rule.EndDate = &end
	}

	return rule, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return domain.DateOnly(t), nil
}
