package domain

import "errors"

// Rule validation errors. A rule failing any of these is never schedulable;
// callers surface them to the rule's owner instead of retrying.
var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidInterval  = errors.New("interval must be at least 1")
	ErrEmptyWeekdaySet  = errors.New("weekly rules require at least one weekday")
	ErrInvalidWeekday   = errors.New("weekday must be in range 0-6")
	ErrEndBeforeStart   = errors.New("end date must not be before start date")
	ErrNegativeLeadTime = errors.New("lead time days must not be negative")
	ErrStartDateZero    = errors.New("start date is required")
)

// Source and instance errors returned by repository implementations.
var (
	ErrSourceNotFound = errors.New("recurrence source not found")
	ErrInvalidID      = errors.New("invalid ID format")
	ErrTitleRequired  = errors.New("title is required")
	ErrTitleTooLong   = errors.New("title must be 255 characters or less")
	ErrInvalidKind    = errors.New("invalid source kind")
	ErrAmountRequired = errors.New("transaction sources require an amount")
)
