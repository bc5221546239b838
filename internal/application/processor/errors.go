package processor

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a non-dry run is requested while
// another holder owns the processing lock.
var ErrRunInProgress = errors.New("processing run already in progress")

// RetryableError wraps transient errors: the failure is expected to
// clear on its own and the next scheduled run will pick the source up
// again. All other errors are treated as permanent for the source
// (typically a rule that fails validation) and need owner intervention.
//
// Use for: connection loss, timeouts, temporary locks.
// Don't use for: validation errors, malformed rules.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string { return e.Err.Error() }
func (e RetryableError) Unwrap() error { return e.Err }

// Transient wraps an error to signal the next run should retry it.
func Transient(err error) error {
	return RetryableError{Err: err}
}

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// PanicError records a panic that occurred while processing a single
// source. Panics indicate programming errors; they are reported as a
// source failure without taking down the rest of the batch.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsPanic returns true if the error records a panic.
func IsPanic(err error) bool {
	var panicErr PanicError
	return errors.As(err, &panicErr)
}
