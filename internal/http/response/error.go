package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/recaller/recur/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []ErrorField `json:"details,omitempty"`
}

// ErrorField describes a field-specific error.
type ErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// ValidationError sends a 400 validation error with field details.
func ValidationError(w http.ResponseWriter, field, issue string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: "validation failed",
			Details: []ErrorField{
				{Field: field, Issue: issue},
			},
		},
	})
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// Conflict sends a 409 Conflict error.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, "CONFLICT", message, http.StatusConflict)
}

// InternalError sends a 500 Internal Server Error.
// Logs the error server-side with request context but returns a generic
// message to the client to prevent information disclosure.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "Internal server error", "error", err)
	}
	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// FromDomainError maps domain errors to HTTP responses.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// Validation errors (400)
	case errors.Is(err, domain.ErrInvalidFrequency):
		ValidationError(w, "frequency", "invalid frequency")
	case errors.Is(err, domain.ErrInvalidInterval):
		ValidationError(w, "interval", "must be at least 1")
	case errors.Is(err, domain.ErrEmptyWeekdaySet):
		ValidationError(w, "weekdays", "at least one weekday required")
	case errors.Is(err, domain.ErrInvalidWeekday):
		ValidationError(w, "weekdays", "weekday index must be between 0 and 6")
	case errors.Is(err, domain.ErrStartDateZero):
		ValidationError(w, "start_date", "required field missing")
	case errors.Is(err, domain.ErrEndBeforeStart):
		ValidationError(w, "end_date", "must not be before start_date")
	case errors.Is(err, domain.ErrNegativeLeadTime):
		ValidationError(w, "lead_time_days", "must not be negative")
	case errors.Is(err, domain.ErrTitleRequired):
		ValidationError(w, "title", "required field missing")
	case errors.Is(err, domain.ErrTitleTooLong):
		ValidationError(w, "title", "must be 255 characters or less")
	case errors.Is(err, domain.ErrInvalidKind):
		ValidationError(w, "kind", "must be task or transaction")
	case errors.Is(err, domain.ErrAmountRequired):
		ValidationError(w, "amount_cents", "required for transaction sources")
	case errors.Is(err, domain.ErrInvalidID):
		ValidationError(w, "id", "invalid ID format")

	// Not found errors (404)
	case errors.Is(err, domain.ErrSourceNotFound):
		NotFound(w, "source")

	// Unknown errors (500) - log server-side, generic message to client
	default:
		InternalError(w, r, err)
	}
}
