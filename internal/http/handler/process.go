package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/recaller/recur/internal/application/processor"
	"github.com/recaller/recur/internal/http/response"
)

// ProcessRunRequest is the body of POST /api/v1/process-runs.
// An empty body triggers a normal run.
type ProcessRunRequest struct {
	DryRun bool `json:"dry_run"`
}

// ProcessRunResponse reports the outcome of a processing run.
type ProcessRunResponse struct {
	RunAt            string          `json:"run_at"`
	DryRun           bool            `json:"dry_run"`
	SourcesProcessed int             `json:"sources_processed"`
	Materialized     []OccurrenceDTO `json:"materialized"`
	Failures         []RunFailureDTO `json:"failures,omitempty"`
}

// OccurrenceDTO is one (source, date) pair a run produced.
type OccurrenceDTO struct {
	SourceID    string `json:"source_id"`
	ScheduledOn string `json:"scheduled_on"`
}

// RunFailureDTO describes one source that failed during a run.
type RunFailureDTO struct {
	SourceID  string `json:"source_id"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// TriggerProcessRun handles POST /api/v1/process-runs.
// A dry run reports what would be materialized without writing
// anything; a normal run takes the exclusive lock and responds 409
// when another run holds it.
func (s *Server) TriggerProcessRun(w http.ResponseWriter, r *http.Request) {
	var req ProcessRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid JSON")
		return
	}

	holderID := fmt.Sprintf("api-%s", uuid.NewString()[:8])
	report, err := s.runner.RunExclusive(r.Context(), holderID, time.Now().UTC(), req.DryRun)
	if errors.Is(err, processor.ErrRunInProgress) {
		response.Conflict(w, "a processing run is already in progress")
		return
	}
	if err != nil {
		response.InternalError(w, r, err)
		return
	}

	resp := ProcessRunResponse{
		RunAt:            report.RunAt.Format(dateLayout),
		DryRun:           report.DryRun,
		SourcesProcessed: report.SourcesProcessed,
		Materialized:     make([]OccurrenceDTO, 0, len(report.Materialized)),
	}
	for _, occ := range report.Materialized {
		resp.Materialized = append(resp.Materialized, OccurrenceDTO{
			SourceID:    occ.SourceID,
			ScheduledOn: occ.ScheduledOn.Format(dateLayout),
		})
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, RunFailureDTO{
			SourceID:  f.SourceID,
			Error:     f.Err.Error(),
			Retryable: f.Retryable,
		})
	}

	response.OK(w, resp)
}
