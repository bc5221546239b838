package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/recaller/recur/internal/application/schedule"
	"github.com/recaller/recur/internal/domain"
	"github.com/recaller/recur/internal/http/response"
)

// CreateSourceRequest is the body of POST /api/v1/sources.
type CreateSourceRequest struct {
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Rule        RuleDTO `json:"rule"`
}

// CreateSource handles POST /api/v1/sources.
func (s *Server) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	rule, err := ruleFromDTO(req.Rule)
	if err != nil {
		s.ruleError(w, r, err)
		return
	}

	src, err := s.schedule.CreateSource(r.Context(), schedule.CreateSourceParams{
		Kind:        req.Kind,
		Title:       req.Title,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Rule:        rule,
	})
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	w.Header().Set("ETag", src.Etag())
	response.Created(w, map[string]any{"source": mapSourceToDTO(src)})
}

// GetSource handles GET /api/v1/sources/{id}.
func (s *Server) GetSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.schedule.GetSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	w.Header().Set("ETag", src.Etag())
	response.OK(w, map[string]any{"source": mapSourceToDTO(src)})
}

// ListSources handles GET /api/v1/sources.
// Query params: kind, active, limit, offset.
func (s *Server) ListSources(w http.ResponseWriter, r *http.Request) {
	var params schedule.ListSourcesParams

	if v := r.URL.Query().Get("kind"); v != "" {
		kind, err := domain.NewSourceKind(v)
		if err != nil {
			response.ValidationError(w, "kind", "must be task or transaction")
			return
		}
		params.Kind = &kind
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			response.ValidationError(w, "active", "must be true or false")
			return
		}
		params.IsActive = &active
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			response.ValidationError(w, "limit", "must be a non-negative integer")
			return
		}
		params.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			response.ValidationError(w, "offset", "must be a non-negative integer")
			return
		}
		params.Offset = offset
	}

	sources, err := s.schedule.ListSources(r.Context(), params)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	dtos := make([]SourceDTO, 0, len(sources))
	for _, src := range sources {
		dtos = append(dtos, mapSourceToDTO(src))
	}
	response.OK(w, map[string]any{"sources": dtos})
}

// DeleteSource handles DELETE /api/v1/sources/{id}.
func (s *Server) DeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.schedule.DeleteSource(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.NoContent(w)
}

// PauseSource handles POST /api/v1/sources/{id}/pause.
func (s *Server) PauseSource(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, false)
}

// ResumeSource handles POST /api/v1/sources/{id}/resume.
func (s *Server) ResumeSource(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, true)
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	if err := s.schedule.SetSourceActive(r.Context(), chi.URLParam(r, "id"), active); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.NoContent(w)
}

// NextOccurrence handles GET /api/v1/sources/{id}/next.
// The optional after query param defaults to today.
func (s *Server) NextOccurrence(w http.ResponseWriter, r *http.Request) {
	after, ok := s.dateParam(w, r, "after", time.Now().UTC())
	if !ok {
		return
	}

	next, err := s.schedule.NextOccurrence(r.Context(), chi.URLParam(r, "id"), after)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	if v, present := next.Get(); present {
		response.OK(w, map[string]any{"next": v.Format(dateLayout)})
		return
	}
	response.OK(w, map[string]any{"next": nil})
}

// Occurrences handles GET /api/v1/sources/{id}/occurrences?from=&to=.
func (s *Server) Occurrences(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.rangeParams(w, r)
	if !ok {
		return
	}

	occurrences, err := s.schedule.Occurrences(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	dates := make([]string, 0, len(occurrences))
	for _, on := range occurrences {
		dates = append(dates, on.Format(dateLayout))
	}
	response.OK(w, map[string]any{"occurrences": dates})
}

// Status handles GET /api/v1/sources/{id}/status.
// The optional now query param defaults to today.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	now, ok := s.dateParam(w, r, "now", time.Now().UTC())
	if !ok {
		return
	}

	status, err := s.schedule.Status(r.Context(), chi.URLParam(r, "id"), now)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"status": string(status)})
}

// Instances handles GET /api/v1/sources/{id}/instances?from=&to=.
func (s *Server) Instances(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.rangeParams(w, r)
	if !ok {
		return
	}

	instances, err := s.schedule.Instances(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	dtos := make([]InstanceDTO, 0, len(instances))
	for _, inst := range instances {
		dtos = append(dtos, mapInstanceToDTO(inst))
	}
	response.OK(w, map[string]any{"instances": dtos})
}

// dateParam reads an optional YYYY-MM-DD query param, falling back to
// the given default. The false return means a response was written.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request, name string, fallback time.Time) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return domain.DateOnly(fallback), true
	}
	t, err := parseDate(v)
	if err != nil {
		response.ValidationError(w, name, "must be a date in YYYY-MM-DD form")
		return time.Time{}, false
	}
	return t, true
}

// rangeParams reads the required from/to query params.
func (s *Server) rangeParams(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" {
		response.ValidationError(w, "from", "required query parameter missing")
		return
	}
	if toStr == "" {
		response.ValidationError(w, "to", "required query parameter missing")
		return
	}

	var err error
	if from, err = parseDate(fromStr); err != nil {
		response.ValidationError(w, "from", "must be a date in YYYY-MM-DD form")
		return
	}
	if to, err = parseDate(toStr); err != nil {
		response.ValidationError(w, "to", "must be a date in YYYY-MM-DD form")
		return
	}
	if to.Before(from) {
		response.ValidationError(w, "to", "must not be before from")
		return
	}
	return from, to, true
}

// ruleError maps rule parse failures, distinguishing bad date formats
// from domain validation errors.
func (s *Server) ruleError(w http.ResponseWriter, r *http.Request, err error) {
	var badDate *badDateError
	if errors.As(err, &badDate) {
		response.ValidationError(w, badDate.field, "must be a date in YYYY-MM-DD form")
		return
	}
	response.FromDomainError(w, r, err)
}
