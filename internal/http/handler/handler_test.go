package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recaller/recur/internal/application/processor"
	"github.com/recaller/recur/internal/application/schedule"
	"github.com/recaller/recur/internal/domain"
	apihttp "github.com/recaller/recur/internal/http"
	"github.com/recaller/recur/internal/http/handler"
)

// fakeRepo is an in-memory schedule.Repository.
type fakeRepo struct {
	sources   map[string]*domain.RecurrenceSource
	instances []*domain.Instance
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sources: make(map[string]*domain.RecurrenceSource)}
}

func (f *fakeRepo) CreateSource(_ context.Context, src *domain.RecurrenceSource) error {
	f.sources[src.ID] = src
	return nil
}

func (f *fakeRepo) FindSourceByID(_ context.Context, id string) (*domain.RecurrenceSource, error) {
	src, ok := f.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	return src, nil
}

func (f *fakeRepo) ListSources(_ context.Context, params schedule.ListSourcesParams) ([]*domain.RecurrenceSource, error) {
	var out []*domain.RecurrenceSource
	for _, src := range f.sources {
		if params.Kind != nil && src.Kind != *params.Kind {
			continue
		}
		if params.IsActive != nil && src.IsActive != *params.IsActive {
			continue
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) SetSourceActive(_ context.Context, id string, active bool) error {
	src, ok := f.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	src.IsActive = active
	src.Version++
	return nil
}

func (f *fakeRepo) DeleteSource(_ context.Context, id string) error {
	if _, ok := f.sources[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	delete(f.sources, id)
	return nil
}

func (f *fakeRepo) ListInstances(_ context.Context, sourceID string, from, to time.Time) ([]*domain.Instance, error) {
	var out []*domain.Instance
	for _, inst := range f.instances {
		if inst.SourceID == sourceID && !inst.OccursOn.Before(from) && !inst.OccursOn.After(to) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// fakeRunner is a canned ProcessRunner.
type fakeRunner struct {
	report *processor.BatchReport
	err    error
}

func (f *fakeRunner) RunExclusive(_ context.Context, _ string, _ time.Time, _ bool) (*processor.BatchReport, error) {
	return f.report, f.err
}

func newTestRouter(repo *fakeRepo, runner handler.ProcessRunner) http.Handler {
	svc := schedule.NewService(repo, 7)
	srv := handler.NewServer(svc, runner, 30)
	return apihttp.NewRouter(srv, 1<<20)
}

func createSourceBody(t *testing.T, override func(m map[string]any)) *bytes.Buffer {
	t.Helper()

	body := map[string]any{
		"kind":  "task",
		"title": "water the plants",
		"rule": map[string]any{
			"frequency":  "daily",
			"interval":   2,
			"start_date": "2024-01-01",
		},
	}
	if override != nil {
		override(body)
	}
	buf := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buf).Encode(body))
	return buf
}

func doCreateSource(t *testing.T, router http.Handler, body *bytes.Buffer) map[string]any {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sources", body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["source"]
}

func TestCreateSource(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sources",
		createSourceBody(t, nil)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("ETag"))

	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	src := resp["source"]
	assert.NotEmpty(t, src["id"])
	assert.Equal(t, "task", src["kind"])
	assert.Equal(t, "water the plants", src["title"])
	assert.Equal(t, true, src["is_active"])

	rule := src["rule"].(map[string]any)
	assert.Equal(t, "daily", rule["frequency"])
	assert.Equal(t, float64(2), rule["interval"])
	assert.Equal(t, "2024-01-01", rule["start_date"])
}

func TestCreateSource_InvalidJSON(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sources",
		bytes.NewBufferString("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSource_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		override func(m map[string]any)
		field    string
	}{
		{
			name: "transaction without amount",
			override: func(m map[string]any) {
				m["kind"] = "transaction"
			},
			field: "amount_cents",
		},
		{
			name: "unknown kind",
			override: func(m map[string]any) {
				m["kind"] = "reminder"
			},
			field: "kind",
		},
		{
			name: "zero interval",
			override: func(m map[string]any) {
				m["rule"].(map[string]any)["interval"] = 0
			},
			field: "interval",
		},
		{
			name: "malformed start date",
			override: func(m map[string]any) {
				m["rule"].(map[string]any)["start_date"] = "01/01/2024"
			},
			field: "start_date",
		},
		{
			name: "end before start",
			override: func(m map[string]any) {
				m["rule"].(map[string]any)["end_date"] = "2023-12-31"
			},
			field: "end_date",
		},
		{
			name: "weekday out of range",
			override: func(m map[string]any) {
				m["rule"].(map[string]any)["frequency"] = "custom"
				m["rule"].(map[string]any)["weekdays"] = []int{7}
			},
			field: "weekdays",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(newFakeRepo(), &fakeRunner{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sources",
				createSourceBody(t, tc.override)))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp struct {
				Error struct {
					Code    string `json:"code"`
					Details []struct {
						Field string `json:"field"`
					} `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
			require.Len(t, resp.Error.Details, 1)
			assert.Equal(t, tc.field, resp.Error.Details[0].Field)
		})
	}
}

func TestGetSource_NotFound(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/sources/0194e5a0-0000-7000-8000-000000000000", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSource_InvalidID(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sources/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNextOccurrence(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})
	src := doCreateSource(t, router, createSourceBody(t, nil))
	id := src["id"].(string)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/sources/"+id+"/next?after=2024-01-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-01-03", resp["next"])
}

func TestNextOccurrence_EndedRuleIsNull(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})
	src := doCreateSource(t, router, createSourceBody(t, func(m map[string]any) {
		m["rule"].(map[string]any)["end_date"] = "2024-01-05"
	}))
	id := src["id"].(string)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/sources/"+id+"/next?after=2024-02-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp["next"])
}

func TestOccurrences(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})
	src := doCreateSource(t, router, createSourceBody(t, nil))
	id := src["id"].(string)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/sources/"+id+"/occurrences?from=2024-01-01&to=2024-01-07", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2024-01-01", "2024-01-03", "2024-01-05", "2024-01-07"}, resp["occurrences"])
}

func TestOccurrences_MissingRange(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})
	src := doCreateSource(t, router, createSourceBody(t, nil))
	id := src["id"].(string)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/sources/"+id+"/occurrences?from=2024-01-01", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus_PausedSourceIsInactive(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})
	src := doCreateSource(t, router, createSourceBody(t, nil))
	id := src["id"].(string)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/sources/"+id+"/pause", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/sources/"+id+"/status?now=2024-01-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "inactive", resp["status"])
}

func TestListSources_KindFilter(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})
	doCreateSource(t, router, createSourceBody(t, nil))
	doCreateSource(t, router, createSourceBody(t, func(m map[string]any) {
		m["kind"] = "transaction"
		m["amount_cents"] = 1299
		m["currency"] = "USD"
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sources?kind=transaction", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp["sources"], 1)
	assert.Equal(t, "transaction", resp["sources"][0]["kind"])
	assert.Equal(t, float64(1299), resp["sources"][0]["amount_cents"])
}

func TestDeleteSource(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{})
	src := doCreateSource(t, router, createSourceBody(t, nil))
	id := src["id"].(string)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sources/"+id, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sources/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerProcessRun(t *testing.T) {
	runner := &fakeRunner{report: &processor.BatchReport{
		RunAt:            time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		SourcesProcessed: 1,
		Materialized: []domain.Occurrence{
			{SourceID: "src-1", ScheduledOn: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		},
	}}
	router := newTestRouter(newFakeRepo(), runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/process-runs",
		bytes.NewBufferString(`{"dry_run":false}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RunAt            string `json:"run_at"`
		SourcesProcessed int    `json:"sources_processed"`
		Materialized     []struct {
			SourceID    string `json:"source_id"`
			ScheduledOn string `json:"scheduled_on"`
		} `json:"materialized"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-01-05", resp.RunAt)
	assert.Equal(t, 1, resp.SourcesProcessed)
	require.Len(t, resp.Materialized, 1)
	assert.Equal(t, "src-1", resp.Materialized[0].SourceID)
	assert.Equal(t, "2024-01-05", resp.Materialized[0].ScheduledOn)
}

func TestTriggerProcessRun_Conflict(t *testing.T) {
	router := newTestRouter(newFakeRepo(), &fakeRunner{err: processor.ErrRunInProgress})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/process-runs", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCalendar(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo, &fakeRunner{})
	doCreateSource(t, router, createSourceBody(t, func(m map[string]any) {
		m["title"] = "weekly review"
		m["rule"].(map[string]any)["interval"] = 1
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/calendar.ics?days=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "SUMMARY:weekly review")
}
