package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/recaller/recur/internal/http/handler"
	mw "github.com/recaller/recur/internal/http/middleware"
)

// NewRouter creates and configures the Chi router with all middleware
// and routes.
func NewRouter(server *handler.Server, maxBodyBytes int64) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			slog.ErrorContext(r.Context(), "Failed to write health check response", "error", err)
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Post("/", server.CreateSource)
			r.Get("/", server.ListSources)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", server.GetSource)
				r.Delete("/", server.DeleteSource)
				r.Post("/pause", server.PauseSource)
				r.Post("/resume", server.ResumeSource)
				r.Get("/next", server.NextOccurrence)
				r.Get("/occurrences", server.Occurrences)
				r.Get("/status", server.Status)
				r.Get("/instances", server.Instances)
			})
		})

		r.Post("/process-runs", server.TriggerProcessRun)
		r.Get("/calendar.ics", server.Calendar)
	})

	return r
}
