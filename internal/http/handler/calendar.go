package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/recaller/recur/internal/http/response"
)

// Calendar handles GET /api/v1/calendar.ics.
// Serves upcoming occurrences of all active sources as all-day events
// so the schedule can be subscribed to from any calendar client.
func (s *Server) Calendar(w http.ResponseWriter, r *http.Request) {
	days := s.calendarDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.ValidationError(w, "days", "must be a positive integer")
			return
		}
		days = n
	}

	now := time.Now().UTC()
	entries, err := s.schedule.Upcoming(r.Context(), now, days)
	if err != nil {
		response.InternalError(w, r, err)
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//recaller//recur//EN")

	for _, entry := range entries {
		uid := fmt.Sprintf("%s-%s@recaller", entry.Source.ID, entry.ScheduledOn.Format("20060102"))
		event := cal.AddEvent(uid)
		event.SetDtStampTime(now)
		event.SetAllDayStartAt(entry.ScheduledOn)
		event.SetAllDayEndAt(entry.ScheduledOn.AddDate(0, 0, 1))
		event.SetSummary(entry.Source.Title)
		if entry.Source.AmountCents != nil {
			event.SetDescription(fmt.Sprintf("%d %s", *entry.Source.AmountCents, entry.Source.Currency))
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := cal.SerializeTo(w); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write calendar response", "error", err)
	}
}
