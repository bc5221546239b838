package handler

import (
	"context"
	"time"

	"github.com/recaller/recur/internal/application/processor"
	"github.com/recaller/recur/internal/application/schedule"
)

// ProcessRunner triggers a processing batch; satisfied by
// processor.Driver.
type ProcessRunner interface {
	RunExclusive(ctx context.Context, holderID string, now time.Time, dryRun bool) (*processor.BatchReport, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	schedule     *schedule.Service
	runner       ProcessRunner
	calendarDays int
}

// NewServer creates a new HTTP handler server. calendarDays is the
// default span of the iCalendar feed; zero means 30.
func NewServer(scheduleService *schedule.Service, runner ProcessRunner, calendarDays int) *Server {
	if calendarDays <= 0 {
		calendarDays = 30
	}
	return &Server{
		schedule:     scheduleService,
		runner:       runner,
		calendarDays: calendarDays,
	}
}
