package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the driver on a cron schedule.
//
// Multiple scheduler processes may run against the same database; the
// driver's exclusive run lock ensures only one of them processes a
// given tick. Runs that find the lock held are skipped, not queued.
type Scheduler struct {
	driver           *Driver
	schedule         cron.Schedule
	holderID         string
	operationTimeout time.Duration
	wg               sync.WaitGroup
}

// SchedulerOption is a functional option for configuring Scheduler.
type SchedulerOption func(*Scheduler)

// WithOperationTimeout sets the timeout for a single processing run.
func WithOperationTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.operationTimeout = d
		}
	}
}

// NewScheduler creates a scheduler that runs the driver per the given
// cron expression (standard five-field syntax, plus @hourly etc).
func NewScheduler(driver *Driver, cronExpr string, opts ...SchedulerOption) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	s := &Scheduler{
		driver:           driver,
		schedule:         schedule,
		holderID:         fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.NewString()[:8]),
		operationTimeout: 10 * time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start runs the scheduler until the context is cancelled. On shutdown
// it stops scheduling new runs and waits for the in-flight run to
// finish. A run already past the point of materializing instances is
// never rolled back.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "processing scheduler started", "holder_id", s.holderID)

	// Process immediately on startup to catch up after downtime.
	s.runOnce()

	for {
		next := s.schedule.Next(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.runOnce()
			}()
		case <-ctx.Done():
			timer.Stop()
			slog.InfoContext(ctx, "shutdown requested, waiting for in-flight run...")
			s.wg.Wait()
			slog.InfoContext(ctx, "processing scheduler stopped gracefully")
			return nil
		}
	}
}

// runOnce executes a single exclusive processing run with a timeout.
// The run context is detached from the scheduler's so that shutdown
// lets the current run complete instead of aborting it mid-source.
func (s *Scheduler) runOnce() {
	opCtx, cancel := context.WithTimeout(context.Background(), s.operationTimeout)
	defer cancel()

	report, err := s.driver.RunExclusive(opCtx, s.holderID, time.Now().UTC(), false)
	if errors.Is(err, ErrRunInProgress) {
		slog.InfoContext(opCtx, "run lock held elsewhere, skipping tick")
		return
	}
	if err != nil {
		slog.ErrorContext(opCtx, "processing run failed", "error", err)
		return
	}

	if report.HasFailures() {
		for _, failure := range report.Failures {
			slog.WarnContext(opCtx, "source failed",
				"source_id", failure.SourceID,
				"error", failure.Err,
				"retryable", failure.Retryable)
		}
	}
}
