// Package processor implements the batch driver that turns due
// occurrences of active recurrence sources into concrete task and
// transaction instances.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/recaller/recur/internal/domain"
	"github.com/recaller/recur/internal/recurring"
)

// Default limits for a processing run.
const (
	DefaultMaxPerSource = 1000            // occurrences per source per run
	DefaultLockLease    = 5 * time.Minute // exclusive run lock lease
)

// Driver walks all active recurrence sources and materializes every
// occurrence that falls in (last_processed, now].
//
// A failure on one source never aborts the batch: the source is
// recorded in the report and processing continues. At-most-once
// materialization is delegated to Repository.MaterializeInstance.
type Driver struct {
	repo         Repository
	maxPerSource int
	lockLease    time.Duration

	materialized metric.Int64Counter
	failures     metric.Int64Counter
}

// Option is a functional option for configuring Driver.
type Option func(*Driver)

// WithMaxPerSource caps how many occurrences a single source may
// materialize in one run. The cap guards against a misconfigured rule
// with a far-past start date flooding a run.
func WithMaxPerSource(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxPerSource = n
		}
	}
}

// WithLockLease sets the lease duration for the exclusive run lock.
func WithLockLease(lease time.Duration) Option {
	return func(d *Driver) {
		if lease > 0 {
			d.lockLease = lease
		}
	}
}

// NewDriver creates a driver with the given repository and options.
func NewDriver(repo Repository, opts ...Option) *Driver {
	d := &Driver{
		repo:         repo,
		maxPerSource: DefaultMaxPerSource,
		lockLease:    DefaultLockLease,
	}

	for _, opt := range opts {
		opt(d)
	}

	meter := otel.Meter("github.com/recaller/recur/internal/application/processor")
	var err error
	if d.materialized, err = meter.Int64Counter("recur.processor.instances_materialized",
		metric.WithDescription("Instances materialized from due occurrences")); err != nil {
		slog.Warn("failed to create materialized counter", "error", err)
	}
	if d.failures, err = meter.Int64Counter("recur.processor.source_failures",
		metric.WithDescription("Sources that failed during a processing run")); err != nil {
		slog.Warn("failed to create failures counter", "error", err)
	}

	return d
}

// SourceFailure records one source that failed during a run.
type SourceFailure struct {
	SourceID  string
	Err       error
	Retryable bool
}

// BatchReport summarizes a processing run.
type BatchReport struct {
	RunAt            time.Time
	DryRun           bool
	SourcesProcessed int

	// Materialized lists the occurrences that were (or, in a dry run,
	// would be) turned into instances.
	Materialized []domain.Occurrence

	Failures []SourceFailure
}

// HasFailures reports whether any source failed during the run.
func (r *BatchReport) HasFailures() bool {
	return len(r.Failures) > 0
}

// Run executes a single processing batch against the given "now".
//
// With dryRun set, the report lists the occurrences that would be
// created and nothing is written. Cancellation is checked between
// sources; progress already materialized is kept, never rolled back.
func (d *Driver) Run(ctx context.Context, now time.Time, dryRun bool) (*BatchReport, error) {
	today := domain.DateOnly(now)
	report := &BatchReport{RunAt: today, DryRun: dryRun}

	sources, err := d.repo.FindActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}

	slog.InfoContext(ctx, "processing run started",
		"sources", len(sources), "run_at", today.Format(time.DateOnly), "dry_run", dryRun)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			// Cooperative cancellation between sources; committed
			// progress stands.
			return report, err
		}

		occurrences, err := d.processSource(ctx, src, today, dryRun)
		report.SourcesProcessed++
		report.Materialized = append(report.Materialized, occurrences...)

		if err != nil {
			report.Failures = append(report.Failures, SourceFailure{
				SourceID:  src.ID,
				Err:       err,
				Retryable: IsRetryable(err),
			})
			if d.failures != nil {
				d.failures.Add(ctx, 1, metric.WithAttributes(
					attribute.String("kind", string(src.Kind))))
			}
			slog.ErrorContext(ctx, "source failed during processing run",
				"source_id", src.ID, "error", err, "retryable", IsRetryable(err))
		}
	}

	slog.InfoContext(ctx, "processing run finished",
		"materialized", len(report.Materialized), "failures", len(report.Failures))

	return report, nil
}

// RunExclusive is Run under the exclusive processing lock. Dry runs
// have no side effects and skip the lock. Returns ErrRunInProgress
// when another holder owns the lock.
func (d *Driver) RunExclusive(ctx context.Context, holderID string, now time.Time, dryRun bool) (*BatchReport, error) {
	if dryRun {
		return d.Run(ctx, now, dryRun)
	}

	release, acquired, err := d.repo.TryAcquireRunLock(ctx, holderID, d.lockLease)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer release()

	return d.Run(ctx, now, dryRun)
}

// processSource materializes due occurrences for one source, with
// panic recovery so a programming error in the date math is contained
// to this source.
func (d *Driver) processSource(ctx context.Context, src *domain.RecurrenceSource, today time.Time, dryRun bool) (occurrences []domain.Occurrence, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r, StackTrace: string(debug.Stack())}
		}
	}()

	// Never re-examine dates at or before the checkpoint. A source
	// that has never been processed starts just before its rule's
	// start date so the first occurrence is included.
	cursor := domain.DateOnly(src.LastProcessed)
	if src.LastProcessed.IsZero() {
		cursor = src.Rule.StartDate.AddDate(0, 0, -1)
	}

	for range d.maxPerSource {
		next, err := recurring.Next(src.Rule, cursor)
		if err != nil {
			// Malformed rule: permanent, surfaced to the rule's owner.
			return occurrences, err
		}

		due, ok := next.Get()
		if !ok || due.After(today) {
			return occurrences, nil
		}

		if !dryRun {
			instance, err := newInstance(src, due)
			if err != nil {
				return occurrences, err
			}

			created, err := d.repo.MaterializeInstance(ctx, instance)
			if err != nil {
				return occurrences, err
			}
			if created {
				if d.materialized != nil {
					d.materialized.Add(ctx, 1, metric.WithAttributes(
						attribute.String("kind", string(src.Kind))))
				}
				slog.InfoContext(ctx, "materialized instance",
					"source_id", src.ID, "occurs_on", due.Format(time.DateOnly))
			}
		}

		occurrences = append(occurrences, domain.Occurrence{
			SourceID:    src.ID,
			ScheduledOn: due,
		})
		cursor = due
	}

	slog.WarnContext(ctx, "per-source occurrence cap reached",
		"source_id", src.ID, "cap", d.maxPerSource)
	return occurrences, nil
}

// newInstance builds the instance row for one due occurrence.
func newInstance(src *domain.RecurrenceSource, occursOn time.Time) (*domain.Instance, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate instance ID: %w", err)
	}

	return &domain.Instance{
		ID:          id.String(),
		SourceID:    src.ID,
		Kind:        src.Kind,
		Title:       src.Title,
		AmountCents: src.AmountCents,
		Currency:    src.Currency,
		OccursOn:    occursOn,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
