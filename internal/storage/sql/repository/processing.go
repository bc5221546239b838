package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/recaller/recur/internal/domain"
)

// runLockName is the single row in run_locks guarding processing runs.
const runLockName = "processing_run"

// FindActiveSources retrieves all active sources in stable order.
func (s *Store) FindActiveSources(ctx context.Context) ([]*domain.RecurrenceSource, error) {
	query := `SELECT ` + sourceColumns + `
FROM recurrence_sources
WHERE is_active = ?
ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), true)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sources: %w", err)
	}
	defer rows.Close()

	var sources []*domain.RecurrenceSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}

	return sources, nil
}

const insertInstanceQuery = `
INSERT INTO instances (
	id, source_id, kind, title, amount_cents, currency, occurs_on, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source_id, occurs_on) DO NOTHING`

const advanceCheckpointQuery = `
UPDATE recurrence_sources
SET last_processed = ?, updated_at = ?
WHERE id = ? AND (last_processed IS NULL OR last_processed < ?)`

// MaterializeInstance inserts the instance and advances the source's
// last_processed checkpoint in one transaction. The unique constraint
// on (source_id, occurs_on) makes the insert a no-op when the instance
// already exists; the checkpoint still advances so re-runs converge.
func (s *Store) MaterializeInstance(ctx context.Context, instance *domain.Instance) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	occursOn := domain.DateOnly(instance.OccursOn)

	res, err := tx.ExecContext(ctx, s.rebind(insertInstanceQuery),
		instance.ID, instance.SourceID, string(instance.Kind),
		instance.Title, nullInt64(instance.AmountCents), instance.Currency,
		occursOn, instance.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert instance: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(advanceCheckpointQuery),
		occursOn, time.Now().UTC(), instance.SourceID, occursOn)
	if err != nil {
		return false, fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted > 0, nil
}

const acquireLockQuery = `
INSERT INTO run_locks (name, holder, expires_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
WHERE run_locks.expires_at <= ?`

const releaseLockQuery = `DELETE FROM run_locks WHERE name = ? AND holder = ?`

// TryAcquireRunLock attempts to acquire the exclusive processing lock.
// The lock is a single row; an expired lease can be taken over, so a
// crashed holder never blocks runs past leaseDuration.
func (s *Store) TryAcquireRunLock(ctx context.Context, holderID string, leaseDuration time.Duration) (func(), bool, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, s.rebind(acquireLockQuery),
		runLockName, holderID, now.Add(leaseDuration), now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check lock result: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := s.db.ExecContext(ctx, s.rebind(releaseLockQuery), runLockName, holderID); err != nil {
			slog.ErrorContext(ctx, "failed to release run lock",
				"holder", holderID, "error", err)
		}
	}
	return release, true, nil
}
