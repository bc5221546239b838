package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/recaller/recur/internal/application/schedule"
	"github.com/recaller/recur/internal/domain"
)

const defaultListLimit = 100

const createSourceQuery = `
INSERT INTO recurrence_sources (
	id, kind, title, amount_cents, currency, frequency, interval_count,
	weekdays, start_date, end_date, lead_time_days, is_active,
	last_processed, created_at, updated_at, version
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateSource persists a new recurrence source.
func (s *Store) CreateSource(ctx context.Context, src *domain.RecurrenceSource) error {
	_, err := s.db.ExecContext(ctx, s.rebind(createSourceQuery),
		src.ID, string(src.Kind), src.Title, nullInt64(src.AmountCents),
		src.Currency, string(src.Rule.Frequency), src.Rule.Interval,
		int(src.Rule.Weekdays), domain.DateOnly(src.Rule.StartDate),
		nullDate(src.Rule.EndDate), src.Rule.LeadTimeDays, src.IsActive,
		nullCheckpoint(src.LastProcessed), src.CreatedAt, src.UpdatedAt,
		src.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// FindSourceByID retrieves a source by its ID.
func (s *Store) FindSourceByID(ctx context.Context, id string) (*domain.RecurrenceSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM recurrence_sources WHERE id = ?`

	src, err := scanSource(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return src, nil
}

// ListSources retrieves sources matching the filters, newest first.
func (s *Store) ListSources(ctx context.Context, params schedule.ListSourcesParams) ([]*domain.RecurrenceSource, error) {
	var (
		conds []string
		args  []any
	)
	if params.Kind != nil {
		conds = append(conds, "kind = ?")
		args = append(args, string(*params.Kind))
	}
	if params.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *params.IsActive)
	}

	query := `SELECT ` + sourceColumns + ` FROM recurrence_sources`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"

	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
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

// SetSourceActive flips the active flag and bumps the version.
func (s *Store) SetSourceActive(ctx context.Context, id string, active bool) error {
	query := `
UPDATE recurrence_sources
SET is_active = ?, updated_at = ?, version = version + 1
WHERE id = ?`

	res, err := s.db.ExecContext(ctx, s.rebind(query), active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	return nil
}

// DeleteSource removes a source. Instances go with it via the foreign
// key cascade.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM recurrence_sources WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	return nil
}

const listInstancesQuery = `
SELECT id, source_id, kind, title, amount_cents, currency, occurs_on, created_at
FROM instances
WHERE source_id = ? AND occurs_on >= ? AND occurs_on <= ?
ORDER BY occurs_on`

// ListInstances retrieves materialized instances for a source within
// the inclusive date range.
func (s *Store) ListInstances(ctx context.Context, sourceID string, from, to time.Time) ([]*domain.Instance, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(listInstancesQuery),
		sourceID, domain.DateOnly(from), domain.DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*domain.Instance
	for rows.Next() {
		var (
			inst   domain.Instance
			kind   string
			amount sql.NullInt64
		)
		err := rows.Scan(&inst.ID, &inst.SourceID, &kind, &inst.Title,
			&amount, &inst.Currency, &inst.OccursOn, &inst.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		inst.Kind = domain.SourceKind(kind)
		inst.OccursOn = domain.DateOnly(inst.OccursOn)
		if amount.Valid {
			v := amount.Int64
			inst.AmountCents = &v
		}
		instances = append(instances, &inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read instances: %w", err)
	}

	return instances, nil
}
