package repository

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/recaller/recur/internal/application/processor"
	"github.com/recaller/recur/internal/application/schedule"
	"github.com/recaller/recur/internal/domain"
)

// Dialect selects the SQL flavor the store talks to.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store implements the schedule and processor repositories on top of
// database/sql. One implementation serves both backends; queries are
// written with ? placeholders and rebound for PostgreSQL.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ schedule.Repository  = (*Store)(nil)
	_ processor.Repository = (*Store)(nil)
)

// NewStore creates a store over an already-open database connection.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
// This should be called when shutting down the application.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

const sourceColumns = `id, kind, title, amount_cents, currency, frequency,
	interval_count, weekdays, start_date, end_date, lead_time_days,
	is_active, last_processed, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSource reads one recurrence_sources row into the domain model.
func scanSource(row rowScanner) (*domain.RecurrenceSource, error) {
	var (
		src           domain.RecurrenceSource
		kind          string
		amount        sql.NullInt64
		frequency     string
		weekdays      int
		endDate       sql.NullTime
		lastProcessed sql.NullTime
	)

	err := row.Scan(
		&src.ID, &kind, &src.Title, &amount, &src.Currency, &frequency,
		&src.Rule.Interval, &weekdays, &src.Rule.StartDate, &endDate,
		&src.Rule.LeadTimeDays, &src.IsActive, &lastProcessed,
		&src.CreatedAt, &src.UpdatedAt, &src.Version,
	)
	if err != nil {
		return nil, err
	}

	src.Kind = domain.SourceKind(kind)
	src.Rule.Frequency = domain.Frequency(frequency)
	src.Rule.Weekdays = domain.WeekdaySet(weekdays)
	src.Rule.StartDate = domain.DateOnly(src.Rule.StartDate)
	if endDate.Valid {
		e := domain.DateOnly(endDate.Time)
		src.Rule.EndDate = &e
	}
	if lastProcessed.Valid {
		src.LastProcessed = domain.DateOnly(lastProcessed.Time)
	}
	if amount.Valid {
		v := amount.Int64
		src.AmountCents = &v
	}

	return &src, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: domain.DateOnly(*t), Valid: true}
}

// nullCheckpoint maps the zero time to NULL.
func nullCheckpoint(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: domain.DateOnly(t), Valid: true}
}
