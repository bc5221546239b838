package schedule

import (
	"context"
	"time"

	"github.com/recaller/recur/internal/domain"
)

// ListSourcesParams contains optional filters for listing sources.
type ListSourcesParams struct {
	Kind     *domain.SourceKind // nil = all kinds
	IsActive *bool              // nil = active and inactive
	Limit    int                // 0 = repository default
	Offset   int
}

// Repository defines storage operations for recurrence sources and
// their materialized instances.
type Repository interface {
	// CreateSource persists a new source. The source is validated by
	// the service before it gets here.
	CreateSource(ctx context.Context, src *domain.RecurrenceSource) error

	// FindSourceByID retrieves a source.
	// Returns domain.ErrSourceNotFound if it does not exist.
	FindSourceByID(ctx context.Context, id string) (*domain.RecurrenceSource, error)

	// ListSources retrieves sources matching the filters, ordered by
	// creation time descending.
	ListSources(ctx context.Context, params ListSourcesParams) ([]*domain.RecurrenceSource, error)

	// SetSourceActive flips the active flag.
	// Returns domain.ErrSourceNotFound if the source does not exist.
	SetSourceActive(ctx context.Context, id string, active bool) error

	// DeleteSource removes a source and its instances.
	// Returns domain.ErrSourceNotFound if the source does not exist.
	DeleteSource(ctx context.Context, id string) error

	// ListInstances retrieves materialized instances for a source with
	// occurs_on in [from, to], ascending.
	ListInstances(ctx context.Context, sourceID string, from, to time.Time) ([]*domain.Instance, error)
}
