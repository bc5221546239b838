package processor

import (
	"context"
	"time"

	"github.com/recaller/recur/internal/domain"
)

// Repository defines the storage operations the processing driver needs.
type Repository interface {
	// FindActiveSources retrieves all active recurrence sources in
	// stable order.
	FindActiveSources(ctx context.Context) ([]*domain.RecurrenceSource, error)

	// MaterializeInstance inserts the instance and advances its
	// source's last_processed checkpoint to the instance date, both in
	// a single transaction. A conflict on (source_id, occurs_on) is
	// not an error: the instance already exists, nothing is written,
	// and created is false. This is what makes re-running a batch with
	// identical inputs materialize each occurrence at most once.
	MaterializeInstance(ctx context.Context, instance *domain.Instance) (created bool, err error)

	// TryAcquireRunLock attempts to acquire the exclusive processing
	// lock. Returns (releaseFunc, true, nil) when acquired and
	// (nil, false, nil) when another holder has it. The lock expires
	// after leaseDuration so a crashed holder cannot block runs
	// forever.
	TryAcquireRunLock(ctx context.Context, holderID string, leaseDuration time.Duration) (release func(), acquired bool, err error)
}
