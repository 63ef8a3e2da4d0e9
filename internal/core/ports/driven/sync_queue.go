package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// SyncQueue is the durable FIFO of mutations waiting for the remote store.
// It lives in the local store and survives restarts.
type SyncQueue interface {
	// Enqueue appends a pending entry stamped with the current time
	Enqueue(ctx context.Context, table string, op domain.Operation, payload domain.Row) (int64, error)

	// EnqueueAt appends a pending entry with an explicit timestamp
	EnqueueAt(ctx context.Context, table string, op domain.Operation, payload domain.Row, ts time.Time) (int64, error)

	// NextBatch returns up to limit pending entries with attempts below
	// maxAttempts, oldest first.
	NextBatch(ctx context.Context, limit, maxAttempts int) ([]*domain.QueueEntry, error)

	// MarkCompleted is idempotent. Unknown ids return domain.ErrNotFound.
	MarkCompleted(ctx context.Context, id int64) error

	// MarkFailedAttempt increments attempts and records the reason.
	// The entry stays pending; it is excluded from NextBatch once it hits the cap.
	MarkFailedAttempt(ctx context.Context, id int64, reason string) (attempts int, err error)

	// MarkFailed moves an entry to the terminal failed state
	MarkFailed(ctx context.Context, id int64, reason string) error

	// Promote moves an entry's timestamp to just before the given instant
	Promote(ctx context.Context, id int64, before time.Time) error

	// FindPendingInsert finds the oldest pending insert of a row.
	// Returns domain.ErrNotFound when there is none.
	FindPendingInsert(ctx context.Context, table, rowID string) (*domain.QueueEntry, error)

	// Get retrieves an entry by id
	Get(ctx context.Context, id int64) (*domain.QueueEntry, error)

	// List returns entries matching the filter
	List(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueEntry, error)

	// Stats summarizes the queue
	Stats(ctx context.Context, maxAttempts int) (*domain.QueueStats, error)

	// Reset revives failed and exhausted entries (attempts=0, pending)
	Reset(ctx context.Context, filter domain.ResetFilter) (int64, error)

	// Purge deletes completed or failed entries older than the cutoff.
	// A zero cutoff purges regardless of age. Pending entries are never purged.
	Purge(ctx context.Context, status domain.QueueStatus, olderThan time.Time) (int64, error)

	// CountEligible counts entries NextBatch could return
	CountEligible(ctx context.Context, maxAttempts int) (int, error)
}
