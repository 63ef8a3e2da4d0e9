package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// QueueAdmin exposes the operator tools for the sync queue
type QueueAdmin interface {
	// Inspect lists queue entries
	Inspect(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueEntry, error)

	// GetEntry retrieves a single entry
	GetEntry(ctx context.Context, id int64) (*domain.QueueEntry, error)

	// ResetFailed revives failed and exhausted entries; empty ids means all
	ResetFailed(ctx context.Context, ids []int64) (int64, error)

	// PurgeFailed deletes failed entries older than the cutoff
	PurgeFailed(ctx context.Context, olderThan time.Time) (int64, error)

	// Purge deletes completed or failed entries older than the cutoff
	Purge(ctx context.Context, status domain.QueueStatus, olderThan time.Time) (int64, error)

	// SyncOneWay runs a push-only or pull-only sync
	SyncOneWay(ctx context.Context, dir domain.Direction) (*domain.SyncReport, error)

	// Health grades the sync subsystem
	Health(ctx context.Context) (*domain.HealthReport, error)

	// RefreshSchema drops cached schemas; empty table refreshes all
	RefreshSchema(ctx context.Context, table string) error

	// Stats summarizes the queue
	Stats(ctx context.Context) (*domain.QueueStats, error)
}
