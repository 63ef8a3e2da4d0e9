package driving

import (
	"context"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// DataAccess is the only database surface the POS application uses.
// Reads and writes go to the remote store when it is reachable and fall back
// to the local store otherwise.
type DataAccess interface {
	// Query runs a read written in the local dialect
	Query(ctx context.Context, query string, params ...any) ([]domain.Row, error)

	// Execute runs a write written in the local dialect. When the write lands
	// on the local store and meta is non-nil, it is queued for replay.
	Execute(ctx context.Context, query string, params []any, meta *domain.SyncMeta) (*domain.ExecResult, error)

	// GetSyncStatus summarizes the queue and connectivity
	GetSyncStatus(ctx context.Context) (*domain.SyncStatus, error)

	// ForceSync probes, drains and pulls. Returns true when the queue was
	// fully drained.
	ForceSync(ctx context.Context) bool
}
