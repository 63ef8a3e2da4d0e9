package driving

import (
	"context"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// SyncOptions tunes a forced sync
type SyncOptions struct {
	Direction domain.Direction

	// Tables limits the pull; empty means every synchronized table
	Tables []string
}

// SyncEngine replays the queue against the remote store and refreshes the
// local store from it.
type SyncEngine interface {
	// ProbeConnectivity never errors; it records and returns availability
	ProbeConnectivity(ctx context.Context) bool

	// RemoteAvailable returns the result of the last probe
	RemoteAvailable() bool

	// DrainQueue replays up to maxItems eligible entries
	DrainQueue(ctx context.Context, maxItems int) (*domain.DrainResult, error)

	// SyncRemoteToLocal copies remote rows into the local store
	SyncRemoteToLocal(ctx context.Context, tables []string) (*domain.PullResult, error)

	// ForceSync probes then drains and pulls according to opts
	ForceSync(ctx context.Context, opts SyncOptions) (*domain.SyncReport, error)

	// State returns the current engine phase
	State() domain.EngineState

	// Status summarizes the queue and connectivity
	Status(ctx context.Context) (*domain.SyncStatus, error)
}

// SyncLoop drains the queue in the background
type SyncLoop interface {
	// Start begins the loop
	Start(ctx context.Context) error

	// Stop stops the loop and waits for the running cycle to finish
	Stop()

	// TriggerNow runs a cycle without waiting for the next tick
	TriggerNow()
}
