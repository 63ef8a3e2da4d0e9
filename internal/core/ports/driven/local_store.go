package driven

import (
	"context"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// LocalStore is the embedded store every terminal can always write to (SQLite).
// Each call runs its own short statement or transaction; nothing is held
// between calls.
type LocalStore interface {
	// Query runs a read and returns fully materialized rows
	Query(ctx context.Context, query string, args ...any) ([]domain.Row, error)

	// Exec runs a write. A trailing RETURNING clause is accepted and ignored;
	// the inserted id is reported through LastInsertID.
	Exec(ctx context.Context, query string, args ...any) (*domain.ExecResult, error)

	// TableSchema describes a table; an empty schema means it does not exist
	TableSchema(ctx context.Context, table string) (*domain.TableSchema, error)

	// Upsert inserts a row or replaces the columns of the row with the same id
	Upsert(ctx context.Context, table string, row domain.Row) error

	// GetRow fetches a row by primary key. Returns domain.ErrNotFound if absent.
	GetRow(ctx context.Context, table string, id domain.Value) (domain.Row, error)

	// PendingRowIDs returns the ids (as Value.Key) of rows whose sync_status
	// marker is pending. Tables without the marker return an empty set.
	PendingRowIDs(ctx context.Context, table string) (map[string]bool, error)

	// MarkRowSynced sets the sync_status marker of a row to synced.
	// A table without the marker is a no-op.
	MarkRowSynced(ctx context.Context, table string, id domain.Value) error

	// MaxID returns the largest integer id the table has used, counting ids
	// of rows deleted since.
	MaxID(ctx context.Context, table string) (int64, error)

	// ReserveIDs makes the next generated id of table greater than floor
	ReserveIDs(ctx context.Context, table string, floor int64) error

	// RemapID renumbers a row, the local rows of the remap's child columns
	// that reference it, and the pending queue entries carrying either id,
	// in one transaction.
	RemapID(ctx context.Context, remap domain.IDRemap) error

	// Ping checks that the store file is usable
	Ping(ctx context.Context) error
}
