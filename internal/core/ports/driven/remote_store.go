package driven

import (
	"context"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// RemoteStore is the authoritative networked store (PostgreSQL).
// Errors are classified: connectivity failures wrap domain.ErrRemoteUnavailable,
// foreign-key failures are *domain.ForeignKeyError, other constraint failures
// wrap domain.ErrConstraintViolation.
type RemoteStore interface {
	// Ping checks the remote store answers within the context deadline
	Ping(ctx context.Context) error

	// Query runs a read written in the remote dialect
	Query(ctx context.Context, query string, args ...any) ([]domain.Row, error)

	// Exec runs a write written in the remote dialect. A RETURNING clause
	// populates LastInsertID.
	Exec(ctx context.Context, query string, args ...any) (*domain.ExecResult, error)

	// TableSchema describes a table; an empty schema means it does not exist
	TableSchema(ctx context.Context, table string) (*domain.TableSchema, error)

	// Apply replays one mutation inside its own transaction.
	// Insert of an id already holding the same values succeeds without a
	// write; an id held by a different row is a *domain.IDConflictError.
	// Update of a missing id inserts it; Delete of a missing id succeeds.
	// An insert with an explicit id moves the table's id sequence past it.
	Apply(ctx context.Context, m domain.Mutation) error

	// MaxID returns the largest integer id of a table, 0 when it is empty
	MaxID(ctx context.Context, table string) (int64, error)

	// RowExists reports whether a row with the given id exists
	RowExists(ctx context.Context, table string, id domain.Value) (bool, error)

	// ReadTable returns every row of a table
	ReadTable(ctx context.Context, table string) ([]domain.Row, error)
}
