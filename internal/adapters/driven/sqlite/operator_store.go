package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OperatorStore = (*OperatorStore)(nil)

const operatorColumns = `id, email, password_hash, name, role, active, created_at, updated_at, last_login_at`

// OperatorStore implements driven.OperatorStore on the local usuarios table
type OperatorStore struct {
	db *DB
}

// NewOperatorStore creates a new OperatorStore
func NewOperatorStore(db *DB) *OperatorStore {
	return &OperatorStore{db: db}
}

// Save creates or updates an operator. Emails are stored lowercase.
func (s *OperatorStore) Save(ctx context.Context, op *domain.Operator) error {
	query := `
		INSERT INTO usuarios (` + operatorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			name = excluded.name,
			role = excluded.role,
			active = excluded.active,
			updated_at = excluded.updated_at,
			last_login_at = excluded.last_login_at
	`

	_, err := s.db.ExecContext(ctx, query,
		op.ID,
		strings.ToLower(op.Email),
		op.PasswordHash,
		op.Name,
		string(op.Role),
		op.Active,
		nanos(op.CreatedAt),
		nanos(op.UpdatedAt),
		nullNanos(op.LastLoginAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: operator email %s", domain.ErrAlreadyExists, op.Email)
	}
	return err
}

// Get retrieves an operator by ID
func (s *OperatorStore) Get(ctx context.Context, id string) (*domain.Operator, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+operatorColumns+` FROM usuarios WHERE id = ?`, id)
	return scanOperator(row)
}

// GetByEmail retrieves an operator by email, ignoring case
func (s *OperatorStore) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+operatorColumns+` FROM usuarios WHERE email = ?`, strings.ToLower(email))
	return scanOperator(row)
}

// List retrieves all operators, newest first
func (s *OperatorStore) List(ctx context.Context) ([]*domain.Operator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+operatorColumns+` FROM usuarios ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*domain.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

// UpdateLastLogin updates the last login timestamp
func (s *OperatorStore) UpdateLastLogin(ctx context.Context, id string) error {
	now := nanos(time.Now())
	result, err := s.db.ExecContext(ctx, `UPDATE usuarios SET last_login_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperator(row rowScanner) (*domain.Operator, error) {
	var (
		op                   domain.Operator
		role                 string
		createdAt, updatedAt int64
		lastLoginAt          sql.NullInt64
	)
	err := row.Scan(
		&op.ID,
		&op.Email,
		&op.PasswordHash,
		&op.Name,
		&role,
		&op.Active,
		&createdAt,
		&updatedAt,
		&lastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	op.Role = domain.Role(role)
	op.CreatedAt = fromNanos(createdAt)
	op.UpdatedAt = fromNanos(updatedAt)
	op.LastLoginAt = timePtr(lastLoginAt)
	return &op, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
