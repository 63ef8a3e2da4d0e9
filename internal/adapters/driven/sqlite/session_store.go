package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.SessionStore = (*SessionStore)(nil)

const sessionColumns = `id, operator_id, token, COALESCE(refresh_token, ''), expires_at, created_at, user_agent, ip_address`

// SessionStore keeps sessions in the terminal's own database. Used when no
// Redis is configured, so sign-ins survive a restart but are not shared
// between terminals. Rows go away with their operator (ON DELETE CASCADE).
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save upserts by id. An empty refresh token is stored as NULL so the
// unique index on refresh_token only covers real tokens.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	refresh := sql.NullString{String: session.RefreshToken, Valid: session.RefreshToken != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operator_sessions (id, operator_id, token, refresh_token, expires_at, created_at, user_agent, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			token = excluded.token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			user_agent = excluded.user_agent,
			ip_address = excluded.ip_address`,
		session.ID, session.OperatorID, session.Token, refresh,
		nanos(session.ExpiresAt), nanos(session.CreatedAt),
		session.UserAgent, session.IPAddress,
	)
	return err
}

// Get returns expired rows too; callers decide what expiry means.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.getBy(ctx, "id", id)
}

func (s *SessionStore) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	return s.getBy(ctx, "token", token)
}

func (s *SessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrNotFound
	}
	return s.getBy(ctx, "refresh_token", refreshToken)
}

// Delete reports domain.ErrNotFound when no row had that id.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.deleteWhere(ctx, "id", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SessionStore) DeleteByToken(ctx context.Context, token string) error {
	_, err := s.deleteWhere(ctx, "token", token)
	return err
}

func (s *SessionStore) DeleteByOperator(ctx context.Context, operatorID string) error {
	_, err := s.deleteWhere(ctx, "operator_id", operatorID)
	return err
}

// column is one of a fixed set of names, never user input
func (s *SessionStore) deleteWhere(ctx context.Context, column, value string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM operator_sessions WHERE `+column+` = ?`, value)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByOperator skips expired rows, newest first.
func (s *SessionStore) ListByOperator(ctx context.Context, operatorID string) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM operator_sessions
		WHERE operator_id = ? AND expires_at > ?
		ORDER BY created_at DESC
	`, operatorID, nanos(time.Now()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// column is one of a fixed set of names, never user input
func (s *SessionStore) getBy(ctx context.Context, column, value string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM operator_sessions WHERE `+column+` = ?`, value)
	return scanSession(row)
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		session              domain.Session
		expiresAt, createdAt int64
	)
	err := row.Scan(
		&session.ID,
		&session.OperatorID,
		&session.Token,
		&session.RefreshToken,
		&expiresAt,
		&createdAt,
		&session.UserAgent,
		&session.IPAddress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	session.ExpiresAt = fromNanos(expiresAt)
	session.CreatedAt = fromNanos(createdAt)
	return &session, nil
}
