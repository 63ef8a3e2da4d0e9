package driven

import (
	"context"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// SessionStore persists operator sessions: in Redis when terminals share
// one, otherwise in the local operator_sessions table. Lookups of a missing
// or expired session return domain.ErrNotFound.
type SessionStore interface {
	// Save keeps the session until its ExpiresAt
	Save(ctx context.Context, session *domain.Session) error

	Get(ctx context.Context, id string) (*domain.Session, error)
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)

	Delete(ctx context.Context, id string) error
	DeleteByToken(ctx context.Context, token string) error
	// DeleteByOperator signs the operator out of every terminal
	DeleteByOperator(ctx context.Context, operatorID string) error

	// ListByOperator returns the operator's unexpired sessions
	ListByOperator(ctx context.Context, operatorID string) ([]*domain.Session, error)
}
