package driven

import (
	"context"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// OperatorStore handles operator persistence (local usuarios table)
type OperatorStore interface {
	// Save creates or updates an operator
	Save(ctx context.Context, op *domain.Operator) error

	// Get retrieves an operator by ID
	Get(ctx context.Context, id string) (*domain.Operator, error)

	// GetByEmail retrieves an operator by email
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)

	// List retrieves all operators
	List(ctx context.Context) ([]*domain.Operator, error)

	// UpdateLastLogin updates the last login timestamp
	UpdateLastLogin(ctx context.Context, id string) error
}
