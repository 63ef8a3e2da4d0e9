package driving

import (
	"context"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// AuthService signs operators in to the admin API and the CLI.
type AuthService interface {
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// ValidateToken returns ErrTokenInvalid, ErrTokenExpired or
	// ErrSessionNotFound when the token cannot be used.
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// RefreshToken replaces the session behind a refresh token with a new one
	RefreshToken(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error)

	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, operatorID string) error

	CreateOperator(ctx context.Context, req domain.CreateOperatorRequest) (*domain.Operator, error)
}
