package driven

import "github.com/custodia-labs/pos-sync/internal/core/domain"

// AuthAdapter hashes operator passwords and signs the tokens the admin API
// accepts. Sessions themselves live in a SessionStore.
type AuthAdapter interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool

	GenerateToken(claims *domain.TokenClaims) (string, error)
	// ParseToken returns ErrTokenExpired for a well-signed token past its
	// expiry and ErrTokenInvalid for anything else it rejects.
	ParseToken(token string) (*domain.TokenClaims, error)
}
