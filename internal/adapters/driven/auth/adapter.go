package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.AuthAdapter = (*Adapter)(nil)

// issuer is stamped on every token and required when parsing.
const issuer = "pos-sync"

// operatorClaims is the wire shape of an access token.
type operatorClaims struct {
	OperatorID string      `json:"operator_id"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	SessionID  string      `json:"session_id"`
	jwt.RegisteredClaims
}

func toWire(c *domain.TokenClaims) operatorClaims {
	return operatorClaims{
		OperatorID: c.OperatorID,
		Email:      c.Email,
		Role:       c.Role,
		SessionID:  c.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   c.OperatorID,
			ID:        c.SessionID,
			IssuedAt:  jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)),
		},
	}
}

func (c *operatorClaims) toDomain() *domain.TokenClaims {
	out := &domain.TokenClaims{
		OperatorID: c.OperatorID,
		Email:      c.Email,
		Role:       c.Role,
		SessionID:  c.SessionID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Unix()
	}
	return out
}

// Adapter signs operator tokens with HS256 and hashes PINs and passwords
// with bcrypt.
type Adapter struct {
	jwtSecret  []byte
	bcryptCost int
}

func NewAdapter(jwtSecret string) *Adapter {
	return NewAdapterWithCost(jwtSecret, bcrypt.DefaultCost)
}

// NewAdapterWithCost lets tests trade hash strength for speed.
func NewAdapterWithCost(jwtSecret string, bcryptCost int) *Adapter {
	return &Adapter{jwtSecret: []byte(jwtSecret), bcryptCost: bcryptCost}
}

func (a *Adapter) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword is false for a malformed hash as well as a wrong password.
func (a *Adapter) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (a *Adapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, toWire(claims)).SignedString(a.jwtSecret)
}

// ParseToken checks signature, algorithm, issuer and expiry. An expired token
// yields domain.ErrTokenExpired; every other failure is domain.ErrTokenInvalid.
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	var claims operatorClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, a.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	case !token.Valid:
		return nil, domain.ErrTokenInvalid
	}
	return claims.toDomain(), nil
}

func (a *Adapter) key(*jwt.Token) (any, error) {
	return a.jwtSecret, nil
}
