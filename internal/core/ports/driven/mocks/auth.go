package mocks

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.AuthAdapter = (*MockAuthAdapter)(nil)

const mockTokenPrefix = "mock."

// MockAuthAdapter stores passwords in the clear and encodes claims as
// unsigned base64 JSON. Expired claims are reported the same way the JWT
// adapter reports them.
type MockAuthAdapter struct {
	Now func() time.Time
}

func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{Now: time.Now}
}

func (m *MockAuthAdapter) HashPassword(password string) (string, error) {
	return password, nil
}

func (m *MockAuthAdapter) VerifyPassword(password, hash string) bool {
	return password == hash
}

func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return mockTokenPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	encoded, ok := strings.CutPrefix(token, mockTokenPrefix)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	var claims domain.TokenClaims
	if err := json.Unmarshal(data, &claims); err != nil || claims.SessionID == "" {
		return nil, domain.ErrTokenInvalid
	}
	if claims.ExpiresAt > 0 && m.Now().Unix() > claims.ExpiresAt {
		return &claims, domain.ErrTokenExpired
	}
	return &claims, nil
}
