package domain

import "time"

// Session is one sign-in of an operator on a terminal. The access token and
// the optional refresh token both point back at it; deleting the session
// revokes both.
type Session struct {
	ID           string    `json:"id"`
	OperatorID   string    `json:"operator_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// ExpiredAt reports whether the session is past its expiry at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *Session) IsExpired() bool {
	return s.ExpiredAt(time.Now())
}

// AuthContext is what the HTTP layer knows about the caller once its bearer
// token checked out.
type AuthContext struct {
	OperatorID string `json:"operator_id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	SessionID  string `json:"session_id"`
}

// IsAdmin gates queue maintenance, schema refresh and operator management.
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries a fresh token pair. The operator is the summary
// form, never the stored record with its hash.
type LoginResponse struct {
	Token        string           `json:"token"`
	RefreshToken string           `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time        `json:"expires_at"`
	Operator     *OperatorSummary `json:"operator"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenClaims is the signed payload of an access token. Timestamps are unix
// seconds.
type TokenClaims struct {
	OperatorID string `json:"operator_id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	SessionID  string `json:"session_id"`
	IssuedAt   int64  `json:"iat"`
	ExpiresAt  int64  `json:"exp"`
}
