package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

var _ driving.AuthService = (*authService)(nil)

const (
	minPasswordLength = 8
	defaultTokenTTL   = 24 * time.Hour
)

// AuthConfig wires the operator auth service.
type AuthConfig struct {
	Operators driven.OperatorStore
	Sessions  driven.SessionStore
	Crypto    driven.AuthAdapter
	// TokenTTL bounds both the access token and its session. Zero means 24h.
	TokenTTL time.Duration
	Logger   *slog.Logger
}

// authService signs operators in to the admin surfaces of a terminal.
type authService struct {
	operators driven.OperatorStore
	sessions  driven.SessionStore
	crypto    driven.AuthAdapter
	tokenTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates the operator auth service.
func NewAuthService(cfg AuthConfig) driving.AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		operators: cfg.Operators,
		sessions:  cfg.Sessions,
		crypto:    cfg.Crypto,
		tokenTTL:  ttl,
		logger:    logger,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	op, err := s.operators.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !op.Active {
		s.logger.Warn("login refused for inactive operator", "operator_id", op.ID)
		return nil, domain.ErrUnauthorized
	}
	if !s.crypto.VerifyPassword(req.Password, op.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	resp, err := s.startSession(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := s.operators.UpdateLastLogin(ctx, op.ID); err != nil {
		s.logger.Warn("failed to record last login", "operator_id", op.ID, "error", err)
	}
	s.logger.Info("operator signed in", "operator_id", op.ID, "role", op.Role)
	return resp, nil
}

// startSession mints a token pair for op and persists the session behind it.
func (s *authService) startSession(ctx context.Context, op *domain.Operator) (*domain.LoginResponse, error) {
	issued := s.now()
	expires := issued.Add(s.tokenTTL)
	sessionID := uuid.NewString()

	token, err := s.crypto.GenerateToken(&domain.TokenClaims{
		OperatorID: op.ID,
		Email:      op.Email,
		Role:       op.Role,
		SessionID:  sessionID,
		IssuedAt:   issued.Unix(),
		ExpiresAt:  expires.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	session := &domain.Session{
		ID:           sessionID,
		OperatorID:   op.ID,
		Token:        token,
		RefreshToken: generateRefreshToken(),
		ExpiresAt:    expires,
		CreatedAt:    issued,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &domain.LoginResponse{
		Token:        token,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    expires,
		Operator:     op.ToSummary(),
	}, nil
}

// ValidateToken accepts a token only while its signature, its expiry and the
// session it names are all still good.
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.crypto.ParseToken(token)
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return nil, domain.ErrTokenExpired
	case err != nil:
		return nil, domain.ErrTokenInvalid
	case s.now().Unix() > claims.ExpiresAt:
		return nil, domain.ErrTokenExpired
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}
	if session.ExpiredAt(s.now()) {
		return nil, domain.ErrTokenExpired
	}

	return &domain.AuthContext{
		OperatorID: claims.OperatorID,
		Email:      claims.Email,
		Role:       claims.Role,
		SessionID:  claims.SessionID,
	}, nil
}

// RefreshToken swaps a refresh token for a fresh session. The old session
// is dropped whether or not the swap succeeds.
func (s *authService) RefreshToken(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error) {
	if req.RefreshToken == "" {
		return nil, domain.ErrTokenInvalid
	}

	old, err := s.sessions.GetByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	if old.ExpiredAt(s.now()) {
		return nil, domain.ErrTokenExpired
	}
	_ = s.sessions.Delete(ctx, old.ID)

	op, err := s.operators.Get(ctx, old.OperatorID)
	if err != nil {
		return nil, err
	}
	if !op.Active {
		return nil, domain.ErrUnauthorized
	}

	return s.startSession(ctx, op)
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.crypto.ParseToken(token)
	if claims == nil || (err != nil && !errors.Is(err, domain.ErrTokenExpired)) {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (s *authService) LogoutAll(ctx context.Context, operatorID string) error {
	return s.sessions.DeleteByOperator(ctx, operatorID)
}

// CreateOperator registers an operator. Emails are stored lower-cased and
// the role defaults to cashier.
func (s *authService) CreateOperator(ctx context.Context, req domain.CreateOperatorRequest) (*domain.Operator, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	role := req.Role
	if role == "" {
		role = domain.RoleCashier
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	switch _, err := s.operators.GetByEmail(ctx, email); {
	case err == nil:
		return nil, domain.ErrAlreadyExists
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	hash, err := s.crypto.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	op := &domain.Operator{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.operators.Save(ctx, op); err != nil {
		return nil, err
	}
	s.logger.Info("operator created", "operator_id", op.ID, "role", op.Role)
	return op, nil
}

func generateRefreshToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
