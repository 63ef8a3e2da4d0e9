package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.SessionStore = (*SessionStore)(nil)

const (
	sessionPrefix         = "pos-sync:session:"
	sessionTokenPrefix    = "pos-sync:session:token:"
	sessionRefreshPrefix  = "pos-sync:session:refresh:"
	sessionOperatorPrefix = "pos-sync:session:operator:"

	// operatorSetTTL keeps an operator's session index alive for a while
	// after the last sign-in.
	operatorSetTTL = 30 * 24 * time.Hour
)

// sessionKeys lists every key one session occupies.
type sessionKeys struct {
	primary  string
	token    string
	refresh  string // empty when the session has no refresh token
	operator string
}

func keysFor(s *domain.Session) sessionKeys {
	k := sessionKeys{
		primary:  sessionPrefix + s.ID,
		token:    sessionTokenPrefix + s.Token,
		operator: sessionOperatorPrefix + s.OperatorID,
	}
	if s.RefreshToken != "" {
		k.refresh = sessionRefreshPrefix + s.RefreshToken
	}
	return k
}

// SessionStore keeps operator sessions in Redis so every terminal behind the
// same Redis sees the same sign-ins. Each session is a JSON document plus
// two lookup keys; all of them expire with the session.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Save is a no-op for a session that has already expired.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	k := keysFor(session)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, k.primary, data, ttl)
		pipe.Set(ctx, k.token, session.ID, ttl)
		if k.refresh != "" {
			pipe.Set(ctx, k.refresh, session.ID, ttl)
		}
		pipe.SAdd(ctx, k.operator, session.ID)
		pipe.Expire(ctx, k.operator, operatorSetTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if err != nil {
		return nil, notFound(err, "session")
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

func (s *SessionStore) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	return s.resolve(ctx, sessionTokenPrefix+token)
}

func (s *SessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrNotFound
	}
	return s.resolve(ctx, sessionRefreshPrefix+refreshToken)
}

// Delete ignores sessions that are already gone.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	return s.drop(ctx, session, err)
}

func (s *SessionStore) DeleteByToken(ctx context.Context, token string) error {
	session, err := s.GetByToken(ctx, token)
	return s.drop(ctx, session, err)
}

// DeleteByOperator signs an operator out of every terminal.
func (s *SessionStore) DeleteByOperator(ctx context.Context, operatorID string) error {
	setKey := sessionOperatorPrefix + operatorID
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("list sessions of %s: %w", operatorID, err)
	}
	for _, id := range ids {
		// unreadable documents go away with the set
		_ = s.Delete(ctx, id)
	}
	if err := s.client.Del(ctx, setKey).Err(); err != nil {
		return fmt.Errorf("drop session index of %s: %w", operatorID, err)
	}
	return nil
}

// ListByOperator returns live sessions and prunes ids whose document expired.
func (s *SessionStore) ListByOperator(ctx context.Context, operatorID string) ([]*domain.Session, error) {
	setKey := sessionOperatorPrefix + operatorID
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions of %s: %w", operatorID, err)
	}

	var (
		live  []*domain.Session
		stale []any
	)
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			stale = append(stale, id)
		case err != nil:
			return nil, err
		case session.IsExpired():
			stale = append(stale, id)
		default:
			live = append(live, session)
		}
	}
	if len(stale) > 0 {
		s.client.SRem(ctx, setKey, stale...)
	}
	return live, nil
}

// resolve follows a lookup key to the session document it names.
func (s *SessionStore) resolve(ctx context.Context, lookupKey string) (*domain.Session, error) {
	id, err := s.client.Get(ctx, lookupKey).Result()
	if err != nil {
		return nil, notFound(err, "session lookup")
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) drop(ctx context.Context, session *domain.Session, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	k := keysFor(session)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k.primary, k.token)
		if k.refresh != "" {
			pipe.Del(ctx, k.refresh)
		}
		pipe.SRem(ctx, k.operator, session.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", session.ID, err)
	}
	return nil
}

// notFound maps redis.Nil to domain.ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("read %s: %w", what, err)
}
