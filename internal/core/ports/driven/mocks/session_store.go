package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.SessionStore = (*MockSessionStore)(nil)

// MockSessionStore keeps operator sessions in a map keyed by session id.
// Lookups by token scan the map; callers get copies.
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]domain.Session)}
}

func (m *MockSessionStore) Save(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	return m.find(func(s domain.Session) bool { return s.ID == id })
}

func (m *MockSessionStore) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	return m.find(func(s domain.Session) bool { return s.Token == token })
}

func (m *MockSessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrNotFound
	}
	return m.find(func(s domain.Session) bool { return s.RefreshToken == refreshToken })
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	m.remove(func(s domain.Session) bool { return s.ID == id })
	return nil
}

func (m *MockSessionStore) DeleteByToken(ctx context.Context, token string) error {
	m.remove(func(s domain.Session) bool { return s.Token == token })
	return nil
}

func (m *MockSessionStore) DeleteByOperator(ctx context.Context, operatorID string) error {
	m.remove(func(s domain.Session) bool { return s.OperatorID == operatorID })
	return nil
}

func (m *MockSessionStore) ListByOperator(ctx context.Context, operatorID string) ([]*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Session
	for _, s := range m.sessions {
		if s.OperatorID == operatorID {
			out = append(out, &s)
		}
	}
	return out, nil
}

// Count returns how many sessions are stored.
func (m *MockSessionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MockSessionStore) find(match func(domain.Session) bool) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if match(s) {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSessionStore) remove(match func(domain.Session) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if match(s) {
			delete(m.sessions, id)
		}
	}
}
