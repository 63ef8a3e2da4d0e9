package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.OperatorStore = (*MockOperatorStore)(nil)

// MockOperatorStore is a mock implementation of OperatorStore for testing
type MockOperatorStore struct {
	mu        sync.RWMutex
	operators map[string]*domain.Operator
	byEmail   map[string]*domain.Operator

	SaveFn func(op *domain.Operator) error
}

// NewMockOperatorStore creates a new MockOperatorStore
func NewMockOperatorStore() *MockOperatorStore {
	return &MockOperatorStore{
		operators: make(map[string]*domain.Operator),
		byEmail:   make(map[string]*domain.Operator),
	}
}

func (m *MockOperatorStore) Save(ctx context.Context, op *domain.Operator) error {
	if m.SaveFn != nil {
		return m.SaveFn(op)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operators[op.ID] = op
	m.byEmail[strings.ToLower(op.Email)] = op
	return nil
}

func (m *MockOperatorStore) Get(ctx context.Context, id string) (*domain.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.operators[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return op, nil
}

func (m *MockOperatorStore) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return op, nil
}

func (m *MockOperatorStore) List(ctx context.Context) ([]*domain.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Operator, 0, len(m.operators))
	for _, op := range m.operators {
		result = append(result, op)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result, nil
}

func (m *MockOperatorStore) UpdateLastLogin(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operators[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	op.LastLoginAt = &now
	return nil
}

// Helper methods for testing

func (m *MockOperatorStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.operators)
}
