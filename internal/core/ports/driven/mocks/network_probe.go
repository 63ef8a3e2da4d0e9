package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.NetworkProbe = (*MockNetworkProbe)(nil)

// MockNetworkProbe reports a configurable reachability result
type MockNetworkProbe struct {
	mu    sync.Mutex
	err   error
	calls int
}

// NewMockNetworkProbe creates a probe that reports the network as reachable
func NewMockNetworkProbe() *MockNetworkProbe {
	return &MockNetworkProbe{}
}

// SetError makes Reachable return err; nil means reachable
func (m *MockNetworkProbe) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many probes were made
func (m *MockNetworkProbe) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockNetworkProbe) Reachable(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}
