package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

const (
	selfHolder    = "this-terminal"
	foreignHolder = "other-terminal"
)

// MockDistributedLock keeps drain locks in memory. Like the Redis and
// advisory lock adapters it is re-entrant for this terminal and refuses
// while another terminal holds an unexpired lock.
type MockDistributedLock struct {
	mu      sync.Mutex
	holders map[string]heldLock
	now     func() time.Time

	AcquireFn func(name string, ttl time.Duration) (bool, error)
	ReleaseFn func(name string) error
	PingErr   error

	acquired int
}

type heldLock struct {
	holder  string
	expires time.Time
}

func (h heldLock) live(now time.Time) bool {
	return now.Before(h.expires)
}

// NewMockDistributedLock returns an empty lock table.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		holders: make(map[string]heldLock),
		now:     time.Now,
	}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if h, ok := m.holders[name]; ok && h.live(now) && h.holder != selfHolder {
		return false, nil
	}
	m.holders[name] = heldLock{holder: selfHolder, expires: now.Add(ttl)}
	m.acquired++
	return true, nil
}

// Release drops the lock only when this terminal holds it.
func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.holders[name]; ok && h.holder == selfHolder {
		delete(m.holders, name)
	}
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	h, ok := m.holders[name]
	if !ok || !h.live(now) || h.holder != selfHolder {
		return fmt.Errorf("drain lock %q not held by this terminal", name)
	}
	h.expires = now.Add(ttl)
	m.holders[name] = h
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return m.PingErr
}

// SetLockHeld simulates another terminal holding name for ttl.
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holders[name] = heldLock{holder: foreignHolder, expires: m.now().Add(ttl)}
}

// IsHeld reports whether anyone holds an unexpired lock on name.
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holders[name]
	return ok && h.live(m.now())
}

// Acquisitions counts successful Acquire calls that went through the table.
func (m *MockDistributedLock) Acquisitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired
}
