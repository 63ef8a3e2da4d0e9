package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.SyncQueue = (*MockSyncQueue)(nil)

// MockSyncQueue is an in-memory SyncQueue with the same ordering and
// attempt-cap semantics as the SQLite queue.
type MockSyncQueue struct {
	mu      sync.Mutex
	entries map[int64]*domain.QueueEntry
	nextID  int64

	// Now stamps Enqueue; defaults to time.Now
	Now func() time.Time

	EnqueueFn   func(table string, op domain.Operation, payload domain.Row) (int64, error)
	NextBatchFn func(limit, maxAttempts int) ([]*domain.QueueEntry, error)
}

// NewMockSyncQueue creates an empty queue
func NewMockSyncQueue() *MockSyncQueue {
	return &MockSyncQueue{
		entries: make(map[int64]*domain.QueueEntry),
		Now:     time.Now,
	}
}

func (m *MockSyncQueue) Enqueue(ctx context.Context, table string, op domain.Operation, payload domain.Row) (int64, error) {
	if m.EnqueueFn != nil {
		return m.EnqueueFn(table, op, payload)
	}
	return m.EnqueueAt(ctx, table, op, payload, m.Now())
}

func (m *MockSyncQueue) EnqueueAt(ctx context.Context, table string, op domain.Operation, payload domain.Row, ts time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e := &domain.QueueEntry{
		ID:        m.nextID,
		TableName: table,
		Operation: op,
		Payload:   payload.Clone(),
		Timestamp: ts,
		Status:    domain.QueueStatusPending,
		UpdatedAt: ts,
	}
	if id, ok := payload.ID(); ok {
		e.RowID = id.Key()
	}
	m.entries[e.ID] = e
	return e.ID, nil
}

func (m *MockSyncQueue) NextBatch(ctx context.Context, limit, maxAttempts int) ([]*domain.QueueEntry, error) {
	if m.NextBatchFn != nil {
		return m.NextBatchFn(limit, maxAttempts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var batch []*domain.QueueEntry
	for _, e := range m.sorted(false) {
		if e.Eligible(maxAttempts) {
			batch = append(batch, copyEntry(e))
			if len(batch) == limit {
				break
			}
		}
	}
	return batch, nil
}

func (m *MockSyncQueue) MarkCompleted(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.QueueStatusCompleted {
		e.Status = domain.QueueStatusCompleted
		e.UpdatedAt = m.Now()
	}
	return nil
}

func (m *MockSyncQueue) MarkFailedAttempt(ctx context.Context, id int64, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	e.Attempts++
	e.LastError = reason
	e.UpdatedAt = m.Now()
	return e.Attempts, nil
}

func (m *MockSyncQueue) MarkFailed(ctx context.Context, id int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = domain.QueueStatusFailed
	e.LastError = reason
	e.UpdatedAt = m.Now()
	return nil
}

func (m *MockSyncQueue) Promote(ctx context.Context, id int64, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	if target := before.Add(-time.Nanosecond); target.Before(e.Timestamp) {
		e.Timestamp = target
	}
	return nil
}

func (m *MockSyncQueue) FindPendingInsert(ctx context.Context, table, rowID string) (*domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.sorted(false) {
		if e.TableName == table && e.RowID == rowID &&
			e.Operation == domain.OperationInsert && e.Status == domain.QueueStatusPending {
			return copyEntry(e), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSyncQueue) Get(ctx context.Context, id int64) (*domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyEntry(e), nil
}

func (m *MockSyncQueue) List(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.QueueEntry
	for _, e := range m.sorted(filter.Newest) {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.TableName != "" && e.TableName != filter.TableName {
			continue
		}
		if filter.ExhaustedOnly && !e.Exhausted(filter.MaxAttempts) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockSyncQueue) Stats(ctx context.Context, maxAttempts int) (*domain.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &domain.QueueStats{PendingByTable: make(map[string]int)}
	for _, e := range m.entries {
		switch {
		case e.Eligible(maxAttempts):
			stats.Pending++
			stats.PendingByTable[e.TableName]++
			if stats.OldestPending == nil || e.Timestamp.Before(*stats.OldestPending) {
				ts := e.Timestamp
				stats.OldestPending = &ts
			}
		case e.Exhausted(maxAttempts):
			stats.Exhausted++
		case e.Status == domain.QueueStatusCompleted:
			stats.Completed++
			if stats.LastCompleted == nil || e.UpdatedAt.After(*stats.LastCompleted) {
				ts := e.UpdatedAt
				stats.LastCompleted = &ts
			}
		case e.Status == domain.QueueStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *MockSyncQueue) Reset(ctx context.Context, filter domain.ResetFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[int64]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}

	var n int64
	for _, e := range m.entries {
		if len(wanted) > 0 && !wanted[e.ID] {
			continue
		}
		if e.Status == domain.QueueStatusFailed || e.Exhausted(filter.MaxAttempts) {
			e.Status = domain.QueueStatusPending
			e.Attempts = 0
			e.LastError = ""
			e.UpdatedAt = m.Now()
			n++
		}
	}
	return n, nil
}

func (m *MockSyncQueue) Purge(ctx context.Context, status domain.QueueStatus, olderThan time.Time) (int64, error) {
	if status == domain.QueueStatusPending {
		return 0, domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, e := range m.entries {
		if e.Status != status {
			continue
		}
		if !olderThan.IsZero() && !e.UpdatedAt.Before(olderThan) {
			continue
		}
		delete(m.entries, id)
		n++
	}
	return n, nil
}

func (m *MockSyncQueue) CountEligible(ctx context.Context, maxAttempts int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Eligible(maxAttempts) {
			n++
		}
	}
	return n, nil
}

// Helper methods for testing

// Entries returns every entry in replay order
func (m *MockSyncQueue) Entries() []*domain.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.QueueEntry, 0, len(m.entries))
	for _, e := range m.sorted(false) {
		out = append(out, copyEntry(e))
	}
	return out
}

// SetAttempts forces the attempt counter of an entry
// ApplyRemap rewrites pending entries that carry a renumbered id
func (m *MockSyncQueue) ApplyRemap(remap domain.IDRemap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Status == domain.QueueStatusPending {
			remap.Rewrite(e)
		}
	}
}

func (m *MockSyncQueue) SetAttempts(id int64, attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Attempts = attempts
	}
}

func (m *MockSyncQueue) sorted(newest bool) []*domain.QueueEntry {
	out := make([]*domain.QueueEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			if newest {
				return a.Timestamp.After(b.Timestamp)
			}
			return a.Timestamp.Before(b.Timestamp)
		}
		if newest {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return out
}

func copyEntry(e *domain.QueueEntry) *domain.QueueEntry {
	c := *e
	c.Payload = e.Payload.Clone()
	return &c
}
