package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.LocalStore = (*MockLocalStore)(nil)

// MockLocalStore keeps rows in memory. SQL text is not interpreted: Query
// and Exec delegate to their hooks and record the statements they receive.
type MockLocalStore struct {
	mu      sync.Mutex
	schemas map[string]*domain.TableSchema
	tables  map[string]map[string]domain.Row
	queries []string
	execs   []string
	lastID  int64
	reserve map[string]int64

	// OnRemap runs after RemapID moved the rows, standing in for the queue
	// rewrite the SQLite store does in the same transaction.
	OnRemap func(remap domain.IDRemap)

	QueryFn  func(query string, args ...any) ([]domain.Row, error)
	ExecFn   func(query string, args ...any) (*domain.ExecResult, error)
	UpsertFn func(table string, row domain.Row) error
	PingFn   func() error
}

// NewMockLocalStore creates an empty local store
func NewMockLocalStore() *MockLocalStore {
	return &MockLocalStore{
		schemas: make(map[string]*domain.TableSchema),
		tables:  make(map[string]map[string]domain.Row),
		reserve: make(map[string]int64),
	}
}

// SetSchema registers the columns of a table
func (m *MockLocalStore) SetSchema(schema *domain.TableSchema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[schema.Table] = schema
}

// Seed stores a row directly
func (m *MockLocalStore) Seed(table string, row domain.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(table, row.Clone())
}

// Row returns a stored row
func (m *MockLocalStore) Row(table string, id domain.Value) (domain.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[table][id.Key()]
	return row, ok
}

// Reserved returns the id floor set through ReserveIDs
func (m *MockLocalStore) Reserved(table string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserve[table]
}

// Queries returns the statements passed to Query
func (m *MockLocalStore) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Execs returns the statements passed to Exec
func (m *MockLocalStore) Execs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.execs...)
}

func (m *MockLocalStore) Query(ctx context.Context, query string, args ...any) ([]domain.Row, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.QueryFn != nil {
		return m.QueryFn(query, args...)
	}
	return nil, nil
}

func (m *MockLocalStore) Exec(ctx context.Context, query string, args ...any) (*domain.ExecResult, error) {
	m.mu.Lock()
	m.execs = append(m.execs, query)
	m.lastID++
	id := m.lastID
	m.mu.Unlock()
	if m.ExecFn != nil {
		return m.ExecFn(query, args...)
	}
	return &domain.ExecResult{Store: domain.StoreLocal, LastInsertID: id, RowsAffected: 1}, nil
}

func (m *MockLocalStore) TableSchema(ctx context.Context, table string) (*domain.TableSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schemas[table]; ok {
		return s, nil
	}
	return domain.NewTableSchema(table, nil), nil
}

func (m *MockLocalStore) Upsert(ctx context.Context, table string, row domain.Row) error {
	if m.UpsertFn != nil {
		if err := m.UpsertFn(table, row); err != nil {
			return err
		}
	}
	if _, ok := row.ID(); !ok {
		return domain.ErrInvalidPayload
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := row.ID()
	if existing, ok := m.tables[table][id.Key()]; ok {
		merged := existing.Clone()
		for col, v := range row {
			merged[col] = v
		}
		m.put(table, merged)
		return nil
	}
	m.put(table, row.Clone())
	return nil
}

func (m *MockLocalStore) GetRow(ctx context.Context, table string, id domain.Value) (domain.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[table][id.Key()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return row.Clone(), nil
}

func (m *MockLocalStore) PendingRowIDs(ctx context.Context, table string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]bool)
	for key, row := range m.tables[table] {
		if s, ok := row["sync_status"].AsString(); ok && s == "pending" {
			ids[key] = true
		}
	}
	return ids, nil
}

func (m *MockLocalStore) MarkRowSynced(ctx context.Context, table string, id domain.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[table][id.Key()]
	if !ok {
		return nil
	}
	if _, has := row["sync_status"]; has {
		row["sync_status"] = domain.String("synced")
	}
	return nil
}

func (m *MockLocalStore) MaxID(ctx context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := m.reserve[table]
	for _, row := range m.tables[table] {
		id, _ := row.ID()
		if n, ok := id.AsInt(); ok && n > max {
			max = n
		}
	}
	return max, nil
}

func (m *MockLocalStore) ReserveIDs(ctx context.Context, table string, floor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if floor > m.reserve[table] {
		m.reserve[table] = floor
	}
	return nil
}

func (m *MockLocalStore) RemapID(ctx context.Context, remap domain.IDRemap) error {
	m.mu.Lock()
	from := remap.From.Key()
	if row, ok := m.tables[remap.Table][from]; ok {
		delete(m.tables[remap.Table], from)
		row["id"] = remap.To
		m.put(remap.Table, row)
	}
	for _, c := range remap.Children {
		for _, row := range m.tables[c.Table] {
			if ref, ok := row[c.Column]; ok && !ref.IsNull() && ref.Key() == from {
				row[c.Column] = remap.To
			}
		}
	}
	hook := m.OnRemap
	m.mu.Unlock()

	if hook != nil {
		hook(remap)
	}
	return nil
}

func (m *MockLocalStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

func (m *MockLocalStore) put(table string, row domain.Row) {
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]domain.Row)
	}
	id, _ := row.ID()
	m.tables[table][id.Key()] = row
}
