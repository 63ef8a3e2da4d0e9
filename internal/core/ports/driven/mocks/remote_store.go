package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.RemoteStore = (*MockRemoteStore)(nil)

// MockRemoteStore is an in-memory remote store. It enforces the catalog's
// foreign keys, rejects columns missing from a registered schema and refuses
// an insert whose id holds a different row.
type MockRemoteStore struct {
	mu      sync.Mutex
	online  bool
	catalog *domain.Catalog
	schemas map[string]*domain.TableSchema
	tables  map[string]map[string]domain.Row
	serial  map[string]int64
	applied []domain.Mutation
	execs   []string

	PingFn  func() error
	QueryFn func(query string, args ...any) ([]domain.Row, error)
	ExecFn  func(query string, args ...any) (*domain.ExecResult, error)
	ApplyFn func(m domain.Mutation) error
}

// NewMockRemoteStore creates an online, empty remote store
func NewMockRemoteStore(catalog *domain.Catalog) *MockRemoteStore {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	return &MockRemoteStore{
		online:  true,
		catalog: catalog,
		schemas: make(map[string]*domain.TableSchema),
		tables:  make(map[string]map[string]domain.Row),
		serial:  make(map[string]int64),
	}
}

// SetOnline toggles connectivity
func (m *MockRemoteStore) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
}

// SetSchema registers the columns of a table
func (m *MockRemoteStore) SetSchema(schema *domain.TableSchema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[schema.Table] = schema
}

// Seed stores a row directly, bypassing foreign keys
func (m *MockRemoteStore) Seed(table string, row domain.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(table, row)
}

// Row returns a stored row
func (m *MockRemoteStore) Row(table string, id domain.Value) (domain.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[table][id.Key()]
	return row, ok
}

// Count returns the number of rows in a table
func (m *MockRemoteStore) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// Applied returns the mutations applied so far
func (m *MockRemoteStore) Applied() []domain.Mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Mutation(nil), m.applied...)
}

// Execs returns the statements passed to Exec
func (m *MockRemoteStore) Execs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.execs...)
}

func (m *MockRemoteStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return m.checkOnline()
}

func (m *MockRemoteStore) Query(ctx context.Context, query string, args ...any) ([]domain.Row, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	if m.QueryFn != nil {
		return m.QueryFn(query, args...)
	}
	return nil, nil
}

func (m *MockRemoteStore) Exec(ctx context.Context, query string, args ...any) (*domain.ExecResult, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.execs = append(m.execs, query)
	m.mu.Unlock()
	if m.ExecFn != nil {
		return m.ExecFn(query, args...)
	}
	return &domain.ExecResult{Store: domain.StoreRemote, RowsAffected: 1}, nil
}

func (m *MockRemoteStore) TableSchema(ctx context.Context, table string) (*domain.TableSchema, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schemas[table]; ok {
		return s, nil
	}
	return domain.NewTableSchema(table, nil), nil
}

func (m *MockRemoteStore) Apply(ctx context.Context, mut domain.Mutation) error {
	if err := m.checkOnline(); err != nil {
		return err
	}
	if m.ApplyFn != nil {
		if err := m.ApplyFn(mut); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.schemas[mut.Table]; ok {
		for col := range mut.Row {
			if !s.Has(col) {
				return fmt.Errorf("column %q of relation %q does not exist", col, mut.Table)
			}
		}
	}

	id, hasID := mut.Row.ID()
	switch mut.Operation {
	case domain.OperationDelete:
		if !hasID {
			return fmt.Errorf("%w: delete without id", domain.ErrInvalidPayload)
		}
		delete(m.tables[mut.Table], id.Key())
	case domain.OperationInsert, domain.OperationUpdate:
		if err := m.checkForeignKeys(mut.Table, mut.Row); err != nil {
			return err
		}
		row := mut.Row.Clone()
		if existing, ok := m.tables[mut.Table][id.Key()]; hasID && ok {
			if mut.Operation == domain.OperationInsert {
				if !row.SameAs(existing) {
					return &domain.IDConflictError{Table: mut.Table, ID: id}
				}
				break
			}
			for col, v := range row {
				existing[col] = v
			}
			row = existing
		} else if !hasID {
			if mut.Operation == domain.OperationUpdate {
				return fmt.Errorf("%w: update without id", domain.ErrInvalidPayload)
			}
			m.serial[mut.Table]++
			row["id"] = domain.Int(m.serial[mut.Table])
		}
		m.put(mut.Table, row)
	default:
		return fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidPayload, mut.Operation)
	}

	m.applied = append(m.applied, mut)
	return nil
}

func (m *MockRemoteStore) MaxID(ctx context.Context, table string) (int64, error) {
	if err := m.checkOnline(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, row := range m.tables[table] {
		id, _ := row.ID()
		if n, ok := id.AsInt(); ok && n > max {
			max = n
		}
	}
	return max, nil
}

func (m *MockRemoteStore) RowExists(ctx context.Context, table string, id domain.Value) (bool, error) {
	if err := m.checkOnline(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[table][id.Key()]
	return ok, nil
}

func (m *MockRemoteStore) ReadTable(ctx context.Context, table string) ([]domain.Row, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.tables[table]))
	for k := range m.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]domain.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, m.tables[table][k].Clone())
	}
	return rows, nil
}

func (m *MockRemoteStore) checkOnline() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.online {
		return fmt.Errorf("dial tcp: connection refused: %w", domain.ErrRemoteUnavailable)
	}
	return nil
}

func (m *MockRemoteStore) checkForeignKeys(table string, row domain.Row) error {
	for _, fk := range m.catalog.ParentsOf(table) {
		ref, ok := row[fk.Column]
		if !ok || ref.IsNull() {
			continue
		}
		if _, exists := m.tables[fk.Parent][ref.Key()]; !exists {
			return &domain.ForeignKeyError{
				Table:      table,
				Constraint: fmt.Sprintf("%s_%s_fkey", table, fk.Column),
				Detail:     fmt.Sprintf("Key (%s)=(%s) is not present in table %q.", fk.Column, ref.Key(), fk.Parent),
			}
		}
	}
	return nil
}

func (m *MockRemoteStore) put(table string, row domain.Row) {
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]domain.Row)
	}
	id, _ := row.ID()
	if n, ok := id.AsInt(); ok && n > m.serial[table] {
		m.serial[table] = n
	}
	m.tables[table][id.Key()] = row
}
