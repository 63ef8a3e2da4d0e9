package services

import (
	"testing"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven/mocks"
)

func col(name string, typ domain.ColumnType) domain.Column {
	return domain.Column{Name: name, DeclaredType: string(typ), Type: typ, Nullable: true}
}

// remoteSchemas mirrors the PostgreSQL side of the POS schema
func remoteSchemas() []*domain.TableSchema {
	return []*domain.TableSchema{
		domain.NewTableSchema(domain.TableCategorias, []domain.Column{
			col("id", domain.ColumnInt),
			col("nombre", domain.ColumnText),
			col("activo", domain.ColumnBool),
			col("created_at", domain.ColumnTimestamp),
		}),
		domain.NewTableSchema(domain.TableVendedores, []domain.Column{
			col("id", domain.ColumnInt),
			col("nombre", domain.ColumnText),
			col("activo", domain.ColumnBool),
		}),
		domain.NewTableSchema(domain.TableProductos, []domain.Column{
			col("id", domain.ColumnInt),
			col("nombre", domain.ColumnText),
			col("precio", domain.ColumnFloat),
			col("stock", domain.ColumnInt),
			col("categoria_id", domain.ColumnInt),
			col("activo", domain.ColumnBool),
			col("updated_at", domain.ColumnTimestamp),
		}),
		domain.NewTableSchema(domain.TableVentas, []domain.Column{
			col("id", domain.ColumnInt),
			col("vendedor_id", domain.ColumnInt),
			col("total", domain.ColumnFloat),
			col("fecha", domain.ColumnTimestamp),
		}),
		domain.NewTableSchema(domain.TableDetalleVentas, []domain.Column{
			col("id", domain.ColumnInt),
			col("venta_id", domain.ColumnInt),
			col("producto_id", domain.ColumnInt),
			col("cantidad", domain.ColumnInt),
			col("precio_unitario", domain.ColumnFloat),
			col("subtotal", domain.ColumnFloat),
		}),
	}
}

// localSchemas is the SQLite side: the same tables plus a sync marker
func localSchemas() []*domain.TableSchema {
	var out []*domain.TableSchema
	for _, s := range remoteSchemas() {
		cols := make([]domain.Column, 0, len(s.Order)+1)
		for _, name := range s.Order {
			c := s.Columns[name]
			if c.Type == domain.ColumnBool {
				c.Type = domain.ColumnInt
			}
			cols = append(cols, c)
		}
		cols = append(cols, col("sync_status", domain.ColumnText))
		out = append(out, domain.NewTableSchema(s.Table, cols))
	}
	return out
}

type syncFixture struct {
	local   *mocks.MockLocalStore
	remote  *mocks.MockRemoteStore
	queue   *mocks.MockSyncQueue
	probe   *mocks.MockNetworkProbe
	schemas *SchemaRegistry
	dialect *DialectAdapter
	engine  *SyncEngine
}

func newSyncFixture(t *testing.T, tune func(*SyncEngineConfig)) *syncFixture {
	t.Helper()

	catalog := domain.DefaultCatalog()
	f := &syncFixture{
		local:  mocks.NewMockLocalStore(),
		remote: mocks.NewMockRemoteStore(catalog),
		queue:  mocks.NewMockSyncQueue(),
		probe:  mocks.NewMockNetworkProbe(),
	}
	f.local.OnRemap = f.queue.ApplyRemap
	for _, s := range remoteSchemas() {
		f.remote.SetSchema(s)
	}
	for _, s := range localSchemas() {
		f.local.SetSchema(s)
	}

	f.schemas = NewSchemaRegistry(f.local, f.remote, nil)
	f.dialect = NewDialectAdapter(DialectConfig{Schemas: f.schemas, Catalog: catalog})

	cfg := DefaultSyncEngineConfig()
	cfg.Local = f.local
	cfg.Remote = f.remote
	cfg.Queue = f.queue
	cfg.Probe = f.probe
	cfg.Dialect = f.dialect
	cfg.Catalog = catalog
	if tune != nil {
		tune(&cfg)
	}
	f.engine = NewSyncEngine(cfg)
	return f
}

func (f *syncFixture) enqueue(t *testing.T, table string, op domain.Operation, row domain.Row) int64 {
	t.Helper()
	id, err := f.queue.Enqueue(t.Context(), table, op, row)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return id
}
