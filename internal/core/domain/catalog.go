package domain

import (
	"sort"
	"strings"
)

// ForeignKey links a child column to the primary key of a parent table
type ForeignKey struct {
	Column string `json:"column"`
	Parent string `json:"parent"`
}

// ChildRef names a column that holds the id of a parent row
type ChildRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Catalog describes the synchronized tables: their dependency order, the
// foreign keys the repair pass follows, and the tables that never leave the
// local store.
type Catalog struct {
	// SyncOrder lists synchronized tables, parents before children
	SyncOrder []string

	// ForeignKeys maps a child table to its parent references
	ForeignKeys map[string][]ForeignKey

	// LocalOnly lists tables that are always routed to the local store
	LocalOnly []string

	// Aliases maps historical table names to their current name
	Aliases map[string]string

	// BooleanColumns lists column names compared as booleans in query text
	BooleanColumns []string
}

// Table names of the POS schema
const (
	TableCategorias       = "categorias"
	TableVendedores       = "vendedores"
	TableProductos        = "productos"
	TableVentas           = "ventas"
	TableDetalleVentas    = "detalle_ventas"
	TableSyncQueue        = "sync_queue"
	TableUsuarios         = "usuarios"
	TableOperatorSessions = "operator_sessions"
)

// DefaultCatalog returns the catalog of the POS schema
func DefaultCatalog() *Catalog {
	return &Catalog{
		SyncOrder: []string{
			TableCategorias,
			TableVendedores,
			TableProductos,
			TableVentas,
			TableDetalleVentas,
		},
		ForeignKeys: map[string][]ForeignKey{
			TableProductos: {
				{Column: "categoria_id", Parent: TableCategorias},
			},
			TableVentas: {
				{Column: "vendedor_id", Parent: TableVendedores},
			},
			TableDetalleVentas: {
				{Column: "venta_id", Parent: TableVentas},
				{Column: "producto_id", Parent: TableProductos},
			},
		},
		LocalOnly: []string{TableSyncQueue, TableUsuarios, TableOperatorSessions},
		Aliases: map[string]string{
			"items_venta": TableDetalleVentas,
		},
		BooleanColumns: []string{"activo"},
	}
}

// Canonical resolves a table alias to the current table name
func (c *Catalog) Canonical(table string) string {
	t := strings.ToLower(strings.TrimSpace(table))
	if alias, ok := c.Aliases[t]; ok {
		return alias
	}
	return t
}

// IsLocalOnly reports whether table never leaves the local store
func (c *Catalog) IsLocalOnly(table string) bool {
	t := c.Canonical(table)
	for _, name := range c.LocalOnly {
		if name == t {
			return true
		}
	}
	return false
}

// ParentsOf returns the foreign keys declared for table
func (c *Catalog) ParentsOf(table string) []ForeignKey {
	return c.ForeignKeys[c.Canonical(table)]
}

// ChildrenOf returns every column of another table that references table
func (c *Catalog) ChildrenOf(table string) []ChildRef {
	t := c.Canonical(table)
	var out []ChildRef
	for child, fks := range c.ForeignKeys {
		for _, fk := range fks {
			if fk.Parent == t {
				out = append(out, ChildRef{Table: child, Column: fk.Column})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Column < out[j].Column
	})
	return out
}

// Rank returns the position of table in the sync order, or len(SyncOrder)
// for tables outside it.
func (c *Catalog) Rank(table string) int {
	t := c.Canonical(table)
	for i, name := range c.SyncOrder {
		if name == t {
			return i
		}
	}
	return len(c.SyncOrder)
}
