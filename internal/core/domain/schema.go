package domain

import "strings"

// ColumnType is the dialect-neutral classification of a declared column type
type ColumnType string

const (
	ColumnBool      ColumnType = "bool"
	ColumnInt       ColumnType = "int"
	ColumnFloat     ColumnType = "float"
	ColumnText      ColumnType = "text"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnOther     ColumnType = "other"
)

// Column describes one column of a table in a particular store
type Column struct {
	Name         string     `json:"name"`
	DeclaredType string     `json:"declared_type"`
	Type         ColumnType `json:"type"`
	Nullable     bool       `json:"nullable"`
}

// TableSchema describes the columns of a table in a particular store.
// An empty schema means the table does not exist there.
type TableSchema struct {
	Table   string            `json:"table"`
	Columns map[string]Column `json:"columns"`
	Order   []string          `json:"order"`
}

// NewTableSchema builds a schema from columns in ordinal order
func NewTableSchema(table string, cols []Column) *TableSchema {
	s := &TableSchema{
		Table:   table,
		Columns: make(map[string]Column, len(cols)),
		Order:   make([]string, 0, len(cols)),
	}
	for _, c := range cols {
		s.Columns[c.Name] = c
		s.Order = append(s.Order, c.Name)
	}
	return s
}

// Has reports whether the table has the named column
func (s *TableSchema) Has(column string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Columns[column]
	return ok
}

// TypeOf returns the classified type of a column
func (s *TableSchema) TypeOf(column string) (ColumnType, bool) {
	if s == nil {
		return "", false
	}
	c, ok := s.Columns[column]
	return c.Type, ok
}

// Exists reports whether the schema describes an existing table
func (s *TableSchema) Exists() bool {
	return s != nil && len(s.Columns) > 0
}

// ClassifyPostgresType maps an information_schema data_type to a ColumnType
func ClassifyPostgresType(dataType string) ColumnType {
	t := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case t == "boolean":
		return ColumnBool
	case t == "smallint", t == "integer", t == "bigint":
		return ColumnInt
	case t == "numeric", t == "decimal", t == "real", t == "double precision", t == "money":
		return ColumnFloat
	case strings.HasPrefix(t, "timestamp"), t == "date":
		return ColumnTimestamp
	case t == "text", strings.HasPrefix(t, "character"), t == "uuid", t == "json", t == "jsonb":
		return ColumnText
	default:
		return ColumnOther
	}
}

// ClassifySQLiteType maps a SQLite declared type to a ColumnType using the
// SQLite affinity rules, with BOOLEAN and DECIMAL/NUMERIC treated as their
// logical types.
func ClassifySQLiteType(declared string) ColumnType {
	t := strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case t == "":
		return ColumnOther
	case strings.Contains(t, "BOOL"):
		return ColumnBool
	case strings.Contains(t, "INT"):
		return ColumnInt
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return ColumnText
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return ColumnTimestamp
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "DEC"), strings.Contains(t, "NUM"):
		return ColumnFloat
	default:
		return ColumnOther
	}
}
