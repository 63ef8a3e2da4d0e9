package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

// Columns the application attaches to payloads for its own bookkeeping.
// They never exist remotely.
var metadataColumns = map[string]bool{
	"original_query":  true,
	"original_params": true,
	"timestamp":       true,
	"metadata":        true,
	"tags":            true,
	"sync_status":     true,
	"stock_reduction": true,
	"last_updated":    true,
}

var (
	truthy = map[string]bool{"true": true, "t": true, "1": true, "yes": true, "y": true, "on": true}
	falsy  = map[string]bool{"false": true, "f": true, "0": true, "no": true, "n": true, "off": true, "": true}

	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02",
	}

	sqlFuncCall   = regexp.MustCompile(`(?i)\b(coalesce|ifnull|nullif|cast|sum|max|min|abs|round|greatest|least|datetime|strftime)\s*\(`)
	sqlNow        = regexp.MustCompile(`(?i)^\s*(current_timestamp|now\(\)|datetime\(\s*'now'\s*\))\s*$`)
	opWithSpaces  = regexp.MustCompile(`\s[-+*/]\s`)
	opNextToParen = regexp.MustCompile(`[-+*/]\s*\(|\)\s*[-+*/]`)
	identArith    = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*[-+*/]\s*[A-Za-z0-9_.]+\s*$`)

	reDatetimeNow  = regexp.MustCompile(`(?i)\bdatetime\(\s*'now'\s*\)`)
	reDateOffset   = regexp.MustCompile(`(?i)\b(?:datetime|date)\(\s*'now'\s*,\s*'([-+]?)\s*(\d+)\s+(day|month|year|hour|minute)s?'\s*\)`)
	reDateNow      = regexp.MustCompile(`(?i)\bdate\(\s*'now'\s*\)`)
	reDateOfColumn = regexp.MustCompile(`(?i)\bdate\(\s*([a-z_][a-z0-9_]*(?:\.[a-z_][a-z0-9_]*)?)\s*\)`)
)

// DialectAdapter translates payloads and query text between the local
// (SQLite) and remote (PostgreSQL) conventions.
type DialectAdapter struct {
	schemas *SchemaRegistry
	catalog *domain.Catalog
	logger  *slog.Logger
	now     func() time.Time

	aliasRes []aliasRule
	boolRes  []*regexp.Regexp
}

type aliasRule struct {
	re   *regexp.Regexp
	name string
}

// DialectConfig holds dependencies for DialectAdapter.
type DialectConfig struct {
	Schemas *SchemaRegistry
	Catalog *domain.Catalog
	Logger  *slog.Logger
}

// NewDialectAdapter creates a dialect adapter.
func NewDialectAdapter(cfg DialectConfig) *DialectAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}

	d := &DialectAdapter{
		schemas: cfg.Schemas,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
	for alias, name := range catalog.Aliases {
		d.aliasRes = append(d.aliasRes, aliasRule{
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) + `\b`),
			name: name,
		})
	}
	for _, col := range catalog.BooleanColumns {
		d.boolRes = append(d.boolRes, regexp.MustCompile(`(?i)\b(`+regexp.QuoteMeta(col)+`)\s*=\s*([01])\b`))
	}
	return d
}

// RemoteTable resolves historical table names
func (d *DialectAdapter) RemoteTable(table string) string {
	return d.catalog.Canonical(table)
}

// AdaptForRemote makes a payload valid for the remote schema of table.
// Metadata and unknown columns are dropped, embedded SQL expressions are
// dropped, and values are coerced to the declared column types.
func (d *DialectAdapter) AdaptForRemote(ctx context.Context, table string, payload domain.Row) (domain.Row, error) {
	table = d.catalog.Canonical(table)
	schema, err := d.schemas.Remote(ctx, table)
	if err != nil {
		return nil, err
	}
	if !schema.Exists() {
		return nil, fmt.Errorf("remote table %s: %w", table, domain.ErrNotFound)
	}
	return d.adapt(table, payload, schema, true)
}

// AdaptForLocal makes a remote row valid for the local schema of table.
func (d *DialectAdapter) AdaptForLocal(ctx context.Context, table string, payload domain.Row) (domain.Row, error) {
	table = d.catalog.Canonical(table)
	schema, err := d.schemas.Local(ctx, table)
	if err != nil {
		return nil, err
	}
	if !schema.Exists() {
		return nil, fmt.Errorf("local table %s: %w", table, domain.ErrNotFound)
	}
	return d.adapt(table, payload, schema, false)
}

func (d *DialectAdapter) adapt(table string, payload domain.Row, schema *domain.TableSchema, remote bool) (domain.Row, error) {
	out := make(domain.Row, len(payload))
	for _, col := range payload.Columns() {
		v := payload[col]
		if remote && metadataColumns[col] {
			continue
		}
		typ, ok := schema.TypeOf(col)
		if !ok {
			d.logger.Debug("dropping unknown column", "table", table, "column", col)
			continue
		}
		if s, isString := v.AsString(); isString && typ != domain.ColumnOther {
			if typ == domain.ColumnTimestamp && sqlNow.MatchString(s) {
				out[col] = domain.Timestamp(d.now())
				continue
			}
			if looksLikeExpression(s, typ) {
				d.logger.Warn("dropping embedded SQL expression", "table", table, "column", col, "value", s)
				continue
			}
		}
		coerced, ok := Coerce(v, typ)
		if !ok {
			d.logger.Warn("dropping value that does not fit column type",
				"table", table, "column", col, "type", typ, "value", v.String())
			continue
		}
		out[col] = coerced
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", table, domain.ErrEmptyPayload)
	}
	return out, nil
}

// Coerce converts v to the representation expected by a column of type typ.
// It returns false when the value cannot be represented.
func Coerce(v domain.Value, typ domain.ColumnType) (domain.Value, bool) {
	if v.IsNull() {
		return v, true
	}
	switch typ {
	case domain.ColumnBool:
		return coerceBool(v)
	case domain.ColumnInt:
		return coerceInt(v)
	case domain.ColumnFloat:
		return coerceFloat(v)
	case domain.ColumnText:
		if _, ok := v.AsString(); ok {
			return v, true
		}
		return domain.String(v.Text()), true
	case domain.ColumnTimestamp:
		return coerceTimestamp(v)
	default:
		return v, true
	}
}

func coerceBool(v domain.Value) (domain.Value, bool) {
	switch v.Kind() {
	case domain.KindBool:
		return v, true
	case domain.KindInt:
		i, _ := v.AsInt()
		return domain.Bool(i != 0), true
	case domain.KindFloat:
		f, _ := v.AsFloat()
		return domain.Bool(f != 0), true
	case domain.KindString:
		s, _ := v.AsString()
		s = strings.ToLower(strings.TrimSpace(s))
		if truthy[s] {
			return domain.Bool(true), true
		}
		if falsy[s] {
			return domain.Bool(false), true
		}
	}
	return domain.Null(), false
}

func coerceInt(v domain.Value) (domain.Value, bool) {
	switch v.Kind() {
	case domain.KindInt:
		return v, true
	case domain.KindBool:
		b, _ := v.AsBool()
		if b {
			return domain.Int(1), true
		}
		return domain.Int(0), true
	case domain.KindFloat:
		f, _ := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.Null(), false
		}
		return domain.Int(int64(math.Round(f))), true
	case domain.KindString:
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		if s == "" {
			return domain.Null(), true
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return domain.Int(i), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return domain.Int(int64(math.Round(f))), true
		}
		switch strings.ToLower(s) {
		case "true":
			return domain.Int(1), true
		case "false":
			return domain.Int(0), true
		}
	}
	return domain.Null(), false
}

func coerceFloat(v domain.Value) (domain.Value, bool) {
	switch v.Kind() {
	case domain.KindFloat:
		return v, true
	case domain.KindInt:
		i, _ := v.AsInt()
		return domain.Float(float64(i)), true
	case domain.KindBool:
		b, _ := v.AsBool()
		if b {
			return domain.Float(1), true
		}
		return domain.Float(0), true
	case domain.KindString:
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		if s == "" {
			return domain.Null(), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return domain.Float(f), true
		}
	}
	return domain.Null(), false
}

func coerceTimestamp(v domain.Value) (domain.Value, bool) {
	switch v.Kind() {
	case domain.KindTimestamp:
		return v, true
	case domain.KindInt:
		i, _ := v.AsInt()
		return domain.Timestamp(time.Unix(i, 0)), true
	case domain.KindString:
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		if s == "" {
			return domain.Null(), true
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return domain.Timestamp(t), true
			}
		}
		return domain.String(s), true
	}
	return domain.Null(), false
}

// looksLikeExpression reports whether a string value is SQL text that leaked
// into a payload, such as "COALESCE(stock, 0) - 1". Text columns only reject
// explicit function calls so that names like "Coca-Cola (600ml)" survive.
func looksLikeExpression(s string, target domain.ColumnType) bool {
	if sqlFuncCall.MatchString(s) {
		return true
	}
	if target == domain.ColumnText {
		return false
	}
	if strings.ContainsAny(s, "()") && (opWithSpaces.MatchString(s) || opNextToParen.MatchString(s)) {
		return true
	}
	if target == domain.ColumnInt || target == domain.ColumnFloat {
		if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil && identArith.MatchString(s) {
			return true
		}
	}
	return false
}

// AdaptQueryText rewrites a statement written for the local store so the
// remote store accepts it. Every rule is idempotent.
func (d *DialectAdapter) AdaptQueryText(query string) string {
	for _, rule := range d.aliasRes {
		query = rule.re.ReplaceAllString(query, rule.name)
	}

	query = reDatetimeNow.ReplaceAllString(query, "NOW()")
	query = reDateOffset.ReplaceAllStringFunc(query, func(m string) string {
		parts := reDateOffset.FindStringSubmatch(m)
		sign := "+"
		if parts[1] == "-" {
			sign = "-"
		}
		return fmt.Sprintf("CURRENT_DATE %s INTERVAL '%s %ss'", sign, parts[2], strings.ToLower(parts[3]))
	})
	query = reDateNow.ReplaceAllString(query, "CURRENT_DATE")
	query = reDateOfColumn.ReplaceAllString(query, "$1::date")

	for _, re := range d.boolRes {
		query = re.ReplaceAllStringFunc(query, func(m string) string {
			parts := re.FindStringSubmatch(m)
			if parts[2] == "1" {
				return parts[1] + " = TRUE"
			}
			return parts[1] + " = FALSE"
		})
	}

	return numberPlaceholders(query)
}

// numberPlaceholders turns ? placeholders into $1, $2, ... outside quoted
// literals.
func numberPlaceholders(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
