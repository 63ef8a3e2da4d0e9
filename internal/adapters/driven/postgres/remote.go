package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RemoteStore = (*RemoteStore)(nil)

var returningRe = regexp.MustCompile(`(?i)\bRETURNING\b`)

// RemoteStore implements driven.RemoteStore using PostgreSQL.
// Every error it returns has been through classify.
type RemoteStore struct {
	db *DB
}

// NewRemoteStore creates a new RemoteStore
func NewRemoteStore(db *DB) *RemoteStore {
	return &RemoteStore{db: db}
}

// Ping checks the server answers
func (s *RemoteStore) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx), "")
}

// Query runs a read and materializes every row
func (s *RemoteStore) Query(ctx context.Context, query string, args ...any) ([]domain.Row, error) {
	return queryRows(ctx, s.db, query, driverArgs(args)...)
}

// Exec runs a write. With a RETURNING clause the first returned column of the
// first row is reported as LastInsertID.
func (s *RemoteStore) Exec(ctx context.Context, query string, args ...any) (*domain.ExecResult, error) {
	args = driverArgs(args)
	out := &domain.ExecResult{Store: domain.StoreRemote}

	if returningRe.MatchString(query) {
		rows, err := queryRows(ctx, s.db, query, args...)
		if err != nil {
			return nil, err
		}
		out.RowsAffected = int64(len(rows))
		if len(rows) > 0 {
			out.LastInsertID = firstInt(rows[0])
		}
		return out, nil
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "")
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out, nil
}

// TableSchema introspects a table through information_schema
func (s *RemoteStore) TableSchema(ctx context.Context, table string) (*domain.TableSchema, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, classify(err, table)
	}
	defer rows.Close()

	var cols []domain.Column
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, classify(err, table)
		}
		cols = append(cols, domain.Column{
			Name:         name,
			DeclaredType: dataType,
			Type:         domain.ClassifyPostgresType(dataType),
			Nullable:     nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, table)
	}

	return domain.NewTableSchema(table, cols), nil
}

// Apply replays one mutation inside its own transaction
func (s *RemoteStore) Apply(ctx context.Context, m domain.Mutation) error {
	if len(m.Row) == 0 {
		return domain.ErrEmptyPayload
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		switch m.Operation {
		case domain.OperationInsert:
			return insert(ctx, tx, m.Table, m.Row)
		case domain.OperationUpdate:
			return update(ctx, tx, m.Table, m.Row)
		case domain.OperationDelete:
			return remove(ctx, tx, m.Table, m.Row)
		default:
			return fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidInput, m.Operation)
		}
	})
	return classify(err, m.Table)
}

// MaxID returns the largest id of a table with an integer id column
func (s *RemoteStore) MaxID(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(id), 0)::bigint FROM %s`, pq.QuoteIdentifier(table))

	var max int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return 0, classify(err, table)
	}
	return max, nil
}

// RowExists reports whether a row with the given id exists
func (s *RemoteStore) RowExists(ctx context.Context, table string, id domain.Value) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, pq.QuoteIdentifier(table))

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, id.Any()).Scan(&exists); err != nil {
		return false, classify(err, table)
	}
	return exists, nil
}

// ReadTable returns every row of a table ordered by id
func (s *RemoteStore) ReadTable(ctx context.Context, table string) ([]domain.Row, error) {
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY id`, pq.QuoteIdentifier(table))
	return queryRows(ctx, s.db, query)
}

// insert adds the row unless its id is taken. A taken id is fine when the
// stored row already holds the payload (a replay whose completion was never
// recorded); otherwise it is an id conflict and nothing is written.
// Rows without an id get one from the sequence.
func insert(ctx context.Context, tx *sql.Tx, table string, row domain.Row) error {
	cols := row.Columns()
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = pq.QuoteIdentifier(c)
		marks[i] = "$" + strconv.Itoa(i+1)
		args[i] = row[c].Any()
	}

	qt := pq.QuoteIdentifier(table)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, strings.Join(names, ", "), strings.Join(marks, ", "))
	id, hasID := row.ID()
	if !hasID {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}

	res, err := tx.ExecContext(ctx, query+" ON CONFLICT (id) DO NOTHING", args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		stored, err := queryRows(ctx, tx, fmt.Sprintf("SELECT * FROM %s WHERE id = $1", qt), id.Any())
		if err != nil {
			return err
		}
		if len(stored) == 1 && row.SameAs(stored[0]) {
			return nil
		}
		return &domain.IDConflictError{Table: table, ID: id}
	}

	if _, ok := id.AsInt(); ok {
		return advanceSequence(ctx, tx, table)
	}
	return nil
}

// advanceSequence moves the id sequence of table, when it has one, past the
// largest stored id so that the next generated id is free. It never moves
// the sequence backwards.
func advanceSequence(ctx context.Context, tx *sql.Tx, table string) error {
	var seq sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT pg_get_serial_sequence($1, 'id')`, pq.QuoteIdentifier(table)).Scan(&seq)
	if err != nil || !seq.Valid {
		return err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		SELECT setval($1::regclass, GREATEST(
			COALESCE(pg_sequence_last_value($1::regclass), 1),
			(SELECT COALESCE(MAX(id), 1) FROM %s)))`, pq.QuoteIdentifier(table)), seq.String)
	return err
}

// update changes the row with the payload's id, inserting it when missing
func update(ctx context.Context, tx *sql.Tx, table string, row domain.Row) error {
	id, ok := row.ID()
	if !ok {
		return fmt.Errorf("%w: update of %s without id", domain.ErrInvalidInput, table)
	}

	var (
		sets []string
		args []any
	)
	for _, c := range row.Columns() {
		if c == "id" {
			continue
		}
		args = append(args, row[c].Any())
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), len(args)))
	}
	if len(sets) == 0 {
		return insert(ctx, tx, table, row)
	}
	args = append(args, id.Any())

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), len(args))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return insert(ctx, tx, table, row)
	}
	return nil
}

// remove deletes the row; a missing row is not an error
func remove(ctx context.Context, tx *sql.Tx, table string, row domain.Row) error {
	id, ok := row.ID()
	if !ok {
		return fmt.Errorf("%w: delete from %s without id", domain.ErrInvalidInput, table)
	}
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1", pq.QuoteIdentifier(table)), id.Any())
	return err
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRows(ctx context.Context, q querier, query string, args ...any) ([]domain.Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "")
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, classify(err, "")
	}

	var out []domain.Row
	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(err, "")
		}
		row := make(domain.Row, len(types))
		for i, ct := range types {
			row[ct.Name()] = decodeValue(ct.DatabaseTypeName(), vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "")
	}
	return out, nil
}

// decodeValue converts what lib/pq scans into a domain value. NUMERIC
// arrives as text and is read as a float.
func decodeValue(dbType string, v any) domain.Value {
	b, ok := v.([]byte)
	if !ok {
		return domain.FromAny(v)
	}
	switch dbType {
	case "NUMERIC", "DECIMAL":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return domain.Float(f)
		}
	}
	return domain.String(string(b))
}

func firstInt(row domain.Row) int64 {
	if id, ok := row.ID(); ok {
		if i, ok := id.AsInt(); ok {
			return i
		}
	}
	for _, v := range row {
		if i, ok := v.AsInt(); ok {
			return i
		}
	}
	return 0
}

// driverArgs unwraps domain values so the driver can bind them
func driverArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if v, ok := a.(domain.Value); ok {
			out[i] = v.Any()
			continue
		}
		out[i] = a
	}
	return out
}
