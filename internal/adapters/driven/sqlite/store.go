package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LocalStore = (*LocalStore)(nil)

const syncStatusColumn = "sync_status"

// Row sync markers
const (
	rowPending = "pending"
	rowSynced  = "synced"
)

var returningRe = regexp.MustCompile(`(?is)\s+RETURNING\s+[^;]*;?\s*$`)

// LocalStore implements driven.LocalStore using SQLite
type LocalStore struct {
	db *DB
}

// NewLocalStore creates a new LocalStore
func NewLocalStore(db *DB) *LocalStore {
	return &LocalStore{db: db}
}

// Query runs a read and materializes every row
func (s *LocalStore) Query(ctx context.Context, query string, args ...any) ([]domain.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, driverArgs(args)...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", domain.ErrLocalStore, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	return out, nil
}

// Exec runs a write. A trailing RETURNING clause is dropped.
func (s *LocalStore) Exec(ctx context.Context, query string, args ...any) (*domain.ExecResult, error) {
	query = returningRe.ReplaceAllString(query, "")

	res, err := s.db.ExecContext(ctx, query, driverArgs(args)...)
	if err != nil {
		return nil, fmt.Errorf("%w: exec: %v", domain.ErrLocalStore, err)
	}

	out := &domain.ExecResult{Store: domain.StoreLocal}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if isInsert(query) {
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID = id
		}
	}
	return out, nil
}

// TableSchema reads the declared columns of a table
func (s *LocalStore) TableSchema(ctx context.Context, table string) (*domain.TableSchema, error) {
	if _, err := quoteIdent(table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("%w: table info %s: %v", domain.ErrLocalStore, table, err)
	}
	defer rows.Close()

	var cols []domain.Column
	for rows.Next() {
		var (
			name, declared string
			notNull        int
		)
		if err := rows.Scan(&name, &declared, &notNull); err != nil {
			return nil, fmt.Errorf("%w: scan table info: %v", domain.ErrLocalStore, err)
		}
		cols = append(cols, domain.Column{
			Name:         name,
			DeclaredType: declared,
			Type:         domain.ClassifySQLiteType(declared),
			Nullable:     notNull == 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: table info %s: %v", domain.ErrLocalStore, table, err)
	}

	return domain.NewTableSchema(table, cols), nil
}

// Upsert inserts a row or replaces the given columns of the row with the same id
func (s *LocalStore) Upsert(ctx context.Context, table string, row domain.Row) error {
	qt, err := quoteIdent(table)
	if err != nil {
		return err
	}
	if _, ok := row.ID(); !ok {
		return fmt.Errorf("%w: upsert into %s without id", domain.ErrInvalidInput, table)
	}

	cols := row.Columns()
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	var sets []string
	for i, c := range cols {
		qc, err := quoteIdent(c)
		if err != nil {
			return err
		}
		names[i] = qc
		marks[i] = "?"
		args[i] = row[c].Any()
		if c != "id" {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", qc, qc))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, strings.Join(names, ", "), strings.Join(marks, ", "))
	if len(sets) > 0 {
		query += ` ON CONFLICT("id") DO UPDATE SET ` + strings.Join(sets, ", ")
	} else {
		query += ` ON CONFLICT("id") DO NOTHING`
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: upsert %s: %v", domain.ErrLocalStore, table, err)
	}
	return nil
}

// GetRow fetches a row by primary key
func (s *LocalStore) GetRow(ctx context.Context, table string, id domain.Value) (domain.Row, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}

	rows, err := s.Query(ctx, fmt.Sprintf(`SELECT * FROM %s WHERE "id" = ? LIMIT 1`, qt), id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0], nil
}

// PendingRowIDs returns the keys of rows still marked pending
func (s *LocalStore) PendingRowIDs(ctx context.Context, table string) (map[string]bool, error) {
	out := make(map[string]bool)
	ok, err := s.hasSyncStatus(ctx, table)
	if err != nil || !ok {
		return out, err
	}
	qt, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}

	rows, err := s.Query(ctx, fmt.Sprintf(`SELECT "id" FROM %s WHERE %s = ?`, qt, syncStatusColumn), rowPending)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if id, ok := r.ID(); ok {
			out[id.Key()] = true
		}
	}
	return out, nil
}

// MarkRowSynced flags a row as matching the remote copy
func (s *LocalStore) MarkRowSynced(ctx context.Context, table string, id domain.Value) error {
	ok, err := s.hasSyncStatus(ctx, table)
	if err != nil || !ok {
		return err
	}
	qt, err := quoteIdent(table)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ? WHERE "id" = ?`, qt, syncStatusColumn),
		rowSynced, id.Any())
	if err != nil {
		return fmt.Errorf("%w: mark %s synced: %v", domain.ErrLocalStore, table, err)
	}
	return nil
}

// MaxID returns the largest id the table has handed out, counting rows that
// were deleted since.
func (s *LocalStore) MaxID(ctx context.Context, table string) (int64, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}

	var max int64
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT MAX(
			(SELECT COALESCE(MAX("id"), 0) FROM %s),
			COALESCE((SELECT seq FROM sqlite_sequence WHERE name = ?), 0))`, qt), table).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("%w: max id of %s: %v", domain.ErrLocalStore, table, err)
	}
	return max, nil
}

// ReserveIDs makes the table hand out ids above floor from now on
func (s *LocalStore) ReserveIDs(ctx context.Context, table string, floor int64) error {
	if _, err := quoteIdent(table); err != nil {
		return err
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sqlite_sequence SET seq = MAX(seq, ?) WHERE name = ?`, floor, table)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n > 0 {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)`, table, floor)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: reserve ids of %s: %v", domain.ErrLocalStore, table, err)
	}
	return nil
}

// RemapID moves a row to a new id in one transaction: the row itself, the
// columns of child tables that point at it and the pending queue entries that
// carry the old id.
func (s *LocalStore) RemapID(ctx context.Context, remap domain.IDRemap) error {
	qt, err := quoteIdent(remap.Table)
	if err != nil {
		return err
	}

	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET "id" = ? WHERE "id" = ?`, qt), remap.To.Any(), remap.From.Any()); err != nil {
			return err
		}

		for _, c := range remap.Children {
			exists, err := tableExists(ctx, tx, c.Table)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}
			ct, err := quoteIdent(c.Table)
			if err != nil {
				return err
			}
			cc, err := quoteIdent(c.Column)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, ct, cc, cc), remap.To.Any(), remap.From.Any()); err != nil {
				return err
			}
		}

		return remapQueue(ctx, tx, remap)
	})
	if err != nil {
		return fmt.Errorf("%w: remap %s %s to %s: %v",
			domain.ErrLocalStore, remap.Table, remap.From.Key(), remap.To.Key(), err)
	}
	return nil
}

// remapQueue rewrites the payloads of pending entries that carry the old id
func remapQueue(ctx context.Context, tx *sql.Tx, remap domain.IDRemap) error {
	args := []any{string(domain.QueueStatusPending), remap.Table}
	marks := []string{"?"}
	for _, c := range remap.Children {
		args = append(args, c.Table)
		marks = append(marks, "?")
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+queueColumns+` FROM sync_queue
		WHERE status = ? AND table_name IN (`+strings.Join(marks, ", ")+`)`, args...)
	if err != nil {
		return err
	}
	var changed []*domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return err
		}
		if remap.Rewrite(e) {
			changed = append(changed, e)
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, e := range changed {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sync_queue SET data = ?, row_id = ? WHERE id = ?`,
			string(data), e.RowID, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func tableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	return n > 0, err
}

// Ping checks the database file is usable
func (s *LocalStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	return nil
}

func (s *LocalStore) hasSyncStatus(ctx context.Context, table string) (bool, error) {
	schema, err := s.TableSchema(ctx, table)
	if err != nil {
		return false, err
	}
	return schema.Has(syncStatusColumn), nil
}

func isInsert(query string) bool {
	q := strings.TrimSpace(query)
	return len(q) >= 6 && strings.EqualFold(q[:6], "INSERT")
}

func scanRows(rows *sql.Rows) ([]domain.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []domain.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(domain.Row, len(cols))
		for i, c := range cols {
			row[c] = domain.FromAny(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
