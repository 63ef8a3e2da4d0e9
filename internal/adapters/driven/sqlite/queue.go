package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncQueue = (*SyncQueue)(nil)

const queueColumns = `id, table_name, operation, data, timestamp, status, attempts,
	COALESCE(row_id, ''), COALESCE(last_error, ''), updated_at`

// SyncQueue implements driven.SyncQueue on the local sync_queue table.
// Payloads are stored as JSON, timestamps as Unix nanoseconds.
type SyncQueue struct {
	db  *DB
	now func() time.Time
}

// NewSyncQueue creates a new SyncQueue
func NewSyncQueue(db *DB) *SyncQueue {
	return &SyncQueue{db: db, now: time.Now}
}

// Enqueue appends a pending entry stamped now
func (q *SyncQueue) Enqueue(ctx context.Context, table string, op domain.Operation, payload domain.Row) (int64, error) {
	return q.EnqueueAt(ctx, table, op, payload, q.now())
}

// EnqueueAt appends a pending entry with an explicit timestamp
func (q *SyncQueue) EnqueueAt(ctx context.Context, table string, op domain.Operation, payload domain.Row, ts time.Time) (int64, error) {
	if table == "" || !op.Valid() {
		return 0, fmt.Errorf("%w: enqueue %q %q", domain.ErrInvalidInput, table, op)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	var rowID sql.NullString
	if id, ok := payload.ID(); ok {
		rowID = sql.NullString{String: id.Key(), Valid: true}
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO sync_queue (table_name, operation, data, timestamp, status, attempts, row_id, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, table, string(op), string(data), nanos(ts), string(domain.QueueStatusPending), rowID, nanos(q.now()))
	if err != nil {
		return 0, fmt.Errorf("%w: enqueue: %v", domain.ErrLocalStore, err)
	}
	return res.LastInsertId()
}

// NextBatch returns the oldest eligible entries
func (q *SyncQueue) NextBatch(ctx context.Context, limit, maxAttempts int) ([]*domain.QueueEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	return q.list(ctx, `
		SELECT `+queueColumns+` FROM sync_queue
		WHERE status = ? AND attempts < ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?
	`, string(domain.QueueStatusPending), maxAttempts, limit)
}

// MarkCompleted is idempotent
func (q *SyncQueue) MarkCompleted(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, updated_at = ?
		WHERE id = ? AND status != ?
	`, string(domain.QueueStatusCompleted), nanos(q.now()), id, string(domain.QueueStatusCompleted))
	if err != nil {
		return fmt.Errorf("%w: mark completed: %v", domain.ErrLocalStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return q.exists(ctx, id)
	}
	return nil
}

// MarkFailedAttempt increments attempts and records the reason
func (q *SyncQueue) MarkFailedAttempt(ctx context.Context, id int64, reason string) (int, error) {
	var attempts int
	err := q.db.QueryRowContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ?
		RETURNING attempts
	`, reason, nanos(q.now()), id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: mark failed attempt: %v", domain.ErrLocalStore, err)
	}
	return attempts, nil
}

// MarkFailed moves an entry to the terminal failed state
func (q *SyncQueue) MarkFailed(ctx context.Context, id int64, reason string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, string(domain.QueueStatusFailed), reason, nanos(q.now()), id)
	if err != nil {
		return fmt.Errorf("%w: mark failed: %v", domain.ErrLocalStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Promote moves the entry to just before the given instant. An entry that
// already sorts earlier keeps its timestamp.
func (q *SyncQueue) Promote(ctx context.Context, id int64, before time.Time) error {
	target := nanos(before) - 1
	res, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue SET timestamp = MIN(timestamp, ?), updated_at = ?
		WHERE id = ?
	`, target, nanos(q.now()), id)
	if err != nil {
		return fmt.Errorf("%w: promote: %v", domain.ErrLocalStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindPendingInsert finds the oldest pending insert of a row
func (q *SyncQueue) FindPendingInsert(ctx context.Context, table, rowID string) (*domain.QueueEntry, error) {
	entries, err := q.list(ctx, `
		SELECT `+queueColumns+` FROM sync_queue
		WHERE table_name = ? AND row_id = ? AND operation = ? AND status = ?
		ORDER BY timestamp ASC, id ASC
		LIMIT 1
	`, table, rowID, string(domain.OperationInsert), string(domain.QueueStatusPending))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}
	return entries[0], nil
}

// Get retrieves an entry by id
func (q *SyncQueue) Get(ctx context.Context, id int64) (*domain.QueueEntry, error) {
	entries, err := q.list(ctx, `SELECT `+queueColumns+` FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}
	return entries[0], nil
}

// List returns entries matching the filter
func (q *SyncQueue) List(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TableName != "" {
		where = append(where, "table_name = ?")
		args = append(args, filter.TableName)
	}
	if filter.ExhaustedOnly {
		where = append(where, "status = ? AND attempts >= ?")
		args = append(args, string(domain.QueueStatusPending), filter.MaxAttempts)
	}

	query := `SELECT ` + queueColumns + ` FROM sync_queue`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Newest {
		query += " ORDER BY timestamp DESC, id DESC"
	} else {
		query += " ORDER BY timestamp ASC, id ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // no limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	return q.list(ctx, query, args...)
}

// Stats summarizes the queue
func (q *SyncQueue) Stats(ctx context.Context, maxAttempts int) (*domain.QueueStats, error) {
	stats := &domain.QueueStats{PendingByTable: make(map[string]int)}

	var (
		oldest, lastDone sql.NullInt64
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending' AND attempts < ?1),
			COUNT(*) FILTER (WHERE status = 'pending' AND attempts >= ?1),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			MIN(timestamp) FILTER (WHERE status = 'pending' AND attempts < ?1),
			MAX(updated_at) FILTER (WHERE status = 'completed')
		FROM sync_queue
	`, maxAttempts).Scan(&stats.Pending, &stats.Exhausted, &stats.Completed, &stats.Failed, &oldest, &lastDone)
	if err != nil {
		return nil, fmt.Errorf("%w: queue stats: %v", domain.ErrLocalStore, err)
	}
	stats.OldestPending = timePtr(oldest)
	stats.LastCompleted = timePtr(lastDone)

	rows, err := q.db.QueryContext(ctx, `
		SELECT table_name, COUNT(*) FROM sync_queue
		WHERE status = 'pending' AND attempts < ?
		GROUP BY table_name
	`, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: queue stats by table: %v", domain.ErrLocalStore, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			table string
			n     int
		)
		if err := rows.Scan(&table, &n); err != nil {
			return nil, fmt.Errorf("%w: scan queue stats: %v", domain.ErrLocalStore, err)
		}
		stats.PendingByTable[table] = n
	}
	return stats, rows.Err()
}

// Reset revives failed and exhausted entries
func (q *SyncQueue) Reset(ctx context.Context, filter domain.ResetFilter) (int64, error) {
	query := `
		UPDATE sync_queue SET status = ?, attempts = 0, last_error = NULL, updated_at = ?
		WHERE (status = ? OR (status = ? AND attempts >= ?))`
	args := []any{
		string(domain.QueueStatusPending), nanos(q.now()),
		string(domain.QueueStatusFailed), string(domain.QueueStatusPending), filter.MaxAttempts,
	}

	if len(filter.IDs) > 0 {
		marks := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			marks[i] = "?"
			args = append(args, id)
		}
		query += " AND id IN (" + strings.Join(marks, ", ") + ")"
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: reset queue: %v", domain.ErrLocalStore, err)
	}
	return res.RowsAffected()
}

// Purge deletes completed or failed entries last touched before the cutoff
func (q *SyncQueue) Purge(ctx context.Context, status domain.QueueStatus, olderThan time.Time) (int64, error) {
	if status != domain.QueueStatusCompleted && status != domain.QueueStatusFailed {
		return 0, fmt.Errorf("%w: only completed or failed entries can be purged", domain.ErrInvalidInput)
	}

	query := `DELETE FROM sync_queue WHERE status = ?`
	args := []any{string(status)}
	if !olderThan.IsZero() {
		query += ` AND updated_at < ?`
		args = append(args, nanos(olderThan))
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: purge queue: %v", domain.ErrLocalStore, err)
	}
	return res.RowsAffected()
}

// CountEligible counts entries NextBatch could return
func (q *SyncQueue) CountEligible(ctx context.Context, maxAttempts int) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_queue WHERE status = ? AND attempts < ?
	`, string(domain.QueueStatusPending), maxAttempts).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count eligible: %v", domain.ErrLocalStore, err)
	}
	return n, nil
}

func (q *SyncQueue) exists(ctx context.Context, id int64) error {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM sync_queue WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	return nil
}

func (q *SyncQueue) list(ctx context.Context, query string, args ...any) ([]*domain.QueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list queue: %v", domain.ErrLocalStore, err)
	}
	defer rows.Close()

	var entries []*domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list queue: %v", domain.ErrLocalStore, err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (*domain.QueueEntry, error) {
	var (
		e         domain.QueueEntry
		op        string
		status    string
		data      string
		ts        int64
		updatedAt int64
	)
	if err := rows.Scan(&e.ID, &e.TableName, &op, &data, &ts, &status, &e.Attempts, &e.RowID, &e.LastError, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan queue entry: %w", err)
	}
	e.Operation = domain.Operation(op)
	e.Status = domain.QueueStatus(status)
	e.Timestamp = fromNanos(ts)
	e.UpdatedAt = fromNanos(updatedAt)

	var payload domain.Row
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		// Left for the engine to fail terminally
		e.RawPayload = data
	} else {
		e.Payload = payload
	}
	return &e, nil
}
