package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

func newTestQueue(t *testing.T) (*SyncQueue, *DB) {
	t.Helper()
	db := newTestDB(t)
	return NewSyncQueue(db), db
}

func TestSyncQueue_EnqueueAndGet(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	payload := domain.Row{
		"id":     domain.Int(3),
		"nombre": domain.String("Agua"),
		"precio": domain.Float(12.5),
		"activo": domain.Bool(true),
	}
	id, err := q.Enqueue(ctx, domain.TableProductos, domain.OperationInsert, payload)
	require.NoError(t, err)
	assert.Positive(t, id)

	e, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TableProductos, e.TableName)
	assert.Equal(t, domain.OperationInsert, e.Operation)
	assert.Equal(t, domain.QueueStatusPending, e.Status)
	assert.Equal(t, "3", e.RowID)
	assert.Empty(t, e.RawPayload)
	require.Len(t, e.Payload, len(payload))
	for col, v := range payload {
		assert.True(t, v.Equal(e.Payload[col]), "column %s", col)
	}

	_, err = q.Get(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = q.Enqueue(ctx, domain.TableProductos, "UPSERT", payload)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSyncQueue_NextBatchOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	late, _ := q.EnqueueAt(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(2)}, base.Add(time.Second))
	early, _ := q.EnqueueAt(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(1)}, base)
	tie, _ := q.EnqueueAt(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(3)}, base.Add(time.Second))

	batch, err := q.NextBatch(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, []int64{early, late, tie}, []int64{batch[0].ID, batch[1].ID, batch[2].ID})
	assert.True(t, batch[0].Timestamp.Equal(base))

	batch, err = q.NextBatch(ctx, 2, 5)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	batch, err = q.NextBatch(ctx, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestSyncQueue_AttemptCap(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(1)})

	for want := 1; want <= 3; want++ {
		n, err := q.MarkFailedAttempt(ctx, id, "parent missing")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	e, _ := q.Get(ctx, id)
	assert.Equal(t, domain.QueueStatusPending, e.Status, "attempts never change the status")
	assert.Equal(t, "parent missing", e.LastError)

	batch, _ := q.NextBatch(ctx, 10, 3)
	assert.Empty(t, batch, "exhausted entries are not replayed")
	n, _ := q.CountEligible(ctx, 3)
	assert.Zero(t, n)
	n, _ = q.CountEligible(ctx, 5)
	assert.Equal(t, 1, n)

	stats, err := q.Stats(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Exhausted)

	_, err = q.MarkFailedAttempt(ctx, 999, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncQueue_MarkCompleted(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(1)})

	require.NoError(t, q.MarkCompleted(ctx, id))
	require.NoError(t, q.MarkCompleted(ctx, id), "completing twice is fine")
	assert.ErrorIs(t, q.MarkCompleted(ctx, 999), domain.ErrNotFound)

	e, _ := q.Get(ctx, id)
	assert.Equal(t, domain.QueueStatusCompleted, e.Status)

	stats, _ := q.Stats(ctx, 5)
	assert.Equal(t, 1, stats.Completed)
	assert.NotNil(t, stats.LastCompleted)
	assert.Nil(t, stats.OldestPending)
}

func TestSyncQueue_MarkFailedAndReset(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	failed, _ := q.Enqueue(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(1)})
	exhausted, _ := q.Enqueue(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(2)})
	healthy, _ := q.Enqueue(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(3)})

	require.NoError(t, q.MarkFailed(ctx, failed, "undecodable payload"))
	assert.ErrorIs(t, q.MarkFailed(ctx, 999, "x"), domain.ErrNotFound)
	for i := 0; i < 3; i++ {
		_, _ = q.MarkFailedAttempt(ctx, exhausted, "timeout")
	}
	_, _ = q.MarkFailedAttempt(ctx, healthy, "timeout")

	stats, _ := q.Stats(ctx, 3)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Exhausted)
	assert.Equal(t, 1, stats.Pending)

	n, err := q.Reset(ctx, domain.ResetFilter{IDs: []int64{failed}, MaxAttempts: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = q.Reset(ctx, domain.ResetFilter{MaxAttempts: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for _, id := range []int64{failed, exhausted} {
		e, _ := q.Get(ctx, id)
		assert.Equal(t, domain.QueueStatusPending, e.Status)
		assert.Zero(t, e.Attempts)
		assert.Empty(t, e.LastError)
	}
	e, _ := q.Get(ctx, healthy)
	assert.Equal(t, 1, e.Attempts)
}

func TestSyncQueue_Promote(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	child, _ := q.EnqueueAt(ctx, domain.TableProductos, domain.OperationInsert, domain.Row{"id": domain.Int(10)}, base)
	parent, _ := q.EnqueueAt(ctx, domain.TableCategorias, domain.OperationInsert, domain.Row{"id": domain.Int(1)}, base.Add(time.Minute))

	require.NoError(t, q.Promote(ctx, parent, base))

	batch, _ := q.NextBatch(ctx, 10, 5)
	require.Len(t, batch, 2)
	assert.Equal(t, parent, batch[0].ID)
	assert.Equal(t, child, batch[1].ID)
	assert.True(t, batch[0].Timestamp.Before(base))

	// Never moves an entry later
	require.NoError(t, q.Promote(ctx, parent, base.Add(time.Hour)))
	e, _ := q.Get(ctx, parent)
	assert.True(t, e.Timestamp.Before(base))

	assert.ErrorIs(t, q.Promote(ctx, 999, base), domain.ErrNotFound)
}

func TestSyncQueue_FindPendingInsert(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, domain.TableCategorias, domain.OperationUpdate, domain.Row{"id": domain.Int(1)})
	insert, _ := q.Enqueue(ctx, domain.TableCategorias, domain.OperationInsert, domain.Row{"id": domain.Int(1)})
	done, _ := q.Enqueue(ctx, domain.TableCategorias, domain.OperationInsert, domain.Row{"id": domain.Int(2)})
	require.NoError(t, q.MarkCompleted(ctx, done))

	e, err := q.FindPendingInsert(ctx, domain.TableCategorias, "1")
	require.NoError(t, err)
	assert.Equal(t, insert, e.ID)

	_, err = q.FindPendingInsert(ctx, domain.TableCategorias, "2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = q.FindPendingInsert(ctx, domain.TableProductos, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncQueue_List(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		_, _ = q.EnqueueAt(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(int64(i))}, base.Add(time.Duration(i)*time.Second))
	}
	cat, _ := q.EnqueueAt(ctx, domain.TableCategorias, domain.OperationInsert, domain.Row{"id": domain.Int(1)}, base)
	require.NoError(t, q.MarkFailed(ctx, cat, "bad"))

	tests := []struct {
		name    string
		filter  domain.QueueFilter
		wantIDs []string
	}{
		{name: "all", filter: domain.QueueFilter{}, wantIDs: []string{"1", "1", "2", "3", "4", "5"}},
		{name: "by table", filter: domain.QueueFilter{TableName: domain.TableVentas, Limit: 2}, wantIDs: []string{"1", "2"}},
		{name: "offset", filter: domain.QueueFilter{TableName: domain.TableVentas, Limit: 2, Offset: 3}, wantIDs: []string{"4", "5"}},
		{name: "newest", filter: domain.QueueFilter{Newest: true, Limit: 2}, wantIDs: []string{"5", "4"}},
		{name: "failed", filter: domain.QueueFilter{Status: domain.QueueStatusFailed}, wantIDs: []string{"1"}},
		{name: "exhausted", filter: domain.QueueFilter{ExhaustedOnly: true, MaxAttempts: 3}, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := q.List(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, e := range entries {
				got = append(got, e.RowID)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}

func TestSyncQueue_Stats(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _ = q.EnqueueAt(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(1)}, base.Add(time.Minute))
	_, _ = q.EnqueueAt(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(2)}, base)
	_, _ = q.EnqueueAt(ctx, domain.TableProductos, domain.OperationUpdate, domain.Row{"id": domain.Int(3)}, base.Add(time.Hour))

	stats, err := q.Stats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, map[string]int{domain.TableVentas: 2, domain.TableProductos: 1}, stats.PendingByTable)
	require.NotNil(t, stats.OldestPending)
	assert.True(t, stats.OldestPending.Equal(base))
}

func TestSyncQueue_Purge(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	now := time.Now()
	q.now = func() time.Time { return now }

	done, _ := q.Enqueue(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(1)})
	require.NoError(t, q.MarkCompleted(ctx, done))
	failed, _ := q.Enqueue(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(2)})
	require.NoError(t, q.MarkFailed(ctx, failed, "bad"))
	pending, _ := q.Enqueue(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(3)})

	_, err := q.Purge(ctx, domain.QueueStatusPending, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	n, err := q.Purge(ctx, domain.QueueStatusCompleted, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "recent entries are kept")

	n, err = q.Purge(ctx, domain.QueueStatusCompleted, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = q.Purge(ctx, domain.QueueStatusFailed, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = q.Get(ctx, pending)
	assert.NoError(t, err)
}

func TestSyncQueue_UndecodablePayload(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	res, err := db.ExecContext(ctx, `
		INSERT INTO sync_queue (table_name, operation, data, timestamp, status, attempts, updated_at)
		VALUES ('ventas', 'INSERT', '{not json', 1, 'pending', 0, 1)
	`)
	require.NoError(t, err)
	id, _ := res.LastInsertId()

	batch, err := q.NextBatch(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, id, batch[0].ID)
	assert.Equal(t, "{not json", batch[0].RawPayload)
	assert.Nil(t, batch[0].Payload)
}
