package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

func newTestQueueAdmin(t *testing.T) (*syncFixture, *queueAdminService) {
	t.Helper()
	f := newSyncFixture(t, nil)
	svc := NewQueueAdminService(QueueAdminConfig{
		Queue:   f.queue,
		Engine:  f.engine,
		Schemas: f.schemas,
	}).(*queueAdminService)
	return f, svc
}

func TestQueueAdmin_Inspect(t *testing.T) {
	f, svc := newTestQueueAdmin(t)
	ctx := context.Background()

	f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(1, "Bebidas"))
	exhausted := f.enqueue(t, domain.TableProductos, domain.OperationInsert, producto(10, 1, "Agua"))
	f.queue.SetAttempts(exhausted, f.engine.MaxAttempts())

	all, err := svc.Inspect(ctx, domain.QueueFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := svc.Inspect(ctx, domain.QueueFilter{ExhaustedOnly: true})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, exhausted, only[0].ID)

	byTable, err := svc.Inspect(ctx, domain.QueueFilter{TableName: domain.TableCategorias})
	require.NoError(t, err)
	assert.Len(t, byTable, 1)

	_, err = svc.Inspect(ctx, domain.QueueFilter{Status: "stuck"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Inspect(ctx, domain.QueueFilter{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueueAdmin_GetEntry(t *testing.T) {
	f, svc := newTestQueueAdmin(t)
	ctx := context.Background()
	id := f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(1, "Bebidas"))

	e, err := svc.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TableCategorias, e.TableName)

	_, err = svc.GetEntry(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetEntry(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueueAdmin_ResetFailed(t *testing.T) {
	f, svc := newTestQueueAdmin(t)
	ctx := context.Background()

	failed := f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(1, "Bebidas"))
	require.NoError(t, f.queue.MarkFailed(ctx, failed, "bad payload"))
	exhausted := f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(2, "Botanas"))
	f.queue.SetAttempts(exhausted, f.engine.MaxAttempts())
	healthy := f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(3, "Dulces"))
	f.queue.SetAttempts(healthy, 1)

	n, err := svc.ResetFailed(ctx, []int64{failed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.ResetFailed(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the exhausted entry is left to reset")

	for _, id := range []int64{failed, exhausted} {
		e, _ := f.queue.Get(ctx, id)
		assert.Equal(t, domain.QueueStatusPending, e.Status)
		assert.Zero(t, e.Attempts)
		assert.Empty(t, e.LastError)
	}
	e, _ := f.queue.Get(ctx, healthy)
	assert.Equal(t, 1, e.Attempts, "entries below the cap keep their attempts")
}

func TestQueueAdmin_Purge(t *testing.T) {
	f, svc := newTestQueueAdmin(t)
	ctx := context.Background()

	done := f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(1, "Bebidas"))
	require.NoError(t, f.queue.MarkCompleted(ctx, done))
	failed := f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(2, "Botanas"))
	require.NoError(t, f.queue.MarkFailed(ctx, failed, "bad payload"))
	pending := f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(3, "Dulces"))

	_, err := svc.Purge(ctx, domain.QueueStatusPending, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	n, err := svc.PurgeFailed(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "recent failures are kept")

	n, err = svc.PurgeFailed(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.Purge(ctx, domain.QueueStatusCompleted, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries := f.queue.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, pending, entries[0].ID)
}

func TestQueueAdmin_SyncOneWay(t *testing.T) {
	f, svc := newTestQueueAdmin(t)
	ctx := context.Background()

	f.enqueue(t, domain.TableCategorias, domain.OperationInsert, categoria(1, "Bebidas"))

	_, err := svc.SyncOneWay(ctx, domain.DirectionBoth)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	report, err := svc.SyncOneWay(ctx, domain.DirectionPush)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Nil(t, report.Pull, "push-only sync does not pull")
	assert.Equal(t, 1, f.remote.Count(domain.TableCategorias))

	report, err = svc.SyncOneWay(ctx, domain.DirectionPull)
	require.NoError(t, err)
	require.NotNil(t, report.Pull)
	assert.Equal(t, 1, report.Pull.Tables[domain.TableCategorias])
	assert.Zero(t, report.Rounds)
}

func TestQueueAdmin_Stats(t *testing.T) {
	f, svc := newTestQueueAdmin(t)
	ctx := context.Background()

	now := time.Now()
	svc.now = func() time.Time { return now }
	_, _ = f.queue.EnqueueAt(ctx, domain.TableCategorias, domain.OperationInsert, categoria(1, "Bebidas"), now.Add(-2*time.Hour))
	_, _ = f.queue.EnqueueAt(ctx, domain.TableCategorias, domain.OperationInsert, categoria(2, "Botanas"), now.Add(-time.Minute))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.StalePending)
	assert.Equal(t, "1h0m0s", stats.StaleThreshold)
	assert.Equal(t, 2, stats.PendingByTable[domain.TableCategorias])
}

func TestQueueAdmin_Health(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		online    bool
		pending   int
		exhausted int
		failed    int
		stale     bool
		wantScore int
		wantLevel domain.HealthLevel
		wantRecs  []string
	}{
		{
			name:      "healthy",
			online:    true,
			wantScore: 100,
			wantLevel: domain.HealthExcellent,
			wantRecs:  []string{"System working correctly", "Keep monitoring sync status regularly"},
		},
		{
			name:      "offline",
			online:    false,
			wantScore: 80,
			wantLevel: domain.HealthGood,
			wantRecs:  []string{"Check the remote connection configuration", "Consider working offline until the connection is restored"},
		},
		{
			name:      "moderate queue",
			online:    true,
			pending:   21,
			wantScore: 95,
			wantLevel: domain.HealthExcellent,
			wantRecs:  []string{"Run a manual sync to reduce the pending queue"},
		},
		{
			name:      "everything wrong",
			online:    false,
			pending:   51,
			exhausted: 2,
			failed:    11,
			stale:     true,
			wantScore: 50,
			wantLevel: domain.HealthFair,
			wantRecs: []string{
				"Run a manual sync to reduce the pending queue",
				"Clean failed entries from the sync queue",
				"Check the remote connection configuration",
				"Consider working offline until the connection is restored",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, svc := newTestQueueAdmin(t)
			if tt.online {
				require.True(t, f.engine.ProbeConnectivity(ctx))
			}

			ts := time.Now()
			if tt.stale {
				ts = ts.Add(-3 * time.Hour)
			}
			for i := 0; i < tt.pending; i++ {
				_, _ = f.queue.EnqueueAt(ctx, domain.TableVentas, domain.OperationInsert, domain.Row{"id": domain.Int(int64(i + 1))}, ts)
			}
			for i := 0; i < tt.exhausted; i++ {
				id := f.enqueue(t, domain.TableVentas, domain.OperationUpdate, domain.Row{"id": domain.Int(int64(1000 + i))})
				f.queue.SetAttempts(id, f.engine.MaxAttempts())
			}
			for i := 0; i < tt.failed; i++ {
				id := f.enqueue(t, domain.TableVentas, domain.OperationDelete, domain.Row{"id": domain.Int(int64(2000 + i))})
				require.NoError(t, f.queue.MarkFailed(ctx, id, "undecodable payload"))
			}

			report, err := svc.Health(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, report.Score)
			assert.Equal(t, tt.wantLevel, report.Overall)
			assert.Equal(t, tt.wantRecs, report.Recommendations)
		})
	}
}

func TestQueueAdmin_RefreshSchema(t *testing.T) {
	f, svc := newTestQueueAdmin(t)
	ctx := context.Background()

	_, err := f.schemas.Remote(ctx, domain.TableCategorias)
	require.NoError(t, err)

	f.remote.SetSchema(domain.NewTableSchema(domain.TableCategorias, []domain.Column{
		col("id", domain.ColumnInt),
		col("nombre", domain.ColumnText),
		col("activo", domain.ColumnBool),
		col("color", domain.ColumnText),
	}))

	cached, _ := f.schemas.Remote(ctx, domain.TableCategorias)
	assert.False(t, cached.Has("color"), "schema is served from cache until refreshed")

	require.NoError(t, svc.RefreshSchema(ctx, domain.TableCategorias))

	fresh, _ := f.schemas.Remote(ctx, domain.TableCategorias)
	assert.True(t, fresh.Has("color"))
}
