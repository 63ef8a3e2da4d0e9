package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

// Ensure SyncEngine implements driving.SyncEngine
var _ driving.SyncEngine = (*SyncEngine)(nil)

// SyncEngine replays queued mutations against the remote store and
// refreshes the local store from it.
//
// A drain walks the queue oldest first. Each entry is adapted to the remote
// schema and applied in its own remote transaction. When the remote store
// rejects a child row because its parent is missing, the engine replays the
// parent first (promoting its queued insert, or queueing one from the local
// row) and retries the child once.
type SyncEngine struct {
	local   driven.LocalStore
	remote  driven.RemoteStore
	queue   driven.SyncQueue
	probe   driven.NetworkProbe
	dialect *DialectAdapter
	catalog *domain.Catalog
	logger  *slog.Logger

	batchSize     int
	maxAttempts   int
	maxRounds     int
	repairDepth   int
	remoteTimeout time.Duration
	pullTimeout   time.Duration
	pullOnForce   bool

	// cycleMu serializes drains and pulls
	cycleMu sync.Mutex

	mu              sync.RWMutex
	state           domain.EngineState
	remoteAvailable bool
	lastSyncAt      *time.Time
	lastError       string
}

// SyncEngineConfig holds dependencies and tuning for SyncEngine.
type SyncEngineConfig struct {
	Local   driven.LocalStore
	Remote  driven.RemoteStore
	Queue   driven.SyncQueue
	Probe   driven.NetworkProbe // Optional: checked before pinging the remote store
	Dialect *DialectAdapter
	Catalog *domain.Catalog
	Logger  *slog.Logger

	BatchSize     int           // Entries per drain round (default: 20)
	MaxAttempts   int           // Attempts before an entry is exhausted (default: 5)
	MaxRounds     int           // Drain rounds per forced sync (default: 10)
	RepairDepth   int           // Parent repair recursion limit (default: 3)
	RemoteTimeout time.Duration // Bound on each remote call (default: 5s)
	PullTimeout   time.Duration // Bound on reading one remote table (default: 2m)
	PullOnForce   bool          // Refresh local tables after a forced two-way sync
}

// DefaultSyncEngineConfig returns the tuning used when nothing is configured.
func DefaultSyncEngineConfig() SyncEngineConfig {
	return SyncEngineConfig{
		BatchSize:     20,
		MaxAttempts:   5,
		MaxRounds:     10,
		RepairDepth:   3,
		RemoteTimeout: 5 * time.Second,
		PullTimeout:   2 * time.Minute,
		PullOnForce:   true,
	}
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(cfg SyncEngineConfig) *SyncEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	def := DefaultSyncEngineConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.RepairDepth <= 0 {
		cfg.RepairDepth = def.RepairDepth
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = def.RemoteTimeout
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = def.PullTimeout
	}

	return &SyncEngine{
		local:         cfg.Local,
		remote:        cfg.Remote,
		queue:         cfg.Queue,
		probe:         cfg.Probe,
		dialect:       cfg.Dialect,
		catalog:       catalog,
		logger:        logger,
		batchSize:     cfg.BatchSize,
		maxAttempts:   cfg.MaxAttempts,
		maxRounds:     cfg.MaxRounds,
		repairDepth:   cfg.RepairDepth,
		remoteTimeout: cfg.RemoteTimeout,
		pullTimeout:   cfg.PullTimeout,
		pullOnForce:   cfg.PullOnForce,
		state:         domain.EngineStateIdle,
	}
}

// MaxAttempts returns the attempt cap used by the engine
func (e *SyncEngine) MaxAttempts() int { return e.maxAttempts }

// State returns the current engine phase
func (e *SyncEngine) State() domain.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// RemoteAvailable returns the result of the last probe
func (e *SyncEngine) RemoteAvailable() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.remoteAvailable
}

func (e *SyncEngine) setState(s domain.EngineState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *SyncEngine) setAvailable(available bool, reason error) {
	e.mu.Lock()
	changed := e.remoteAvailable != available
	e.remoteAvailable = available
	e.mu.Unlock()

	if !changed {
		return
	}
	if available {
		e.logger.Info("remote store reachable")
	} else {
		e.logger.Warn("remote store unreachable, working offline", "error", reason)
	}
}

// MarkRemoteUnavailable records a connectivity failure seen outside the
// engine so callers stop preferring the remote store until the next probe.
func (e *SyncEngine) MarkRemoteUnavailable(err error) {
	e.setAvailable(false, err)
}

func (e *SyncEngine) recordCycle(err error) {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSyncAt = &now
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
	}
}

// ProbeConnectivity checks the network and then the remote store, each under
// the remote timeout. It never errors.
func (e *SyncEngine) ProbeConnectivity(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	if e.probe != nil {
		if err := e.probe.Reachable(pctx); err != nil {
			e.setAvailable(false, err)
			return false
		}
	}
	if err := e.remote.Ping(pctx); err != nil {
		e.setAvailable(false, err)
		return false
	}
	e.setAvailable(true, nil)
	return true
}

// DrainQueue replays up to maxItems eligible entries.
func (e *SyncEngine) DrainQueue(ctx context.Context, maxItems int) (*domain.DrainResult, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	e.setState(domain.EngineStateDraining)
	defer e.setState(domain.EngineStateIdle)

	return e.drain(ctx, maxItems)
}

// Cycle is one background iteration: probe, then drain a single batch when
// the remote store is reachable. Being offline is not an error.
func (e *SyncEngine) Cycle(ctx context.Context) (*domain.DrainResult, error) {
	if !e.cycleMu.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer e.cycleMu.Unlock()

	e.setState(domain.EngineStateProbing)
	defer e.setState(domain.EngineStateIdle)

	if !e.ProbeConnectivity(ctx) {
		return &domain.DrainResult{}, nil
	}

	e.setState(domain.EngineStateDraining)
	res, err := e.drain(ctx, e.batchSize)
	if err != nil && domain.IsConnectivity(err) {
		err = nil
	}
	if res.Attempted > 0 || err != nil {
		e.recordCycle(err)
	}
	return res, err
}

// drainRun tracks one drain so that parents replayed by the repair pass are
// not replayed again when the batch reaches them, and so that ids renumbered
// earlier in the drain reach entries already read from the queue.
type drainRun struct {
	engine *SyncEngine
	result *domain.DrainResult
	done   map[int64]bool
	remaps []domain.IDRemap
}

func (e *SyncEngine) drain(ctx context.Context, maxItems int) (*domain.DrainResult, error) {
	start := time.Now()
	run := &drainRun{
		engine: e,
		result: &domain.DrainResult{},
		done:   make(map[int64]bool),
	}
	defer func() { run.result.Duration = time.Since(start).Seconds() }()

	if maxItems <= 0 {
		maxItems = e.batchSize
	}
	entries, err := e.queue.NextBatch(ctx, maxItems, e.maxAttempts)
	if err != nil {
		return run.result, fmt.Errorf("read sync queue: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return run.result, err
		}
		if run.done[entry.ID] {
			continue
		}

		run.result.Attempted++
		err := run.replay(ctx, entry, 0)
		switch {
		case err == nil:
			run.result.Completed++
		case domain.IsConnectivity(err):
			e.setAvailable(false, err)
			return run.result, err
		case errors.Is(err, domain.ErrLocalStore):
			return run.result, err
		default:
			run.result.Failed++
		}
	}

	if run.result.Attempted > 0 {
		e.logger.Info("sync queue drained",
			"attempted", run.result.Attempted,
			"completed", run.result.Completed,
			"failed", run.result.Failed,
			"repaired", run.result.Repaired,
			"renumbered", run.result.Renumbered,
		)
	}
	return run.result, nil
}

// replay applies one entry and records the outcome in the queue.
// Connectivity errors leave the entry untouched.
func (r *drainRun) replay(ctx context.Context, entry *domain.QueueEntry, depth int) error {
	e := r.engine
	log := e.logger.With("entry_id", entry.ID, "table", entry.TableName, "operation", entry.Operation)

	if entry.RawPayload != "" || !entry.Operation.Valid() {
		reason := "undecodable payload"
		if !entry.Operation.Valid() {
			reason = fmt.Sprintf("unknown operation %q", entry.Operation)
		}
		log.Error("sync queue entry can never be replayed", "reason", reason)
		if err := e.queue.MarkFailed(ctx, entry.ID, reason); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
		}
		r.done[entry.ID] = true
		return fmt.Errorf("%w: %s", domain.ErrInvalidPayload, reason)
	}

	r.rewrite(entry)
	mut, err := e.mutationFor(ctx, entry)
	if err == nil {
		err = e.apply(ctx, mut)
		if err != nil && errors.Is(err, domain.ErrForeignKeyViolation) && depth < e.repairDepth {
			repaired, rerr := r.repairParents(ctx, entry, depth)
			if rerr != nil && domain.IsConnectivity(rerr) {
				return rerr
			}
			if repaired > 0 {
				r.result.Repaired += repaired
				log.Info("replayed missing parents, retrying entry", "parents", repaired)
				if r.rewrite(entry) {
					mut, err = e.mutationFor(ctx, entry)
				}
				if err == nil || errors.Is(err, domain.ErrForeignKeyViolation) {
					err = e.apply(ctx, mut)
				}
			}
		}
		if err != nil && errors.Is(err, domain.ErrIDConflict) && entry.Operation == domain.OperationInsert {
			if rerr := r.renumber(ctx, entry, &mut); rerr != nil {
				if domain.IsConnectivity(rerr) || errors.Is(rerr, domain.ErrLocalStore) {
					return rerr
				}
				err = rerr
			} else {
				err = e.apply(ctx, mut)
			}
		}
	}

	if err == nil {
		if merr := e.queue.MarkCompleted(ctx, entry.ID); merr != nil {
			return fmt.Errorf("%w: %v", domain.ErrLocalStore, merr)
		}
		r.done[entry.ID] = true
		e.markLocalSynced(ctx, entry, mut)
		return nil
	}
	if domain.IsConnectivity(err) {
		return err
	}

	attempts, merr := e.queue.MarkFailedAttempt(ctx, entry.ID, err.Error())
	if merr != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalStore, merr)
	}
	r.done[entry.ID] = true
	if attempts >= e.maxAttempts {
		log.Error("sync queue entry exhausted, needs operator review", "attempts", attempts, "error", err)
	} else {
		log.Warn("sync queue entry failed", "attempts", attempts, "error", err)
	}
	return err
}

// rewrite applies the ids renumbered so far in this drain to an entry read
// before they moved.
func (r *drainRun) rewrite(entry *domain.QueueEntry) bool {
	changed := false
	for _, m := range r.remaps {
		if m.Rewrite(entry) {
			changed = true
		}
	}
	return changed
}

// renumber moves an offline insert whose id the remote store already gave
// to another row onto the first id free in both stores. The local row, its
// children and the pending entries that point at it move in one local
// transaction before the insert is retried.
func (r *drainRun) renumber(ctx context.Context, entry *domain.QueueEntry, mut *domain.Mutation) error {
	e := r.engine
	old, _ := mut.Row.ID()
	if _, ok := old.AsInt(); !ok {
		return &domain.IDConflictError{Table: mut.Table, ID: old}
	}

	mctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	remoteMax, err := e.remote.MaxID(mctx, mut.Table)
	cancel()
	if err != nil {
		return err
	}
	localMax, err := e.local.MaxID(ctx, entry.TableName)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}

	remap := domain.IDRemap{
		Table:    entry.TableName,
		From:     old,
		To:       domain.Int(max(remoteMax, localMax) + 1),
		Children: e.catalog.ChildrenOf(entry.TableName),
	}
	if err := e.local.RemapID(ctx, remap); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	remap.Rewrite(entry)
	r.remaps = append(r.remaps, remap)
	mut.Row["id"] = remap.To
	r.result.Renumbered++

	e.logger.Warn("id taken remotely by another row, renumbered offline insert",
		"table", entry.TableName, "from", old.Key(), "to", remap.To.Key(), "entry_id", entry.ID)
	return nil
}

// repairParents replays the missing parents of a child entry and returns how
// many were replayed.
func (r *drainRun) repairParents(ctx context.Context, child *domain.QueueEntry, depth int) (int, error) {
	e := r.engine
	repaired := 0

	for _, fk := range e.catalog.ParentsOf(child.TableName) {
		ref, ok := child.Payload[fk.Column]
		if !ok || ref.IsNull() {
			continue
		}

		exists, err := e.rowExists(ctx, fk.Parent, ref)
		if err != nil {
			return repaired, err
		}
		if exists {
			continue
		}

		parent, err := e.queue.FindPendingInsert(ctx, fk.Parent, ref.Key())
		switch {
		case err == nil:
			if perr := e.queue.Promote(ctx, parent.ID, child.Timestamp); perr != nil {
				return repaired, fmt.Errorf("%w: %v", domain.ErrLocalStore, perr)
			}
		case errors.Is(err, domain.ErrNotFound):
			parent, err = e.synthesizeParent(ctx, fk.Parent, ref, child.Timestamp)
			if err != nil {
				return repaired, err
			}
			if parent == nil {
				e.logger.Warn("parent row missing in both stores",
					"table", fk.Parent, "id", ref.Key(), "child_entry_id", child.ID)
				continue
			}
		default:
			return repaired, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
		}

		if r.done[parent.ID] {
			continue
		}
		err = r.replay(ctx, parent, depth+1)
		if err == nil {
			repaired++
			continue
		}
		if domain.IsConnectivity(err) || errors.Is(err, domain.ErrLocalStore) {
			return repaired, err
		}
	}
	return repaired, nil
}

// synthesizeParent queues an insert of a local row just ahead of its child.
// It returns nil when the row does not exist locally either.
func (e *SyncEngine) synthesizeParent(ctx context.Context, table string, id domain.Value, before time.Time) (*domain.QueueEntry, error) {
	row, err := e.local.GetRow(ctx, table, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}

	entryID, err := e.queue.EnqueueAt(ctx, table, domain.OperationInsert, row, before.Add(-time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	e.logger.Info("queued missing parent from local row", "table", table, "id", id.Key(), "entry_id", entryID)

	entry, err := e.queue.Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	return entry, nil
}

func (e *SyncEngine) mutationFor(ctx context.Context, entry *domain.QueueEntry) (domain.Mutation, error) {
	table := e.dialect.RemoteTable(entry.TableName)
	if entry.Operation == domain.OperationDelete {
		id, ok := entry.Payload.ID()
		if !ok {
			return domain.Mutation{}, fmt.Errorf("%w: delete without id", domain.ErrInvalidPayload)
		}
		return domain.Mutation{Table: table, Operation: entry.Operation, Row: domain.Row{"id": id}}, nil
	}

	sctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()
	row, err := e.dialect.AdaptForRemote(sctx, table, entry.Payload)
	if err != nil {
		return domain.Mutation{}, err
	}
	if entry.Operation == domain.OperationUpdate {
		if _, ok := row.ID(); !ok {
			return domain.Mutation{}, fmt.Errorf("%w: update without id", domain.ErrInvalidPayload)
		}
	}
	return domain.Mutation{Table: table, Operation: entry.Operation, Row: row}, nil
}

func (e *SyncEngine) apply(ctx context.Context, mut domain.Mutation) error {
	actx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()
	return e.remote.Apply(actx, mut)
}

func (e *SyncEngine) rowExists(ctx context.Context, table string, id domain.Value) (bool, error) {
	rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()
	return e.remote.RowExists(rctx, table, id)
}

func (e *SyncEngine) markLocalSynced(ctx context.Context, entry *domain.QueueEntry, mut domain.Mutation) {
	if entry.Operation == domain.OperationDelete {
		return
	}
	id, ok := mut.Row.ID()
	if !ok {
		return
	}
	if err := e.local.MarkRowSynced(ctx, mut.Table, id); err != nil {
		e.logger.Warn("failed to mark local row synced", "table", mut.Table, "id", id.Key(), "error", err)
	}
}

// SyncRemoteToLocal copies remote rows into the local store, parents first.
// Local rows still waiting to be pushed are left alone. The queue is not
// touched.
func (e *SyncEngine) SyncRemoteToLocal(ctx context.Context, tables []string) (*domain.PullResult, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	e.setState(domain.EngineStatePulling)
	defer e.setState(domain.EngineStateIdle)

	return e.pull(ctx, tables)
}

func (e *SyncEngine) pull(ctx context.Context, tables []string) (*domain.PullResult, error) {
	start := time.Now()
	res := &domain.PullResult{
		Tables: make(map[string]int),
		Errors: make(map[string]string),
	}
	defer func() { res.Duration = time.Since(start).Seconds() }()

	if len(tables) == 0 {
		tables = e.catalog.SyncOrder
	}

	for _, name := range tables {
		table := e.catalog.Canonical(name)
		if e.catalog.IsLocalOnly(table) {
			continue
		}
		if err := e.pullTable(ctx, table, res); err != nil {
			if domain.IsConnectivity(err) || errors.Is(err, domain.ErrLocalStore) {
				return res, err
			}
			res.Errors[table] = err.Error()
			e.logger.Warn("failed to pull table", "table", table, "error", err)
		}
	}

	e.logger.Info("pulled remote tables", "tables", res.Tables, "skipped", res.Skipped)
	return res, nil
}

func (e *SyncEngine) pullTable(ctx context.Context, table string, res *domain.PullResult) error {
	rctx, cancel := context.WithTimeout(ctx, e.pullTimeout)
	rows, err := e.remote.ReadTable(rctx, table)
	cancel()
	if err != nil {
		return fmt.Errorf("read remote %s: %w", table, err)
	}

	pending, err := e.local.PendingRowIDs(ctx, table)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	queued, err := e.queue.List(ctx, domain.QueueFilter{Status: domain.QueueStatusPending, TableName: table})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	if pending == nil {
		pending = make(map[string]bool)
	}
	for _, q := range queued {
		if q.RowID != "" {
			pending[q.RowID] = true
		}
	}
	schema, err := e.dialect.schemas.Local(ctx, table)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	if !schema.Exists() {
		return fmt.Errorf("local table %s: %w", table, domain.ErrNotFound)
	}
	hasMarker := schema.Has("sync_status")

	res.Tables[table] = 0
	for _, row := range rows {
		id, ok := row.ID()
		if !ok {
			continue
		}
		if pending[id.Key()] {
			res.Skipped++
			continue
		}
		adapted, err := e.dialect.AdaptForLocal(ctx, table, row)
		if err != nil {
			e.logger.Warn("skipping remote row", "table", table, "id", id.Key(), "error", err)
			res.Skipped++
			continue
		}
		if hasMarker {
			adapted["sync_status"] = domain.String("synced")
		}
		if err := e.local.Upsert(ctx, table, adapted); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
		}
		res.Tables[table]++
	}
	return nil
}

// ForceSync probes, drains until the queue is empty or stops making
// progress, then pulls according to opts.
func (e *SyncEngine) ForceSync(ctx context.Context, opts driving.SyncOptions) (*domain.SyncReport, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	defer e.setState(domain.EngineStateIdle)

	dir := opts.Direction
	if dir == "" {
		dir = domain.DirectionBoth
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidInput, dir)
	}

	report := &domain.SyncReport{
		ID:        uuid.NewString(),
		Direction: dir,
		StartedAt: time.Now(),
	}
	log := e.logger.With("sync_id", report.ID, "direction", dir)
	log.Info("forced sync starting")

	e.setState(domain.EngineStateProbing)
	report.Online = e.ProbeConnectivity(ctx)

	var fatal error
	if !report.Online {
		report.Error = domain.ErrRemoteUnavailable.Error()
	} else {
		fatal = e.forcePush(ctx, dir, report)
		if fatal == nil && report.Error == "" && (dir == domain.DirectionPull || (dir.Pulls() && e.pullOnForce)) {
			e.setState(domain.EngineStatePulling)
			pull, err := e.pull(ctx, opts.Tables)
			report.Pull = pull
			if err != nil {
				report.Error = err.Error()
				if !domain.IsConnectivity(err) {
					fatal = err
				}
			}
		}
	}

	remaining, err := e.queue.CountEligible(ctx, e.maxAttempts)
	if err != nil && fatal == nil {
		fatal = fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	report.Remaining = remaining
	report.CompletedAt = time.Now()
	report.Success = report.Error == "" && fatal == nil && (!dir.Pushes() || remaining == 0)
	if fatal != nil && report.Error == "" {
		report.Error = fatal.Error()
	}

	if report.Error != "" {
		e.recordCycle(errors.New(report.Error))
	} else {
		e.recordCycle(nil)
	}
	log.Info("forced sync finished",
		"online", report.Online,
		"rounds", report.Rounds,
		"completed", report.Drain.Completed,
		"failed", report.Drain.Failed,
		"remaining", report.Remaining,
		"success", report.Success,
	)
	return report, fatal
}

func (e *SyncEngine) forcePush(ctx context.Context, dir domain.Direction, report *domain.SyncReport) error {
	if !dir.Pushes() {
		return nil
	}
	e.setState(domain.EngineStateDraining)
	for round := 0; round < e.maxRounds; round++ {
		res, err := e.drain(ctx, e.batchSize)
		report.Rounds++
		report.Drain.Add(res)
		if err != nil {
			report.Error = err.Error()
			if domain.IsConnectivity(err) {
				return nil
			}
			return err
		}
		if res.Attempted == 0 || res.Completed == 0 {
			return nil
		}
	}
	return nil
}

// Status summarizes the queue and connectivity
func (e *SyncEngine) Status(ctx context.Context) (*domain.SyncStatus, error) {
	stats, err := e.queue.Stats(ctx, e.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	recent, err := e.queue.List(ctx, domain.QueueFilter{
		Status:      domain.QueueStatusPending,
		MaxAttempts: e.maxAttempts,
		Newest:      true,
		Limit:       10,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return &domain.SyncStatus{
		Pending:         stats.Pending,
		Exhausted:       stats.Exhausted,
		Completed:       stats.Completed,
		Failed:          stats.Failed,
		RemoteAvailable: e.remoteAvailable,
		EngineState:     e.state,
		LastSyncAt:      e.lastSyncAt,
		LastError:       e.lastError,
		PendingByTable:  stats.PendingByTable,
		RecentPending:   recent,
	}, nil
}
