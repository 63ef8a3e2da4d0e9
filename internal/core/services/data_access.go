package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

// Ensure DataAccessService implements driving.DataAccess
var _ driving.DataAccess = (*DataAccessService)(nil)

var returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)

// DataAccessService is the single database entry point of the POS
// application. It prefers the remote store and falls back to the local store,
// queueing local writes for replay.
type DataAccessService struct {
	local         driven.LocalStore
	remote        driven.RemoteStore
	queue         driven.SyncQueue
	engine        *SyncEngine
	dialect       *DialectAdapter
	catalog       *domain.Catalog
	logger        *slog.Logger
	remoteTimeout time.Duration
	localOnly     []*regexp.Regexp
}

// DataAccessConfig holds dependencies for DataAccessService.
type DataAccessConfig struct {
	Local         driven.LocalStore
	Remote        driven.RemoteStore
	Queue         driven.SyncQueue
	Engine        *SyncEngine
	Dialect       *DialectAdapter
	Catalog       *domain.Catalog
	Logger        *slog.Logger
	RemoteTimeout time.Duration // Bound on foreground remote calls (default: 5s)
}

// NewDataAccessService creates the facade.
func NewDataAccessService(cfg DataAccessConfig) *DataAccessService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	s := &DataAccessService{
		local:         cfg.Local,
		remote:        cfg.Remote,
		queue:         cfg.Queue,
		engine:        cfg.Engine,
		dialect:       cfg.Dialect,
		catalog:       catalog,
		logger:        logger,
		remoteTimeout: timeout,
	}
	for _, table := range catalog.LocalOnly {
		s.localOnly = append(s.localOnly, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(table)+`\b`))
	}
	return s
}

// IsLocalOnly reports whether a statement touches a table that never leaves
// the terminal.
func (s *DataAccessService) IsLocalOnly(query string) bool {
	for _, re := range s.localOnly {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

// Query runs a read against the remote store when it is reachable, falling
// back to the local store on any remote error.
func (s *DataAccessService) Query(ctx context.Context, query string, params ...any) ([]domain.Row, error) {
	if !s.IsLocalOnly(query) && s.engine.RemoteAvailable() {
		rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
		rows, err := s.remote.Query(rctx, s.dialect.AdaptQueryText(query), params...)
		cancel()
		if err == nil {
			return rows, nil
		}
		if domain.IsConnectivity(err) {
			s.engine.MarkRemoteUnavailable(err)
		}
		s.logger.Warn("remote query failed, reading local store", "error", err)
	}

	rows, err := s.local.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	return rows, nil
}

// Execute runs a write. It goes to the remote store only when the remote is
// reachable and nothing is waiting in the queue, so replay order stays
// meaningful. A write that lands locally is queued when meta is given.
func (s *DataAccessService) Execute(ctx context.Context, query string, params []any, meta *domain.SyncMeta) (*domain.ExecResult, error) {
	if err := s.validateMeta(meta); err != nil {
		return nil, err
	}

	localOnly := s.IsLocalOnly(query)
	if !localOnly && s.preferRemote(ctx) {
		remoteQuery := s.dialect.AdaptQueryText(query)
		tracked := meta != nil && meta.Operation == domain.OperationInsert && !s.catalog.IsLocalOnly(meta.Table)
		if tracked && !returningClause.MatchString(remoteQuery) {
			remoteQuery = strings.TrimRight(remoteQuery, "; \t\n") + " RETURNING id"
		}

		rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
		res, err := s.remote.Exec(rctx, remoteQuery, params...)
		cancel()
		if err == nil {
			res.Store = domain.StoreRemote
			if tracked && res.LastInsertID > 0 {
				s.reserveLocalIDs(ctx, meta.Table, res.LastInsertID)
			}
			return res, nil
		}
		switch {
		case domain.IsConnectivity(err):
			s.engine.MarkRemoteUnavailable(err)
			s.logger.Warn("remote write failed, writing locally", "error", err)
		case errors.Is(err, domain.ErrForeignKeyViolation):
			s.logger.Warn("remote write references a row not yet replayed, writing locally", "error", err)
		default:
			return nil, err
		}
	}

	res, err := s.local.Exec(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLocalStore, err)
	}
	res.Store = domain.StoreLocal

	if meta == nil || localOnly || s.catalog.IsLocalOnly(meta.Table) {
		return res, nil
	}

	payload := meta.Payload.Clone()
	if meta.Operation == domain.OperationInsert {
		if _, ok := payload.ID(); !ok && res.LastInsertID > 0 {
			payload["id"] = domain.Int(res.LastInsertID)
		}
	}
	entryID, err := s.queue.Enqueue(ctx, s.catalog.Canonical(meta.Table), meta.Operation, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: enqueue: %v", domain.ErrLocalStore, err)
	}
	res.QueueEntryID = entryID

	s.logger.Debug("write queued for sync",
		"table", meta.Table, "operation", meta.Operation, "entry_id", entryID)
	return res, nil
}

// reserveLocalIDs keeps ids the remote store handed out away from the
// local sequence, so a later offline insert does not reuse them.
func (s *DataAccessService) reserveLocalIDs(ctx context.Context, table string, id int64) {
	if err := s.local.ReserveIDs(ctx, s.catalog.Canonical(table), id); err != nil {
		s.logger.Warn("failed to reserve remote id locally", "table", table, "id", id, "error", err)
	}
}

func (s *DataAccessService) validateMeta(meta *domain.SyncMeta) error {
	if meta == nil {
		return nil
	}
	if meta.Table == "" {
		return fmt.Errorf("%w: sync metadata without table", domain.ErrInvalidInput)
	}
	if !meta.Operation.Valid() {
		return fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidInput, meta.Operation)
	}
	if meta.Operation != domain.OperationInsert {
		if _, ok := meta.Payload.ID(); !ok {
			return fmt.Errorf("%w: %s needs the row id in its payload", domain.ErrInvalidInput, meta.Operation)
		}
	}
	return nil
}

func (s *DataAccessService) preferRemote(ctx context.Context) bool {
	if !s.engine.RemoteAvailable() {
		return false
	}
	n, err := s.queue.CountEligible(ctx, s.engine.MaxAttempts())
	if err != nil {
		s.logger.Warn("failed to count pending entries", "error", err)
		return false
	}
	return n == 0
}

// GetSyncStatus summarizes the queue and connectivity
func (s *DataAccessService) GetSyncStatus(ctx context.Context) (*domain.SyncStatus, error) {
	return s.engine.Status(ctx)
}

// ForceSync probes, drains and pulls. Returns true when the queue was fully
// drained.
func (s *DataAccessService) ForceSync(ctx context.Context) bool {
	report, err := s.engine.ForceSync(ctx, driving.SyncOptions{Direction: domain.DirectionBoth})
	if err != nil {
		s.logger.Error("forced sync failed", "error", err)
		return false
	}
	return report.Success
}
