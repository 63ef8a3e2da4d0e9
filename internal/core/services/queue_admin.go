package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

// Ensure queueAdminService implements driving.QueueAdmin
var _ driving.QueueAdmin = (*queueAdminService)(nil)

// Health thresholds
const (
	highPendingThreshold     = 50
	moderatePendingThreshold = 20
	failedCleanupThreshold   = 10
)

type queueAdminService struct {
	queue      driven.SyncQueue
	engine     *SyncEngine
	schemas    *SchemaRegistry
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// QueueAdminConfig holds dependencies for the queue admin service.
type QueueAdminConfig struct {
	Queue      driven.SyncQueue
	Engine     *SyncEngine
	Schemas    *SchemaRegistry
	Logger     *slog.Logger
	StaleAfter time.Duration // Age at which a pending entry counts as stale (default: 1h)
}

// NewQueueAdminService creates the operator tooling for the sync queue.
func NewQueueAdminService(cfg QueueAdminConfig) driving.QueueAdmin {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &queueAdminService{
		queue:      cfg.Queue,
		engine:     cfg.Engine,
		schemas:    cfg.Schemas,
		logger:     logger,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Inspect lists queue entries. ExhaustedOnly filters use the engine's cap.
func (s *queueAdminService) Inspect(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueEntry, error) {
	if filter.Status != "" {
		if _, err := domain.ParseQueueStatus(string(filter.Status)); err != nil {
			return nil, err
		}
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", domain.ErrInvalidInput)
	}
	if filter.MaxAttempts <= 0 {
		filter.MaxAttempts = s.engine.MaxAttempts()
	}
	if filter.ExhaustedOnly {
		filter.Status = domain.QueueStatusPending
	}
	return s.queue.List(ctx, filter)
}

// GetEntry retrieves a single entry
func (s *queueAdminService) GetEntry(ctx context.Context, id int64) (*domain.QueueEntry, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid entry id %d", domain.ErrInvalidInput, id)
	}
	return s.queue.Get(ctx, id)
}

// ResetFailed revives failed and exhausted entries so the next drain
// retries them.
func (s *queueAdminService) ResetFailed(ctx context.Context, ids []int64) (int64, error) {
	n, err := s.queue.Reset(ctx, domain.ResetFilter{
		IDs:         ids,
		MaxAttempts: s.engine.MaxAttempts(),
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("sync queue entries reset", "count", n, "ids", ids)
	return n, nil
}

// PurgeFailed deletes failed entries older than the cutoff
func (s *queueAdminService) PurgeFailed(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.Purge(ctx, domain.QueueStatusFailed, olderThan)
}

// Purge deletes completed or failed entries. Pending entries are refused.
func (s *queueAdminService) Purge(ctx context.Context, status domain.QueueStatus, olderThan time.Time) (int64, error) {
	switch status {
	case domain.QueueStatusCompleted, domain.QueueStatusFailed:
	default:
		return 0, fmt.Errorf("%w: only completed or failed entries can be purged", domain.ErrInvalidInput)
	}
	n, err := s.queue.Purge(ctx, status, olderThan)
	if err != nil {
		return 0, err
	}
	s.logger.Info("sync queue purged", "status", status, "count", n, "older_than", olderThan)
	return n, nil
}

// SyncOneWay runs a push-only or a pull-only sync
func (s *queueAdminService) SyncOneWay(ctx context.Context, dir domain.Direction) (*domain.SyncReport, error) {
	if dir != domain.DirectionPush && dir != domain.DirectionPull {
		return nil, fmt.Errorf("%w: direction must be push or pull", domain.ErrInvalidInput)
	}
	return s.engine.ForceSync(ctx, driving.SyncOptions{Direction: dir})
}

// Stats summarizes the queue including entries pending for too long.
func (s *queueAdminService) Stats(ctx context.Context) (*domain.QueueStats, error) {
	stats, err := s.queue.Stats(ctx, s.engine.MaxAttempts())
	if err != nil {
		return nil, err
	}
	stats.StaleThreshold = s.staleAfter.String()
	stats.StalePending = 0

	if stats.OldestPending == nil || s.now().Sub(*stats.OldestPending) < s.staleAfter {
		return stats, nil
	}
	pending, err := s.queue.List(ctx, domain.QueueFilter{Status: domain.QueueStatusPending})
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-s.staleAfter)
	for _, e := range pending {
		if e.Eligible(s.engine.MaxAttempts()) && e.Timestamp.Before(cutoff) {
			stats.StalePending++
		}
	}
	return stats, nil
}

// Health grades the sync subsystem from 100 down. Remote connectivity is
// taken from the last probe, not probed again.
func (s *queueAdminService) Health(ctx context.Context) (*domain.HealthReport, error) {
	report := &domain.HealthReport{
		Score:           100,
		Issues:          []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		report.Overall = domain.HealthUnknown
		report.Issues = append(report.Issues, fmt.Sprintf("could not evaluate sync health: %v", err))
		return report, nil
	}
	remoteUp := s.engine.RemoteAvailable()

	if !remoteUp {
		report.Warnings = append(report.Warnings, "remote store not available")
		report.Score -= 20
	}

	switch {
	case stats.Pending > highPendingThreshold:
		report.Issues = append(report.Issues, fmt.Sprintf("sync queue high: %d entries pending", stats.Pending))
		report.Score -= 15
	case stats.Pending > moderatePendingThreshold:
		report.Warnings = append(report.Warnings, fmt.Sprintf("sync queue moderate: %d entries pending", stats.Pending))
		report.Score -= 5
	}

	if stats.Exhausted > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d entries exhausted their retry attempts", stats.Exhausted))
		report.Score -= 10
	}

	if stats.StalePending > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d entries pending for more than %s", stats.StalePending, stats.StaleThreshold))
		report.Score -= 5
	}

	report.Overall = domain.LevelForScore(report.Score)

	if stats.Pending > moderatePendingThreshold {
		report.Recommendations = append(report.Recommendations, "Run a manual sync to reduce the pending queue")
	}
	if stats.Failed > failedCleanupThreshold {
		report.Recommendations = append(report.Recommendations, "Clean failed entries from the sync queue")
	}
	if !remoteUp {
		report.Recommendations = append(report.Recommendations,
			"Check the remote connection configuration",
			"Consider working offline until the connection is restored",
		)
	}
	if len(report.Recommendations) == 0 {
		report.Recommendations = append(report.Recommendations,
			"System working correctly",
			"Keep monitoring sync status regularly",
		)
	}

	return report, nil
}

// RefreshSchema drops cached schemas of one table, or all when table is empty
func (s *queueAdminService) RefreshSchema(ctx context.Context, table string) error {
	if s.schemas == nil {
		return fmt.Errorf("%w: schema registry not configured", domain.ErrInvalidInput)
	}
	s.schemas.Refresh(table)
	return nil
}
