package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

// Ensure SyncLoop implements driving.SyncLoop
var _ driving.SyncLoop = (*SyncLoop)(nil)

// DrainLockName is the distributed lock taken around each background cycle
const DrainLockName = "pos-sync:drain"

// CycleRunner runs one background sync iteration
type CycleRunner interface {
	Cycle(ctx context.Context) (*domain.DrainResult, error)
}

// SyncLoop drains the sync queue in the background.
//
// Cycles run on a fixed interval. After an unexpected error the wait grows
// exponentially up to MaxBackoff and resets on the next clean cycle.
//
// When several terminals replay into one remote store, configure a
// DistributedLock so only one of them drains at a time.
type SyncLoop struct {
	runner CycleRunner
	lock   driven.DistributedLock
	logger *slog.Logger

	// Internal state
	mu        sync.RWMutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	triggerCh chan struct{}
	interval  time.Duration
	backoff   *backoff.ExponentialBackOff
	failures  int

	// Lock configuration
	lockTTL      time.Duration
	lockRequired bool
}

// SyncLoopConfig holds configuration for the sync loop.
type SyncLoopConfig struct {
	Runner       CycleRunner
	Lock         driven.DistributedLock // Optional: distributed lock for multi-terminal coordination
	Logger       *slog.Logger
	Interval     time.Duration // Wait between clean cycles (default: 30s)
	MaxBackoff   time.Duration // Longest wait after repeated errors (default: 5m)
	LockTTL      time.Duration // TTL for the distributed lock (default: 2x interval)
	LockRequired bool          // If true, skip the cycle when the lock backend errors
}

// NewSyncLoop creates a new sync loop.
func NewSyncLoop(cfg SyncLoopConfig) *SyncLoop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Minute
	}
	if maxBackoff < 2*interval {
		maxBackoff = 2 * interval
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * interval
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * interval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &SyncLoop{
		runner:       cfg.Runner,
		lock:         cfg.Lock,
		logger:       logger,
		interval:     interval,
		backoff:      bo,
		triggerCh:    make(chan struct{}, 1),
		lockTTL:      lockTTL,
		lockRequired: cfg.LockRequired,
	}
}

// Start begins the loop.
// It runs until Stop is called or context is cancelled.
func (l *SyncLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	l.logger.Info("sync loop starting", "interval", l.interval, "max_backoff", l.backoff.MaxInterval)

	go l.run(ctx)

	return nil
}

// Stop stops the loop and waits for the running cycle to finish.
// Queue state is durable so nothing is lost.
func (l *SyncLoop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	close(l.stopCh)
	l.mu.Unlock()

	<-l.doneCh

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	l.logger.Info("sync loop stopped")
}

// TriggerNow runs a cycle without waiting for the next tick.
// Triggers arriving while one is pending are coalesced.
func (l *SyncLoop) TriggerNow() {
	select {
	case l.triggerCh <- struct{}{}:
	default:
	}
}

// run is the main loop.
func (l *SyncLoop) run(ctx context.Context) {
	defer close(l.doneCh)

	// Run immediately on start
	wait := l.nextDelay(l.runCycle(ctx))

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("sync loop context cancelled")
			return
		case <-l.stopCh:
			return
		case <-l.triggerCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}
		timer.Reset(l.nextDelay(l.runCycle(ctx)))
	}
}

// nextDelay returns the wait before the next cycle: the interval after a
// clean cycle, a growing backoff after consecutive errors.
func (l *SyncLoop) nextDelay(err error) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil {
		l.failures = 0
		l.backoff.Reset()
		return l.interval
	}
	l.failures++
	return l.backoff.NextBackOff()
}

// runCycle runs one cycle, holding the distributed lock if one is configured.
func (l *SyncLoop) runCycle(ctx context.Context) error {
	if l.lock != nil {
		acquired, err := l.lock.Acquire(ctx, DrainLockName, l.lockTTL)
		if err != nil {
			l.logger.Warn("failed to acquire drain lock", "error", err)
			if l.lockRequired {
				return nil // Skip this cycle
			}
			// Fall through if lock not required (single-terminal mode)
		} else if !acquired {
			l.logger.Debug("drain lock held by another terminal, skipping cycle")
			return nil
		} else {
			defer func() {
				if err := l.lock.Release(ctx, DrainLockName); err != nil {
					l.logger.Warn("failed to release drain lock", "error", err)
				}
			}()
		}
	}

	res, err := l.runner.Cycle(ctx)
	if errors.Is(err, domain.ErrSyncInProgress) {
		l.logger.Debug("sync already running, skipping cycle")
		return nil
	}
	if err != nil {
		l.logger.Error("sync cycle failed", "error", err)
		return err
	}
	if res != nil && res.Attempted > 0 {
		l.logger.Debug("sync cycle finished", "completed", res.Completed, "failed", res.Failed)
	}
	return nil
}
