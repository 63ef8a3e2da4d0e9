package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

// SchemaRegistry caches table schemas of both stores.
// Only existing tables are cached so a table created later is picked up on
// the next lookup.
type SchemaRegistry struct {
	local  driven.LocalStore
	remote driven.RemoteStore
	logger *slog.Logger

	mu          sync.RWMutex
	localCache  map[string]*domain.TableSchema
	remoteCache map[string]*domain.TableSchema
}

// NewSchemaRegistry creates a registry over the two stores
func NewSchemaRegistry(local driven.LocalStore, remote driven.RemoteStore, logger *slog.Logger) *SchemaRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaRegistry{
		local:       local,
		remote:      remote,
		logger:      logger,
		localCache:  make(map[string]*domain.TableSchema),
		remoteCache: make(map[string]*domain.TableSchema),
	}
}

// Remote returns the remote schema of a table
func (r *SchemaRegistry) Remote(ctx context.Context, table string) (*domain.TableSchema, error) {
	return r.lookup(ctx, table, true)
}

// Local returns the local schema of a table
func (r *SchemaRegistry) Local(ctx context.Context, table string) (*domain.TableSchema, error) {
	return r.lookup(ctx, table, false)
}

// Refresh drops cached schemas of a table, or of every table when table is empty
func (r *SchemaRegistry) Refresh(table string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if table == "" {
		r.localCache = make(map[string]*domain.TableSchema)
		r.remoteCache = make(map[string]*domain.TableSchema)
		r.logger.Info("schema cache cleared")
		return
	}
	delete(r.localCache, table)
	delete(r.remoteCache, table)
	r.logger.Info("schema cache cleared", "table", table)
}

func (r *SchemaRegistry) lookup(ctx context.Context, table string, remote bool) (*domain.TableSchema, error) {
	r.mu.RLock()
	cache := r.localCache
	if remote {
		cache = r.remoteCache
	}
	s, ok := cache[table]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	var err error
	if remote {
		s, err = r.remote.TableSchema(ctx, table)
	} else {
		s, err = r.local.TableSchema(ctx, table)
	}
	if err != nil {
		return nil, fmt.Errorf("load schema of %s: %w", table, err)
	}
	if !s.Exists() {
		return s, nil
	}

	r.mu.Lock()
	if remote {
		r.remoteCache[table] = s
	} else {
		r.localCache[table] = s
	}
	r.mu.Unlock()
	return s, nil
}
