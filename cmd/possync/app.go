package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/pos-sync/internal/adapters/driven/auth"
	"github.com/custodia-labs/pos-sync/internal/adapters/driven/postgres"
	"github.com/custodia-labs/pos-sync/internal/adapters/driven/probe"
	redisadapter "github.com/custodia-labs/pos-sync/internal/adapters/driven/redis"
	"github.com/custodia-labs/pos-sync/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
	"github.com/custodia-labs/pos-sync/internal/core/services"
)

// app holds the wired components of one possync process
type app struct {
	cfg    Config
	logger *slog.Logger

	localDB  *sqlite.DB
	remoteDB *postgres.DB
	redis    *redis.Client // nil unless REDIS_URL is set

	remote     *postgres.RemoteStore
	lock       driven.DistributedLock
	schemas    *services.SchemaRegistry
	engine     *services.SyncEngine
	loop       *services.SyncLoop
	dataAccess *services.DataAccessService
	queueAdmin driving.QueueAdmin
	auth       driving.AuthService
}

// buildApp opens the stores and wires the services. The remote store is
// opened lazily so a terminal starts even while it is offline.
func buildApp(ctx context.Context, cfg Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	// ===== Local store =====
	a.localDB, err = sqlite.Open(ctx, sqlite.DefaultConfig(cfg.LocalDBPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := a.localDB.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize local schema: %w", err)
	}
	logger.Debug("local store ready", "path", a.localDB.Path())

	// ===== Remote store =====
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	a.remoteDB, err = postgres.Open(postgres.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}

	// ===== Redis (optional) =====
	if cfg.RedisURL != "" {
		a.redis, err = redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Debug("redis connected")
	}

	// ===== Driven adapters =====
	local := sqlite.NewLocalStore(a.localDB)
	queue := sqlite.NewSyncQueue(a.localDB)
	a.remote = postgres.NewRemoteStore(a.remoteDB)
	catalog := domain.DefaultCatalog()

	var sessions driven.SessionStore
	if a.redis != nil {
		a.lock = redisadapter.NewLock(a.redis)
		sessions = redisadapter.NewSessionStore(a.redis)
	} else {
		a.lock = postgres.NewAdvisoryLock(a.remoteDB)
		sessions = sqlite.NewSessionStore(a.localDB)
	}

	var netProbe driven.NetworkProbe
	if cfg.ProbeURL != "" {
		netProbe = probe.NewHTTPProbe(probe.DefaultConfig(cfg.ProbeURL))
	}

	// ===== Services =====
	a.schemas = services.NewSchemaRegistry(local, a.remote, logger)
	dialect := services.NewDialectAdapter(services.DialectConfig{
		Schemas: a.schemas,
		Catalog: catalog,
		Logger:  logger,
	})

	engineCfg := services.DefaultSyncEngineConfig()
	engineCfg.Local = local
	engineCfg.Remote = a.remote
	engineCfg.Queue = queue
	engineCfg.Probe = netProbe
	engineCfg.Dialect = dialect
	engineCfg.Catalog = catalog
	engineCfg.Logger = logger
	engineCfg.BatchSize = cfg.SyncBatchSize
	engineCfg.MaxAttempts = cfg.SyncMaxAttempts
	engineCfg.MaxRounds = cfg.SyncMaxRounds
	engineCfg.RemoteTimeout = cfg.RemoteTimeout
	engineCfg.PullOnForce = cfg.SyncPullOnForce
	a.engine = services.NewSyncEngine(engineCfg)

	a.loop = services.NewSyncLoop(services.SyncLoopConfig{
		Runner:       a.engine,
		Lock:         a.lock,
		Logger:       logger,
		Interval:     cfg.SyncInterval,
		MaxBackoff:   cfg.SyncMaxBackoff,
		LockRequired: cfg.SyncLockRequired,
	})

	a.dataAccess = services.NewDataAccessService(services.DataAccessConfig{
		Local:         local,
		Remote:        a.remote,
		Queue:         queue,
		Engine:        a.engine,
		Dialect:       dialect,
		Catalog:       catalog,
		Logger:        logger,
		RemoteTimeout: cfg.RemoteTimeout,
	})

	a.queueAdmin = services.NewQueueAdminService(services.QueueAdminConfig{
		Queue:   queue,
		Engine:  a.engine,
		Schemas: a.schemas,
		Logger:  logger,
	})

	a.auth = services.NewAuthService(services.AuthConfig{
		Operators: sqlite.NewOperatorStore(a.localDB),
		Sessions:  sessions,
		Crypto:    auth.NewAdapter(cfg.JWTSecret),
		Logger:    logger,
	})

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.remoteDB != nil {
		_ = a.remoteDB.Close()
	}
	if a.localDB != nil {
		_ = a.localDB.Close()
	}
}
