package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP admin server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	authService driving.AuthService
	engine      driving.SyncEngine
	queueAdmin  driving.QueueAdmin

	// Infrastructure
	local  Pinger // Local store health check
	remote Pinger // Remote store health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string

	// ReadyTimeout bounds the store pings of GET /ready
	ReadyTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		Version:      "dev",
		ReadyTimeout: 3 * time.Second,
	}
}

// Deps are the services the server exposes
type Deps struct {
	AuthService driving.AuthService
	Engine      driving.SyncEngine
	QueueAdmin  driving.QueueAdmin
	Local       Pinger
	Remote      Pinger // can be nil
	Logger      *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 3 * time.Second
	}

	s := &Server{
		router:      http.NewServeMux(),
		version:     cfg.Version,
		logger:      logger,
		authService: deps.AuthService,
		engine:      deps.Engine,
		queueAdmin:  deps.QueueAdmin,
		local:       deps.Local,
		remote:      deps.Remote,
	}

	mws := []Middleware{Recover(logger), AccessLog(logger)}
	if len(cfg.AllowedOrigins) > 0 {
		mws = append(mws, CORS(cfg.AllowedOrigins))
	}
	handler := chain(s.router, mws...)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // forced syncs can run long
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg.ReadyTimeout)
	return s
}

// Handler returns the full middleware chain, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(readyTimeout time.Duration) {
	operator := RequireOperator(s.authService)
	authed := func(h http.HandlerFunc) http.Handler {
		return operator(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return chain(h, operator, RequireAdmin)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady(readyTimeout))
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Auth endpoints
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)
	s.router.Handle("POST /api/v1/auth/logout", authed(s.handleLogout))

	// Sync endpoints
	s.router.Handle("GET /api/v1/sync/status", authed(s.handleSyncStatus))
	s.router.Handle("GET /api/v1/sync/health", authed(s.handleSyncHealth))
	s.router.Handle("POST /api/v1/sync/force", admin(s.handleForceSync))
	s.router.Handle("POST /api/v1/sync/push", admin(s.handleOneWaySync(domain.DirectionPush)))
	s.router.Handle("POST /api/v1/sync/pull", admin(s.handleOneWaySync(domain.DirectionPull)))

	// Queue endpoints
	s.router.Handle("GET /api/v1/queue", authed(s.handleListQueue))
	s.router.Handle("GET /api/v1/queue/{id}", authed(s.handleGetQueueEntry))
	s.router.Handle("POST /api/v1/queue/reset", admin(s.handleResetQueue))
	s.router.Handle("DELETE /api/v1/queue", admin(s.handlePurgeQueue))

	// Schema cache
	s.router.Handle("POST /api/v1/schema/{table}/refresh", admin(s.handleRefreshSchema))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
