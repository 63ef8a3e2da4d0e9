package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the possync binary reads from the environment
type Config struct {
	LocalDBPath string
	DatabaseURL string
	RedisURL    string
	ProbeURL    string

	SyncInterval     time.Duration
	SyncBatchSize    int
	SyncMaxAttempts  int
	SyncMaxBackoff   time.Duration
	SyncMaxRounds    int
	SyncPullOnForce  bool
	RemoteTimeout    time.Duration
	SyncLockRequired bool

	JWTSecret      string
	Host           string
	Port           int
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// loadConfig reads a .env file when present, then the environment
func loadConfig() Config {
	// Missing .env is normal outside development
	_ = godotenv.Load()

	return Config{
		LocalDBPath: getEnv("LOCAL_DB_PATH", "data/pos.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		ProbeURL:    getEnv("PROBE_URL", ""),

		SyncInterval:     getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		SyncBatchSize:    getEnvInt("SYNC_BATCH_SIZE", 20),
		SyncMaxAttempts:  getEnvInt("SYNC_MAX_ATTEMPTS", 5),
		SyncMaxBackoff:   getEnvDuration("SYNC_MAX_BACKOFF", 5*time.Minute),
		SyncMaxRounds:    getEnvInt("SYNC_MAX_ROUNDS", 10),
		SyncPullOnForce:  getEnvBool("SYNC_PULL_ON_FORCE", true),
		RemoteTimeout:    getEnvDuration("REMOTE_TIMEOUT", 5*time.Second),
		SyncLockRequired: getEnvBool("SYNC_LOCK_REQUIRED", false),

		JWTSecret:      getEnv("JWT_SECRET", "development-secret-change-in-production"),
		Host:           getEnv("HOST", "127.0.0.1"),
		Port:           getEnvInt("PORT", 8080),
		AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", format)
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
