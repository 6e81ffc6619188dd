// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns
// an error and the process exits.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all runtime configuration for the jobsync service.
type Config struct {
	Port     string
	GRPCPort string

	Store       string // postgres | memory
	DatabaseURL string
	DBMaxConns  int32

	// RedisURL is optional; without it notifications are not published and
	// remote invalidation is off.
	RedisURL          string
	NotifyChannel     string
	InvalidateChannel string

	ReloadIntervalMinutes int
	RollbackOnFailure     bool

	SessionDB string

	LogLevel     string
	LogFile      string
	LogMaxSizeMB int
}

// Load reads environment variables (and a .env file when present) and
// returns a validated Config for the server.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := LoadLocal()
	if err != nil {
		return nil, err
	}

	cfg.Store = strings.ToLower(getEnvString("JOBSYNC_STORE", StorePostgres))
	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("JOBSYNC_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 0)
	if err != nil || maxConns < 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be a non-negative integer, got %q", os.Getenv("DB_MAX_CONNS"))
	}
	cfg.DBMaxConns = int32(maxConns)

	interval, err := getEnvInt("RELOAD_INTERVAL_MINUTES", 15)
	if err != nil || interval < 0 {
		return nil, fmt.Errorf("RELOAD_INTERVAL_MINUTES must be a non-negative integer, got %q", os.Getenv("RELOAD_INTERVAL_MINUTES"))
	}
	cfg.ReloadIntervalMinutes = interval

	rollback, err := getEnvBool("SYNC_ROLLBACK_ON_FAILURE", true)
	if err != nil {
		return nil, fmt.Errorf("SYNC_ROLLBACK_ON_FAILURE must be a boolean, got %q", os.Getenv("SYNC_ROLLBACK_ON_FAILURE"))
	}
	cfg.RollbackOnFailure = rollback

	cfg.Port = getEnvString("JOBSYNC_PORT", "8083")
	cfg.GRPCPort = getEnvString("JOBSYNC_GRPC_PORT", "9093")
	if cfg.Port == cfg.GRPCPort {
		return nil, fmt.Errorf("JOBSYNC_PORT and JOBSYNC_GRPC_PORT must differ, both are %s", cfg.Port)
	}

	return cfg, nil
}

// LoadLocal reads the settings the CLI needs outside the server: session
// store, Redis and logging. Nothing here is required.
func LoadLocal() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		NotifyChannel:     getEnvString("NOTIFY_CHANNEL", "jobsync:notifications"),
		InvalidateChannel: getEnvString("INVALIDATE_CHANNEL", "jobsync:invalidate"),
		SessionDB:         getEnvString("SESSION_DB", ".jobsync/session.db"),
		LogLevel:          strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		LogFile:           os.Getenv("LOG_FILE"),
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}

	size, err := getEnvInt("LOG_MAX_SIZE_MB", 100)
	if err != nil || size < 1 {
		return nil, fmt.Errorf("LOG_MAX_SIZE_MB must be a positive integer, got %q", os.Getenv("LOG_MAX_SIZE_MB"))
	}
	cfg.LogMaxSizeMB = size

	return cfg, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(value)
}
