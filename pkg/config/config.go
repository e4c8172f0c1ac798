package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/classworks/rosterd/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Principal store configuration
	Store StoreConfig

	// Backfill job configuration
	Backfill BackfillConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StoreConfig holds document store and cache configuration
type StoreConfig struct {
	PostgresURL      string
	PostgresMaxConns int

	RedisURL      string
	RedisPassword string
	RedisDB       int

	CacheEnabled bool
	L1CacheSize  int
	CacheTTL     time.Duration
}

// BackfillConfig holds defaults for the backfill runner
type BackfillConfig struct {
	MinSubmissions int
	// Schedule is a cron expression for periodic consistency audits,
	// empty to disable.
	Schedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	// AuditLogDir is where the append-only audit log lives, empty to
	// log audit events to memory only.
	AuditLogDir string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Store:         loadStoreConfig(),
		Backfill:      loadBackfillConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ROSTERD_HOST", "0.0.0.0"),
		Port:            getEnv("ROSTERD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ROSTERD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ROSTERD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ROSTERD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ROSTERD_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ROSTERD_HEALTH_PORT", "9090"),
	}
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		PostgresURL:      getEnv("ROSTERD_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("ROSTERD_POSTGRES_MAX_CONNS", 10),
		RedisURL:         getEnv("ROSTERD_REDIS_URL", ""),
		RedisPassword:    getEnv("ROSTERD_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("ROSTERD_REDIS_DB", 0),
		CacheEnabled:     getEnvBool("ROSTERD_CACHE_ENABLED", true),
		L1CacheSize:      getEnvInt("ROSTERD_L1_CACHE_SIZE", 1024),
		CacheTTL:         getEnvDuration("ROSTERD_CACHE_TTL", 5*time.Minute),
	}
}

func loadBackfillConfig() BackfillConfig {
	return BackfillConfig{
		MinSubmissions: getEnvInt("ROSTERD_BACKFILL_MIN_SUBMISSIONS", 5),
		Schedule:       getEnv("ROSTERD_AUDIT_SCHEDULE", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("ROSTERD_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ROSTERD_METRICS_ENABLED", true),
		AuditLogDir:    getEnv("ROSTERD_AUDIT_LOG_DIR", ""),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Store.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Store.CacheEnabled && c.Store.L1CacheSize <= 0 {
		return fmt.Errorf("L1 cache size must be positive when the cache is enabled")
	}

	if c.Backfill.MinSubmissions <= 0 {
		return fmt.Errorf("backfill submission threshold must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
