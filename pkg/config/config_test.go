package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classworks/rosterd/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ROSTERD_POSTGRES_URL", "postgres://localhost/rosterd")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.True(t, cfg.Store.CacheEnabled)
	assert.Equal(t, 1024, cfg.Store.L1CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.Store.CacheTTL)

	assert.Equal(t, 5, cfg.Backfill.MinSubmissions)
	assert.Empty(t, cfg.Backfill.Schedule)

	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ROSTERD_POSTGRES_URL", "postgres://db:5432/rosterd")
	t.Setenv("ROSTERD_PORT", "8181")
	t.Setenv("ROSTERD_LOG_LEVEL", "debug")
	t.Setenv("ROSTERD_CACHE_TTL", "90s")
	t.Setenv("ROSTERD_CACHE_ENABLED", "false")
	t.Setenv("ROSTERD_BACKFILL_MIN_SUBMISSIONS", "12")
	t.Setenv("ROSTERD_AUDIT_SCHEDULE", "0 3 * * *")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.Store.CacheTTL)
	assert.False(t, cfg.Store.CacheEnabled)
	assert.Equal(t, 12, cfg.Backfill.MinSubmissions)
	assert.Equal(t, "0 3 * * *", cfg.Backfill.Schedule)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("ROSTERD_POSTGRES_URL", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("ROSTERD_POSTGRES_URL", "postgres://localhost/rosterd")
	t.Setenv("ROSTERD_PORT", "9090")
	t.Setenv("ROSTERD_HEALTH_PORT", "9090")
	_, err = LoadConfig()
	assert.Error(t, err)

	t.Setenv("ROSTERD_PORT", "8080")
	t.Setenv("ROSTERD_BACKFILL_MIN_SUBMISSIONS", "-1")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("unknown"))
}
