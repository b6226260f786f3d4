package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ACCESSCORE_POSTGRES_URL", "postgres://localhost:5432/accesscore")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, time.Minute, cfg.Redis.DecisionCacheTTL)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.Equal(t, 5*time.Minute, cfg.Locks.DefaultTTL)
	assert.Equal(t, time.Minute, cfg.Locks.SweepInterval)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ACCESSCORE_POSTGRES_URL", "postgres://db:5432/accesscore")
	t.Setenv("ACCESSCORE_PORT", "8888")
	t.Setenv("ACCESSCORE_REDIS_URL", "redis://cache:6379")
	t.Setenv("ACCESSCORE_LOG_LEVEL", "debug")
	t.Setenv("ACCESSCORE_LOCK_TTL", "10m")
	t.Setenv("ACCESSCORE_METRICS_ENABLED", "false")
	t.Setenv("ACCESSCORE_POSTGRES_MAX_CONNS", "50")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, "redis://cache:6379", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.Locks.DefaultTTL)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ACCESSCORE_POSTGRES_URL", "postgres://localhost:5432/accesscore")
	t.Setenv("ACCESSCORE_POSTGRES_MAX_CONNS", "lots")
	t.Setenv("ACCESSCORE_LOCK_TTL", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Locks.DefaultTTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{URL: "postgres://localhost/accesscore"},
			Locks:    LocksConfig{DefaultTTL: time.Minute, SweepInterval: time.Minute},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing postgres url", func(t *testing.T) {
		cfg := valid()
		cfg.Database.URL = ""
		assert.ErrorContains(t, cfg.Validate(), "postgres URL")
	})

	t.Run("port collision", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		assert.ErrorContains(t, cfg.Validate(), "must be different")
	})

	t.Run("non-positive lock ttl", func(t *testing.T) {
		cfg := valid()
		cfg.Locks.DefaultTTL = 0
		assert.ErrorContains(t, cfg.Validate(), "lock TTL")
	})

	t.Run("otel enabled without endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.Observability.OTelEnabled = true
		cfg.Observability.OTelEndpoint = ""
		assert.ErrorContains(t, cfg.Validate(), "OpenTelemetry endpoint")
	})
}
