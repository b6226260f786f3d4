// Package config loads application configuration from environment
// variables. Every knob is prefixed ACCESSCORE_.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Locks         LocksConfig
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

// DatabaseConfig holds Postgres configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration. Redis is optional: with no URL
// the decision cache and rate limiter are disabled.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int

	DecisionCacheTTL time.Duration
}

// ObservabilityConfig holds logging, metrics and tracing settings
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LocksConfig holds lock lease settings
type LocksConfig struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("ACCESSCORE_HOST", "0.0.0.0"),
			Port:            getEnv("ACCESSCORE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("ACCESSCORE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("ACCESSCORE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("ACCESSCORE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("ACCESSCORE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("ACCESSCORE_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("ACCESSCORE_POSTGRES_URL", ""),
			MaxOpenConns:    getEnvInt("ACCESSCORE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns:    getEnvInt("ACCESSCORE_POSTGRES_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("ACCESSCORE_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:              getEnv("ACCESSCORE_REDIS_URL", ""),
			Password:         getEnv("ACCESSCORE_REDIS_PASSWORD", ""),
			DB:               getEnvInt("ACCESSCORE_REDIS_DB", 0),
			PoolSize:         getEnvInt("ACCESSCORE_REDIS_POOL_SIZE", 10),
			DecisionCacheTTL: getEnvDuration("ACCESSCORE_DECISION_CACHE_TTL", time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("ACCESSCORE_LOG_LEVEL", "info"),
			LogFormat:          getEnv("ACCESSCORE_LOG_FORMAT", "json"),
			MetricsEnabled:     getEnvBool("ACCESSCORE_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("ACCESSCORE_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("ACCESSCORE_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("ACCESSCORE_OTEL_SERVICE_NAME", "accesscore"),
			OTelServiceVersion: getEnv("ACCESSCORE_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("ACCESSCORE_OTEL_INSECURE", true),
		},
		Locks: LocksConfig{
			DefaultTTL:    getEnvDuration("ACCESSCORE_LOCK_TTL", 5*time.Minute),
			SweepInterval: getEnvDuration("ACCESSCORE_LOCK_SWEEP_INTERVAL", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
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
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Locks.DefaultTTL <= 0 {
		return fmt.Errorf("lock TTL must be positive")
	}
	if c.Locks.SweepInterval <= 0 {
		return fmt.Errorf("lock sweep interval must be positive")
	}
	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}
	return nil
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
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
