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
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Resolution cache configuration
	Cache CacheConfig

	// Engine behavior configuration
	Engine EngineConfig

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

// DatabaseConfig holds access-control read model connection settings
type DatabaseConfig struct {
	PostgresURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig holds resolution cache settings
type CacheConfig struct {
	// Backend selects the cache implementation: "memory" or "redis"
	Backend    string
	TTL        time.Duration
	MaxEntries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// FlushSchedule is a cron expression for the periodic full flush.
	// Empty disables the janitor.
	FlushSchedule string
}

// EngineConfig holds resolution engine behavior flags
type EngineConfig struct {
	// DynamicResolution toggles the full resolution pipeline. When false
	// every request is served from the static fallback policy.
	DynamicResolution bool

	// GroupInheritance extends group-derived roles up the group parent chain
	GroupInheritance bool

	// FallbackPolicyPath points at the YAML fallback policy. Empty uses
	// the built-in default policy.
	FallbackPolicyPath string

	// WatchFallbackPolicy hot-reloads the policy file on change
	WatchFallbackPolicy bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Engine:        loadEngineConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("AEGIS_HOST", "0.0.0.0"),
		Port:            getEnv("AEGIS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("AEGIS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("AEGIS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("AEGIS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("AEGIS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("AEGIS_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		PostgresURL:     getEnv("AEGIS_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("AEGIS_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("AEGIS_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("AEGIS_POSTGRES_CONN_LIFETIME", 30*time.Minute),
	}
}

// loadCacheConfig loads resolution cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:       getEnv("AEGIS_CACHE_BACKEND", "memory"),
		TTL:           getEnvDuration("AEGIS_CACHE_TTL", 300*time.Second),
		MaxEntries:    getEnvInt("AEGIS_CACHE_MAX_ENTRIES", 4096),
		RedisAddr:     getEnv("AEGIS_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("AEGIS_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("AEGIS_REDIS_DB", 0),
		FlushSchedule: getEnv("AEGIS_CACHE_FLUSH_SCHEDULE", ""),
	}
}

// loadEngineConfig loads engine behavior flags from environment
func loadEngineConfig() EngineConfig {
	return EngineConfig{
		DynamicResolution:   getEnvBool("AEGIS_DYNAMIC_RESOLUTION", true),
		GroupInheritance:    getEnvBool("AEGIS_GROUP_INHERITANCE", false),
		FallbackPolicyPath:  getEnv("AEGIS_FALLBACK_POLICY_PATH", ""),
		WatchFallbackPolicy: getEnvBool("AEGIS_WATCH_FALLBACK_POLICY", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           getEnv("AEGIS_LOG_LEVEL", "info"),
		MetricsEnabled:     getEnvBool("AEGIS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("AEGIS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("AEGIS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("AEGIS_OTEL_SERVICE_NAME", "aegis"),
		OTelServiceVersion: getEnv("AEGIS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("AEGIS_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// Validate cache config
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis cache")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory or redis)", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	// Validate fallback policy config
	if c.Engine.WatchFallbackPolicy && c.Engine.FallbackPolicyPath == "" {
		return fmt.Errorf("fallback policy path is required when watching is enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
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
