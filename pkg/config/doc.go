// Package config loads application configuration from environment
// variables with sensible defaults.
//
// # Environment Variables
//
// Server:
//
//	AEGIS_HOST              - Bind address (default: 0.0.0.0)
//	AEGIS_PORT              - API port (default: 8080)
//	AEGIS_HEALTH_PORT       - Health/metrics port (default: 9090)
//	AEGIS_READ_TIMEOUT      - HTTP read timeout (default: 15s)
//	AEGIS_WRITE_TIMEOUT     - HTTP write timeout (default: 15s)
//	AEGIS_IDLE_TIMEOUT      - HTTP idle timeout (default: 60s)
//	AEGIS_SHUTDOWN_TIMEOUT  - Graceful shutdown timeout (default: 30s)
//
// Database:
//
//	AEGIS_POSTGRES_URL           - Postgres connection string (required)
//	AEGIS_POSTGRES_MAX_CONNS     - Max open connections (default: 25)
//	AEGIS_POSTGRES_IDLE_CONNS    - Max idle connections (default: 5)
//	AEGIS_POSTGRES_CONN_LIFETIME - Connection lifetime (default: 30m)
//
// Resolution cache:
//
//	AEGIS_CACHE_BACKEND        - memory or redis (default: memory)
//	AEGIS_CACHE_TTL            - Entry TTL (default: 300s)
//	AEGIS_CACHE_MAX_ENTRIES    - In-memory entry cap (default: 4096)
//	AEGIS_REDIS_ADDR           - Redis address (default: localhost:6379)
//	AEGIS_REDIS_PASSWORD       - Redis password
//	AEGIS_REDIS_DB             - Redis database number (default: 0)
//	AEGIS_CACHE_FLUSH_SCHEDULE - Cron expression for full flush (empty disables)
//
// Engine:
//
//	AEGIS_DYNAMIC_RESOLUTION    - Enable dynamic resolution (default: true)
//	AEGIS_GROUP_INHERITANCE     - Inherit roles up group parent chains (default: false)
//	AEGIS_FALLBACK_POLICY_PATH  - YAML fallback policy file (empty uses built-in)
//	AEGIS_WATCH_FALLBACK_POLICY - Hot-reload the policy file (default: false)
//
// Observability:
//
//	AEGIS_LOG_LEVEL            - debug, info, warn, error (default: info)
//	AEGIS_METRICS_ENABLED      - Expose Prometheus metrics (default: true)
//	AEGIS_OTEL_ENABLED         - Enable OpenTelemetry tracing (default: false)
//	AEGIS_OTEL_ENDPOINT        - OTLP gRPC endpoint (default: localhost:4317)
//	AEGIS_OTEL_SERVICE_NAME    - Service name (default: aegis)
//	AEGIS_OTEL_SERVICE_VERSION - Service version (default: 1.0.0)
//	AEGIS_OTEL_INSECURE        - Use insecure gRPC (default: true)
package config
