package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/halcyonsec/aegis/pkg/authz"
	"github.com/halcyonsec/aegis/pkg/authz/cache"
	"github.com/halcyonsec/aegis/pkg/authz/policy"
	"github.com/halcyonsec/aegis/pkg/config"
	"github.com/halcyonsec/aegis/pkg/middleware"
	"github.com/halcyonsec/aegis/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)
	log.With("version", cfg.Observability.OTelServiceVersion).Info("starting aegis")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Tracing
	var tracerProvider interface {
		Shutdown(context.Context) error
	}
	if cfg.Observability.OTelEnabled {
		tp, err := observability.InitTracing(ctx, observability.TracingConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, log)
		if err != nil {
			log.WithError(err).Error("failed to initialize tracing")
			os.Exit(1)
		}
		tracerProvider = tp
	}

	// Database (read model)
	db, err := sql.Open("postgres", cfg.Database.PostgresURL)
	if err != nil {
		log.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}
	cancel()

	store := authz.NewSQLStore(db)
	health := observability.NewHealthChecker()
	health.Register("database", observability.DatabaseCheck(db))

	// Resolution cache
	var resultCache authz.ResultCache
	var purger cache.Purger
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL, log, metrics)
		if err != nil {
			log.WithError(err).Error("failed to connect to Redis")
			os.Exit(1)
		}
		defer redisCache.Close()
		resultCache = redisCache
		purger = redisCache
		health.Register("redis", observability.RedisCheck(redisCache.Client()))
	default:
		memCache := cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL, log, metrics)
		resultCache = memCache
		purger = memCache
	}
	log.With("backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL.String()).Info("resolution cache ready")

	// Fallback policy
	policyLog := logrus.New()
	policyStore, err := policy.NewStore(cfg.Engine.FallbackPolicyPath, policyLog)
	if err != nil {
		log.WithError(err).Error("failed to load fallback policy")
		os.Exit(1)
	}
	if cfg.Engine.WatchFallbackPolicy {
		watcher, err := policy.NewWatcher(policyStore, policyLog)
		if err != nil {
			log.WithError(err).Error("failed to watch fallback policy")
			os.Exit(1)
		}
		watcher.Start()
		defer watcher.Close()
	}

	// Engine and fallback controller
	engine := authz.NewEngine(store, resultCache, authz.EngineConfig{
		GroupInheritance: cfg.Engine.GroupInheritance,
	}, log, metrics)
	controller := authz.NewController(engine, store, policyStore, cfg.Engine.DynamicResolution, log, metrics)

	// Scheduled cache flush
	if cfg.Cache.FlushSchedule != "" {
		janitor, err := cache.NewJanitor(cfg.Cache.FlushSchedule, purger, log, metrics)
		if err != nil {
			log.WithError(err).Error("invalid cache flush schedule")
			os.Exit(1)
		}
		janitor.Start()
		defer janitor.Stop()
	}

	// API server
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Subject)
	if cfg.Observability.MetricsEnabled {
		router.Use(middleware.HTTPMetrics(metrics))
	}
	authz.NewHandlers(controller, engine, log).RegisterRoutes(router)

	var apiHandler http.Handler = router
	if cfg.Observability.OTelEnabled {
		apiHandler = otelhttp.NewHandler(router, "aegis-api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health/metrics server on its own port so probes bypass the API chain
	healthRouter := http.NewServeMux()
	healthRouter.HandleFunc("/healthz", health.Liveness)
	healthRouter.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	errCh := make(chan error, 2)
	go func() {
		log.With("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		log.With("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("health server shutdown failed")
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}
	log.Info("shutdown complete")
}
