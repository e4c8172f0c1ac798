package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/classworks/rosterd/pkg/audit"
	"github.com/classworks/rosterd/pkg/auth"
	"github.com/classworks/rosterd/pkg/authz"
	"github.com/classworks/rosterd/pkg/config"
	"github.com/classworks/rosterd/pkg/httputil"
	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/roster"
	"github.com/classworks/rosterd/pkg/store"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics, registry := observability.InitMetrics()

	// Document store
	db, err := sql.Open("postgres", cfg.Store.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Store.PostgresMaxConns)
	if err := store.RunMigrations(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var principals store.PrincipalStore = store.NewSQLStore(db)

	// Cache tiers
	var redisClient *redis.Client
	if cfg.Store.CacheEnabled {
		if cfg.Store.RedisURL != "" {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Store.RedisURL,
				Password: cfg.Store.RedisPassword,
				DB:       cfg.Store.RedisDB,
			})
		}
		cached, err := store.NewCachedStore(principals, redisClient, store.CacheConfig{
			L1Size:  cfg.Store.L1CacheSize,
			TTL:     cfg.Store.CacheTTL,
			Metrics: metrics,
		})
		if err != nil {
			log.Fatalf("Failed to initialize cache: %v", err)
		}
		principals = cached
	}

	// Audit trail
	var auditor audit.Logger = audit.NewMemoryLogger()
	if dir := cfg.Observability.AuditLogDir; dir != "" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: dir,
			Rotate:   true,
		})
		if err != nil {
			log.Fatalf("Failed to open audit log: %v", err)
		}
		auditor = fileLogger
	}

	engine := authz.NewEngine(principals, logger, metrics, auditor)
	service := roster.NewService(principals, logger, metrics, auditor)
	handlers := roster.NewHandlers(service, engine)

	identity := auth.NewIdentityMiddleware(principals, logger, false)

	router := mux.NewRouter()
	router.Use(httputil.RequestIDMiddleware)
	router.Use(identity.Handler)
	router.Use(httputil.ClassScopeMiddleware)
	router.Use(httputil.RecoveryMiddleware(logger))
	router.Use(httputil.MaxBytesMiddleware(1 << 20))
	if cfg.Observability.MetricsEnabled {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	handlers.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics on a separate listener
	checker := observability.NewHealthChecker(db, redisClient)
	checker.SetVersion(version)
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.MetricsHandler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()
	go func() {
		logger.Infof("rosterd %s listening on %s", version, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("health server", func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc("audit log", func(ctx context.Context) error {
		return auditor.Close()
	})
	shutdown.RegisterShutdownFunc("database", func(ctx context.Context) error {
		if redisClient != nil {
			redisClient.Close()
		}
		return db.Close()
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown incomplete")
		os.Exit(1)
	}
}
