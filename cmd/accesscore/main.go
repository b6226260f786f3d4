package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/casehub/accesscore/pkg/authz"
	"github.com/casehub/accesscore/pkg/config"
	"github.com/casehub/accesscore/pkg/directory"
	"github.com/casehub/accesscore/pkg/httputil"
	"github.com/casehub/accesscore/pkg/locations"
	"github.com/casehub/accesscore/pkg/locks"
	"github.com/casehub/accesscore/pkg/middleware"
	"github.com/casehub/accesscore/pkg/migrations"
	"github.com/casehub/accesscore/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	all, err := migrations.Merge(directory.Migrations(), locations.Migrations(), locks.Migrations())
	if err != nil {
		log.Fatalf("Invalid migration set: %v", err)
	}
	if err := migrations.Run(ctx, db, all, log); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis is optional; without it the decision cache and rate
	// limiter are simply off.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable at startup, continuing without it")
		}
		defer redisClient.Close()
	}

	// Tracing
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, log)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Tracer shutdown failed")
			}
		}()
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Stores and services
	users := directory.NewStore(db)
	delegations := directory.NewDelegationStore(db)
	facts := authz.NewFactStore(db)

	checkerOpts := []authz.CheckerOption{
		authz.WithDelegations(delegations),
		authz.WithMetrics(metrics),
	}
	if redisClient != nil {
		checkerOpts = append(checkerOpts, authz.WithDecisionCache(
			authz.NewDecisionCache(redisClient, cfg.Redis.DecisionCacheTTL)))
	}
	checker := authz.NewChecker(facts, users, log, checkerOpts...)

	locationStore := locations.NewStore(db)
	trees, err := locations.NewTreeCache(locationStore, 256)
	if err != nil {
		log.Fatalf("Failed to create tree cache: %v", err)
	}
	resolver := locations.NewResolver(locationStore, trees, users, metrics, log)

	lockManager := locks.NewManager(locks.NewStore(db), log,
		locks.WithNameLookup(users),
		locks.WithMetrics(metrics),
		locks.WithDefaultTTL(cfg.Locks.DefaultTTL),
	)

	// API router
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.SubjectMiddleware)
	if redisClient != nil {
		api.Use(middleware.NewRateLimiter(redisClient, nil, log).Handler)
	}

	authz.NewHandlers(checker, log).RegisterRoutes(api)
	locations.NewHandlers(locationStore, resolver, trees, checker, users, log).RegisterRoutes(api)
	locks.NewHandlers(lockManager, log).RegisterRoutes(api)

	admin := api.PathPrefix("").Subrouter()
	admin.Use(middleware.RequireAdmin)
	directory.NewHandlers(users, delegations, log).RegisterRoutes(admin)

	var handler http.Handler = router
	handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(log),
		observability.HTTPMetricsMiddleware(metrics),
		httputil.RecoveryMiddleware(log),
	)(handler)
	handler = otelhttp.NewHandler(handler, "accesscore")

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	observability.RegisterHealthEndpoints(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Locks.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := lockManager.CleanupExpired(gctx); err != nil {
					log.WithError(err).Warn("Lock sweep failed")
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		healthServer.Shutdown(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Info("Stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if strings.ToLower(cfg.Observability.LogFormat) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
