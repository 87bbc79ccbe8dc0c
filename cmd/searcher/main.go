// Command searcher starts the search HTTP service.
//
// It serves full-text queries against the segment files the indexer
// writes, verifies candidates against PostgreSQL vectors, caches
// results in Redis, and emits analytics events to Kafka. Cache
// invalidations fan out to every replica through a Kafka topic.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/arktext/textsearch/internal/analytics"
	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/index"
	"github.com/arktext/textsearch/internal/search/cache"
	"github.com/arktext/textsearch/internal/search/executor"
	"github.com/arktext/textsearch/internal/search/handler"
	"github.com/arktext/textsearch/internal/store"
	"github.com/arktext/textsearch/pkg/config"
	"github.com/arktext/textsearch/pkg/health"
	"github.com/arktext/textsearch/pkg/kafka"
	"github.com/arktext/textsearch/pkg/logger"
	"github.com/arktext/textsearch/pkg/metrics"
	"github.com/arktext/textsearch/pkg/middleware"
	"github.com/arktext/textsearch/pkg/postgres"
	pkgredis "github.com/arktext/textsearch/pkg/redis"
	"github.com/arktext/textsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"num_shards", cfg.Index.NumShards,
	)

	registry, err := dict.NewRegistry(cfg.Pipeline, slog.Default())
	if err != nil {
		slog.Error("failed to build analysis pipelines", "error", err)
		os.Exit(1)
	}
	pipeline := registry.Default()

	router, err := index.NewRouter(cfg.Index)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	slog.Info("shard router initialized", "data_dir", cfg.Index.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startRefreshLoop(ctx, router, cfg.Index.FlushInterval)

	var db *postgres.Client
	err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
		var connErr error
		db, connErr = postgres.New(cfg.Postgres)
		return connErr
	})
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)
	slog.Info("connected to postgres")

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	var invProducer *kafka.Producer
	if queryCache != nil {
		invProducer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
		defer invProducer.Close()

		// Every replica must see the flush, so each consumes the
		// invalidation topic under its own group.
		invCfg := cfg.Kafka
		invCfg.ConsumerGroup = fmt.Sprintf("%s-cache-%s", cfg.Kafka.ConsumerGroup, uuid.NewString()[:8])
		invConsumer := kafka.NewConsumer(invCfg, cfg.Kafka.Topics.CacheInvalidate, handler.InvalidateHandler(queryCache))
		go func() {
			if err := invConsumer.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
		slog.Info("cache invalidation consumer started", "group", invCfg.ConsumerGroup)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	exec := executor.New(router, st, pipeline, cfg.Search)
	h := handler.New(exec, queryCache, collector, invProducer, m, cfg.Tracing)

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		if router.NumShards() > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d shards active", router.NumShards()),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no shards"}
	})
	checker.Register("postgres", db.HealthCheck())
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return redisClient.HealthCheck()(ctx)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/index/stats", indexStatsHandler(router))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// startRefreshLoop periodically opens segments the indexer flushed
// since the last scan.
func startRefreshLoop(ctx context.Context, router *index.Router, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := router.RefreshAll(); err != nil {
					slog.Error("segment refresh failed", "error", err)
				}
			}
		}
	}()
}

// indexStatsHandler reports each shard's engine shape.
func indexStatsHandler(router *index.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := make(map[string]index.Stats, router.NumShards())
		for shardID, engine := range router.All() {
			stats[fmt.Sprintf("%d", shardID)] = engine.Stats()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"num_shards": router.NumShards(),
			"shards":     stats,
		}); err != nil {
			slog.Error("failed to write index stats", "error", err)
		}
	}
}
