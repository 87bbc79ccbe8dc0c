// Command analytics starts the analytics aggregation service.
//
// It consumes search and index events from Kafka, aggregates them in
// memory (query totals, latency percentiles, cache hit rate, top and
// zero-result queries), snapshots the aggregate to PostgreSQL, and
// serves the results over HTTP. Corpus-wide lexeme statistics are
// computed on demand from the stored vectors.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"strconv"
	"syscall"
	"time"

	"github.com/arktext/textsearch/internal/analytics"
	aggstore "github.com/arktext/textsearch/internal/analytics/aggregator"
	"github.com/arktext/textsearch/internal/store"
	"github.com/arktext/textsearch/pkg/config"
	"github.com/arktext/textsearch/pkg/health"
	"github.com/arktext/textsearch/pkg/kafka"
	"github.com/arktext/textsearch/pkg/logger"
	"github.com/arktext/textsearch/pkg/middleware"
	"github.com/arktext/textsearch/pkg/postgres"
	"github.com/arktext/textsearch/pkg/resilience"
)

const snapshotInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("event consumer error", "error", err)
		}
	}()
	slog.Info("event consumer started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	// Postgres is optional here: without it the service still serves
	// live aggregates, but snapshots and lexeme statistics are off.
	var db *postgres.Client
	err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		var connErr error
		db, connErr = postgres.New(cfg.Postgres)
		return connErr
	})
	var docs *store.Store
	var snapshots *aggstore.Store
	if err != nil {
		slog.Warn("postgres unavailable, snapshots and lexeme stats disabled", "error", err)
		db = nil
	} else {
		defer db.Close()
		docs = store.New(db)
		snapshots = aggstore.NewStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure analytics schema", "error", err)
			os.Exit(1)
		}
		snapshots.StartPeriodicSave(ctx, aggregator, snapshotInterval)
	}

	var scanner analytics.VectorScanner
	if docs != nil {
		scanner = docs
	}
	analyticsHandler := analytics.NewHandler(aggregator, scanner)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if db == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return db.HealthCheck()(ctx)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/lexemes", analyticsHandler.TopLexemes)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", snapshotsHandler(snapshots))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}

// snapshotsHandler lists persisted aggregate snapshots, newest first.
func snapshotsHandler(snapshots *aggstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if snapshots == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": "snapshot storage unavailable"})
			return
		}
		limit := 24
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 1000 {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "limit must be between 1 and 1000"})
				return
			}
			limit = n
		}
		list, err := snapshots.ListSnapshots(r.Context(), limit)
		if err != nil {
			slog.Error("listing snapshots failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "listing snapshots failed"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"count":     len(list),
			"snapshots": list,
		})
	}
}
