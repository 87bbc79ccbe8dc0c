// Command ingestion starts the document ingest HTTP service.
//
// The service accepts documents via POST /api/v1/documents, validates
// them, persists them to PostgreSQL as PENDING, and publishes them to
// a Kafka topic for downstream indexing. Documents can be fetched and
// deleted through the same API.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/ingest/handler"
	"github.com/arktext/textsearch/internal/ingest/publisher"
	"github.com/arktext/textsearch/internal/store"
	"github.com/arktext/textsearch/pkg/config"
	"github.com/arktext/textsearch/pkg/health"
	"github.com/arktext/textsearch/pkg/kafka"
	"github.com/arktext/textsearch/pkg/logger"
	"github.com/arktext/textsearch/pkg/metrics"
	"github.com/arktext/textsearch/pkg/middleware"
	"github.com/arktext/textsearch/pkg/postgres"
	"github.com/arktext/textsearch/pkg/resilience"
)

// main loads configuration, connects to PostgreSQL, creates the Kafka
// producer, wires the ingest handler, and starts the HTTP server.
// Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingest service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	slog.Info("connected to postgres")

	st := store.New(db)
	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure document schema", "error", err)
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)

	// Building the registry here fails fast on bad pipeline config and
	// gives the handler the names accepted in a request's config field.
	registry, err := dict.NewRegistry(cfg.Pipeline, slog.Default())
	if err != nil {
		slog.Error("failed to build analysis pipelines", "error", err)
		os.Exit(1)
	}

	pub := publisher.New(st, producer, cfg.Index.NumShards)
	h := handler.New(pub, st, registry.Names())

	checker := health.NewChecker()
	checker.Register("postgres", db.HealthCheck())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Metrics.Enabled {
		m := metrics.New()
		chain = middleware.Metrics(m)(chain)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
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

	slog.Info("ingest service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("ingest service stopped")
}
