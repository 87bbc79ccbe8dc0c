// Command indexer starts the indexing service.
//
// It consumes document events from Kafka, analyzes each document into
// a weighted vector, and applies it to the local shard engines. Vectors
// are also persisted to PostgreSQL so searchers can verify candidates
// against the source of truth. Shards flush to disk segments in the
// background and once more on shutdown.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/arktext/textsearch/internal/analytics/collector"
	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/index"
	"github.com/arktext/textsearch/internal/index/consumer"
	"github.com/arktext/textsearch/internal/store"
	"github.com/arktext/textsearch/pkg/config"
	"github.com/arktext/textsearch/pkg/kafka"
	"github.com/arktext/textsearch/pkg/logger"
	"github.com/arktext/textsearch/pkg/metrics"
	"github.com/arktext/textsearch/pkg/postgres"
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
	slog.Info("starting indexer service",
		"num_shards", cfg.Index.NumShards,
		"data_dir", cfg.Index.DataDir,
	)

	registry, err := dict.NewRegistry(cfg.Pipeline, slog.Default())
	if err != nil {
		slog.Error("failed to build analysis pipelines", "error", err)
		os.Exit(1)
	}

	router, err := index.NewRouter(cfg.Index)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()

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
	st := store.New(db)
	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure document schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		for _, engine := range router.All() {
			engine.SetFlushObserver(func(err error) {
				status := "success"
				if err != nil {
					status = "failure"
				}
				m.IndexFlushesTotal.WithLabelValues(status).Inc()
			})
		}
		startGaugeUpdater(ctx, router, m)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	router.StartFlushLoops(ctx)
	slog.Info("flush loops started", "interval", cfg.Index.FlushInterval)

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	events := collector.NewBatchCollector(analyticsProducer, 100, 5*time.Second)
	events.Start(ctx)
	defer events.Close()

	indexer := consumer.New(router, st, registry, events, m)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, indexer.Handle())

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := kafkaConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("flushing all shards before shutdown")
	if err := router.FlushAll(); err != nil {
		slog.Error("final flush failed", "error", err)
	}

	slog.Info("indexer service stopped")
}

// startGaugeUpdater refreshes the per-shard gauges from engine stats.
func startGaugeUpdater(ctx context.Context, router *index.Router, m *metrics.Metrics) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ActiveShards.Set(float64(router.NumShards()))
				for shardID, engine := range router.All() {
					stats := engine.Stats()
					m.ShardDocCount.WithLabelValues(strconv.Itoa(shardID)).
						Set(float64(stats.MemDocs + stats.SegmentDocs))
				}
			}
		}
	}()
}
