// Package consumer turns document events from Kafka into index
// mutations. Each indexer instance owns the shards of its local router;
// partition assignment by shard key keeps every document event on the
// node that owns its shard.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arktext/textsearch/internal/analytics"
	"github.com/arktext/textsearch/internal/analytics/collector"
	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/index"
	"github.com/arktext/textsearch/internal/ingest"
	"github.com/arktext/textsearch/internal/store"
	"github.com/arktext/textsearch/internal/vector"
	"github.com/arktext/textsearch/pkg/kafka"
	"github.com/arktext/textsearch/pkg/metrics"
	"github.com/arktext/textsearch/pkg/resilience"
)

// Indexer consumes document events and applies them to the shard
// engines. store, events, and m may each be nil; then vectors are not
// persisted, no analytics events are emitted, and no metrics are
// recorded.
type Indexer struct {
	router   *index.Router
	store    *store.Store
	registry *dict.Registry
	events   *collector.BatchCollector
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(router *index.Router, st *store.Store, registry *dict.Registry, events *collector.BatchCollector, m *metrics.Metrics) *Indexer {
	return &Indexer{
		router:   router,
		store:    st,
		registry: registry,
		events:   events,
		metrics:  m,
		logger:   slog.Default().With("component", "indexer"),
	}
}

// Handle returns the Kafka message handler. Undecodable messages and
// unknown operations are dropped after logging; returning an error
// would block the partition behind a poison message forever.
func (ix *Indexer) Handle() kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[ingest.DocumentEvent](value)
		if err != nil {
			ix.logger.Error("dropping undecodable document event",
				"error", err, "key", string(key))
			return nil
		}
		switch event.Op {
		case ingest.OpDelete:
			return ix.handleDelete(ctx, &event)
		case ingest.OpUpsert, "":
			return ix.handleUpsert(ctx, &event)
		default:
			ix.logger.Warn("dropping document event with unknown op",
				"op", event.Op, "doc_id", event.DocumentID)
			return nil
		}
	}
}

func (ix *Indexer) handleUpsert(ctx context.Context, event *ingest.DocumentEvent) error {
	start := time.Now()
	engine, err := ix.router.Engine(event.ShardID)
	if err != nil {
		return fmt.Errorf("routing document %s: %w", event.DocumentID, err)
	}

	p, ok := ix.registry.Get(event.Config)
	if !ok {
		ix.logger.Warn("unknown pipeline configuration, using default",
			"config", event.Config, "doc_id", event.DocumentID)
		p = ix.registry.Default()
	}
	v := BuildDocumentVector(event.Title, event.Body, p)
	if err := engine.Insert(event.DocumentID, v); err != nil {
		ix.markFailed(ctx, event.DocumentID)
		return fmt.Errorf("indexing document %s: %w", event.DocumentID, err)
	}

	if ix.store != nil {
		err := resilience.Retry(ctx, "save-vector", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			return ix.store.SaveVector(ctx, event.DocumentID, v)
		})
		if err != nil {
			ix.logger.Error("indexed but failed to persist vector",
				"doc_id", event.DocumentID, "error", err)
		}
	}
	if ix.metrics != nil {
		ix.metrics.DocsIndexedTotal.Inc()
	}
	ix.track(analytics.IndexEvent{
		Type:        analytics.EventIndexDoc,
		DocumentID:  event.DocumentID,
		ShardID:     event.ShardID,
		LexemeCount: v.Len(),
		VectorBytes: len(v.String()),
		LatencyMs:   time.Since(start).Milliseconds(),
		Timestamp:   time.Now().UTC(),
	})
	ix.logger.Debug("document indexed",
		"doc_id", event.DocumentID,
		"shard_id", event.ShardID,
		"lexemes", v.Len(),
	)
	return nil
}

func (ix *Indexer) handleDelete(_ context.Context, event *ingest.DocumentEvent) error {
	engine, err := ix.router.Engine(event.ShardID)
	if err != nil {
		return fmt.Errorf("routing delete for %s: %w", event.DocumentID, err)
	}
	engine.Delete(event.DocumentID)
	ix.track(analytics.IndexEvent{
		Type:       analytics.EventDeleteDoc,
		DocumentID: event.DocumentID,
		ShardID:    event.ShardID,
		Timestamp:  time.Now().UTC(),
	})
	ix.logger.Debug("document removed from index",
		"doc_id", event.DocumentID,
		"shard_id", event.ShardID,
	)
	return nil
}

// track queues an index event for the analytics topic.
func (ix *Indexer) track(event analytics.IndexEvent) {
	if ix.events == nil {
		return
	}
	ix.events.Track(event.DocumentID, event)
}

func (ix *Indexer) markFailed(ctx context.Context, docID string) {
	if ix.store == nil {
		return
	}
	if err := ix.store.MarkFailed(ctx, docID); err != nil {
		ix.logger.Error("failed to mark document FAILED",
			"doc_id", docID, "error", err)
	}
}

// BuildDocumentVector analyzes title and body into a single vector.
// Title lexemes carry weight A so rankers can boost title hits; body
// positions follow the title's.
func BuildDocumentVector(title, body string, p *dict.Pipeline) vector.Vector {
	tv := vector.Build(title, p).ApplyWeight(vector.WeightA, vector.AllPositions)
	bv := vector.Build(body, p)
	return vector.Concat(tv, bv)
}
