// Package publisher persists incoming documents as pending rows and
// publishes the Kafka events that drive the index consumers. Shard
// assignment hashes the document ID so ingest and indexing agree.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/arktext/textsearch/internal/index"
	"github.com/arktext/textsearch/internal/ingest"
	"github.com/arktext/textsearch/internal/store"
	apperrors "github.com/arktext/textsearch/pkg/errors"
	"github.com/arktext/textsearch/pkg/kafka"
)

// Publisher coordinates document persistence and event production.
type Publisher struct {
	store     *store.Store
	producer  *kafka.Producer
	numShards int
	logger    *slog.Logger
}

// New creates a Publisher. numShards must match the index deployment.
func New(st *store.Store, producer *kafka.Producer, numShards int) *Publisher {
	if numShards <= 0 {
		numShards = 1
	}
	return &Publisher{
		store:     st,
		producer:  producer,
		numShards: numShards,
		logger:    slog.Default().With("component", "ingest-publisher"),
	}
}

// Ingest persists the document as pending and publishes an upsert
// event. A reused idempotency key returns the original document's
// response instead of creating a duplicate.
func (p *Publisher) Ingest(ctx context.Context, req *ingest.DocumentRequest) (*ingest.DocumentResponse, error) {
	if req.IdempotencyKey != "" {
		existing, err := p.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_id", existing.ID,
			)
			return &ingest.DocumentResponse{
				DocumentID: existing.ID,
				Status:     existing.Status,
				ShardID:    existing.ShardID,
			}, nil
		}
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
	}

	docID := uuid.New().String()
	shardID := index.ShardFor(docID, p.numShards)
	doc := &store.Document{
		ID:             docID,
		Title:          req.Title,
		Body:           req.Body,
		ShardID:        shardID,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	event := kafka.Event{
		Key: strconv.Itoa(shardID),
		Value: ingest.DocumentEvent{
			Op:         ingest.OpUpsert,
			DocumentID: docID,
			Title:      req.Title,
			Body:       req.Body,
			Config:     req.Config,
			ShardID:    shardID,
			OccurredAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("publish failed, document stuck in PENDING",
			"doc_id", docID,
			"shard_id", shardID,
			"error", err,
		)
	}
	return &ingest.DocumentResponse{
		DocumentID: docID,
		Status:     store.StatusPending,
		ShardID:    shardID,
	}, nil
}

// Delete soft-deletes the document in the store and publishes a delete
// event so the owning index shard tombstones it.
func (p *Publisher) Delete(ctx context.Context, docID string) error {
	doc, err := p.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if err := p.store.MarkDeleted(ctx, docID); err != nil {
		return err
	}
	event := kafka.Event{
		Key: strconv.Itoa(doc.ShardID),
		Value: ingest.DocumentEvent{
			Op:         ingest.OpDelete,
			DocumentID: docID,
			ShardID:    doc.ShardID,
			OccurredAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("delete event publish failed, index will lag",
			"doc_id", docID,
			"error", err,
		)
	}
	return nil
}
