// Package ingest defines the wire types of the document intake path:
// the HTTP request and response bodies, and the Kafka events that drive
// the index consumers.
package ingest

import "time"

// DocumentRequest is the body of POST /documents. Config names the
// analysis pipeline configuration; empty means the deployment default.
type DocumentRequest struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	Config         string `json:"config,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// DocumentResponse acknowledges an accepted document.
type DocumentResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ShardID    int    `json:"shard_id"`
}

// Event operations understood by the index consumers.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// DocumentEvent is the Kafka message that drives indexing. Upserts
// carry the full text; deletes carry only the ID and shard.
type DocumentEvent struct {
	Op         string    `json:"op"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body,omitempty"`
	Config     string    `json:"config,omitempty"`
	ShardID    int       `json:"shard_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
