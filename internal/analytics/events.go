// Package analytics collects and aggregates usage events: searches,
// cache activity, and indexing volume.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventIndexDoc   EventType = "index_document"
	EventDeleteDoc  EventType = "delete_document"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one executed search.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Mode      string    `json:"mode"`
	Ranker    string    `json:"ranker"`
	Lexemes   []string  `json:"lexemes,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Partial   bool      `json:"partial,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// IndexEvent describes one document passing through the index consumer.
type IndexEvent struct {
	Type        EventType `json:"type"`
	DocumentID  string    `json:"document_id"`
	ShardID     int       `json:"shard_id"`
	LexemeCount int       `json:"lexeme_count"`
	VectorBytes int       `json:"vector_bytes"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
}
