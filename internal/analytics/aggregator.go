package analytics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arktext/textsearch/pkg/kafka"
)

// maxLatencySamples bounds the percentile window; when full, the oldest
// half is dropped.
const maxLatencySamples = 100000

// AggregatedStats is the snapshot served to dashboards.
type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	TotalDocsIndexed  int64            `json:"total_docs_indexed"`
	TotalDocsDeleted  int64            `json:"total_docs_deleted"`
	TotalVectorBytes  int64            `json:"total_vector_bytes"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	SearchesByMode    map[string]int64 `json:"searches_by_mode"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds analytics events into in-memory counters. It is fed
// by a Kafka consumer running HandleEvent.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalDocsIndexed  atomic.Int64
	totalDocsDeleted  atomic.Int64
	totalVectorBytes  atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	latencies         []int64
	modeCounts        map[string]int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		modeCounts:        make(map[string]int64),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
	}
}

type eventProbe struct {
	Type EventType `json:"type"`
}

// HandleEvent returns the Kafka handler feeding the aggregator.
// Undecodable events are dropped; an aggregation gap beats a stuck
// partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		probe, err := kafka.DecodeJSON[eventProbe](value)
		if err != nil {
			return nil
		}
		switch probe.Type {
		case EventIndexDoc, EventDeleteDoc:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				return nil
			}
			agg.recordIndexEvent(event)
		default:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				return nil
			}
			agg.recordSearchEvent(event)
		}
		return nil
	}
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.TotalHits == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	if len(a.latencies) >= maxLatencySamples {
		a.latencies = append(a.latencies[:0], a.latencies[len(a.latencies)/2:]...)
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.modeCounts[event.Mode]++
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordIndexEvent(event IndexEvent) {
	switch event.Type {
	case EventDeleteDoc:
		a.totalDocsDeleted.Add(1)
	default:
		a.totalDocsIndexed.Add(1)
		a.totalVectorBytes.Add(int64(event.VectorBytes))
	}
}

// Stats snapshots the current aggregate numbers.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches.Load(),
		TotalDocsIndexed: a.totalDocsIndexed.Load(),
		TotalDocsDeleted: a.totalDocsDeleted.Load(),
		TotalVectorBytes: a.totalVectorBytes.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		ZeroResultCount:  a.zeroResults.Load(),
		SearchesByMode:   make(map[string]int64, len(a.modeCounts)),
	}
	for mode, n := range a.modeCounts {
		stats.SearchesByMode[mode] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
