// Package handler exposes the search service's HTTP endpoints: query
// execution, cache statistics, and cache invalidation.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arktext/textsearch/internal/analytics"
	"github.com/arktext/textsearch/internal/rank"
	"github.com/arktext/textsearch/internal/search/cache"
	"github.com/arktext/textsearch/internal/search/executor"
	"github.com/arktext/textsearch/pkg/config"
	apperrors "github.com/arktext/textsearch/pkg/errors"
	"github.com/arktext/textsearch/pkg/kafka"
	"github.com/arktext/textsearch/pkg/logger"
	"github.com/arktext/textsearch/pkg/metrics"
	"github.com/arktext/textsearch/pkg/middleware"
	"github.com/arktext/textsearch/pkg/tracing"
)

// SearchExecutor evaluates one search request against the index shards.
type SearchExecutor interface {
	Execute(ctx context.Context, req *executor.Request) (*executor.Result, error)
}

// InvalidateEvent is published on the cache-invalidate topic so that
// every search replica drops its cached results, not just the one
// that received the HTTP request.
type InvalidateEvent struct {
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

type Handler struct {
	executor      SearchExecutor
	cache         *cache.QueryCache
	collector     *analytics.Collector
	invalidations *kafka.Producer
	metrics       *metrics.Metrics
	tracing       config.TracingConfig
	logger        *slog.Logger
}

// New creates a search handler. queryCache, collector, invalidations,
// and m may each be nil, which disables the matching concern.
func New(
	exec SearchExecutor,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	invalidations *kafka.Producer,
	m *metrics.Metrics,
	tracingCfg config.TracingConfig,
) *Handler {
	return &Handler{
		executor:      exec,
		cache:         queryCache,
		collector:     collector,
		invalidations: invalidations,
		metrics:       m,
		tracing:       tracingCfg,
		logger:        slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := parseRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var span *tracing.Span
	if h.sampled() {
		ctx, span = tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
		span.SetAttr("query", req.Query)
		span.SetAttr("mode", req.Mode)
	}

	var result *executor.Result
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*executor.Result, error) {
			return h.executor.Execute(ctx, req)
		})
	} else {
		result, err = h.executor.Execute(ctx, req)
	}

	latency := time.Since(start)
	if span != nil {
		span.SetAttr("cache_hit", cacheHit)
		span.End()
		span.Log()
	}

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("search failed", "query", req.Query, "status", status, "error", err)
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
			h.metrics.SearchLatency.WithLabelValues(h.cacheStatus(cacheHit)).Observe(latency.Seconds())
		}
		h.writeError(w, status, clientMessage(err, status))
		return
	}

	log.Info("search completed",
		"query", req.Query,
		"mode", result.Mode,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	h.observe(result, cacheHit, latency)
	h.trackSearch(ctx, req, result, cacheHit, latency)
	h.writeJSON(w, http.StatusOK, result)
}

// CacheStats handles GET /cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate handles POST /cache/invalidate. With an invalidation
// producer configured the flush fans out to every replica through
// Kafka; otherwise only this instance's cache is flushed.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if h.invalidations != nil {
		event := InvalidateEvent{
			Reason:      r.URL.Query().Get("reason"),
			RequestedAt: time.Now().UTC(),
		}
		if err := h.invalidations.Publish(r.Context(), kafka.Event{Key: "invalidate", Value: event}); err != nil {
			h.logger.Error("cache invalidation publish failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidation requested"})
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// InvalidateHandler returns a Kafka message handler that flushes the
// local query cache whenever an invalidation event arrives. Each
// replica consumes the topic under its own consumer group so the
// flush reaches all of them.
func InvalidateHandler(queryCache *cache.QueryCache) kafka.MessageHandler {
	log := slog.Default().With("component", "cache-invalidator")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[InvalidateEvent](value)
		if err != nil {
			log.Warn("dropping malformed invalidation event", "error", err)
			return nil
		}
		if err := queryCache.Invalidate(ctx); err != nil {
			return err
		}
		log.Info("cache flushed by event", "reason", event.Reason, "requested_at", event.RequestedAt)
		return nil
	}
}

// parseRequest builds an executor request from the query string.
func parseRequest(r *http.Request) (*executor.Request, error) {
	params := r.URL.Query()

	query := params.Get("q")
	if query == "" {
		return nil, errors.New("query parameter 'q' is required")
	}

	req := &executor.Request{
		Query:  query,
		Mode:   params.Get("mode"),
		Ranker: params.Get("ranker"),
	}

	if limitStr := params.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return nil, errors.New("limit must be a positive integer")
		}
		req.Limit = limit
	}

	if normStr := params.Get("norm"); normStr != "" {
		norm, err := strconv.ParseUint(normStr, 10, 8)
		if err != nil {
			return nil, errors.New("norm must be an integer between 0 and 255")
		}
		req.Norm = rank.Norm(norm)
	}

	if weightsStr := params.Get("weights"); weightsStr != "" {
		scheme, err := parseWeights(weightsStr)
		if err != nil {
			return nil, err
		}
		req.Scheme = scheme
	}

	switch params.Get("headline") {
	case "", "0", "false":
	case "1", "true":
		req.Headline = true
	default:
		return nil, errors.New("headline must be a boolean")
	}
	if req.Headline {
		req.HeadlineOpts.StartSel = params.Get("start_sel")
		req.HeadlineOpts.StopSel = params.Get("stop_sel")
		for param, dst := range map[string]*int{
			"min_words": &req.HeadlineOpts.MinWords,
			"max_words": &req.HeadlineOpts.MaxWords,
		} {
			if v := params.Get(param); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 1 {
					return nil, fmt.Errorf("%s must be a positive integer", param)
				}
				*dst = n
			}
		}
	}

	return req, nil
}

// parseWeights reads a comma-separated weight scheme in D,C,B,A order.
func parseWeights(s string) (rank.WeightScheme, error) {
	var scheme rank.WeightScheme
	parts := strings.Split(s, ",")
	if len(parts) != len(scheme) {
		return scheme, errors.New("weights must be four comma-separated numbers in D,C,B,A order")
	}
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || f < 0 {
			return scheme, errors.New("weights must be non-negative numbers")
		}
		scheme[i] = f
	}
	return scheme, nil
}

// sampled reports whether this request should produce a trace.
func (h *Handler) sampled() bool {
	if !h.tracing.Enabled {
		return false
	}
	return h.tracing.SampleRate >= 1 || rand.Float64() < h.tracing.SampleRate
}

// observe records search metrics for a completed query.
func (h *Handler) observe(result *executor.Result, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(h.cacheStatus(cacheHit)).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.WithLabelValues().Observe(float64(len(result.Results)))
	if h.cache != nil {
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
}

func (h *Handler) cacheStatus(cacheHit bool) string {
	switch {
	case h.cache == nil:
		return "disabled"
	case cacheHit:
		return "hit"
	default:
		return "miss"
	}
}

// trackSearch emits an analytics event for a completed query.
func (h *Handler) trackSearch(ctx context.Context, req *executor.Request, result *executor.Result, cacheHit bool, latency time.Duration) {
	if h.collector == nil {
		return
	}

	eventType := analytics.EventCacheMiss
	if cacheHit {
		eventType = analytics.EventCacheHit
	}

	lexemes := make([]string, 0, len(result.LexemeStats))
	for lexeme := range result.LexemeStats {
		lexemes = append(lexemes, lexeme)
	}
	sort.Strings(lexemes)

	h.collector.Track(analytics.SearchEvent{
		Type:      eventType,
		Query:     req.Query,
		Mode:      result.Mode,
		Ranker:    result.Ranker,
		Lexemes:   lexemes,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Partial:   result.Partial,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
}

// clientMessage picks the response body for a failed search. Internal
// errors are not leaked to the client.
func clientMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "search failed"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
