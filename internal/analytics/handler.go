package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/arktext/textsearch/internal/vector"
)

// VectorScanner streams stored document vectors, typically the
// PostgreSQL store.
type VectorScanner interface {
	ScanVectors(ctx context.Context, fn func(docID string, v vector.Vector) error) error
}

type Handler struct {
	aggregator *Aggregator
	vectors    VectorScanner
	logger     *slog.Logger
}

// NewHandler serves aggregated stats; vectors may be nil, disabling the
// lexeme statistics endpoint.
func NewHandler(aggregator *Aggregator, vectors VectorScanner) *Handler {
	return &Handler{
		aggregator: aggregator,
		vectors:    vectors,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats handles GET /api/v1/analytics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// TopLexemes handles GET /api/v1/analytics/lexemes: a corpus-wide tally
// of the most frequent lexemes, computed from the stored vectors.
func (h *Handler) TopLexemes(w http.ResponseWriter, r *http.Request) {
	if h.vectors == nil {
		h.writeError(w, http.StatusServiceUnavailable, "lexeme statistics unavailable")
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > 1000 {
			parsed = 1000
		}
		limit = parsed
	}

	stat := vector.NewStat()
	scanned := 0
	err := h.vectors.ScanVectors(r.Context(), func(_ string, v vector.Vector) error {
		stat.Add(v)
		scanned++
		return nil
	})
	if err != nil {
		h.logger.Error("lexeme scan failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "lexeme statistics failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents_scanned": scanned,
		"distinct_lexemes":  stat.Len(),
		"lexemes":           stat.Top(limit),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
