// Package handler exposes the ingest service's HTTP endpoints: create,
// fetch, and delete documents.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arktext/textsearch/internal/ingest"
	"github.com/arktext/textsearch/internal/ingest/publisher"
	"github.com/arktext/textsearch/internal/ingest/validator"
	"github.com/arktext/textsearch/internal/store"
	apperrors "github.com/arktext/textsearch/pkg/errors"
	"github.com/arktext/textsearch/pkg/logger"
)

type Handler struct {
	publisher *publisher.Publisher
	store     *store.Store
	pipelines map[string]bool
	logger    *slog.Logger
}

// New creates the handler. pipelines lists the deployed analysis
// configuration names accepted in a request's config field; nil skips
// the check.
func New(pub *publisher.Publisher, st *store.Store, pipelines []string) *Handler {
	var known map[string]bool
	if pipelines != nil {
		known = make(map[string]bool, len(pipelines))
		for _, name := range pipelines {
			known[name] = true
		}
	}
	return &Handler{
		publisher: pub,
		store:     st,
		pipelines: known,
		logger:    slog.Default().With("component", "ingest-handler"),
	}
}

// Ingest handles POST /documents.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingest.DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateDocument(&req, h.pipelines); err != nil {
		var vErr *validator.ValidationError
		if errors.As(err, &vErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": vErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("ingest failed", "error", err, "status", status)
		h.writeError(w, status, err.Error())
		return
	}
	log.Info("document accepted",
		"doc_id", resp.DocumentID,
		"shard_id", resp.ShardID,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// Get handles GET /documents/{id}, returning the stored document with
// its current status and serialized vector.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if docID == "" {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	doc, err := h.store.GetDocument(r.Context(), docID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"document_id": doc.ID,
		"title":       doc.Title,
		"body":        doc.Body,
		"status":      doc.Status,
		"shard_id":    doc.ShardID,
		"vector":      doc.Vector.String(),
		"created_at":  doc.CreatedAt,
		"indexed_at":  doc.IndexedAt,
	})
}

// Delete handles DELETE /documents/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	docID := r.PathValue("id")
	if docID == "" {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	if err := h.publisher.Delete(ctx, docID); err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("delete failed", "doc_id", docID, "error", err, "status", status)
		h.writeError(w, status, err.Error())
		return
	}
	log.Info("document deleted", "doc_id", docID)
	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"document_id": docID,
		"status":      store.StatusDeleted,
	})
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
