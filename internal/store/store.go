// Package store persists documents and their vectors in PostgreSQL.
// It is the source of truth: the inverted index can always be rebuilt
// from it, and the matcher verifies index candidates against the
// vectors stored here.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/arktext/textsearch/internal/vector"
	apperrors "github.com/arktext/textsearch/pkg/errors"
	"github.com/arktext/textsearch/pkg/postgres"
)

// Document statuses as stored in the status column.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
	StatusFailed  = "FAILED"
	StatusDeleted = "DELETED"
)

// Document is a stored document together with its search vector.
type Document struct {
	ID             string
	Title          string
	Body           string
	Vector         vector.Vector
	Status         string
	ShardID        int
	IdempotencyKey string
	CreatedAt      time.Time
	IndexedAt      *time.Time
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "document-store"),
	}
}

// documentSchema holds the DDL for the documents table. Vectors are
// stored in their serialized text form in the tsv column.
const documentSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    body            TEXT NOT NULL,
    tsv             TEXT,
    status          TEXT NOT NULL,
    shard_id        INT NOT NULL,
    idempotency_key TEXT UNIQUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    indexed_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);
CREATE INDEX IF NOT EXISTS idx_documents_shard ON documents (shard_id);
`

// EnsureSchema creates the documents table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, documentSchema); err != nil {
		return fmt.Errorf("ensuring document schema: %w", err)
	}
	return nil
}

const docColumns = `id, title, body, COALESCE(tsv, ''), status, shard_id,
	COALESCE(idempotency_key, ''), created_at, indexed_at`

// CreateDocument inserts a new pending document. A reused idempotency
// key returns ErrIdempotencyConflict.
func (s *Store) CreateDocument(ctx context.Context, doc *Document) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `
			INSERT INTO documents (id, title, body, status, shard_id, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (idempotency_key) DO NOTHING
			RETURNING id`,
			doc.ID, doc.Title, doc.Body, StatusPending, doc.ShardID,
			nullableString(doc.IdempotencyKey),
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Newf(apperrors.ErrIdempotencyConflict, http.StatusConflict,
				"idempotency key %q already used", doc.IdempotencyKey)
		}
		if err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
		return nil
	})
}

// FindByIdempotencyKey returns the document previously created with the
// given key, or ErrDocumentNotFound.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*Document, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM documents WHERE idempotency_key = $1`, key)
	return s.scanDocument(row)
}

// GetDocument fetches one document by ID. Soft-deleted documents
// surface ErrDocumentDeleted.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM documents WHERE id = $1`, id)
	doc, err := s.scanDocument(row)
	if err != nil {
		return nil, err
	}
	if doc.Status == StatusDeleted {
		return nil, apperrors.Newf(apperrors.ErrDocumentDeleted, http.StatusGone,
			"document %s was deleted", id)
	}
	return doc, nil
}

// SaveVector stores the serialized vector and marks the document
// indexed.
func (s *Store) SaveVector(ctx context.Context, docID string, v vector.Vector) error {
	res, err := s.db.DB.ExecContext(ctx, `
		UPDATE documents SET tsv = $1, status = $2, indexed_at = NOW() WHERE id = $3`,
		v.String(), StatusIndexed, docID)
	if err != nil {
		return fmt.Errorf("saving vector for %s: %w", docID, err)
	}
	return requireRow(res, docID)
}

// MarkFailed records that indexing the document failed.
func (s *Store) MarkFailed(ctx context.Context, docID string) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1 WHERE id = $2`, StatusFailed, docID)
	if err != nil {
		return fmt.Errorf("marking %s failed: %w", docID, err)
	}
	return requireRow(res, docID)
}

// MarkDeleted soft-deletes a document and drops its vector. The index
// tombstones it separately.
func (s *Store) MarkDeleted(ctx context.Context, docID string) error {
	res, err := s.db.DB.ExecContext(ctx, `
		UPDATE documents SET status = $1, tsv = NULL, indexed_at = NULL WHERE id = $2`,
		StatusDeleted, docID)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", docID, err)
	}
	return requireRow(res, docID)
}

// GetVectors fetches the vectors of the given documents in one query,
// skipping any that are not currently indexed. Unparseable rows are
// logged and skipped rather than failing the batch.
func (s *Store) GetVectors(ctx context.Context, ids []string) (map[string]vector.Vector, error) {
	out := make(map[string]vector.Vector, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, tsv FROM documents
		WHERE id = ANY($1) AND status = $2 AND tsv IS NOT NULL`,
		pq.Array(ids), StatusIndexed)
	if err != nil {
		return nil, fmt.Errorf("fetching vectors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, tsv string
		if err := rows.Scan(&id, &tsv); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		v, err := vector.Parse(tsv)
		if err != nil {
			s.logger.Error("stored vector unparseable", "doc_id", id, "error", err)
			continue
		}
		out[id] = v
	}
	return out, rows.Err()
}

// GetDocuments fetches documents in bulk for result hydration. Deleted
// and unknown IDs are absent from the returned map.
func (s *Store) GetDocuments(ctx context.Context, ids []string) (map[string]*Document, error) {
	out := make(map[string]*Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT `+docColumns+` FROM documents
		WHERE id = ANY($1) AND status != $2`,
		pq.Array(ids), StatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("fetching documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := s.scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out[doc.ID] = doc
	}
	return out, rows.Err()
}

// ScanVectors streams every indexed document's vector to fn, in ID
// order. It serves queries the index cannot bound and full index
// rebuilds. A non-nil error from fn aborts the scan.
func (s *Store) ScanVectors(ctx context.Context, fn func(docID string, v vector.Vector) error) error {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, tsv FROM documents
		WHERE status = $1 AND tsv IS NOT NULL ORDER BY id`, StatusIndexed)
	if err != nil {
		return fmt.Errorf("scanning vectors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, tsv string
		if err := rows.Scan(&id, &tsv); err != nil {
			return fmt.Errorf("scanning vector row: %w", err)
		}
		v, err := vector.Parse(tsv)
		if err != nil {
			s.logger.Error("stored vector unparseable", "doc_id", id, "error", err)
			continue
		}
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountByStatus reports how many documents sit in each status, for
// stats endpoints.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanDocument(row rowScanner) (*Document, error) {
	var (
		doc       Document
		tsv       string
		indexedAt sql.NullTime
	)
	err := row.Scan(&doc.ID, &doc.Title, &doc.Body, &tsv, &doc.Status,
		&doc.ShardID, &doc.IdempotencyKey, &doc.CreatedAt, &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrDocumentNotFound, http.StatusNotFound,
			"no such document")
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if tsv != "" {
		v, err := vector.Parse(tsv)
		if err != nil {
			s.logger.Error("stored vector unparseable", "doc_id", doc.ID, "error", err)
		} else {
			doc.Vector = v
		}
	}
	if indexedAt.Valid {
		doc.IndexedAt = &indexedAt.Time
	}
	return &doc, nil
}

func requireRow(res sql.Result, docID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound,
			"document %s does not exist", docID)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
