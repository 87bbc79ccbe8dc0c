// Package executor runs compiled queries against the sharded index,
// verifies every candidate against its stored vector, and ranks the
// verified matches. Index lookups may return stale postings for
// re-indexed documents; verification makes the result exact.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/index"
	"github.com/arktext/textsearch/internal/match"
	"github.com/arktext/textsearch/internal/query"
	"github.com/arktext/textsearch/internal/rank"
	"github.com/arktext/textsearch/internal/search/merger"
	"github.com/arktext/textsearch/internal/store"
	"github.com/arktext/textsearch/internal/vector"
	"github.com/arktext/textsearch/pkg/config"
	apperrors "github.com/arktext/textsearch/pkg/errors"
	"github.com/arktext/textsearch/pkg/tracing"
)

// Query modes accepted in a Request.
const (
	ModeTSQuery = "tsquery"
	ModePlain   = "plain"
	ModePhrase  = "phrase"
	ModeWeb     = "web"
)

// Rankers accepted in a Request.
const (
	RankerFrequency = "freq"
	RankerCover     = "cover"
)

// Request is one search invocation. Zero fields take the configured
// defaults.
type Request struct {
	Query        string
	Mode         string
	Ranker       string
	Limit        int
	Scheme       rank.WeightScheme
	Norm         rank.Norm
	Headline     bool
	HeadlineOpts rank.HeadlineOptions
}

// Headline is a marked-up fragment of one result document.
type Headline struct {
	DocID    string `json:"doc_id"`
	Title    string `json:"title,omitempty"`
	Fragment string `json:"fragment"`
}

// Result is the outcome of one executed search. Partial is set when a
// shard hit the candidate cap, so TotalHits is a lower bound.
type Result struct {
	Query       string           `json:"query"`
	Mode        string           `json:"mode"`
	Ranker      string           `json:"ranker"`
	TotalHits   int              `json:"total_hits"`
	Partial     bool             `json:"partial,omitempty"`
	Results     []rank.ScoredDoc `json:"results"`
	LexemeStats map[string]int   `json:"lexeme_stats,omitempty"`
	Headlines   []Headline       `json:"headlines,omitempty"`
}

// DocumentStore is the document backend candidates are verified and
// hydrated against.
type DocumentStore interface {
	GetVectors(ctx context.Context, ids []string) (map[string]vector.Vector, error)
	GetDocuments(ctx context.Context, ids []string) (map[string]*store.Document, error)
	ScanVectors(ctx context.Context, fn func(docID string, v vector.Vector) error) error
}

type Executor struct {
	router   *index.Router
	store    DocumentStore
	pipeline *dict.Pipeline
	cfg      config.SearchConfig
	sem      *semaphore.Weighted
	logger   *slog.Logger
}

func New(router *index.Router, st DocumentStore, pipeline *dict.Pipeline, cfg config.SearchConfig) *Executor {
	var sem *semaphore.Weighted
	if cfg.MaxConcurrentQueries > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentQueries))
	}
	return &Executor{
		router:   router,
		store:    st,
		pipeline: pipeline,
		cfg:      cfg,
		sem:      sem,
		logger:   slog.Default().With("component", "query-executor"),
	}
}

// Execute compiles and runs one search request. The caller's request
// is never modified, so it stays usable as a cache key.
func (e *Executor) Execute(ctx context.Context, request *Request) (*Result, error) {
	r := *request
	req := &r
	req.normalize(e.cfg)
	if req.Ranker != RankerFrequency && req.Ranker != RankerCover {
		return nil, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest,
			"unknown ranker %q", req.Ranker)
	}
	if e.sem != nil {
		if !e.sem.TryAcquire(1) {
			return nil, apperrors.New(apperrors.ErrRateLimited, http.StatusTooManyRequests,
				"too many concurrent queries")
		}
		defer e.sem.Release(1)
	}

	_, endCompile := phase(ctx, "compile")
	q, err := e.compileQuery(req)
	endCompile()
	if err != nil {
		return nil, err
	}
	if q == nil {
		// No indexable words; matches nothing.
		return &Result{Query: req.Query, Mode: req.Mode, Ranker: req.Ranker, Results: []rank.ScoredDoc{}}, nil
	}

	if query.Prunable(q) == nil {
		return e.executeScan(ctx, q, req)
	}
	rctx, endRetrieve := phase(ctx, "retrieve")
	result, err := e.executeSharded(rctx, q, req)
	endRetrieve()
	if err != nil {
		return nil, err
	}
	if req.Headline {
		hctx, endHeadline := phase(ctx, "headline")
		e.attachHeadlines(hctx, q, req, result)
		endHeadline()
	}
	return result, nil
}

// phase opens a child span when the request carries a sampled trace.
// The returned func is always safe to call.
func phase(ctx context.Context, name string) (context.Context, func()) {
	if tracing.SpanFromContext(ctx) == nil {
		return ctx, func() {}
	}
	ctx, span := tracing.StartChildSpan(ctx, name)
	return ctx, span.End
}

// compileQuery builds the query tree for the request's mode. The
// tolerant modes cannot fail; only tsquery surfaces syntax errors.
func (e *Executor) compileQuery(req *Request) (*query.Node, error) {
	switch req.Mode {
	case ModeTSQuery:
		q, err := query.Compile(req.Query, e.pipeline)
		if err != nil {
			if errors.Is(err, query.ErrTooManyNodes) {
				return nil, apperrors.Newf(apperrors.ErrQueryTooLarge, http.StatusBadRequest,
					"query exceeds %d nodes", query.MaxNodes)
			}
			return nil, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, err.Error())
		}
		return q, nil
	case ModePlain:
		return query.CompilePlain(req.Query, e.pipeline), nil
	case ModePhrase:
		return query.CompilePhrase(req.Query, e.pipeline), nil
	case ModeWeb:
		return query.CompileWeb(req.Query, e.pipeline), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest,
			"unknown query mode %q", req.Mode)
	}
}

// executeScan handles queries the index cannot bound, such as pure
// negations: every stored vector is matched directly.
func (e *Executor) executeScan(ctx context.Context, q *query.Node, req *Request) (*Result, error) {
	ctx, endScan := phase(ctx, "scan")
	defer endScan()
	top := merger.NewTopK(req.Limit)
	total := 0
	err := e.store.ScanVectors(ctx, func(docID string, v vector.Vector) error {
		if !match.Match(v, q) {
			return nil
		}
		total++
		top.Push(rank.ScoredDoc{DocID: docID, Score: rank.RoundScore(e.score(v, q, req))})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning store: %w", err)
	}
	e.logger.Warn("unbounded query served by full scan",
		"query", req.Query,
		"mode", req.Mode,
		"total_hits", total,
	)
	result := &Result{
		Query:     req.Query,
		Mode:      req.Mode,
		Ranker:    req.Ranker,
		TotalHits: total,
		Results:   top.Results(),
	}
	if req.Headline {
		e.attachHeadlines(ctx, q, req, result)
	}
	return result, nil
}

func (e *Executor) score(v vector.Vector, q *query.Node, req *Request) float64 {
	if req.Ranker == RankerCover {
		return rank.CoverDensity(v, q, req.Scheme, req.Norm)
	}
	return rank.Frequency(v, q, req.Scheme, req.Norm)
}

// attachHeadlines hydrates the top hits with titles and marked-up
// fragments. Hydration failure degrades to plain results.
func (e *Executor) attachHeadlines(ctx context.Context, q *query.Node, req *Request, result *Result) {
	if len(result.Results) == 0 {
		return
	}
	ids := make([]string, len(result.Results))
	for i, hit := range result.Results {
		ids[i] = hit.DocID
	}
	docs, err := e.store.GetDocuments(ctx, ids)
	if err != nil {
		e.logger.Error("headline hydration failed", "error", err)
		return
	}
	for _, hit := range result.Results {
		doc, ok := docs[hit.DocID]
		if !ok {
			continue
		}
		result.Headlines = append(result.Headlines, Headline{
			DocID:    hit.DocID,
			Title:    doc.Title,
			Fragment: rank.Headline(doc.Body, q, e.pipeline, req.HeadlineOpts),
		})
	}
}

func (r *Request) normalize(cfg config.SearchConfig) {
	if r.Mode == "" {
		r.Mode = cfg.DefaultMode
	}
	if r.Mode == "" {
		r.Mode = ModeWeb
	}
	if r.Ranker == "" {
		r.Ranker = cfg.DefaultRanker
	}
	if r.Ranker == "" {
		r.Ranker = RankerFrequency
	}
	if r.Limit <= 0 {
		r.Limit = cfg.DefaultLimit
	}
	if r.Limit <= 0 {
		r.Limit = 10
	}
	if cfg.MaxResults > 0 && r.Limit > cfg.MaxResults {
		r.Limit = cfg.MaxResults
	}
}
