package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arktext/textsearch/internal/rank"
	"github.com/arktext/textsearch/internal/search/executor"
	"github.com/arktext/textsearch/pkg/config"
	apperrors "github.com/arktext/textsearch/pkg/errors"
)

type fakeExecutor struct {
	lastReq *executor.Request
	result  *executor.Result
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, req *executor.Request) (*executor.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &executor.Result{
		Query:   req.Query,
		Mode:    executor.ModeWeb,
		Ranker:  executor.RankerFrequency,
		Results: []rank.ScoredDoc{},
	}, nil
}

func newTestHandler(exec *fakeExecutor) *Handler {
	return New(exec, nil, nil, nil, nil, config.TracingConfig{})
}

func doSearch(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	return rec
}

func TestSearchRequiresQuery(t *testing.T) {
	h := newTestHandler(&fakeExecutor{})

	rec := doSearch(t, h, "/api/v1/search")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSearchParsesParameters(t *testing.T) {
	exec := &fakeExecutor{}
	h := newTestHandler(exec)

	rec := doSearch(t, h, "/api/v1/search?q=fat+cats&mode=plain&ranker=cover&limit=5&norm=5&weights=0.2,0.3,0.5,1.0&headline=true&max_words=20")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	req := exec.lastReq
	if req == nil {
		t.Fatal("executor was not called")
	}
	if req.Query != "fat cats" {
		t.Errorf("Query = %q, want %q", req.Query, "fat cats")
	}
	if req.Mode != executor.ModePlain {
		t.Errorf("Mode = %q, want %q", req.Mode, executor.ModePlain)
	}
	if req.Ranker != executor.RankerCover {
		t.Errorf("Ranker = %q, want %q", req.Ranker, executor.RankerCover)
	}
	if req.Limit != 5 {
		t.Errorf("Limit = %d, want 5", req.Limit)
	}
	if req.Norm != rank.Norm(5) {
		t.Errorf("Norm = %d, want 5", req.Norm)
	}
	if want := (rank.WeightScheme{0.2, 0.3, 0.5, 1.0}); req.Scheme != want {
		t.Errorf("Scheme = %v, want %v", req.Scheme, want)
	}
	if !req.Headline {
		t.Error("Headline = false, want true")
	}
	if req.HeadlineOpts.MaxWords != 20 {
		t.Errorf("MaxWords = %d, want 20", req.HeadlineOpts.MaxWords)
	}
}

func TestSearchRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{"zero limit", "/api/v1/search?q=cat&limit=0"},
		{"non-numeric limit", "/api/v1/search?q=cat&limit=abc"},
		{"norm out of range", "/api/v1/search?q=cat&norm=300"},
		{"wrong weight count", "/api/v1/search?q=cat&weights=0.1,0.2"},
		{"negative weight", "/api/v1/search?q=cat&weights=-1,0.2,0.4,1.0"},
		{"non-boolean headline", "/api/v1/search?q=cat&headline=maybe"},
		{"zero max_words", "/api/v1/search?q=cat&headline=1&max_words=0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			rec := doSearch(t, newTestHandler(exec), tc.target)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if exec.lastReq != nil {
				t.Error("executor was called for an invalid request")
			}
		})
	}
}

func TestSearchMapsExecutorErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "invalid query",
			err:        apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "syntax error at end of query"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "syntax error at end of query",
		},
		{
			name:       "rate limited",
			err:        apperrors.New(apperrors.ErrRateLimited, http.StatusTooManyRequests, "too many concurrent queries"),
			wantStatus: http.StatusTooManyRequests,
			wantBody:   "too many concurrent queries",
		},
		{
			name:       "internal error hidden",
			err:        errors.New("postgres connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "search failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&fakeExecutor{err: tc.err})
			rec := doSearch(t, h, "/api/v1/search?q=cat")
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["error"] != tc.wantBody {
				t.Errorf("error = %q, want %q", body["error"], tc.wantBody)
			}
		})
	}
}

func TestSearchReturnsResult(t *testing.T) {
	exec := &fakeExecutor{result: &executor.Result{
		Query:     "cat",
		Mode:      executor.ModeWeb,
		Ranker:    executor.RankerFrequency,
		TotalHits: 2,
		Results: []rank.ScoredDoc{
			{DocID: "doc-1", Score: 0.5},
			{DocID: "doc-2", Score: 0.25},
		},
	}}
	h := newTestHandler(exec)

	rec := doSearch(t, h, "/api/v1/search?q=cat")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result executor.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if result.TotalHits != 2 || len(result.Results) != 2 {
		t.Fatalf("got %d hits / %d results, want 2 / 2", result.TotalHits, len(result.Results))
	}
	if result.Results[0].DocID != "doc-1" {
		t.Errorf("first result = %q, want doc-1", result.Results[0].DocID)
	}
}

func TestCacheStatsDisabled(t *testing.T) {
	h := newTestHandler(&fakeExecutor{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	h.CacheStats(rec, req)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "disabled" {
		t.Errorf("status = %q, want disabled", body["status"])
	}
}

func TestCacheInvalidateWithoutCache(t *testing.T) {
	h := newTestHandler(&fakeExecutor{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil)
	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
