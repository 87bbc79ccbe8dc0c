package executor

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/arktext/textsearch/internal/index"
	"github.com/arktext/textsearch/internal/match"
	"github.com/arktext/textsearch/internal/query"
	"github.com/arktext/textsearch/internal/rank"
	"github.com/arktext/textsearch/internal/search/merger"
	apperrors "github.com/arktext/textsearch/pkg/errors"
	"github.com/arktext/textsearch/pkg/resilience"
)

// shardOutcome is one shard's contribution: its top hits, the number of
// verified matches before the limit cut, and per-lexeme posting counts.
type shardOutcome struct {
	shardID int
	hits    []rank.ScoredDoc
	matched int
	partial bool
	stats   map[string]int
}

// executeSharded fans the pruned query out to every shard, verifies and
// ranks each shard's candidates, and merges the per-shard top lists.
func (e *Executor) executeSharded(ctx context.Context, q *query.Node, req *Request) (*Result, error) {
	outcomes, err := e.fanOut(ctx, q, req)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Query:       req.Query,
		Mode:        req.Mode,
		Ranker:      req.Ranker,
		LexemeStats: make(map[string]int),
	}
	lists := make([][]rank.ScoredDoc, 0, len(outcomes))
	for _, out := range outcomes {
		result.TotalHits += out.matched
		result.Partial = result.Partial || out.partial
		lists = append(lists, out.hits)
		for lex, n := range out.stats {
			result.LexemeStats[lex] += n
		}
	}
	result.Results = merger.Merge(lists, req.Limit)
	if len(result.LexemeStats) == 0 {
		result.LexemeStats = nil
	}

	e.logger.Info("query executed",
		"query", req.Query,
		"mode", req.Mode,
		"shards_queried", len(outcomes),
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"partial", result.Partial,
	)
	return result, nil
}

// fanOut queries all shards concurrently. A failed shard is logged and
// skipped; only all shards failing aborts the search.
func (e *Executor) fanOut(ctx context.Context, q *query.Node, req *Request) ([]shardOutcome, error) {
	type slot struct {
		out shardOutcome
		err error
	}
	engines := e.router.All()
	slots := make([]slot, len(engines))

	var wg sync.WaitGroup
	i := 0
	for shardID, engine := range engines {
		wg.Add(1)
		go func(idx, sid int, eng *index.Engine) {
			defer wg.Done()
			err := resilience.WithTimeout(ctx, e.cfg.TimeoutPerShard,
				fmt.Sprintf("shard-%d", sid),
				func(ctx context.Context) error {
					out, err := e.executeShard(ctx, sid, eng, q, req)
					if err != nil {
						return err
					}
					slots[idx].out = out
					return nil
				})
			slots[idx].err = err
		}(i, shardID, engine)
		i++
	}
	wg.Wait()

	outcomes := make([]shardOutcome, 0, len(engines))
	for _, s := range slots {
		if s.err != nil {
			e.logger.Error("shard query failed", "error", s.err)
			continue
		}
		outcomes = append(outcomes, s.out)
	}
	if len(outcomes) == 0 && len(engines) > 0 {
		return nil, apperrors.Newf(apperrors.ErrShardUnavailable,
			http.StatusServiceUnavailable, "all %d shards failed", len(engines))
	}
	return outcomes, nil
}

// executeShard runs the candidate-verify-rank pipeline on one shard.
func (e *Executor) executeShard(ctx context.Context, shardID int, eng *index.Engine, q *query.Node, req *Request) (shardOutcome, error) {
	out := shardOutcome{shardID: shardID}

	candidates, _, err := eng.Candidates(q)
	if err != nil {
		return out, fmt.Errorf("shard %d candidates: %w", shardID, err)
	}
	out.stats, err = e.lexemeStats(eng, q)
	if err != nil {
		return out, fmt.Errorf("shard %d stats: %w", shardID, err)
	}
	if len(candidates) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	if e.cfg.MaxCandidates > 0 && len(ids) > e.cfg.MaxCandidates {
		sort.Strings(ids)
		ids = ids[:e.cfg.MaxCandidates]
		out.partial = true
	}

	vectors, err := e.store.GetVectors(ctx, ids)
	if err != nil {
		return out, fmt.Errorf("shard %d vectors: %w", shardID, err)
	}

	top := merger.NewTopK(req.Limit)
	for docID, v := range vectors {
		if !match.Match(v, q) {
			continue
		}
		out.matched++
		top.Push(rank.ScoredDoc{DocID: docID, Score: rank.RoundScore(e.score(v, q, req))})
	}
	out.hits = top.Results()
	return out, nil
}

// lexemeStats counts this shard's postings for each positive leaf.
// Prefix leaves are keyed with a ":*" suffix.
func (e *Executor) lexemeStats(eng *index.Engine, q *query.Node) (map[string]int, error) {
	stats := make(map[string]int)
	for _, leaf := range positiveLeaves(q) {
		if leaf.Prefix {
			entries, err := eng.LookupPrefix(leaf.Lexeme)
			if err != nil {
				return nil, err
			}
			n := 0
			for _, entry := range entries {
				n += len(entry.Postings)
			}
			if n > 0 {
				stats[leaf.Lexeme+":*"] = n
			}
			continue
		}
		list, err := eng.Lookup(leaf.Lexeme)
		if err != nil {
			return nil, err
		}
		if len(list) > 0 {
			stats[leaf.Lexeme] = len(list)
		}
	}
	return stats, nil
}

// positiveLeaves collects the distinct leaves outside negated subtrees.
func positiveLeaves(q *query.Node) []*query.Node {
	type key struct {
		lexeme string
		prefix bool
	}
	var out []*query.Node
	seen := make(map[key]bool)
	var walk func(*query.Node)
	walk = func(n *query.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case query.KindNot:
			return
		case query.KindLexeme:
			k := key{n.Lexeme, n.Prefix}
			if !seen[k] {
				seen[k] = true
				out = append(out, n)
			}
		default:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(q)
	return out
}
