package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/index"
	"github.com/arktext/textsearch/internal/match"
	"github.com/arktext/textsearch/internal/query"
	"github.com/arktext/textsearch/internal/rank"
	"github.com/arktext/textsearch/internal/search/executor"
	"github.com/arktext/textsearch/internal/store"
	"github.com/arktext/textsearch/internal/vector"
	"github.com/arktext/textsearch/pkg/config"
)

// memStore serves vectors from memory, standing in for PostgreSQL.
type memStore struct {
	vectors map[string]vector.Vector
}

func newMemStore() *memStore {
	return &memStore{vectors: make(map[string]vector.Vector)}
}

func (m *memStore) GetVectors(_ context.Context, ids []string) (map[string]vector.Vector, error) {
	out := make(map[string]vector.Vector, len(ids))
	for _, id := range ids {
		if v, ok := m.vectors[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memStore) GetDocuments(_ context.Context, ids []string) (map[string]*store.Document, error) {
	return map[string]*store.Document{}, nil
}

func (m *memStore) ScanVectors(_ context.Context, fn func(string, vector.Vector) error) error {
	for id, v := range m.vectors {
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return nil
}

// BenchmarkQueryCompile measures compilation latency for queries of
// varying complexity across the four syntax modes.
func BenchmarkQueryCompile(b *testing.B) {
	p := englishPipeline(b)
	queries := []struct {
		name  string
		mode  string
		query string
	}{
		{"simple_web", executor.ModeWeb, "inverted index"},
		{"boolean_and", executor.ModeTSQuery, "search & ranking & shards"},
		{"boolean_or", executor.ModeTSQuery, "caching | flushing | merging"},
		{"with_not", executor.ModeTSQuery, "lexeme & !stopword"},
		{"phrase", executor.ModePhrase, "cover density ranking"},
		{"complex", executor.ModeTSQuery, "(lexeme <-> position) & (rank:* | !deprecated)"},
		{"long_plain", executor.ModePlain, "weighted positions ranked by frequency and cover density across many shards"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				var tree *query.Node
				switch q.mode {
				case executor.ModeTSQuery:
					var err error
					tree, err = query.Compile(q.query, p)
					if err != nil {
						b.Fatal(err)
					}
				case executor.ModePlain:
					tree = query.CompilePlain(q.query, p)
				case executor.ModePhrase:
					tree = query.CompilePhrase(q.query, p)
				default:
					tree = query.CompileWeb(q.query, p)
				}
				_ = tree
			}
		})
	}
}

// BenchmarkMatch measures vector verification for AND, phrase, and
// prefix queries against a mid-sized document.
func BenchmarkMatch(b *testing.B) {
	p := englishPipeline(b)
	text := strings.Repeat("weighted lexeme positions drive phrase matching and cover density ranking across segments ", 40)
	v := vector.Build(text, p)

	cases := []struct {
		name  string
		query string
	}{
		{"and", "lexeme & ranking"},
		{"phrase", "lexeme <-> position"},
		{"prefix", "seg:* & cover"},
		{"negated", "ranking & !deprecated"},
	}
	for _, tc := range cases {
		q, err := query.Compile(tc.query, p)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				ok := match.Match(v, q)
				_ = ok
			}
		})
	}
}

// benchmarkRank drives one ranker over documents of increasing length.
func benchmarkRank(b *testing.B, score func(vector.Vector, *query.Node, rank.WeightScheme, rank.Norm) float64) {
	p := englishPipeline(b)
	q, err := query.Compile("lexeme & ranking & segment", p)
	if err != nil {
		b.Fatal(err)
	}
	sizes := []int{100, 1000, 10000}
	for _, words := range sizes {
		text := strings.Repeat("weighted lexeme positions feed ranking across segment files ", words/8+1)
		v := vector.Build(text, p)
		b.Run(fmt.Sprintf("words_%d", words), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				s := score(v, q, rank.DefaultScheme, rank.Norm(0))
				_ = s
			}
		})
	}
}

func BenchmarkRankFrequency(b *testing.B) {
	benchmarkRank(b, rank.Frequency)
}

func BenchmarkRankCoverDensity(b *testing.B) {
	benchmarkRank(b, rank.CoverDensity)
}

func benchSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		MaxResults:      100,
		DefaultLimit:    10,
		MaxCandidates:   50000,
		TimeoutPerShard: 5 * time.Second,
		DefaultMode:     executor.ModeWeb,
		DefaultRanker:   executor.RankerFrequency,
	}
}

// loadShardedCorpus spreads docsPerShard documents over every shard of a
// fresh router and mirrors their vectors into the store stand-in.
func loadShardedCorpus(b *testing.B, numShards, docsPerShard int, p *dict.Pipeline) (*index.Router, *memStore) {
	b.Helper()
	router, err := index.NewRouter(config.IndexConfig{
		DataDir:        b.TempDir(),
		NumShards:      numShards,
		SegmentMaxSize: 100 * 1024 * 1024,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { router.Close() })

	terms := []string{"inverted", "index", "lexeme", "position", "ranking", "query", "segment", "shard"}
	ms := newMemStore()
	total := numShards * docsPerShard
	for i := 0; i < total; i++ {
		docID := fmt.Sprintf("doc-%d", i)
		text := fmt.Sprintf("document about %s and %s covering %s with %s in production",
			terms[i%len(terms)], terms[(i+1)%len(terms)],
			terms[(i+2)%len(terms)], terms[(i+5)%len(terms)])
		v := vector.Build(text, p)
		if err := router.EngineFor(docID).Insert(docID, v); err != nil {
			b.Fatal(err)
		}
		ms.vectors[docID] = v
	}
	return router, ms
}

// BenchmarkExecutorSharded measures end-to-end search latency with
// varying shard counts.
func BenchmarkExecutorSharded(b *testing.B) {
	p := englishPipeline(b)
	shardCounts := []int{1, 4, 8}
	for _, numShards := range shardCounts {
		b.Run(fmt.Sprintf("shards_%d", numShards), func(b *testing.B) {
			router, ms := loadShardedCorpus(b, numShards, 1000, p)
			exec := executor.New(router, ms, p, benchSearchConfig())
			req := &executor.Request{Query: "inverted index", Mode: executor.ModeWeb, Limit: 10}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := exec.Execute(context.Background(), req)
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}

// BenchmarkExecutorParallel measures concurrent search throughput across
// 8 shards.
func BenchmarkExecutorParallel(b *testing.B) {
	p := englishPipeline(b)
	router, ms := loadShardedCorpus(b, 8, 1000, p)
	exec := executor.New(router, ms, p, benchSearchConfig())
	req := &executor.Request{Query: "inverted index", Mode: executor.ModeWeb, Limit: 10}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			result, err := exec.Execute(context.Background(), req)
			if err != nil {
				b.Fatal(err)
			}
			_ = result
		}
	})
}
