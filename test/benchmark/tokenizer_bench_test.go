package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/token"
	"github.com/arktext/textsearch/internal/vector"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Full-text search normalizes raw text into lexemes before anything
        is matched. The scanner classifies every token first, so email addresses,
        version numbers, and hyphenated words survive normalization intact while
        plain words are lowercased and stemmed. Stopwords are dropped but still
        occupy positions, which keeps phrase distances honest across the gaps
        they leave behind.`,
	"long": strings.Repeat(`Document vectors pair each lexeme with its weighted
        positions, capped and truncated deterministically when a document grows
        past its budget. Queries compile into expression trees of AND, OR, NOT,
        and FOLLOWED-BY nodes, with prefix and weight restrictions on the leaves.
        The inverted index answers with candidate supersets that the matcher
        verifies against stored vectors, and rankers score the survivors by
        frequency or cover density before results are merged across shards. `, 20),
}

func englishPipeline(b *testing.B) *dict.Pipeline {
	b.Helper()
	p, err := dict.NewEnglish(nil)
	if err != nil {
		b.Fatalf("NewEnglish: %v", err)
	}
	return p
}

// BenchmarkScan measures raw classified tokenization throughput without
// any dictionary work.
func BenchmarkScan(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := token.NewScanner(text).All()
				_ = tokens
			}
		})
	}
}

// BenchmarkScanParallel measures concurrent scanner throughput; scanners
// share nothing, so this should scale with cores.
func BenchmarkScanParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := token.NewScanner(text).All()
			_ = tokens
		}
	})
}

// BenchmarkAnalyze measures the full pipeline: scan, stopword removal,
// and stemming down to positioned lexemes.
func BenchmarkAnalyze(b *testing.B) {
	p := englishPipeline(b)
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				lexemes := p.Analyze(text)
				_ = lexemes
			}
		})
	}
}

// BenchmarkStem isolates per-word dictionary cost on words the stemmer
// actually rewrites.
func BenchmarkStem(b *testing.B) {
	p := englishPipeline(b)
	words := []string{
		"running", "searching", "indexing", "positions",
		"normalization", "dictionaries", "efficiently",
		"weighted", "rankings", "truncated",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			lexemes := p.Analyze(w)
			_ = lexemes
		}
	}
}

// BenchmarkVectorBuild measures end-to-end vector construction at
// increasing input sizes.
func BenchmarkVectorBuild(b *testing.B) {
	p := englishPipeline(b)
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "weighted lexeme positions ranking truncated "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				v := vector.Build(text, p)
				_ = v
			}
		})
	}
}
