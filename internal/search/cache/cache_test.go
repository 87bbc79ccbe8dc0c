package cache

import (
	"strings"
	"testing"

	"github.com/arktext/textsearch/internal/rank"
	"github.com/arktext/textsearch/internal/search/executor"
)

func TestBuildKeyIgnoresWhitespaceAndCase(t *testing.T) {
	a := buildKey(&executor.Request{Query: "Lazy  Fox", Mode: executor.ModeWeb, Limit: 10})
	b := buildKey(&executor.Request{Query: "lazy fox", Mode: executor.ModeWeb, Limit: 10})
	if a != b {
		t.Fatalf("keys differ for equivalent queries: %s vs %s", a, b)
	}
}

func TestBuildKeySeparatesRequestShapes(t *testing.T) {
	base := executor.Request{Query: "lazy fox", Mode: executor.ModeWeb, Ranker: executor.RankerFrequency, Limit: 10}

	variants := []executor.Request{
		func(r executor.Request) executor.Request { r.Query = "lazy cat"; return r }(base),
		func(r executor.Request) executor.Request { r.Mode = executor.ModePhrase; return r }(base),
		func(r executor.Request) executor.Request { r.Ranker = executor.RankerCover; return r }(base),
		func(r executor.Request) executor.Request { r.Limit = 20; return r }(base),
		func(r executor.Request) executor.Request { r.Norm = rank.DivLogLength; return r }(base),
		func(r executor.Request) executor.Request { r.Headline = true; return r }(base),
		func(r executor.Request) executor.Request { r.Scheme = rank.WeightScheme{0, 0, 0, 2}; return r }(base),
	}

	baseKey := buildKey(&base)
	seen := map[string]bool{baseKey: true}
	for i, v := range variants {
		key := buildKey(&v)
		if seen[key] {
			t.Fatalf("variant %d collides with an earlier key", i)
		}
		seen[key] = true
	}
}

func TestBuildKeyHasPrefix(t *testing.T) {
	key := buildKey(&executor.Request{Query: "cat", Mode: executor.ModePlain, Limit: 5})
	if !strings.HasPrefix(key, keyPrefix) {
		t.Fatalf("key %q lacks prefix %q", key, keyPrefix)
	}
}
