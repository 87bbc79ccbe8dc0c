// Package merger combines ranked result lists into a single top-K list.
package merger

import (
	"container/heap"

	"github.com/arktext/textsearch/internal/rank"
)

// TopK accumulates scored documents and keeps the K best, ordered by
// score descending with document ID as tiebreak. Not safe for
// concurrent use.
type TopK struct {
	h     scoredDocHeap
	limit int
}

// NewTopK creates an accumulator holding at most limit documents.
func NewTopK(limit int) *TopK {
	if limit <= 0 {
		limit = 10
	}
	t := &TopK{limit: limit}
	heap.Init(&t.h)
	return t
}

// Push offers one scored document. Documents below the current K-th
// score fall out.
func (t *TopK) Push(doc rank.ScoredDoc) {
	heap.Push(&t.h, doc)
	if t.h.Len() > t.limit {
		heap.Pop(&t.h)
	}
}

// Results drains the accumulator, best first. The accumulator is empty
// afterwards.
func (t *TopK) Results() []rank.ScoredDoc {
	out := make([]rank.ScoredDoc, t.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(rank.ScoredDoc)
	}
	return out
}

// Merge folds per-shard ranked lists into the global top-limit list.
func Merge(shardResults [][]rank.ScoredDoc, limit int) []rank.ScoredDoc {
	t := NewTopK(limit)
	for _, results := range shardResults {
		for _, doc := range results {
			t.Push(doc)
		}
	}
	return t.Results()
}

// scoredDocHeap is a min-heap: the weakest hit sits on top so it can be
// evicted. Equal scores evict the larger document ID first, making the
// final order deterministic.
type scoredDocHeap []rank.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(rank.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
