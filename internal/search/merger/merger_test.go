package merger

import (
	"reflect"
	"testing"

	"github.com/arktext/textsearch/internal/rank"
)

func TestMergeOrdersByScoreThenDocID(t *testing.T) {
	shards := [][]rank.ScoredDoc{
		{{DocID: "doc-3", Score: 0.5}, {DocID: "doc-1", Score: 0.1}},
		{{DocID: "doc-2", Score: 0.5}, {DocID: "doc-4", Score: 0.9}},
	}
	got := Merge(shards, 10)
	want := []rank.ScoredDoc{
		{DocID: "doc-4", Score: 0.9},
		{DocID: "doc-2", Score: 0.5},
		{DocID: "doc-3", Score: 0.5},
		{DocID: "doc-1", Score: 0.1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge = %+v, want %+v", got, want)
	}
}

func TestMergeAppliesLimit(t *testing.T) {
	shards := [][]rank.ScoredDoc{
		{{DocID: "a", Score: 1}, {DocID: "b", Score: 2}},
		{{DocID: "c", Score: 3}, {DocID: "d", Score: 4}},
	}
	got := Merge(shards, 2)
	want := []rank.ScoredDoc{
		{DocID: "d", Score: 4},
		{DocID: "c", Score: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge = %+v, want %+v", got, want)
	}
}

func TestMergeEmptyShards(t *testing.T) {
	if got := Merge(nil, 5); len(got) != 0 {
		t.Fatalf("Merge(nil) = %+v, want empty", got)
	}
	if got := Merge([][]rank.ScoredDoc{{}, {}}, 5); len(got) != 0 {
		t.Fatalf("Merge(empty shards) = %+v, want empty", got)
	}
}

func TestTopKStreamsAndDrains(t *testing.T) {
	top := NewTopK(3)
	for _, doc := range []rank.ScoredDoc{
		{DocID: "a", Score: 0.2},
		{DocID: "b", Score: 0.9},
		{DocID: "c", Score: 0.4},
		{DocID: "d", Score: 0.7},
		{DocID: "e", Score: 0.1},
	} {
		top.Push(doc)
	}
	want := []rank.ScoredDoc{
		{DocID: "b", Score: 0.9},
		{DocID: "d", Score: 0.7},
		{DocID: "c", Score: 0.4},
	}
	if got := top.Results(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Results = %+v, want %+v", got, want)
	}
	if got := top.Results(); len(got) != 0 {
		t.Fatalf("second Results = %+v, want empty", got)
	}
}

func TestTopKDefaultLimit(t *testing.T) {
	top := NewTopK(0)
	for i := 0; i < 25; i++ {
		top.Push(rank.ScoredDoc{DocID: string(rune('a' + i)), Score: float64(i)})
	}
	if got := len(top.Results()); got != 10 {
		t.Fatalf("default limit kept %d results, want 10", got)
	}
}
