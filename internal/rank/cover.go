package rank

import (
	"sort"

	"github.com/arktext/textsearch/internal/query"
	"github.com/arktext/textsearch/internal/vector"
)

// MaxCovers bounds how many covers a single ranking call will score, so
// pathological documents stay linear instead of combinatorial.
const MaxCovers = 64

// CoverDensity ranks v against q by proximity: it finds minimal
// windows ("covers") containing at least one occurrence of every
// distinct positive leaf present in the vector, and scores each cover
// by its occurrences' summed class weights divided by the window span.
// Tight clusters of query terms therefore outrank scattered ones. A
// single-term query degrades to scoring each occurrence alone.
func CoverDensity(v vector.Vector, q *query.Node, scheme WeightScheme, norm Norm) float64 {
	if q == nil {
		return 0
	}
	if scheme == (WeightScheme{}) {
		scheme = DefaultScheme
	}
	events, terms := coverEvents(v, q, scheme)
	if terms == 0 {
		return 0
	}

	var (
		total   float64
		covers  int
		covered int
		left    int
	)
	counts := make([]int, terms)
	for r := 0; r < len(events) && covers < MaxCovers; r++ {
		if counts[events[r].term] == 0 {
			covered++
		}
		counts[events[r].term]++
		if covered < terms {
			continue
		}
		// Shrink to the minimal window ending here.
		for counts[events[left].term] > 1 {
			counts[events[left].term]--
			left++
		}
		span := events[r].pos - events[left].pos + 1
		var sum float64
		for i := left; i <= r; i++ {
			sum += events[i].weight
		}
		total += sum / float64(span)
		covers++
		// Drop the defining left occurrence and search on.
		counts[events[left].term]--
		covered--
		left++
	}
	return applyNorm(total, v, norm)
}

type coverEvent struct {
	pos    int
	term   int
	weight float64
}

// coverEvents flattens the positioned occurrences of the query's
// positive leaves into one sorted stream. Leaves with no positioned
// occurrences (absent, or matched only through stripped entries) are
// excluded from the term requirement: a window can never contain them.
func coverEvents(v vector.Vector, q *query.Node, scheme WeightScheme) ([]coverEvent, int) {
	var events []coverEvent
	terms := 0
	for _, leaf := range positiveLeaves(q) {
		occs, _ := leafOccurrences(v, leaf)
		if len(occs) == 0 {
			continue
		}
		for _, o := range occs {
			events = append(events, coverEvent{pos: o.pos, term: terms, weight: scheme[o.weight&3]})
		}
		terms++
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		return events[i].term < events[j].term
	})
	return events, terms
}
