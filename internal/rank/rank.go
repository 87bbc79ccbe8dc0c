// Package rank scores document vectors against compiled queries. Two
// rankers are provided: Frequency weighs per-class occurrence counts,
// CoverDensity additionally rewards tight proximity between the query
// terms. Both are deterministic and ignore negated subtrees.
package rank

import (
	"math"

	"github.com/arktext/textsearch/internal/query"
	"github.com/arktext/textsearch/internal/vector"
)

// WeightScheme maps the four weight classes to score multipliers,
// indexed by vector.Weight.
type WeightScheme [4]float64

// DefaultScheme is the conventional D < C < B < A progression.
var DefaultScheme = WeightScheme{0.1, 0.2, 0.4, 1.0}

// ScoredDoc pairs a document with its relevance score.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// RoundScore rounds a score to four decimal places.
func RoundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}

// Norm selects score normalizations, combinable by OR.
type Norm uint8

const (
	// DivLogLength divides by log2(document length + 1).
	DivLogLength Norm = 1 << iota
	// DivLength divides by the document length.
	DivLength
	// DivUniqueLexemes divides by the number of distinct lexemes.
	DivUniqueLexemes
	// DivLogUniqueLexemes divides by log2(distinct lexemes + 1).
	DivLogUniqueLexemes
	// SelfPlusOne maps the score to rank/(rank+1), bounding it below 1.
	SelfPlusOne
)

// Frequency ranks v against q by per-weight-class occurrence counts of
// the query's positive leaves, log-dampened so repeated terms grow the
// score sublinearly. A zero scheme selects DefaultScheme. Leaves absent
// from the vector contribute nothing; the result is always >= 0.
func Frequency(v vector.Vector, q *query.Node, scheme WeightScheme, norm Norm) float64 {
	if q == nil {
		return 0
	}
	if scheme == (WeightScheme{}) {
		scheme = DefaultScheme
	}
	var total float64
	for _, leaf := range positiveLeaves(q) {
		occs, stripped := leafOccurrences(v, leaf)
		var counts [4]int
		counts[vector.WeightD] += stripped
		for _, o := range occs {
			counts[o.weight&3]++
		}
		for c, cnt := range counts {
			if cnt > 0 {
				total += scheme[c] * (1 + math.Log(float64(cnt)))
			}
		}
	}
	return applyNorm(total, v, norm)
}

func applyNorm(rank float64, v vector.Vector, n Norm) float64 {
	if rank <= 0 {
		return 0
	}
	if n&DivLogLength != 0 {
		if l := v.DocLen(); l > 0 {
			rank /= math.Log2(float64(l + 1))
		}
	}
	if n&DivLength != 0 {
		if l := v.DocLen(); l > 0 {
			rank /= float64(l)
		}
	}
	if n&DivUniqueLexemes != 0 {
		if u := v.Len(); u > 0 {
			rank /= float64(u)
		}
	}
	if n&DivLogUniqueLexemes != 0 {
		if u := v.Len(); u > 0 {
			rank /= math.Log2(float64(u + 1))
		}
	}
	if n&SelfPlusOne != 0 {
		rank = rank / (rank + 1)
	}
	return rank
}

type occurrence struct {
	pos    int
	weight vector.Weight
}

// leafOccurrences gathers the weighted positions a leaf matches in v,
// plus the number of stripped entries it matched existence-only.
func leafOccurrences(v vector.Vector, n *query.Node) (occs []occurrence, stripped int) {
	var entries []vector.Entry
	if n.Prefix {
		entries = v.PrefixRange(n.Lexeme)
	} else if e, ok := v.Lookup(n.Lexeme); ok {
		entries = []vector.Entry{e}
	}
	for _, e := range entries {
		if e.Positions == nil {
			if n.Weights.Empty() {
				stripped++
			}
			continue
		}
		for _, p := range e.Positions {
			if n.Weights.Has(p.Weight()) {
				occs = append(occs, occurrence{pos: p.Pos(), weight: p.Weight()})
			}
		}
	}
	return occs, stripped
}

type leafKey struct {
	lexeme  string
	prefix  bool
	weights vector.WeightMask
}

// positiveLeaves collects the distinct non-negated leaves in tree
// order. Duplicate leaves score once.
func positiveLeaves(n *query.Node) []*query.Node {
	var out []*query.Node
	seen := make(map[leafKey]bool)
	var walk func(*query.Node)
	walk = func(n *query.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case query.KindNot:
			return
		case query.KindLexeme:
			k := leafKey{n.Lexeme, n.Prefix, n.Weights}
			if !seen[k] {
				seen[k] = true
				out = append(out, n)
			}
		default:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(n)
	return out
}
