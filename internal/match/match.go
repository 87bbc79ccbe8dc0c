// Package match evaluates compiled query trees against document
// vectors. It is the verification step behind index candidate
// retrieval and the whole story for small unindexed vectors.
package match

import (
	"sort"

	"github.com/arktext/textsearch/internal/query"
	"github.com/arktext/textsearch/internal/vector"
)

// Match reports whether v satisfies q. A nil tree matches nothing.
func Match(v vector.Vector, q *query.Node) bool {
	if q == nil {
		return false
	}
	return eval(v, q).matched
}

// result carries a subtree's boolean outcome plus the sorted positions
// at which its matched leaves occurred. The positions drive
// followed-by pairing: a matched node with an empty set (negation,
// stripped entries) makes any phrase ancestor fail.
type result struct {
	matched   bool
	positions []int
}

func eval(v vector.Vector, n *query.Node) result {
	switch n.Kind {
	case query.KindLexeme:
		return evalLeaf(v, n)
	case query.KindNot:
		return result{matched: !eval(v, n.Left).matched}
	case query.KindAnd:
		l := eval(v, n.Left)
		if !l.matched {
			return result{}
		}
		r := eval(v, n.Right)
		if !r.matched {
			return result{}
		}
		return result{matched: true, positions: union(l.positions, r.positions)}
	case query.KindOr:
		l := eval(v, n.Left)
		r := eval(v, n.Right)
		switch {
		case l.matched && r.matched:
			return result{matched: true, positions: union(l.positions, r.positions)}
		case l.matched:
			return l
		case r.matched:
			return r
		}
		return result{}
	case query.KindPhrase:
		return evalPhrase(v, n)
	}
	return result{}
}

func evalLeaf(v vector.Vector, n *query.Node) result {
	var entries []vector.Entry
	if n.Prefix {
		entries = v.PrefixRange(n.Lexeme)
	} else if e, ok := v.Lookup(n.Lexeme); ok {
		entries = []vector.Entry{e}
	}
	var res result
	for _, e := range entries {
		if e.Positions == nil {
			// Stripped entries prove existence and nothing stronger.
			if n.Weights.Empty() {
				res.matched = true
			}
			continue
		}
		for _, p := range e.Positions {
			if !n.Weights.Has(p.Weight()) {
				continue
			}
			res.positions = append(res.positions, p.Pos())
		}
	}
	if len(res.positions) > 0 {
		res.matched = true
		sort.Ints(res.positions)
		res.positions = dedupe(res.positions)
	}
	return res
}

// evalPhrase pairs left and right occurrence positions. The reported
// positions are the match ends, so chained phrases measure each gap
// from the previous right-hand operand.
func evalPhrase(v vector.Vector, n *query.Node) result {
	l := eval(v, n.Left)
	if !l.matched {
		return result{}
	}
	r := eval(v, n.Right)
	if !r.matched {
		return result{}
	}
	var ends []int
	if n.Distance == query.AnyDistance {
		if len(l.positions) > 0 {
			first := l.positions[0]
			for _, p2 := range r.positions {
				if p2 > first {
					ends = append(ends, p2)
				}
			}
		}
	} else {
		i := 0
		for _, p2 := range r.positions {
			want := p2 - n.Distance
			for i < len(l.positions) && l.positions[i] < want {
				i++
			}
			if i < len(l.positions) && l.positions[i] == want {
				ends = append(ends, p2)
			}
		}
	}
	if len(ends) == 0 {
		return result{}
	}
	return result{matched: true, positions: ends}
}

// union merges two sorted position sets.
func union(a, b []int) []int {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func dedupe(s []int) []int {
	out := s[:1]
	for _, p := range s[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
