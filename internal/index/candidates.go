package index

import (
	"fmt"

	"github.com/arktext/textsearch/internal/query"
)

// Candidates returns the documents that may match q, derived from its
// prunable skeleton. ok is false when the query has no positive
// indexable part (a bare negation, for instance); the index cannot
// bound such a query and callers fall back to scanning the store.
//
// The returned set is a superset of the true matches. Weight
// restrictions, phrase distances, and negations are ignored here and
// re-checked by the matcher.
func (e *Engine) Candidates(q *query.Node) (map[string]struct{}, bool, error) {
	skeleton := query.Prunable(q)
	if skeleton == nil {
		return nil, false, nil
	}
	ids, err := e.candidates(skeleton)
	if err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func (e *Engine) candidates(n *query.Node) (map[string]struct{}, error) {
	switch n.Kind {
	case query.KindLexeme:
		return e.leafCandidates(n)
	case query.KindAnd:
		left, err := e.candidates(n.Left)
		if err != nil {
			return nil, err
		}
		if len(left) == 0 {
			return left, nil
		}
		right, err := e.candidates(n.Right)
		if err != nil {
			return nil, err
		}
		return intersect(left, right), nil
	case query.KindOr:
		left, err := e.candidates(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.candidates(n.Right)
		if err != nil {
			return nil, err
		}
		return union(left, right), nil
	default:
		return nil, fmt.Errorf("unexpected node kind %d in pruned query", n.Kind)
	}
}

func (e *Engine) leafCandidates(n *query.Node) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	if n.Prefix {
		entries, err := e.LookupPrefix(n.Lexeme)
		if err != nil {
			return nil, err
		}
		for _, te := range entries {
			for _, p := range te.Postings {
				ids[p.DocID] = struct{}{}
			}
		}
		return ids, nil
	}
	list, err := e.Lookup(n.Lexeme)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		ids[p.DocID] = struct{}{}
	}
	return ids, nil
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[string]struct{})
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}
