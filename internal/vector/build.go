package vector

import (
	"sort"
	"strconv"

	"github.com/arktext/textsearch/internal/dict"
)

// Build runs text through the pipeline and folds the lexeme stream into
// a vector: positions assigned per the bookkeeping rules, clamped at
// MaxPosition, at most MaxPositionsPerLexeme occurrences per lexeme,
// and the whole truncated to the serialized byte budget. All positions
// start in the default weight class; ApplyWeight is a separate step.
func Build(text string, p *dict.Pipeline) Vector {
	lexemes := p.Analyze(text)
	if len(lexemes) == 0 {
		return Vector{}
	}
	acc := make(map[string][]Position)
	for _, lx := range lexemes {
		ps := acc[lx.Text]
		if len(ps) >= MaxPositionsPerLexeme {
			continue
		}
		pos := NewPosition(lx.Pos, WeightD)
		// Clamping can replay the cap position; keep one occurrence.
		if n := len(ps); n > 0 && ps[n-1].Pos() == pos.Pos() {
			continue
		}
		acc[lx.Text] = append(ps, pos)
	}
	entries := make([]Entry, 0, len(acc))
	for lex, ps := range acc {
		entries = append(entries, Entry{Lexeme: lex, Positions: ps})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Lexeme < entries[j].Lexeme })
	return Vector{entries: truncateToBudget(entries)}
}

// truncateToBudget drops occurrences until the estimated serialized
// size fits MaxBytes: lowest weight class goes first, highest position
// first within a class. A lexeme losing its last occurrence is removed
// entirely. Truncation is silent; the caps are part of the data model.
func truncateToBudget(entries []Entry) []Entry {
	size := 0
	for _, e := range entries {
		size += entrySize(e)
	}
	if size <= MaxBytes {
		return entries
	}

	type occ struct {
		ei, pi int
		p      Position
	}
	var occs []occ
	for ei, e := range entries {
		for pi, p := range e.Positions {
			occs = append(occs, occ{ei, pi, p})
		}
	}
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].p.Weight() != occs[j].p.Weight() {
			return occs[i].p.Weight() < occs[j].p.Weight()
		}
		if occs[i].p.Pos() != occs[j].p.Pos() {
			return occs[i].p.Pos() > occs[j].p.Pos()
		}
		return occs[i].ei > occs[j].ei
	})

	dropped := make([]map[int]bool, len(entries))
	remaining := make([]int, len(entries))
	for ei, e := range entries {
		remaining[ei] = len(e.Positions)
	}
	for _, o := range occs {
		if size <= MaxBytes {
			break
		}
		if dropped[o.ei] == nil {
			dropped[o.ei] = make(map[int]bool)
		}
		dropped[o.ei][o.pi] = true
		size -= positionSize(o.p)
		remaining[o.ei]--
		if remaining[o.ei] == 0 {
			size -= lexemeSize(entries[o.ei].Lexeme)
		}
	}

	out := make([]Entry, 0, len(entries))
	for ei, e := range entries {
		if e.Positions == nil {
			out = append(out, e)
			continue
		}
		if remaining[ei] == 0 {
			continue
		}
		if dropped[ei] == nil {
			out = append(out, e)
			continue
		}
		ps := make([]Position, 0, remaining[ei])
		for pi, p := range e.Positions {
			if !dropped[ei][pi] {
				ps = append(ps, p)
			}
		}
		out = append(out, Entry{Lexeme: e.Lexeme, Positions: ps})
	}
	return out
}

func entrySize(e Entry) int {
	size := lexemeSize(e.Lexeme)
	for _, p := range e.Positions {
		size += positionSize(p)
	}
	return size
}

// lexemeSize approximates the serialized cost of a quoted lexeme plus
// its separator.
func lexemeSize(lex string) int { return len(lex) + 3 }

func positionSize(p Position) int {
	size := len(strconv.Itoa(p.Pos())) + 1
	if p.Weight() != WeightD {
		size++
	}
	return size
}
