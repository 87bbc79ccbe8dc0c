// Package vector implements the document vector: an immutable, sorted
// set of lexemes with position and weight occurrence lists.
//
// Positions are packed into uint16 values (14 bits of position, 2 bits
// of weight class) and entries are kept in one flat sorted slice, so a
// vector is cheap to binary-search, compare, and hand out by value.
// Mutating operations (ApplyWeight, Concat, Strip) return new vectors.
package vector

import "sort"

const (
	// MaxPosition is the largest storable position; larger values clamp.
	MaxPosition = 16383
	// MaxPositionsPerLexeme caps the occurrence list of one lexeme.
	MaxPositionsPerLexeme = 256
	// MaxBytes bounds the serialized size of a whole vector. Oversize
	// vectors are truncated, never rejected.
	MaxBytes = 1 << 20
)

// Weight is one of the four ordered occurrence classes, D lowest.
type Weight uint8

const (
	WeightD Weight = iota
	WeightC
	WeightB
	WeightA
)

var weightLetters = [4]byte{'D', 'C', 'B', 'A'}

func (w Weight) String() string { return string(weightLetters[w&3]) }

// ParseWeight resolves a weight letter in either case.
func ParseWeight(c byte) (Weight, bool) {
	switch c {
	case 'a', 'A':
		return WeightA, true
	case 'b', 'B':
		return WeightB, true
	case 'c', 'C':
		return WeightC, true
	case 'd', 'D':
		return WeightD, true
	}
	return WeightD, false
}

// WeightMask is a set of weight classes. The zero mask means
// "unrestricted" everywhere it is consulted.
type WeightMask uint8

// MaskOf builds a mask from weights.
func MaskOf(ws ...Weight) WeightMask {
	var m WeightMask
	for _, w := range ws {
		m |= 1 << w
	}
	return m
}

// Has reports whether w passes the restriction. An empty mask passes
// everything.
func (m WeightMask) Has(w Weight) bool {
	return m == 0 || m&(1<<w) != 0
}

// Empty reports whether the mask restricts nothing.
func (m WeightMask) Empty() bool { return m == 0 }

func (m WeightMask) String() string {
	if m == 0 {
		return ""
	}
	var b []byte
	for _, w := range [...]Weight{WeightA, WeightB, WeightC, WeightD} {
		if m&(1<<w) != 0 {
			b = append(b, weightLetters[w])
		}
	}
	return string(b)
}

// Position packs a clamped 14-bit position with a 2-bit weight class.
type Position uint16

// NewPosition builds a packed position. Values outside [1, MaxPosition]
// clamp to the nearest bound.
func NewPosition(pos int, w Weight) Position {
	if pos < 1 {
		pos = 1
	}
	if pos > MaxPosition {
		pos = MaxPosition
	}
	return Position(uint16(pos) | uint16(w&3)<<14)
}

// Pos unpacks the position value.
func (p Position) Pos() int { return int(p & MaxPosition) }

// Weight unpacks the weight class.
func (p Position) Weight() Weight { return Weight(p >> 14) }

// WithWeight returns the same position in a different class.
func (p Position) WithWeight(w Weight) Position {
	return Position(uint16(p)&MaxPosition | uint16(w&3)<<14)
}

// Entry is one lexeme with its occurrence list, sorted by position and
// unique per position. A nil Positions slice marks a stripped entry.
type Entry struct {
	Lexeme    string
	Positions []Position
}

// Vector is the immutable document vector. The zero value is an empty
// vector ready for use.
type Vector struct {
	entries []Entry
}

// New assembles a vector directly from entries, enforcing the sorting,
// uniqueness, and size invariants. Primarily for tests and storage
// layers; text goes through Build.
func New(entries []Entry) Vector {
	m := make(map[string][]Position, len(entries))
	stripped := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Positions == nil {
			if _, seen := m[e.Lexeme]; !seen {
				m[e.Lexeme] = nil
				stripped[e.Lexeme] = true
			}
			continue
		}
		delete(stripped, e.Lexeme)
		m[e.Lexeme] = append(m[e.Lexeme], e.Positions...)
	}
	out := make([]Entry, 0, len(m))
	for lex, ps := range m {
		if stripped[lex] {
			out = append(out, Entry{Lexeme: lex})
			continue
		}
		out = append(out, Entry{Lexeme: lex, Positions: normalizePositions(ps)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lexeme < out[j].Lexeme })
	return Vector{entries: truncateToBudget(out)}
}

// normalizePositions sorts by position, discards duplicate positions
// (first weight wins), and caps the list length.
func normalizePositions(ps []Position) []Position {
	sorted := append([]Position(nil), ps...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos() < sorted[j].Pos() })
	out := sorted[:0]
	last := -1
	for _, p := range sorted {
		if p.Pos() == last {
			continue
		}
		out = append(out, p)
		last = p.Pos()
		if len(out) == MaxPositionsPerLexeme {
			break
		}
	}
	return out
}

// Len reports the number of distinct lexemes.
func (v Vector) Len() int { return len(v.entries) }

// DocLen reports the total occurrence count; stripped entries count as
// one occurrence each.
func (v Vector) DocLen() int {
	n := 0
	for _, e := range v.entries {
		if e.Positions == nil {
			n++
			continue
		}
		n += len(e.Positions)
	}
	return n
}

// Entries exposes the sorted entry arena. Callers must not modify it.
func (v Vector) Entries() []Entry { return v.entries }

// Lookup finds the entry for an exact lexeme.
func (v Vector) Lookup(lexeme string) (Entry, bool) {
	i := sort.Search(len(v.entries), func(i int) bool {
		return v.entries[i].Lexeme >= lexeme
	})
	if i < len(v.entries) && v.entries[i].Lexeme == lexeme {
		return v.entries[i], true
	}
	return Entry{}, false
}

// PrefixRange returns the contiguous run of entries whose lexemes start
// with prefix. The returned slice aliases the arena.
func (v Vector) PrefixRange(prefix string) []Entry {
	i := sort.Search(len(v.entries), func(i int) bool {
		return v.entries[i].Lexeme >= prefix
	})
	j := i
	for j < len(v.entries) && hasPrefix(v.entries[j].Lexeme, prefix) {
		j++
	}
	return v.entries[i:j]
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// WeightScope selects which positions ApplyWeight rewrites.
type WeightScope uint8

const (
	// UnsetOnly rewrites only positions still in the default class.
	UnsetOnly WeightScope = iota
	// AllPositions rewrites every position.
	AllPositions
)

// ApplyWeight returns a copy of v with w applied per scope. Combining
// weighted sub-vectors (title at A, body at D) is Concat's job.
func (v Vector) ApplyWeight(w Weight, scope WeightScope) Vector {
	out := make([]Entry, len(v.entries))
	for i, e := range v.entries {
		if e.Positions == nil {
			out[i] = e
			continue
		}
		ps := make([]Position, len(e.Positions))
		for j, p := range e.Positions {
			if scope == AllPositions || p.Weight() == WeightD {
				ps[j] = p.WithWeight(w)
			} else {
				ps[j] = p
			}
		}
		out[i] = Entry{Lexeme: e.Lexeme, Positions: ps}
	}
	return Vector{entries: out}
}

// Strip returns a copy with all position and weight detail removed,
// keeping only the lexeme set.
func (v Vector) Strip() Vector {
	out := make([]Entry, len(v.entries))
	for i, e := range v.entries {
		out[i] = Entry{Lexeme: e.Lexeme}
	}
	return Vector{entries: out}
}

// MaxPos reports the highest position in the vector, 0 when it has no
// positional entries.
func (v Vector) MaxPos() int {
	max := 0
	for _, e := range v.entries {
		if n := len(e.Positions); n > 0 {
			if p := e.Positions[n-1].Pos(); p > max {
				max = p
			}
		}
	}
	return max
}

// Equal reports deep equality of two vectors.
func (v Vector) Equal(o Vector) bool {
	if len(v.entries) != len(o.entries) {
		return false
	}
	for i := range v.entries {
		a, b := v.entries[i], o.entries[i]
		if a.Lexeme != b.Lexeme || len(a.Positions) != len(b.Positions) {
			return false
		}
		if (a.Positions == nil) != (b.Positions == nil) {
			return false
		}
		for j := range a.Positions {
			if a.Positions[j] != b.Positions[j] {
				return false
			}
		}
	}
	return true
}

// Concat appends b to a as if b's text followed a's: b's positions are
// offset past a's maximum so relative order is preserved, then entries
// are merged under the usual caps.
func Concat(a, b Vector) Vector {
	offset := a.MaxPos()
	out := make([]Entry, 0, len(a.entries)+len(b.entries))
	i, j := 0, 0
	for i < len(a.entries) || j < len(b.entries) {
		switch {
		case j >= len(b.entries) || (i < len(a.entries) && a.entries[i].Lexeme < b.entries[j].Lexeme):
			out = append(out, copyEntry(a.entries[i]))
			i++
		case i >= len(a.entries) || b.entries[j].Lexeme < a.entries[i].Lexeme:
			out = append(out, offsetEntry(b.entries[j], offset))
			j++
		default:
			out = append(out, mergeEntries(a.entries[i], b.entries[j], offset))
			i++
			j++
		}
	}
	return Vector{entries: truncateToBudget(out)}
}

func copyEntry(e Entry) Entry {
	if e.Positions == nil {
		return Entry{Lexeme: e.Lexeme}
	}
	return Entry{Lexeme: e.Lexeme, Positions: append([]Position(nil), e.Positions...)}
}

func offsetEntry(e Entry, offset int) Entry {
	if e.Positions == nil {
		return Entry{Lexeme: e.Lexeme}
	}
	ps := make([]Position, 0, len(e.Positions))
	for _, p := range e.Positions {
		ps = append(ps, NewPosition(p.Pos()+offset, p.Weight()))
	}
	return Entry{Lexeme: e.Lexeme, Positions: normalizePositions(ps)}
}

func mergeEntries(a, b Entry, offset int) Entry {
	if a.Positions == nil && b.Positions == nil {
		return Entry{Lexeme: a.Lexeme}
	}
	ps := append([]Position(nil), a.Positions...)
	for _, p := range b.Positions {
		ps = append(ps, NewPosition(p.Pos()+offset, p.Weight()))
	}
	return Entry{Lexeme: a.Lexeme, Positions: normalizePositions(ps)}
}
