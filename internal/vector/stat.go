package vector

import "sort"

// LexemeStat is the corpus-wide tally for one lexeme.
type LexemeStat struct {
	Lexeme      string `json:"lexeme"`
	Docs        int    `json:"docs"`
	Occurrences int    `json:"occurrences"`
}

// Stat folds vectors into per-lexeme document and occurrence counts,
// the corpus-statistics operation backing top-lexeme reporting. Not
// safe for concurrent use; callers serialize access.
type Stat struct {
	m map[string]*LexemeStat
}

func NewStat() *Stat {
	return &Stat{m: make(map[string]*LexemeStat)}
}

// Add tallies one vector. A stripped entry counts a single occurrence.
func (s *Stat) Add(v Vector) {
	for _, e := range v.Entries() {
		ls := s.m[e.Lexeme]
		if ls == nil {
			ls = &LexemeStat{Lexeme: e.Lexeme}
			s.m[e.Lexeme] = ls
		}
		ls.Docs++
		if n := len(e.Positions); n > 0 {
			ls.Occurrences += n
		} else {
			ls.Occurrences++
		}
	}
}

// Len reports the number of distinct lexemes seen.
func (s *Stat) Len() int { return len(s.m) }

// Top returns the n most frequent lexemes, ordered by occurrences,
// then document count, then lexeme.
func (s *Stat) Top(n int) []LexemeStat {
	out := make([]LexemeStat, 0, len(s.m))
	for _, ls := range s.m {
		out = append(out, *ls)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		if out[i].Docs != out[j].Docs {
			return out[i].Docs > out[j].Docs
		}
		return out[i].Lexeme < out[j].Lexeme
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
