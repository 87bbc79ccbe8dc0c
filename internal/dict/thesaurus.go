package dict

import "strings"

// Thesaurus substitutes multi-token phrases with preferred lexemes.
// Longest phrase wins; with KeepOriginal set the matched tokens are
// indexed alongside the substitution so either form is searchable.
type Thesaurus struct {
	name         string
	entries      map[string][]string
	maxLen       int
	keepOriginal bool
}

// NewThesaurus builds a thesaurus from phrase → substitution entries.
// Phrase keys are whitespace-separated token sequences, matched
// case-insensitively.
func NewThesaurus(name string, entries map[string][]string, keepOriginal bool) *Thesaurus {
	t := &Thesaurus{
		name:         name,
		entries:      make(map[string][]string, len(entries)),
		keepOriginal: keepOriginal,
	}
	for phrase, subst := range entries {
		words := strings.Fields(strings.ToLower(phrase))
		if len(words) == 0 {
			continue
		}
		out := make([]string, 0, len(subst))
		for _, s := range subst {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			continue
		}
		t.entries[strings.Join(words, " ")] = out
		if len(words) > t.maxLen {
			t.maxLen = len(words)
		}
	}
	return t
}

func (d *Thesaurus) Name() string { return d.name }
func (d *Thesaurus) Kind() Kind   { return KindThesaurus }

// MaxPhraseLen reports the longest phrase in the table, which is the
// lookahead window the pipeline must offer.
func (d *Thesaurus) MaxPhraseLen() int { return d.maxLen }

// Lookup matches a single token, satisfying the plain Dictionary
// interface for chains that place a thesaurus without lookahead.
func (d *Thesaurus) Lookup(token string) ([]string, bool) {
	lexemes, _, ok := d.LookupPhrase([]string{token})
	return lexemes, ok
}

// LookupPhrase matches the longest entry that prefixes tokens.
func (d *Thesaurus) LookupPhrase(tokens []string) ([]string, int, bool) {
	n := len(tokens)
	if n > d.maxLen {
		n = d.maxLen
	}
	for ; n > 0; n-- {
		parts := make([]string, n)
		for i := 0; i < n; i++ {
			parts[i] = strings.ToLower(tokens[i])
		}
		subst, ok := d.entries[strings.Join(parts, " ")]
		if !ok {
			continue
		}
		if !d.keepOriginal {
			return subst, n, true
		}
		out := make([]string, 0, len(subst)+n)
		out = append(out, subst...)
		out = append(out, parts...)
		return out, n, true
	}
	return nil, 0, false
}
