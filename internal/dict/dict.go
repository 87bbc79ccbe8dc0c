// Package dict implements the dictionary chain that turns classified
// tokens into lexemes.
//
// A dictionary either recognises a token (possibly mapping it to nothing,
// as stopword dictionaries do) or defers to the next dictionary in its
// chain. Which chain applies is decided per token class by a Mapping; a
// token whose chain recognises nothing falls back to its lower-cased raw
// form. All dictionaries are immutable after construction and safe for
// concurrent use.
package dict

import (
	"errors"
	"strings"
)

// MaxLexemeBytes caps the byte length of a single lexeme. Longer
// normalisation outputs are dropped, never truncated.
const MaxLexemeBytes = 2046

// ErrUnknownKind is returned when configuration names a dictionary kind
// this package does not implement.
var ErrUnknownKind = errors.New("unknown dictionary kind")

// Kind identifies a dictionary implementation.
type Kind string

const (
	KindSimple    Kind = "simple"
	KindStopword  Kind = "stopword"
	KindStemmer   Kind = "stemmer"
	KindSynonym   Kind = "synonym"
	KindThesaurus Kind = "thesaurus"
)

// Dictionary maps a single token to zero or more lexemes. The second
// result reports whether the dictionary recognised the token; a
// recognised token terminates its chain even when it maps to nothing.
type Dictionary interface {
	Name() string
	Kind() Kind
	Lookup(token string) ([]string, bool)
}

// PhraseDictionary additionally matches multi-token phrases. The
// pipeline offers it a window of upcoming tokens; consumed reports how
// many of them the match swallowed.
type PhraseDictionary interface {
	Dictionary
	LookupPhrase(tokens []string) (lexemes []string, consumed int, ok bool)
	MaxPhraseLen() int
}

// Simple lower-cases and accepts every token. It is the conventional
// tail of a chain and the implicit fallback when a chain is exhausted.
type Simple struct {
	name string
}

func NewSimple(name string) *Simple { return &Simple{name: name} }

func (d *Simple) Name() string { return d.name }
func (d *Simple) Kind() Kind   { return KindSimple }

func (d *Simple) Lookup(token string) ([]string, bool) {
	return []string{strings.ToLower(token)}, true
}

// Stopword recognises listed words and maps them to nothing. Unlisted
// words fall through to the next dictionary.
type Stopword struct {
	name  string
	words map[string]struct{}
}

// NewStopword builds a stopword dictionary from words. A nil or empty
// list selects the built-in english list.
func NewStopword(name string, words []string) *Stopword {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	if len(set) == 0 {
		set = englishStopwords
	}
	return &Stopword{name: name, words: set}
}

func (d *Stopword) Name() string { return d.name }
func (d *Stopword) Kind() Kind   { return KindStopword }

func (d *Stopword) Lookup(token string) ([]string, bool) {
	if _, ok := d.words[strings.ToLower(token)]; ok {
		return nil, true
	}
	return nil, false
}

// Len reports the stoplist size.
func (d *Stopword) Len() int { return len(d.words) }

// Synonym maps one token to one or more replacement lexemes. Tokens
// without an entry fall through.
type Synonym struct {
	name  string
	table map[string][]string
}

func NewSynonym(name string, table map[string][]string) *Synonym {
	t := make(map[string][]string, len(table))
	for k, vs := range table {
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			t[strings.ToLower(strings.TrimSpace(k))] = out
		}
	}
	return &Synonym{name: name, table: t}
}

func (d *Synonym) Name() string { return d.name }
func (d *Synonym) Kind() Kind   { return KindSynonym }

func (d *Synonym) Lookup(token string) ([]string, bool) {
	if out, ok := d.table[strings.ToLower(token)]; ok {
		return out, true
	}
	return nil, false
}
