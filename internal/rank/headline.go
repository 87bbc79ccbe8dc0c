package rank

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/query"
)

// HeadlineOptions controls fragment selection and markup. Zero fields
// take the defaults below.
type HeadlineOptions struct {
	MinWords int    // fragment floor in word positions (default 15)
	MaxWords int    // fragment ceiling in word positions (default 35)
	StartSel string // opening marker around matches (default "<b>")
	StopSel  string // closing marker around matches (default "</b>")
}

func (o HeadlineOptions) withDefaults() HeadlineOptions {
	if o.MinWords <= 0 {
		o.MinWords = 15
	}
	if o.MaxWords <= 0 {
		o.MaxWords = 35
	}
	if o.MaxWords < o.MinWords {
		o.MaxWords = o.MinWords
	}
	if o.StartSel == "" {
		o.StartSel = "<b>"
	}
	if o.StopSel == "" {
		o.StopSel = "</b>"
	}
	return o
}

// Headline renders the best snippet of text for q: the tightest window
// containing every positive query term found, extended to MinWords and
// capped at MaxWords positions, with each matched word wrapped in the
// selection markers. Weight restrictions are ignored since analyzed
// text carries no weights. Without any term present the fragment is
// the start of the text.
func Headline(text string, q *query.Node, p *dict.Pipeline, opts HeadlineOptions) string {
	opts = opts.withDefaults()
	// Analyze normalises its input the same way; offsets refer to the
	// normalised form.
	if !norm.NFC.IsNormalString(text) {
		text = norm.NFC.String(text)
	}
	lexemes := p.Analyze(text)
	if len(lexemes) == 0 {
		return ""
	}
	leaves := positiveLeaves(q)

	// One event per lexeme that matches a query leaf.
	var events []hlEvent
	for li, lx := range lexemes {
		if t := matchLeaf(leaves, lx.Text); t >= 0 {
			events = append(events, hlEvent{pos: lx.Pos, term: t, lex: li})
		}
	}
	present := 0
	seen := make([]bool, len(leaves))
	for _, ev := range events {
		if !seen[ev.term] {
			seen[ev.term] = true
			present++
		}
	}

	first := lexemes[0].Pos
	last := lexemes[len(lexemes)-1].Pos
	fragLo, fragHi := first, first+opts.MinWords-1
	if present > 0 {
		lo, hi := bestCover(events, len(leaves), present)
		fragLo, fragHi = lo, hi
		if fragHi-fragLo+1 > opts.MaxWords {
			fragHi = fragLo + opts.MaxWords - 1
		}
	}
	if fragHi-fragLo+1 < opts.MinWords {
		fragHi = fragLo + opts.MinWords - 1
	}
	if fragHi > last {
		fragHi = last
	}
	if fragHi-fragLo+1 < opts.MinWords {
		fragLo = fragHi - opts.MinWords + 1
		if fragLo < first {
			fragLo = first
		}
	}

	// Byte range of the fragment and the matched spans inside it.
	type span struct{ off, end int }
	var (
		start, end = -1, -1
		marks      []span
	)
	matched := make(map[int]bool, len(events))
	for _, ev := range events {
		matched[ev.lex] = true
	}
	for li, lx := range lexemes {
		if lx.Pos < fragLo || lx.Pos > fragHi {
			continue
		}
		if start < 0 {
			start = lx.Off
		}
		if lx.End > end {
			end = lx.End
		}
		if matched[li] {
			if n := len(marks); n > 0 && lx.Off < marks[n-1].end {
				// Overlapping forms (a compound and its parts) share
				// one marker pair.
				if lx.End > marks[n-1].end {
					marks[n-1].end = lx.End
				}
			} else {
				marks = append(marks, span{off: lx.Off, end: lx.End})
			}
		}
	}
	if start < 0 {
		return ""
	}

	var b strings.Builder
	cur := start
	for _, m := range marks {
		b.WriteString(text[cur:m.off])
		b.WriteString(opts.StartSel)
		b.WriteString(text[m.off:m.end])
		b.WriteString(opts.StopSel)
		cur = m.end
	}
	b.WriteString(text[cur:end])
	return b.String()
}

// matchLeaf returns the index of the first leaf the lexeme satisfies,
// or -1.
func matchLeaf(leaves []*query.Node, lex string) int {
	for i, leaf := range leaves {
		if leaf.Prefix {
			if strings.HasPrefix(lex, leaf.Lexeme) {
				return i
			}
		} else if lex == leaf.Lexeme {
			return i
		}
	}
	return -1
}

type hlEvent struct {
	pos, term, lex int
}

// bestCover finds the smallest window over the event stream containing
// every present term, preferring the leftmost on ties. The events
// arrive sorted by position.
func bestCover(events []hlEvent, terms, present int) (int, int) {
	counts := make([]int, terms)
	var (
		covered        int
		left           int
		bestLo, bestHi int
		bestSpan       = -1
	)
	for r := 0; r < len(events); r++ {
		if counts[events[r].term] == 0 {
			covered++
		}
		counts[events[r].term]++
		if covered < present {
			continue
		}
		for counts[events[left].term] > 1 {
			counts[events[left].term]--
			left++
		}
		span := events[r].pos - events[left].pos + 1
		if bestSpan < 0 || span < bestSpan {
			bestSpan = span
			bestLo, bestHi = events[left].pos, events[r].pos
		}
		counts[events[left].term]--
		covered--
		left++
	}
	return bestLo, bestHi
}
