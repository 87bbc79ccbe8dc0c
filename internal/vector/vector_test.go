package vector

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/arktext/textsearch/internal/dict"
)

func english(t *testing.T) *dict.Pipeline {
	t.Helper()
	p, err := dict.NewEnglish(nil)
	if err != nil {
		t.Fatalf("NewEnglish: %v", err)
	}
	return p
}

func TestBuildClassicSentence(t *testing.T) {
	v := Build("a fat cat sat on a mat - it ate a fat rats", english(t))
	want := "'ate':9 'cat':3 'fat':2,11 'mat':7 'rat':12 'sat':4"
	if got := v.String(); got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
	if v.Len() != 6 {
		t.Fatalf("Len = %d, want 6", v.Len())
	}
	if v.DocLen() != 7 {
		t.Fatalf("DocLen = %d, want 7", v.DocLen())
	}
}

func TestBuildHyphenatedCompound(t *testing.T) {
	v := Build("five-star", english(t))
	want := "'five':2 'five-star':1 'star':3"
	if got := v.String(); got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestBuildDeterministic(t *testing.T) {
	p := english(t)
	text := "Deterministic builds produce identical vectors every run"
	first := Build(text, p).String()
	for i := 0; i < 3; i++ {
		if got := Build(text, p).String(); got != first {
			t.Fatalf("run %d: %q != %q", i, got, first)
		}
	}
}

func TestApplyWeightAndConcat(t *testing.T) {
	p := english(t)
	title := Build("Quick Fox", p).ApplyWeight(WeightA, AllPositions)
	body := Build("the fox jumped", p)
	combined := Concat(title, body)
	want := "'fox':2A,4 'jump':5 'quick':1A"
	if got := combined.String(); got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestApplyWeightUnsetOnly(t *testing.T) {
	v := New([]Entry{{
		Lexeme:    "cat",
		Positions: []Position{NewPosition(1, WeightA), NewPosition(2, WeightD)},
	}})
	got := v.ApplyWeight(WeightB, UnsetOnly).String()
	if got != "'cat':1A,2B" {
		t.Fatalf("String = %q, want \"'cat':1A,2B\"", got)
	}
}

func TestRoundTrip(t *testing.T) {
	p := english(t)
	title := Build("Quick Fox", p).ApplyWeight(WeightA, AllPositions)
	combined := Concat(title, Build("the fox jumped over it's back", p))
	parsed, err := Parse(combined.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Equal(combined) {
		t.Fatalf("round trip changed the vector:\n in: %s\nout: %s", combined, parsed)
	}
}

func TestParseQuotingAndMerging(t *testing.T) {
	v, err := Parse("'it''s':3 cat:1 'cat':5b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "'cat':1,5B 'it''s':3"
	if got := v.String(); got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestParseClampsPositions(t *testing.T) {
	v, err := Parse("'cat':99999")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e, ok := v.Lookup("cat")
	if !ok || len(e.Positions) != 1 || e.Positions[0].Pos() != MaxPosition {
		t.Fatalf("entry = %+v", e)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"'cat':",
		"'cat",
		"''",
		"'cat':0",
		"'cat':1x2",
		"'cat':1,",
	}
	for _, in := range cases {
		if _, err := Parse(in); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Parse(%q) err = %v, want ErrInvalid", in, err)
		}
	}
}

func TestStrip(t *testing.T) {
	v := Build("fat cats and fat rats", english(t))
	s := v.Strip()
	if s.String() != "'cat' 'fat' 'rat'" {
		t.Fatalf("String = %q", s.String())
	}
	if s.DocLen() != 3 {
		t.Fatalf("DocLen = %d, want 3", s.DocLen())
	}
	parsed, err := Parse(s.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Equal(s) {
		t.Fatalf("stripped round trip changed the vector: %s vs %s", s, parsed)
	}
}

func TestPositionCapPerLexeme(t *testing.T) {
	ps := make([]Position, 0, 300)
	for i := 1; i <= 300; i++ {
		ps = append(ps, NewPosition(i, WeightD))
	}
	v := New([]Entry{{Lexeme: "cat", Positions: ps}})
	e, _ := v.Lookup("cat")
	if len(e.Positions) != MaxPositionsPerLexeme {
		t.Fatalf("positions = %d, want %d", len(e.Positions), MaxPositionsPerLexeme)
	}
	if e.Positions[len(e.Positions)-1].Pos() != MaxPositionsPerLexeme {
		t.Fatalf("kept the wrong occurrences, last = %d", e.Positions[len(e.Positions)-1].Pos())
	}
}

func TestDuplicatePositionsDiscarded(t *testing.T) {
	v := New([]Entry{{Lexeme: "cat", Positions: []Position{
		NewPosition(3, WeightA),
		NewPosition(3, WeightD),
		NewPosition(5, WeightD),
	}}})
	e, _ := v.Lookup("cat")
	if len(e.Positions) != 2 {
		t.Fatalf("positions = %v", e.Positions)
	}
	if e.Positions[0].Weight() != WeightA {
		t.Fatalf("first occurrence weight = %v, want A", e.Positions[0].Weight())
	}
}

func TestLookupAndPrefixRange(t *testing.T) {
	v := New([]Entry{
		{Lexeme: "avocado", Positions: []Position{NewPosition(1, WeightD)}},
		{Lexeme: "banana", Positions: []Position{NewPosition(2, WeightD)}},
		{Lexeme: "bandana", Positions: []Position{NewPosition(3, WeightD)}},
		{Lexeme: "cherry", Positions: []Position{NewPosition(4, WeightD)}},
	})
	if _, ok := v.Lookup("banana"); !ok {
		t.Fatal("Lookup missed banana")
	}
	if _, ok := v.Lookup("mango"); ok {
		t.Fatal("Lookup found mango")
	}
	run := v.PrefixRange("ban")
	if len(run) != 2 || run[0].Lexeme != "banana" || run[1].Lexeme != "bandana" {
		t.Fatalf("PrefixRange(ban) = %+v", run)
	}
	if len(v.PrefixRange("")) != 4 {
		t.Fatal("empty prefix must cover everything")
	}
}

func TestTruncateToBudgetDropsLowWeightFirst(t *testing.T) {
	// Two weight classes, enough entries to blow the byte budget. The
	// default-class occurrences must be sacrificed before any A-class
	// occurrence is touched.
	const perClass = 40000
	entries := make([]Entry, 0, 2*perClass)
	for i := 0; i < perClass; i++ {
		entries = append(entries, Entry{
			Lexeme:    fmt.Sprintf("high%06d", i),
			Positions: []Position{NewPosition(i%MaxPosition+1, WeightA)},
		})
		entries = append(entries, Entry{
			Lexeme:    fmt.Sprintf("low%06d", i),
			Positions: []Position{NewPosition(i%MaxPosition+1, WeightD)},
		})
	}
	v := New(entries)
	if len(v.String()) > MaxBytes {
		t.Fatalf("serialized size %d exceeds the budget", len(v.String()))
	}
	high, low := 0, 0
	for _, e := range v.Entries() {
		if strings.HasPrefix(e.Lexeme, "high") {
			high++
		} else {
			low++
		}
	}
	if high != perClass {
		t.Fatalf("lost %d A-class entries", perClass-high)
	}
	if low == perClass {
		t.Fatal("no default-class entry was dropped")
	}
}

func TestConcatWithEmpty(t *testing.T) {
	v := Build("fat cat", english(t))
	if !Concat(Vector{}, v).Equal(v) {
		t.Fatal("Concat(empty, v) != v")
	}
	if !Concat(v, Vector{}).Equal(v) {
		t.Fatal("Concat(v, empty) != v")
	}
}

func TestStatTop(t *testing.T) {
	p := english(t)
	s := NewStat()
	s.Add(Build("fat cat fat", p))
	s.Add(Build("fat dog", p))
	top := s.Top(2)
	if len(top) != 2 || top[0].Lexeme != "fat" {
		t.Fatalf("Top = %+v", top)
	}
	if top[0].Docs != 2 || top[0].Occurrences != 3 {
		t.Fatalf("fat stat = %+v", top[0])
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
}
