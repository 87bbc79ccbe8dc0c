package dict

import (
	"errors"
	"testing"

	"github.com/arktext/textsearch/pkg/config"
)

func TestSimpleFoldsCase(t *testing.T) {
	d := NewSimple("simple")
	out, ok := d.Lookup("HeLLo")
	if !ok || len(out) != 1 || out[0] != "hello" {
		t.Fatalf("Lookup = %v, %v", out, ok)
	}
}

func TestStopwordRecognisesListedWordsOnly(t *testing.T) {
	d := NewStopword("stop", []string{"The", "And"})
	if out, ok := d.Lookup("the"); !ok || out != nil {
		t.Fatalf("stopword lookup = %v, %v, want nil, true", out, ok)
	}
	if _, ok := d.Lookup("cat"); ok {
		t.Fatal("stopword recognised an unlisted word")
	}
}

func TestStopwordDefaultsToEnglish(t *testing.T) {
	d := NewStopword("stop", nil)
	if d.Len() == 0 {
		t.Fatal("built-in stoplist is empty")
	}
	if _, ok := d.Lookup("the"); !ok {
		t.Fatal("built-in stoplist misses \"the\"")
	}
}

func TestStemmerReducesInflections(t *testing.T) {
	d, err := NewStemmer("stem", "english")
	if err != nil {
		t.Fatalf("NewStemmer: %v", err)
	}
	cases := map[string]string{
		"jumped":  "jump",
		"running": "run",
		"Foxes":   "fox",
		"lazy":    "lazi",
		"cats":    "cat",
		"bone":    "bone",
	}
	for in, want := range cases {
		out, ok := d.Lookup(in)
		if !ok || len(out) != 1 || out[0] != want {
			t.Fatalf("stem(%q) = %v, %v, want [%s]", in, out, ok, want)
		}
	}
}

func TestStemmerRejectsUnknownLanguage(t *testing.T) {
	if _, err := NewStemmer("stem", "klingon"); err == nil {
		t.Fatal("expected an error for an unsupported language")
	}
}

func TestSynonymExpands(t *testing.T) {
	d := NewSynonym("syn", map[string][]string{"NYC": {"new", "york"}})
	out, ok := d.Lookup("nyc")
	if !ok || len(out) != 2 || out[0] != "new" || out[1] != "york" {
		t.Fatalf("Lookup = %v, %v", out, ok)
	}
	if _, ok := d.Lookup("chicago"); ok {
		t.Fatal("synonym recognised a word without an entry")
	}
}

func TestThesaurusLongestMatchWins(t *testing.T) {
	d := NewThesaurus("ths", map[string][]string{
		"new york":      {"nyc"},
		"new york city": {"nyc"},
	}, false)
	if d.MaxPhraseLen() != 3 {
		t.Fatalf("MaxPhraseLen = %d, want 3", d.MaxPhraseLen())
	}
	lex, n, ok := d.LookupPhrase([]string{"New", "York", "City", "blues"})
	if !ok || n != 3 || len(lex) != 1 || lex[0] != "nyc" {
		t.Fatalf("LookupPhrase = %v, %d, %v", lex, n, ok)
	}
	lex, n, ok = d.LookupPhrase([]string{"new", "york", "times"})
	if !ok || n != 2 || lex[0] != "nyc" {
		t.Fatalf("LookupPhrase = %v, %d, %v", lex, n, ok)
	}
}

func TestThesaurusKeepOriginal(t *testing.T) {
	d := NewThesaurus("ths", map[string][]string{"new york": {"nyc"}}, true)
	lex, n, ok := d.LookupPhrase([]string{"new", "york"})
	if !ok || n != 2 {
		t.Fatalf("LookupPhrase = %v, %d, %v", lex, n, ok)
	}
	want := []string{"nyc", "new", "york"}
	if len(lex) != len(want) {
		t.Fatalf("lexemes = %v, want %v", lex, want)
	}
	for i := range want {
		if lex[i] != want[i] {
			t.Fatalf("lexemes = %v, want %v", lex, want)
		}
	}
}

func TestBuildDictionaryUnknownKind(t *testing.T) {
	_, err := buildDictionary("weird", config.DictionaryConfig{Kind: "banana"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}
