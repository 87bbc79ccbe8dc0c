package dict

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/arktext/textsearch/pkg/config"
)

func english(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewEnglish(nil)
	if err != nil {
		t.Fatalf("NewEnglish: %v", err)
	}
	return p
}

// render writes an analysis as "text:pos" pairs for compact assertions.
func render(lexemes []Lexeme) string {
	parts := make([]string, len(lexemes))
	for i, lx := range lexemes {
		parts[i] = lx.Text + ":" + strconv.Itoa(lx.Pos)
	}
	return strings.Join(parts, " ")
}

func TestAnalyzeStopwordsConsumePositions(t *testing.T) {
	got := render(english(t).Analyze("a fat cat"))
	if got != "fat:2 cat:3" {
		t.Fatalf("Analyze = %q, want \"fat:2 cat:3\"", got)
	}
}

func TestAnalyzeHyphenatedWholeAndParts(t *testing.T) {
	got := render(english(t).Analyze("five-star"))
	if got != "five-star:1 five:2 star:3" {
		t.Fatalf("Analyze = %q", got)
	}
}

func TestAnalyzeStemsAndFolds(t *testing.T) {
	got := render(english(t).Analyze("Jumped Foxes eat 42 Bones"))
	if got != "jump:1 fox:2 eat:3 42:4 bone:5" {
		t.Fatalf("Analyze = %q", got)
	}
}

func TestAnalyzeTagsDiscardedButConsume(t *testing.T) {
	// Markup is unmapped: it contributes nothing yet still occupies a
	// position, so distances in the visible text stay intact.
	got := render(english(t).Analyze("cat <b> dog"))
	if got != "cat:1 dog:3" {
		t.Fatalf("Analyze = %q, want \"cat:1 dog:3\"", got)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	p := english(t)
	text := "The 2 Quick Brown-Foxes jumped over the lazy dog's bone"
	first := render(p.Analyze(text))
	for i := 0; i < 3; i++ {
		if got := render(p.Analyze(text)); got != first {
			t.Fatalf("run %d differs: %q vs %q", i, got, first)
		}
	}
}

func TestAnalyzeIdempotentWithoutStemmer(t *testing.T) {
	// A simple-only chain passes already-normalized lexemes through
	// unchanged, so re-analyzing its own output is a fixed point.
	p := customPipeline(t, config.PipelineConfig{
		Mappings:     map[string][]string{"word": {"simple"}},
		Dictionaries: map[string]config.DictionaryConfig{"simple": {Kind: "simple"}},
	})
	got := render(p.Analyze("fox jump bone"))
	if got != "fox:1 jump:2 bone:3" {
		t.Fatalf("Analyze = %q, want \"fox:1 jump:2 bone:3\"", got)
	}
}

func customPipeline(t *testing.T, pc config.PipelineConfig) *Pipeline {
	t.Helper()
	p, err := FromConfig("custom", pc, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	return p
}

func TestAnalyzeSynonymExpansionFoldsPositions(t *testing.T) {
	p := customPipeline(t, config.PipelineConfig{
		Mappings: map[string][]string{
			"word": {"syn", "simple"},
		},
		Dictionaries: map[string]config.DictionaryConfig{
			"syn":    {Kind: "synonym", Synonyms: map[string][]string{"nyc": {"new", "york"}}},
			"simple": {Kind: "simple"},
		},
	})
	got := render(p.Analyze("in nyc today"))
	if got != "in:1 new:2 york:3 today:4" {
		t.Fatalf("Analyze = %q", got)
	}
}

func TestAnalyzeThesaurusSubstitution(t *testing.T) {
	p := customPipeline(t, config.PipelineConfig{
		Mappings: map[string][]string{
			"word": {"ths", "simple"},
		},
		Dictionaries: map[string]config.DictionaryConfig{
			"ths":    {Kind: "thesaurus", Entries: map[string][]string{"new york": {"nyc"}}},
			"simple": {Kind: "simple"},
		},
	})
	got := render(p.Analyze("visit New York area"))
	if got != "visit:1 nyc:2 area:3" {
		t.Fatalf("Analyze = %q", got)
	}
}

func TestAnalyzeUnmappedClassConsumesPosition(t *testing.T) {
	p := customPipeline(t, config.PipelineConfig{
		Mappings: map[string][]string{
			"word": {"simple"},
		},
		Dictionaries: map[string]config.DictionaryConfig{
			"simple": {Kind: "simple"},
		},
	})
	got := render(p.Analyze("cat 42 dog"))
	if got != "cat:1 dog:3" {
		t.Fatalf("Analyze = %q, want \"cat:1 dog:3\"", got)
	}
}

func TestAnalyzeDropsOversizeLexemes(t *testing.T) {
	p := english(t)
	long := strings.Repeat("x", MaxLexemeBytes+10)
	got := p.Analyze("ok " + long + " fine")
	if len(got) != 2 {
		t.Fatalf("lexemes = %d, want 2", len(got))
	}
	if got[1].Pos != 3 {
		t.Fatalf("position after dropped lexeme = %d, want 3", got[1].Pos)
	}
	if p.Dropped() == 0 {
		t.Fatal("dropped counter not incremented")
	}
}

func TestFromConfigUnknownKind(t *testing.T) {
	_, err := FromConfig("bad", config.PipelineConfig{
		Dictionaries: map[string]config.DictionaryConfig{
			"d": {Kind: "mystery"},
		},
	}, nil)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestFromConfigUnknownClass(t *testing.T) {
	_, err := FromConfig("bad", config.PipelineConfig{
		Mappings: map[string][]string{"wordz": {"simple"}},
		Dictionaries: map[string]config.DictionaryConfig{
			"simple": {Kind: "simple"},
		},
	}, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown token class")
	}
}

func TestFromConfigUndefinedDictionary(t *testing.T) {
	_, err := FromConfig("bad", config.PipelineConfig{
		Mappings: map[string][]string{"word": {"ghost"}},
	}, nil)
	if err == nil {
		t.Fatal("expected an error for an undefined dictionary reference")
	}
}

func TestRegistryDefaults(t *testing.T) {
	r, err := NewRegistry(config.PipelineSet{}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Default() == nil || r.Default().Name() != "english" {
		t.Fatalf("default pipeline = %v", r.Default())
	}
	if p, ok := r.Get(""); !ok || p.Name() != "english" {
		t.Fatalf("Get(\"\") = %v, %v", p, ok)
	}
	if _, ok := r.Get("nope"); ok {
		t.Fatal("Get returned an unconfigured pipeline")
	}
}

func TestRegistryMissingDefault(t *testing.T) {
	_, err := NewRegistry(config.PipelineSet{
		Default: "german",
		Configs: map[string]config.PipelineConfig{"english": {}},
	}, nil)
	if err == nil {
		t.Fatal("expected an error for a missing default pipeline")
	}
}
