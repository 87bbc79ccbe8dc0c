package query

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/vector"
)

func english(t *testing.T) *dict.Pipeline {
	t.Helper()
	p, err := dict.NewEnglish(nil)
	if err != nil {
		t.Fatalf("NewEnglish: %v", err)
	}
	return p
}

func mustCompile(t *testing.T, s string) *Node {
	t.Helper()
	tree, err := Compile(s, english(t))
	if err != nil {
		t.Fatalf("Compile(%q): %v", s, err)
	}
	return tree
}

func TestCompileBooleanOperators(t *testing.T) {
	got := mustCompile(t, "fat & (rat | cat)")
	want := And(Lexeme("fat"), Or(Lexeme("rat"), Lexeme("cat")))
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}
	if s := got.String(); s != "'fat' & ('rat' | 'cat')" {
		t.Fatalf("String() = %q", s)
	}
}

func TestCompileNormalizesLiterals(t *testing.T) {
	got := mustCompile(t, "Jumped & !Running")
	want := And(Lexeme("jump"), Not(Lexeme("run")))
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}
}

func TestCompileQuotedLiteralBecomesPhrase(t *testing.T) {
	got := mustCompile(t, "'fat cat'")
	want := PhraseJoin(Lexeme("fat"), Lexeme("cat"), 1)
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}

	// An elided stopword widens the distance instead of tightening it.
	got = mustCompile(t, "'fat the cat'")
	want = PhraseJoin(Lexeme("fat"), Lexeme("cat"), 2)
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}
}

func TestCompileStopwordPhraseOperandCollapses(t *testing.T) {
	got := mustCompile(t, "fat <-> the <-> cat")
	want := PhraseJoin(Lexeme("fat"), Lexeme("cat"), 2)
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}

	// A vanished leading operand leaves the survivor on its own.
	got = mustCompile(t, "the <-> cat")
	if !Equal(got, Lexeme("cat")) {
		t.Fatalf("Compile = %s, want 'cat'", got)
	}
}

func TestCompilePhraseDistances(t *testing.T) {
	got := mustCompile(t, "fat <3> cat")
	want := PhraseJoin(Lexeme("fat"), Lexeme("cat"), 3)
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}

	got = mustCompile(t, "fat <*> cat")
	want = PhraseJoin(Lexeme("fat"), Lexeme("cat"), AnyDistance)
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}
}

func TestCompilePrefixAndWeightSuffixes(t *testing.T) {
	got := mustCompile(t, "super:* & cat:AB & dog:c")
	want := And(
		And(
			Leaf("super", true, 0),
			Leaf("cat", false, vector.MaskOf(vector.WeightA, vector.WeightB)),
		),
		Leaf("dog", false, vector.MaskOf(vector.WeightC)),
	)
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}
}

func TestCompileRestrictionsDistributeOverExpansion(t *testing.T) {
	got := mustCompile(t, "five-star:A")
	mask := vector.MaskOf(vector.WeightA)
	want := PhraseJoin(
		PhraseJoin(Leaf("five-star", false, mask), Leaf("five", false, mask), 1),
		Leaf("star", false, mask), 1,
	)
	if !Equal(got, want) {
		t.Fatalf("Compile = %s, want %s", got, want)
	}
}

func TestCompileMalformed(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"only stopwords", "the & a"},
		{"dangling operator", "cat &"},
		{"leading operator", "& cat"},
		{"double operator", "cat | | dog"},
		{"unclosed group", "(cat"},
		{"stray close", "cat)"},
		{"adjacent literals", "fat cat"},
		{"zero distance", "cat <0> dog"},
		{"empty distance", "cat <> dog"},
		{"huge distance", "cat <20000> dog"},
		{"empty literal", "''"},
		{"unterminated quote", "'cat"},
		{"bare suffix colon", "cat:"},
		{"bad suffix letter", "cat:x"},
	}
	p := english(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := Compile(tc.input, p)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Compile(%q) = (%v, %v), want ErrMalformed", tc.input, tree, err)
			}
		})
	}
}

func TestCompileTooManyNodes(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20000; i++ {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString("x")
		b.WriteString(strconv.Itoa(i))
	}
	_, err := Compile(b.String(), english(t))
	if !errors.Is(err, ErrTooManyNodes) {
		t.Fatalf("Compile(huge) err = %v, want ErrTooManyNodes", err)
	}
}

func TestCompileRoundTrip(t *testing.T) {
	inputs := []string{
		"('fat' | 'rat') & !'cat'",
		"'fat' <-> 'cat' <2> 'dog'",
		"'supernova' <*> 'star'",
		"'cat':*AB & 'dog':C",
		"!('cat' & ('dog' | 'rat'))",
	}
	p := english(t)
	for _, in := range inputs {
		tree, err := Compile(in, p)
		if err != nil {
			t.Fatalf("Compile(%q): %v", in, err)
		}
		out := tree.String()
		back, err := Compile(out, p)
		if err != nil {
			t.Fatalf("Compile(String() = %q): %v", out, err)
		}
		if !Equal(tree, back) {
			t.Fatalf("round trip of %q changed the tree: %s vs %s", in, tree, back)
		}
	}
}

func TestCompilePlain(t *testing.T) {
	p := english(t)
	got := CompilePlain("The Fat Rats jumped", p)
	want := And(And(Lexeme("fat"), Lexeme("rat")), Lexeme("jump"))
	if !Equal(got, want) {
		t.Fatalf("CompilePlain = %s, want %s", got, want)
	}

	// Operator characters are just separators here.
	got = CompilePlain("fat & (rat", p)
	if !Equal(got, And(Lexeme("fat"), Lexeme("rat"))) {
		t.Fatalf("CompilePlain = %s, want 'fat' & 'rat'", got)
	}

	if got := CompilePlain("the a on", p); got != nil {
		t.Fatalf("CompilePlain(stopwords) = %s, want nil", got)
	}
	if got := CompilePlain("", p); got != nil {
		t.Fatalf("CompilePlain(\"\") = %s, want nil", got)
	}
}

func TestCompilePhraseMode(t *testing.T) {
	p := english(t)
	got := CompilePhrase("The Fat Rats", p)
	want := PhraseJoin(Lexeme("fat"), Lexeme("rat"), 1)
	if !Equal(got, want) {
		t.Fatalf("CompilePhrase = %s, want %s", got, want)
	}

	got = CompilePhrase("fat of the city", p)
	want = PhraseJoin(Lexeme("fat"), Lexeme("citi"), 3)
	if !Equal(got, want) {
		t.Fatalf("CompilePhrase = %s, want %s", got, want)
	}

	if got := CompilePhrase("", p); got != nil {
		t.Fatalf("CompilePhrase(\"\") = %s, want nil", got)
	}
}

func TestCompileWeb(t *testing.T) {
	p := english(t)
	cases := []struct {
		name  string
		input string
		want  *Node
	}{
		{
			"quoted phrase with negation",
			`"supernova stars" -crab`,
			And(PhraseJoin(Lexeme("supernova"), Lexeme("star"), 1), Not(Lexeme("crab"))),
		},
		{
			"or keyword",
			"cat or dog",
			Or(Lexeme("cat"), Lexeme("dog")),
		},
		{
			"and keyword ignored",
			"fish and chips or burger",
			Or(And(Lexeme("fish"), Lexeme("chip")), Lexeme("burger")),
		},
		{
			"negated phrase",
			`cats -"dog park"`,
			And(Lexeme("cat"), Not(PhraseJoin(Lexeme("dog"), Lexeme("park"), 1))),
		},
		{
			"parens are blanks",
			"(cat) dog",
			And(Lexeme("cat"), Lexeme("dog")),
		},
		{
			"stopwords in quotes widen distance",
			`"fat the cat"`,
			PhraseJoin(Lexeme("fat"), Lexeme("cat"), 2),
		},
		{
			"unterminated quote",
			`"fat cat`,
			PhraseJoin(Lexeme("fat"), Lexeme("cat"), 1),
		},
		{
			"leading or keyword",
			"or cat",
			Lexeme("cat"),
		},
		{
			"bare negation",
			"-cat",
			Not(Lexeme("cat")),
		},
		{
			"only stopwords",
			"the of",
			nil,
		},
		{
			"empty",
			"",
			nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CompileWeb(tc.input, p)
			if !Equal(got, tc.want) {
				t.Fatalf("CompileWeb(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestCompileWebNeverErrs(t *testing.T) {
	p := english(t)
	// Inputs that strict mode rejects all produce some tree or nil.
	for _, in := range []string{"cat &", "& cat", "((((", "'cat", "cat <0> dog", ")(\"-"} {
		got := CompileWeb(in, p)
		if NodeCount(got) > MaxNodes {
			t.Fatalf("CompileWeb(%q) produced oversize tree", in)
		}
	}
}

func TestPermissiveModesTruncate(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20000; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("x")
		b.WriteString(strconv.Itoa(i))
	}
	p := english(t)
	text := b.String()

	plain := CompilePlain(text, p)
	if got := NodeCount(plain); got == 0 || got > MaxNodes {
		t.Fatalf("CompilePlain node count = %d, want within (0, %d]", got, MaxNodes)
	}
	phrase := CompilePhrase(text, p)
	if got := NodeCount(phrase); got == 0 || got > MaxNodes {
		t.Fatalf("CompilePhrase node count = %d, want within (0, %d]", got, MaxNodes)
	}
	web := CompileWeb(text, p)
	if got := NodeCount(web); got == 0 || got > MaxNodes {
		t.Fatalf("CompileWeb node count = %d, want within (0, %d]", got, MaxNodes)
	}
}
