package token

import (
	"strings"
	"testing"
)

// flatten renders a token stream as class:text pairs, dropping blanks,
// which keeps the expectation tables readable.
func flatten(tokens []Token) []string {
	var out []string
	for _, t := range tokens {
		if t.Class == Blank {
			continue
		}
		out = append(out, t.Class.String()+":"+t.Text)
	}
	return out
}

func TestScannerClassification(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "plain words",
			in:   "The quick brown fox",
			want: []string{"word:The", "word:quick", "word:brown", "word:fox"},
		},
		{
			name: "hyphenated compound emits whole then parts",
			in:   "five-star hotel",
			want: []string{
				"hyphenated:five-star", "hword_part:five", "hword_part:star",
				"word:hotel",
			},
		},
		{
			name: "numeric hyphen part",
			in:   "x-10",
			want: []string{"hyphenated:x-10", "hword_part:x", "hword_numpart:10"},
		},
		{
			name: "digit-initial hyphen splits",
			in:   "10-year",
			want: []string{"int:10", "word:year"},
		},
		{
			name: "number shapes",
			in:   "42 3.14 6.02e23 6.02e+23 1.2.3",
			want: []string{
				"int:42", "float:3.14", "scientific:6.02e23",
				"scientific:6.02e+23", "version:1.2.3",
			},
		},
		{
			name: "email and host",
			in:   "support@example.com or www.postgres.org",
			want: []string{
				"email:support@example.com", "word:or", "host:www.postgres.org",
			},
		},
		{
			name: "url swallows to blank",
			in:   "see https://example.com/docs?q=1 now",
			want: []string{"word:see", "url:https://example.com/docs?q=1", "word:now"},
		},
		{
			name: "absolute path",
			in:   "/usr/local/share data",
			want: []string{"path:/usr/local/share", "word:data"},
		},
		{
			name: "tags and entities",
			in:   "a <b>bold</b> &amp; more",
			want: []string{
				"word:a", "tag:<b>", "word:bold", "tag:</b>",
				"entity:&amp;", "word:more",
			},
		},
		{
			name: "underscore splits words",
			in:   "foo_bar",
			want: []string{"word:foo", "word:bar"},
		},
		{
			name: "number glued to letters",
			in:   "3.14abc",
			want: []string{"float:3.14", "word:abc"},
		},
		{
			name: "mixed alnum words",
			in:   "win32 3com",
			want: []string{"numword:win32", "numword:3com"},
		},
		{
			name: "apostrophe splits",
			in:   "don't",
			want: []string{"word:don", "word:t"},
		},
		{
			name: "unclosed angle bracket is blank",
			in:   "1 < 2",
			want: []string{"int:1", "int:2"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := flatten(NewScanner(tc.in).All())
			if len(got) != len(tc.want) {
				t.Fatalf("tokens = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("token %d = %q, want %q (full: %v)", i, got[i], tc.want[i], got)
				}
			}
		})
	}
}

func TestScannerBlanksReconstructInput(t *testing.T) {
	in := "a <b>fat</b> cat, 2 dogs -- and /tmp/x"
	var b strings.Builder
	for _, tok := range NewScanner(in).All() {
		// Hyphenated parts repeat spans already covered by the whole.
		if tok.Class == HyphenatedPart || tok.Class == HyphenatedNumPart {
			continue
		}
		b.WriteString(tok.Text)
	}
	if b.String() != in {
		t.Fatalf("reconstructed %q, want %q", b.String(), in)
	}
}

func TestScannerOffsets(t *testing.T) {
	s := NewScanner("a <b>x</b>")
	for _, tok := range s.All() {
		if s.Source()[tok.Off:tok.Off+len(tok.Text)] != tok.Text {
			t.Fatalf("offset %d does not cover %q", tok.Off, tok.Text)
		}
	}
}

func TestScannerNFCNormalisation(t *testing.T) {
	// "cafe" + combining acute accent must normalise to the composed form.
	got := flatten(NewScanner("café time").All())
	want := []string{"word:café", "word:time"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
}

func TestScannerExtraAlphabet(t *testing.T) {
	got := flatten(NewScannerExtra("foo_bar", "_").All())
	if len(got) != 1 || got[0] != "word:foo_bar" {
		t.Fatalf("tokens = %v, want [word:foo_bar]", got)
	}
}

func TestParseClassRoundTrip(t *testing.T) {
	for _, c := range Classes() {
		parsed, ok := ParseClass(c.String())
		if !ok || parsed != c {
			t.Fatalf("ParseClass(%q) = %v, %v", c.String(), parsed, ok)
		}
	}
	if _, ok := ParseClass("nope"); ok {
		t.Fatal("ParseClass accepted an unknown name")
	}
}
