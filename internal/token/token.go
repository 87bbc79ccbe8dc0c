// Package token turns raw text into a stream of classified tokens.
//
// The scanner makes a single forward pass over NFC-normalised input and
// recognises words, numbers, hyphenated compounds, hosts, emails, URLs,
// file paths, markup tags and entities. Runs of separator characters are
// reported as Blank tokens so downstream consumers (the headline
// generator in particular) can reconstruct the original text from the
// token stream. The scanner never lower-cases or otherwise rewrites
// token text; normalisation is the dictionary pipeline's job.
package token

// Class identifies the lexical shape of a token.
type Class uint8

const (
	Blank Class = iota
	Word
	NumWord
	Int
	Float
	Scientific
	Version
	Email
	Host
	URL
	Path
	Hyphenated
	HyphenatedPart
	HyphenatedNumPart
	Tag
	Entity
)

var classNames = [...]string{
	Blank:             "blank",
	Word:              "word",
	NumWord:           "numword",
	Int:               "int",
	Float:             "float",
	Scientific:        "scientific",
	Version:           "version",
	Email:             "email",
	Host:              "host",
	URL:               "url",
	Path:              "path",
	Hyphenated:        "hyphenated",
	HyphenatedPart:    "hword_part",
	HyphenatedNumPart: "hword_numpart",
	Tag:               "tag",
	Entity:            "entity",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// Classes lists every class the scanner can emit, in declaration order.
// Configuration loading uses it to validate dictionary mappings.
func Classes() []Class {
	out := make([]Class, 0, len(classNames))
	for c := range classNames {
		out = append(out, Class(c))
	}
	return out
}

// ParseClass resolves a class by its configuration name.
func ParseClass(name string) (Class, bool) {
	for c, n := range classNames {
		if n == name {
			return Class(c), true
		}
	}
	return Blank, false
}

// Token is a single classified span of the scanner's input.
type Token struct {
	Text  string
	Class Class
	// Off is the byte offset of the span in the normalised input.
	Off int
}
