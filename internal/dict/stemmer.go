package dict

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball"
)

// Stemmer reduces inflected forms to a common stem using the Snowball
// algorithm for its configured language. It recognises every token, so
// it terminates any chain it appears in.
type Stemmer struct {
	name     string
	language string
}

// NewStemmer validates the language against the Snowball implementation
// by stemming a probe word; unsupported languages fail at load time.
func NewStemmer(name, language string) (*Stemmer, error) {
	if language == "" {
		language = "english"
	}
	language = strings.ToLower(language)
	if _, err := snowball.Stem("probe", language, false); err != nil {
		return nil, fmt.Errorf("stemmer %s: unsupported language %q: %w", name, language, err)
	}
	return &Stemmer{name: name, language: language}, nil
}

func (d *Stemmer) Name() string { return d.name }
func (d *Stemmer) Kind() Kind   { return KindStemmer }

// Language reports the configured Snowball language.
func (d *Stemmer) Language() string { return d.language }

func (d *Stemmer) Lookup(token string) ([]string, bool) {
	stemmed, err := snowball.Stem(token, d.language, false)
	if err != nil || stemmed == "" {
		// The language was validated at construction; failures here are
		// odd inputs the stemmer cannot handle. Fall back to folding.
		return []string{strings.ToLower(token)}, true
	}
	return []string{stemmed}, true
}
