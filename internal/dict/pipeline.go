package dict

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/arktext/textsearch/internal/token"
	"github.com/arktext/textsearch/pkg/config"
)

// Lexeme is one normalised output of a pipeline: its text, the position
// assigned by the bookkeeping rules, and the byte span of the source
// token(s) it came from.
type Lexeme struct {
	Text string
	Pos  int
	Off  int
	End  int
}

// Mapping selects the dictionary chain that handles each token class.
// Classes without a chain are discarded (but still consume a position
// when non-blank, so phrase distances stay faithful to the text).
type Mapping map[token.Class][]Dictionary

// Pipeline is a named, immutable text-analysis configuration: a token
// class mapping plus the dictionaries it references. Safe for
// concurrent use.
type Pipeline struct {
	name         string
	extraLetters string
	mapping      Mapping
	dropped      atomic.Uint64
	logger       *slog.Logger
}

// Name reports the configuration name the pipeline was built from.
func (p *Pipeline) Name() string { return p.name }

// Dropped reports how many oversize lexemes this pipeline has discarded
// since construction.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Analyze tokenizes text and walks every token through its chain,
// producing the ordered lexeme stream with positions assigned.
//
// Position bookkeeping: every non-blank token consumes one position,
// including tokens a dictionary maps to nothing (stopwords leave gaps).
// A token expanding to N lexemes occupies positions p..p+N-1 and the
// counter continues from there. A phrase match consuming K tokens and
// producing M lexemes advances the counter by M.
func (p *Pipeline) Analyze(text string) []Lexeme {
	sc := token.NewScannerExtra(text, p.extraLetters)
	var (
		out    []Lexeme
		window []token.Token
		pos    int
	)
	refill := func(n int) {
		for len(window) < n {
			t, ok := sc.Next()
			if !ok {
				return
			}
			if t.Class == token.Blank {
				continue
			}
			window = append(window, t)
		}
	}
	for {
		refill(1)
		if len(window) == 0 {
			return out
		}
		tok := window[0]
		pos++
		tokPos := pos

		chain, mapped := p.mapping[tok.Class]
		if !mapped {
			window = window[1:]
			continue
		}

		consumed := 1
		var lexemes []string
		recognized := false
		for _, d := range chain {
			if pd, isPhrase := d.(PhraseDictionary); isPhrase && pd.MaxPhraseLen() > 1 {
				refill(pd.MaxPhraseLen())
				texts := make([]string, len(window))
				for i, w := range window {
					texts[i] = w.Text
				}
				if lex, n, ok := pd.LookupPhrase(texts); ok {
					lexemes, consumed, recognized = lex, n, true
					break
				}
				continue
			}
			if lex, ok := d.Lookup(tok.Text); ok {
				lexemes, recognized = lex, true
				break
			}
		}
		if !recognized {
			lexemes = []string{strings.ToLower(tok.Text)}
		}

		end := tok.Off + len(tok.Text)
		if consumed > 1 {
			last := window[consumed-1]
			end = last.Off + len(last.Text)
		}
		emitted := 0
		for _, lx := range lexemes {
			if lx == "" {
				continue
			}
			if len(lx) > MaxLexemeBytes {
				p.dropped.Add(1)
				p.logger.Debug("dropping oversize lexeme",
					"pipeline", p.name, "bytes", len(lx))
				continue
			}
			out = append(out, Lexeme{Text: lx, Pos: tokPos + emitted, Off: tok.Off, End: end})
			emitted++
		}
		if emitted > 1 {
			pos = tokPos + emitted - 1
		}
		window = window[consumed:]
	}
}

// FromConfig builds a pipeline from one named configuration block.
// Unknown dictionary kinds, unknown token classes, and references to
// undefined dictionaries all fail here rather than at analysis time.
func FromConfig(name string, cfg config.PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		name:         name,
		extraLetters: cfg.ExtraLetters,
		logger:       logger.With("component", "pipeline"),
	}

	dicts := make(map[string]Dictionary, len(cfg.Dictionaries))
	for dname, dc := range cfg.Dictionaries {
		d, err := buildDictionary(dname, dc)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", name, err)
		}
		dicts[dname] = d
	}

	if len(cfg.Mappings) == 0 {
		m, err := defaultMapping()
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", name, err)
		}
		p.mapping = m
		return p, nil
	}

	p.mapping = make(Mapping, len(cfg.Mappings))
	for className, chainNames := range cfg.Mappings {
		class, ok := token.ParseClass(className)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: unknown token class %q", name, className)
		}
		chain := make([]Dictionary, 0, len(chainNames))
		for _, dname := range chainNames {
			d, ok := dicts[dname]
			if !ok {
				return nil, fmt.Errorf("pipeline %s: class %s references undefined dictionary %q",
					name, className, dname)
			}
			chain = append(chain, d)
		}
		p.mapping[class] = chain
	}
	return p, nil
}

// NewEnglish builds the built-in english pipeline: stopword elimination
// plus Snowball stemming for word classes, case folding for the rest.
func NewEnglish(logger *slog.Logger) (*Pipeline, error) {
	return FromConfig("english", config.PipelineConfig{}, logger)
}

func buildDictionary(name string, dc config.DictionaryConfig) (Dictionary, error) {
	switch Kind(dc.Kind) {
	case KindSimple:
		return NewSimple(name), nil
	case KindStopword:
		words := append([]string(nil), dc.Stopwords...)
		if dc.StopwordsFile != "" {
			fromFile, err := loadWordFile(dc.StopwordsFile)
			if err != nil {
				return nil, fmt.Errorf("dictionary %s: %w", name, err)
			}
			words = append(words, fromFile...)
		}
		return NewStopword(name, words), nil
	case KindStemmer:
		return NewStemmer(name, dc.Language)
	case KindSynonym:
		return NewSynonym(name, dc.Synonyms), nil
	case KindThesaurus:
		return NewThesaurus(name, dc.Entries, dc.KeepOriginal), nil
	default:
		return nil, fmt.Errorf("%w: %q (dictionary %s)", ErrUnknownKind, dc.Kind, name)
	}
}

// defaultMapping wires the built-in english chains: word-like classes go
// through stopword elimination and stemming, exact-form classes (hosts,
// numbers, paths) are case-folded only, markup is discarded.
func defaultMapping() (Mapping, error) {
	stop := NewStopword("english_stop", nil)
	stem, err := NewStemmer("english_stem", "english")
	if err != nil {
		return nil, err
	}
	simple := NewSimple("simple")

	wordChain := []Dictionary{stop, stem}
	simpleChain := []Dictionary{simple}
	return Mapping{
		token.Word:              wordChain,
		token.Hyphenated:        wordChain,
		token.HyphenatedPart:    wordChain,
		token.NumWord:           simpleChain,
		token.HyphenatedNumPart: simpleChain,
		token.Int:               simpleChain,
		token.Float:             simpleChain,
		token.Scientific:        simpleChain,
		token.Version:           simpleChain,
		token.Email:             simpleChain,
		token.Host:              simpleChain,
		token.URL:               simpleChain,
		token.Path:              simpleChain,
	}, nil
}

func loadWordFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stopword file: %w", err)
	}
	var words []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, nil
}

// Registry holds every configured pipeline by name and designates one
// as the default.
type Registry struct {
	def       string
	pipelines map[string]*Pipeline
}

// NewRegistry builds all configured pipelines. An empty configuration
// yields a registry with just the built-in english pipeline.
func NewRegistry(set config.PipelineSet, logger *slog.Logger) (*Registry, error) {
	configs := set.Configs
	if len(configs) == 0 {
		configs = map[string]config.PipelineConfig{"english": {}}
	}
	r := &Registry{pipelines: make(map[string]*Pipeline, len(configs))}
	for name, pc := range configs {
		p, err := FromConfig(name, pc, logger)
		if err != nil {
			return nil, err
		}
		r.pipelines[name] = p
	}
	r.def = set.Default
	if r.def == "" {
		r.def = "english"
	}
	if _, ok := r.pipelines[r.def]; !ok {
		return nil, fmt.Errorf("default pipeline %q is not configured", r.def)
	}
	return r, nil
}

// Get resolves a pipeline by name; the empty string selects the default.
func (r *Registry) Get(name string) (*Pipeline, bool) {
	if name == "" {
		name = r.def
	}
	p, ok := r.pipelines[name]
	return p, ok
}

// Default returns the default pipeline.
func (r *Registry) Default() *Pipeline { return r.pipelines[r.def] }

// Names lists the configured pipelines in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.pipelines))
	for n := range r.pipelines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
