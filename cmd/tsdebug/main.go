// Command tsdebug inspects each stage of the text-search pipeline from
// the shell: tokenization, analysis, vectors, compiled queries,
// matching, ranking, and headlines.
//
// Usage:
//
//	tsdebug tokens  [flags] <text>
//	tsdebug lexemes [flags] <text>
//	tsdebug vector  [flags] <text>
//	tsdebug query   [flags] <query>
//	tsdebug match   [flags] <query> <text>
//	tsdebug rank    [flags] <query> <text>
//	tsdebug headline [flags] <query> <text>
//
// Text arguments may be omitted to read from stdin. The -config flag
// loads pipeline configurations from a YAML file; without it the
// built-in english pipeline is used.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/match"
	"github.com/arktext/textsearch/internal/query"
	"github.com/arktext/textsearch/internal/rank"
	"github.com/arktext/textsearch/internal/token"
	"github.com/arktext/textsearch/internal/vector"
	"github.com/arktext/textsearch/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "tokens":
		err = cmdTokens(os.Args[2:])
	case "lexemes":
		err = cmdLexemes(os.Args[2:])
	case "vector":
		err = cmdVector(os.Args[2:])
	case "query":
		err = cmdQuery(os.Args[2:])
	case "match":
		err = cmdMatch(os.Args[2:])
	case "rank":
		err = cmdRank(os.Args[2:])
	case "headline":
		err = cmdHeadline(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "tsdebug: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tsdebug: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tsdebug <command> [flags] [args]

commands:
  tokens    classify raw text into tokens
  lexemes   run text through the analysis pipeline
  vector    build a document vector from text
  query     compile a query and print its tree
  match     test whether text matches a query
  rank      score text against a query
  headline  generate a highlighted fragment

run 'tsdebug <command> -h' for command flags`)
}

// pipelineFlags adds the flags shared by every analyzing command.
func pipelineFlags(fs *flag.FlagSet) (configPath, pipelineName *string) {
	configPath = fs.String("config", "", "YAML config file with pipeline definitions")
	pipelineName = fs.String("pipeline", "", "pipeline name (default: the configured default)")
	return
}

func loadPipeline(configPath, name string) (*dict.Pipeline, error) {
	var set config.PipelineSet
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		set = cfg.Pipeline
	}
	registry, err := dict.NewRegistry(set, nil)
	if err != nil {
		return nil, err
	}
	p, ok := registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q (have %s)", name, strings.Join(registry.Names(), ", "))
	}
	return p, nil
}

// textArg joins the positional arguments, or reads stdin if none.
func textArg(fs *flag.FlagSet, from int) (string, error) {
	if fs.NArg() > from {
		return strings.Join(fs.Args()[from:], " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func requireArg(fs *flag.FlagSet, idx int, name string) (string, error) {
	if fs.NArg() <= idx {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return fs.Arg(idx), nil
}

func cmdTokens(args []string) error {
	fs := flag.NewFlagSet("tokens", flag.ExitOnError)
	extra := fs.String("extra", "", "extra characters to treat as letters")
	blanks := fs.Bool("blanks", false, "include blank tokens")
	fs.Parse(args)

	text, err := textArg(fs, 0)
	if err != nil {
		return err
	}

	sc := token.NewScannerExtra(text, *extra)
	for _, t := range sc.All() {
		if t.Class == token.Blank && !*blanks {
			continue
		}
		fmt.Printf("%4d  %-14s %q\n", t.Off, t.Class, t.Text)
	}
	return nil
}

func cmdLexemes(args []string) error {
	fs := flag.NewFlagSet("lexemes", flag.ExitOnError)
	configPath, pipelineName := pipelineFlags(fs)
	fs.Parse(args)

	p, err := loadPipeline(*configPath, *pipelineName)
	if err != nil {
		return err
	}
	text, err := textArg(fs, 0)
	if err != nil {
		return err
	}

	for _, lx := range p.Analyze(text) {
		fmt.Printf("%4d  %-24q [%d:%d]\n", lx.Pos, lx.Text, lx.Off, lx.End)
	}
	return nil
}

func cmdVector(args []string) error {
	fs := flag.NewFlagSet("vector", flag.ExitOnError)
	configPath, pipelineName := pipelineFlags(fs)
	weight := fs.String("weight", "", "apply a weight class (A, B, C or D) to all positions")
	stats := fs.Bool("stats", false, "print lexeme and position counts")
	fs.Parse(args)

	p, err := loadPipeline(*configPath, *pipelineName)
	if err != nil {
		return err
	}
	text, err := textArg(fs, 0)
	if err != nil {
		return err
	}

	v := vector.Build(text, p)
	if *weight != "" {
		w, ok := vector.ParseWeight((*weight)[0])
		if !ok || len(*weight) != 1 {
			return fmt.Errorf("invalid weight %q", *weight)
		}
		v = v.ApplyWeight(w, vector.AllPositions)
	}

	fmt.Println(v.String())
	if *stats {
		fmt.Printf("lexemes=%d doc_len=%d max_pos=%d\n", v.Len(), v.DocLen(), v.MaxPos())
	}
	return nil
}

func compileFlag(fs *flag.FlagSet) *string {
	return fs.String("mode", "tsquery", "query mode: tsquery, plain, phrase or web")
}

func compile(mode, q string, p *dict.Pipeline) (*query.Node, error) {
	switch mode {
	case "tsquery":
		return query.Compile(q, p)
	case "plain":
		return query.CompilePlain(q, p), nil
	case "phrase":
		return query.CompilePhrase(q, p), nil
	case "web":
		return query.CompileWeb(q, p), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

func cmdQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath, pipelineName := pipelineFlags(fs)
	mode := compileFlag(fs)
	fs.Parse(args)

	p, err := loadPipeline(*configPath, *pipelineName)
	if err != nil {
		return err
	}
	q, err := textArg(fs, 0)
	if err != nil {
		return err
	}

	tree, err := compile(*mode, q, p)
	if err != nil {
		return err
	}
	if tree == nil {
		fmt.Println("(matches nothing)")
		return nil
	}
	fmt.Println(tree.String())
	if prunable := query.Prunable(tree); prunable == nil {
		fmt.Println("note: not index-prunable, requires a full scan")
	}
	return nil
}

func cmdMatch(args []string) error {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath, pipelineName := pipelineFlags(fs)
	mode := compileFlag(fs)
	fs.Parse(args)

	p, err := loadPipeline(*configPath, *pipelineName)
	if err != nil {
		return err
	}
	q, err := requireArg(fs, 0, "query")
	if err != nil {
		return err
	}
	text, err := textArg(fs, 1)
	if err != nil {
		return err
	}

	tree, err := compile(*mode, q, p)
	if err != nil {
		return err
	}
	if match.Match(vector.Build(text, p), tree) {
		fmt.Println("true")
		return nil
	}
	fmt.Println("false")
	os.Exit(1)
	return nil
}

func parseScheme(s string) (rank.WeightScheme, error) {
	var scheme rank.WeightScheme
	if s == "" {
		return scheme, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != len(scheme) {
		return scheme, fmt.Errorf("weights must be four comma-separated numbers in D,C,B,A order")
	}
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || f < 0 {
			return scheme, fmt.Errorf("invalid weight %q", part)
		}
		scheme[i] = f
	}
	return scheme, nil
}

func cmdRank(args []string) error {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	configPath, pipelineName := pipelineFlags(fs)
	mode := compileFlag(fs)
	ranker := fs.String("ranker", "freq", "ranker: freq or cover")
	norm := fs.Uint("norm", 0, "normalization bitmask")
	weights := fs.String("weights", "", "weight scheme, four numbers in D,C,B,A order")
	fs.Parse(args)

	p, err := loadPipeline(*configPath, *pipelineName)
	if err != nil {
		return err
	}
	q, err := requireArg(fs, 0, "query")
	if err != nil {
		return err
	}
	text, err := textArg(fs, 1)
	if err != nil {
		return err
	}

	tree, err := compile(*mode, q, p)
	if err != nil {
		return err
	}
	scheme, err := parseScheme(*weights)
	if err != nil {
		return err
	}
	if *norm > 255 {
		return fmt.Errorf("norm must be between 0 and 255")
	}

	v := vector.Build(text, p)
	var score float64
	switch *ranker {
	case "freq":
		score = rank.Frequency(v, tree, scheme, rank.Norm(*norm))
	case "cover":
		score = rank.CoverDensity(v, tree, scheme, rank.Norm(*norm))
	default:
		return fmt.Errorf("unknown ranker %q", *ranker)
	}
	fmt.Printf("%g\n", rank.RoundScore(score))
	return nil
}

func cmdHeadline(args []string) error {
	fs := flag.NewFlagSet("headline", flag.ExitOnError)
	configPath, pipelineName := pipelineFlags(fs)
	mode := compileFlag(fs)
	minWords := fs.Int("min", 0, "minimum fragment words")
	maxWords := fs.Int("max", 0, "maximum fragment words")
	startSel := fs.String("start", "", "opening highlight marker")
	stopSel := fs.String("stop", "", "closing highlight marker")
	fs.Parse(args)

	p, err := loadPipeline(*configPath, *pipelineName)
	if err != nil {
		return err
	}
	q, err := requireArg(fs, 0, "query")
	if err != nil {
		return err
	}
	text, err := textArg(fs, 1)
	if err != nil {
		return err
	}

	tree, err := compile(*mode, q, p)
	if err != nil {
		return err
	}
	fmt.Println(rank.Headline(text, tree, p, rank.HeadlineOptions{
		MinWords: *minWords,
		MaxWords: *maxWords,
		StartSel: *startSel,
		StopSel:  *stopSel,
	}))
	return nil
}
