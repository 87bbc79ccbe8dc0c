package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/arktext/textsearch/internal/dict"
	"github.com/arktext/textsearch/internal/vector"
)

// Compile parses s with the strict operator grammar: quoted or bare
// literals, & | !, <->, <N>, <*>, parentheses, and :*ABCD suffixes.
// Literals run through the pipeline; one normalizing to several lexemes
// compiles to a phrase chain, one normalizing to nothing vanishes with
// operator collapse. Grammar violations and empty results return
// ErrMalformed; oversized trees return ErrTooManyNodes.
func Compile(s string, p *dict.Pipeline) (*Node, error) {
	toks, err := lexStrict(s)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrMalformed)
	}
	pr := &parser{toks: toks, pipe: p}
	tree, err := pr.parseOr()
	if err != nil {
		return nil, err
	}
	if pr.pos != len(pr.toks) {
		return nil, fmt.Errorf("%w: unexpected %s", ErrMalformed, describeToken(pr.toks[pr.pos]))
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: query contains no indexable words", ErrMalformed)
	}
	if NodeCount(tree) > MaxNodes {
		return nil, ErrTooManyNodes
	}
	return tree, nil
}

// CompilePlain is AND-mode: every lexeme the pipeline produces is
// AND-combined, stopwords vanish without affecting structure. It never
// fails; an input with no indexable words compiles to a nil tree,
// which matches nothing.
func CompilePlain(s string, p *dict.Pipeline) *Node {
	var (
		node  *Node
		count int
	)
	for _, lx := range p.Analyze(s) {
		cost := 1
		if node != nil {
			cost = 2
		}
		if count+cost > MaxNodes {
			break
		}
		node = And(node, Lexeme(lx.Text))
		count += cost
	}
	return node
}

// CompilePhrase is PHRASE-mode: consecutive lexemes join with a phrase
// operator whose distance is the position gap, so elided stopwords
// widen the required distance. Never fails.
func CompilePhrase(s string, p *dict.Pipeline) *Node {
	var (
		node  *Node
		prev  int
		count int
	)
	for _, lx := range p.Analyze(s) {
		cost := 1
		if node != nil {
			cost = 2
		}
		if count+cost > MaxNodes {
			break
		}
		if node == nil {
			node = Lexeme(lx.Text)
		} else {
			node = PhraseJoin(node, Lexeme(lx.Text), lx.Pos-prev)
		}
		prev = lx.Pos
		count += cost
	}
	return node
}

// CompileWeb is WEB-mode for untrusted free text: quoted sub-phrases,
// leading - for negation, the keyword "or" (any case) for OR, "and"
// tolerated and ignored, parentheses treated as blanks. It never
// fails; unparsable fragments drop out.
func CompileWeb(s string, p *dict.Pipeline) *Node {
	var (
		orParts []*Node
		cur     *Node
		neg     bool
		count   int
	)
	add := func(frag *Node) {
		if neg {
			frag = Not(frag)
			neg = false
		}
		if frag == nil {
			return
		}
		cost := NodeCount(frag)
		if cur != nil {
			cost++
		}
		if count+cost > MaxNodes {
			return
		}
		cur = And(cur, frag)
		count += cost
	}

	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r) || r == '(' || r == ')':
			i += size
		case r == '"':
			end := strings.IndexByte(s[i+1:], '"')
			var content string
			if end < 0 {
				content = s[i+1:]
				i = len(s)
			} else {
				content = s[i+1 : i+1+end]
				i += end + 2
			}
			add(CompilePhrase(content, p))
		case r == '-':
			neg = true
			i += size
		default:
			j := i
			for j < len(s) {
				r2, n2 := utf8.DecodeRuneInString(s[j:])
				if unicode.IsSpace(r2) || r2 == '"' || r2 == '(' || r2 == ')' {
					break
				}
				j += n2
			}
			word := s[i:j]
			i = j
			switch strings.ToLower(word) {
			case "or":
				orParts = append(orParts, cur)
				cur = nil
				neg = false
			case "and":
				neg = false
			default:
				add(phraseFromLexemes(p.Analyze(word), false, 0))
			}
		}
	}
	orParts = append(orParts, cur)
	var out *Node
	for _, part := range orParts {
		out = Or(out, part)
	}
	return out
}

// phraseFromLexemes chains an analyzed literal into a phrase by
// position gaps, applying the literal's restrictions to every leaf.
func phraseFromLexemes(lexemes []dict.Lexeme, prefix bool, weights vector.WeightMask) *Node {
	var (
		node *Node
		prev int
	)
	for _, lx := range lexemes {
		leaf := Leaf(lx.Text, prefix, weights)
		if node == nil {
			node = leaf
		} else {
			node = PhraseJoin(node, leaf, lx.Pos-prev)
		}
		prev = lx.Pos
	}
	return node
}

// ---- strict-mode lexer ----

type tokKind uint8

const (
	tokWord tokKind = iota
	tokAnd
	tokOr
	tokNot
	tokOpen
	tokClose
	tokPhrase
)

type qtoken struct {
	kind     tokKind
	text     string
	distance int
	prefix   bool
	weights  vector.WeightMask
}

func describeToken(t qtoken) string {
	switch t.kind {
	case tokWord:
		return fmt.Sprintf("literal %q", t.text)
	case tokAnd:
		return "operator &"
	case tokOr:
		return "operator |"
	case tokNot:
		return "operator !"
	case tokOpen:
		return "'('"
	case tokClose:
		return "')'"
	case tokPhrase:
		return "phrase operator"
	}
	return "token"
}

func lexStrict(s string) ([]qtoken, error) {
	var toks []qtoken
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '&':
			toks = append(toks, qtoken{kind: tokAnd})
			i++
		case c == '|':
			toks = append(toks, qtoken{kind: tokOr})
			i++
		case c == '!':
			toks = append(toks, qtoken{kind: tokNot})
			i++
		case c == '(':
			toks = append(toks, qtoken{kind: tokOpen})
			i++
		case c == ')':
			toks = append(toks, qtoken{kind: tokClose})
			i++
		case c == '<':
			d, next, err := lexDistance(s, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, qtoken{kind: tokPhrase, distance: d})
			i = next
		case c == '\'':
			text, next, err := lexQuoted(s, i)
			if err != nil {
				return nil, err
			}
			t := qtoken{kind: tokWord, text: text}
			next, err = lexSuffix(s, next, &t)
			if err != nil {
				return nil, err
			}
			toks = append(toks, t)
			i = next
		default:
			text, next := lexBare(s, i)
			if text == "" {
				return nil, fmt.Errorf("%w: unexpected character %q at byte %d", ErrMalformed, c, i)
			}
			t := qtoken{kind: tokWord, text: text}
			next, err := lexSuffix(s, next, &t)
			if err != nil {
				return nil, err
			}
			toks = append(toks, t)
			i = next
		}
	}
	return toks, nil
}

func lexDistance(s string, i int) (int, int, error) {
	rest := s[i:]
	if strings.HasPrefix(rest, "<->") {
		return 1, i + 3, nil
	}
	if strings.HasPrefix(rest, "<*>") {
		return AnyDistance, i + 3, nil
	}
	j := i + 1
	val := 0
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		val = val*10 + int(s[j]-'0')
		if val > vector.MaxPosition {
			return 0, 0, fmt.Errorf("%w: phrase distance exceeds %d", ErrMalformed, vector.MaxPosition)
		}
		j++
	}
	if j == i+1 || j >= len(s) || s[j] != '>' {
		return 0, 0, fmt.Errorf("%w: bad phrase operator at byte %d", ErrMalformed, i)
	}
	if val == 0 {
		return 0, 0, fmt.Errorf("%w: phrase distance must be at least 1", ErrMalformed)
	}
	return val, j + 1, nil
}

func lexQuoted(s string, i int) (string, int, error) {
	var b strings.Builder
	j := i + 1
	for j < len(s) {
		if s[j] != '\'' {
			b.WriteByte(s[j])
			j++
			continue
		}
		if j+1 < len(s) && s[j+1] == '\'' {
			b.WriteByte('\'')
			j += 2
			continue
		}
		if b.Len() == 0 {
			return "", 0, fmt.Errorf("%w: empty literal at byte %d", ErrMalformed, i)
		}
		return b.String(), j + 1, nil
	}
	return "", 0, fmt.Errorf("%w: unterminated quote at byte %d", ErrMalformed, i)
}

func lexBare(s string, i int) (string, int) {
	j := i
	for j < len(s) {
		r, n := utf8.DecodeRuneInString(s[j:])
		if unicode.IsSpace(r) || strings.ContainsRune("&|!()<>:'", r) {
			break
		}
		j += n
	}
	return s[i:j], j
}

// lexSuffix reads the optional :*ABCD restriction after a literal.
func lexSuffix(s string, i int, t *qtoken) (int, error) {
	if i >= len(s) || s[i] != ':' {
		return i, nil
	}
	j := i + 1
	consumed := false
	for j < len(s) {
		c := s[j]
		if c == '*' {
			t.prefix = true
			consumed = true
			j++
			continue
		}
		if w, ok := vector.ParseWeight(c); ok {
			t.weights |= vector.MaskOf(w)
			consumed = true
			j++
			continue
		}
		break
	}
	if !consumed {
		return 0, fmt.Errorf("%w: expected '*' or weight letters after ':' at byte %d", ErrMalformed, i)
	}
	return j, nil
}

// ---- strict-mode parser ----

type parser struct {
	toks []qtoken
	pos  int
	pipe *dict.Pipeline
}

func (p *parser) at(k tokKind) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind == k
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(tokOr) {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parsePhrase()
	if err != nil {
		return nil, err
	}
	for p.at(tokAnd) {
		p.pos++
		right, err := p.parsePhrase()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

// parsePhrase folds a left-associative phrase chain. A vanished right
// operand (stopword literal) widens the distance carried into the next
// join instead of disappearing silently.
func (p *parser) parsePhrase() (*Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	pending := 0
	pendingAny := false
	for p.at(tokPhrase) {
		d := p.toks[p.pos].distance
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if right == nil {
			if left != nil {
				if d == AnyDistance {
					pendingAny = true
				} else {
					pending += d
				}
			}
			continue
		}
		if left == nil {
			left = right
			pending, pendingAny = 0, false
			continue
		}
		if d == AnyDistance || pendingAny {
			left = PhraseJoin(left, right, AnyDistance)
		} else {
			left = PhraseJoin(left, right, d+pending)
		}
		pending, pendingAny = 0, false
	}
	return left, nil
}

func (p *parser) parseNot() (*Node, error) {
	if p.at(tokNot) {
		p.pos++
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not(child), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Node, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("%w: missing operand", ErrMalformed)
	}
	t := p.toks[p.pos]
	switch t.kind {
	case tokOpen:
		p.pos++
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.at(tokClose) {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrMalformed)
		}
		p.pos++
		return node, nil
	case tokWord:
		p.pos++
		return phraseFromLexemes(p.pipe.Analyze(t.text), t.prefix, t.weights), nil
	default:
		return nil, fmt.Errorf("%w: expected operand, got %s", ErrMalformed, describeToken(t))
	}
}
