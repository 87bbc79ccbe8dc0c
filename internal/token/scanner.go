package token

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxTagBytes bounds how far the scanner looks for a closing '>' before
// giving up and treating the '<' as a separator.
const maxTagBytes = 512

// maxEntityBytes bounds entity recognition the same way.
const maxEntityBytes = 12

// Scanner is a lazy single-pass tokenizer. It is not safe for concurrent
// use; construct a new Scanner per input.
type Scanner struct {
	src     string
	pos     int
	pending []Token // compound parts queued behind the whole
	extra   map[rune]bool
}

// NewScanner returns a Scanner over text. The input is NFC-normalised
// first so byte-wise lexeme comparison downstream is stable across
// composed and decomposed spellings.
func NewScanner(text string) *Scanner {
	if !norm.NFC.IsNormalString(text) {
		text = norm.NFC.String(text)
	}
	return &Scanner{src: text}
}

// NewScannerExtra is NewScanner with extra runes treated as letters,
// for identifier-heavy corpora (for example '_').
func NewScannerExtra(text, extra string) *Scanner {
	s := NewScanner(text)
	if extra != "" {
		s.extra = make(map[rune]bool, len(extra))
		for _, r := range extra {
			s.extra[r] = true
		}
	}
	return s
}

// Source returns the normalised input the token offsets refer to.
func (s *Scanner) Source() string { return s.src }

// Next returns the next token. The second result is false once the
// input is exhausted.
func (s *Scanner) Next() (Token, bool) {
	if len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		return t, true
	}
	if s.pos >= len(s.src) {
		return Token{}, false
	}
	start := s.pos
	r, _ := utf8.DecodeRuneInString(s.src[start:])
	switch {
	case r == '<':
		if t, ok := s.scanTag(start); ok {
			return t, true
		}
	case r == '&':
		if t, ok := s.scanEntity(start); ok {
			return t, true
		}
	case r == '/':
		if t, ok := s.scanPath(start); ok {
			return t, true
		}
	case s.isAlnum(r):
		return s.scanCompound(start), true
	}
	return s.scanBlank(start), true
}

// All drains the scanner into a slice. Convenience for callers that do
// not need streaming.
func (s *Scanner) All() []Token {
	var out []Token
	for {
		t, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}

func (s *Scanner) isLetter(r rune) bool {
	return unicode.IsLetter(r) || s.extra[r]
}

func (s *Scanner) isAlnum(r rune) bool {
	return s.isLetter(r) || unicode.IsDigit(r)
}

// starter reports whether a rune can begin a non-blank token.
func (s *Scanner) starter(r rune) bool {
	return r == '<' || r == '&' || r == '/' || s.isAlnum(r)
}

// scanBlank consumes at least one rune and then everything up to the
// next possible token start.
func (s *Scanner) scanBlank(start int) Token {
	_, size := utf8.DecodeRuneInString(s.src[start:])
	i := start + size
	for i < len(s.src) {
		r, n := utf8.DecodeRuneInString(s.src[i:])
		if s.starter(r) {
			break
		}
		i += n
	}
	s.pos = i
	return Token{Text: s.src[start:i], Class: Blank, Off: start}
}

// scanTag recognises <name ...>, </name> and <name/> forms.
func (s *Scanner) scanTag(start int) (Token, bool) {
	i := start + 1
	if i < len(s.src) && s.src[i] == '/' {
		i++
	}
	if i >= len(s.src) || !isASCIILetter(s.src[i]) {
		return Token{}, false
	}
	limit := start + maxTagBytes
	if limit > len(s.src) {
		limit = len(s.src)
	}
	for ; i < limit; i++ {
		if s.src[i] == '>' {
			s.pos = i + 1
			return Token{Text: s.src[start : i+1], Class: Tag, Off: start}, true
		}
	}
	return Token{}, false
}

// scanEntity recognises &name; and &#123; forms.
func (s *Scanner) scanEntity(start int) (Token, bool) {
	i := start + 1
	limit := start + maxEntityBytes
	if limit > len(s.src) {
		limit = len(s.src)
	}
	if i < limit && s.src[i] == '#' {
		i++
	}
	body := i
	for ; i < limit; i++ {
		c := s.src[i]
		if c == ';' {
			if i == body {
				return Token{}, false
			}
			s.pos = i + 1
			return Token{Text: s.src[start : i+1], Class: Entity, Off: start}, true
		}
		if !isASCIILetter(c) && !isASCIIDigit(c) {
			return Token{}, false
		}
	}
	return Token{}, false
}

// scanPath recognises absolute slash-separated paths such as
// /usr/local/share. A trailing bare slash is left to the blank scanner.
func (s *Scanner) scanPath(start int) (Token, bool) {
	i := start
	segments := 0
	for i < len(s.src) && s.src[i] == '/' {
		j := i + 1
		for j < len(s.src) {
			r, n := utf8.DecodeRuneInString(s.src[j:])
			if !s.isAlnum(r) && r != '.' && r != '-' && r != '_' {
				break
			}
			j += n
		}
		if j == i+1 {
			break
		}
		segments++
		i = j
	}
	if segments == 0 {
		return Token{}, false
	}
	s.pos = i
	return Token{Text: s.src[start:i], Class: Path, Off: start}, true
}

// compoundRune reports whether a rune may appear inside a compound
// candidate (word, number, host, email, hyphenated form).
func (s *Scanner) compoundRune(r rune) bool {
	return s.isAlnum(r) || r == '.' || r == '-' || r == '_' || r == '@'
}

// scanCompound handles everything that starts with a letter or digit.
// It scans the maximal candidate run, classifies it whole, and falls
// back to the longest simple prefix when no shape matches.
func (s *Scanner) scanCompound(start int) Token {
	i := start
	for i < len(s.src) {
		r, n := utf8.DecodeRuneInString(s.src[i:])
		if !s.compoundRune(r) {
			break
		}
		i += n
	}

	// scheme:// swallows everything up to the next blank boundary.
	if t, ok := s.scanURL(start, i); ok {
		return t
	}

	// A compound cannot end in a joiner.
	for i > start {
		c := s.src[i-1]
		if c != '.' && c != '-' && c != '_' && c != '@' {
			break
		}
		i--
	}

	// 6.02e+23: the '+' stops the compound run, so stitch the exponent
	// back on when the candidate ends at a bare mantissa-e.
	if j, ok := s.extendExponent(start, i); ok {
		i = j
	}

	cand := s.src[start:i]
	if c, ok := s.classify(cand); ok {
		s.pos = i
		if c == Hyphenated {
			s.queueParts(cand, start)
		}
		return Token{Text: cand, Class: c, Off: start}
	}

	// No shape matched: emit the longest simple prefix and rescan the
	// remainder on the next call.
	n, c := s.simplePrefix(cand)
	s.pos = start + n
	return Token{Text: cand[:n], Class: c, Off: start}
}

// scanURL recognises scheme://rest, where the candidate run so far is
// the scheme and the input continues with "://".
func (s *Scanner) scanURL(start, i int) (Token, bool) {
	if !strings.HasPrefix(s.src[i:], "://") {
		return Token{}, false
	}
	for _, r := range s.src[start:i] {
		if !s.isLetter(r) {
			return Token{}, false
		}
	}
	j := i + 3
	k := j
	for k < len(s.src) {
		r, n := utf8.DecodeRuneInString(s.src[k:])
		if unicode.IsSpace(r) || r == '<' || r == '>' || r == '"' || r == '\'' {
			break
		}
		k += n
	}
	if k == j {
		return Token{}, false
	}
	s.pos = k
	return Token{Text: s.src[start:k], Class: URL, Off: start}, true
}

func (s *Scanner) extendExponent(start, i int) (int, bool) {
	cand := s.src[start:i]
	if len(cand) < 2 {
		return 0, false
	}
	last := cand[len(cand)-1]
	if last != 'e' && last != 'E' {
		return 0, false
	}
	if !isNumeric(cand[:len(cand)-1]) {
		return 0, false
	}
	if i >= len(s.src) || (s.src[i] != '+' && s.src[i] != '-') {
		return 0, false
	}
	j := i + 1
	d := j
	for d < len(s.src) && isASCIIDigit(s.src[d]) {
		d++
	}
	if d == j {
		return 0, false
	}
	return d, true
}

// classify matches the whole candidate against the compound shapes, most
// specific first.
func (s *Scanner) classify(cand string) (Class, bool) {
	if cand == "" {
		return Blank, false
	}
	switch {
	case isDigits(cand):
		return Int, true
	case isFloat(cand):
		return Float, true
	case isScientific(cand):
		return Scientific, true
	case isVersion(cand):
		return Version, true
	case s.isEmail(cand):
		return Email, true
	case s.isHost(cand):
		return Host, true
	case s.isHyphenated(cand):
		return Hyphenated, true
	}
	hasLetter, hasDigit, plain := s.shape(cand)
	if !plain {
		return Blank, false
	}
	if hasLetter && hasDigit {
		return NumWord, true
	}
	if hasLetter {
		return Word, true
	}
	return Blank, false
}

// shape reports letter/digit presence and whether the candidate is free
// of joiners.
func (s *Scanner) shape(cand string) (hasLetter, hasDigit, plain bool) {
	plain = true
	for _, r := range cand {
		switch {
		case s.isLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			plain = false
		}
	}
	return
}

func (s *Scanner) isEmail(cand string) bool {
	at := strings.IndexByte(cand, '@')
	if at <= 0 || at != strings.LastIndexByte(cand, '@') {
		return false
	}
	local, domain := cand[:at], cand[at+1:]
	for _, r := range local {
		if !s.isAlnum(r) && r != '.' && r != '-' && r != '_' {
			return false
		}
	}
	return s.isHost(domain)
}

// isHost wants at least two dot-separated labels with an alphabetic top
// label, the usual relaxed hostname shape.
func (s *Scanner) isHost(cand string) bool {
	if strings.ContainsAny(cand, "@_") {
		return false
	}
	labels := strings.Split(cand, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" || strings.HasPrefix(l, "-") || strings.HasSuffix(l, "-") {
			return false
		}
		for _, r := range l {
			if !s.isAlnum(r) && r != '-' {
				return false
			}
		}
	}
	top := labels[len(labels)-1]
	if len(top) < 2 {
		return false
	}
	for _, r := range top {
		if !s.isLetter(r) {
			return false
		}
	}
	return true
}

// isHyphenated wants a letter-initial first part; "10-year" splits into
// a number and a word instead.
func (s *Scanner) isHyphenated(cand string) bool {
	if !strings.ContainsRune(cand, '-') || strings.ContainsAny(cand, "._@") {
		return false
	}
	first, _ := utf8.DecodeRuneInString(cand)
	if !s.isLetter(first) {
		return false
	}
	for _, part := range strings.Split(cand, "-") {
		if part == "" {
			return false
		}
		for _, r := range part {
			if !s.isAlnum(r) {
				return false
			}
		}
	}
	return true
}

// queueParts schedules the parts of a hyphenated compound behind the
// whole. Each part later consumes its own pipeline position.
func (s *Scanner) queueParts(cand string, off int) {
	at := off
	for _, part := range strings.Split(cand, "-") {
		c := HyphenatedPart
		if strings.IndexFunc(part, unicode.IsDigit) >= 0 {
			c = HyphenatedNumPart
		}
		s.pending = append(s.pending, Token{Text: part, Class: c, Off: at})
		at += len(part) + 1
	}
}

// simplePrefix finds the longest number or alnum-run prefix of a
// candidate that failed whole-candidate classification.
func (s *Scanner) simplePrefix(cand string) (int, Class) {
	if isASCIIDigit(cand[0]) {
		n, c := numberPrefix(cand)
		if n > 0 {
			return n, c
		}
	}
	i := 0
	hasDigit := false
	for i < len(cand) {
		r, n := utf8.DecodeRuneInString(cand[i:])
		if !s.isAlnum(r) {
			break
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		i += n
	}
	if hasDigit {
		if isDigits(cand[:i]) {
			return i, Int
		}
		return i, NumWord
	}
	return i, Word
}

// numberPrefix matches digits(.digits)* with an optional exponent and
// classifies by dot count.
func numberPrefix(cand string) (int, Class) {
	i := 0
	for i < len(cand) && isASCIIDigit(cand[i]) {
		i++
	}
	dots := 0
	for i+1 < len(cand) && cand[i] == '.' && isASCIIDigit(cand[i+1]) {
		j := i + 1
		for j < len(cand) && isASCIIDigit(cand[j]) {
			j++
		}
		i = j
		dots++
	}
	if dots <= 1 && i+1 < len(cand) && (cand[i] == 'e' || cand[i] == 'E') {
		j := i + 1
		if j < len(cand) && (cand[j] == '+' || cand[j] == '-') {
			j++
		}
		k := j
		for k < len(cand) && isASCIIDigit(cand[k]) {
			k++
		}
		if k > j {
			return k, Scientific
		}
	}
	switch {
	case dots == 0:
		return i, Int
	case dots == 1:
		return i, Float
	default:
		return i, Version
	}
}

func isASCIILetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isASCIIDigit(s[i]) {
			return false
		}
	}
	return true
}

func isFloat(s string) bool {
	dot := strings.IndexByte(s, '.')
	if dot <= 0 {
		return false
	}
	return isDigits(s[:dot]) && isDigits(s[dot+1:])
}

// isNumeric accepts the mantissa shapes digits and digits.digits.
func isNumeric(s string) bool { return isDigits(s) || isFloat(s) }

func isScientific(s string) bool {
	e := strings.IndexAny(s, "eE")
	if e <= 0 {
		return false
	}
	exp := s[e+1:]
	if strings.HasPrefix(exp, "+") || strings.HasPrefix(exp, "-") {
		exp = exp[1:]
	}
	return isNumeric(s[:e]) && isDigits(exp)
}

func isVersion(s string) bool {
	groups := strings.Split(s, ".")
	if len(groups) < 3 {
		return false
	}
	for _, g := range groups {
		if !isDigits(g) {
			return false
		}
	}
	return true
}
