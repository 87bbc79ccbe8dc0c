package vector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is wrapped by every Parse failure.
var ErrInvalid = errors.New("invalid vector syntax")

// String renders the vector in its serialized text form: sorted quoted
// lexemes, comma-separated positions, weight letters only for
// non-default classes, embedded quotes doubled. A stripped entry is a
// bare quoted lexeme. The empty vector renders as the empty string.
func (v Vector) String() string {
	var b strings.Builder
	for i, e := range v.entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeQuoted(&b, e.Lexeme)
		if e.Positions == nil {
			continue
		}
		b.WriteByte(':')
		for j, p := range e.Positions {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(p.Pos()))
			if w := p.Weight(); w != WeightD {
				b.WriteByte(weightLetters[w])
			}
		}
	}
	return b.String()
}

func writeQuoted(b *strings.Builder, lex string) {
	b.WriteByte('\'')
	for i := 0; i < len(lex); i++ {
		if lex[i] == '\'' {
			b.WriteByte('\'')
		}
		b.WriteByte(lex[i])
	}
	b.WriteByte('\'')
}

// Parse reads the serialized text form back into a vector. Lexemes may
// be quoted (with '' escaping) or bare; duplicate lexemes merge; a
// colon must be followed by at least one position. Out-of-range
// positions clamp exactly as Build clamps them.
func Parse(s string) (Vector, error) {
	var entries []Entry
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		lex, next, err := parseLexeme(s, i)
		if err != nil {
			return Vector{}, err
		}
		i = next
		entry := Entry{Lexeme: lex}
		if i < len(s) && s[i] == ':' {
			ps, next, err := parsePositions(s, i+1)
			if err != nil {
				return Vector{}, err
			}
			entry.Positions = ps
			i = next
		}
		entries = append(entries, entry)
	}
	return New(entries), nil
}

func parseLexeme(s string, i int) (string, int, error) {
	if s[i] == '\'' {
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
				return "", 0, fmt.Errorf("%w: empty lexeme at byte %d", ErrInvalid, i)
			}
			return b.String(), j + 1, nil
		}
		return "", 0, fmt.Errorf("%w: unterminated quote at byte %d", ErrInvalid, i)
	}
	j := i
	for j < len(s) && !isSpace(s[j]) && s[j] != ':' && s[j] != '\'' {
		j++
	}
	if j == i {
		return "", 0, fmt.Errorf("%w: empty lexeme at byte %d", ErrInvalid, i)
	}
	return s[i:j], j, nil
}

func parsePositions(s string, i int) ([]Position, int, error) {
	var ps []Position
	for {
		start := i
		val := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			val = val*10 + int(s[i]-'0')
			if val > 10*MaxPosition {
				val = 10 * MaxPosition
			}
			i++
		}
		if i == start {
			return nil, 0, fmt.Errorf("%w: expected position at byte %d", ErrInvalid, i)
		}
		if val == 0 {
			return nil, 0, fmt.Errorf("%w: position zero at byte %d", ErrInvalid, start)
		}
		w := WeightD
		if i < len(s) {
			if pw, ok := ParseWeight(s[i]); ok {
				w = pw
				i++
			}
		}
		ps = append(ps, NewPosition(val, w))
		if i < len(s) && s[i] == ',' {
			i++
			continue
		}
		if i < len(s) && !isSpace(s[i]) {
			return nil, 0, fmt.Errorf("%w: unexpected %q at byte %d", ErrInvalid, s[i], i)
		}
		return ps, i, nil
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
