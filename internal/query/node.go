// Package query compiles search expressions into immutable trees of
// lexeme leaves and AND, OR, NOT, and phrase (followed-by) operators.
//
// Four compilation modes cover the input surface: the strict operator
// grammar, plain AND-folding, phrase folding, and the permissive web
// grammar for untrusted free text. Compiled trees are never mutated;
// Rewrite and Prunable return new trees.
package query

import (
	"errors"
	"strconv"
	"strings"

	"github.com/arktext/textsearch/internal/vector"
)

// MaxNodes caps the size of a compiled tree. Strict mode surfaces the
// violation; permissive modes drop the excess fragments instead.
const MaxNodes = 32768

// AnyDistance marks a phrase operator that accepts any ordered gap
// ("somewhere later") instead of an exact distance.
const AnyDistance = -1

var (
	// ErrMalformed is returned by strict compilation for grammar
	// violations: unbalanced groups, dangling operators, empty input.
	ErrMalformed = errors.New("malformed query")
	// ErrTooManyNodes is returned by strict compilation when the tree
	// exceeds MaxNodes.
	ErrTooManyNodes = errors.New("query has too many nodes")
)

// Kind tags a node variant.
type Kind uint8

const (
	KindLexeme Kind = iota
	KindAnd
	KindOr
	KindNot
	KindPhrase
)

// Node is one vertex of a query tree. Lexeme leaves carry the match
// string plus optional prefix and weight restrictions; Phrase nodes
// carry the required distance; Not uses Left only.
type Node struct {
	Kind     Kind
	Lexeme   string
	Prefix   bool
	Weights  vector.WeightMask
	Distance int
	Left     *Node
	Right    *Node
}

// Lexeme builds an unrestricted leaf.
func Lexeme(lex string) *Node {
	return &Node{Kind: KindLexeme, Lexeme: lex}
}

// Leaf builds a leaf with prefix and weight restrictions.
func Leaf(lex string, prefix bool, weights vector.WeightMask) *Node {
	return &Node{Kind: KindLexeme, Lexeme: lex, Prefix: prefix, Weights: weights}
}

// And joins two subtrees conjunctively. A nil operand collapses to the
// other, which is how vanished stopword literals fall out of a tree.
func And(l, r *Node) *Node {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	return &Node{Kind: KindAnd, Left: l, Right: r}
}

// Or joins two subtrees disjunctively, collapsing nil operands.
func Or(l, r *Node) *Node {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	return &Node{Kind: KindOr, Left: l, Right: r}
}

// Not negates a subtree; Not(nil) vanishes.
func Not(c *Node) *Node {
	if c == nil {
		return nil
	}
	return &Node{Kind: KindNot, Left: c}
}

// PhraseJoin requires r to follow l at exactly distance positions
// (AnyDistance for any ordered gap). Nil operands collapse.
func PhraseJoin(l, r *Node, distance int) *Node {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	return &Node{Kind: KindPhrase, Distance: distance, Left: l, Right: r}
}

// NodeCount reports the number of nodes in the tree.
func NodeCount(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + NodeCount(n.Left) + NodeCount(n.Right)
}

// Equal reports structural equality, including leaf restrictions and
// phrase distances.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindLexeme:
		return a.Lexeme == b.Lexeme && a.Prefix == b.Prefix && a.Weights == b.Weights
	case KindPhrase:
		if a.Distance != b.Distance {
			return false
		}
	}
	return Equal(a.Left, b.Left) && Equal(a.Right, b.Right)
}

// Clone deep-copies a tree.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Left = Clone(n.Left)
	c.Right = Clone(n.Right)
	return &c
}

// Rewrite substitutes every subtree structurally equal to target with a
// copy of replacement, returning a new tree. It implements query-level
// synonym expansion without re-tokenizing.
func Rewrite(n, target, replacement *Node) *Node {
	if n == nil {
		return nil
	}
	if Equal(n, target) {
		return Clone(replacement)
	}
	c := *n
	c.Left = Rewrite(n.Left, target, replacement)
	c.Right = Rewrite(n.Right, target, replacement)
	return &c
}

// Prunable extracts the skeleton usable for index pre-filtering: NOT
// branches drop out, phrase constraints relax to AND (distance needs
// vector-level verification anyway). A nil result means the index
// cannot narrow candidates and the caller must verify a full scan.
func Prunable(n *Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindLexeme:
		leaf := *n
		return &leaf
	case KindNot:
		return nil
	case KindAnd, KindPhrase:
		return And(Prunable(n.Left), Prunable(n.Right))
	case KindOr:
		l, r := Prunable(n.Left), Prunable(n.Right)
		// An OR with an unprunable side could match through that side;
		// narrowing by the other side would drop true matches.
		if l == nil || r == nil {
			return nil
		}
		return Or(l, r)
	}
	return nil
}

// precedence orders the operators for serialization: OR binds loosest,
// then AND, phrase, NOT.
func precedence(k Kind) int {
	switch k {
	case KindOr:
		return 1
	case KindAnd:
		return 2
	case KindPhrase:
		return 3
	case KindNot:
		return 4
	}
	return 5
}

// String renders the tree in the strict grammar. Operands are
// parenthesized only when their operator binds more loosely than the
// parent, so output re-compiles to an equal tree.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindLexeme:
		writeLexeme(b, n)
	case KindNot:
		b.WriteByte('!')
		writeOperand(b, n.Left, precedence(KindNot), false)
	case KindAnd:
		writeOperand(b, n.Left, precedence(KindAnd), false)
		b.WriteString(" & ")
		writeOperand(b, n.Right, precedence(KindAnd), true)
	case KindOr:
		writeOperand(b, n.Left, precedence(KindOr), false)
		b.WriteString(" | ")
		writeOperand(b, n.Right, precedence(KindOr), true)
	case KindPhrase:
		writeOperand(b, n.Left, precedence(KindPhrase), false)
		switch n.Distance {
		case 1:
			b.WriteString(" <-> ")
		case AnyDistance:
			b.WriteString(" <*> ")
		default:
			b.WriteString(" <")
			b.WriteString(strconv.Itoa(n.Distance))
			b.WriteString("> ")
		}
		writeOperand(b, n.Right, precedence(KindPhrase), true)
	}
}

// writeOperand parenthesizes children that bind more loosely than the
// parent. The grammar is left-associative, so a right operand at equal
// precedence needs parentheses too or re-parsing would regroup it.
func writeOperand(b *strings.Builder, n *Node, parent int, right bool) {
	p := precedence(n.Kind)
	if p < parent || (right && p == parent) {
		b.WriteByte('(')
		writeNode(b, n)
		b.WriteByte(')')
		return
	}
	writeNode(b, n)
}

func writeLexeme(b *strings.Builder, n *Node) {
	b.WriteByte('\'')
	for i := 0; i < len(n.Lexeme); i++ {
		if n.Lexeme[i] == '\'' {
			b.WriteByte('\'')
		}
		b.WriteByte(n.Lexeme[i])
	}
	b.WriteByte('\'')
	if !n.Prefix && n.Weights.Empty() {
		return
	}
	b.WriteByte(':')
	if n.Prefix {
		b.WriteByte('*')
	}
	b.WriteString(n.Weights.String())
}
