// Package postings holds the posting model shared by the in-memory
// index and the on-disk segments: which documents contain a lexeme and
// at which weighted positions.
package postings

import (
	"github.com/arktext/textsearch/internal/vector"
)

// Posting records one document that contains a lexeme, with the
// occurrence positions carried over from the document vector. A nil
// position list marks a stripped entry: the lexeme is present but its
// occurrences were discarded.
type Posting struct {
	DocID     string            `json:"id"`
	Positions []vector.Position `json:"p,omitempty"`
}

// List is the postings of one lexeme, sorted by document ID.
type List []Posting

// TermEntry pairs a lexeme with its postings. Snapshots and segments
// deal in sorted TermEntry slices.
type TermEntry struct {
	Lexeme   string
	Postings List
}
