package postings

import (
	"sort"
	"strings"
	"sync"

	"github.com/arktext/textsearch/internal/vector"
)

// Memory is the mutable posting store that absorbs writes between
// segment flushes. A single writer and any number of concurrent
// readers are safe.
type Memory struct {
	mu    sync.RWMutex
	terms map[string]map[string][]vector.Position
	docs  map[string][]string
	size  int64
}

// NewMemory returns an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{
		terms: make(map[string]map[string][]vector.Position),
		docs:  make(map[string][]string),
	}
}

// Insert indexes every entry of v under docID. Re-inserting a document
// replaces its previous postings entirely.
func (m *Memory) Insert(docID string, v vector.Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(docID)
	entries := v.Entries()
	lexemes := make([]string, 0, len(entries))
	for _, e := range entries {
		byDoc, ok := m.terms[e.Lexeme]
		if !ok {
			byDoc = make(map[string][]vector.Position)
			m.terms[e.Lexeme] = byDoc
		}
		var ps []vector.Position
		if e.Positions != nil {
			ps = make([]vector.Position, len(e.Positions))
			copy(ps, e.Positions)
		}
		byDoc[docID] = ps
		lexemes = append(lexemes, e.Lexeme)
		m.size += postingSize(e.Lexeme, docID, len(ps))
	}
	m.docs[docID] = lexemes
}

// Delete removes every posting for docID and reports whether the
// document was present.
func (m *Memory) Delete(docID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(docID)
}

func (m *Memory) removeLocked(docID string) bool {
	lexemes, ok := m.docs[docID]
	if !ok {
		return false
	}
	for _, lex := range lexemes {
		byDoc := m.terms[lex]
		if byDoc == nil {
			continue
		}
		m.size -= postingSize(lex, docID, len(byDoc[docID]))
		delete(byDoc, docID)
		if len(byDoc) == 0 {
			delete(m.terms, lex)
		}
	}
	delete(m.docs, docID)
	return true
}

// Lookup returns the postings for one lexeme, sorted by document ID.
func (m *Memory) Lookup(lexeme string) List {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return buildList(m.terms[lexeme])
}

// LookupPrefix returns a TermEntry for every indexed lexeme that starts
// with prefix, sorted by lexeme.
func (m *Memory) LookupPrefix(prefix string) []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TermEntry
	for lex, byDoc := range m.terms {
		if strings.HasPrefix(lex, prefix) {
			out = append(out, TermEntry{Lexeme: lex, Postings: buildList(byDoc)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lexeme < out[j].Lexeme })
	return out
}

// Snapshot returns every term entry sorted by lexeme. The postings
// share position slices with the index; callers must not mutate them.
func (m *Memory) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Drain atomically snapshots the index and resets it, so a write racing
// a flush lands either in the returned snapshot or in the next one.
func (m *Memory) Drain() []TermEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.snapshotLocked()
	m.terms = make(map[string]map[string][]vector.Position)
	m.docs = make(map[string][]string)
	m.size = 0
	return out
}

func (m *Memory) snapshotLocked() []TermEntry {
	out := make([]TermEntry, 0, len(m.terms))
	for lex, byDoc := range m.terms {
		out = append(out, TermEntry{Lexeme: lex, Postings: buildList(byDoc)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lexeme < out[j].Lexeme })
	return out
}

// Reset discards all postings.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms = make(map[string]map[string][]vector.Position)
	m.docs = make(map[string][]string)
	m.size = 0
}

// DocCount returns the number of documents currently held in memory.
func (m *Memory) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// LexemeCount returns the number of distinct lexemes held in memory.
func (m *Memory) LexemeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms)
}

// Size returns a rough byte estimate of the held postings, used to
// decide when a flush is due.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func buildList(byDoc map[string][]vector.Position) List {
	if len(byDoc) == 0 {
		return nil
	}
	out := make(List, 0, len(byDoc))
	for docID, ps := range byDoc {
		out = append(out, Posting{DocID: docID, Positions: ps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

func postingSize(lexeme, docID string, positions int) int64 {
	return int64(len(lexeme) + len(docID) + 2*positions + 32)
}
