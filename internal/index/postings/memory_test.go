package postings

import (
	"testing"

	"github.com/arktext/textsearch/internal/vector"
)

func entry(lexeme string, positions ...vector.Position) vector.Entry {
	return vector.Entry{Lexeme: lexeme, Positions: positions}
}

func pos(p int, w vector.Weight) vector.Position {
	return vector.NewPosition(p, w)
}

func TestMemoryInsertAndLookup(t *testing.T) {
	m := NewMemory()
	m.Insert("doc-1", vector.New([]vector.Entry{
		entry("cat", pos(3, vector.WeightD)),
		entry("fat", pos(2, vector.WeightD), pos(11, vector.WeightA)),
	}))

	list := m.Lookup("fat")
	if len(list) != 1 {
		t.Fatalf("Lookup(fat) returned %d postings, want 1", len(list))
	}
	if list[0].DocID != "doc-1" {
		t.Errorf("DocID = %q, want doc-1", list[0].DocID)
	}
	if len(list[0].Positions) != 2 {
		t.Fatalf("positions = %v, want two", list[0].Positions)
	}
	if list[0].Positions[1].Pos() != 11 || list[0].Positions[1].Weight() != vector.WeightA {
		t.Errorf("second position = %d/%v, want 11/A",
			list[0].Positions[1].Pos(), list[0].Positions[1].Weight())
	}
	if got := m.Lookup("dog"); got != nil {
		t.Errorf("Lookup(dog) = %v, want nil", got)
	}
	if m.DocCount() != 1 || m.LexemeCount() != 2 {
		t.Errorf("DocCount/LexemeCount = %d/%d, want 1/2", m.DocCount(), m.LexemeCount())
	}
	if m.Size() <= 0 {
		t.Error("Size() should be positive after an insert")
	}
}

func TestMemoryLookupSortsByDocID(t *testing.T) {
	m := NewMemory()
	m.Insert("doc-b", vector.New([]vector.Entry{entry("cat", pos(1, vector.WeightD))}))
	m.Insert("doc-a", vector.New([]vector.Entry{entry("cat", pos(4, vector.WeightD))}))

	list := m.Lookup("cat")
	if len(list) != 2 || list[0].DocID != "doc-a" || list[1].DocID != "doc-b" {
		t.Fatalf("Lookup(cat) = %v, want doc-a then doc-b", list)
	}
}

func TestMemoryReinsertReplacesDocument(t *testing.T) {
	m := NewMemory()
	m.Insert("doc-1", vector.New([]vector.Entry{
		entry("cat", pos(3, vector.WeightD)),
		entry("old", pos(1, vector.WeightD)),
	}))
	m.Insert("doc-1", vector.New([]vector.Entry{
		entry("cat", pos(7, vector.WeightD)),
		entry("new", pos(1, vector.WeightD)),
	}))

	if got := m.Lookup("old"); got != nil {
		t.Errorf("stale lexeme still indexed: %v", got)
	}
	list := m.Lookup("cat")
	if len(list) != 1 || list[0].Positions[0].Pos() != 7 {
		t.Errorf("Lookup(cat) = %v, want single posting at position 7", list)
	}
	if got := m.Lookup("new"); len(got) != 1 {
		t.Errorf("Lookup(new) = %v, want one posting", got)
	}
	if m.DocCount() != 1 {
		t.Errorf("DocCount = %d after reinsert, want 1", m.DocCount())
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	m.Insert("doc-1", vector.New([]vector.Entry{entry("cat", pos(1, vector.WeightD))}))
	m.Insert("doc-2", vector.New([]vector.Entry{entry("cat", pos(2, vector.WeightD))}))

	if !m.Delete("doc-1") {
		t.Fatal("Delete(doc-1) = false, want true")
	}
	if m.Delete("doc-1") {
		t.Error("second Delete(doc-1) = true, want false")
	}
	list := m.Lookup("cat")
	if len(list) != 1 || list[0].DocID != "doc-2" {
		t.Fatalf("Lookup(cat) = %v, want only doc-2", list)
	}
	m.Delete("doc-2")
	if m.Size() != 0 || m.LexemeCount() != 0 || m.DocCount() != 0 {
		t.Errorf("after deleting everything: size=%d lexemes=%d docs=%d, want zeros",
			m.Size(), m.LexemeCount(), m.DocCount())
	}
}

func TestMemoryStrippedEntryKeepsNilPositions(t *testing.T) {
	m := NewMemory()
	m.Insert("doc-1", vector.New([]vector.Entry{entry("cat")}))

	list := m.Lookup("cat")
	if len(list) != 1 {
		t.Fatalf("Lookup(cat) = %v, want one posting", list)
	}
	if list[0].Positions != nil {
		t.Errorf("stripped posting has positions %v, want nil", list[0].Positions)
	}
}

func TestMemoryLookupPrefix(t *testing.T) {
	m := NewMemory()
	m.Insert("doc-1", vector.New([]vector.Entry{
		entry("sun", pos(1, vector.WeightD)),
		entry("super", pos(2, vector.WeightD)),
		entry("supernova", pos(3, vector.WeightD)),
	}))

	entries := m.LookupPrefix("super")
	if len(entries) != 2 {
		t.Fatalf("LookupPrefix(super) returned %d lexemes, want 2", len(entries))
	}
	if entries[0].Lexeme != "super" || entries[1].Lexeme != "supernova" {
		t.Errorf("prefix lexemes = %q,%q, want super,supernova",
			entries[0].Lexeme, entries[1].Lexeme)
	}
	if got := m.LookupPrefix("zebra"); got != nil {
		t.Errorf("LookupPrefix(zebra) = %v, want nil", got)
	}
	if all := m.LookupPrefix(""); len(all) != 3 {
		t.Errorf("LookupPrefix(\"\") returned %d lexemes, want 3", len(all))
	}
}

func TestMemorySnapshotIsSortedAndNonDestructive(t *testing.T) {
	m := NewMemory()
	m.Insert("doc-1", vector.New([]vector.Entry{
		entry("zebra", pos(1, vector.WeightD)),
		entry("ant", pos(2, vector.WeightD)),
	}))

	snap := m.Snapshot()
	if len(snap) != 2 || snap[0].Lexeme != "ant" || snap[1].Lexeme != "zebra" {
		t.Fatalf("Snapshot = %v, want ant then zebra", snap)
	}
	if m.DocCount() != 1 {
		t.Error("Snapshot must not reset the index")
	}
}

func TestMemoryDrainResets(t *testing.T) {
	m := NewMemory()
	m.Insert("doc-1", vector.New([]vector.Entry{entry("cat", pos(1, vector.WeightD))}))

	entries := m.Drain()
	if len(entries) != 1 || entries[0].Lexeme != "cat" {
		t.Fatalf("Drain = %v, want the cat entry", entries)
	}
	if m.DocCount() != 0 || m.Size() != 0 {
		t.Errorf("after Drain: docs=%d size=%d, want zeros", m.DocCount(), m.Size())
	}
	if got := m.Lookup("cat"); got != nil {
		t.Errorf("Lookup after Drain = %v, want nil", got)
	}
	if second := m.Drain(); len(second) != 0 {
		t.Errorf("second Drain = %v, want empty", second)
	}
}
