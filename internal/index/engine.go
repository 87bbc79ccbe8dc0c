// Package index implements the inverted index used for candidate
// retrieval: an in-memory posting store per shard, flushed to immutable
// on-disk segments, with tombstones covering deletes of already-flushed
// documents.
//
// Lookups never miss a live document (no false negatives for exact
// lexemes; prefix lookups return supersets), but they may surface
// postings from an older version of a re-indexed document until the
// segments are rebuilt. Callers verify candidates against the stored
// vector before trusting a hit.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arktext/textsearch/internal/index/postings"
	"github.com/arktext/textsearch/internal/index/segment"
	"github.com/arktext/textsearch/internal/vector"
	"github.com/arktext/textsearch/pkg/config"
)

// Engine combines the in-memory posting store and the on-disk segments
// of one shard. A single writer feeds Insert and Delete while any
// number of readers call Lookup and LookupPrefix concurrently.
type Engine struct {
	cfg    config.IndexConfig
	mem    *postings.Memory
	writer *segment.Writer

	readerMu sync.RWMutex
	readers  []*segment.Reader

	tombMu     sync.RWMutex
	tombstones map[string]struct{}

	flushMu sync.Mutex
	onFlush func(err error)

	logger *slog.Logger
}

// NewEngine creates an engine over cfg.DataDir, opening any segments a
// previous run left behind.
func NewEngine(cfg config.IndexConfig) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	e := &Engine{
		cfg:        cfg,
		mem:        postings.NewMemory(),
		writer:     segment.NewWriter(cfg.DataDir),
		tombstones: make(map[string]struct{}),
		logger:     slog.Default().With("component", "index-engine", "dir", cfg.DataDir),
	}
	if err := e.ReloadSegments(); err != nil {
		return nil, err
	}
	return e, nil
}

// Insert indexes v under docID, replacing any previous postings for the
// document and clearing its tombstone. It may trigger a synchronous
// flush when the memory index crosses its size or document thresholds.
func (e *Engine) Insert(docID string, v vector.Vector) error {
	e.mem.Insert(docID, v)
	e.tombMu.Lock()
	delete(e.tombstones, docID)
	e.tombMu.Unlock()
	if e.shouldFlush() {
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing after insert: %w", err)
		}
	}
	return nil
}

// Delete drops docID from the memory index and tombstones it so
// postings already flushed to segments stop surfacing.
func (e *Engine) Delete(docID string) {
	e.mem.Delete(docID)
	e.tombMu.Lock()
	e.tombstones[docID] = struct{}{}
	e.tombMu.Unlock()
}

func (e *Engine) deleted(docID string) bool {
	e.tombMu.RLock()
	_, ok := e.tombstones[docID]
	e.tombMu.RUnlock()
	return ok
}

func (e *Engine) shouldFlush() bool {
	if e.cfg.SegmentMaxSize > 0 && e.mem.Size() >= e.cfg.SegmentMaxSize {
		return true
	}
	return e.cfg.FlushThreshold > 0 && e.mem.DocCount() >= e.cfg.FlushThreshold
}

// Lookup returns the live postings for an exact lexeme, merged across
// the memory index and all segments. The newest posting wins per
// document; tombstoned documents are dropped.
func (e *Engine) Lookup(lexeme string) (postings.List, error) {
	seen := make(map[string]struct{})
	var out postings.List
	add := func(list postings.List) {
		for _, p := range list {
			if _, dup := seen[p.DocID]; dup {
				continue
			}
			seen[p.DocID] = struct{}{}
			if e.deleted(p.DocID) {
				continue
			}
			out = append(out, p)
		}
	}
	add(e.mem.Lookup(lexeme))
	for _, r := range e.snapshotReaders() {
		list, err := r.Lookup(lexeme)
		if err != nil {
			return nil, fmt.Errorf("segment lookup %q: %w", lexeme, err)
		}
		add(list)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out, nil
}

// LookupPrefix returns a merged TermEntry for every lexeme starting
// with prefix, across memory and segments, sorted by lexeme. The same
// newest-wins and tombstone rules as Lookup apply per document.
func (e *Engine) LookupPrefix(prefix string) ([]postings.TermEntry, error) {
	merged := make(map[string]postings.List)
	seen := make(map[string]map[string]struct{})
	add := func(entries []postings.TermEntry) {
		for _, te := range entries {
			docs := seen[te.Lexeme]
			if docs == nil {
				docs = make(map[string]struct{})
				seen[te.Lexeme] = docs
			}
			for _, p := range te.Postings {
				if _, dup := docs[p.DocID]; dup {
					continue
				}
				docs[p.DocID] = struct{}{}
				if e.deleted(p.DocID) {
					continue
				}
				merged[te.Lexeme] = append(merged[te.Lexeme], p)
			}
		}
	}
	add(e.mem.LookupPrefix(prefix))
	for _, r := range e.snapshotReaders() {
		entries, err := r.LookupPrefix(prefix)
		if err != nil {
			return nil, fmt.Errorf("segment prefix lookup %q: %w", prefix, err)
		}
		add(entries)
	}
	out := make([]postings.TermEntry, 0, len(merged))
	for lex, list := range merged {
		sort.Slice(list, func(i, j int) bool { return list[i].DocID < list[j].DocID })
		out = append(out, postings.TermEntry{Lexeme: lex, Postings: list})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lexeme < out[j].Lexeme })
	return out, nil
}

// snapshotReaders returns the open readers newest-first, so merge
// precedence follows write order.
func (e *Engine) snapshotReaders() []*segment.Reader {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	out := make([]*segment.Reader, len(e.readers))
	for i, r := range e.readers {
		out[len(e.readers)-1-i] = r
	}
	return out
}

// SetFlushObserver registers fn to be called after every non-empty
// flush attempt with its outcome. Must be set before StartFlushLoop
// or the first Insert.
func (e *Engine) SetFlushObserver(fn func(err error)) {
	e.onFlush = fn
}

// Flush drains the memory index into a new segment and registers a
// reader for it. Concurrent flushes are serialised; an empty memory
// index is a no-op.
func (e *Engine) Flush() error {
	flushed, err := e.flush()
	if e.onFlush != nil && (flushed || err != nil) {
		e.onFlush(err)
	}
	return err
}

func (e *Engine) flush() (bool, error) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	entries := e.mem.Drain()
	if len(entries) == 0 {
		return false, nil
	}
	name, err := e.writer.Write(entries)
	if err != nil {
		return true, fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
	if err != nil {
		return true, fmt.Errorf("opening new segment %s: %w", name, err)
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.readerMu.Unlock()
	e.logger.Info("segment flushed", "segment", name, "lexemes", len(entries))
	return true, nil
}

// StartFlushLoop flushes on the configured interval until ctx is
// cancelled, then performs a final flush.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	interval := e.cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(); err != nil {
					e.logger.Error("interval flush failed", "error", err)
				}
			}
		}
	}()
}

// ReloadSegments closes every open reader and re-scans the data
// directory. Unreadable segments are skipped with a warning so one
// corrupt file cannot take the shard down.
func (e *Engine) ReloadSegments() error {
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, r := range e.readers {
		r.Close()
	}
	e.readers = nil
	names, err := listSegments(e.cfg.DataDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Warn("skipping unreadable segment", "segment", name, "error", err)
			continue
		}
		e.readers = append(e.readers, reader)
	}
	if len(e.readers) > 0 {
		e.logger.Info("segments loaded", "count", len(e.readers))
	}
	return nil
}

// RefreshSegments opens segment files that appeared since the last
// scan. Existing readers stay open; segments are immutable, so a
// searcher can refresh while queries are in flight.
func (e *Engine) RefreshSegments() error {
	names, err := listSegments(e.cfg.DataDir)
	if err != nil {
		return err
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	open := make(map[string]struct{}, len(e.readers))
	for _, r := range e.readers {
		open[filepath.Base(r.Path())] = struct{}{}
	}
	added := 0
	for _, name := range names {
		if _, ok := open[name]; ok {
			continue
		}
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Warn("skipping unreadable segment", "segment", name, "error", err)
			continue
		}
		e.readers = append(e.readers, reader)
		added++
	}
	if added > 0 {
		e.logger.Info("new segments opened", "count", added)
	}
	return nil
}

func listSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading index directory: %w", err)
	}
	var names []string
	for _, ent := range entries {
		if !ent.IsDir() && strings.HasSuffix(ent.Name(), segment.FileSuffix) {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Stats reports the engine's current shape for health and debug
// endpoints.
type Stats struct {
	MemDocs     int   `json:"mem_docs"`
	MemLexemes  int   `json:"mem_lexemes"`
	MemBytes    int64 `json:"mem_bytes"`
	Segments    int   `json:"segments"`
	SegmentDocs int   `json:"segment_docs"`
	Tombstones  int   `json:"tombstones"`
}

// Stats returns a point-in-time snapshot of the engine's shape.
// SegmentDocs counts per-segment entries, so documents rewritten
// across segments are counted once per segment.
func (e *Engine) Stats() Stats {
	e.readerMu.RLock()
	segments := len(e.readers)
	segDocs := 0
	for _, r := range e.readers {
		segDocs += int(r.DocCount())
	}
	e.readerMu.RUnlock()
	e.tombMu.RLock()
	tombs := len(e.tombstones)
	e.tombMu.RUnlock()
	return Stats{
		MemDocs:     e.mem.DocCount(),
		MemLexemes:  e.mem.LexemeCount(),
		MemBytes:    e.mem.Size(),
		Segments:    segments,
		SegmentDocs: segDocs,
		Tombstones:  tombs,
	}
}

// Close flushes the memory index and releases every segment reader.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	var firstErr error
	for _, r := range e.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.readers = nil
	return firstErr
}
