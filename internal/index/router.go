package index

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/arktext/textsearch/pkg/config"
)

// Router fans documents out to per-shard engines keyed by the shard ID
// assigned at ingest time.
type Router struct {
	engines   map[int]*Engine
	numShards int
	logger    *slog.Logger
}

// NewRouter creates one engine per shard under cfg.DataDir, each in its
// own shard-N subdirectory.
func NewRouter(cfg config.IndexConfig) (*Router, error) {
	numShards := cfg.NumShards
	if numShards <= 0 {
		numShards = 1
	}
	r := &Router{
		engines:   make(map[int]*Engine, numShards),
		numShards: numShards,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for shardID := 0; shardID < numShards; shardID++ {
		shardCfg := cfg
		shardCfg.DataDir = filepath.Join(cfg.DataDir, fmt.Sprintf("shard-%d", shardID))
		engine, err := NewEngine(shardCfg)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("creating engine for shard %d: %w", shardID, err)
		}
		r.engines[shardID] = engine
	}
	r.logger.Info("shard router ready", "shards", numShards)
	return r, nil
}

// ShardFor assigns a document ID to a shard. The ingest publisher and
// the index consumers must agree on this mapping.
func ShardFor(docID string, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	sum := sha256.Sum256([]byte(docID))
	n := binary.BigEndian.Uint64(sum[:8])
	return int(n % uint64(numShards))
}

// Engine returns the engine that owns shardID.
func (r *Router) Engine(shardID int) (*Engine, error) {
	engine, ok := r.engines[shardID]
	if !ok {
		return nil, fmt.Errorf("no engine for shard %d", shardID)
	}
	return engine, nil
}

// EngineFor returns the engine that owns docID.
func (r *Router) EngineFor(docID string) *Engine {
	return r.engines[ShardFor(docID, r.numShards)]
}

// All returns every engine keyed by shard ID.
func (r *Router) All() map[int]*Engine {
	return r.engines
}

// NumShards returns the number of shards this router manages.
func (r *Router) NumShards() int {
	return r.numShards
}

// StartFlushLoops starts each engine's background flush loop.
func (r *Router) StartFlushLoops(ctx context.Context) {
	for _, engine := range r.engines {
		engine.StartFlushLoop(ctx)
	}
}

// FlushAll flushes every shard, returning the first error encountered
// after attempting all of them.
func (r *Router) FlushAll() error {
	var firstErr error
	for shardID, engine := range r.engines {
		if err := engine.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flushing shard %d: %w", shardID, err)
		}
	}
	return firstErr
}

// ReloadAll re-scans every shard's segment directory.
func (r *Router) ReloadAll() error {
	var firstErr error
	for shardID, engine := range r.engines {
		if err := engine.ReloadSegments(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reloading shard %d: %w", shardID, err)
		}
	}
	return firstErr
}

// RefreshAll opens newly flushed segments on every shard without
// disturbing readers already open.
func (r *Router) RefreshAll() error {
	var firstErr error
	for shardID, engine := range r.engines {
		if err := engine.RefreshSegments(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("refreshing shard %d: %w", shardID, err)
		}
	}
	return firstErr
}

// Close closes every engine, returning the first error encountered
// after attempting all of them.
func (r *Router) Close() error {
	var firstErr error
	for _, engine := range r.engines {
		if engine == nil {
			continue
		}
		if err := engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
