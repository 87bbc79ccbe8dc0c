// Package cache caches search results in Redis. Equal requests
// collapse onto one execution via singleflight, and a circuit breaker
// turns a failing Redis into a fast pass-through instead of a
// per-request timeout.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/arktext/textsearch/internal/search/executor"
	"github.com/arktext/textsearch/pkg/config"
	pkgredis "github.com/arktext/textsearch/pkg/redis"
	"github.com/arktext/textsearch/pkg/resilience"
)

const keyPrefix = "search:"

type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for an equivalent request, if any.
func (c *QueryCache) Get(ctx context.Context, req *executor.Request) (*executor.Result, bool) {
	key := buildKey(req)
	var (
		data string
		miss bool
	)
	err := c.breaker.Execute(func() error {
		val, err := c.client.Get(ctx, key)
		if err != nil {
			if pkgredis.IsNilError(err) {
				miss = true
				return nil
			}
			return err
		}
		data = val
		return nil
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	if miss {
		c.misses.Add(1)
		return nil, false
	}
	var result executor.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", req.Query, "key", key)
	return &result, true
}

// Set stores a result under the request's key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, req *executor.Request, result *executor.Result) {
	key := buildKey(req)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes and stores it.
// Concurrent equal requests share a single computation. The second
// return value reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req *executor.Request,
	computeFn func() (*executor.Result, error),
) (*executor.Result, bool, error) {
	if result, ok := c.Get(ctx, req); ok {
		return result, true, nil
	}
	key := buildKey(req)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, req); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, req, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.Result), false, nil
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats reports hit and miss counts since startup.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes every request field that affects the result, so two
// requests share a key only when their responses are interchangeable.
func buildKey(req *executor.Request) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%d|%v|%t|%v",
		normalizeQuery(req.Query),
		req.Mode, req.Ranker, req.Limit, req.Norm, req.Scheme,
		req.Headline, req.HeadlineOpts)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
