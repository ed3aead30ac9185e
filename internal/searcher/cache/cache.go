// Package cache stores ranked search results per index snapshot. Keys embed
// the snapshot id, so a publication makes older entries unreachable without
// an explicit flush; they expire with their TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/codec"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/resilience"
)

const (
	keyPrefix      = "bm25:search:"
	computeTimeout = 10 * time.Second
)

// Backend is the key-value store behind the cache. *redis.Client from
// pkg/redis implements it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over backend. Backend failures never fail a search:
// they count as misses, and after repeated failures the circuit breaker
// stops calling the backend for a while.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
		// Cancelled requests do not count against the backend.
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("result-cache", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key identifies a search: the snapshot, the distinct query terms with their
// counts, k and the tunables. Queries that tokenize identically share a key.
func Key(snapshotID string, terms []ranker.QueryTerm, k int, p ranker.Params) string {
	var b strings.Builder
	for _, qt := range terms {
		b.WriteString(qt.Term)
		b.WriteByte(0)
		b.WriteString(strconv.Itoa(qt.Count))
		b.WriteByte(0)
	}
	fmt.Fprintf(&b, "k=%d|k1=%s|b=%s", k,
		strconv.FormatFloat(p.K1, 'g', -1, 64),
		strconv.FormatFloat(p.B, 'g', -1, 64))
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%s:%x", keyPrefix, snapshotID, hash[:16])
}

// Get returns the cached result for key, if any.
func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	var found bool
	err := c.breaker.Execute(func() error {
		var getErr error
		data, found, getErr = c.backend.Get(ctx, key)
		return getErr
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if !found {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := codec.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache decode failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

// Set stores result under key.
func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := codec.Marshal(result)
	if err != nil {
		c.logger.Error("cache encode failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key or computes, stores and
// returns it. Concurrent misses on one key run compute once, under a context
// that outlives any single caller and expires after computeTimeout. A caller
// that gives up gets its own context error; the others keep waiting. The
// boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		result, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		c.Set(cctx, key, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.(*executor.SearchResult), false, nil
	}
}

// Invalidate removes the entries of one snapshot, or every entry when
// snapshotID is empty.
func (c *QueryCache) Invalidate(ctx context.Context, snapshotID string) error {
	prefix := keyPrefix
	if snapshotID != "" {
		prefix += snapshotID + ":"
	}
	deleted, err := c.backend.DeletePrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "prefix", prefix, "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BreakerState reports the circuit breaker guarding the backend.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}
