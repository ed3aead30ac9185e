package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/resilience"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	gets int
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (b *memBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.err != nil {
		return nil, false, b.err
	}
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.data[key] = value
	return nil
}

func (b *memBackend) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:      "cat dog",
		SnapshotID: "snap-1",
		TotalHits:  2,
		Results: []ranker.ScoredDoc{
			{DocID: 0, Score: 0.6931471805599453},
			{DocID: 1, Score: 0.6931471805599453},
		},
		TermStats: map[string]int{"cat": 1, "dog": 1},
	}
}

func TestKey(t *testing.T) {
	terms := []ranker.QueryTerm{{Term: "cat", Count: 1}, {Term: "dog", Count: 2}}
	p := ranker.DefaultParams()

	key := Key("snap-1", terms, 4, p)
	assert.True(t, strings.HasPrefix(key, "bm25:search:snap-1:"))
	assert.Equal(t, key, Key("snap-1", terms, 4, p))

	assert.NotEqual(t, key, Key("snap-2", terms, 4, p))
	assert.NotEqual(t, key, Key("snap-1", terms, 5, p))
	assert.NotEqual(t, key, Key("snap-1", terms, 4, ranker.Params{K1: 1.2, B: 0.75}))
	assert.NotEqual(t, key, Key("snap-1", []ranker.QueryTerm{{Term: "cat", Count: 1}, {Term: "dog", Count: 1}}, 4, p))
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(newMemBackend(), time.Minute, m)
	ctx := context.Background()
	var computed int

	compute := func(context.Context) (*executor.SearchResult, error) {
		computed++
		return sampleResult(), nil
	}

	first, hit, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, computed)
	assert.Equal(t, first, second)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestGetOrComputePropagatesErrors(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	var computed atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "same", func(context.Context) (*executor.SearchResult, error) {
				computed.Add(1)
				<-release
				return sampleResult(), nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	// Late arrivals may find the stored value or join the flight; either
	// way compute cannot run once per caller.
	assert.Less(t, computed.Load(), int32(8))
}

func TestCancelledCallerDoesNotFailWaiters(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return sampleResult(), nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, "k", compute)
		leaderErr <- err
	}()
	<-started

	waiter := make(chan *executor.SearchResult, 1)
	go func() {
		res, _, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*executor.SearchResult, error) {
			t.Error("waiter must join the running computation")
			return nil, nil
		})
		assert.NoError(t, err)
		waiter <- res
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)
	res := <-waiter
	require.NotNil(t, res)
	assert.Equal(t, 2, res.TotalHits)

	cached, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, res, cached)
}

func TestBackendFailureIsAMiss(t *testing.T) {
	backend := newMemBackend()
	backend.err = errors.New("connection refused")
	m := metrics.New(prometheus.NewRegistry())
	c := New(backend, time.Minute, m)

	for i := 0; i < 10; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*executor.SearchResult, error) {
			return sampleResult(), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 2, res.TotalHits)
	}
	// Get and Set both fail, so the fifth failure is the third Get; the
	// breaker then stops calling the backend.
	assert.Equal(t, 3, backend.gets)
	assert.Equal(t, resilience.StateOpen, c.BreakerState())
	assert.Equal(t, float64(resilience.StateOpen),
		testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("result-cache")))
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	terms := []ranker.QueryTerm{{Term: "cat", Count: 1}}

	c.Set(ctx, Key("a", terms, 1, ranker.DefaultParams()), sampleResult())
	c.Set(ctx, Key("b", terms, 1, ranker.DefaultParams()), sampleResult())

	require.NoError(t, c.Invalidate(ctx, "a"))
	_, ok := c.Get(ctx, Key("a", terms, 1, ranker.DefaultParams()))
	assert.False(t, ok)
	_, ok = c.Get(ctx, Key("b", terms, 1, ranker.DefaultParams()))
	assert.True(t, ok)

	require.NoError(t, c.Invalidate(ctx, ""))
	assert.Empty(t, backend.data)
}
