package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/resilience"
)

var fastRetry = resilience.RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

type flakyStore struct {
	memStore
	failures int
	calls    int
}

func (s *flakyStore) LoadDocuments(ctx context.Context) ([]corpus.Record, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection refused")
	}
	return s.memStore.LoadDocuments(ctx)
}

func TestWarmRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{memStore: memStore{records: recs("alpha", "beta")}, failures: 2}
	e := newEngine(t, testConfig(t), store)

	require.NoError(t, Warm(context.Background(), e, fastRetry))
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, 2, e.Stats().Documents)
}

func TestWarmEmptyStoreStaysUninitialized(t *testing.T) {
	store := &flakyStore{}
	e := newEngine(t, testConfig(t), store)

	require.NoError(t, Warm(context.Background(), e, fastRetry))
	assert.Equal(t, 1, store.calls)
	_, err := e.Current()
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
}

func TestWarmGivesUp(t *testing.T) {
	store := &flakyStore{failures: 10}
	e := newEngine(t, testConfig(t), store)

	assert.Error(t, Warm(context.Background(), e, fastRetry))
	assert.Equal(t, 4, store.calls)
}

func TestWarmWithoutStore(t *testing.T) {
	e := newEngine(t, testConfig(t), nil)
	assert.NoError(t, Warm(context.Background(), e, fastRetry))
	assert.False(t, e.Stats().Initialized)
}
