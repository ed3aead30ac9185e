package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

func openStore(t *testing.T, path, name string) *Store {
	t.Helper()
	s, err := Open(path, name)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "docs.db"), "default")
	ctx := context.Background()

	_, err := s.LoadDocuments(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, s.SaveDocuments(ctx, nil), apperrors.ErrEmptyCorpus)

	records := []corpus.Record{
		{Text: "the cat sat"},
		{Text: "the dog ran", Metadata: map[string]any{"source": "wiki", "rank": 2.0}},
	}
	require.NoError(t, s.SaveDocuments(ctx, records))
	got, err := s.LoadDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	require.NoError(t, s.SaveDocuments(ctx, records[:1]))
	got, err = s.LoadDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCorporaAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	a := openStore(t, path, "a")
	ctx := context.Background()
	require.NoError(t, a.SaveDocuments(ctx, []corpus.Record{{Text: "only in a"}}))
	require.NoError(t, a.Close())

	b := openStore(t, path, "b")
	_, err := b.LoadDocuments(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReopenKeepsDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	ctx := context.Background()
	first := openStore(t, path, "default")
	require.NoError(t, first.SaveDocuments(ctx, []corpus.Record{{Text: "persisted"}}))
	require.NoError(t, first.Close())

	second := openStore(t, path, "default")
	got, err := second.LoadDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got[0].Text)
}
