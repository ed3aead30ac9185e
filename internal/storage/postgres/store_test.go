package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/postgres"
)

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "bm25search_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "bm25search"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoreRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	name := "test-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	s := NewStore(db, name)
	require.NoError(t, s.EnsureSchema(ctx))
	t.Cleanup(func() {
		db.DB.Exec(`DELETE FROM corpus_documents WHERE corpus = $1`, name)
	})

	_, err := s.LoadDocuments(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, s.SaveDocuments(ctx, nil), apperrors.ErrEmptyCorpus)

	require.NoError(t, s.SaveDocuments(ctx, []corpus.Record{
		{Text: "first"},
		{Text: "second", Metadata: map[string]any{"source": "wiki"}},
	}))
	require.NoError(t, s.SaveDocuments(ctx, []corpus.Record{
		{Text: "replaced"},
		{Text: "second", Metadata: map[string]any{"source": "wiki"}},
		{Text: "third"},
	}))

	got, err := s.LoadDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "replaced", got[0].Text)
	assert.Equal(t, "wiki", got[1].Metadata["source"])
	assert.Nil(t, got[2].Metadata)
}
