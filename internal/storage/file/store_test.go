package file

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "documents.cbor.zst"))
	ctx := context.Background()
	records := []corpus.Record{
		{Text: "the cat sat"},
		{Text: "the dog ran", Metadata: map[string]any{"source": "wiki", "tags": map[string]any{"lang": "en"}}},
		{Text: "the cat sat"},
	}
	require.NoError(t, s.SaveDocuments(ctx, records))

	got, err := s.LoadDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "the dog ran", got[1].Text)
	assert.Equal(t, "wiki", got[1].Metadata["source"])
	assert.Equal(t, map[string]any{"lang": "en"}, got[1].Metadata["tags"])
	assert.Equal(t, got[0].Text, got[2].Text)

	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent")).LoadDocuments(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSaveEmptyKeepsPreviousFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "docs"))
	ctx := context.Background()
	require.NoError(t, s.SaveDocuments(ctx, []corpus.Record{{Text: "keep me"}}))

	assert.ErrorIs(t, s.SaveDocuments(ctx, nil), apperrors.ErrEmptyCorpus)
	got, err := s.LoadDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, "keep me", got[0].Text)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, os.WriteFile(path, []byte("definitely not zstd"), 0o644))
	_, err := New(path).LoadDocuments(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSaveHonoursCancellation(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "docs"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SaveDocuments(ctx, []corpus.Record{{Text: "x"}}), context.Canceled)
	_, err := s.LoadDocuments(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWatcherChanged(t *testing.T) {
	w := NewWatcher("/data/docs", 0, nil)
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create", fsnotify.Event{Name: "/data/docs", Op: fsnotify.Create}, true},
		{"write", fsnotify.Event{Name: "/data/docs", Op: fsnotify.Write}, true},
		{"rename", fsnotify.Event{Name: "/data/docs", Op: fsnotify.Rename}, true},
		{"chmod", fsnotify.Event{Name: "/data/docs", Op: fsnotify.Chmod}, false},
		{"temp file", fsnotify.Event{Name: "/data/docs.tmp", Op: fsnotify.Write}, false},
		{"other file", fsnotify.Event{Name: "/data/index.bm25", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.changed(tt.ev))
		})
	}
}

func TestWatcherFiresOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs")
	var calls atomic.Int32
	w := NewWatcher(path, 20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, New(path).SaveDocuments(context.Background(), []corpus.Record{{Text: "x"}}))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
