// Package benchmark contains Go benchmarks for the tokenizer, the inverted
// index, the snapshot codec and the search pipeline, measuring throughput
// and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
)

var vocabulary = []string{"inverted", "search", "posting", "corpus", "indexing", "query", "engine", "ranking"}

func records(n int) []corpus.Record {
	out := make([]corpus.Record, n)
	for i := range out {
		out[i] = corpus.Record{Text: fmt.Sprintf("document about %s and %s covers %s %s in production systems",
			vocabulary[i%len(vocabulary)], vocabulary[(i+1)%len(vocabulary)],
			vocabulary[(i+2)%len(vocabulary)], vocabulary[(i+3)%len(vocabulary)])}
	}
	return out
}

func newEngine(b *testing.B, incremental bool) *indexer.Engine {
	b.Helper()
	engine, err := indexer.NewEngine(config.IndexerConfig{
		DataDir:             b.TempDir(),
		SnapshotFile:        "index.bm25",
		SnapshotCompression: "zstd",
		Incremental:         incremental,
	}, tokenizer.Default, nil)
	if err != nil {
		b.Fatal(err)
	}
	return engine
}

// BenchmarkIndexBuild measures a full index rebuild at several corpus sizes.
func BenchmarkIndexBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		c := corpus.Empty().Add(records(n), tokenizer.Default)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				idx := index.Build(c)
				_ = idx
			}
		})
	}
}

// BenchmarkEngineAdd compares adding a small batch to a preloaded corpus
// with a full rebuild against incremental extension.
func BenchmarkEngineAdd(b *testing.B) {
	for _, incremental := range []bool{false, true} {
		for _, preload := range []int{1000, 10000} {
			b.Run(fmt.Sprintf("incremental_%t/preload_%d", incremental, preload), func(b *testing.B) {
				engine := newEngine(b, incremental)
				ctx := context.Background()
				if _, err := engine.AddDocuments(ctx, records(preload)); err != nil {
					b.Fatal(err)
				}
				batch := records(10)

				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := engine.AddDocuments(ctx, batch); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkSnapshotWrite measures encoding, compressing and writing the
// index of 10 000 documents.
func BenchmarkSnapshotWrite(b *testing.B) {
	c := corpus.Empty().Add(records(10000), tokenizer.Default)
	idx := index.Build(c)
	for _, tag := range []segment.CompressionTag{segment.CompressionNone, segment.CompressionLZ4, segment.CompressionZstd} {
		b.Run(tag.String(), func(b *testing.B) {
			w := segment.NewWriter(tag)
			path := filepath.Join(b.TempDir(), "index.bm25")
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := w.Write(path, idx); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSnapshotRead measures reading and verifying a snapshot.
func BenchmarkSnapshotRead(b *testing.B) {
	c := corpus.Empty().Add(records(10000), tokenizer.Default)
	idx := index.Build(c)
	path := filepath.Join(b.TempDir(), "index.bm25")
	if _, err := segment.NewWriter(segment.CompressionZstd).Write(path, idx); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := segment.Read(path); err != nil {
			b.Fatal(err)
		}
	}
}
