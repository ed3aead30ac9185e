// Package bm25 is the embeddable entry point of the search engine: add or
// load documents, then retrieve the best k for a free-text query.
//
//	s, err := bm25.New(bm25.Options{})
//	_, err = s.AddTexts(ctx, "the cat sat", "the dog ran")
//	results, err := s.Retrieve(ctx, "cat", 4, bm25.DefaultParams())
//
// Retrieval before the first add or load fails with ErrNotInitialized, which
// is distinct from a query that matches nothing.
package bm25

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

type (
	DocID         = corpus.DocID
	Record        = corpus.Record
	Document      = corpus.Document
	Result        = executor.Result
	Params        = ranker.Params
	Tokenizer     = tokenizer.Tokenizer
	DocumentStore = indexer.DocumentStore
	Retriever     = executor.Retriever
	Stats         = indexer.Stats
	SnapshotInfo  = segment.Header
)

var (
	ErrNotInitialized = apperrors.ErrNotInitialized
	ErrNotFound       = apperrors.ErrNotFound
	ErrEmptyCorpus    = apperrors.ErrEmptyCorpus
	ErrBusy           = apperrors.ErrBusy

	ErrSnapshotMismatch = apperrors.ErrSnapshotMismatch
	ErrCorruptSnapshot  = apperrors.ErrCorruptSnapshot
)

// DefaultParams returns k1 = 1.5, b = 0.75.
func DefaultParams() Params {
	return ranker.DefaultParams()
}

// Options configure a Store. The zero value is an in-memory store with the
// default tokenizer and tunables that queues concurrent writers. With
// Documents set, every successful add is saved before it becomes visible.
type Options struct {
	Tokenizer Tokenizer
	// Documents persists the document list; nil disables Load and Save.
	Documents DocumentStore
	// Params are the tunables of AsRetriever handles. Zero means default.
	Params Params
	// WritePolicy is "queue" or "reject".
	WritePolicy string
	// ManualSave stops the store from persisting the document list after
	// every non-empty add; Save must then be called explicitly.
	ManualSave  bool
	Incremental bool
	// SnapshotCompression is "zstd", "lz4" or "none".
	SnapshotCompression string
	PersistTimeout      time.Duration
}

// Store owns one engine and answers queries against its latest snapshot.
type Store struct {
	engine *indexer.Engine
	exec   *executor.Executor
}

func New(opts Options) (*Store, error) {
	engine, err := indexer.NewEngine(config.IndexerConfig{
		WritePolicy:         opts.WritePolicy,
		Incremental:         opts.Incremental,
		AutoSave:            opts.Documents != nil && !opts.ManualSave,
		SnapshotCompression: opts.SnapshotCompression,
		PersistTimeout:      opts.PersistTimeout,
	}, opts.Tokenizer, opts.Documents)
	if err != nil {
		return nil, err
	}
	params := opts.Params
	if params == (Params{}) {
		params = DefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Store{engine: engine, exec: executor.New(engine, params)}, nil
}

// AddDocuments appends records and returns the ids they were assigned. An
// empty slice changes nothing.
func (s *Store) AddDocuments(ctx context.Context, records []Record) ([]DocID, error) {
	if len(records) == 0 {
		return []DocID{}, nil
	}
	snap, err := s.engine.AddDocuments(ctx, records)
	if err != nil {
		return nil, err
	}
	first := snap.Corpus.Size() - len(records)
	ids := make([]DocID, len(records))
	for i := range ids {
		ids[i] = DocID(first + i)
	}
	return ids, nil
}

// AddTexts adds documents without metadata.
func (s *Store) AddTexts(ctx context.Context, texts ...string) ([]DocID, error) {
	records := make([]Record, len(texts))
	for i, text := range texts {
		records[i] = Record{Text: text}
	}
	return s.AddDocuments(ctx, records)
}

// Load replaces the corpus with the contents of the document store.
func (s *Store) Load(ctx context.Context) error {
	_, err := s.engine.Load(ctx)
	return err
}

// Save writes the corpus to the document store. An empty corpus is
// ErrEmptyCorpus.
func (s *Store) Save(ctx context.Context) error {
	return s.engine.Save(ctx)
}

// Retrieve returns up to k documents for query, best first.
func (s *Store) Retrieve(ctx context.Context, query string, k int, params Params) ([]Result, error) {
	return s.exec.Retrieve(ctx, query, k, params)
}

// AsRetriever returns a handle bound to k and the store's tunables.
func (s *Store) AsRetriever(k int) (*Retriever, error) {
	return s.exec.AsRetriever(k)
}

// Get returns a document by id.
func (s *Store) Get(id DocID) (Document, error) {
	return s.engine.Document(id)
}

// Size is the number of documents, 0 before initialisation.
func (s *Store) Size() int {
	return s.engine.Stats().Documents
}

func (s *Store) Stats() Stats {
	return s.engine.Stats()
}

// WriteSnapshot writes the index to path.
func (s *Store) WriteSnapshot(path string) (SnapshotInfo, error) {
	return s.engine.WriteSnapshot(path)
}

// RestoreSnapshot replaces the index with the one at path, which must have
// been written for the current corpus.
func (s *Store) RestoreSnapshot(ctx context.Context, path string) error {
	_, err := s.engine.RestoreSnapshot(ctx, path)
	return err
}

// VerifySnapshot reads the snapshot at path, checking its header and
// checksum, and returns its header.
func VerifySnapshot(path string) (SnapshotInfo, error) {
	_, header, err := segment.Read(path)
	return header, err
}
