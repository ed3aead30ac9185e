// Package indexer owns the published index snapshot. A single writer at a
// time derives a new corpus and index from the current snapshot and swaps
// the result in atomically; readers load the pointer once per query and so
// always see one consistent corpus/index pair.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/resilience"
)

// DocumentStore persists the document list. LoadDocuments fails with
// ErrNotFound when nothing was ever saved; SaveDocuments fails with
// ErrEmptyCorpus when given no records.
type DocumentStore interface {
	LoadDocuments(ctx context.Context) ([]corpus.Record, error)
	SaveDocuments(ctx context.Context, records []corpus.Record) error
}

// Snapshot is one published version of the engine state. Neither the corpus
// nor the index of a snapshot changes after publication.
type Snapshot struct {
	ID        uuid.UUID
	Seq       uint64
	Corpus    *corpus.Store
	Index     *index.Index
	CreatedAt time.Time
}

// Stats summarises the published snapshot.
type Stats struct {
	Initialized   bool      `json:"initialized"`
	SnapshotID    string    `json:"snapshot_id,omitempty"`
	Seq           uint64    `json:"seq"`
	Documents     int       `json:"documents"`
	Terms         int       `json:"terms"`
	TotalLength   int64     `json:"total_length"`
	AverageLength float64   `json:"average_length"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

type Engine struct {
	current   atomic.Pointer[Snapshot]
	writeMu   sync.Mutex
	seq       uint64
	cfg       config.IndexerConfig
	tokenizer tokenizer.Tokenizer
	store     DocumentStore
	writer    *segment.Writer
	metrics   *metrics.Metrics
	onPublish []func(*Snapshot)
	logger    *slog.Logger
}

// NewEngine creates an uninitialised engine. store may be nil, in which case
// Load and Save are unavailable and nothing is persisted automatically.
func NewEngine(cfg config.IndexerConfig, tok tokenizer.Tokenizer, store DocumentStore) (*Engine, error) {
	switch cfg.WritePolicy {
	case "":
		cfg.WritePolicy = config.WritePolicyQueue
	case config.WritePolicyQueue, config.WritePolicyReject:
	default:
		return nil, fmt.Errorf("%w: unknown write policy %q", apperrors.ErrInvalidInput, cfg.WritePolicy)
	}
	compression, err := segment.ParseCompressionTag(cfg.SnapshotCompression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if tok == nil {
		tok = tokenizer.Default
	}
	return &Engine{
		cfg:       cfg,
		tokenizer: tok,
		store:     store,
		writer:    segment.NewWriter(compression),
		logger:    slog.Default().With("component", "indexer"),
	}, nil
}

// SetMetrics attaches collectors. Call before the engine is shared.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// OnPublish registers fn to run after every snapshot publication, on the
// writer's goroutine. Call before the engine is shared.
func (e *Engine) OnPublish(fn func(*Snapshot)) {
	e.onPublish = append(e.onPublish, fn)
}

// Tokenizer returns the tokenizer used for documents; queries must use the
// same one.
func (e *Engine) Tokenizer() tokenizer.Tokenizer {
	return e.tokenizer
}

// Current returns the published snapshot, or ErrNotInitialized before the
// first successful AddDocuments, Load or RestoreSnapshot.
func (e *Engine) Current() (*Snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, apperrors.ErrNotInitialized
	}
	return snap, nil
}

// Document returns a document of the published snapshot.
func (e *Engine) Document(id corpus.DocID) (corpus.Document, error) {
	snap, err := e.Current()
	if err != nil {
		return corpus.Document{}, err
	}
	return snap.Corpus.Get(id)
}

// Stats describes the published snapshot.
func (e *Engine) Stats() Stats {
	snap := e.current.Load()
	if snap == nil {
		return Stats{}
	}
	cs := snap.Corpus.Stats()
	return Stats{
		Initialized:   true,
		SnapshotID:    snap.ID.String(),
		Seq:           snap.Seq,
		Documents:     cs.Documents,
		Terms:         snap.Index.TermCount(),
		TotalLength:   cs.TotalLength,
		AverageLength: cs.AverageLength,
		CreatedAt:     snap.CreatedAt,
	}
}

// AddDocuments appends records to the corpus, rebuilds the index and
// publishes the result. With auto-save enabled the full document list is
// persisted before publication; if that fails nothing is published. An
// empty batch is a no-op and returns the current snapshot, which is nil
// for an uninitialised engine.
func (e *Engine) AddDocuments(ctx context.Context, records []corpus.Record) (*Snapshot, error) {
	if len(records) == 0 {
		return e.current.Load(), nil
	}
	unlock, err := e.lockWriter()
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	base := corpus.Empty()
	var baseIdx *index.Index
	if prev := e.current.Load(); prev != nil {
		base, baseIdx = prev.Corpus, prev.Index
	}
	next := base.Add(records, e.tokenizer)
	var idx *index.Index
	if e.cfg.Incremental {
		idx = index.Extend(baseIdx, next, corpus.DocID(base.Size()))
	} else {
		idx = index.Build(next)
	}

	if e.cfg.AutoSave && e.store != nil {
		if err := e.persist(ctx, next.Records()); err != nil {
			e.countRebuild("failed")
			return nil, fmt.Errorf("saving documents: %w", err)
		}
	}

	snap := e.publish(next, idx, start)
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(len(records)))
	}
	e.logger.Info("documents added",
		"added", len(records),
		"documents", next.Size(),
		"terms", idx.TermCount(),
		"seq", snap.Seq,
	)
	return snap, nil
}

// Load replaces the corpus with the records of the document store and
// publishes a freshly built index. An empty document list publishes an
// initialised, empty snapshot.
func (e *Engine) Load(ctx context.Context) (*Snapshot, error) {
	snap, _, err := e.load(ctx, false)
	return snap, err
}

// Reload is Load for change notifications: when the stored records equal
// the published ones the current snapshot is kept and changed is false.
func (e *Engine) Reload(ctx context.Context) (snap *Snapshot, changed bool, err error) {
	return e.load(ctx, true)
}

func (e *Engine) load(ctx context.Context, skipUnchanged bool) (*Snapshot, bool, error) {
	if e.store == nil {
		return nil, false, fmt.Errorf("%w: no document store configured", apperrors.ErrInvalidInput)
	}
	unlock, err := e.lockWriter()
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	start := time.Now()
	var records []corpus.Record
	err = e.withPersistTimeout(ctx, "load documents", func(ctx context.Context) error {
		var loadErr error
		records, loadErr = e.store.LoadDocuments(ctx)
		return loadErr
	})
	if err != nil {
		e.countRebuild("failed")
		return nil, false, fmt.Errorf("loading documents: %w", err)
	}
	if prev := e.current.Load(); skipUnchanged && prev != nil && sameRecords(prev.Corpus, records) {
		e.logger.Debug("document store unchanged", "documents", len(records), "seq", prev.Seq)
		return prev, false, nil
	}
	c := corpus.Empty().Add(records, e.tokenizer)
	snap := e.publish(c, index.Build(c), start)
	e.logger.Info("documents loaded",
		"documents", c.Size(),
		"terms", snap.Index.TermCount(),
		"seq", snap.Seq,
	)
	return snap, true, nil
}

// Save persists the current document list.
func (e *Engine) Save(ctx context.Context) error {
	snap := e.current.Load()
	if snap == nil || snap.Corpus.Size() == 0 {
		return apperrors.ErrEmptyCorpus
	}
	if e.store == nil {
		return fmt.Errorf("%w: no document store configured", apperrors.ErrInvalidInput)
	}
	if err := e.persist(ctx, snap.Corpus.Records()); err != nil {
		return fmt.Errorf("saving documents: %w", err)
	}
	e.logger.Info("documents saved", "documents", snap.Corpus.Size(), "seq", snap.Seq)
	return nil
}

// SnapshotPath is where WriteSnapshot writes when given an empty path.
func (e *Engine) SnapshotPath() string {
	return filepath.Join(e.cfg.DataDir, e.cfg.SnapshotFile)
}

// WriteSnapshot writes the published index to path.
func (e *Engine) WriteSnapshot(path string) (segment.Header, error) {
	snap, err := e.Current()
	if err != nil {
		return segment.Header{}, err
	}
	if path == "" {
		path = e.SnapshotPath()
	}
	if path == "" || path == "." {
		return segment.Header{}, fmt.Errorf("%w: no snapshot path configured", apperrors.ErrInvalidInput)
	}
	header, err := e.writer.Write(path, snap.Index)
	if err != nil {
		return segment.Header{}, fmt.Errorf("writing index snapshot: %w", err)
	}
	e.logger.Info("index snapshot written",
		"path", path,
		"seq", snap.Seq,
		"documents", header.DocCount,
		"terms", header.TermCount,
		"compression", header.Compression.String(),
		"bytes", header.StoredSize+uint64(segment.HeaderSize),
	)
	return header, nil
}

// RestoreSnapshot replaces the published index with the one stored at path.
// The snapshot must have been written for the current corpus: same document
// count and the same length for every document, otherwise
// ErrSnapshotMismatch is returned and nothing changes.
func (e *Engine) RestoreSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	if path == "" {
		path = e.SnapshotPath()
	}
	unlock, err := e.lockWriter()
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev := e.current.Load()
	if prev == nil {
		return nil, apperrors.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	idx, _, err := segment.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading index snapshot: %w", err)
	}
	if err := matchCorpus(idx, prev.Corpus); err != nil {
		return nil, err
	}
	snap := e.publish(prev.Corpus, idx, start)
	e.logger.Info("index snapshot restored", "path", path, "seq", snap.Seq)
	return snap, nil
}

func matchCorpus(idx *index.Index, c *corpus.Store) error {
	if idx.DocCount() != c.Size() {
		return fmt.Errorf("%w: snapshot has %d documents, corpus has %d",
			apperrors.ErrSnapshotMismatch, idx.DocCount(), c.Size())
	}
	for id := corpus.DocID(0); int(id) < c.Size(); id++ {
		if idx.DocLength(id) != c.Length(id) {
			return fmt.Errorf("%w: document %d length differs", apperrors.ErrSnapshotMismatch, id)
		}
	}
	return nil
}

func (e *Engine) lockWriter() (func(), error) {
	if e.cfg.WritePolicy == config.WritePolicyReject {
		if !e.writeMu.TryLock() {
			e.countRebuild("rejected")
			return nil, apperrors.ErrBusy
		}
		return e.writeMu.Unlock, nil
	}
	e.writeMu.Lock()
	return e.writeMu.Unlock, nil
}

// publish must be called with writeMu held.
func (e *Engine) publish(c *corpus.Store, idx *index.Index, start time.Time) *Snapshot {
	e.seq++
	snap := &Snapshot{
		ID:        uuid.New(),
		Seq:       e.seq,
		Corpus:    c,
		Index:     idx,
		CreatedAt: time.Now(),
	}
	e.current.Store(snap)

	if e.metrics != nil {
		e.metrics.IndexRebuildsTotal.WithLabelValues("published").Inc()
		e.metrics.IndexRebuildDuration.Observe(time.Since(start).Seconds())
		e.metrics.CorpusDocuments.Set(float64(c.Size()))
		e.metrics.IndexTerms.Set(float64(idx.TermCount()))
		e.metrics.SnapshotSequence.Set(float64(snap.Seq))
	}
	for _, fn := range e.onPublish {
		fn(snap)
	}
	return snap
}

func (e *Engine) persist(ctx context.Context, records []corpus.Record) error {
	return e.withPersistTimeout(ctx, "save documents", func(ctx context.Context) error {
		return e.store.SaveDocuments(ctx, records)
	})
}

func (e *Engine) withPersistTimeout(ctx context.Context, name string, fn func(context.Context) error) error {
	err := resilience.Bounded(ctx, e.cfg.PersistTimeout, name, fn)
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, apperrors.ErrTimeout) {
		return fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	return err
}

func (e *Engine) countRebuild(status string) {
	if e.metrics != nil {
		e.metrics.IndexRebuildsTotal.WithLabelValues(status).Inc()
	}
}

// sameRecords reports whether records hold exactly the documents of c in
// order. Metadata whose types changed in a store round trip counts as
// different.
func sameRecords(c *corpus.Store, records []corpus.Record) bool {
	if c.Size() != len(records) {
		return false
	}
	for i, r := range c.Records() {
		if r.Text != records[i].Text {
			return false
		}
		if len(r.Metadata) == 0 && len(records[i].Metadata) == 0 {
			continue
		}
		if !reflect.DeepEqual(r.Metadata, records[i].Metadata) {
			return false
		}
	}
	return true
}
