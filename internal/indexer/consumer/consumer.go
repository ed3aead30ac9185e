// Package consumer connects the engine to Kafka: the indexer service adds
// ingest batches, and searcher replicas reload their corpus when another
// process announces a new snapshot.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/resilience"
)

// EventTypeIndexComplete is the event-type header of IndexCompleteEvent.
const EventTypeIndexComplete = "index.complete"

// Writer is the part of the engine the ingest handler drives.
type Writer interface {
	AddDocuments(ctx context.Context, records []corpus.Record) (*indexer.Snapshot, error)
}

// Reloader is the part of the engine the reload handler drives.
type Reloader interface {
	Stats() indexer.Stats
	Load(ctx context.Context) (*indexer.Snapshot, error)
}

// IndexedFunc is called after an ingest batch has been published.
type IndexedFunc func(ctx context.Context, batchID string, snap *indexer.Snapshot) error

// busyRetry retries a batch the engine rejected because another writer held
// the lock.
var busyRetry = resilience.RetryConfig{
	MaxAttempts:  5,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Retryable: func(err error) bool {
		return errors.Is(err, apperrors.ErrBusy)
	},
}

// HandleIngest returns a MessageHandler that adds each ingest batch to w.
// Undecodable or empty batches are skipped; persistence failures are
// returned so the message is redelivered.
func HandleIngest(w Writer, onIndexed IndexedFunc) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](msg.Value)
		if err != nil {
			logger.Error("failed to decode ingest event", "error", err, "key", string(msg.Key))
			return err
		}
		if len(event.Documents) == 0 {
			return fmt.Errorf("%w: batch %s has no documents", kafka.ErrSkip, event.BatchID)
		}
		req := ingestion.IngestRequest{Documents: event.Documents}
		var snap *indexer.Snapshot
		err = resilience.Retry(ctx, "index batch", busyRetry, func() error {
			var addErr error
			snap, addErr = w.AddDocuments(ctx, req.Records())
			return addErr
		})
		if err != nil {
			return fmt.Errorf("indexing batch %s: %w", event.BatchID, err)
		}
		logger.Info("batch indexed",
			"batch_id", event.BatchID,
			"documents", len(event.Documents),
			"corpus_size", snap.Corpus.Size(),
			"seq", snap.Seq,
			"lag", time.Since(event.IngestedAt).Round(time.Millisecond),
		)
		if onIndexed != nil {
			if err := onIndexed(ctx, event.BatchID, snap); err != nil {
				logger.Warn("post-index hook failed", "batch_id", event.BatchID, "error", err)
			}
		}
		return nil
	}
}

// CompletionEvent describes snap for the index-complete topic.
func CompletionEvent(batchID string, snap *indexer.Snapshot, snapshotPath string) kafka.Event {
	return kafka.Event{
		Key:  snap.ID.String(),
		Type: EventTypeIndexComplete,
		Value: ingestion.IndexCompleteEvent{
			BatchID:      batchID,
			SnapshotID:   snap.ID.String(),
			Seq:          snap.Seq,
			Documents:    snap.Corpus.Size(),
			Terms:        snap.Index.TermCount(),
			SnapshotPath: snapshotPath,
			CompletedAt:  time.Now().UTC(),
		},
	}
}

// HandleIndexComplete returns a MessageHandler that reloads r from its
// document store whenever the announced corpus size differs from the one
// r has published.
func HandleIndexComplete(r Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := kafka.DecodeJSON[ingestion.IndexCompleteEvent](msg.Value)
		if err != nil {
			logger.Error("failed to decode index-complete event", "error", err)
			return err
		}
		stats := r.Stats()
		if stats.Initialized && stats.Documents == event.Documents {
			logger.Debug("corpus already current", "documents", stats.Documents, "snapshot_id", event.SnapshotID)
			return nil
		}
		snap, err := r.Load(ctx)
		if err != nil {
			return fmt.Errorf("reloading after snapshot %s: %w", event.SnapshotID, err)
		}
		logger.Info("corpus reloaded",
			"announced_snapshot", event.SnapshotID,
			"documents", snap.Corpus.Size(),
			"seq", snap.Seq,
		)
		return nil
	}
}
