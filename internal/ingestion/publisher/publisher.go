// Package publisher hands validated ingest batches to the indexing pipeline,
// either by queueing them on Kafka or by adding them to an in-process engine.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/kafka"
)

// EventTypeIngest is the event-type header of ingest batches.
const EventTypeIngest = "ingest.batch"

// EventProducer publishes a single event. *kafka.Producer implements it.
type EventProducer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher queues ingest batches on a Kafka topic for the indexer service.
type Publisher struct {
	producer EventProducer
	now      func() time.Time
	logger   *slog.Logger
}

func New(producer EventProducer) *Publisher {
	return &Publisher{
		producer: producer,
		now:      time.Now,
		logger:   slog.Default().With("component", "ingestion-publisher"),
	}
}

// Ingest publishes req as one event keyed by a fresh batch id. Ids are
// assigned later by the indexer, so the response only reports QUEUED.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	batchID := uuid.New().String()
	event := ingestion.IngestEvent{
		BatchID:    batchID,
		Documents:  req.Documents,
		IngestedAt: p.now().UTC(),
	}
	err := p.producer.Publish(ctx, kafka.Event{
		Key:   batchID,
		Type:  EventTypeIngest,
		Value: event,
	})
	if err != nil {
		return nil, fmt.Errorf("publishing ingest batch %s: %w", batchID, err)
	}
	p.logger.Info("ingest batch queued", "batch_id", batchID, "documents", len(req.Documents))
	return &ingestion.IngestResponse{
		BatchID:  batchID,
		Status:   ingestion.StatusQueued,
		Accepted: len(req.Documents),
	}, nil
}

// DocumentAdder adds records and returns the snapshot that holds them.
// *indexer.Engine implements it.
type DocumentAdder interface {
	AddDocuments(ctx context.Context, records []corpus.Record) (*indexer.Snapshot, error)
}

// Direct indexes batches synchronously into an in-process engine.
type Direct struct {
	engine DocumentAdder
	logger *slog.Logger
}

func NewDirect(engine DocumentAdder) *Direct {
	return &Direct{
		engine: engine,
		logger: slog.Default().With("component", "ingestion-direct"),
	}
}

// Ingest adds the batch and reports the contiguous id range it received.
func (d *Direct) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	batchID := uuid.New().String()
	snap, err := d.engine.AddDocuments(ctx, req.Records())
	if err != nil {
		return nil, err
	}
	resp := &ingestion.IngestResponse{
		BatchID:  batchID,
		Status:   ingestion.StatusIndexed,
		Accepted: len(req.Documents),
	}
	if snap == nil {
		return resp, nil
	}
	size := snap.Corpus.Size()
	resp.SnapshotID = snap.ID.String()
	resp.Documents = size
	if n := len(req.Documents); n > 0 {
		first, last := int64(size-n), int64(size-1)
		resp.FirstID, resp.LastID = &first, &last
	}
	d.logger.Info("ingest batch indexed",
		"batch_id", batchID,
		"documents", len(req.Documents),
		"seq", snap.Seq,
	)
	return resp, nil
}
