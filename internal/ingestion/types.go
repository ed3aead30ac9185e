// Package ingestion defines the request/response types and Kafka event schemas
// used by the document ingestion pipeline.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
)

// Statuses reported in IngestResponse.
const (
	StatusIndexed = "INDEXED"
	StatusQueued  = "QUEUED"
)

// DocumentInput is one document of an ingest request.
type DocumentInput struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IngestRequest is the JSON body accepted by the document endpoint.
type IngestRequest struct {
	Documents []DocumentInput `json:"documents"`
}

// Records converts the request into corpus records.
func (r *IngestRequest) Records() []corpus.Record {
	records := make([]corpus.Record, len(r.Documents))
	for i, doc := range r.Documents {
		records[i] = corpus.Record{Text: doc.Text, Metadata: doc.Metadata}
	}
	return records
}

// IngestResponse is returned to the caller after a batch is accepted.
// Indexed batches report the id range they were assigned and the snapshot
// that contains them; queued batches only carry the batch id.
type IngestResponse struct {
	BatchID    string `json:"batch_id"`
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	FirstID    *int64 `json:"first_id,omitempty"`
	LastID     *int64 `json:"last_id,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Documents  int    `json:"documents,omitempty"`
}

// IngestEvent is the Kafka message payload carrying a batch of documents to
// the indexer.
type IngestEvent struct {
	BatchID    string          `json:"batch_id"`
	Documents  []DocumentInput `json:"documents"`
	IngestedAt time.Time       `json:"ingested_at"`
}

// IndexCompleteEvent is published after the indexer has published a new
// snapshot and persisted its documents.
type IndexCompleteEvent struct {
	BatchID      string    `json:"batch_id,omitempty"`
	SnapshotID   string    `json:"snapshot_id"`
	Seq          uint64    `json:"seq"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	SnapshotPath string    `json:"snapshot_path,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}
