package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/kafka"
)

type recordingProducer struct {
	events []kafka.Event
	err    error
}

func (p *recordingProducer) Publish(ctx context.Context, event kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func request(texts ...string) *ingestion.IngestRequest {
	req := &ingestion.IngestRequest{}
	for _, text := range texts {
		req.Documents = append(req.Documents, ingestion.DocumentInput{Text: text})
	}
	return req
}

func TestPublisherQueuesBatch(t *testing.T) {
	producer := &recordingProducer{}
	pub := New(producer)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	resp, err := pub.Ingest(context.Background(), request("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusQueued, resp.Status)
	assert.Equal(t, 2, resp.Accepted)
	assert.Nil(t, resp.FirstID)

	require.Len(t, producer.events, 1)
	ev := producer.events[0]
	assert.Equal(t, resp.BatchID, ev.Key)
	assert.Equal(t, EventTypeIngest, ev.Type)
	payload, ok := ev.Value.(ingestion.IngestEvent)
	require.True(t, ok)
	assert.Equal(t, resp.BatchID, payload.BatchID)
	assert.Equal(t, fixed, payload.IngestedAt)
	assert.Len(t, payload.Documents, 2)
}

func TestPublisherPropagatesErrors(t *testing.T) {
	boom := errors.New("broker down")
	_, err := New(&recordingProducer{err: boom}).Ingest(context.Background(), request("a"))
	assert.ErrorIs(t, err, boom)
}

func TestDirectAssignsIDRange(t *testing.T) {
	engine, err := indexer.NewEngine(config.IndexerConfig{}, tokenizer.Default, nil)
	require.NoError(t, err)
	direct := NewDirect(engine)
	ctx := context.Background()

	first, err := direct.Ingest(ctx, request("one", "two"))
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusIndexed, first.Status)
	assert.Equal(t, int64(0), *first.FirstID)
	assert.Equal(t, int64(1), *first.LastID)

	second, err := direct.Ingest(ctx, request("three"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), *second.FirstID)
	assert.Equal(t, int64(2), *second.LastID)
	assert.Equal(t, 3, second.Documents)
	assert.NotEqual(t, first.SnapshotID, second.SnapshotID)

	doc, err := engine.Document(2)
	require.NoError(t, err)
	assert.Equal(t, "three", doc.Text)
}

type busyAdder struct{}

func (busyAdder) AddDocuments(ctx context.Context, _ []corpus.Record) (*indexer.Snapshot, error) {
	return nil, apperrors.ErrBusy
}

func TestDirectPropagatesBusy(t *testing.T) {
	_, err := NewDirect(busyAdder{}).Ingest(context.Background(), request("a"))
	assert.ErrorIs(t, err, apperrors.ErrBusy)
}
