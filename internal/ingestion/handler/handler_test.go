package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

type fakeSink struct {
	status string
	err    error
	got    *ingestion.IngestRequest
}

func (s *fakeSink) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &ingestion.IngestResponse{BatchID: "b-1", Status: s.status, Accepted: len(req.Documents)}, nil
}

func post(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)
	return rec
}

func TestIngest(t *testing.T) {
	tests := []struct {
		name       string
		sink       *fakeSink
		body       string
		wantStatus int
		wantInBody string
	}{
		{"indexed", &fakeSink{status: ingestion.StatusIndexed}, `{"documents":[{"text":"hello"}]}`, http.StatusCreated, `"INDEXED"`},
		{"queued", &fakeSink{status: ingestion.StatusQueued}, `{"documents":[{"text":"hello"},{"text":"world"}]}`, http.StatusAccepted, `"accepted":2`},
		{"bad json", &fakeSink{}, `{"documents":`, http.StatusBadRequest, "invalid JSON body"},
		{"validation", &fakeSink{}, `{"documents":[{"text":"  "}]}`, http.StatusBadRequest, "documents[0].text"},
		{"busy", &fakeSink{err: apperrors.ErrBusy}, `{"documents":[{"text":"x"}]}`, http.StatusConflict, "rebuild in progress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(New(tt.sink), tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantInBody)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestIngestPassesMetadata(t *testing.T) {
	sink := &fakeSink{status: ingestion.StatusIndexed}
	rec := post(New(sink), `{"documents":[{"text":"hello","metadata":{"source":"wiki"}}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, sink.got)
	assert.Equal(t, "wiki", sink.got.Documents[0].Metadata["source"])

	var resp ingestion.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "b-1", resp.BatchID)
}
