// Package handler exposes search, document lookup and index administration
// over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/tracing"
)

// Engine is the part of *indexer.Engine the handler needs.
type Engine interface {
	Stats() indexer.Stats
	Document(id corpus.DocID) (corpus.Document, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) (*indexer.Snapshot, error)
	WriteSnapshot(path string) (segment.Header, error)
}

// Options bound the k a caller may ask for.
type Options struct {
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	engine   Engine
	executor *executor.Executor
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
}

// New creates a Handler. queryCache and m may be nil.
func New(engine Engine, exec *executor.Executor, queryCache *cache.QueryCache, m *metrics.Metrics, opts Options) *Handler {
	return &Handler{
		engine:   engine,
		executor: exec,
		cache:    queryCache,
		metrics:  m,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/admin/save", h.Save)
	mux.HandleFunc("POST /api/v1/admin/load", h.Load)
	mux.HandleFunc("POST /api/v1/admin/snapshot", h.WriteSnapshot)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query      string            `json:"query"`
	SnapshotID string            `json:"snapshot_id"`
	Seq        uint64            `json:"seq"`
	K          int               `json:"k"`
	TotalHits  int               `json:"total_hits"`
	Results    []executor.Result `json:"results"`
	TermStats  map[string]int    `json:"term_stats"`
	CacheHit   bool              `json:"cache_hit"`
	TookMs     float64           `json:"took_ms"`
}

// Search handles GET /api/v1/search?q=&k=&k1=&b=. A query without terms or
// k = 0 answers an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", logger.RequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(log)
	}()

	q := r.URL.Query()
	query := q.Get("q")
	k, err := h.parseK(q.Get("k"))
	if err != nil {
		h.fail(w, log, err)
		return
	}
	params := h.executor.Params()
	if params.K1, err = parseFloat(q.Get("k1"), params.K1, "k1"); err != nil {
		h.fail(w, log, err)
		return
	}
	if params.B, err = parseFloat(q.Get("b"), params.B, "b"); err != nil {
		h.fail(w, log, err)
		return
	}
	span.SetAttr("k", k)

	snap, err := h.executor.Current()
	if err != nil {
		h.countQuery("error")
		h.fail(w, log, err)
		return
	}
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.Search(ctx, snap, query, k, params)
	}

	var res *executor.SearchResult
	cacheStatus := "disabled"
	terms := h.executor.Terms(query)
	if h.cache != nil && k > 0 && len(terms) > 0 {
		var hit bool
		key := cache.Key(snap.ID.String(), terms, k, params)
		res, hit, err = h.cache.GetOrCompute(ctx, key, compute)
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		res, err = compute(ctx)
	}
	if err != nil {
		h.countQuery("error")
		h.fail(w, log, err)
		return
	}
	results, err := executor.Resolve(snap, res)
	if err != nil {
		h.countQuery("error")
		h.fail(w, log, err)
		return
	}

	took := time.Since(start)
	resultType := "hit"
	if len(results) == 0 {
		resultType = "empty"
	}
	h.countQuery(resultType)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(took.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	log.Info("search completed",
		"query", query,
		"k", k,
		"total_hits", res.TotalHits,
		"returned", len(results),
		"cache", cacheStatus,
		"seq", snap.Seq,
		"latency_ms", took.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      query,
		SnapshotID: res.SnapshotID,
		Seq:        snap.Seq,
		K:          k,
		TotalHits:  res.TotalHits,
		Results:    results,
		TermStats:  res.TermStats,
		CacheHit:   cacheStatus == "hit",
		TookMs:     float64(took.Microseconds()) / 1000,
	})
}

// Document handles GET /api/v1/documents/{id}.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		h.fail(w, log, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document id must be a non-negative integer"))
		return
	}
	doc, err := h.engine.Document(corpus.DocID(id))
	if err != nil {
		h.fail(w, log, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

// Save handles POST /api/v1/admin/save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if err := h.engine.Save(r.Context()); err != nil {
		h.fail(w, log, err)
		return
	}
	stats := h.engine.Stats()
	log.Info("documents saved on request", "documents", stats.Documents)
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "documents": stats.Documents})
}

// Load handles POST /api/v1/admin/load.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if _, err := h.engine.Load(r.Context()); err != nil {
		h.fail(w, log, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

// WriteSnapshot handles POST /api/v1/admin/snapshot.
func (h *Handler) WriteSnapshot(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	header, err := h.engine.WriteSnapshot("")
	if err != nil {
		h.fail(w, log, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "written",
		"documents":   header.DocCount,
		"terms":       header.TermCount,
		"compression": header.Compression.String(),
		"stored_size": header.StoredSize,
		"raw_size":    header.RawSize,
		"checksum":    fmt.Sprintf("%x", header.Checksum),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState().String(),
	})
}

// CacheInvalidate drops the entries of ?snapshot=, or all entries.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context(), r.URL.Query().Get("snapshot")); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) parseK(raw string) (int, error) {
	if raw == "" {
		return h.opts.DefaultLimit, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be an integer")
	}
	if k > h.opts.MaxResults {
		k = h.opts.MaxResults
	}
	return k, nil
}

func parseFloat(raw string, def float64, name string) (float64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be a number", name)
	}
	return v, nil
}

func (h *Handler) countQuery(resultType string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, apperrors.ErrNotInitialized) {
		log.Error("request failed", "error", err, "status_code", status)
	} else {
		log.Debug("request rejected", "error", err, "status_code", status)
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
