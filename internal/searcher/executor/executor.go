// Package executor runs free-text queries against a published index
// snapshot: tokenize, collapse duplicate terms, score candidates and select
// the top k.
package executor

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/tracing"
)

// SnapshotSource provides the snapshot to query and the tokenizer its
// documents were indexed with. *indexer.Engine satisfies it.
type SnapshotSource interface {
	Current() (*indexer.Snapshot, error)
	Tokenizer() tokenizer.Tokenizer
}

// SearchResult holds ranked document ids for one query against one
// snapshot. It carries no document text, so it can be cached per snapshot.
type SearchResult struct {
	Query      string             `json:"query"`
	SnapshotID string             `json:"snapshot_id"`
	TotalHits  int                `json:"total_hits"`
	Results    []ranker.ScoredDoc `json:"results"`
	TermStats  map[string]int     `json:"term_stats"`
}

// Result is a ranked document.
type Result struct {
	Document corpus.Document `json:"document"`
	Score    float64         `json:"score"`
}

type Executor struct {
	source SnapshotSource
	params ranker.Params
	logger *slog.Logger
}

// New creates an Executor whose AsRetriever handles use params.
func New(source SnapshotSource, params ranker.Params) *Executor {
	return &Executor{
		source: source,
		params: params,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Params returns the default tunables.
func (e *Executor) Params() ranker.Params {
	return e.params
}

// Current returns the snapshot queries currently run against.
func (e *Executor) Current() (*indexer.Snapshot, error) {
	return e.source.Current()
}

// QueryTerms collapses tokens into distinct terms with their multiplicity,
// sorted by term.
func QueryTerms(tokens []string) []ranker.QueryTerm {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	terms := make([]ranker.QueryTerm, 0, len(counts))
	for term, count := range counts {
		terms = append(terms, ranker.QueryTerm{Term: term, Count: count})
	}
	sort.Slice(terms, func(i, j int) bool {
		return terms[i].Term < terms[j].Term
	})
	return terms
}

// Terms tokenizes query with the document tokenizer and collapses the
// tokens with QueryTerms.
func (e *Executor) Terms(query string) []ranker.QueryTerm {
	return QueryTerms(e.source.Tokenizer().Tokenize(query))
}

// Search ranks the documents of snap for query and keeps the best k. k <= 0,
// a query without terms and an empty corpus all produce an empty result.
func (e *Executor) Search(ctx context.Context, snap *indexer.Snapshot, query string, k int, params ranker.Params) (*SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &SearchResult{
		Query:      query,
		SnapshotID: snap.ID.String(),
		Results:    []ranker.ScoredDoc{},
		TermStats:  map[string]int{},
	}
	if k <= 0 {
		return result, nil
	}

	_, span := tracing.StartChildSpan(ctx, "tokenize")
	terms := e.Terms(query)
	span.SetAttr("terms", len(terms))
	span.End()
	if len(terms) == 0 {
		return result, nil
	}
	for _, qt := range terms {
		df, _ := snap.Index.Lookup(qt.Term)
		result.TermStats[qt.Term] = df
	}

	_, span = tracing.StartChildSpan(ctx, "rank")
	scored := ranker.Rank(snap.Index, terms, params)
	span.SetAttr("candidates", len(scored))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "top-k")
	result.Results = merger.TopK(scored, k)
	span.End()
	result.TotalHits = len(scored)

	e.logger.Debug("query executed",
		"query", query,
		"terms", len(terms),
		"candidates", len(scored),
		"results", len(result.Results),
		"seq", snap.Seq,
	)
	return result, nil
}

// Resolve attaches the documents of snap to the ids of res.
func Resolve(snap *indexer.Snapshot, res *SearchResult) ([]Result, error) {
	out := make([]Result, 0, len(res.Results))
	for _, sd := range res.Results {
		doc, err := snap.Corpus.Get(sd.DocID)
		if err != nil {
			return nil, err
		}
		out = append(out, Result{Document: doc, Score: sd.Score})
	}
	return out, nil
}

// Retrieve returns up to k documents for query, best first, ties broken by
// ascending id. It fails with ErrNotInitialized before any index exists.
func (e *Executor) Retrieve(ctx context.Context, query string, k int, params ranker.Params) ([]Result, error) {
	snap, err := e.source.Current()
	if err != nil {
		return nil, err
	}
	res, err := e.Search(ctx, snap, query, k, params)
	if err != nil {
		return nil, err
	}
	return Resolve(snap, res)
}

// Retriever is a retrieval handle bound to a default k and tunables.
type Retriever struct {
	exec   *Executor
	k      int
	params ranker.Params
}

// AsRetriever returns a handle that retrieves k documents per query. Like
// Retrieve it fails with ErrNotInitialized before any index exists. The
// handle always queries the latest snapshot.
func (e *Executor) AsRetriever(k int) (*Retriever, error) {
	if _, err := e.source.Current(); err != nil {
		return nil, err
	}
	return &Retriever{exec: e, k: k, params: e.params}, nil
}

// K is the number of documents the handle retrieves.
func (r *Retriever) K() int {
	return r.k
}

// WithParams returns a copy of r using params.
func (r *Retriever) WithParams(params ranker.Params) *Retriever {
	cp := *r
	cp.params = params
	return &cp
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	return r.exec.Retrieve(ctx, query, r.k, r.params)
}
