// Package ranker implements Okapi BM25 scoring over an inverted index.
package ranker

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

type ScoredDoc struct {
	DocID corpus.DocID `json:"doc_id"`
	Score float64      `json:"score"`
}

// Params are the BM25 tunables. K1 controls term-frequency saturation and
// B the strength of document length normalisation.
type Params struct {
	K1 float64 `json:"k1"`
	B  float64 `json:"b"`
}

func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// Validate requires a finite, non-negative K1 and B within [0, 1].
func (p Params) Validate() error {
	if math.IsNaN(p.K1) || math.IsInf(p.K1, 0) || p.K1 < 0 {
		return fmt.Errorf("%w: k1 must be a finite non-negative number, got %v", apperrors.ErrInvalidInput, p.K1)
	}
	if math.IsNaN(p.B) || p.B < 0 || p.B > 1 {
		return fmt.Errorf("%w: b must lie in [0, 1], got %v", apperrors.ErrInvalidInput, p.B)
	}
	return nil
}

// QueryTerm is a distinct query token and the number of times it occurred.
type QueryTerm struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// IDF is ln(1 + (N - df + 0.5) / (df + 0.5)). It is positive whenever
// df <= N and is not clamped.
func IDF(totalDocs, docFreq int) float64 {
	n := float64(totalDocs)
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// TermScore is the BM25 contribution of one term occurring termFreq times in
// a document of length docLength.
func TermScore(idf float64, termFreq, docLength int, avgDocLength float64, p Params) float64 {
	tf := float64(termFreq)
	lengthRatio := 0.0
	if avgDocLength > 0 {
		lengthRatio = float64(docLength) / avgDocLength
	}
	denominator := tf + p.K1*(1-p.B+p.B*lengthRatio)
	return idf * (tf * (p.K1 + 1)) / denominator
}

type cursor struct {
	postings index.PostingList
	pos      int
	weight   float64
}

// Rank scores every document containing at least one query term. terms must
// be sorted by Term; contributions are summed in that order, so equal inputs
// give bit-identical scores. The result is ordered by document id.
func Rank(idx *index.Index, terms []QueryTerm, p Params) []ScoredDoc {
	if idx.DocCount() == 0 || len(terms) == 0 {
		return nil
	}
	n := idx.DocCount()
	avgdl := idx.AvgDocLength()

	candidates := roaring.New()
	cursors := make([]cursor, 0, len(terms))
	for _, qt := range terms {
		df, postings := idx.Lookup(qt.Term)
		if df == 0 {
			continue
		}
		for _, posting := range postings {
			candidates.Add(uint32(posting.DocID))
		}
		cursors = append(cursors, cursor{
			postings: postings,
			weight:   IDF(n, df) * float64(qt.Count),
		})
	}
	if candidates.IsEmpty() {
		return nil
	}

	result := make([]ScoredDoc, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		id := corpus.DocID(it.Next())
		docLength := idx.DocLength(id)
		score := 0.0
		for i := range cursors {
			c := &cursors[i]
			if c.pos < len(c.postings) && c.postings[c.pos].DocID == id {
				score += TermScore(c.weight, c.postings[c.pos].Frequency, docLength, avgdl, p)
				c.pos++
			}
		}
		result = append(result, ScoredDoc{DocID: id, Score: score})
	}
	return result
}
