// Package merger selects the best k scored documents.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/searcher/ranker"
)

// TopK returns the k highest-scoring documents ordered by score descending,
// ties broken by ascending document id. k <= 0 yields an empty result; a k
// larger than len(docs) yields every document.
func TopK(docs []ranker.ScoredDoc, k int) []ranker.ScoredDoc {
	if k <= 0 || len(docs) == 0 {
		return []ranker.ScoredDoc{}
	}
	h := make(scoredDocHeap, 0, min(k, len(docs))+1)
	for _, doc := range docs {
		if h.Len() == k {
			if !better(doc, h[0]) {
				continue
			}
			h[0] = doc
			heap.Fix(&h, 0)
			continue
		}
		heap.Push(&h, doc)
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ranker.ScoredDoc)
	}
	return result
}

// better reports whether a ranks above b.
func better(a, b ranker.ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// scoredDocHeap is a min-heap on rank: the root is the worst kept document.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
