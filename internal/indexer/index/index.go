// Package index builds the inverted index over a corpus: for every term, the
// postings list of (document id, term frequency) ordered by document id, plus
// the per-document lengths and corpus totals the scorer reads. An Index is
// never mutated after construction.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

type Index struct {
	terms       map[string]PostingList
	lengths     []int
	totalLength int64
}

// Build constructs the index from every document of c. Documents are
// visited in id order, so each postings list comes out sorted without a
// separate sort pass.
func Build(c *corpus.Store) *Index {
	idx := &Index{
		terms:       make(map[string]PostingList),
		lengths:     c.Lengths(),
		totalLength: c.Stats().TotalLength,
	}
	idx.appendDocuments(c, 0)
	return idx
}

// Extend returns the index of c given base, the index of a prefix of c
// holding documents [0, from). Only the new documents are tokenized again;
// postings lists they touch are copied before appending, so base stays
// valid for its readers. The result is identical to Build(c).
func Extend(base *Index, c *corpus.Store, from corpus.DocID) *Index {
	if base == nil || from == 0 {
		return Build(c)
	}
	idx := &Index{
		terms:       make(map[string]PostingList, len(base.terms)),
		lengths:     c.Lengths(),
		totalLength: c.Stats().TotalLength,
	}
	for term, postings := range base.terms {
		// Cap the slice so the first append below reallocates instead of
		// writing into base's backing array.
		idx.terms[term] = postings[:len(postings):len(postings)]
	}
	idx.appendDocuments(c, from)
	return idx
}

func (idx *Index) appendDocuments(c *corpus.Store, from corpus.DocID) {
	for id := from; int(id) < c.Size(); id++ {
		for term, tf := range c.TermFrequencies(id) {
			idx.terms[term] = append(idx.terms[term], Posting{DocID: id, Frequency: tf})
		}
	}
}

// Lookup returns the document frequency and postings of term. Unknown terms
// yield (0, nil); that is a normal outcome for free-text queries.
func (idx *Index) Lookup(term string) (int, PostingList) {
	postings := idx.terms[term]
	return len(postings), postings
}

// DocCount is the number of documents the index was built from.
func (idx *Index) DocCount() int {
	return len(idx.lengths)
}

// DocLength returns the token count of a document.
func (idx *Index) DocLength(id corpus.DocID) int {
	return idx.lengths[id]
}

// AvgDocLength is the mean document length, or 0 for an empty corpus.
func (idx *Index) AvgDocLength() float64 {
	if len(idx.lengths) == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(len(idx.lengths))
}

// TermCount is the number of distinct terms.
func (idx *Index) TermCount() int {
	return len(idx.terms)
}

// Entries returns every term with its postings, sorted by term.
func (idx *Index) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(idx.terms))
	for term, postings := range idx.terms {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Dump returns the serialisable form of the index.
func (idx *Index) Dump() Dump {
	lengths := make([]int, len(idx.lengths))
	copy(lengths, idx.lengths)
	return Dump{
		DocCount:    len(idx.lengths),
		TotalLength: idx.totalLength,
		DocLengths:  lengths,
		Terms:       idx.Entries(),
	}
}

// FromDump rebuilds an index from its serialised form after checking every
// invariant a built index satisfies. Violations wrap ErrCorruptSnapshot.
func FromDump(d Dump) (*Index, error) {
	if d.DocCount != len(d.DocLengths) {
		return nil, corrupt("doc count %d but %d lengths", d.DocCount, len(d.DocLengths))
	}
	if !withinIDSpace(uint64(d.DocCount)) {
		return nil, corrupt("doc count %d exceeds id space", d.DocCount)
	}
	var total int64
	for id, length := range d.DocLengths {
		if length < 0 {
			return nil, corrupt("document %d has negative length %d", id, length)
		}
		total += int64(length)
	}
	if total != d.TotalLength {
		return nil, corrupt("total length %d but lengths sum to %d", d.TotalLength, total)
	}

	idx := &Index{
		terms:       make(map[string]PostingList, len(d.Terms)),
		lengths:     d.DocLengths,
		totalLength: d.TotalLength,
	}
	for _, entry := range d.Terms {
		if _, dup := idx.terms[entry.Term]; dup {
			return nil, corrupt("term %q listed twice", entry.Term)
		}
		if len(entry.Postings) == 0 {
			return nil, corrupt("term %q has no postings", entry.Term)
		}
		for i, p := range entry.Postings {
			if int(p.DocID) >= d.DocCount {
				return nil, corrupt("term %q references unknown document %d", entry.Term, p.DocID)
			}
			if p.Frequency < 1 || p.Frequency > d.DocLengths[p.DocID] {
				return nil, corrupt("term %q has frequency %d in document %d", entry.Term, p.Frequency, p.DocID)
			}
			if i > 0 && entry.Postings[i-1].DocID >= p.DocID {
				return nil, corrupt("postings of term %q are not strictly ascending", entry.Term)
			}
		}
		idx.terms[entry.Term] = entry.Postings
	}
	return idx, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrCorruptSnapshot, fmt.Sprintf(format, args...))
}

// withinIDSpace reports whether n documents can be addressed by a DocID.
func withinIDSpace(n uint64) bool {
	return n <= math.MaxUint32
}
