// Package corpus owns the documents of the engine: their raw text, metadata,
// term-frequency vectors and lengths, together with the corpus statistics the
// scorer needs. A Store value is immutable; Add returns a new Store, so the
// document count and the average length can never be observed out of step.
package corpus

import (
	"fmt"
	"maps"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

// DocID identifies a document. Ids are dense, start at 0 and grow by one per
// inserted document.
type DocID uint32

// Record is the (text, metadata) pair exchanged with persistence
// collaborators and accepted by Add.
type Record struct {
	Text     string         `json:"text" cbor:"1,keyasint"`
	Metadata map[string]any `json:"metadata,omitempty" cbor:"2,keyasint,omitempty"`
}

// Document is an inserted record with its assigned id.
type Document struct {
	ID       DocID          `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Stats are the corpus-wide figures BM25 depends on.
type Stats struct {
	Documents     int     `json:"documents"`
	TotalLength   int64   `json:"total_length"`
	AverageLength float64 `json:"average_length"`
}

type entry struct {
	text     string
	metadata map[string]any
	terms    map[string]int
	length   int
}

// Store is an immutable, append-only set of documents.
type Store struct {
	entries []entry
	lengths []int
	stats   Stats
}

// Empty returns a store with no documents.
func Empty() *Store {
	return &Store{}
}

// Add tokenizes records and returns a new Store holding the existing
// documents followed by the new ones. The receiver is left untouched and
// remains safe for concurrent readers. Stores derived from the same
// receiver share storage, so only the most recent one may be kept; the
// engine guarantees this by deriving under its writer lock.
func (s *Store) Add(records []Record, tok tokenizer.Tokenizer) *Store {
	if len(records) == 0 {
		return s
	}
	next := &Store{
		// Appending may reuse the backing arrays; readers of s only
		// ever look at the first len(s.entries) elements.
		entries: s.entries,
		lengths: s.lengths,
		stats:   s.stats,
	}
	for _, rec := range records {
		tokens := tok.Tokenize(rec.Text)
		terms := make(map[string]int, len(tokens))
		for _, term := range tokens {
			terms[term]++
		}
		next.entries = append(next.entries, entry{
			text:     rec.Text,
			metadata: cloneMetadata(rec.Metadata),
			terms:    terms,
			length:   len(tokens),
		})
		next.lengths = append(next.lengths, len(tokens))
		next.stats.TotalLength += int64(len(tokens))
	}
	next.stats.Documents = len(next.entries)
	next.stats.AverageLength = float64(next.stats.TotalLength) / float64(next.stats.Documents)
	return next
}

// Get returns the document with the given id.
func (s *Store) Get(id DocID) (Document, error) {
	if int(id) >= len(s.entries) {
		return Document{}, fmt.Errorf("document %d: %w", id, apperrors.ErrNotFound)
	}
	e := s.entries[id]
	return Document{
		ID:       id,
		Text:     e.text,
		Metadata: cloneMetadata(e.metadata),
	}, nil
}

// Size returns the number of documents.
func (s *Store) Size() int {
	return len(s.entries)
}

// Stats returns the corpus statistics.
func (s *Store) Stats() Stats {
	return s.stats
}

// TermFrequencies returns the term-frequency vector of a document. The map
// is shared and must not be modified.
func (s *Store) TermFrequencies(id DocID) map[string]int {
	return s.entries[id].terms
}

// Length returns the token count of a document.
func (s *Store) Length(id DocID) int {
	return s.entries[id].length
}

// Lengths returns every document length indexed by id. The slice is shared
// and must not be modified.
func (s *Store) Lengths() []int {
	return s.lengths[:len(s.lengths):len(s.lengths)]
}

// Records returns the documents in id order, ready to hand to a persistence
// collaborator.
func (s *Store) Records() []Record {
	records := make([]Record, len(s.entries))
	for i, e := range s.entries {
		records[i] = Record{Text: e.text, Metadata: cloneMetadata(e.metadata)}
	}
	return records
}

// cloneMetadata copies the top level of a metadata map so callers cannot
// mutate a stored document through the map they passed in or got back.
func cloneMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}
