package index

import "github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"

// Posting records how often a term occurs in one document. Frequency is
// always at least 1; documents without the term have no posting.
type Posting struct {
	_         struct{}     `cbor:",toarray"`
	DocID     corpus.DocID `json:"doc_id"`
	Frequency int          `json:"frequency"`
}

// PostingList is ordered by DocID ascending.
type PostingList []Posting

// TermEntry pairs a term with its postings. Dumps list entries sorted by
// term.
type TermEntry struct {
	_        struct{}    `cbor:",toarray"`
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

// Dump is the serialisable form of an Index: corpus statistics, per-document
// lengths and every postings list. Restoring a Dump reproduces the index
// exactly, so rankings computed from either are identical.
type Dump struct {
	DocCount    int         `cbor:"1,keyasint"`
	TotalLength int64       `cbor:"2,keyasint"`
	DocLengths  []int       `cbor:"3,keyasint"`
	Terms       []TermEntry `cbor:"4,keyasint"`
}
