// Package postgres stores the document list of named corpora in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/postgres"
)

// Schema creates the documents table. doc_id is the document id.
const Schema = `
CREATE TABLE IF NOT EXISTS corpus_documents (
    corpus   TEXT    NOT NULL,
    doc_id   INTEGER NOT NULL,
    text     TEXT    NOT NULL,
    metadata JSONB,
    PRIMARY KEY (corpus, doc_id)
)`

// Store keeps one corpus, identified by name, in the corpus_documents table.
type Store struct {
	db     *postgres.Client
	corpus string
	logger *slog.Logger
}

func NewStore(db *postgres.Client, corpusName string) *Store {
	return &Store{
		db:     db,
		corpus: corpusName,
		logger: slog.Default().With("component", "postgres-store", "corpus", corpusName),
	}
}

// EnsureSchema creates the table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating corpus_documents: %w", err)
	}
	return nil
}

// LoadDocuments returns the corpus in id order. A corpus without rows is
// ErrNotFound.
func (s *Store) LoadDocuments(ctx context.Context) ([]corpus.Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT text, metadata FROM corpus_documents WHERE corpus = $1 ORDER BY doc_id`,
		s.corpus,
	)
	if err != nil {
		return nil, fmt.Errorf("querying corpus %s: %w", s.corpus, err)
	}
	defer rows.Close()

	var records []corpus.Record
	for rows.Next() {
		var rec corpus.Record
		var metadata []byte
		if err := rows.Scan(&rec.Text, &metadata); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata of document %d: %w", len(records), err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", s.corpus, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("corpus %s: %w", s.corpus, apperrors.ErrNotFound)
	}
	return records, nil
}

// SaveDocuments replaces the corpus in one transaction, bulk-loading the
// rows with COPY.
func (s *Store) SaveDocuments(ctx context.Context, records []corpus.Record) error {
	if len(records) == 0 {
		return apperrors.ErrEmptyCorpus
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_documents WHERE corpus = $1`, s.corpus); err != nil {
			return fmt.Errorf("clearing corpus: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("corpus_documents", "corpus", "doc_id", "text", "metadata"))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		for i, rec := range records {
			var metadata any
			if len(rec.Metadata) > 0 {
				data, err := json.Marshal(rec.Metadata)
				if err != nil {
					stmt.Close()
					return fmt.Errorf("encoding metadata of document %d: %w", i, err)
				}
				metadata = string(data)
			}
			if _, err := stmt.ExecContext(ctx, s.corpus, i, rec.Text, metadata); err != nil {
				stmt.Close()
				return fmt.Errorf("copying document %d: %w", i, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		return stmt.Close()
	})
	if err != nil {
		return err
	}
	s.logger.Debug("documents written", "documents", len(records))
	return nil
}
