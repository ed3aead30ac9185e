// Package sqlite stores the document list of named corpora in a local SQLite
// database through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

// migrations are applied in order; their index plus one is the schema
// version.
var migrations = []string{
	`CREATE TABLE corpus_documents (
		corpus   TEXT    NOT NULL,
		doc_id   INTEGER NOT NULL,
		text     TEXT    NOT NULL,
		metadata TEXT,
		PRIMARY KEY (corpus, doc_id)
	)`,
}

// Store keeps one corpus, identified by name, in the corpus_documents table.
type Store struct {
	db     *sql.DB
	path   string
	corpus string
	logger *slog.Logger
}

// Open opens or creates the database at path and migrates it.
func Open(path, corpusName string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	s := &Store{
		db:     db,
		path:   path,
		corpus: corpusName,
		logger: slog.Default().With("component", "sqlite-store", "corpus", corpusName),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}
	for i := current; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("executing migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}
	return nil
}

// LoadDocuments returns the corpus in id order. A corpus without rows is
// ErrNotFound.
func (s *Store) LoadDocuments(ctx context.Context) ([]corpus.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text, metadata FROM corpus_documents WHERE corpus = ? ORDER BY doc_id`,
		s.corpus,
	)
	if err != nil {
		return nil, fmt.Errorf("querying corpus %s: %w", s.corpus, err)
	}
	defer rows.Close()

	var records []corpus.Record
	for rows.Next() {
		var rec corpus.Record
		var metadata sql.NullString
		if err := rows.Scan(&rec.Text, &metadata); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
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

// SaveDocuments replaces the corpus in one transaction.
func (s *Store) SaveDocuments(ctx context.Context, records []corpus.Record) error {
	if len(records) == 0 {
		return apperrors.ErrEmptyCorpus
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := s.replace(ctx, tx, records); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	s.logger.Debug("documents written", "documents", len(records))
	return nil
}

func (s *Store) replace(ctx context.Context, tx *sql.Tx, records []corpus.Record) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_documents WHERE corpus = ?`, s.corpus); err != nil {
		return fmt.Errorf("clearing corpus: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO corpus_documents (corpus, doc_id, text, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for i, rec := range records {
		var metadata sql.NullString
		if len(rec.Metadata) > 0 {
			data, err := json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata of document %d: %w", i, err)
			}
			metadata = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.corpus, i, rec.Text, metadata); err != nil {
			return fmt.Errorf("inserting document %d: %w", i, err)
		}
	}
	return nil
}
