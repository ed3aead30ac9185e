// Package storage selects the document store named by the configuration.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/storage/file"
	pgstore "github.com/Adithya-Monish-Kumar-K/bm25-search/internal/storage/postgres"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/storage/sqlite"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/postgres"
)

// Backend is an opened document store. Ping and Close may be nil.
type Backend struct {
	Name  string
	Store indexer.DocumentStore
	Ping  func(ctx context.Context) error
	Close func() error
	// FilePath is set for the file backend, which can be watched.
	FilePath string
}

// Open connects the backend selected by cfg.Indexer.DocumentStore. The
// "none" backend has a nil Store.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	name := cfg.Indexer.DocumentStore
	switch name {
	case config.StoreNone:
		return &Backend{Name: name}, nil
	case config.StoreFile:
		path := filepath.Join(cfg.Indexer.DataDir, cfg.Indexer.DocumentsFile)
		return &Backend{Name: name, Store: file.New(path), FilePath: path}, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path, cfg.Indexer.CorpusName)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: name, Store: s, Close: s.Close}, nil
	case config.StorePostgres:
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s := pgstore.NewStore(db, cfg.Indexer.CorpusName)
		if err := s.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &Backend{Name: name, Store: s, Ping: db.Ping, Close: db.Close}, nil
	default:
		return nil, fmt.Errorf("unknown document store %q", name)
	}
}
