// Package file persists the document list as a single zstd-compressed CBOR
// file. Saves replace the file atomically, so a crash leaves either the old
// or the new list on disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

const formatVersion = 1

type image struct {
	Version int             `cbor:"1,keyasint"`
	Records []corpus.Record `cbor:"2,keyasint"`
}

// Store reads and writes the document file at a fixed path.
type Store struct {
	path   string
	logger *slog.Logger
}

func New(path string) *Store {
	return &Store{
		path:   path,
		logger: slog.Default().With("component", "file-store", "path", path),
	}
}

// Path returns the document file location.
func (s *Store) Path() string {
	return s.path
}

// LoadDocuments reads every record. A missing file is ErrNotFound.
func (s *Store) LoadDocuments(ctx context.Context) ([]corpus.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("document file %s: %w", s.path, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening document file: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening zstd stream: %w", err)
	}
	defer zr.Close()

	var img image
	if err := codec.NewDecoder(zr).Decode(&img); err != nil {
		return nil, fmt.Errorf("decoding document file %s: %w", s.path, err)
	}
	if img.Version != formatVersion {
		return nil, fmt.Errorf("document file %s: unsupported version %d", s.path, img.Version)
	}
	s.logger.Debug("documents read", "documents", len(img.Records))
	return img.Records, nil
}

// SaveDocuments replaces the file with records. Zero records is
// ErrEmptyCorpus and leaves the file alone.
func (s *Store) SaveDocuments(ctx context.Context, records []corpus.Record) error {
	if len(records) == 0 {
		return apperrors.ErrEmptyCorpus
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	if err := write(ctx, f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing document file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing document file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming document file: %w", err)
	}
	s.logger.Debug("documents written", "documents", len(records))
	return nil
}

func write(ctx context.Context, w io.Writer, records []corpus.Record) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("opening zstd stream: %w", err)
	}
	if err := codec.NewEncoder(zw).Encode(image{Version: formatVersion, Records: records}); err != nil {
		zw.Close()
		return fmt.Errorf("encoding documents: %w", err)
	}
	if err := ctx.Err(); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing zstd stream: %w", err)
	}
	return nil
}
