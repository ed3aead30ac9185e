package segment

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
)

// maxRawSize bounds the allocation made for a decompressed payload.
const maxRawSize = 4 << 30

type Reader struct {
	file     *os.File
	filePath string
	header   Header
}

// OpenReader opens a snapshot file and validates its header. A missing file
// wraps ErrNotFound; anything that is not a readable snapshot wraps
// ErrCorruptSnapshot.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", path, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: reading header: %v", apperrors.ErrCorruptSnapshot, err)
	}
	header := decodeHeader(buf)
	if header.Magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrCorruptSnapshot, header.Magic)
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("%w: unsupported format version %d", apperrors.ErrCorruptSnapshot, header.Version)
	}
	if header.RawSize > maxRawSize || header.StoredSize > maxRawSize {
		f.Close()
		return nil, fmt.Errorf("%w: payload size %d out of range", apperrors.ErrCorruptSnapshot, header.RawSize)
	}
	return &Reader{file: f, filePath: path, header: header}, nil
}

// Header returns the validated file header.
func (r *Reader) Header() Header {
	return r.header
}

// Index reads, verifies and decodes the payload.
func (r *Reader) Index() (*index.Index, error) {
	stored := make([]byte, r.header.StoredSize)
	if _, err := r.file.ReadAt(stored, int64(HeaderSize)); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", apperrors.ErrCorruptSnapshot, err)
	}
	raw, err := Decompress(stored, r.header.Compression, int(r.header.RawSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptSnapshot, err)
	}
	if blake3.Sum256(raw) != r.header.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch in %s", apperrors.ErrCorruptSnapshot, r.filePath)
	}
	var dump index.Dump
	if err := codec.Unmarshal(raw, &dump); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", apperrors.ErrCorruptSnapshot, err)
	}
	if uint32(dump.DocCount) != r.header.DocCount || uint32(len(dump.Terms)) != r.header.TermCount {
		return nil, fmt.Errorf("%w: header counts disagree with payload", apperrors.ErrCorruptSnapshot)
	}
	return index.FromDump(dump)
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Read opens path and returns the index it holds.
func Read(path string) (*index.Index, Header, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer r.Close()
	idx, err := r.Index()
	if err != nil {
		return nil, Header{}, err
	}
	return idx, r.Header(), nil
}
