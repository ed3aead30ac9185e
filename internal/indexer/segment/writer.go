// Package segment reads and writes index snapshot files. A snapshot holds
// one complete inverted index: corpus statistics, per-document lengths and
// every postings list, encoded as CBOR behind a fixed binary header.
package segment

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/codec"
)

// MagicBytes identifies a snapshot file ("BM25" little-endian).
const (
	MagicBytes    uint32 = 0x35324D42
	FormatVersion uint16 = 1
	HeaderSize    int    = 64
)

// Header is the 64-byte block at the start of every snapshot file.
//
//	0:4   magic
//	4:6   format version
//	6     compression tag
//	7     reserved
//	8:12  document count
//	12:16 term count
//	16:24 stored payload size
//	24:32 raw payload size
//	32:64 BLAKE3-256 of the raw payload
type Header struct {
	Magic       uint32
	Version     uint16
	Compression CompressionTag
	DocCount    uint32
	TermCount   uint32
	StoredSize  uint64
	RawSize     uint64
	Checksum    [32]byte
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = byte(h.Compression)
	binary.LittleEndian.PutUint32(buf[8:12], h.DocCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.TermCount)
	binary.LittleEndian.PutUint64(buf[16:24], h.StoredSize)
	binary.LittleEndian.PutUint64(buf[24:32], h.RawSize)
	copy(buf[32:64], h.Checksum[:])
	return buf
}

func decodeHeader(buf []byte) Header {
	h := Header{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Compression: CompressionTag(buf[6]),
		DocCount:    binary.LittleEndian.Uint32(buf[8:12]),
		TermCount:   binary.LittleEndian.Uint32(buf[12:16]),
		StoredSize:  binary.LittleEndian.Uint64(buf[16:24]),
		RawSize:     binary.LittleEndian.Uint64(buf[24:32]),
	}
	copy(h.Checksum[:], buf[32:64])
	return h
}

// Writer serialises indexes into snapshot files.
type Writer struct {
	compression CompressionTag
}

// NewWriter creates a Writer that compresses payloads with tag.
func NewWriter(tag CompressionTag) *Writer {
	return &Writer{compression: tag}
}

// Write atomically replaces path with a snapshot of idx. It writes to a
// .tmp file in the same directory first and renames on success, so readers
// see either the old file or the new one.
func (w *Writer) Write(path string, idx *index.Index) (Header, error) {
	raw, err := codec.Marshal(idx.Dump())
	if err != nil {
		return Header{}, fmt.Errorf("encoding index: %w", err)
	}
	payload, tag, err := Compress(raw, w.compression)
	if err != nil {
		return Header{}, fmt.Errorf("compressing index: %w", err)
	}
	header := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		Compression: tag,
		DocCount:    uint32(idx.DocCount()),
		TermCount:   uint32(idx.TermCount()),
		StoredSize:  uint64(len(payload)),
		RawSize:     uint64(len(raw)),
		Checksum:    blake3.Sum256(raw),
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Header{}, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Header{}, fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	if _, err := f.Write(header.encode()); err != nil {
		return Header{}, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		return Header{}, fmt.Errorf("writing payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Header{}, fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Header{}, fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return Header{}, fmt.Errorf("renaming snapshot file: %w", err)
	}
	return header, nil
}
