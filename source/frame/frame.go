// Package frame stores data frame snapshots as immutable blobs and serves
// them back as providers.
//
// Blob layout:
//
//	magic "PGFRAME1"
//	chunk 0 .. chunk n-1   rows in fixed-size groups, optionally compressed
//	footer                 JSON: dimensions, names, chunk index
//	trailer                footer offset u64, footer length u32, footer crc32 u32,
//	                       footer codec name [8]byte, magic
//
// Reading a block of cells touches only the chunks holding its rows.
package frame

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pagegrid/blobstore"
	"github.com/hupe1980/pagegrid/codec"
)

const (
	magic       = "PGFRAME1"
	version     = 1
	codecNameSize = 8
	trailerSize   = 8 + 4 + 4 + codecNameSize + len(magic)

	// DefaultChunkRows is the number of rows per chunk.
	DefaultChunkRows = 256
)

var (
	// ErrInvalidFrame is returned by Write for frames with ragged rows or
	// mismatched names.
	ErrInvalidFrame = errors.New("frame: invalid frame")
	// ErrCorrupt is returned by Open for blobs that are not frames.
	ErrCorrupt = errors.New("frame: corrupt blob")
)

// Frame is a row-major table of strings.
type Frame struct {
	// RowNames is optional. When set it has one entry per row.
	RowNames []string
	ColNames []string
	Rows     [][]string
}

// Validate checks the frame shape.
func (f *Frame) Validate() error {
	if f.RowNames != nil && len(f.RowNames) != len(f.Rows) {
		return fmt.Errorf("%w: %d row names for %d rows", ErrInvalidFrame, len(f.RowNames), len(f.Rows))
	}
	for i, row := range f.Rows {
		if len(row) != len(f.ColNames) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidFrame, i, len(row), len(f.ColNames))
		}
	}
	return nil
}

type chunkRef struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
	// Size is the decoded size of the chunk.
	Size int64 `json:"size"`
	// CRC is the IEEE crc32 of the stored bytes.
	CRC uint32 `json:"crc"`
}

type footer struct {
	Version     int        `json:"version"`
	Rows        int        `json:"rows"`
	Columns     int        `json:"columns"`
	RowNames    []string   `json:"row_names,omitempty"`
	ColNames    []string   `json:"col_names"`
	ChunkRows   int        `json:"chunk_rows"`
	Compression string     `json:"compression"`
	Chunks      []chunkRef `json:"chunks"`
}

type writeOptions struct {
	compression Compression
	chunkRows   int
	codec       codec.Codec
}

// WriteOption configures Encode and Write.
type WriteOption func(*writeOptions)

// WithCompression sets the chunk compression. Defaults to zstd.
func WithCompression(c Compression) WriteOption {
	return func(o *writeOptions) {
		o.compression = c
	}
}

// WithChunkRows sets the number of rows per chunk.
func WithChunkRows(n int) WriteOption {
	return func(o *writeOptions) {
		o.chunkRows = n
	}
}

// WithCodec sets the footer codec. It must be one of the built-in codecs
// so readers can resolve it by name.
func WithCodec(c codec.Codec) WriteOption {
	return func(o *writeOptions) {
		o.codec = c
	}
}

// Encode serializes f. Chunks are compressed concurrently.
func Encode(ctx context.Context, f *Frame, opts ...WriteOption) ([]byte, error) {
	o := writeOptions{compression: CompressionZSTD, chunkRows: DefaultChunkRows, codec: codec.Default}
	for _, fn := range opts {
		fn(&o)
	}
	if o.chunkRows <= 0 {
		return nil, fmt.Errorf("%w: chunk rows must be positive, got %d", ErrInvalidFrame, o.chunkRows)
	}
	name := o.codec.Name()
	if _, ok := codec.ByName(name); !ok || len(name) > codecNameSize {
		return nil, fmt.Errorf("%w: codec %q cannot be recorded", ErrInvalidFrame, name)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	n := (len(f.Rows) + o.chunkRows - 1) / o.chunkRows
	chunks := make([][]byte, n)
	sizes := make([]int, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lo := i * o.chunkRows
			hi := min(lo+o.chunkRows, len(f.Rows))
			raw := encodeRows(f.Rows[lo:hi])
			packed, err := packChunk(raw, o.compression)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			chunks[i], sizes[i] = packed, len(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(magic)

	ft := footer{
		Version:     version,
		Rows:        len(f.Rows),
		Columns:     len(f.ColNames),
		RowNames:    f.RowNames,
		ColNames:    f.ColNames,
		ChunkRows:   o.chunkRows,
		Compression: o.compression.String(),
		Chunks:      make([]chunkRef, n),
	}
	for i, c := range chunks {
		ft.Chunks[i] = chunkRef{
			Offset: int64(buf.Len()),
			Length: int64(len(c)),
			Size:   int64(sizes[i]),
			CRC:    crc32.ChecksumIEEE(c),
		}
		buf.Write(c)
	}

	meta, err := o.codec.Marshal(ft)
	if err != nil {
		return nil, fmt.Errorf("frame: encode footer: %w", err)
	}
	footerOffset := buf.Len()
	buf.Write(meta)

	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint64(trailer[0:], uint64(footerOffset))
	binary.LittleEndian.PutUint32(trailer[8:], uint32(len(meta)))
	binary.LittleEndian.PutUint32(trailer[12:], crc32.ChecksumIEEE(meta))
	copy(trailer[16:16+codecNameSize], name)
	copy(trailer[16+codecNameSize:], magic)
	buf.Write(trailer[:])

	return buf.Bytes(), nil
}

// Write encodes f and stores it under name.
func Write(ctx context.Context, store blobstore.BlobStore, name string, f *Frame, opts ...WriteOption) error {
	data, err := Encode(ctx, f, opts...)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}

// encodeRows writes every cell as a uvarint length followed by its bytes.
func encodeRows(rows [][]string) []byte {
	var out []byte
	for _, row := range rows {
		for _, cell := range row {
			out = binary.AppendUvarint(out, uint64(len(cell)))
			out = append(out, cell...)
		}
	}
	return out
}

// decodeRows reverses encodeRows for a chunk of rows with cols cells each.
func decodeRows(data []byte, rows, cols int) ([][]string, error) {
	out := make([][]string, rows)
	for r := range rows {
		row := make([]string, cols)
		for c := range cols {
			n, k := binary.Uvarint(data)
			if k <= 0 || uint64(len(data)-k) < n {
				return nil, fmt.Errorf("%w: truncated cell at row %d", ErrCorrupt, r)
			}
			row[c] = string(data[k : k+int(n)])
			data = data[k+int(n):]
		}
		out[r] = row
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in chunk", ErrCorrupt, len(data))
	}
	return out, nil
}
