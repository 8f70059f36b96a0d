package frame

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pagegrid/blobstore"
	"github.com/hupe1980/pagegrid/codec"
	"github.com/hupe1980/pagegrid/provider"
)

// Reader serves a stored frame. It is safe for concurrent use.
type Reader struct {
	blob        blobstore.Blob
	footer      footer
	compression Compression
}

// Open opens the frame stored under name.
func Open(ctx context.Context, store blobstore.BlobStore, name string) (*Reader, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(ctx, blob)
	if err != nil {
		_ = blob.Close()
		return nil, fmt.Errorf("open frame %s: %w", name, err)
	}
	return r, nil
}

// NewReader reads the footer of blob. The reader takes ownership of blob.
func NewReader(ctx context.Context, blob blobstore.Blob) (*Reader, error) {
	size := blob.Size()
	if size < int64(len(magic)+trailerSize) {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, size)
	}

	head, err := blobstore.ReadFull(ctx, blob, 0, int64(len(magic)))
	if err != nil {
		return nil, err
	}
	trailer, err := blobstore.ReadFull(ctx, blob, size-int64(trailerSize), int64(trailerSize))
	if err != nil {
		return nil, err
	}
	if string(head) != magic || string(trailer[16+codecNameSize:]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	off := int64(binary.LittleEndian.Uint64(trailer[0:]))
	n := int64(binary.LittleEndian.Uint32(trailer[8:]))
	sum := binary.LittleEndian.Uint32(trailer[12:])
	if off < int64(len(magic)) || off+n > size-int64(trailerSize) {
		return nil, fmt.Errorf("%w: footer [%d,%d) out of bounds", ErrCorrupt, off, off+n)
	}

	meta, err := blobstore.ReadFull(ctx, blob, off, n)
	if err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(meta) != sum {
		return nil, fmt.Errorf("%w: footer checksum mismatch", ErrCorrupt)
	}

	name := string(bytes.TrimRight(trailer[16:16+codecNameSize], "\x00"))
	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown footer codec %q", ErrCorrupt, name)
	}

	r := &Reader{blob: blob}
	if err := codec.Decode(c, meta, &r.footer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := r.check(off); err != nil {
		return nil, err
	}
	if r.compression, err = ParseCompression(r.footer.Compression); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return r, nil
}

func (r *Reader) check(footerOffset int64) error {
	ft := &r.footer
	switch {
	case ft.Version != version:
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, ft.Version)
	case ft.Rows < 0 || ft.Columns != len(ft.ColNames):
		return fmt.Errorf("%w: %d columns with %d names", ErrCorrupt, ft.Columns, len(ft.ColNames))
	case ft.RowNames != nil && len(ft.RowNames) != ft.Rows:
		return fmt.Errorf("%w: %d row names for %d rows", ErrCorrupt, len(ft.RowNames), ft.Rows)
	case ft.ChunkRows <= 0 || len(ft.Chunks) != (ft.Rows+ft.ChunkRows-1)/ft.ChunkRows:
		return fmt.Errorf("%w: %d chunks of %d rows for %d rows", ErrCorrupt, len(ft.Chunks), ft.ChunkRows, ft.Rows)
	}
	for i, c := range ft.Chunks {
		if c.Offset < int64(len(magic)) || c.Length < chunkHeaderSize || c.Offset+c.Length > footerOffset ||
			c.Size < 0 || c.Size > math.MaxUint32 {
			return fmt.Errorf("%w: chunk %d out of bounds", ErrCorrupt, i)
		}
	}
	return nil
}

// Rows returns the number of rows.
func (r *Reader) Rows() int { return r.footer.Rows }

// Columns returns the number of columns.
func (r *Reader) Columns() int { return r.footer.Columns }

// Compression returns the chunk compression of the blob.
func (r *Reader) Compression() Compression { return r.compression }

// Close releases the blob.
func (r *Reader) Close() error { return r.blob.Close() }

// RowHeaders returns the row header provider. Frames without row names get
// positional headers.
func (r *Reader) RowHeaders() provider.ListProvider[string] {
	if r.footer.RowNames == nil {
		return provider.ListFunc[string]{
			N: r.footer.Rows,
			Fetch: func(_ context.Context, rng provider.Range) ([]string, error) {
				return provider.IndexedHeaders(rng, true), nil
			},
		}
	}
	return provider.Static[string](r.footer.RowNames)
}

// ColumnHeaders returns the column header provider.
func (r *Reader) ColumnHeaders() provider.ListProvider[string] {
	return provider.Static[string](r.footer.ColNames)
}

// Cells returns the cell provider.
func (r *Reader) Cells() provider.GridProvider[string] {
	return provider.GridFunc[string]{
		Rows:    r.footer.Rows,
		Columns: r.footer.Columns,
		Fetch:   r.fetchBlock,
	}
}

func (r *Reader) fetchBlock(ctx context.Context, rng provider.GridRange) (*provider.Grid[string], error) {
	if rng.Rows.Start < 0 || rng.Rows.End() > r.footer.Rows ||
		rng.Columns.Start < 0 || rng.Columns.End() > r.footer.Columns {
		return nil, fmt.Errorf("block %s outside %dx%d frame", rng, r.footer.Rows, r.footer.Columns)
	}
	if rng.Rows.Empty() {
		return provider.NewGrid[string](rng, nil)
	}

	per := r.footer.ChunkRows
	first, last := rng.Rows.Start/per, (rng.Rows.End()-1)/per
	chunks := make([][][]string, last-first+1)

	g, gctx := errgroup.WithContext(ctx)
	for i := first; i <= last; i++ {
		g.Go(func() error {
			rows, err := r.readChunk(gctx, i)
			if err != nil {
				return err
			}
			chunks[i-first] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return provider.NewGridFunc(rng, func(row, col int) string {
		return chunks[row/per-first][row%per][col]
	}), nil
}

func (r *Reader) readChunk(ctx context.Context, i int) ([][]string, error) {
	ref := r.footer.Chunks[i]
	data, err := blobstore.ReadFull(ctx, r.blob, ref.Offset, ref.Length)
	if err != nil {
		return nil, fmt.Errorf("read chunk %d: %w", i, err)
	}
	if crc32.ChecksumIEEE(data) != ref.CRC {
		return nil, fmt.Errorf("%w: chunk %d checksum mismatch", ErrCorrupt, i)
	}
	raw, err := unpackChunk(data, r.compression, uint32(ref.Size))
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", i, err)
	}
	rows := min(r.footer.ChunkRows, r.footer.Rows-i*r.footer.ChunkRows)
	return decodeRows(raw, rows, r.footer.Columns)
}
