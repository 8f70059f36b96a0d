package frame

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pagegrid"
	"github.com/hupe1980/pagegrid/blobstore"
	"github.com/hupe1980/pagegrid/codec"
	"github.com/hupe1980/pagegrid/provider"
)

func sampleFrame(rows, cols int, named bool) *Frame {
	f := &Frame{}
	for c := range cols {
		f.ColNames = append(f.ColNames, fmt.Sprintf("col%d", c))
	}
	for r := range rows {
		if named {
			f.RowNames = append(f.RowNames, "r"+strconv.Itoa(r))
		}
		row := make([]string, cols)
		for c := range cols {
			row[c] = strconv.Itoa(r*100 + c)
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// countingBlob hides Mappable so every read goes through ReadAt.
type countingBlob struct {
	blobstore.Blob
	reads *atomic.Int64
}

func (b countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.reads.Add(1)
	return b.Blob.ReadAt(ctx, p, off)
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			f := sampleFrame(50, 10, true)
			require.NoError(t, Write(t.Context(), store, "df.frame", f, WithCompression(c), WithChunkRows(16)))

			r, err := Open(t.Context(), store, "df.frame")
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, 50, r.Rows())
			assert.Equal(t, 10, r.Columns())
			assert.Equal(t, c, r.Compression())

			block := provider.GridRange{
				Rows:    provider.Range{Start: 14, Count: 20},
				Columns: provider.Range{Start: 2, Count: 3},
			}
			g, err := r.Cells().FetchBlock(t.Context(), block)
			require.NoError(t, err)
			for row := block.Rows.Start; row < block.Rows.End(); row++ {
				assert.Equal(t, f.Rows[row][2:5], g.Row(row, block.Columns))
			}

			names, err := r.RowHeaders().FetchRange(t.Context(), provider.Range{Start: 48, Count: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"r48", "r49"}, names)

			cols, err := r.ColumnHeaders().FetchRange(t.Context(), provider.Range{Start: 0, Count: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"col0", "col1"}, cols)
		})
	}
}

func TestReadsOnlyCoveringChunks(t *testing.T) {
	data, err := Encode(t.Context(), sampleFrame(100, 4, false), WithChunkRows(10), WithCodec(codec.JSON{}))
	require.NoError(t, err)

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(t.Context(), "f", data))
	inner, err := store.Open(t.Context(), "f")
	require.NoError(t, err)

	var reads atomic.Int64
	r, err := NewReader(t.Context(), countingBlob{Blob: inner, reads: &reads})
	require.NoError(t, err)
	reads.Store(0)

	block := provider.GridRange{Rows: provider.Range{Start: 25, Count: 10}, Columns: provider.Range{Count: 4}}
	g, err := r.Cells().FetchBlock(t.Context(), block)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reads.Load())

	v, ok := g.At(34, 3)
	require.True(t, ok)
	assert.Equal(t, "3403", v)
}

func TestUnnamedRows(t *testing.T) {
	store := blobstore.NewMemoryStore()
	require.NoError(t, Write(t.Context(), store, "f", sampleFrame(3, 2, false)))

	r, err := Open(t.Context(), store, "f")
	require.NoError(t, err)
	defer r.Close()

	names, err := r.RowHeaders().FetchRange(t.Context(), provider.Range{Start: 1, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"[1,]", "[2,]"}, names)
}

func TestEmptyFrame(t *testing.T) {
	store := blobstore.NewMemoryStore()
	require.NoError(t, Write(t.Context(), store, "f", &Frame{ColNames: []string{"a"}}))

	r, err := Open(t.Context(), store, "f")
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 0, r.Rows())
	assert.Equal(t, 1, r.Columns())
}

func TestInvalidFrame(t *testing.T) {
	_, err := Encode(t.Context(), &Frame{ColNames: []string{"a", "b"}, Rows: [][]string{{"1"}}})
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = Encode(t.Context(), &Frame{RowNames: []string{"x"}, ColNames: []string{"a"}})
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = Encode(t.Context(), sampleFrame(1, 1, false), WithChunkRows(0))
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestCorruptBlob(t *testing.T) {
	store := blobstore.NewMemoryStore()
	data, err := Encode(t.Context(), sampleFrame(10, 2, false))
	require.NoError(t, err)

	t.Run("too small", func(t *testing.T) {
		require.NoError(t, store.Put(t.Context(), "small", []byte("PGFRAME1")))
		_, err := Open(t.Context(), store, "small")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte("NOTFRAME"), data[8:]...)
		require.NoError(t, store.Put(t.Context(), "magic", bad))
		_, err := Open(t.Context(), store, "magic")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("footer checksum", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-trailerSize-2] ^= 0xff
		require.NoError(t, store.Put(t.Context(), "crc", bad))
		_, err := Open(t.Context(), store, "crc")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Open(t.Context(), store, "nope")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}

func TestChunkIncompressible(t *testing.T) {
	data := []byte("abc")
	packed, err := packChunk(data, CompressionZSTD)
	require.NoError(t, err)
	// stored raw: header plus payload
	assert.Len(t, packed, chunkHeaderSize+len(data))

	got, err := unpackChunk(packed, CompressionZSTD, uint32(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = unpackChunk(packed[:4], CompressionZSTD, uint32(len(data)))
	assert.Error(t, err)
}

func TestChunkSizeMismatch(t *testing.T) {
	data := bytes.Repeat([]byte("pagegrid "), 64)
	packed, err := packChunk(data, CompressionLZ4)
	require.NoError(t, err)

	// a header announcing a huge size must not be trusted
	bad := append([]byte(nil), packed...)
	binary.LittleEndian.PutUint32(bad[0:], math.MaxUint32)
	_, err = unpackChunk(bad, CompressionLZ4, uint32(len(data)))
	assert.ErrorIs(t, err, errCorruptChunk)

	_, err = unpackChunk(packed, CompressionLZ4, uint32(len(data))+1)
	assert.ErrorIs(t, err, errCorruptChunk)
}

func TestCorruptChunk(t *testing.T) {
	store := blobstore.NewMemoryStore()
	data, err := Encode(t.Context(), sampleFrame(10, 2, false), WithCompression(CompressionZSTD))
	require.NoError(t, err)

	bad := append([]byte(nil), data...)
	bad[len(magic)+1] ^= 0xff // chunk 0 header
	require.NoError(t, store.Put(t.Context(), "chunk", bad))

	r, err := Open(t.Context(), store, "chunk")
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Cells().FetchBlock(t.Context(), provider.GridRange{
		Rows:    provider.Range{Count: 2},
		Columns: provider.Range{Count: 2},
	})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFooterCodecName(t *testing.T) {
	store := blobstore.NewMemoryStore()

	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := Encode(t.Context(), sampleFrame(3, 2, true), WithCodec(c))
			require.NoError(t, err)

			trailer := data[len(data)-trailerSize:]
			assert.Equal(t, c.Name(), string(bytes.TrimRight(trailer[16:16+codecNameSize], "\x00")))

			require.NoError(t, store.Put(t.Context(), c.Name(), data))
			r, err := Open(t.Context(), store, c.Name())
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, 3, r.Rows())
		})
	}

	t.Run("unknown", func(t *testing.T) {
		data, err := Encode(t.Context(), sampleFrame(3, 2, false))
		require.NoError(t, err)

		bad := append([]byte(nil), data...)
		copy(bad[len(bad)-trailerSize+16:], "yaml\x00\x00\x00\x00")
		require.NoError(t, store.Put(t.Context(), "unknown", bad))
		_, err = Open(t.Context(), store, "unknown")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("unregistered", func(t *testing.T) {
		_, err := Encode(t.Context(), sampleFrame(3, 2, false), WithCodec(yamlCodec{}))
		assert.ErrorIs(t, err, ErrInvalidFrame)
	})
}

type yamlCodec struct{ codec.JSON }

func (yamlCodec) Name() string { return "yaml" }

func TestGridManagerOverFrame(t *testing.T) {
	store := blobstore.NewMemoryStore()
	require.NoError(t, Write(t.Context(), store, "f", sampleFrame(50, 10, false), WithCompression(CompressionLZ4)))

	r, err := Open(t.Context(), store, "f")
	require.NoError(t, err)
	defer r.Close()

	m, err := pagegrid.NewGridManager(r.Cells())
	require.NoError(t, err)
	defer m.Close()

	v, err := m.Load(t.Context(), 40, 5)
	require.NoError(t, err)
	assert.Equal(t, "4005", v)
	assert.Equal(t, "4005", m.GetItem(40, 5).ValueOr(""))
}

func TestFetchEmptyRowRange(t *testing.T) {
	store := blobstore.NewMemoryStore()
	require.NoError(t, Write(t.Context(), store, "f", sampleFrame(5, 3, false)))

	r, err := Open(t.Context(), store, "f")
	require.NoError(t, err)
	defer r.Close()

	block := provider.GridRange{Rows: provider.Range{Start: 2}, Columns: provider.Range{Count: 3}}
	g, err := r.Cells().FetchBlock(t.Context(), block)
	require.NoError(t, err)
	assert.Equal(t, block, g.Range())
	assert.Zero(t, g.Len())

	_, err = r.Cells().FetchBlock(t.Context(), provider.GridRange{
		Rows:    provider.Range{Start: 4, Count: 2},
		Columns: provider.Range{Count: 3},
	})
	assert.Error(t, err)
}
