package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the chunk compression algorithm.
type Compression uint8

const (
	// CompressionNone stores chunks as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

// String returns the name used in the footer and on the command line.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("frame: unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Chunk layout: [uncompressed uint32][stored uint32][data]. A stored size of
// 0 marks an uncompressed chunk.
const chunkHeaderSize = 8

var errCorruptChunk = errors.New("frame: corrupt chunk")

// packChunk compresses data and prepends the chunk header. Chunks that do not
// shrink below 90% are stored raw.
func packChunk(data []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("frame: unknown compression %d", c)
	}

	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*0.9 {
		packed = nil
	}

	body := data
	if packed != nil {
		body = packed
	}
	out := make([]byte, chunkHeaderSize+len(body))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	copy(out[chunkHeaderSize:], body)
	return out, nil
}

// unpackChunk reverses packChunk. The header must announce exactly size
// decoded bytes.
func unpackChunk(data []byte, c Compression, size uint32) ([]byte, error) {
	if len(data) < chunkHeaderSize {
		return nil, errCorruptChunk
	}
	if binary.LittleEndian.Uint32(data[0:]) != size {
		return nil, errCorruptChunk
	}
	stored := binary.LittleEndian.Uint32(data[4:])
	body := data[chunkHeaderSize:]

	if stored == 0 {
		if uint32(len(body)) < size {
			return nil, errCorruptChunk
		}
		return body[:size], nil
	}
	if uint32(len(body)) < stored {
		return nil, errCorruptChunk
	}
	body = body[:stored]

	out := make([]byte, size)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != size {
			return nil, errCorruptChunk
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(body, out[:0])
		if err != nil {
			return nil, err
		}
		if uint32(len(decoded)) != size {
			return nil, errCorruptChunk
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("frame: compressed chunk with compression %s", c)
	}
}
