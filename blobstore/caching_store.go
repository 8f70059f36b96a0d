package blobstore

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pagegrid/internal/cache"
)

// DefaultBlockSize is the block size used by NewCachingStore when none is given.
const DefaultBlockSize = 64 << 10

type blockKey struct {
	name  string
	block int64
}

// BlockCache is a bounded LRU cache of blob blocks shared by all blobs of a
// CachingStore.
type BlockCache struct {
	mu        sync.Mutex
	lru       *cache.LRU[blockKey, []byte]
	maxBlocks int
}

// NewBlockCache creates a cache holding at most maxBlocks blocks.
func NewBlockCache(maxBlocks int) *BlockCache {
	return &BlockCache{
		lru:       cache.NewLRU[blockKey, []byte](),
		maxBlocks: max(maxBlocks, 1),
	}
}

func (c *BlockCache) get(key blockKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

func (c *BlockCache) set(key blockKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, data)
	for c.lru.Len() > c.maxBlocks {
		oldest, _, ok := c.lru.Oldest(nil)
		if !ok {
			return
		}
		c.lru.Remove(oldest)
	}
}

func (c *BlockCache) invalidate(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Invalidate(func(k blockKey, _ []byte) bool { return k.name == name })
}

// Len returns the number of cached blocks.
func (c *BlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns cache hits and misses.
func (c *BlockCache) Stats() (hits, misses int64) {
	return c.lru.Stats()
}

// CachingStore wraps a BlobStore and adds block-level caching. It is meant for
// remote stores where every ReadAt is a network round trip.
type CachingStore struct {
	inner     BlobStore
	cache     *BlockCache
	blockSize int64
}

// NewCachingStore creates a new CachingStore.
// blockSize defaults to DefaultBlockSize if <= 0.
func NewCachingStore(inner BlobStore, cache *BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{
		inner:     inner,
		cache:     cache,
		blockSize: blockSize,
	}
}

// Open opens a blob whose reads go through the block cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		blockSize: s.blockSize,
	}, nil
}

// Put writes through and drops cached blocks of the blob.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete removes the blob and its cached blocks.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List delegates to the wrapped store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// CachingBlob wraps a Blob and uses the block cache for reads.
type CachingBlob struct {
	inner     Blob
	cache     *BlockCache
	name      string
	blockSize int64
}

// Close closes the wrapped blob.
func (b *CachingBlob) Close() error {
	return b.inner.Close()
}

// Size returns the size of the wrapped blob.
func (b *CachingBlob) Size() int64 {
	return b.inner.Size()
}

// ReadAt serves the read from cached blocks, fetching missing runs of blocks
// from the wrapped blob first.
func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}
	end := min(off+int64(len(p)), size)

	startBlock := off / b.blockSize
	endBlock := (end - 1) / b.blockSize

	blocks, err := b.fillBlocks(ctx, startBlock, endBlock)
	if err != nil {
		return 0, err
	}

	total := 0
	for i, data := range blocks {
		blkStart := (startBlock + int64(i)) * b.blockSize
		lo := max(blkStart, off)
		hi := min(blkStart+int64(len(data)), end)
		if hi <= lo {
			continue
		}
		total += copy(p[lo-off:hi-off], data[lo-blkStart:hi-blkStart])
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fillBlocks returns blocks [startBlock, endBlock]. Contiguous runs of missing
// blocks are fetched with one backend read each, concurrently.
func (b *CachingBlob) fillBlocks(ctx context.Context, startBlock, endBlock int64) ([][]byte, error) {
	blocks := make([][]byte, endBlock-startBlock+1)

	type run struct{ start, count int64 }
	var missing []run

	for blk := startBlock; blk <= endBlock; blk++ {
		if data, ok := b.cache.get(blockKey{name: b.name, block: blk}); ok {
			blocks[blk-startBlock] = data
			continue
		}
		if n := len(missing); n > 0 && missing[n-1].start+missing[n-1].count == blk {
			missing[n-1].count++
		} else {
			missing = append(missing, run{start: blk, count: 1})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	// Limit concurrency to avoid FD exhaustion or rate limits
	g.SetLimit(16)

	for _, r := range missing {
		g.Go(func() error {
			byteStart := r.start * b.blockSize
			byteSize := min(r.count*b.blockSize, b.Size()-byteStart)

			buf := make([]byte, byteSize)
			n, err := b.inner.ReadAt(gctx, buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]

			for i := range r.count {
				lo := i * b.blockSize
				if lo >= int64(len(buf)) {
					break
				}
				// Copy so that a cached block does not pin the whole run.
				data := append([]byte(nil), buf[lo:min(lo+b.blockSize, int64(len(buf)))]...)
				b.cache.set(blockKey{name: b.name, block: r.start + i}, data)
				blocks[r.start+i-startBlock] = data
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}
