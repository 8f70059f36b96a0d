// Package blobstore provides storage abstraction for immutable data blobs
// such as frame snapshots.
//
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and the mem:// URL
//   - LocalStore: local filesystem with read-only memory maps
//   - CachingStore: block-level LRU cache in front of another store
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Package bloburl opens any of them from a URL.
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error         // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
//	type Blob interface {
//	    ReadAt(ctx, p, off) (int, error)
//	    Size() int64
//	    Close() error
//	}
package blobstore
