// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("frames/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	r, err := frame.Open(ctx, store, "iris.frame")
//
// # Features
//
//   - Range reads, so frame readers fetch only the chunks they need
//   - Multipart uploads for large frames
//   - CRC32C checksums on single-part uploads
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
