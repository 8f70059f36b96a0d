// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. This package uses the
// official MinIO Go client library and works with other S3-compatible
// storage systems like Ceph, SeaweedFS, and Garage.
//
// # Basic Usage
//
//	store, err := minioblob.Dial("localhost:9000", "minioadmin", "minioadmin", false,
//	    "my-bucket", "frames/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := frame.Open(ctx, store, "iris.frame")
//
// # Features
//
//   - Ranged reads for partial frame access
//   - Works with any S3-compatible storage (Ceph, Garage, SeaweedFS)
//   - Air-gap friendly (no AWS dependencies required)
package minio
