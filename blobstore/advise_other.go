//go:build !unix

package blobstore

func adviseRandom([]byte) {}
