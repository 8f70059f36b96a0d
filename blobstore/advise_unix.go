//go:build unix

package blobstore

import "golang.org/x/sys/unix"

// adviseRandom hints the kernel that the mapping is read at random offsets.
// The hint is advisory; failures are ignored.
func adviseRandom(data []byte) {
	_ = unix.Madvise(data, unix.MADV_RANDOM)
}
