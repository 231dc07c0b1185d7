//go:build unix

package device

import (
	"errors"

	"golang.org/x/sys/unix"
)

func pageSize() uint64 {
	return uint64(unix.Getpagesize())
}

// mapHost maps n bytes of anonymous private memory.
func mapHost(n uint64) ([]byte, error) {
	if n == 0 || n > uint64(^uint(0)>>1) {
		return nil, errors.New("device: invalid mapping size")
	}
	return unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func unmapHost(mem []byte) error {
	err := unix.Munmap(mem)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
