//go:build !unix

package device

import "errors"

var errNoMmap = errors.New("device: mmap not available on this platform")

func pageSize() uint64 {
	return 4096
}

func mapHost(uint64) ([]byte, error) {
	return nil, errNoMmap
}

func unmapHost([]byte) error {
	return errNoMmap
}
