package memory

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/born-ml/devmem/internal/tensor"
)

// AllocatorType selects the caching policy of an allocator.
type AllocatorType int

// Built-in allocator types.
const (
	// Naive allocates and frees device memory on every call.
	Naive AllocatorType = iota + 1
	// Pooled caches freed buffers for reuse.
	Pooled
)

// String returns a human-readable name for the allocator type.
func (t AllocatorType) String() string {
	switch t {
	case Naive:
		return "naive"
	case Pooled:
		return "pooled"
	default:
		return fmt.Sprintf("AllocatorType(%d)", int(t))
	}
}

// ParseAllocatorType parses "naive" or "pooled".
func ParseAllocatorType(s string) (AllocatorType, error) {
	switch strings.ToLower(s) {
	case "naive":
		return Naive, nil
	case "pooled":
		return Pooled, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAllocatorType, s)
	}
}

// Buffer describes one physical device allocation.
// It is a plain value; ownership lies with exactly one Storage or bare NDArray.
type Buffer struct {
	Device    tensor.Device
	Data      unsafe.Pointer
	Size      uint64
	Alignment uint64
	// Scope is the memory scope the buffer was placed in; empty for flat memory.
	Scope     string
	AllocType AllocatorType
}

// String returns a short description for logs and panics.
func (b Buffer) String() string {
	return fmt.Sprintf("Buffer{%s %p size=%d align=%d scope=%q %s}",
		b.Device, b.Data, b.Size, b.Alignment, b.Scope, b.AllocType)
}
