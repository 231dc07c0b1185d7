package memory

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/internal/tensor"
)

// NaiveAllocator forwards every Alloc and Free to the device.
type NaiveAllocator struct {
	used atomic.Int64
}

// NewNaiveAllocator creates a naive allocator.
func NewNaiveAllocator() *NaiveAllocator {
	return &NaiveAllocator{}
}

// Type implements Allocator.
func (n *NaiveAllocator) Type() AllocatorType {
	return Naive
}

// Alloc implements Allocator.
func (n *NaiveAllocator) Alloc(dev tensor.Device, nbytes, alignment uint64, dtype tensor.DataType) Buffer {
	ptr, err := device.Get(dev).Allocate(dev, nbytes, alignment, dtype)
	if err != nil {
		fatalf(ErrDeviceAlloc, "%d bytes aligned to %d on %s: %v", nbytes, alignment, dev, err)
	}
	n.used.Add(int64(nbytes))

	return Buffer{
		Device:    dev,
		Data:      ptr,
		Size:      nbytes,
		Alignment: alignment,
		AllocType: Naive,
	}
}

// AllocShape implements Allocator.
func (n *NaiveAllocator) AllocShape(dev tensor.Device, shape tensor.Shape, dtype tensor.DataType, scope string) Buffer {
	return allocShape(n, dev, shape, dtype, scope)
}

// Free implements Allocator.
func (n *NaiveAllocator) Free(buf Buffer) {
	if err := device.Get(buf.Device).Free(buf.Device, buf.Data); err != nil {
		panic(fmt.Errorf("memory: free %s: %w", buf, err))
	}
	n.used.Add(-int64(buf.Size))
}

// CreateView implements Allocator.
func (n *NaiveAllocator) CreateView(buf Buffer, _ tensor.Shape, _ tensor.DataType, scope string) unsafe.Pointer {
	return flatView(n, buf, scope)
}

// FreeView implements Allocator. Flat views own nothing.
func (n *NaiveAllocator) FreeView(tensor.Device, unsafe.Pointer) {}

// AllowMemoryScope implements Allocator.
func (n *NaiveAllocator) AllowMemoryScope(scope string) bool {
	return IsDefaultScope(scope)
}

// Clear implements Allocator. A naive allocator caches nothing.
func (n *NaiveAllocator) Clear() error {
	return nil
}

// UsedMemory implements Allocator.
func (n *NaiveAllocator) UsedMemory() uint64 {
	return uint64(n.used.Load())
}
