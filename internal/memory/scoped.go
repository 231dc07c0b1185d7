package memory

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/internal/tensor"
)

// ScopedAllocator serves devices with memory placements besides flat global memory.
// Flat requests go to an inner Naive or Pooled allocator; scoped requests and views
// go to the device's ScopedAPI.
//
// Device families install it through RegisterDeviceAllocator:
//
//	memory.RegisterDeviceAllocator(tensor.OpenCL, func(dev tensor.Device, typ memory.AllocatorType) memory.Allocator {
//	    return memory.NewScopedAllocator(memory.NewNaiveAllocator(), api)
//	})
type ScopedAllocator struct {
	inner  Allocator
	api    device.ScopedAPI
	scopes map[string]struct{}

	used atomic.Int64
}

// NewScopedAllocator wraps inner with the scopes advertised by api.
func NewScopedAllocator(inner Allocator, api device.ScopedAPI) *ScopedAllocator {
	scopes := make(map[string]struct{})
	for _, s := range api.Scopes() {
		scopes[s] = struct{}{}
	}
	return &ScopedAllocator{inner: inner, api: api, scopes: scopes}
}

// Type implements Allocator.
func (s *ScopedAllocator) Type() AllocatorType {
	return s.inner.Type()
}

// Alloc implements Allocator.
func (s *ScopedAllocator) Alloc(dev tensor.Device, nbytes, alignment uint64, dtype tensor.DataType) Buffer {
	return s.inner.Alloc(dev, nbytes, alignment, dtype)
}

// AllocShape implements Allocator.
func (s *ScopedAllocator) AllocShape(dev tensor.Device, shape tensor.Shape, dtype tensor.DataType, scope string) Buffer {
	if IsDefaultScope(scope) {
		return s.inner.AllocShape(dev, shape, dtype, scope)
	}
	if !s.AllowMemoryScope(scope) {
		fatalf(ErrUnsupportedMemoryScope, "%s does not provide scope %q", dev, scope)
	}
	VerifyShape(shape, dtype)

	ptr, err := s.api.AllocateScoped(dev, shape, dtype, scope)
	if err != nil {
		fatalf(ErrDeviceAlloc, "%s %v in scope %q on %s: %v", dtype, shape, scope, dev, err)
	}
	size := s.api.DataSize(shape, dtype, scope)
	s.used.Add(int64(size))

	return Buffer{
		Device:    dev,
		Data:      ptr,
		Size:      size,
		Alignment: DataAlignment(dtype),
		Scope:     scope,
		AllocType: s.inner.Type(),
	}
}

// Free implements Allocator.
func (s *ScopedAllocator) Free(buf Buffer) {
	if IsDefaultScope(buf.Scope) {
		s.inner.Free(buf)
		return
	}
	if err := s.api.Free(buf.Device, buf.Data); err != nil {
		panic(fmt.Errorf("memory: free %s: %w", buf, err))
	}
	s.used.Add(-int64(buf.Size))
}

// CreateView implements Allocator.
func (s *ScopedAllocator) CreateView(buf Buffer, shape tensor.Shape, dtype tensor.DataType, scope string) unsafe.Pointer {
	if IsDefaultScope(scope) {
		return buf.Data
	}
	if !s.AllowMemoryScope(scope) {
		fatalf(ErrUnsupportedMemoryScope, "%s cannot create a view in scope %q", buf.Device, scope)
	}

	view, err := s.api.CreateView(buf.Device, buf.Data, shape, dtype, scope)
	if err != nil {
		panic(fmt.Errorf("memory: create %q view of %s: %w", scope, buf, err))
	}
	return view
}

// FreeView implements Allocator.
func (s *ScopedAllocator) FreeView(dev tensor.Device, data unsafe.Pointer) {
	if err := s.api.FreeView(dev, data); err != nil {
		panic(fmt.Errorf("memory: free view %p on %s: %w", data, dev, err))
	}
}

// AllowMemoryScope implements Allocator.
func (s *ScopedAllocator) AllowMemoryScope(scope string) bool {
	if IsDefaultScope(scope) {
		return true
	}
	_, ok := s.scopes[scope]
	return ok
}

// Clear implements Allocator.
func (s *ScopedAllocator) Clear() error {
	return s.inner.Clear()
}

// UsedMemory implements Allocator.
func (s *ScopedAllocator) UsedMemory() uint64 {
	return s.inner.UsedMemory() + uint64(s.used.Load())
}
