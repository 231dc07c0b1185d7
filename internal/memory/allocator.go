// Package memory hands out typed, aligned device buffers, tracks the array views that
// alias them and frees each buffer exactly once when its last view is released.
//
// Allocators are created lazily, one per (device, allocator type), by a Manager.
// A Buffer is owned either by a bare NDArray (Empty) or by a Storage, which counts
// the views carved out of it with AllocArray and AllocArrayScoped.
//
// Contract violations (invalid data types, views overflowing their storage, unknown
// allocators) panic with an error wrapping one of the Err* sentinels.
package memory

import (
	"math"
	"unsafe"

	"github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/internal/tensor"
)

const (
	// DefaultScope is the label of flat global memory. The empty scope means the same.
	DefaultScope = "global"

	// AllocAlignment is the minimum alignment of every allocation.
	AllocAlignment = 64
)

// Allocator produces and reclaims device buffers for one (device, type) pair.
// Implementations must be safe for concurrent use.
type Allocator interface {
	// Type returns the caching policy of the allocator.
	Type() AllocatorType

	// Alloc allocates at least nbytes aligned to alignment.
	Alloc(dev tensor.Device, nbytes, alignment uint64, dtype tensor.DataType) Buffer

	// AllocShape allocates an array of shape and dtype in scope.
	// Flat allocators only accept the default scope.
	AllocShape(dev tensor.Device, shape tensor.Shape, dtype tensor.DataType, scope string) Buffer

	// Free reclaims a buffer returned by Alloc or AllocShape.
	// It is called exactly once per buffer.
	Free(buf Buffer)

	// CreateView returns a data handle aliasing buf as shape and dtype in scope.
	// The handle does not own buf.
	CreateView(buf Buffer, shape tensor.Shape, dtype tensor.DataType, scope string) unsafe.Pointer

	// FreeView releases a handle returned by CreateView without touching its buffer.
	FreeView(dev tensor.Device, data unsafe.Pointer)

	// AllowMemoryScope reports whether the allocator can place data in scope.
	AllowMemoryScope(scope string) bool

	// Clear releases memory cached by the allocator. Buffers in use are untouched.
	Clear() error

	// UsedMemory returns the bytes currently held from the device.
	UsedMemory() uint64
}

// IsDefaultScope reports whether scope names flat global memory.
func IsDefaultScope(scope string) bool {
	return scope == "" || scope == DefaultScope
}

// VerifyDataType panics with ErrInvalidDataType if dtype cannot back an allocation.
func VerifyDataType(dtype tensor.DataType) {
	if err := dtype.Validate(); err != nil {
		fatalf(ErrInvalidDataType, "%v", err)
	}
}

// VerifyShape panics with ErrInvalidShape if shape has negative dimensions or if
// an array of shape and dtype would need more than 2^64-1 bytes.
func VerifyShape(shape tensor.Shape, dtype tensor.DataType) {
	if err := shape.Validate(); err != nil {
		fatalf(ErrInvalidShape, "%v", err)
	}
	perElem := (uint64(dtype.Bits)*uint64(dtype.Lanes) + 7) / 8
	if perElem > 0 && uint64(shape.NumElements()) > math.MaxUint64/perElem {
		fatalf(ErrInvalidShape, "%s %v does not fit in 64-bit byte sizes", dtype, shape)
	}
}

// DataAlignment returns the alignment used for arrays of dtype:
// the element size, but never less than AllocAlignment.
func DataAlignment(dtype tensor.DataType) uint64 {
	align := dtype.BytesPerElement()
	if align < AllocAlignment {
		return AllocAlignment
	}
	return align
}

// allocShape is the shape allocation shared by flat allocators: default scopes are
// redirected to a flat Alloc, anything else is unsupported.
func allocShape(a Allocator, dev tensor.Device, shape tensor.Shape, dtype tensor.DataType, scope string) Buffer {
	if !IsDefaultScope(scope) {
		fatalf(ErrUnsupportedMemoryScope, "%s allocator on %s cannot place data in scope %q", a.Type(), dev, scope)
	}
	VerifyShape(shape, dtype)
	size := device.Get(dev).DataSize(shape, dtype, "")
	return a.Alloc(dev, size, DataAlignment(dtype), dtype)
}

// flatView is the CreateView of flat allocators: the default scope aliases the
// buffer itself, anything else is unsupported.
func flatView(a Allocator, buf Buffer, scope string) unsafe.Pointer {
	if !IsDefaultScope(scope) {
		fatalf(ErrUnsupportedMemoryScope, "%s allocator on %s cannot create a view in scope %q", a.Type(), buf.Device, scope)
	}
	return buf.Data
}

// Empty allocates a dedicated buffer for one array of shape and dtype on dev.
// The returned array owns the buffer and frees it through a when released.
func Empty(a Allocator, shape tensor.Shape, dtype tensor.DataType, dev tensor.Device, scope string) *NDArray {
	VerifyDataType(dtype)
	VerifyShape(shape, dtype)

	var buf Buffer
	if IsDefaultScope(scope) {
		size := device.Get(dev).DataSize(shape, dtype, scope)
		buf = a.Alloc(dev, size, DataAlignment(dtype), dtype)
	} else {
		buf = a.AllocShape(dev, shape, dtype, scope)
	}

	return newBareArray(buf, a, shape, dtype)
}
