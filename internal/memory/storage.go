package memory

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/internal/tensor"
	"go.uber.org/zap"
)

// released marks a storage whose buffer has been freed.
const released = -1

// Storage owns one buffer and counts the array views carved out of it.
// The buffer is freed through its allocator when the last view is released.
type Storage struct {
	buffer    Buffer
	allocator Allocator

	// Live views, or released once the buffer is freed.
	refs atomic.Int64
}

// NewStorage wraps buf, which was produced by alloc. The storage starts with no views.
func NewStorage(buf Buffer, alloc Allocator) *Storage {
	return &Storage{buffer: buf, allocator: alloc}
}

// Buffer returns the backing buffer.
func (s *Storage) Buffer() Buffer {
	return s.buffer
}

// Allocator returns the allocator that produced the buffer.
func (s *Storage) Allocator() Allocator {
	return s.allocator
}

// RefCount returns the number of live views.
func (s *Storage) RefCount() int64 {
	if n := s.refs.Load(); n > 0 {
		return n
	}
	return 0
}

// IsReleased reports whether the buffer has been freed.
func (s *Storage) IsReleased() bool {
	return s.refs.Load() == released
}

// incRef counts a new view. Panics if the storage was already released.
func (s *Storage) incRef() {
	if !s.tryIncRef() {
		fatalf(ErrStorageReleased, "%s", s.buffer)
	}
}

// tryIncRef counts a new view unless the storage was already released.
func (s *Storage) tryIncRef() bool {
	for {
		n := s.refs.Load()
		if n == released {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// decRef drops a view. The decrement that takes the count to zero also marks the
// storage released in the same swap, so exactly one caller frees the buffer.
func (s *Storage) decRef() {
	for {
		n := s.refs.Load()
		if n <= 0 {
			panic(fmt.Sprintf("memory: storage reference count underflow (%d) on %s", n, s.buffer))
		}
		next := n - 1
		if next == 0 {
			next = released
		}
		if s.refs.CompareAndSwap(n, next) {
			if next == released {
				s.free()
			}
			return
		}
	}
}

// Release frees the buffer of a storage that has no live views and reports whether
// it did. Storages with views are freed by their last view instead.
func (s *Storage) Release() bool {
	if !s.refs.CompareAndSwap(0, released) {
		return false
	}
	s.free()
	return true
}

func (s *Storage) free() {
	logger.Debug("storage released", deviceField(s.buffer.Device), zap.Uint64("bytes", s.buffer.Size))
	s.allocator.Free(s.buffer)
}

// AllocArray creates a view of shape and dtype starting offset bytes into the buffer.
// On devices that address views by pointer the offset is folded into the data
// pointer and the view's byte offset is zero. Offsets at or past the end of the
// buffer are never folded; they stay in ByteOffset and fail the size check.
//
// The size check runs after the view exists and is counted; on overflow it panics
// with an *OverflowError carrying the view.
func (s *Storage) AllocArray(offset uint64, shape tensor.Shape, dtype tensor.DataType) *NDArray {
	VerifyDataType(dtype)
	VerifyShape(shape, dtype)

	arr := &NDArray{
		data:       s.buffer.Data,
		shape:      shape.Clone(),
		dtype:      dtype,
		device:     s.buffer.Device,
		byteOffset: offset,
		kind:       ownerStorage,
		storage:    s,
	}
	needed := device.Get(s.buffer.Device).DataSize(shape, dtype, "")
	s.incRef()

	if s.buffer.Device.Type.AddressesViewsByPointer() && offset < s.buffer.Size {
		arr.data = unsafe.Add(s.buffer.Data, offset)
		arr.byteOffset = 0
	}

	s.checkFits(arr, offset, needed)
	return arr
}

// AllocArrayScoped creates a view of shape and dtype in scope. Default scopes are
// served by AllocArray; other scopes get a view handle from the allocator that is
// freed together with the view.
func (s *Storage) AllocArrayScoped(offset uint64, shape tensor.Shape, dtype tensor.DataType, scope string) *NDArray {
	if IsDefaultScope(scope) {
		return s.AllocArray(offset, shape, dtype)
	}
	VerifyDataType(dtype)
	VerifyShape(shape, dtype)
	if s.IsReleased() {
		fatalf(ErrStorageReleased, "%s", s.buffer)
	}

	data := s.allocator.CreateView(s.buffer, shape, dtype, scope)
	arr := &NDArray{
		data:       data,
		shape:      shape.Clone(),
		dtype:      dtype,
		device:     s.buffer.Device,
		byteOffset: offset,
		scope:      scope,
		kind:       ownerScopedView,
		storage:    s,
	}
	needed := device.Get(s.buffer.Device).DataSize(shape, dtype, "")

	// The last view may have been released while the handle was being created.
	if !s.tryIncRef() {
		s.allocator.FreeView(s.buffer.Device, data)
		fatalf(ErrStorageReleased, "%s", s.buffer)
	}

	s.checkFits(arr, offset, needed)
	return arr
}

func (s *Storage) checkFits(arr *NDArray, offset, needed uint64) {
	if offset+needed > s.buffer.Size || offset+needed < offset {
		panic(&OverflowError{
			Offset: offset,
			Needed: needed,
			Size:   s.buffer.Size,
			Array:  arr,
		})
	}
}
