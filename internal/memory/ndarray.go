package memory

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/internal/tensor"
)

// ownerKind selects how an NDArray gives back its memory.
type ownerKind uint8

const (
	// ownerBuffer: the array owns a dedicated buffer (Empty).
	ownerBuffer ownerKind = iota + 1
	// ownerStorage: the array is a counted view of a Storage.
	ownerStorage
	// ownerScopedView: like ownerStorage, plus a view handle from the allocator.
	ownerScopedView
)

func (k ownerKind) String() string {
	switch k {
	case ownerBuffer:
		return "buffer"
	case ownerStorage:
		return "storage"
	case ownerScopedView:
		return "scoped-view"
	default:
		return "unknown"
	}
}

// NDArray is a typed view of device memory. Call Release exactly when the array is
// no longer needed; the memory behind it is reclaimed according to how it was made.
type NDArray struct {
	data       unsafe.Pointer
	shape      tensor.Shape
	dtype      tensor.DataType
	device     tensor.Device
	byteOffset uint64
	scope      string

	kind      ownerKind
	buffer    *Buffer   // ownerBuffer
	allocator Allocator // ownerBuffer
	storage   *Storage  // ownerStorage, ownerScopedView

	released atomic.Bool
}

// newBareArray wraps a dedicated buffer.
func newBareArray(buf Buffer, alloc Allocator, shape tensor.Shape, dtype tensor.DataType) *NDArray {
	return &NDArray{
		data:      buf.Data,
		shape:     shape.Clone(),
		dtype:     dtype,
		device:    buf.Device,
		scope:     buf.Scope,
		kind:      ownerBuffer,
		buffer:    &buf,
		allocator: alloc,
	}
}

// Data returns the data handle. For host devices it is a host pointer to the
// buffer start; add ByteOffset to reach the first element.
func (a *NDArray) Data() unsafe.Pointer {
	return a.data
}

// Shape returns the array's shape.
func (a *NDArray) Shape() tensor.Shape {
	return a.shape
}

// DType returns the array's data type.
func (a *NDArray) DType() tensor.DataType {
	return a.dtype
}

// Device returns the array's device.
func (a *NDArray) Device() tensor.Device {
	return a.device
}

// ByteOffset returns the offset of the first element from Data.
func (a *NDArray) ByteOffset() uint64 {
	return a.byteOffset
}

// Scope returns the memory scope of the array; empty for flat memory.
func (a *NDArray) Scope() string {
	return a.scope
}

// Storage returns the storage the array is a view of, or nil for bare arrays.
func (a *NDArray) Storage() *Storage {
	return a.storage
}

// NumBytes returns the bytes the array occupies on its device.
func (a *NDArray) NumBytes() uint64 {
	return device.Get(a.device).DataSize(a.shape, a.dtype, a.scope)
}

// Bytes returns the array's memory as a byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
// Panics if the device is not host addressable or the array was released.
func (a *NDArray) Bytes() []byte {
	host, ok := device.Get(a.device).(device.HostMemory)
	if !ok || !a.device.Type.HostAddressable() {
		panic(fmt.Sprintf("memory: %s memory is not host addressable", a.device))
	}
	if a.released.Load() {
		panic("memory: access to released array")
	}
	n := tensor.DataSize(a.shape, a.dtype)
	if n == 0 {
		return nil
	}
	return host.Bytes(unsafe.Add(a.data, a.byteOffset), n)
}

// IsReleased reports whether Release has been called.
func (a *NDArray) IsReleased() bool {
	return a.released.Load()
}

// Release gives the array's memory back. Only the first call has an effect.
//   - bare arrays free their buffer through the allocator that made it;
//   - storage views drop their reference, freeing the storage with the last one;
//   - scoped views free their view handle first, never the storage buffer itself.
func (a *NDArray) Release() {
	if !a.released.CompareAndSwap(false, true) {
		return
	}

	switch a.kind {
	case ownerBuffer:
		a.allocator.Free(*a.buffer)
		a.buffer = nil
	case ownerStorage:
		a.storage.decRef()
	case ownerScopedView:
		a.storage.allocator.FreeView(a.device, a.data)
		a.storage.decRef()
	default:
		panic(fmt.Sprintf("memory: array with unknown owner kind %s", a.kind))
	}
}

// String returns e.g. "NDArray[float32][2 3] on CPU:0 (storage)".
func (a *NDArray) String() string {
	return fmt.Sprintf("NDArray[%s]%v on %s (%s)", a.dtype, a.shape, a.device, a.kind)
}
