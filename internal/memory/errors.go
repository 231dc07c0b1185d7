package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDataType indicates a data type that cannot back an allocation.
	ErrInvalidDataType = errors.New("memory: invalid data type")

	// ErrInvalidShape indicates a shape with negative dimensions or a byte size that overflows.
	ErrInvalidShape = errors.New("memory: invalid shape")

	// ErrInvalidConfig indicates DEVMEM_* settings the global manager cannot start with.
	ErrInvalidConfig = errors.New("memory: invalid config")

	// ErrAllocatorNotFound indicates Get for a (device, type) pair that was never created.
	ErrAllocatorNotFound = errors.New("memory: allocator not found")

	// ErrUnsupportedMemoryScope indicates a memory scope the allocator cannot place data in.
	ErrUnsupportedMemoryScope = errors.New("memory: unsupported memory scope")

	// ErrStorageOverflow indicates a view that does not fit in its storage buffer.
	ErrStorageOverflow = errors.New("memory: storage allocation failure")

	// ErrUnknownAllocatorType indicates an allocator type with no built-in implementation.
	ErrUnknownAllocatorType = errors.New("memory: unknown allocator type")

	// ErrStorageReleased indicates a view requested from a storage whose buffer was freed.
	ErrStorageReleased = errors.New("memory: storage already released")

	// ErrDeviceAlloc indicates that the device could not satisfy an allocation.
	ErrDeviceAlloc = errors.New("memory: device allocation failed")
)

// OverflowError reports a view that extends past the end of its storage buffer.
// The view has already been constructed and counted against the storage when this
// error is raised; a caller that recovers it may Release the view.
type OverflowError struct {
	Offset uint64
	Needed uint64
	Size   uint64
	Array  *NDArray
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s, attempted to allocate %d bytes at offset %d in region that is %d bytes",
		ErrStorageOverflow, e.Needed, e.Offset, e.Size)
}

// Unwrap returns ErrStorageOverflow.
func (e *OverflowError) Unwrap() error {
	return ErrStorageOverflow
}

// fatalf panics with an error wrapping sentinel.
func fatalf(sentinel error, format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...))
}
