// Package device defines the raw device memory services consumed by allocators and keeps
// one API implementation per device family.
package device

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/born-ml/devmem/internal/tensor"
)

var (
	// ErrNoDeviceAPI indicates that no API is registered for a device family.
	ErrNoDeviceAPI = errors.New("device: no api registered")

	// ErrUnknownPointer indicates a Free or FreeView of a handle the API never produced.
	ErrUnknownPointer = errors.New("device: unknown data pointer")

	// ErrOutOfMemory indicates that the device could not satisfy an allocation.
	ErrOutOfMemory = errors.New("device: out of memory")

	// ErrUnsupportedScope indicates a memory scope the device does not provide.
	ErrUnsupportedScope = errors.New("device: unsupported memory scope")
)

// API is the raw allocation service of one device family.
// Implementations must be safe for concurrent use.
type API interface {
	// Allocate returns nbytes of device memory aligned to alignment.
	Allocate(dev tensor.Device, nbytes, alignment uint64, dtype tensor.DataType) (unsafe.Pointer, error)

	// Free releases memory returned by Allocate or AllocateScoped.
	Free(dev tensor.Device, ptr unsafe.Pointer) error

	// DataSize returns the bytes an array of shape and dtype occupies in scope
	// on this device. The empty scope means flat global memory.
	DataSize(shape tensor.Shape, dtype tensor.DataType, scope string) uint64
}

// ScopedAPI is implemented by devices that provide memory placements other than
// flat global memory (texture memory, on-chip scratchpads).
type ScopedAPI interface {
	API

	// Scopes lists the non-default memory scopes the device supports.
	Scopes() []string

	// AllocateScoped allocates an array of shape and dtype in scope.
	AllocateScoped(dev tensor.Device, shape tensor.Shape, dtype tensor.DataType, scope string) (unsafe.Pointer, error)

	// CreateView returns a handle aliasing ptr as an array of shape and dtype in scope.
	// The view does not own ptr.
	CreateView(dev tensor.Device, ptr unsafe.Pointer, shape tensor.Shape, dtype tensor.DataType, scope string) (unsafe.Pointer, error)

	// FreeView releases a handle returned by CreateView.
	FreeView(dev tensor.Device, view unsafe.Pointer) error
}

// HostMemory is implemented by APIs whose data handles are host pointers.
type HostMemory interface {
	// Bytes returns the n bytes starting at ptr, which must lie inside a live allocation.
	Bytes(ptr unsafe.Pointer, n uint64) []byte
}

var (
	apisMu sync.RWMutex
	apis   = make(map[tensor.DeviceType]API)
)

// Register installs api for every device of family t, replacing any previous one.
func Register(t tensor.DeviceType, api API) {
	apisMu.Lock()
	defer apisMu.Unlock()
	apis[t] = api
	logger.Debug("registered device api", zapDeviceType(t))
}

// Unregister removes the API of family t.
func Unregister(t tensor.DeviceType) {
	apisMu.Lock()
	defer apisMu.Unlock()
	delete(apis, t)
}

// Lookup returns the API registered for dev's family.
func Lookup(dev tensor.Device) (API, bool) {
	apisMu.RLock()
	defer apisMu.RUnlock()
	api, ok := apis[dev.Type]
	return api, ok
}

// Get returns the API registered for dev's family.
// Panics if none is registered.
func Get(dev tensor.Device) API {
	api, ok := Lookup(dev)
	if !ok {
		panic(fmt.Errorf("%w for %s", ErrNoDeviceAPI, dev))
	}
	return api
}
