//go:build windows

package device

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/born-ml/devmem/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"go.uber.org/zap"
)

// webgpuAlignment is the size granularity of WebGPU storage buffers.
const webgpuAlignment = 4

// WebGPUAPI allocates storage buffers on a WebGPU device. Data handles are the
// *wgpu.Buffer pointers themselves; they are not host addressable.
type WebGPUAPI struct {
	device *wgpu.Device

	mu      sync.Mutex
	buffers map[uintptr]*wgpu.Buffer
}

// NewWebGPUAPI creates an API allocating on device. The caller keeps ownership
// of the device and must call Release before releasing it.
func NewWebGPUAPI(device *wgpu.Device) *WebGPUAPI {
	return &WebGPUAPI{
		device:  device,
		buffers: make(map[uintptr]*wgpu.Buffer),
	}
}

// RegisterWebGPU registers an API for device under the WebGPU family.
func RegisterWebGPU(device *wgpu.Device) *WebGPUAPI {
	api := NewWebGPUAPI(device)
	Register(tensor.WebGPU, api)
	return api
}

// Allocate implements API. Sizes are rounded up to 4 bytes.
func (w *WebGPUAPI) Allocate(dev tensor.Device, nbytes, _ uint64, _ tensor.DataType) (unsafe.Pointer, error) {
	size := (nbytes + webgpuAlignment - 1) &^ (webgpuAlignment - 1)
	if size == 0 {
		size = webgpuAlignment
	}

	buffer := w.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	if buffer == nil {
		return nil, fmt.Errorf("%w: %d bytes on %s", ErrOutOfMemory, size, dev)
	}

	ptr := unsafe.Pointer(buffer)
	w.mu.Lock()
	w.buffers[uintptr(ptr)] = buffer
	w.mu.Unlock()

	logger.Debug("webgpu buffer created", zap.Uint64("bytes", size))
	return ptr, nil
}

// Free implements API.
func (w *WebGPUAPI) Free(dev tensor.Device, ptr unsafe.Pointer) error {
	w.mu.Lock()
	buffer, ok := w.buffers[uintptr(ptr)]
	delete(w.buffers, uintptr(ptr))
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w %p on %s", ErrUnknownPointer, ptr, dev)
	}
	buffer.Release()
	return nil
}

// DataSize implements API.
func (w *WebGPUAPI) DataSize(shape tensor.Shape, dtype tensor.DataType, _ string) uint64 {
	size := tensor.DataSize(shape, dtype)
	return (size + webgpuAlignment - 1) &^ (webgpuAlignment - 1)
}

// Release releases every live buffer.
func (w *WebGPUAPI) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for key, buffer := range w.buffers {
		buffer.Release()
		delete(w.buffers, key)
	}
}
