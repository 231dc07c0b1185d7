package device

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/born-ml/devmem/internal/tensor"
	"go.uber.org/zap"
)

// DefaultMmapThreshold is the allocation size from which HostAPI maps anonymous
// memory instead of using the Go heap.
const DefaultMmapThreshold = 1 << 20 // 1MB

// maxHostBytes is the largest slice length the Go heap can hand out.
const maxHostBytes = uint64(math.MaxInt)

// hostBlock is one live host allocation.
type hostBlock struct {
	mem    []byte // backing memory, kept referenced while the block is live
	size   uint64
	mapped bool
}

// HostStats describes the live allocations of a HostAPI.
type HostStats struct {
	Live        int
	LiveBytes   uint64
	Mapped      int
	Allocations uint64
	Frees       uint64
}

// HostAPI allocates host memory. Small blocks come from the Go heap, over-allocated
// and sliced to the requested alignment; blocks at or above the mmap threshold are
// anonymous mappings where the platform supports them.
type HostAPI struct {
	mmapThreshold uint64

	mu     sync.Mutex
	blocks map[uintptr]*hostBlock

	// Statistics
	liveBytes   uint64
	allocations uint64
	frees       uint64
}

// NewHostAPI creates a host API. A zero mmapThreshold disables mapping.
func NewHostAPI(mmapThreshold uint64) *HostAPI {
	return &HostAPI{
		mmapThreshold: mmapThreshold,
		blocks:        make(map[uintptr]*hostBlock),
	}
}

var _ HostMemory = (*HostAPI)(nil)

func init() {
	host := NewHostAPI(DefaultMmapThreshold)
	Register(tensor.CPU, host)
	Register(tensor.CUDAHost, host)
}

// SetMmapThreshold changes the size from which allocations are mapped.
func (h *HostAPI) SetMmapThreshold(threshold uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mmapThreshold = threshold
}

// Allocate implements API.
func (h *HostAPI) Allocate(dev tensor.Device, nbytes, alignment uint64, _ tensor.DataType) (unsafe.Pointer, error) {
	if alignment == 0 {
		alignment = 1
	}
	if alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("device: alignment %d on %s is not a power of two", alignment, dev)
	}
	if alignment > maxHostBytes || nbytes > maxHostBytes-alignment {
		return nil, fmt.Errorf("%w: %d bytes aligned to %d exceed the host address space on %s",
			ErrOutOfMemory, nbytes, alignment, dev)
	}

	h.mu.Lock()
	threshold := h.mmapThreshold
	h.mu.Unlock()

	block := &hostBlock{size: nbytes}
	var ptr unsafe.Pointer

	if threshold > 0 && nbytes >= threshold && alignment <= pageSize() {
		mem, err := mapHost(nbytes)
		if err == nil {
			block.mem = mem
			block.mapped = true
			ptr = unsafe.Pointer(&mem[0])
		} else {
			logger.Debug("mmap unavailable, using heap",
				zap.Uint64("bytes", nbytes), zap.Error(err))
		}
	}

	if ptr == nil {
		// Over-allocate so an aligned start always fits.
		mem := make([]byte, nbytes+alignment)
		addr := uintptr(unsafe.Pointer(&mem[0]))
		shift := uint64(0)
		if rem := uint64(addr) % alignment; rem != 0 {
			shift = alignment - rem
		}
		block.mem = mem
		ptr = unsafe.Pointer(&mem[shift])
	}

	h.mu.Lock()
	h.blocks[uintptr(ptr)] = block
	h.liveBytes += nbytes
	h.allocations++
	h.mu.Unlock()

	return ptr, nil
}

// Free implements API.
func (h *HostAPI) Free(dev tensor.Device, ptr unsafe.Pointer) error {
	h.mu.Lock()
	block, ok := h.blocks[uintptr(ptr)]
	if ok {
		delete(h.blocks, uintptr(ptr))
		h.liveBytes -= block.size
		h.frees++
	}
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w %p on %s", ErrUnknownPointer, ptr, dev)
	}
	if block.mapped {
		return unmapHost(block.mem)
	}
	return nil
}

// DataSize implements API. Host memory is flat, so scope does not change the size.
func (h *HostAPI) DataSize(shape tensor.Shape, dtype tensor.DataType, _ string) uint64 {
	return tensor.DataSize(shape, dtype)
}

// Bytes returns the n bytes starting at ptr, which must lie inside a live block.
func (h *HostAPI) Bytes(ptr unsafe.Pointer, n uint64) []byte {
	if n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice over memory owned by a live host block
	return unsafe.Slice((*byte)(ptr), n)
}

// Stats returns statistics about live host allocations.
func (h *HostAPI) Stats() HostStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	mapped := 0
	for _, b := range h.blocks {
		if b.mapped {
			mapped++
		}
	}
	return HostStats{
		Live:        len(h.blocks),
		LiveBytes:   h.liveBytes,
		Mapped:      mapped,
		Allocations: h.allocations,
		Frees:       h.frees,
	}
}
