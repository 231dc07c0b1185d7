package memory

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/internal/tensor"
	"github.com/eapache/queue"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const (
	defaultPageSize  = 4096 // 4KB
	defaultMaxPooled = 100  // Max buffers per bucket
)

// poolKey identifies buffers that are interchangeable.
type poolKey struct {
	device    tensor.Device
	size      uint64
	alignment uint64
}

// PoolStats describes pooled allocator usage.
type PoolStats struct {
	Allocated uint64 // device allocations
	Released  uint64 // buffers returned to the pool
	Hits      uint64
	Misses    uint64
	Pooled    int // buffers currently cached
}

// PooledAllocator caches freed buffers and hands them out again for requests of the
// same rounded size and alignment. Sizes are rounded up to the page size.
type PooledAllocator struct {
	pageSize     uint64
	maxPerBucket int

	// Free lists keyed by (device, rounded size, alignment).
	pools  map[poolKey]*queue.Queue
	pooled int

	mu sync.Mutex

	used atomic.Int64

	// Statistics
	totalAllocated uint64
	totalReleased  uint64
	poolHits       uint64
	poolMisses     uint64
}

// NewPooledAllocator creates a pooled allocator. pageSize must be a power of two;
// zero selects 4KB. maxPerBucket caps cached buffers per bucket; zero means no cap.
func NewPooledAllocator(pageSize uint64, maxPerBucket int) *PooledAllocator {
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	return &PooledAllocator{
		pageSize:     pageSize,
		maxPerBucket: maxPerBucket,
		pools:        make(map[poolKey]*queue.Queue),
	}
}

// Type implements Allocator.
func (p *PooledAllocator) Type() AllocatorType {
	return Pooled
}

// roundUp rounds nbytes up to the page size.
func (p *PooledAllocator) roundUp(nbytes uint64) uint64 {
	if nbytes == 0 {
		return p.pageSize
	}
	if nbytes > math.MaxUint64-(p.pageSize-1) {
		fatalf(ErrDeviceAlloc, "%d bytes cannot be rounded to page size %d", nbytes, p.pageSize)
	}
	return (nbytes + p.pageSize - 1) &^ (p.pageSize - 1)
}

// Alloc implements Allocator. A cached buffer is reused when one matches;
// otherwise the device is asked for memory, dropping the cache and retrying once
// if the device is out of memory.
func (p *PooledAllocator) Alloc(dev tensor.Device, nbytes, alignment uint64, dtype tensor.DataType) Buffer {
	size := p.roundUp(nbytes)
	key := poolKey{device: dev, size: size, alignment: alignment}

	p.mu.Lock()
	if q := p.pools[key]; q != nil && q.Length() > 0 {
		buf := q.Remove().(Buffer)
		p.pooled--
		p.poolHits++
		p.mu.Unlock()
		return buf
	}
	p.poolMisses++
	p.mu.Unlock()

	api := device.Get(dev)
	ptr, err := api.Allocate(dev, size, alignment, dtype)
	if err != nil {
		logger.Warn("device allocation failed, releasing pooled buffers and retrying",
			deviceField(dev), zap.Uint64("bytes", size), zap.Error(err))
		if clearErr := p.Clear(); clearErr != nil {
			logger.Error("failed to release pooled buffers", deviceField(dev), zap.Error(clearErr))
		}
		ptr, err = api.Allocate(dev, size, alignment, dtype)
		if err != nil {
			fatalf(ErrDeviceAlloc, "%d bytes aligned to %d on %s: %v", size, alignment, dev, err)
		}
	}

	p.mu.Lock()
	p.totalAllocated++
	p.mu.Unlock()
	p.used.Add(int64(size))

	logger.Debug("pooled allocation", deviceField(dev), zap.Uint64("bytes", size))
	return Buffer{
		Device:    dev,
		Data:      ptr,
		Size:      size,
		Alignment: alignment,
		AllocType: Pooled,
	}
}

// AllocShape implements Allocator.
func (p *PooledAllocator) AllocShape(dev tensor.Device, shape tensor.Shape, dtype tensor.DataType, scope string) Buffer {
	return allocShape(p, dev, shape, dtype, scope)
}

// Free implements Allocator. The buffer is cached for reuse; if its bucket is
// full it is returned to the device immediately.
func (p *PooledAllocator) Free(buf Buffer) {
	key := poolKey{device: buf.Device, size: buf.Size, alignment: buf.Alignment}

	p.mu.Lock()
	q := p.pools[key]
	if q == nil {
		q = queue.New()
		p.pools[key] = q
	}
	if p.maxPerBucket > 0 && q.Length() >= p.maxPerBucket {
		p.mu.Unlock()
		// Bucket is full - release buffer immediately
		p.release(buf)
		return
	}
	q.Add(buf)
	p.pooled++
	p.totalReleased++
	p.mu.Unlock()
}

// release returns buf to the device.
func (p *PooledAllocator) release(buf Buffer) {
	if err := device.Get(buf.Device).Free(buf.Device, buf.Data); err != nil {
		panic(fmt.Errorf("memory: free %s: %w", buf, err))
	}
	p.used.Add(-int64(buf.Size))
}

// CreateView implements Allocator.
func (p *PooledAllocator) CreateView(buf Buffer, _ tensor.Shape, _ tensor.DataType, scope string) unsafe.Pointer {
	return flatView(p, buf, scope)
}

// FreeView implements Allocator. Flat views own nothing.
func (p *PooledAllocator) FreeView(tensor.Device, unsafe.Pointer) {}

// AllowMemoryScope implements Allocator.
func (p *PooledAllocator) AllowMemoryScope(scope string) bool {
	return IsDefaultScope(scope)
}

// Clear implements Allocator. Every cached buffer is returned to the device.
func (p *PooledAllocator) Clear() error {
	p.mu.Lock()
	var cached []Buffer
	for key, q := range p.pools {
		for q.Length() > 0 {
			cached = append(cached, q.Remove().(Buffer))
		}
		delete(p.pools, key)
	}
	p.pooled = 0
	p.mu.Unlock()

	var result *multierror.Error
	for _, buf := range cached {
		if err := device.Get(buf.Device).Free(buf.Device, buf.Data); err != nil {
			result = multierror.Append(result, fmt.Errorf("free %s: %w", buf, err))
			continue
		}
		p.used.Add(-int64(buf.Size))
	}

	if len(cached) > 0 {
		logger.Debug("released pooled buffers", zap.Int("count", len(cached)))
	}
	return result.ErrorOrNil()
}

// UsedMemory implements Allocator. Cached buffers count as used.
func (p *PooledAllocator) UsedMemory() uint64 {
	return uint64(p.used.Load())
}

// Stats returns statistics about pool usage.
func (p *PooledAllocator) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Allocated: p.totalAllocated,
		Released:  p.totalReleased,
		Hits:      p.poolHits,
		Misses:    p.poolMisses,
		Pooled:    p.pooled,
	}
}
