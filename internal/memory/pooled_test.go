package memory

import (
	"math"
	"testing"

	"github.com/born-ml/devmem/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPooledReuse(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.CUDA)
	pool := NewPooledAllocator(4096, 100)

	buf1 := pool.Alloc(dev, 1000, 64, tensor.Float32)
	assert.Equal(t, uint64(4096), buf1.Size, "size is rounded to the page size")
	assert.Equal(t, Pooled, buf1.AllocType)

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Allocated)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(0), stats.Hits)

	pool.Free(buf1)
	stats = pool.Stats()
	assert.Equal(t, uint64(1), stats.Released)
	assert.Equal(t, 1, stats.Pooled)
	assert.Equal(t, 0, mock.Frees, "freed buffers stay cached")

	// Same characteristics: served from the pool, no device call.
	buf2 := pool.Alloc(dev, 1000, 64, tensor.Float32)
	assert.Equal(t, buf1.Data, buf2.Data)
	assert.Equal(t, 1, mock.Allocs)
	stats = pool.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, 0, stats.Pooled)

	pool.Free(buf2)
	require.NoError(t, pool.Clear())
	assert.Equal(t, 1, mock.Frees)
	assert.Equal(t, 0, pool.Stats().Pooled)
	assert.Equal(t, uint64(0), pool.UsedMemory())

	// After Clear the next allocation reaches the device again.
	buf3 := pool.Alloc(dev, 1000, 64, tensor.Float32)
	assert.Equal(t, 2, mock.Allocs)
	pool.Free(buf3)
}

func TestPooledKeysBySizeAndAlignment(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.CUDA)
	pool := NewPooledAllocator(4096, 100)

	small := pool.Alloc(dev, 100, 64, tensor.Float32)
	pool.Free(small)

	// Different alignment, same rounded size: no reuse.
	aligned := pool.Alloc(dev, 100, 256, tensor.Float32)
	assert.Equal(t, 2, mock.Allocs)

	// Different rounded size: no reuse.
	large := pool.Alloc(dev, 5000, 64, tensor.Float32)
	assert.Equal(t, uint64(8192), large.Size)
	assert.Equal(t, 3, mock.Allocs)

	// Same rounded size as small: reuse.
	again := pool.Alloc(dev, 4000, 64, tensor.Float32)
	assert.Equal(t, small.Data, again.Data)
	assert.Equal(t, 3, mock.Allocs)

	for _, b := range []Buffer{aligned, large, again} {
		pool.Free(b)
	}
	require.NoError(t, pool.Clear())
	assert.Equal(t, 0, mock.Live())
}

func TestPooledBucketCap(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.CUDA)
	pool := NewPooledAllocator(4096, 2)

	bufs := make([]Buffer, 3)
	for i := range bufs {
		bufs[i] = pool.Alloc(dev, 10, 64, tensor.Uint8)
	}
	for _, b := range bufs {
		pool.Free(b)
	}

	assert.Equal(t, 2, pool.Stats().Pooled)
	assert.Equal(t, 1, mock.Frees, "buffer beyond the bucket cap is freed immediately")
	assert.Equal(t, uint64(2*4096), pool.UsedMemory())
}

func TestPooledZeroBytes(t *testing.T) {
	_, dev := useMockDevice(t, tensor.CUDA)
	pool := NewPooledAllocator(4096, 0)

	buf := pool.Alloc(dev, 0, 64, tensor.Float32)
	assert.Equal(t, uint64(4096), buf.Size)
	pool.Free(buf)
}

func TestPooledRetriesAfterReleasingCache(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.CUDA)
	mock.SetCapacity(8192)
	pool := NewPooledAllocator(4096, 0)

	cached := pool.Alloc(dev, 4096, 64, tensor.Float32)
	pool.Free(cached)

	// 4096 cached + 8192 requested exceeds capacity until the cache is dropped.
	buf := pool.Alloc(dev, 8192, 64, tensor.Float32)
	assert.Equal(t, uint64(8192), buf.Size)
	assert.Equal(t, 1, mock.Frees)
	assert.Equal(t, 0, pool.Stats().Pooled)

	// Nothing left to release: the retry fails too.
	requirePanicsIs(t, ErrDeviceAlloc, func() {
		pool.Alloc(dev, 4096, 64, tensor.Float32)
	})
	pool.Free(buf)
}

func TestPooledConcurrentAllocFree(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.CUDA)
	pool := NewPooledAllocator(4096, 0)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				buf := pool.Alloc(dev, uint64(j%3+1)*1000, 64, tensor.Float32)
				pool.Free(buf)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats := pool.Stats()
	assert.Equal(t, uint64(1600), stats.Hits+stats.Misses)
	allocs, _ := mock.Counts()
	assert.Equal(t, uint64(allocs), stats.Allocated)
	assert.Equal(t, stats.Pooled, mock.Live())

	require.NoError(t, pool.Clear())
	assert.Equal(t, 0, mock.Live())
}

func TestPooledRoundUpOverflow(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.CUDA)
	pool := NewPooledAllocator(4096, 0)

	requirePanicsIs(t, ErrDeviceAlloc, func() {
		pool.Alloc(dev, math.MaxUint64-1, 64, tensor.Uint8)
	})
	assert.Equal(t, 0, mock.Allocs)

	// The largest size that still rounds is handed to the device, which refuses it.
	requirePanicsIs(t, ErrDeviceAlloc, func() {
		pool.Alloc(dev, math.MaxUint64-4095, 64, tensor.Uint8)
	})
	assert.Equal(t, 0, mock.Allocs)
}
