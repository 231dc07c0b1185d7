package memory

import (
	"testing"
	"unsafe"

	"github.com/born-ml/devmem/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const textureScope = "global.texture"

func TestScopedViewIsolation(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.OpenCL, textureScope)
	alloc := &countingAllocator{Allocator: NewScopedAllocator(NewNaiveAllocator(), mock)}

	buf := alloc.Alloc(dev, 1024, AllocAlignment, tensor.Float32)
	storage := NewStorage(buf, alloc)

	flat := storage.AllocArray(0, tensor.Shape{64}, tensor.Float32)
	scoped := storage.AllocArrayScoped(256, tensor.Shape{8, 8}, tensor.Float32, textureScope)
	assert.Equal(t, int64(2), storage.RefCount())
	assert.Equal(t, 1, mock.ViewsMade)
	assert.NotEqual(t, buf.Data, scoped.Data(), "scoped views get their own handle")
	assert.Equal(t, uint64(256), scoped.ByteOffset())
	assert.Equal(t, textureScope, scoped.Scope())

	scoped.Release()
	assert.Equal(t, 1, mock.ViewsFreed)
	assert.Equal(t, 0, mock.LiveViews())
	assert.Equal(t, int64(1), storage.RefCount())
	assert.Equal(t, int32(0), alloc.frees.Load(), "freeing a scoped view never frees the buffer")
	assert.Equal(t, buf, storage.Buffer())

	flat.Release()
	assert.Equal(t, int32(1), alloc.frees.Load())
	assert.Equal(t, 0, mock.Live())
}

func TestScopedLastViewFreesStorage(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.OpenCL, textureScope)
	alloc := &countingAllocator{Allocator: NewScopedAllocator(NewNaiveAllocator(), mock)}
	storage := NewStorage(alloc.Alloc(dev, 1024, AllocAlignment, tensor.Float32), alloc)

	view := storage.AllocArrayScoped(0, tensor.Shape{16}, tensor.Float32, textureScope)
	view.Release()

	assert.Equal(t, 1, mock.ViewsFreed)
	assert.Equal(t, int32(1), alloc.frees.Load())
	assert.True(t, storage.IsReleased())
}

func TestScopedDefaultScopeDelegates(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.OpenCL, textureScope)
	alloc := NewScopedAllocator(NewNaiveAllocator(), mock)
	storage := NewStorage(alloc.Alloc(dev, 256, AllocAlignment, tensor.Float32), alloc)

	for _, scope := range []string{"", "global"} {
		arr := storage.AllocArrayScoped(64, tensor.Shape{4}, tensor.Float32, scope)
		assert.Equal(t, storage.Buffer().Data, arr.Data())
		assert.Equal(t, uint64(64), arr.ByteOffset())
		assert.Equal(t, "", arr.Scope())
		assert.NotPanics(t, arr.Release)
	}
	assert.Equal(t, 0, mock.ViewsMade)
}

func TestScopedOverflowAfterConstruction(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.OpenCL, textureScope)
	alloc := NewScopedAllocator(NewNaiveAllocator(), mock)
	storage := NewStorage(alloc.Alloc(dev, 64, AllocAlignment, tensor.Float32), alloc)

	err := requirePanicsIs(t, ErrStorageOverflow, func() {
		storage.AllocArrayScoped(32, tensor.Shape{16}, tensor.Float32, textureScope)
	})
	assert.Equal(t, int64(1), storage.RefCount())
	assert.Equal(t, 1, mock.LiveViews())

	overflow, ok := err.(*OverflowError)
	require.True(t, ok)
	overflow.Array.Release()
	assert.Equal(t, 0, mock.LiveViews())
	assert.True(t, storage.IsReleased())
}

func TestScopedUnsupportedScope(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.OpenCL, textureScope)
	alloc := NewScopedAllocator(NewNaiveAllocator(), mock)
	storage := NewStorage(alloc.Alloc(dev, 64, AllocAlignment, tensor.Float32), alloc)

	assert.False(t, alloc.AllowMemoryScope("local"))
	requirePanicsIs(t, ErrUnsupportedMemoryScope, func() {
		storage.AllocArrayScoped(0, tensor.Shape{4}, tensor.Float32, "local")
	})
	requirePanicsIs(t, ErrUnsupportedMemoryScope, func() {
		alloc.AllocShape(dev, tensor.Shape{4}, tensor.Float32, "local")
	})
	assert.Equal(t, int64(0), storage.RefCount())
}

func TestEmptyInScope(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.OpenCL, textureScope)
	alloc := NewScopedAllocator(NewPooledAllocator(4096, 0), mock)

	arr := Empty(alloc, tensor.Shape{4, 4}, tensor.Float32, dev, textureScope)
	assert.Equal(t, 1, mock.ScopedAlloc)
	assert.Equal(t, textureScope, arr.Scope())
	assert.Equal(t, uint64(64), alloc.UsedMemory())

	arr.Release()
	assert.Equal(t, 1, mock.Frees, "scoped buffers bypass the pool")
	assert.Equal(t, uint64(0), alloc.UsedMemory())

	flat := Empty(alloc, tensor.Shape{4, 4}, tensor.Float32, dev, "")
	flat.Release()
	assert.Equal(t, 1, mock.Frees, "flat buffers go back to the pool")
	require.NoError(t, alloc.Clear())
	assert.Equal(t, 2, mock.Frees)
}

// releasingAllocator releases a view right after creating a new view handle, so
// the storage dies between handle creation and counting.
type releasingAllocator struct {
	Allocator
	victim *NDArray
}

func (r *releasingAllocator) CreateView(buf Buffer, shape tensor.Shape, dtype tensor.DataType, scope string) unsafe.Pointer {
	view := r.Allocator.CreateView(buf, shape, dtype, scope)
	r.victim.Release()
	return view
}

func TestScopedViewOfStorageReleasedDuringCreation(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.OpenCL, textureScope)
	alloc := &releasingAllocator{Allocator: NewScopedAllocator(NewNaiveAllocator(), mock)}
	storage := NewStorage(alloc.Alloc(dev, 256, AllocAlignment, tensor.Float32), alloc)
	alloc.victim = storage.AllocArray(0, tensor.Shape{4}, tensor.Float32)

	requirePanicsIs(t, ErrStorageReleased, func() {
		storage.AllocArrayScoped(0, tensor.Shape{4}, tensor.Float32, textureScope)
	})
	assert.True(t, storage.IsReleased())
	assert.Equal(t, 1, mock.ViewsMade)
	assert.Equal(t, 0, mock.LiveViews(), "the orphaned view handle is freed")
	assert.Equal(t, 0, mock.Live())
}

func TestScopedRejectsInvalidShapes(t *testing.T) {
	mock, dev := useMockDevice(t, tensor.OpenCL, textureScope)
	alloc := NewScopedAllocator(NewNaiveAllocator(), mock)
	storage := NewStorage(alloc.Alloc(dev, 64, AllocAlignment, tensor.Float32), alloc)

	requirePanicsIs(t, ErrInvalidShape, func() {
		storage.AllocArrayScoped(0, tensor.Shape{-1, -1}, tensor.Float32, textureScope)
	})
	requirePanicsIs(t, ErrInvalidShape, func() {
		alloc.AllocShape(dev, tensor.Shape{-3}, tensor.Float32, textureScope)
	})
	assert.Equal(t, 0, mock.ViewsMade)
	assert.Equal(t, 0, mock.ScopedAlloc)
}
