package device

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/born-ml/devmem/internal/tensor"
)

// MockAPI is an in-memory ScopedAPI for tests. It backs every allocation with Go
// memory and counts each call so tests can assert on device traffic.
type MockAPI struct {
	mu sync.Mutex

	scopes []string
	live   map[uintptr][]byte
	views  map[uintptr]mockView

	// Bytes the device can hand out; 0 means unlimited.
	capacity uint64
	used     uint64
	failNext int

	Allocs      int
	Frees       int
	ScopedAlloc int
	ViewsMade   int
	ViewsFreed  int
}

type mockView struct {
	base  uintptr
	scope string
	token []byte
}

// NewMockAPI creates a mock device supporting the given non-default scopes.
func NewMockAPI(scopes ...string) *MockAPI {
	return &MockAPI{
		scopes: append([]string(nil), scopes...),
		live:   make(map[uintptr][]byte),
		views:  make(map[uintptr]mockView),
	}
}

// SetCapacity limits the bytes the mock device can have live at once.
func (m *MockAPI) SetCapacity(capacity uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = capacity
}

// FailNext makes the next n allocations fail with ErrOutOfMemory.
func (m *MockAPI) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Allocate implements API.
func (m *MockAPI) Allocate(dev tensor.Device, nbytes, alignment uint64, _ tensor.DataType) (unsafe.Pointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocateLocked(dev, nbytes, alignment)
}

func (m *MockAPI) allocateLocked(dev tensor.Device, nbytes, alignment uint64) (unsafe.Pointer, error) {
	if m.failNext > 0 {
		m.failNext--
		return nil, fmt.Errorf("%w: %d bytes on %s", ErrOutOfMemory, nbytes, dev)
	}
	if m.capacity > 0 && m.used+nbytes > m.capacity {
		return nil, fmt.Errorf("%w: %d bytes on %s (%d of %d used)", ErrOutOfMemory, nbytes, dev, m.used, m.capacity)
	}
	if alignment == 0 {
		alignment = 1
	}
	if alignment >= maxHostBytes || nbytes > maxHostBytes-alignment-1 {
		return nil, fmt.Errorf("%w: %d bytes on %s", ErrOutOfMemory, nbytes, dev)
	}

	mem := make([]byte, nbytes+alignment)
	addr := uintptr(unsafe.Pointer(&mem[0]))
	shift := uintptr(0)
	if rem := addr % uintptr(alignment); rem != 0 {
		shift = uintptr(alignment) - rem
	}
	mem = mem[shift : uint64(shift)+nbytes+1]
	ptr := unsafe.Pointer(&mem[0])

	m.live[uintptr(ptr)] = mem
	m.used += nbytes
	m.Allocs++
	return ptr, nil
}

// Free implements API.
func (m *MockAPI) Free(dev tensor.Device, ptr unsafe.Pointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.live[uintptr(ptr)]
	if !ok {
		return fmt.Errorf("%w %p on %s", ErrUnknownPointer, ptr, dev)
	}
	delete(m.live, uintptr(ptr))
	m.used -= uint64(len(mem) - 1)
	m.Frees++
	return nil
}

// DataSize implements API.
func (m *MockAPI) DataSize(shape tensor.Shape, dtype tensor.DataType, _ string) uint64 {
	return tensor.DataSize(shape, dtype)
}

// Scopes implements ScopedAPI.
func (m *MockAPI) Scopes() []string {
	return append([]string(nil), m.scopes...)
}

func (m *MockAPI) supports(scope string) bool {
	for _, s := range m.scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AllocateScoped implements ScopedAPI.
func (m *MockAPI) AllocateScoped(dev tensor.Device, shape tensor.Shape, dtype tensor.DataType, scope string) (unsafe.Pointer, error) {
	if !m.supports(scope) {
		return nil, fmt.Errorf("%w %q on %s", ErrUnsupportedScope, scope, dev)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ptr, err := m.allocateLocked(dev, tensor.DataSize(shape, dtype), 64)
	if err != nil {
		return nil, err
	}
	m.ScopedAlloc++
	return ptr, nil
}

// CreateView implements ScopedAPI.
func (m *MockAPI) CreateView(dev tensor.Device, ptr unsafe.Pointer, _ tensor.Shape, _ tensor.DataType, scope string) (unsafe.Pointer, error) {
	if !m.supports(scope) {
		return nil, fmt.Errorf("%w %q on %s", ErrUnsupportedScope, scope, dev)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live[uintptr(ptr)]; !ok {
		return nil, fmt.Errorf("%w %p on %s", ErrUnknownPointer, ptr, dev)
	}
	token := make([]byte, 1)
	view := unsafe.Pointer(&token[0])
	m.views[uintptr(view)] = mockView{base: uintptr(ptr), scope: scope, token: token}
	m.ViewsMade++
	return view, nil
}

// FreeView implements ScopedAPI.
func (m *MockAPI) FreeView(dev tensor.Device, view unsafe.Pointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.views[uintptr(view)]; !ok {
		return fmt.Errorf("%w %p on %s", ErrUnknownPointer, view, dev)
	}
	delete(m.views, uintptr(view))
	m.ViewsFreed++
	return nil
}

// Live returns the number of allocations not yet freed.
func (m *MockAPI) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// LiveViews returns the number of views not yet freed.
func (m *MockAPI) LiveViews() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}

// Counts returns Allocs and Frees under the lock.
func (m *MockAPI) Counts() (allocs, frees int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Allocs, m.Frees
}
