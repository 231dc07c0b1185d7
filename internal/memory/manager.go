package memory

import (
	"fmt"
	"sync"

	"github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/internal/registry"
	"github.com/born-ml/devmem/internal/tensor"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const (
	// deviceAllocatorPrefix prefixes the registry names of device allocator factories.
	deviceAllocatorPrefix = "DeviceAllocator."

	// ClearCommand is the registry name of the bulk clear command.
	ClearCommand = "memory_manager.clear"
)

// DeviceAllocatorFactory builds a device-specific allocator. Returning nil selects
// the built-in allocator for typ. Factories run under the manager lock and must
// not allocate device memory.
type DeviceAllocatorFactory func(dev tensor.Device, typ AllocatorType) Allocator

// RegisterDeviceAllocator installs factory for every device of family t.
func RegisterDeviceAllocator(t tensor.DeviceType, factory DeviceAllocatorFactory) {
	name := t.AllocatorName()
	if name == "" {
		panic(fmt.Sprintf("memory: device type %s has no allocator name", t))
	}
	registry.Register(deviceAllocatorPrefix+name, factory, true)
}

// UnregisterDeviceAllocator removes the factory of family t.
func UnregisterDeviceAllocator(t tensor.DeviceType) {
	if name := t.AllocatorName(); name != "" {
		registry.Remove(deviceAllocatorPrefix + name)
	}
}

// deviceAllocator asks the factory registered for dev's family, if any.
func deviceAllocator(dev tensor.Device, typ AllocatorType) Allocator {
	name := dev.Type.AllocatorName()
	if name == "" {
		return nil
	}
	switch factory := registry.Get(deviceAllocatorPrefix + name).(type) {
	case DeviceAllocatorFactory:
		return factory(dev, typ)
	case func(tensor.Device, AllocatorType) Allocator:
		return factory(dev, typ)
	case func(tensor.Device, int) any:
		if a, ok := factory(dev, int(typ)).(Allocator); ok {
			return a
		}
	}
	return nil
}

// allocatorKey identifies one allocator instance.
type allocatorKey struct {
	device tensor.Device
	typ    AllocatorType
}

// AllocatorInfo describes an allocator owned by a Manager.
type AllocatorInfo struct {
	Device    tensor.Device
	Type      AllocatorType
	Allocator Allocator
}

// Manager owns one allocator per (device, type), created on first use.
// Allocators live as long as the manager; Clear only drops their caches.
type Manager struct {
	conf Config

	mu         sync.Mutex
	allocators map[allocatorKey]Allocator
}

// NewManager creates a manager using conf for built-in allocators.
func NewManager(conf Config) *Manager {
	return &Manager{
		conf:       conf,
		allocators: make(map[allocatorKey]Allocator),
	}
}

var (
	globalOnce sync.Once
	global     *Manager
	globalErr  error
)

// Global returns the process-wide manager, creating it from LoadConfig on first
// use. It panics with ErrInvalidConfig if the DEVMEM_* settings are invalid. It is
// never torn down implicitly; call Close at controlled shutdown.
func Global() *Manager {
	globalOnce.Do(func() {
		global, globalErr = newGlobalManager()
	})
	if globalErr != nil {
		fatalf(ErrInvalidConfig, "%v", globalErr)
	}
	return global
}

// newGlobalManager builds a manager from the environment and applies the host
// mmap threshold.
func newGlobalManager() (*Manager, error) {
	conf, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if api, ok := device.Lookup(tensor.CPUDevice(0)); ok {
		if host, ok := api.(*device.HostAPI); ok {
			host.SetMmapThreshold(conf.MmapThreshold)
		}
	}
	logger.Info("memory manager started",
		zap.String("default-allocator", conf.DefaultAllocator),
		zap.Uint64("page-size", conf.PageSize))
	return NewManager(conf), nil
}

func init() {
	registry.Register(ClearCommand, func() error { return Clear() }, false)
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.conf
}

// GetOrCreate returns the allocator for (dev, typ), creating it on first use.
// A factory registered for dev's family is consulted before the built-in
// allocators. Concurrent callers for the same key get the same instance.
func (m *Manager) GetOrCreate(dev tensor.Device, typ AllocatorType) Allocator {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := allocatorKey{device: dev, typ: typ}
	if a, ok := m.allocators[key]; ok {
		return a
	}
	a := m.newAllocator(dev, typ)
	m.allocators[key] = a
	return a
}

// newAllocator builds the allocator for (dev, typ). Must hold mu.
func (m *Manager) newAllocator(dev tensor.Device, typ AllocatorType) Allocator {
	if a := deviceAllocator(dev, typ); a != nil {
		logger.Debug("new device-specific allocator", deviceField(dev), typeField(typ))
		return a
	}

	switch typ {
	case Naive:
		logger.Debug("new naive allocator", deviceField(dev))
		return NewNaiveAllocator()
	case Pooled:
		logger.Debug("new pooled allocator", deviceField(dev))
		return NewPooledAllocator(m.conf.PageSize, m.conf.MaxPooledPerBucket)
	default:
		fatalf(ErrUnknownAllocatorType, "%s for %s", typ, dev)
		return nil
	}
}

// Default returns the allocator of the configured default type for dev.
func (m *Manager) Default(dev tensor.Device) Allocator {
	typ, err := m.conf.DefaultType()
	if err != nil {
		panic(err)
	}
	return m.GetOrCreate(dev, typ)
}

// Get returns the allocator for (dev, typ). It never creates one and panics with
// ErrAllocatorNotFound if GetOrCreate was not called for the key.
func (m *Manager) Get(dev tensor.Device, typ AllocatorType) Allocator {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.allocators[allocatorKey{device: dev, typ: typ}]
	if !ok {
		fatalf(ErrAllocatorNotFound, "allocator for %s of type %s has not been created yet", dev, typ)
	}
	return a
}

// ClearAll clears every allocator's cache. Allocators stay registered.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked()
}

func (m *Manager) clearLocked() error {
	var result *multierror.Error
	for key, a := range m.allocators {
		if err := a.Clear(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s allocator on %s: %w", key.typ, key.device, err))
		}
	}
	return result.ErrorOrNil()
}

// Allocators returns a snapshot of the allocators created so far.
func (m *Manager) Allocators() []AllocatorInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]AllocatorInfo, 0, len(m.allocators))
	for key, a := range m.allocators {
		infos = append(infos, AllocatorInfo{Device: key.device, Type: key.typ, Allocator: a})
	}
	return infos
}

// Close clears every allocator and forgets them. It is the shutdown hook of a
// manager; buffers still alive afterwards keep their allocator reachable but the
// manager no longer hands it out.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.clearLocked()
	m.allocators = make(map[allocatorKey]Allocator)
	return err
}

// GetOrCreateAllocator calls GetOrCreate on the global manager.
func GetOrCreateAllocator(dev tensor.Device, typ AllocatorType) Allocator {
	return Global().GetOrCreate(dev, typ)
}

// GetAllocator calls Get on the global manager.
func GetAllocator(dev tensor.Device, typ AllocatorType) Allocator {
	return Global().Get(dev, typ)
}

// Clear clears every allocator of the global manager.
// It is also registered as the ClearCommand registry function.
func Clear() error {
	return Global().ClearAll()
}
