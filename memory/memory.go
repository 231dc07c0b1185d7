// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package memory

import (
	"github.com/born-ml/devmem/internal/memory"
	"github.com/born-ml/devmem/tensor"
	"go.uber.org/zap"
)

// Type aliases for public API

// Allocator hands out device buffers and the views placed in them.
type Allocator = memory.Allocator

// AllocatorType selects an allocation policy.
type AllocatorType = memory.AllocatorType

// Allocator policies.
const (
	Naive  AllocatorType = memory.Naive
	Pooled AllocatorType = memory.Pooled
)

// Buffer describes one physical device allocation.
type Buffer = memory.Buffer

// Storage owns one buffer and counts the array views carved out of it.
type Storage = memory.Storage

// NDArray is a typed view of device memory.
type NDArray = memory.NDArray

// NaiveAllocator forwards every request to the device.
type NaiveAllocator = memory.NaiveAllocator

// PooledAllocator caches freed buffers for reuse.
type PooledAllocator = memory.PooledAllocator

// PoolStats describes pooled allocator usage.
type PoolStats = memory.PoolStats

// ScopedAllocator adds non-flat memory scopes to an allocator.
type ScopedAllocator = memory.ScopedAllocator

// Manager owns one allocator per (device, type).
type Manager = memory.Manager

// AllocatorInfo describes an allocator owned by a Manager.
type AllocatorInfo = memory.AllocatorInfo

// DeviceAllocatorFactory builds a device-specific allocator; nil selects the built-in one.
type DeviceAllocatorFactory = memory.DeviceAllocatorFactory

// Config holds allocator tunables.
type Config = memory.Config

// OverflowError reports a view that does not fit in its storage.
type OverflowError = memory.OverflowError

// Allocation constants.
const (
	DefaultScope   = memory.DefaultScope
	AllocAlignment = memory.AllocAlignment
	ClearCommand   = memory.ClearCommand
)

// Errors wrapped by allocator panics.
var (
	ErrInvalidDataType        = memory.ErrInvalidDataType
	ErrAllocatorNotFound      = memory.ErrAllocatorNotFound
	ErrUnsupportedMemoryScope = memory.ErrUnsupportedMemoryScope
	ErrStorageOverflow        = memory.ErrStorageOverflow
	ErrUnknownAllocatorType   = memory.ErrUnknownAllocatorType
	ErrStorageReleased        = memory.ErrStorageReleased
	ErrDeviceAlloc            = memory.ErrDeviceAlloc
)

// NewNaiveAllocator creates a naive allocator.
func NewNaiveAllocator() *NaiveAllocator {
	return memory.NewNaiveAllocator()
}

// NewPooledAllocator creates a pooled allocator rounding sizes to pageSize and
// caching at most maxPerBucket buffers per bucket (0 means unlimited).
func NewPooledAllocator(pageSize uint64, maxPerBucket int) *PooledAllocator {
	return memory.NewPooledAllocator(pageSize, maxPerBucket)
}

// NewStorage wraps buf, which was produced by alloc.
func NewStorage(buf Buffer, alloc Allocator) *Storage {
	return memory.NewStorage(buf, alloc)
}

// Empty allocates a dedicated buffer for an array of shape and dtype on dev.
//
// Example:
//
//	x := memory.Empty(alloc, tensor.Shape{2, 3}, tensor.Float32, tensor.CPUDevice(0), "")
//	defer x.Release()
func Empty(a Allocator, shape tensor.Shape, dtype tensor.DataType, dev tensor.Device, scope string) *NDArray {
	return memory.Empty(a, shape, dtype, dev, scope)
}

// RegisterDeviceAllocator installs factory for every device of family t.
func RegisterDeviceAllocator(t tensor.DeviceType, factory DeviceAllocatorFactory) {
	memory.RegisterDeviceAllocator(t, factory)
}

// NewManager creates a manager independent of the global one.
func NewManager(conf Config) *Manager {
	return memory.NewManager(conf)
}

// Global returns the process-wide manager.
func Global() *Manager {
	return memory.Global()
}

// GetOrCreateAllocator returns the global allocator for (dev, typ), creating it on first use.
func GetOrCreateAllocator(dev tensor.Device, typ AllocatorType) Allocator {
	return memory.GetOrCreateAllocator(dev, typ)
}

// GetAllocator returns the global allocator for (dev, typ). Panics if it was never created.
func GetAllocator(dev tensor.Device, typ AllocatorType) Allocator {
	return memory.GetAllocator(dev, typ)
}

// Clear drops the caches of every global allocator.
func Clear() error {
	return memory.Clear()
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return memory.DefaultConfig()
}

// LoadConfig reads DEVMEM_* environment variables over the defaults.
func LoadConfig() (Config, error) {
	return memory.LoadConfig()
}

// ParseAllocatorType parses "naive" or "pooled".
func ParseAllocatorType(s string) (AllocatorType, error) {
	return memory.ParseAllocatorType(s)
}

// UseLogger sets the logger used by allocators and the manager.
func UseLogger(logger *zap.Logger) {
	memory.UseLogger(logger)
}
