// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

import (
	internaldevice "github.com/born-ml/devmem/internal/device"
	"github.com/born-ml/devmem/tensor"
	"go.uber.org/zap"
)

// API is the raw allocation service of one device family.
type API = internaldevice.API

// ScopedAPI is an API that can also place data in non-flat memory scopes.
type ScopedAPI = internaldevice.ScopedAPI

// HostAPI serves host memory for the CPU and CUDAHost families.
type HostAPI = internaldevice.HostAPI

// HostStats reports host allocation counters.
type HostStats = internaldevice.HostStats

// DefaultMmapThreshold is the host allocation size from which memory is mapped.
const DefaultMmapThreshold = internaldevice.DefaultMmapThreshold

// Errors returned by device APIs.
var (
	ErrNoDeviceAPI      = internaldevice.ErrNoDeviceAPI
	ErrUnknownPointer   = internaldevice.ErrUnknownPointer
	ErrOutOfMemory      = internaldevice.ErrOutOfMemory
	ErrUnsupportedScope = internaldevice.ErrUnsupportedScope
)

// Compile-time check that HostAPI implements API.
var _ API = (*HostAPI)(nil)

// NewHostAPI creates a host API that maps allocations of at least mmapThreshold
// bytes. A threshold of 0 disables mapping.
func NewHostAPI(mmapThreshold uint64) *HostAPI {
	return internaldevice.NewHostAPI(mmapThreshold)
}

// Register installs api for every device of family t, replacing any previous one.
//
// Example:
//
//	device.Register(tensor.CPU, device.NewHostAPI(0))
func Register(t tensor.DeviceType, api API) {
	internaldevice.Register(t, api)
}

// Lookup returns the API registered for dev's family.
func Lookup(dev tensor.Device) (API, bool) {
	return internaldevice.Lookup(dev)
}

// UseLogger sets the logger used by device APIs.
func UseLogger(logger *zap.Logger) {
	internaldevice.UseLogger(logger)
}
