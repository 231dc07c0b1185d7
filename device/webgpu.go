//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

import (
	internaldevice "github.com/born-ml/devmem/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

// WebGPUAPI allocates storage buffers on a WebGPU device.
//
// Example:
//
//	api := device.RegisterWebGPU(gpu)
//	defer api.Release()
//
//	alloc := memory.GetOrCreateAllocator(tensor.Device{Type: tensor.WebGPU}, memory.Pooled)
type WebGPUAPI = internaldevice.WebGPUAPI

// Compile-time check that WebGPUAPI implements API.
var _ API = (*WebGPUAPI)(nil)

// NewWebGPUAPI creates an API allocating on gpu without registering it.
func NewWebGPUAPI(gpu *wgpu.Device) *WebGPUAPI {
	return internaldevice.NewWebGPUAPI(gpu)
}

// RegisterWebGPU creates an API allocating on gpu and registers it for the WebGPU family.
//
// The caller keeps ownership of gpu. Call Release on the returned API before
// releasing the device.
func RegisterWebGPU(gpu *wgpu.Device) *WebGPUAPI {
	return internaldevice.RegisterWebGPU(gpu)
}
