// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device provides the raw memory services allocators draw from.
//
// # Overview
//
// Every device family has one API registered:
//   - CPU and CUDAHost: HostAPI, registered at init
//   - WebGPU: WebGPUAPI, registered by the caller that owns the wgpu.Device
//   - anything else: a caller-provided API or ScopedAPI
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/devmem/device"
//	    "github.com/born-ml/devmem/memory"
//	    "github.com/born-ml/devmem/tensor"
//	)
//
//	func main() {
//	    device.Register(tensor.OpenCL, myOpenCLAPI)
//	    memory.RegisterDeviceAllocator(tensor.OpenCL, func(dev tensor.Device, typ memory.AllocatorType) memory.Allocator {
//	        return memory.NewScopedAllocator(memory.NewNaiveAllocator(), myOpenCLAPI)
//	    })
//	}
//
// # Host Memory
//
// HostAPI maps large allocations with mmap when the platform supports it and
// serves the rest from aligned Go memory. The threshold is set from
// DEVMEM_MMAP_THRESHOLD when the global manager starts.
//
// # Thread Safety
//
// API implementations must be safe for concurrent use.
package device
