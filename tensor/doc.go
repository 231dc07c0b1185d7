// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the descriptors shared by every allocator in devmem.
//
// # Overview
//
// Three small value types describe a piece of device memory:
//   - Device: a device family plus an ordinal (CPU:0, CUDA:1, ...)
//   - DataType: a type code, a bit width and a lane count
//   - Shape: the dimensions of an array
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/devmem/memory"
//	    "github.com/born-ml/devmem/tensor"
//	)
//
//	func main() {
//	    dev := tensor.CPUDevice(0)
//	    alloc := memory.GetOrCreateAllocator(dev, memory.Pooled)
//
//	    x := memory.Empty(alloc, tensor.Shape{2, 3}, tensor.Float32, dev, "")
//	    defer x.Release()
//	}
//
// # Supported Data Types
//
// Any combination of code, bits and lanes whose bit width is a multiple of eight
// can be allocated. Bool is the one exception: a 1-bit unsigned integer stored as
// one byte per element.
//
// # Device Families
//
// CPU and CUDAHost memory is host addressable. Hexagon views address their first
// element by pointer instead of by byte offset.
package tensor
