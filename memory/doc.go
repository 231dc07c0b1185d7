// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package memory provides device memory allocators and the array views built on them.
//
// # Overview
//
// Memory flows through three layers:
//   - Allocator: Naive (one device call per request) or Pooled (caches freed buffers)
//   - Storage: one buffer shared by many views, freed with the last of them
//   - NDArray: a typed view of a buffer, released exactly once
//
// Allocators are created on demand, one per (device, type), by a Manager. The
// global manager reads DEVMEM_* environment variables on first use.
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
//	    // One 1KB buffer, two views into it.
//	    storage := memory.NewStorage(alloc.Alloc(dev, 1024, memory.AllocAlignment, tensor.Float32), alloc)
//	    a := storage.AllocArray(0, tensor.Shape{64}, tensor.Float32)
//	    b := storage.AllocArray(256, tensor.Shape{8, 8}, tensor.Float32)
//
//	    a.Release()
//	    b.Release() // buffer goes back to the pool here
//	}
//
// # Errors
//
// Misuse (invalid data types, unsupported scopes, views that overflow their
// storage) panics with an error wrapping one of the Err* values. Views that
// overflow panic with an *OverflowError carrying the view so a recovering caller
// can release it.
//
// # Thread Safety
//
// Allocators, storages and the manager are safe for concurrent use. An NDArray
// may be released from any goroutine; only the first Release has an effect.
package memory
