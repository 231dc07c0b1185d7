// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/devmem/internal/tensor"
)

// Type aliases for public API

// TypeCode is the type family of a DataType.
type TypeCode = tensor.TypeCode

// Type code constants.
const (
	Int    TypeCode = tensor.Int
	UInt   TypeCode = tensor.UInt
	Float  TypeCode = tensor.Float
	BFloat TypeCode = tensor.BFloat
	Opaque TypeCode = tensor.Opaque
)

// DataType represents the element type of an array.
type DataType = tensor.DataType

// Common data types.
var (
	Float16 = tensor.Float16
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int8    = tensor.Int8
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Bool    = tensor.Bool
)

// DeviceType identifies a device family.
type DeviceType = tensor.DeviceType

// Device family constants.
const (
	CPU      DeviceType = tensor.CPU
	CUDA     DeviceType = tensor.CUDA
	CUDAHost DeviceType = tensor.CUDAHost
	OpenCL   DeviceType = tensor.OpenCL
	Vulkan   DeviceType = tensor.Vulkan
	Metal    DeviceType = tensor.Metal
	WebGPU   DeviceType = tensor.WebGPU
	Hexagon  DeviceType = tensor.Hexagon
	ExtDev   DeviceType = tensor.ExtDev
)

// Device is a device family plus an ordinal.
type Device = tensor.Device

// Shape represents the dimensions of an array.
// Example: Shape{2, 3, 4} represents a 3D array with dimensions 2×3×4.
type Shape = tensor.Shape

// CPUDevice returns the host device with the given ordinal.
func CPUDevice(id int) Device {
	return tensor.CPUDevice(id)
}

// DataSize returns the bytes needed to store shape elements of dt in flat memory.
func DataSize(shape Shape, dt DataType) uint64 {
	return tensor.DataSize(shape, dt)
}
