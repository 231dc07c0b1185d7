package tensor

import "fmt"

// DeviceType identifies a device family.
type DeviceType int

// Supported device families.
const (
	CPU DeviceType = iota + 1
	CUDA
	CUDAHost
	OpenCL
	Vulkan
	Metal
	WebGPU
	Hexagon
	ExtDev
)

// String returns a human-readable device name.
func (t DeviceType) String() string {
	switch t {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case CUDAHost:
		return "CUDAHost"
	case OpenCL:
		return "OpenCL"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	case Hexagon:
		return "Hexagon"
	case ExtDev:
		return "ExtDev"
	default:
		return "Unknown"
	}
}

// AllocatorName returns the lowercase family name used to look up
// device-specific allocator factories. Unknown families return "".
func (t DeviceType) AllocatorName() string {
	switch t {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	case CUDAHost:
		return "cuda_host"
	case OpenCL:
		return "opencl"
	case Vulkan:
		return "vulkan"
	case Metal:
		return "metal"
	case WebGPU:
		return "webgpu"
	case Hexagon:
		return "hexagon"
	default:
		return ""
	}
}

// AddressesViewsByPointer reports whether views into a buffer on this family
// must be expressed by advancing the data pointer instead of a byte offset.
func (t DeviceType) AddressesViewsByPointer() bool {
	return t == Hexagon
}

// HostAddressable reports whether the family's data handles are host pointers.
func (t DeviceType) HostAddressable() bool {
	return t == CPU || t == CUDAHost
}

// Device is a device family plus ordinal. It is comparable and used as a map key.
type Device struct {
	Type DeviceType
	ID   int
}

// CPUDevice returns the host device with the given ordinal.
func CPUDevice(id int) Device {
	return Device{Type: CPU, ID: id}
}

// String returns e.g. "CPU:0".
func (d Device) String() string {
	return fmt.Sprintf("%s:%d", d.Type, d.ID)
}
