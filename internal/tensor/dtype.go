// Package tensor provides the device, data type and shape descriptors shared by the
// allocators and the array views they hand out.
package tensor

import "fmt"

// TypeCode is the type family of a DataType.
type TypeCode uint8

// Supported type codes.
const (
	Int TypeCode = iota
	UInt
	Float
	BFloat
	Opaque
)

// String returns a human-readable name for the type code.
func (c TypeCode) String() string {
	switch c {
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Float:
		return "float"
	case BFloat:
		return "bfloat"
	case Opaque:
		return "handle"
	default:
		return "unknown"
	}
}

// DataType represents runtime type information for tensors.
// A DataType with Lanes > 1 describes a vector element.
type DataType struct {
	Code  TypeCode
	Bits  uint8
	Lanes uint16
}

// Common data types.
var (
	Float16 = DataType{Code: Float, Bits: 16, Lanes: 1}
	Float32 = DataType{Code: Float, Bits: 32, Lanes: 1}
	Float64 = DataType{Code: Float, Bits: 64, Lanes: 1}
	Int8    = DataType{Code: Int, Bits: 8, Lanes: 1}
	Int32   = DataType{Code: Int, Bits: 32, Lanes: 1}
	Int64   = DataType{Code: Int, Bits: 64, Lanes: 1}
	Uint8   = DataType{Code: UInt, Bits: 8, Lanes: 1}
	// Bool is stored as a 1-bit unsigned integer.
	Bool = DataType{Code: UInt, Bits: 1, Lanes: 1}
)

// WithLanes returns a vector variant of dt.
func (dt DataType) WithLanes(lanes uint16) DataType {
	dt.Lanes = lanes
	return dt
}

// BytesPerElement returns (Bits/8)*Lanes. Sub-byte types report 0.
func (dt DataType) BytesPerElement() uint64 {
	return uint64(dt.Bits/8) * uint64(dt.Lanes)
}

// IsBool reports whether dt is the 1-bit unsigned boolean encoding.
func (dt DataType) IsBool() bool {
	return dt.Code == UInt && dt.Bits == 1
}

// Validate checks that dt can back an allocation: at least one lane,
// a power-of-two bit width and whole bytes per lane (uint1 excepted).
func (dt DataType) Validate() error {
	if dt.Lanes < 1 {
		return fmt.Errorf("data type %s: lanes must be >= 1", dt)
	}
	if dt.Bits == 0 || dt.Bits&(dt.Bits-1) != 0 {
		return fmt.Errorf("data type %s: bit width %d is not a power of two", dt, dt.Bits)
	}
	if dt.Bits%8 != 0 && !dt.IsBool() {
		return fmt.Errorf("data type %s: bit width %d is not a multiple of 8", dt, dt.Bits)
	}
	return nil
}

// String returns a human-readable name for the data type, e.g. "float32x4".
func (dt DataType) String() string {
	if dt.IsBool() && dt.Lanes == 1 {
		return "bool"
	}
	s := fmt.Sprintf("%s%d", dt.Code, dt.Bits)
	if dt.Lanes != 1 {
		s += fmt.Sprintf("x%d", dt.Lanes)
	}
	return s
}

// DataSize returns the number of bytes needed to store shape elements of dt.
// Each element is rounded up to whole bytes.
func DataSize(shape Shape, dt DataType) uint64 {
	perElem := (uint64(dt.Bits)*uint64(dt.Lanes) + 7) / 8
	return uint64(shape.NumElements()) * perElem
}
