package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		dtype   DataType
		wantErr bool
	}{
		{"float32", Float32, false},
		{"float32x4", Float32.WithLanes(4), false},
		{"bool as uint1", Bool, false},
		{"int1 is not bool", DataType{Code: Int, Bits: 1, Lanes: 1}, true},
		{"float1", DataType{Code: Float, Bits: 1, Lanes: 1}, true},
		{"7 bits", DataType{Code: Int, Bits: 7, Lanes: 1}, true},
		{"24 bits", DataType{Code: Float, Bits: 24, Lanes: 1}, true},
		{"zero bits", DataType{Code: UInt, Bits: 0, Lanes: 1}, true},
		{"zero lanes", DataType{Code: Float, Bits: 32, Lanes: 0}, true},
		{"uint4", DataType{Code: UInt, Bits: 4, Lanes: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dtype.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDataTypeBytesAndString(t *testing.T) {
	assert.Equal(t, uint64(4), Float32.BytesPerElement())
	assert.Equal(t, uint64(16), Float32.WithLanes(4).BytesPerElement())
	assert.Equal(t, uint64(0), Bool.BytesPerElement())

	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "int8x16", Int8.WithLanes(16).String())
	assert.Equal(t, "bool", Bool.String())
}

func TestDataSize(t *testing.T) {
	assert.Equal(t, uint64(0), DataSize(Shape{0, 3}, Float32))
	assert.Equal(t, uint64(4), DataSize(Shape{}, Float32))
	assert.Equal(t, uint64(10), DataSize(Shape{10}, Bool))
	assert.Equal(t, uint64(32), DataSize(Shape{2, 2}, Float64))
}

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, int64(24), s.NumElements())

	c := s.Clone()
	c[0] = 5
	assert.Equal(t, Shape{2, 3, 4}, s)
}

func TestShapeValidate(t *testing.T) {
	tests := []struct {
		name    string
		shape   Shape
		wantErr bool
	}{
		{"scalar", Shape{}, false},
		{"matrix", Shape{2, 3}, false},
		{"empty", Shape{0, 3}, false},
		{"negative", Shape{2, -1}, true},
		{"two negatives", Shape{-1, -1}, true},
		{"negative after zero", Shape{0, -4}, true},
		{"element count overflow", Shape{1 << 32, 1 << 32}, true},
		{"overflow with zero dim", Shape{1 << 40, 1 << 40, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDevice(t *testing.T) {
	a := Device{Type: OpenCL, ID: 1}
	b := Device{Type: OpenCL, ID: 1}
	m := map[Device]int{a: 1}
	assert.Equal(t, 1, m[b])

	assert.Equal(t, "OpenCL:1", a.String())
	assert.Equal(t, "opencl", OpenCL.AllocatorName())
	assert.Equal(t, "", DeviceType(99).AllocatorName())
	assert.True(t, Hexagon.AddressesViewsByPointer())
	assert.False(t, CPU.AddressesViewsByPointer())
	assert.True(t, CPU.HostAddressable())
	assert.False(t, CUDA.HostAddressable())
}
