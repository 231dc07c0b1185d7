package tensor

import (
	"fmt"
	"math"
)

// Shape represents the dimensions of a tensor.
type Shape []int64

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int64 {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := int64(1)
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that the shape has no negative dimensions and that its element
// count fits in an int64. Zero-sized dimensions are allowed and describe empty arrays.
func (s Shape) Validate() error {
	empty := false
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
		if dim == 0 {
			empty = true
		}
	}
	if empty {
		return nil
	}

	n := int64(1)
	for _, dim := range s {
		if n > math.MaxInt64/dim {
			return fmt.Errorf("shape %v: element count overflows int64", s)
		}
		n *= dim
	}
	return nil
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}
