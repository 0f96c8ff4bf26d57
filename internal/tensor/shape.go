package tensor

import "github.com/pkg/errors"

// MaxRank is the largest number of dimensions a tensor may have.
const MaxRank = 4

// Shape represents the dimensions of a tensor, outermost first.
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that the shape has between 1 and MaxRank dimensions
// and that every dimension is positive.
func (s Shape) Validate() error {
	if len(s) == 0 || len(s) > MaxRank {
		return errors.Wrapf(ErrInvalidShape, "rank %d not in [1, %d]", len(s), MaxRank)
	}
	for i, dim := range s {
		if dim <= 0 {
			return errors.Wrapf(ErrInvalidShape, "dimension %d is %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal reports whether two shapes have exactly the same dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}
