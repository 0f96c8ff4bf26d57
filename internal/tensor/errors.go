package tensor

import "github.com/pkg/errors"

// Error kinds returned by tensor operations. Callers test for them with
// errors.Is; the returned errors usually wrap one of these with context.
var (
	ErrNilTensor        = errors.New("tensor is nil")
	ErrNilData          = errors.New("tensor data is nil")
	ErrShapeMismatch    = errors.New("tensor shape mismatch")
	ErrRankMismatch     = errors.New("tensor rank mismatch")
	ErrIndexOutOfBounds = errors.New("tensor index out of bounds")
	ErrDataSizeMismatch = errors.New("tensor data size mismatch")
	ErrInvalidShape     = errors.New("invalid tensor shape")
)

// CheckNil returns ErrNilTensor if t is nil and ErrNilData if t holds no
// data (never bound, or already released).
func CheckNil(t *Tensor) error {
	if t == nil {
		return ErrNilTensor
	}
	if t.data == nil {
		return ErrNilData
	}
	return nil
}

// checkRank returns ErrRankMismatch unless t has exactly rank dimensions.
func checkRank(op string, t *Tensor, rank int) error {
	if t.rank != rank {
		return errors.Wrapf(ErrRankMismatch, "%s: expected rank %d, got shape %v", op, rank, t.Shape())
	}
	return nil
}

// checkSameShape returns ErrShapeMismatch unless a and b have equal shapes.
func checkSameShape(op string, a, b *Tensor) error {
	if !SameShape(a, b) {
		return errors.Wrapf(ErrShapeMismatch, "%s: %v vs %v", op, a.Shape(), b.Shape())
	}
	return nil
}
