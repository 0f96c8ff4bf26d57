package tensor

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// SameShape reports whether a and b have exactly the same shape sequence.
// Equal element counts with different dimensions are not the same shape.
func SameShape(a, b *Tensor) bool {
	if a == nil || b == nil || a.rank != b.rank {
		return false
	}
	for i := 0; i < a.rank; i++ {
		if a.dims[i] != b.dims[i] {
			return false
		}
	}
	return true
}

// AddInPlace performs a += b element-wise.
func AddInPlace(a, b *Tensor) error {
	if err := CheckNil(a); err != nil {
		return err
	}
	if err := CheckNil(b); err != nil {
		return err
	}
	if err := checkSameShape("add_inplace", a, b); err != nil {
		return err
	}
	AddInPlaceUnchecked(a, b)
	return nil
}

// AddInPlaceUnchecked performs a += b without validation.
// Callers guarantee both tensors are bound and share a shape.
func AddInPlaceUnchecked(a, b *Tensor) {
	addKernel(a.data, b.data)
}

// Copy copies src's elements into dst. Shapes must match exactly.
func Copy(src, dst *Tensor) error {
	if err := CheckNil(src); err != nil {
		return err
	}
	if err := CheckNil(dst); err != nil {
		return err
	}
	if err := checkSameShape("copy", src, dst); err != nil {
		return err
	}
	copy(dst.data, src.data)
	return nil
}

// Copy2D is Copy restricted to rank-2 tensors.
func Copy2D(src, dst *Tensor) error {
	if err := CheckNil(src); err != nil {
		return err
	}
	if err := checkRank("copy2d", src, 2); err != nil {
		return err
	}
	return Copy(src, dst)
}

// Clone returns a heap-allocated copy of src's data and shape.
//
// The clone is always a fresh leaf: it keeps src's tracking flag but never
// its graph node or gradient.
func Clone(src *Tensor) (*Tensor, error) {
	if err := CheckNil(src); err != nil {
		return nil, err
	}
	data := make([]float64, src.size)
	copy(data, src.data)
	t := &Tensor{}
	if err := t.Bind(data, src.Shape(), src.tracked); err != nil {
		return nil, err
	}
	return t, nil
}

// Fill sets every element of t to value. Unbound tensors are left alone.
func Fill(t *Tensor, value float64) {
	if t == nil {
		return
	}
	for i := range t.data {
		t.data[i] = value
	}
}

// Sum returns the sum of all elements.
func Sum(t *Tensor) float64 {
	var s float64
	for _, v := range t.data {
		s += v
	}
	return s
}

// Transpose2D writes the transpose of src [m, n] into dst [n, m].
func Transpose2D(src, dst *Tensor) error {
	if err := CheckNil(src); err != nil {
		return err
	}
	if err := CheckNil(dst); err != nil {
		return err
	}
	if err := checkRank("transpose2d", src, 2); err != nil {
		return err
	}
	if err := checkRank("transpose2d", dst, 2); err != nil {
		return err
	}
	if dst.dims[0] != src.dims[1] || dst.dims[1] != src.dims[0] {
		return errors.Wrapf(ErrShapeMismatch, "transpose2d: %v into %v", src.Shape(), dst.Shape())
	}
	Transpose2DUnchecked(src, dst)
	return nil
}

// Transpose2DUnchecked is Transpose2D without validation.
func Transpose2DUnchecked(src, dst *Tensor) {
	m, n := src.dims[0], src.dims[1]
	for i := 0; i < m; i++ {
		row := src.data[i*n : (i+1)*n]
		for j, v := range row {
			dst.data[j*m+i] = v
		}
	}
}

// MatMul2D computes out = a @ b for a [m, k], b [k, n] and out [m, n].
// out must not share storage with a or b.
func MatMul2D(a, b, out *Tensor) error {
	for _, t := range [...]*Tensor{a, b, out} {
		if err := CheckNil(t); err != nil {
			return err
		}
		if err := checkRank("matmul2d", t, 2); err != nil {
			return err
		}
	}
	m, k := a.dims[0], a.dims[1]
	if b.dims[0] != k || out.dims[0] != m || out.dims[1] != b.dims[1] {
		return errors.Wrapf(ErrShapeMismatch, "matmul2d: %v @ %v into %v", a.Shape(), b.Shape(), out.Shape())
	}
	if &out.data[0] == &a.data[0] || &out.data[0] == &b.data[0] {
		return errors.Wrap(ErrShapeMismatch, "matmul2d: output aliases an operand")
	}
	MatMul2DUnchecked(a, b, out)
	return nil
}

// MatMul2DUnchecked is MatMul2D without validation.
func MatMul2DUnchecked(a, b, out *Tensor) {
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, general(a), general(b), 0, general(out))
}

// general views a bound rank-2 tensor as a BLAS matrix without copying.
func general(t *Tensor) blas64.General {
	return blas64.General{
		Rows:   t.dims[0],
		Cols:   t.dims[1],
		Stride: t.dims[1],
		Data:   t.data,
	}
}

// AddRowVector computes out = a + row, broadcasting row [1, n] over every
// row of a [m, n]. out may be a itself.
func AddRowVector(a, row, out *Tensor) error {
	for _, t := range [...]*Tensor{a, row, out} {
		if err := CheckNil(t); err != nil {
			return err
		}
		if err := checkRank("add_row_vector", t, 2); err != nil {
			return err
		}
	}
	if row.dims[0] != 1 || row.dims[1] != a.dims[1] {
		return errors.Wrapf(ErrShapeMismatch, "add_row_vector: row %v for %v", row.Shape(), a.Shape())
	}
	if err := checkSameShape("add_row_vector", a, out); err != nil {
		return err
	}
	AddRowVectorUnchecked(a, row, out)
	return nil
}

// AddRowVectorUnchecked is AddRowVector without validation.
func AddRowVectorUnchecked(a, row, out *Tensor) {
	n := a.dims[1]
	if out != a {
		copy(out.data, a.data)
	}
	for i := 0; i < a.dims[0]; i++ {
		addKernel(out.data[i*n:(i+1)*n], row.data)
	}
}

// AddColumnSums accumulates the column sums of g [m, n] into dst [1, n].
// Callers guarantee both tensors are bound with compatible shapes.
func AddColumnSums(dst, g *Tensor) {
	columnSumKernel(dst.data, g.data, g.dims[0], g.dims[1])
}
