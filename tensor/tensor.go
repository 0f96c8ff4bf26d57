// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the float64 tensors used by the
// gograd autodiff engine.
//
// The package exposes:
//   - Tensor: shaped row-major buffer with an optional gradient and graph node
//   - Shape: tensor dimensions, rank 1 to MaxRank
//   - The checked element-wise and matrix operations (AddInPlace, MatMul2D, ...)
//   - Error kinds returned by every checked operation
//
// Example:
//
//	x, _ := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	w, _ := tensor.FromSlice([]float64{1, 1, 1}, tensor.Shape{3, 1})
//	y, _ := tensor.NewNoGrad(tensor.Shape{2, 1})
//	err := tensor.MatMul2D(x, w, y) // y = [[6], [15]]
package tensor

import (
	"github.com/born-ml/gograd/internal/tensor"
)

// MaxRank is the largest supported number of dimensions.
const MaxRank = tensor.MaxRank

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3} represents a 2x3 matrix.
type Shape = tensor.Shape

// Tensor is a shaped float64 buffer with an optional gradient and graph node.
type Tensor = tensor.Tensor

// Error kinds.
var (
	ErrNilTensor        = tensor.ErrNilTensor
	ErrNilData          = tensor.ErrNilData
	ErrShapeMismatch    = tensor.ErrShapeMismatch
	ErrRankMismatch     = tensor.ErrRankMismatch
	ErrIndexOutOfBounds = tensor.ErrIndexOutOfBounds
	ErrDataSizeMismatch = tensor.ErrDataSizeMismatch
	ErrInvalidShape     = tensor.ErrInvalidShape
)

// New allocates a zeroed tensor with gradient tracking enabled.
func New(shape Shape) (*Tensor, error) {
	return tensor.New(shape)
}

// NewNoGrad allocates a zeroed tensor without gradient tracking.
func NewNoGrad(shape Shape) (*Tensor, error) {
	return tensor.NewNoGrad(shape)
}

// FromSlice creates a tracked tensor holding a copy of data.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// SameShape reports whether a and b have equal shapes.
func SameShape(a, b *Tensor) bool {
	return tensor.SameShape(a, b)
}

// AddInPlace computes a += b.
func AddInPlace(a, b *Tensor) error {
	return tensor.AddInPlace(a, b)
}

// Copy copies src into dst. Shapes must match.
func Copy(src, dst *Tensor) error {
	return tensor.Copy(src, dst)
}

// Clone returns a heap copy of t without node or gradient.
func Clone(t *Tensor) (*Tensor, error) {
	return tensor.Clone(t)
}

// Sum returns the sum of all elements.
func Sum(t *Tensor) float64 {
	return tensor.Sum(t)
}

// Fill sets every element of t to v.
func Fill(t *Tensor, v float64) {
	tensor.Fill(t, v)
}

// Transpose2D writes the transpose of src into dst.
func Transpose2D(src, dst *Tensor) error {
	return tensor.Transpose2D(src, dst)
}

// MatMul2D computes out = a @ b.
func MatMul2D(a, b, out *Tensor) error {
	return tensor.MatMul2D(a, b, out)
}

// AddRowVector computes out = a + row, broadcasting row over a's rows.
func AddRowVector(a, row, out *Tensor) error {
	return tensor.AddRowVector(a, row, out)
}

// FastKernels reports whether the vectorised kernels are in use.
func FastKernels() bool {
	return tensor.FastKernels()
}
