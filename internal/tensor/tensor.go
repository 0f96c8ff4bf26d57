// Package tensor implements the float64 tensor value type used by the
// autograd engine.
//
// A Tensor is a row-major buffer with a shape of at most MaxRank dimensions,
// an optional gradient of the same shape and an optional graph node recording
// the operation that produced it. Tensors are normally drawn from a pool
// (see internal/memory) and released at the end of a training step; the
// constructors in this package allocate on the heap and are meant for
// parameters, tests and one-off values.
package tensor

import (
	"github.com/pkg/errors"
)

// Node is the graph record attached to a tensor that was produced under
// gradient tracking. The concrete type lives in package autodiff; the
// tensor only stores it and hands it back.
type Node interface {
	// Sequence returns the node's creation sequence number.
	Sequence() uint64
}

// Tensor is a shaped float64 buffer with an optional gradient and graph node.
//
// The zero value is an unbound tensor: it holds no data and every checked
// operation on it fails with ErrNilData.
type Tensor struct {
	data    []float64
	dims    [MaxRank]int
	rank    int
	size    int
	tracked bool
	node    Node
	grad    *Tensor
	gen     uint64 // bumped on every Unbind
}

// New allocates a zeroed tensor with gradient tracking enabled.
func New(shape Shape) (*Tensor, error) {
	return newHeap(shape, true)
}

// NewNoGrad allocates a zeroed tensor that never records graph nodes
// and never receives gradients.
func NewNoGrad(shape Shape) (*Tensor, error) {
	return newHeap(shape, false)
}

// FromSlice creates a tracked tensor holding a copy of data.
//
// Example:
//
//	x, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, errors.Wrapf(ErrDataSizeMismatch,
			"shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	copy(t.data, data)
	return t, nil
}

func newHeap(shape Shape, tracked bool) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	t := &Tensor{}
	if err := t.Bind(make([]float64, shape.NumElements()), shape, tracked); err != nil {
		return nil, err
	}
	return t, nil
}

// Bind attaches a data buffer and shape to an unbound tensor.
//
// It is the hook used by allocator implementations: len(data) must equal
// the number of elements of shape. The buffer contents are left as-is.
func (t *Tensor) Bind(data []float64, shape Shape, tracked bool) error {
	if t == nil {
		return ErrNilTensor
	}
	if err := shape.Validate(); err != nil {
		return err
	}
	if len(data) != shape.NumElements() {
		return errors.Wrapf(ErrDataSizeMismatch,
			"bind: shape %v requires %d elements, buffer has %d", shape, shape.NumElements(), len(data))
	}
	t.data = data
	t.rank = copy(t.dims[:], shape)
	for i := t.rank; i < MaxRank; i++ {
		t.dims[i] = 0
	}
	t.size = len(data)
	t.tracked = tracked
	t.node = nil
	t.grad = nil
	return nil
}

// Unbind detaches and returns the data buffer, leaving t unbound.
//
// The node and gradient slots are cleared without being released; the
// caller (an allocator) is responsible for them. Unbind bumps the tensor's
// generation so stale graph references to it can be detected.
func (t *Tensor) Unbind() []float64 {
	data := t.data
	t.data = nil
	t.rank = 0
	t.size = 0
	t.tracked = false
	t.node = nil
	t.grad = nil
	t.gen++
	return data
}

// Bound reports whether t currently holds data.
func (t *Tensor) Bound() bool {
	return t != nil && t.data != nil
}

// Data returns the underlying row-major buffer.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Shape returns the tensor's dimensions.
// The returned slice aliases the tensor and must not be modified.
func (t *Tensor) Shape() Shape {
	return Shape(t.dims[:t.rank])
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.dims[i]
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return t.rank
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	return t.size
}

// Tracked reports whether the tensor takes part in gradient tracking.
func (t *Tensor) Tracked() bool {
	return t.tracked
}

// Generation returns a counter that changes every time the tensor's storage
// is released. A reference captured together with its generation is valid
// only while the two still match.
func (t *Tensor) Generation() uint64 {
	return t.gen
}

// Node returns the graph node that produced the tensor, or nil for leaves.
func (t *Tensor) Node() Node {
	return t.node
}

// SetNode attaches a graph node. Passing nil detaches it.
func (t *Tensor) SetNode(n Node) {
	t.node = n
}

// Grad returns the accumulated gradient, or nil if no gradient has been
// written since the tensor was allocated.
func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// SetGrad sets the gradient tensor. Passing nil detaches it.
func (t *Tensor) SetGrad(g *Tensor) {
	t.grad = g
}

// Get2D returns the element at (row, col) with full validation.
func (t *Tensor) Get2D(row, col int) (float64, error) {
	if err := CheckNil(t); err != nil {
		return 0, err
	}
	if err := checkRank("get2d", t, 2); err != nil {
		return 0, err
	}
	if row < 0 || col < 0 || row >= t.dims[0] || col >= t.dims[1] {
		return 0, errors.Wrapf(ErrIndexOutOfBounds, "get2d: (%d, %d) in %v", row, col, t.Shape())
	}
	return t.data[row*t.dims[1]+col], nil
}

// Set2D writes value at (row, col) with full validation. On error the
// tensor is left unmodified.
func (t *Tensor) Set2D(row, col int, value float64) error {
	if err := CheckNil(t); err != nil {
		return err
	}
	if err := checkRank("set2d", t, 2); err != nil {
		return err
	}
	if row < 0 || col < 0 || row >= t.dims[0] || col >= t.dims[1] {
		return errors.Wrapf(ErrIndexOutOfBounds, "set2d: (%d, %d) in %v", row, col, t.Shape())
	}
	t.data[row*t.dims[1]+col] = value
	return nil
}

// At2DUnchecked returns the element at (row, col) of a rank-2 tensor.
// Callers guarantee the tensor is bound, rank 2 and the indices in range.
func (t *Tensor) At2DUnchecked(row, col int) float64 {
	return t.data[row*t.dims[1]+col]
}

// Set2DUnchecked writes value at (row, col) of a rank-2 tensor.
// Callers guarantee the tensor is bound, rank 2 and the indices in range.
func (t *Tensor) Set2DUnchecked(row, col int, value float64) {
	t.data[row*t.dims[1]+col] = value
}
