package autodiff

import "github.com/born-ml/gograd/internal/tensor"

// AllocOption selects how a tensor is allocated.
type AllocOption uint8

// Allocation options, combined with |.
const (
	// Tracked tensors may own graph nodes and receive gradients.
	Tracked AllocOption = 1 << iota
	// Zeroed tensors start with every element set to 0. Without it the
	// contents of a recycled buffer are unspecified.
	Zeroed
)

// TensorAllocator hands out and reclaims tensor storage.
type TensorAllocator interface {
	// Alloc returns a bound tensor of the given shape.
	Alloc(shape tensor.Shape, opts AllocOption) (*tensor.Tensor, error)
	// Release returns t's storage, and its gradient, to the allocator.
	// t must not own a graph node.
	Release(t *tensor.Tensor) error
}

// GraphAllocator hands out and reclaims graph nodes.
type GraphAllocator interface {
	// AllocNode returns an empty node carrying a fresh sequence number.
	AllocNode() (*Node, error)
	// ReleaseNode returns n to the allocator.
	ReleaseNode(n *Node) error
}

// Allocators pairs the tensor and graph allocators used by one model
// context. It is threaded through every graph-building call and into every
// backward Context, so independent pools can coexist.
//
// Allocators also keeps the backward worklist and context between passes so
// that repeated Backward calls do not allocate.
type Allocators struct {
	tensors TensorAllocator
	graph   GraphAllocator

	pass     uint64
	worklist nodeHeap
	ctx      Context
}

// NewAllocators creates the allocator facade.
func NewAllocators(tensors TensorAllocator, graph GraphAllocator) *Allocators {
	return &Allocators{
		tensors: tensors,
		graph:   graph,
	}
}

// Tensors returns the tensor allocator.
func (a *Allocators) Tensors() TensorAllocator {
	return a.tensors
}

// Graph returns the graph allocator.
func (a *Allocators) Graph() GraphAllocator {
	return a.graph
}

// Alloc returns a tracked tensor with unspecified contents.
func (a *Allocators) Alloc(shape tensor.Shape) (*tensor.Tensor, error) {
	return a.tensors.Alloc(shape, Tracked)
}

// AllocZeroed returns a tracked, zeroed tensor.
func (a *Allocators) AllocZeroed(shape tensor.Shape) (*tensor.Tensor, error) {
	return a.tensors.Alloc(shape, Tracked|Zeroed)
}

// NoGrad returns an untracked tensor with unspecified contents.
func (a *Allocators) NoGrad(shape tensor.Shape) (*tensor.Tensor, error) {
	return a.tensors.Alloc(shape, 0)
}

// NoGradZeroed returns an untracked, zeroed tensor.
func (a *Allocators) NoGradZeroed(shape tensor.Shape) (*tensor.Tensor, error) {
	return a.tensors.Alloc(shape, Zeroed)
}

// Release returns t's graph node to the graph allocator and then t itself,
// with its gradient, to the tensor allocator. Releasing nil is a no-op.
func (a *Allocators) Release(t *tensor.Tensor) error {
	if t == nil {
		return nil
	}
	if err := DetachGraph(t, a); err != nil {
		return err
	}
	return a.tensors.Release(t)
}

// ReleaseAll releases every tensor in order and returns the first error.
// Tensors after a failing one are still released.
func (a *Allocators) ReleaseAll(ts ...*tensor.Tensor) error {
	var first error
	for _, t := range ts {
		if err := a.Release(t); err != nil && first == nil {
			first = err
		}
	}
	return first
}
