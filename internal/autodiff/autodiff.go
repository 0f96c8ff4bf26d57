// Package autodiff implements the dynamic computation graph and reverse-mode
// automatic differentiation over internal/tensor values.
//
// Architecture:
//   - Node: attached to every tensor produced under tracking, one per output
//   - Link: one per operand of the producing operation, carrying a Role and
//     the GradFunc computing that operand's vector-Jacobian product
//   - Allocators: facade pairing a TensorAllocator and a GraphAllocator,
//     passed to every graph-building call and into every backward Context
//   - Backward: walks nodes in decreasing creation sequence, accumulating
//     contributions into operand gradients
//
// Usage:
//
//	allocs := autodiff.NewAllocators(tensorPool, graphPool)
//
//	// forward: compute out, then record how each operand reached it
//	_ = autodiff.AttachLink(x, roleInput, gradInput, out, allocs)
//
//	// backward from a scalar loss
//	nn.Params.ZeroGrad()
//	err := autodiff.Backward(loss, allocs)
//
// Everything here is single-threaded. Pools and graphs must not be shared
// between goroutines.
package autodiff

import (
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// Error kinds returned by graph construction and backpropagation.
var (
	ErrNotScalar    = errors.New("backward requires a single-element tensor")
	ErrUntracked    = errors.New("tensor is not tracked for gradients")
	ErrTapeOrder    = errors.New("operand was recorded after its consumer")
	ErrStaleOperand = errors.New("graph operand was released before backward")
)

// Role identifies which operand of an operation a link refers to.
// Its meaning is local to the operation that defines it.
type Role uint8

// GradFunc computes the contribution of the upstream gradient to one operand.
//
// upstream is the gradient flowing into the node's output; dst has the
// operand's shape, is zeroed, and receives the contribution. The engine adds
// dst into the operand's gradient afterwards. Shapes are those validated
// during the forward call and are not checked again.
type GradFunc func(ctx *Context, upstream, dst *tensor.Tensor) error

// Link is an edge from a node to one of its operands.
type Link struct {
	Role    Role
	Operand *tensor.Tensor // not owned
	Fn      GradFunc       // nil for operands that are only read, never differentiated

	gen uint64 // operand generation captured at attach time
}

// Node records the operation that produced one tensor.
type Node struct {
	seq    uint64
	output *tensor.Tensor // not owned; the output owns the node
	links  []Link
	mark   uint64 // last backward pass that enqueued the node
}

// NewNode returns an empty node with room for capacity links.
// It is intended for GraphAllocator implementations.
func NewNode(capacity int) *Node {
	return &Node{links: make([]Link, 0, capacity)}
}

// Reset prepares a recycled node for reuse under a new sequence number.
// Operand references from its previous life are dropped.
func (n *Node) Reset(seq uint64) {
	clear(n.links)
	n.links = n.links[:0]
	n.seq = seq
	n.output = nil
	n.mark = 0
}

// Sequence returns the creation sequence number assigned by the graph
// allocator. Nodes created later have larger numbers.
func (n *Node) Sequence() uint64 {
	return n.seq
}

// Output returns the tensor that owns the node.
func (n *Node) Output() *tensor.Tensor {
	return n.output
}

// Links returns the node's links in attach order.
func (n *Node) Links() []Link {
	return n.links
}

// NodeOf returns t's graph node, or nil if t is a leaf.
func NodeOf(t *tensor.Tensor) *Node {
	if t == nil {
		return nil
	}
	n, _ := t.Node().(*Node)
	return n
}
