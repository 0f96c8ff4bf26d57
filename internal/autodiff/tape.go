package autodiff

import (
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// AttachLink records that operand contributed to out under the given role.
//
// out must already hold the forward result. Its node is created from the
// graph allocator on the first attach and further links are appended to it,
// so an operation with three differentiable operands calls AttachLink three
// times. The same operand may be linked from any number of nodes.
//
// The tape must be built in forward order: an operand that owns a node must
// have been produced before out's node was created, otherwise ErrTapeOrder
// is returned and nothing is recorded.
func AttachLink(operand *tensor.Tensor, role Role, fn GradFunc, out *tensor.Tensor, allocs *Allocators) error {
	if operand == nil || out == nil {
		return tensor.ErrNilTensor
	}
	if !out.Tracked() {
		return errors.Wrapf(ErrUntracked, "attach link: output %v", out.Shape())
	}

	node := NodeOf(out)
	if node == nil {
		var err error
		node, err = allocs.graph.AllocNode()
		if err != nil {
			return errors.Wrap(err, "attach link")
		}
		node.output = out
		out.SetNode(node)
	}

	if producer := NodeOf(operand); producer != nil && producer.seq >= node.seq {
		return errors.Wrapf(ErrTapeOrder, "attach link: operand node %d, output node %d", producer.seq, node.seq)
	}

	node.links = append(node.links, Link{
		Role:    role,
		Operand: operand,
		Fn:      fn,
		gen:     operand.Generation(),
	})
	return nil
}

// DetachGraph releases t's graph node, if any, leaving t as a leaf that
// keeps its data and gradient.
func DetachGraph(t *tensor.Tensor, allocs *Allocators) error {
	node := NodeOf(t)
	if node == nil {
		return nil
	}
	t.SetNode(nil)
	return allocs.graph.ReleaseNode(node)
}
