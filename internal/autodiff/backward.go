package autodiff

import (
	"container/heap"

	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// Backward computes gradients of the scalar out with respect to every
// tracked tensor that reaches it through the graph.
//
// Algorithm:
//  1. Seed out's gradient with 1.0
//  2. Keep a worklist of nodes ordered by decreasing creation sequence, so a
//     node is processed only after every node consuming its output
//  3. For each link of a popped node, compute the contribution of the
//     node's gradient to the operand and add it into the operand's gradient
//     (allocated zeroed on first write); enqueue the operand's node
//  4. Stop when the worklist is empty; leaves receive gradients but do not
//     propagate further
//
// Leaf gradients accumulate: callers zero them between iterations (see
// ZeroGrad). Gradients of intermediate tensors (those with a graph node) are
// reset the first time a pass reaches them, so running Backward again on a
// retained graph adds exactly one more pass to the leaves.
// A tensor's gradient is final only once Backward has returned. If out has
// no graph node nothing propagates and nil is returned.
func Backward(out *tensor.Tensor, allocs *Allocators) error {
	if err := tensor.CheckNil(out); err != nil {
		return err
	}
	if out.Size() != 1 {
		return errors.Wrapf(ErrNotScalar, "backward: shape %v", out.Shape())
	}
	root := NodeOf(out)
	if root == nil {
		return nil
	}

	seed, err := ensureGrad(out, allocs)
	if err != nil {
		return err
	}
	seed.Data()[0] = 1

	allocs.pass++
	wl := &allocs.worklist
	*wl = (*wl)[:0]
	root.mark = allocs.pass
	heap.Push(wl, root)

	for wl.Len() > 0 {
		node := heap.Pop(wl).(*Node)
		if err := propagate(node, allocs); err != nil {
			clear(*wl)
			*wl = (*wl)[:0]
			return err
		}
	}
	return nil
}

// propagate pushes node's output gradient through each of its links.
func propagate(node *Node, allocs *Allocators) error {
	upstream := node.output.Grad()
	if upstream == nil {
		return nil
	}

	// Any operand may be read by a GradFunc, so all of them must be live.
	for i := range node.links {
		link := &node.links[i]
		if !link.Operand.Bound() || link.Operand.Generation() != link.gen {
			return errors.Wrapf(ErrStaleOperand, "backward: node %d, role %d", node.seq, link.Role)
		}
	}

	ctx := &allocs.ctx
	ctx.reset(node, allocs)

	for i := range node.links {
		link := &node.links[i]
		if link.Fn == nil || !link.Operand.Tracked() {
			continue
		}
		if producer := NodeOf(link.Operand); producer != nil && producer.mark != allocs.pass {
			// An intermediate's gradient holds only the current pass.
			producer.mark = allocs.pass
			tensor.Fill(link.Operand.Grad(), 0)
			heap.Push(&allocs.worklist, producer)
		}
		if err := accumulate(ctx, link, upstream); err != nil {
			_ = ctx.teardown()
			return err
		}
	}
	return ctx.teardown()
}

// accumulate runs one link's GradFunc and adds the result into the
// operand's gradient.
func accumulate(ctx *Context, link *Link, upstream *tensor.Tensor) error {
	operand := link.Operand
	contribution, err := ctx.ScratchZeroed(operand.Shape())
	if err != nil {
		return err
	}
	if err := link.Fn(ctx, upstream, contribution); err != nil {
		return errors.Wrapf(err, "backward: role %d", link.Role)
	}

	grad, err := ensureGrad(operand, ctx.allocs)
	if err != nil {
		return err
	}
	tensor.AddInPlaceUnchecked(grad, contribution)
	return nil
}

// ensureGrad returns t's gradient, allocating a zeroed one on first use.
func ensureGrad(t *tensor.Tensor, allocs *Allocators) (*tensor.Tensor, error) {
	if g := t.Grad(); g != nil {
		return g, nil
	}
	g, err := allocs.tensors.Alloc(t.Shape(), Zeroed)
	if err != nil {
		return nil, errors.Wrap(err, "allocate gradient")
	}
	t.SetGrad(g)
	return g, nil
}

// ZeroGrad sets the gradient of every given tensor to all zeros. Tensors
// without a gradient are left alone; they read as zero already.
func ZeroGrad(ts ...*tensor.Tensor) {
	for _, t := range ts {
		if t == nil {
			continue
		}
		tensor.Fill(t.Grad(), 0)
	}
}

// nodeHeap is a max-heap of nodes keyed by creation sequence.
type nodeHeap []*Node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].seq > h[j].seq }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	*h = append(*h, x.(*Node))
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return node
}
