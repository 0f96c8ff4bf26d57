package autodiff

import "github.com/born-ml/gograd/internal/tensor"

// Context gives a GradFunc access to the node being differentiated and to
// scoped scratch storage. It is only valid for the duration of the call.
type Context struct {
	node   *Node
	allocs *Allocators
	temps  []*tensor.Tensor
}

// Operand returns the operand linked under role, or nil if the node has no
// such link.
func (c *Context) Operand(role Role) *tensor.Tensor {
	for i := range c.node.links {
		if c.node.links[i].Role == role {
			return c.node.links[i].Operand
		}
	}
	return nil
}

// Output returns the tensor whose node is being differentiated.
func (c *Context) Output() *tensor.Tensor {
	return c.node.output
}

// Allocators returns the allocator facade of the backward pass.
func (c *Context) Allocators() *Allocators {
	return c.allocs
}

// Scratch returns an untracked temporary with unspecified contents. It is
// released when the node has been processed.
func (c *Context) Scratch(shape tensor.Shape) (*tensor.Tensor, error) {
	return c.scratch(shape, 0)
}

// ScratchZeroed is Scratch with every element set to 0.
func (c *Context) ScratchZeroed(shape tensor.Shape) (*tensor.Tensor, error) {
	return c.scratch(shape, Zeroed)
}

func (c *Context) scratch(shape tensor.Shape, opts AllocOption) (*tensor.Tensor, error) {
	t, err := c.allocs.tensors.Alloc(shape, opts)
	if err != nil {
		return nil, err
	}
	c.temps = append(c.temps, t)
	return t, nil
}

func (c *Context) reset(node *Node, allocs *Allocators) {
	c.node = node
	c.allocs = allocs
	c.temps = c.temps[:0]
}

// teardown releases every temporary and returns the first error.
func (c *Context) teardown() error {
	var first error
	for i, t := range c.temps {
		if err := c.allocs.tensors.Release(t); err != nil && first == nil {
			first = err
		}
		c.temps[i] = nil
	}
	c.temps = c.temps[:0]
	c.node = nil
	return first
}
