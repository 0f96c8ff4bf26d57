// Package nn implements the layers and losses that build the autodiff graph.
//
// This package provides:
//   - Params: the ordered set of trainable tensors of a model
//   - Linear: fully connected layer, y = x @ W + b
//   - ReLU: rectified linear unit activation
//   - MSELoss, CrossEntropyLoss: scalar losses
//
// Every operation comes in two forms. The plain form (Forward, ReLUForward,
// MSELoss) only computes values. The *Graph form computes the same values and
// then attaches one autodiff link per operand to the output, so a later
// autodiff.Backward can differentiate through it.
//
// Example:
//
//	h1, _ := allocs.Alloc(tensor.Shape{batch, hidden})
//	if err := layer1.ForwardGraph(x, h1); err != nil { ... }
//	h2, _ := allocs.Alloc(tensor.Shape{batch, hidden})
//	if err := nn.ReLUForwardGraph(h1, h2, allocs); err != nil { ... }
package nn

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
)

// Params is the ordered set of trainable tensors of a model.
type Params struct {
	tensors []*tensor.Tensor
}

// Add appends parameters.
func (p *Params) Add(ts ...*tensor.Tensor) {
	p.tensors = append(p.tensors, ts...)
}

// All returns the parameters in insertion order.
func (p *Params) All() []*tensor.Tensor {
	return p.tensors
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	return len(p.tensors)
}

// ZeroGrad resets every parameter gradient to zero.
//
// This should be called before each backward pass; Backward accumulates
// into existing gradients.
func (p *Params) ZeroGrad() {
	autodiff.ZeroGrad(p.tensors...)
}
