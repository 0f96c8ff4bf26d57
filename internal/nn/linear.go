package nn

import (
	"math/rand/v2"

	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// Operand roles of a linear layer.
const (
	linearInput autodiff.Role = iota
	linearWeights
	linearBias
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W + b
// where:
//   - x is the input tensor with shape [batch_size, in_dim]
//   - W is the weight matrix with shape [in_dim, out_dim]
//   - b is the bias row with shape [1, out_dim]
//   - y is the output tensor with shape [batch_size, out_dim]
//
// Example:
//
//	layer, err := nn.NewLinear(784, 512, tensors, allocs)
//	layer.XavierInit(rand.NewPCG(42, 42))
//	err = layer.ForwardGraph(x, h)
type Linear struct {
	InDim   int
	OutDim  int
	Weights *tensor.Tensor // [in_dim, out_dim]
	Biases  *tensor.Tensor // [1, out_dim]

	params autodiff.TensorAllocator
	allocs *autodiff.Allocators
}

// NewLinear allocates a linear layer with zeroed weights and biases.
//
// Parameters:
//   - inDim, outDim: layer dimensions
//   - params: allocator the weights and biases are drawn from
//   - allocs: facade used to record graph links in ForwardGraph
func NewLinear(inDim, outDim int, params autodiff.TensorAllocator, allocs *autodiff.Allocators) (*Linear, error) {
	weights, err := params.Alloc(tensor.Shape{inDim, outDim}, autodiff.Tracked|autodiff.Zeroed)
	if err != nil {
		return nil, errors.Wrap(err, "linear weights")
	}
	biases, err := params.Alloc(tensor.Shape{1, outDim}, autodiff.Tracked|autodiff.Zeroed)
	if err != nil {
		_ = params.Release(weights)
		return nil, errors.Wrap(err, "linear biases")
	}
	return &Linear{
		InDim:   inDim,
		OutDim:  outDim,
		Weights: weights,
		Biases:  biases,
		params:  params,
		allocs:  allocs,
	}, nil
}

// XavierInit fills the weights from U(-sqrt(6/(in+out)), sqrt(6/(in+out))).
func (l *Linear) XavierInit(src rand.Source) {
	Xavier(l.Weights, l.InDim, l.OutDim, src)
}

// Parameters returns [weights, biases].
func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.Weights, l.Biases}
}

// Forward computes out = x @ W + b.
//
// x must be [batch, in_dim] and out [batch, out_dim]; out must not be x.
// Shapes are validated before out is written.
func (l *Linear) Forward(x, out *tensor.Tensor) error {
	if err := tensor.CheckNil(x); err != nil {
		return err
	}
	if err := tensor.CheckNil(out); err != nil {
		return err
	}
	if x.Rank() != 2 || out.Rank() != 2 {
		return errors.Wrapf(tensor.ErrRankMismatch, "linear: x %v, out %v", x.Shape(), out.Shape())
	}
	if x.Dim(1) != l.InDim || out.Dim(0) != x.Dim(0) || out.Dim(1) != l.OutDim {
		return errors.Wrapf(tensor.ErrShapeMismatch, "linear %dx%d: x %v, out %v",
			l.InDim, l.OutDim, x.Shape(), out.Shape())
	}

	// XW
	if err := tensor.MatMul2D(x, l.Weights, out); err != nil {
		return err
	}
	// XW + b
	return tensor.AddRowVector(out, l.Biases, out)
}

// ForwardGraph computes Forward and records the input, weights and bias
// links on out.
func (l *Linear) ForwardGraph(x, out *tensor.Tensor) error {
	if err := l.Forward(x, out); err != nil {
		return err
	}
	if err := autodiff.AttachLink(x, linearInput, linearGradInput, out, l.allocs); err != nil {
		return err
	}
	if err := autodiff.AttachLink(l.Weights, linearWeights, linearGradWeights, out, l.allocs); err != nil {
		return err
	}
	return autodiff.AttachLink(l.Biases, linearBias, linearGradBias, out, l.allocs)
}

// Release returns the weights and biases to the parameter allocator.
func (l *Linear) Release() error {
	if err := l.params.Release(l.Weights); err != nil {
		return err
	}
	return l.params.Release(l.Biases)
}

// linearGradInput computes dL/dX = G @ W^T.
func linearGradInput(ctx *autodiff.Context, g, dst *tensor.Tensor) error {
	w := ctx.Operand(linearWeights)
	wT, err := ctx.Scratch(tensor.Shape{w.Dim(1), w.Dim(0)})
	if err != nil {
		return err
	}
	tensor.Transpose2DUnchecked(w, wT)
	tensor.MatMul2DUnchecked(g, wT, dst)
	return nil
}

// linearGradWeights computes dL/dW = X^T @ G.
func linearGradWeights(ctx *autodiff.Context, g, dst *tensor.Tensor) error {
	x := ctx.Operand(linearInput)
	xT, err := ctx.Scratch(tensor.Shape{x.Dim(1), x.Dim(0)})
	if err != nil {
		return err
	}
	tensor.Transpose2DUnchecked(x, xT)
	tensor.MatMul2DUnchecked(xT, g, dst)
	return nil
}

// linearGradBias computes dL/db as the column sums of G.
func linearGradBias(_ *autodiff.Context, g, dst *tensor.Tensor) error {
	tensor.AddColumnSums(dst, g)
	return nil
}
