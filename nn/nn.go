// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers and losses of the gograd engine.
//
// Every operation has a plain form that only computes values and a Graph
// form that also records autodiff links on its output.
//
// Example:
//
//	layer, err := nn.NewLinear(784, 10, tensors, allocs)
//	layer.XavierInit(rand.NewPCG(1, 2))
//	err = layer.ForwardGraph(x, logits)
//	err = nn.CrossEntropyLossGraph(logits, labels, loss, allocs)
package nn

import (
	"math/rand/v2"

	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/nn"
	"github.com/born-ml/gograd/internal/tensor"
)

// Params is the ordered set of trainable tensors of a model.
type Params = nn.Params

// Linear represents a fully connected (dense) layer, y = x @ W + b.
type Linear = nn.Linear

// NewLinear allocates a linear layer with zeroed weights and biases.
func NewLinear(inDim, outDim int, params autodiff.TensorAllocator, allocs *autodiff.Allocators) (*Linear, error) {
	return nn.NewLinear(inDim, outDim, params, allocs)
}

// Xavier fills t from U(-sqrt(6/(fanIn+fanOut)), sqrt(6/(fanIn+fanOut))).
func Xavier(t *tensor.Tensor, fanIn, fanOut int, src rand.Source) {
	nn.Xavier(t, fanIn, fanOut, src)
}

// Activations

// ReLUForward computes out = max(0, x).
func ReLUForward(x, out *tensor.Tensor) error {
	return nn.ReLUForward(x, out)
}

// ReLUForwardGraph computes ReLUForward and records the graph link.
func ReLUForwardGraph(x, out *tensor.Tensor, allocs *autodiff.Allocators) error {
	return nn.ReLUForwardGraph(x, out, allocs)
}

// Losses

// MSELoss computes z = (1/batch) * sum(0.5 * (pred - target)^2).
func MSELoss(pred, target, z *tensor.Tensor) error {
	return nn.MSELoss(pred, target, z)
}

// MSELossGraph computes MSELoss and records the graph links.
func MSELossGraph(pred, target, z *tensor.Tensor, allocs *autodiff.Allocators) error {
	return nn.MSELossGraph(pred, target, z, allocs)
}

// CrossEntropyLoss computes the mean negative log-softmax of the target
// classes. targets holds one class id per row.
func CrossEntropyLoss(logits, targets, z *tensor.Tensor) error {
	return nn.CrossEntropyLoss(logits, targets, z)
}

// CrossEntropyLossGraph computes CrossEntropyLoss and records the graph links.
func CrossEntropyLossGraph(logits, targets, z *tensor.Tensor, allocs *autodiff.Allocators) error {
	return nn.CrossEntropyLossGraph(logits, targets, z, allocs)
}
