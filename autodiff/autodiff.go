// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Operations record one link per operand on their output tensor's graph
// node. Backward walks the nodes in reverse creation order and accumulates
// gradients into every tracked tensor.
//
// Example:
//
//	import (
//	    "github.com/born-ml/gograd/autodiff"
//	    "github.com/born-ml/gograd/memory"
//	)
//
//	func main() {
//	    tensors := memory.NewTensorPool(memory.DefaultConfig())
//	    graph := memory.NewGraphPool(memory.DefaultConfig())
//	    allocs := autodiff.NewAllocators(tensors, graph)
//
//	    // forward graph ... loss
//	    if err := autodiff.Backward(loss, allocs); err != nil { ... }
//	}
package autodiff

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
)

// Error kinds.
var (
	ErrNotScalar    = autodiff.ErrNotScalar
	ErrUntracked    = autodiff.ErrUntracked
	ErrTapeOrder    = autodiff.ErrTapeOrder
	ErrStaleOperand = autodiff.ErrStaleOperand
)

// Role identifies an operand slot of an operation.
type Role = autodiff.Role

// GradFunc computes one operand's gradient contribution.
type GradFunc = autodiff.GradFunc

// Context gives a GradFunc access to operands and scratch storage.
type Context = autodiff.Context

// Node is the graph record of a tracked output tensor.
type Node = autodiff.Node

// Link is one operand entry of a node.
type Link = autodiff.Link

// AllocOption selects how a tensor is allocated.
type AllocOption = autodiff.AllocOption

// Allocation options.
const (
	Tracked = autodiff.Tracked
	Zeroed  = autodiff.Zeroed
)

// TensorAllocator hands out and reclaims tensor storage.
type TensorAllocator = autodiff.TensorAllocator

// GraphAllocator hands out and reclaims graph nodes.
type GraphAllocator = autodiff.GraphAllocator

// Allocators pairs the tensor and graph allocators of one model context.
type Allocators = autodiff.Allocators

// NewAllocators creates the allocator facade.
func NewAllocators(tensors TensorAllocator, graph GraphAllocator) *Allocators {
	return autodiff.NewAllocators(tensors, graph)
}

// AttachLink records operand as input role of out.
func AttachLink(operand *tensor.Tensor, role Role, fn GradFunc, out *tensor.Tensor, allocs *Allocators) error {
	return autodiff.AttachLink(operand, role, fn, out, allocs)
}

// Backward computes gradients of the scalar out.
func Backward(out *tensor.Tensor, allocs *Allocators) error {
	return autodiff.Backward(out, allocs)
}

// ZeroGrad sets every given tensor's gradient to zero.
func ZeroGrad(ts ...*tensor.Tensor) {
	autodiff.ZeroGrad(ts...)
}

// DetachGraph releases t's graph node while keeping its data.
func DetachGraph(t *tensor.Tensor, allocs *Allocators) error {
	return autodiff.DetachGraph(t, allocs)
}

// NodeOf returns the graph node attached to t, or nil for leaves.
func NodeOf(t *tensor.Tensor) *Node {
	return autodiff.NodeOf(t)
}
