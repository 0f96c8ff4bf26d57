// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package memory provides the recycling tensor and graph-node pools behind
// the autodiff engine.
//
// Example:
//
//	tensors := memory.NewTensorPool(memory.DefaultConfig())
//	graph := memory.NewGraphPool(memory.DefaultConfig())
//	defer tensors.Close()
//	defer graph.Close()
//	allocs := autodiff.NewAllocators(tensors, graph)
package memory

import (
	"github.com/born-ml/gograd/internal/memory"
)

// Error kinds.
var (
	ErrExhausted     = memory.ErrExhausted
	ErrDoubleRelease = memory.ErrDoubleRelease
	ErrNodeAttached  = memory.ErrNodeAttached
	ErrClosed        = memory.ErrClosed
	ErrForeign       = memory.ErrForeign
)

// Config controls pool limits.
type Config = memory.Config

// Stats reports pool activity.
type Stats = memory.Stats

// DefaultConfig returns unlimited pools with bounded free lists.
func DefaultConfig() Config {
	return memory.DefaultConfig()
}

// TensorPool recycles tensor buffers by element count.
type TensorPool = memory.TensorPool

// NewTensorPool creates an empty tensor pool.
func NewTensorPool(cfg Config) *TensorPool {
	return memory.NewTensorPool(cfg)
}

// GraphPool recycles graph nodes and assigns their sequence numbers.
type GraphPool = memory.GraphPool

// NewGraphPool creates an empty graph pool.
func NewGraphPool(cfg Config) *GraphPool {
	return memory.NewGraphPool(cfg)
}
