// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum and Nesterov
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// # Basic Usage
//
//	opt := optim.NewSGD(&params, optim.SGDConfig{LR: 3e-4, Momentum: 0.9}, tensors)
//	defer opt.Close()
//
//	for range steps {
//	    // forward graph ...
//	    opt.ZeroGrad()
//	    _ = autodiff.Backward(loss, allocs)
//	    _ = opt.Step()
//	}
package optim

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/nn"
	"github.com/born-ml/gograd/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer. Velocity buffers come from alloc.
func NewSGD(params *nn.Params, config SGDConfig, alloc autodiff.TensorAllocator) *SGD {
	return optim.NewSGD(params, config, alloc)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer. Moment buffers come from alloc.
func NewAdam(params *nn.Params, config AdamConfig, alloc autodiff.TensorAllocator) *Adam {
	return optim.NewAdam(params, config, alloc)
}
