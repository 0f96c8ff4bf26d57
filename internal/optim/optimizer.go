// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum and Nesterov
//   - Adam: Adaptive Moment Estimation
//
// Optimizers read each parameter's accumulated gradient (tensor.Grad) and
// update the parameter in place. State buffers (velocities, moments) are
// drawn from a tensor allocator and returned by Close.
//
// Example usage:
//
//	opt := optim.NewSGD(params, optim.SGDConfig{LR: 3e-4, Momentum: 0.9}, tensors)
//	defer opt.Close()
//
//	for step := range steps {
//	    // forward graph ...
//	    params.ZeroGrad()
//	    if err := autodiff.Backward(loss, allocs); err != nil { ... }
//	    if err := opt.Step(); err != nil { ... }
//	}
package optim

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step() error

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float64

	// Close releases optimizer state back to its allocator.
	Close() error
}

// state holds one zeroed buffer per parameter, allocated lazily.
type state struct {
	alloc   autodiff.TensorAllocator
	buffers []*tensor.Tensor
}

func newState(alloc autodiff.TensorAllocator, n int) state {
	return state{alloc: alloc, buffers: make([]*tensor.Tensor, n)}
}

// get returns the buffer of parameter i, allocating it with p's shape.
func (s *state) get(i int, p *tensor.Tensor) (*tensor.Tensor, error) {
	if b := s.buffers[i]; b != nil {
		return b, nil
	}
	b, err := s.alloc.Alloc(p.Shape(), autodiff.Zeroed)
	if err != nil {
		return nil, errors.Wrap(err, "optimizer state")
	}
	s.buffers[i] = b
	return b, nil
}

func (s *state) release() error {
	var first error
	for i, b := range s.buffers {
		if b == nil {
			continue
		}
		if err := s.alloc.Release(b); err != nil && first == nil {
			first = err
		}
		s.buffers[i] = nil
	}
	return first
}
