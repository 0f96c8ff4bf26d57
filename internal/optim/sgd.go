package optim

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/nn"
	"gonum.org/v1/gonum/floats"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// With Nesterov momentum the parameter step looks ahead:
//
//	param = param - lr * (gradient + momentum * velocity)
type SGD struct {
	params     *nn.Params
	lr         float64
	momentum   float64
	nesterov   bool
	velocities state
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
	Nesterov bool    // Use Nesterov momentum (requires Momentum > 0)
}

// NewSGD creates a new SGD optimizer. Velocity buffers are drawn from
// alloc on the first step that needs them.
func NewSGD(params *nn.Params, config SGDConfig, alloc autodiff.TensorAllocator) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		nesterov:   config.Nesterov && config.Momentum > 0,
		velocities: newState(alloc, params.Len()),
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not in computational graph) are skipped.
func (s *SGD) Step() error {
	for i, p := range s.params.All() {
		g := p.Grad()
		if g == nil {
			continue
		}
		param, grad := p.Data(), g.Data()

		if s.momentum == 0 {
			// param -= lr * grad
			floats.AddScaled(param, -s.lr, grad)
			continue
		}

		v, err := s.velocities.get(i, p)
		if err != nil {
			return err
		}
		velocity := v.Data()

		// velocity = momentum * velocity + grad
		floats.Scale(s.momentum, velocity)
		floats.Add(velocity, grad)

		if s.nesterov {
			floats.AddScaled(param, -s.lr, grad)
			floats.AddScaled(param, -s.lr*s.momentum, velocity)
		} else {
			floats.AddScaled(param, -s.lr, velocity)
		}
	}
	return nil
}

// ZeroGrad clears all parameter gradients.
func (s *SGD) ZeroGrad() {
	s.params.ZeroGrad()
}

// LR returns the learning rate.
func (s *SGD) LR() float64 {
	return s.lr
}

// SetLR changes the learning rate for subsequent steps.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// Close releases the velocity buffers.
func (s *SGD) Close() error {
	return s.velocities.release()
}
