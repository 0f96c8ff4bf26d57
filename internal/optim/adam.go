package optim

import (
	"math"

	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/nn"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params *nn.Params
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int   // Timestep for bias correction
	m      state // First moment estimates
	v      state // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer. Moment buffers are drawn from alloc
// on the first step that needs them.
func NewAdam(params *nn.Params, config AdamConfig, alloc autodiff.TensorAllocator) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      newState(alloc, params.Len()),
		v:      newState(alloc, params.Len()),
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient are skipped.
func (a *Adam) Step() error {
	a.t++
	biasCorrection1 := 1 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1 - math.Pow(a.beta2, float64(a.t))

	for i, p := range a.params.All() {
		g := p.Grad()
		if g == nil {
			continue
		}
		m, err := a.m.get(i, p)
		if err != nil {
			return err
		}
		v, err := a.v.get(i, p)
		if err != nil {
			return err
		}

		param, grad, mData, vData := p.Data(), g.Data(), m.Data(), v.Data()
		for j, gj := range grad {
			mData[j] = a.beta1*mData[j] + (1-a.beta1)*gj
			vData[j] = a.beta2*vData[j] + (1-a.beta2)*gj*gj
			mHat := mData[j] / biasCorrection1
			vHat := vData[j] / biasCorrection2
			param[j] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
	return nil
}

// ZeroGrad clears all parameter gradients.
func (a *Adam) ZeroGrad() {
	a.params.ZeroGrad()
}

// LR returns the learning rate.
func (a *Adam) LR() float64 {
	return a.lr
}

// Close releases the moment buffers.
func (a *Adam) Close() error {
	if err := a.m.release(); err != nil {
		return err
	}
	return a.v.release()
}
