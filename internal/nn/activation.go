package nn

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
)

const reluOperand autodiff.Role = 0

// ReLUForward applies out = max(0, x) element-wise.
func ReLUForward(x, out *tensor.Tensor) error {
	if err := tensor.CheckNil(x); err != nil {
		return err
	}
	if err := tensor.CheckNil(out); err != nil {
		return err
	}
	if !tensor.SameShape(x, out) {
		return errShape("relu", x, out)
	}
	reluKernel(out.Data(), x.Data())
	return nil
}

// ReLUForwardGraph computes ReLUForward and records the input link on out.
// out must be a different tensor from x.
func ReLUForwardGraph(x, out *tensor.Tensor, allocs *autodiff.Allocators) error {
	if err := ReLUForward(x, out); err != nil {
		return err
	}
	return autodiff.AttachLink(x, reluOperand, reluGrad, out, allocs)
}

// reluGrad is the Hadamard product of the upstream gradient and
// dReLU(x)/dx, since element (i, j) of ReLU(X) depends only on X(i, j).
func reluGrad(ctx *autodiff.Context, g, dst *tensor.Tensor) error {
	x := ctx.Operand(reluOperand).Data()
	up := g.Data()
	out := dst.Data()
	for i, v := range x {
		if v > 0 {
			out[i] = up[i]
		}
	}
	return nil
}

func reluKernel(dst, src []float64) {
	if tensor.FastKernels() {
		reluUnrolled(dst, src)
		return
	}
	reluScalar(dst, src)
}

// reluUnrolled handles four elements per iteration, then the tail.
func reluUnrolled(dst, src []float64) {
	n := len(src)
	i := 0
	for ; i+4 <= n; i += 4 {
		s := src[i : i+4 : i+4]
		d := dst[i : i+4 : i+4]
		d[0] = relu(s[0])
		d[1] = relu(s[1])
		d[2] = relu(s[2])
		d[3] = relu(s[3])
	}
	for ; i < n; i++ {
		dst[i] = relu(src[i])
	}
}

func relu(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func reluScalar(dst, src []float64) {
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = 0
		}
	}
}
