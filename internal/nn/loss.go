package nn

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// Operand roles of the MSE loss.
const (
	msePredicted autodiff.Role = iota
	mseTarget
)

// MSELoss computes the halved mean squared error over the batch.
//
// z = (1 / batch) * Σ ½ (pred - target)²
//
// where batch is the first dimension of pred. pred and target must have the
// same shape; z must hold a single element.
func MSELoss(pred, target, z *tensor.Tensor) error {
	for _, t := range [...]*tensor.Tensor{pred, target, z} {
		if err := tensor.CheckNil(t); err != nil {
			return err
		}
	}
	if pred.Size() != target.Size() {
		return errors.Wrapf(tensor.ErrDataSizeMismatch, "mse: %d vs %d elements", pred.Size(), target.Size())
	}
	if !tensor.SameShape(pred, target) {
		return errShape("mse", pred, target)
	}
	if z.Size() != 1 {
		return errors.Wrapf(tensor.ErrDataSizeMismatch, "mse: loss has %d elements", z.Size())
	}

	p, t := pred.Data(), target.Data()
	var sum float64
	for i := range p {
		d := p[i] - t[i]
		sum += 0.5 * d * d
	}
	z.Data()[0] = sum / float64(pred.Dim(0))
	return nil
}

// MSELossGraph computes MSELoss and records the predicted and target links
// on z.
func MSELossGraph(pred, target, z *tensor.Tensor, allocs *autodiff.Allocators) error {
	if err := MSELoss(pred, target, z); err != nil {
		return err
	}
	if err := autodiff.AttachLink(pred, msePredicted, mseGradPredicted, z, allocs); err != nil {
		return err
	}
	return autodiff.AttachLink(target, mseTarget, mseGradTarget, z, allocs)
}

// mseGradPredicted computes dz/dpred = (pred - target) / batch.
func mseGradPredicted(ctx *autodiff.Context, g, dst *tensor.Tensor) error {
	pred := ctx.Operand(msePredicted)
	target := ctx.Operand(mseTarget)
	scale := g.Data()[0] / float64(pred.Dim(0))

	p, t, out := pred.Data(), target.Data(), dst.Data()
	for i := range out {
		out[i] = (p[i] - t[i]) * scale
	}
	return nil
}

// mseGradTarget is the predicted gradient with the sign flipped.
func mseGradTarget(ctx *autodiff.Context, g, dst *tensor.Tensor) error {
	if err := mseGradPredicted(ctx, g, dst); err != nil {
		return err
	}
	out := dst.Data()
	for i := range out {
		out[i] = -out[i]
	}
	return nil
}

func errShape(op string, a, b *tensor.Tensor) error {
	return errors.Wrapf(tensor.ErrShapeMismatch, "%s: %v vs %v", op, a.Shape(), b.Shape())
}
