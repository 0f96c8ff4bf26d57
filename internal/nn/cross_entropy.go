package nn

import (
	"math"

	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// Operand roles of the cross-entropy loss.
const (
	ceLogits autodiff.Role = iota
	ceTargets
)

// CrossEntropyLoss computes the mean cross-entropy of logits against class
// targets.
//
// Mathematical Formulation:
//
//	z = (1 / batch) * Σ_i -log_softmax(logits_i)[target_i]
//
// Parameters:
//   - logits: unnormalized scores with shape [batch, classes]
//   - targets: class indices stored as float64 with shape [batch, 1]
//   - z: single-element output
//
// The log-sum-exp is shifted by the row maximum for numerical stability.
// A target that is not an integer in [0, classes) is ErrIndexOutOfBounds.
func CrossEntropyLoss(logits, targets, z *tensor.Tensor) error {
	if err := checkCrossEntropy(logits, targets, z); err != nil {
		return err
	}

	batch, classes := logits.Dim(0), logits.Dim(1)
	data, labels := logits.Data(), targets.Data()
	var sum float64
	for i := 0; i < batch; i++ {
		row := data[i*classes : (i+1)*classes]
		sum += logSumExp(row) - row[int(labels[i])]
	}
	z.Data()[0] = sum / float64(batch)
	return nil
}

// CrossEntropyLossGraph computes CrossEntropyLoss and records the logits
// link on z. Targets are linked for lookup only and never receive a
// gradient.
func CrossEntropyLossGraph(logits, targets, z *tensor.Tensor, allocs *autodiff.Allocators) error {
	if err := CrossEntropyLoss(logits, targets, z); err != nil {
		return err
	}
	if err := autodiff.AttachLink(logits, ceLogits, ceGradLogits, z, allocs); err != nil {
		return err
	}
	return autodiff.AttachLink(targets, ceTargets, nil, z, allocs)
}

// ceGradLogits computes dz/dlogits = (softmax(logits) - onehot(targets)) / batch.
func ceGradLogits(ctx *autodiff.Context, g, dst *tensor.Tensor) error {
	logits := ctx.Operand(ceLogits)
	labels := ctx.Operand(ceTargets).Data()
	batch, classes := logits.Dim(0), logits.Dim(1)
	scale := g.Data()[0] / float64(batch)

	data, out := logits.Data(), dst.Data()
	for i := 0; i < batch; i++ {
		row := data[i*classes : (i+1)*classes]
		grad := out[i*classes : (i+1)*classes]
		lse := logSumExp(row)
		for j, v := range row {
			grad[j] = math.Exp(v-lse) * scale
		}
		grad[int(labels[i])] -= scale
	}
	return nil
}

func checkCrossEntropy(logits, targets, z *tensor.Tensor) error {
	for _, t := range [...]*tensor.Tensor{logits, targets, z} {
		if err := tensor.CheckNil(t); err != nil {
			return err
		}
	}
	if logits.Rank() != 2 || targets.Rank() != 2 {
		return errors.Wrapf(tensor.ErrRankMismatch, "cross entropy: logits %v, targets %v",
			logits.Shape(), targets.Shape())
	}
	if targets.Dim(0) != logits.Dim(0) || targets.Dim(1) != 1 {
		return errShape("cross entropy", logits, targets)
	}
	if z.Size() != 1 {
		return errors.Wrapf(tensor.ErrDataSizeMismatch, "cross entropy: loss has %d elements", z.Size())
	}
	classes := float64(logits.Dim(1))
	for i, label := range targets.Data() {
		if label < 0 || label >= classes || label != math.Trunc(label) {
			return errors.Wrapf(tensor.ErrIndexOutOfBounds, "cross entropy: target %v at row %d", label, i)
		}
	}
	return nil
}

// logSumExp returns log(Σ exp(row)) shifted by the row maximum.
func logSumExp(row []float64) float64 {
	m := row[0]
	for _, v := range row[1:] {
		m = max(m, v)
	}
	var s float64
	for _, v := range row {
		s += math.Exp(v - m)
	}
	return m + math.Log(s)
}
