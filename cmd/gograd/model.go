package main

import (
	"math/rand/v2"

	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/dataset"
	"github.com/born-ml/gograd/internal/memory"
	"github.com/born-ml/gograd/internal/nn"
	"github.com/born-ml/gograd/internal/optim"
	"github.com/born-ml/gograd/internal/parallel"
	"github.com/born-ml/gograd/internal/serialization"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// mlp is Linear -> ReLU -> Linear, trained with cross-entropy.
type mlp struct {
	fc1, fc2 *nn.Linear
	params   nn.Params
	allocs   *autodiff.Allocators
}

func newMLP(in, hidden, classes int, allocs *autodiff.Allocators, src rand.Source) (*mlp, error) {
	fc1, err := nn.NewLinear(in, hidden, allocs.Tensors(), allocs)
	if err != nil {
		return nil, errors.Wrap(err, "fc1")
	}
	fc2, err := nn.NewLinear(hidden, classes, allocs.Tensors(), allocs)
	if err != nil {
		_ = fc1.Release()
		return nil, errors.Wrap(err, "fc2")
	}
	fc1.XavierInit(src)
	fc2.XavierInit(src)

	m := &mlp{fc1: fc1, fc2: fc2, allocs: allocs}
	m.params.Add(fc1.Parameters()...)
	m.params.Add(fc2.Parameters()...)
	return m, nil
}

func (m *mlp) named() []serialization.Named {
	return []serialization.Named{
		{Name: "fc1.weight", Tensor: m.fc1.Weights},
		{Name: "fc1.bias", Tensor: m.fc1.Biases},
		{Name: "fc2.weight", Tensor: m.fc2.Weights},
		{Name: "fc2.bias", Tensor: m.fc2.Biases},
	}
}

func (m *mlp) release() error {
	if err := m.fc1.Release(); err != nil {
		return err
	}
	return m.fc2.Release()
}

// stepTensors tracks the tensors drawn during one iteration so they can be
// returned together.
type stepTensors struct {
	allocs *autodiff.Allocators
	ts     []*tensor.Tensor
}

func (s *stepTensors) alloc(shape tensor.Shape, tracked bool) (*tensor.Tensor, error) {
	var t *tensor.Tensor
	var err error
	if tracked {
		t, err = s.allocs.Alloc(shape)
	} else {
		t, err = s.allocs.NoGrad(shape)
	}
	if err != nil {
		return nil, err
	}
	s.ts = append(s.ts, t)
	return t, nil
}

func (s *stepTensors) release() error {
	err := s.allocs.ReleaseAll(s.ts...)
	s.ts = s.ts[:0]
	return err
}

// trainStep runs forward, backward and one optimizer step on the rows in
// idx and returns the batch loss.
func (m *mlp) trainStep(d *dataset.CSV, idx []int, opt optim.Optimizer) (loss float64, err error) {
	step := stepTensors{allocs: m.allocs}
	defer func() {
		if rerr := step.release(); rerr != nil && err == nil {
			err = errors.Wrap(rerr, "release step tensors")
		}
	}()

	n := len(idx)
	x, err := step.alloc(tensor.Shape{n, m.fc1.InDim}, false)
	if err != nil {
		return 0, err
	}
	y, err := step.alloc(tensor.Shape{n, 1}, false)
	if err != nil {
		return 0, err
	}
	if err := d.SampleBatch(x, y, idx); err != nil {
		return 0, err
	}

	// ------------- Forward -------------
	h1, err := step.alloc(tensor.Shape{n, m.fc1.OutDim}, true)
	if err != nil {
		return 0, err
	}
	if err := m.fc1.ForwardGraph(x, h1); err != nil {
		return 0, errors.Wrap(err, "fc1")
	}
	h2, err := step.alloc(tensor.Shape{n, m.fc1.OutDim}, true)
	if err != nil {
		return 0, err
	}
	if err := nn.ReLUForwardGraph(h1, h2, m.allocs); err != nil {
		return 0, errors.Wrap(err, "relu")
	}
	h3, err := step.alloc(tensor.Shape{n, m.fc2.OutDim}, true)
	if err != nil {
		return 0, err
	}
	if err := m.fc2.ForwardGraph(h2, h3); err != nil {
		return 0, errors.Wrap(err, "fc2")
	}
	z, err := step.alloc(tensor.Shape{1, 1}, true)
	if err != nil {
		return 0, err
	}
	if err := nn.CrossEntropyLossGraph(h3, y, z, m.allocs); err != nil {
		return 0, errors.Wrap(err, "loss")
	}

	// ------------- Backward -------------
	opt.ZeroGrad()
	if err := autodiff.Backward(z, m.allocs); err != nil {
		return 0, errors.Wrap(err, "backward")
	}
	if err := opt.Step(); err != nil {
		return 0, errors.Wrap(err, "optimizer step")
	}
	return z.Data()[0], nil
}

// evaluate returns the mean loss and the accuracy over the whole dataset
// without recording a graph. Rows are split across workers, each drawing
// from pools of its own; the weights are only read.
func (m *mlp) evaluate(d *dataset.CSV, batchSize int, workers parallel.Config) (loss, accuracy float64, err error) {
	shards := len(parallel.Split(d.Rows, workers))
	losses := make([]float64, shards)
	hits := make([]int, shards)
	err = parallel.For(d.Rows, workers, func(w int, r parallel.Range) error {
		var err error
		losses[w], hits[w], err = m.evaluateRange(d, r, batchSize)
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	var correct int
	for w := range shards {
		loss += losses[w]
		correct += hits[w]
	}
	return loss / float64(d.Rows), float64(correct) / float64(d.Rows), nil
}

// evaluateRange returns the summed loss and the number of correct
// predictions over the rows in r.
func (m *mlp) evaluateRange(d *dataset.CSV, r parallel.Range, batchSize int) (loss float64, correct int, err error) {
	tensors := memory.NewTensorPool(memory.DefaultConfig())
	graph := memory.NewGraphPool(memory.DefaultConfig())
	defer tensors.Close()
	defer graph.Close()
	step := stepTensors{allocs: autodiff.NewAllocators(tensors, graph)}

	idx := make([]int, 0, batchSize)
	for start := r.Start; start < r.End; start += batchSize {
		idx = idx[:0]
		for i := start; i < min(start+batchSize, r.End); i++ {
			idx = append(idx, i)
		}
		batchLoss, hits, err := m.evaluateBatch(&step, d, idx)
		if rerr := step.release(); err == nil {
			err = rerr
		}
		if err != nil {
			return 0, 0, err
		}
		loss += batchLoss * float64(len(idx))
		correct += hits
	}
	return loss, correct, nil
}

func (m *mlp) evaluateBatch(step *stepTensors, d *dataset.CSV, idx []int) (float64, int, error) {
	n := len(idx)
	x, err := step.alloc(tensor.Shape{n, m.fc1.InDim}, false)
	if err != nil {
		return 0, 0, err
	}
	y, err := step.alloc(tensor.Shape{n, 1}, false)
	if err != nil {
		return 0, 0, err
	}
	h, err := step.alloc(tensor.Shape{n, m.fc1.OutDim}, false)
	if err != nil {
		return 0, 0, err
	}
	logits, err := step.alloc(tensor.Shape{n, m.fc2.OutDim}, false)
	if err != nil {
		return 0, 0, err
	}
	z, err := step.alloc(tensor.Shape{1, 1}, false)
	if err != nil {
		return 0, 0, err
	}

	if err := d.SampleBatch(x, y, idx); err != nil {
		return 0, 0, err
	}
	if err := m.fc1.Forward(x, h); err != nil {
		return 0, 0, err
	}
	if err := nn.ReLUForward(h, h); err != nil {
		return 0, 0, err
	}
	if err := m.fc2.Forward(h, logits); err != nil {
		return 0, 0, err
	}
	if err := nn.CrossEntropyLoss(logits, y, z); err != nil {
		return 0, 0, err
	}

	hits := 0
	for i := 0; i < n; i++ {
		if argmaxRow(logits, i) == int(y.Data()[i]) {
			hits++
		}
	}
	return z.Data()[0], hits, nil
}

func argmaxRow(t *tensor.Tensor, row int) int {
	best := 0
	for j := 1; j < t.Dim(1); j++ {
		if t.At2DUnchecked(row, j) > t.At2DUnchecked(row, best) {
			best = j
		}
	}
	return best
}
