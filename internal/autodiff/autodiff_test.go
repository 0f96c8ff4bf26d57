package autodiff_test

import (
	"testing"

	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/memory"
	"github.com/born-ml/gograd/internal/nn"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tensors *memory.TensorPool
	graph   *memory.GraphPool
	allocs  *autodiff.Allocators
}

func newFixture() *fixture {
	tensors := memory.NewTensorPool(memory.DefaultConfig())
	graph := memory.NewGraphPool(memory.DefaultConfig())
	return &fixture{tensors: tensors, graph: graph, allocs: autodiff.NewAllocators(tensors, graph)}
}

func (f *fixture) leaf(t *testing.T, data []float64, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	x, err := f.allocs.Alloc(shape)
	require.NoError(t, err)
	copy(x.Data(), data)
	return x
}

func (f *fixture) tracked(t *testing.T, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	x, err := f.allocs.Alloc(shape)
	require.NoError(t, err)
	return x
}

// scale computes out = k * x.
func scale(t *testing.T, x *tensor.Tensor, k float64, out *tensor.Tensor, allocs *autodiff.Allocators) {
	t.Helper()
	for i, v := range x.Data() {
		out.Data()[i] = k * v
	}
	require.NoError(t, autodiff.AttachLink(x, 0, func(_ *autodiff.Context, g, dst *tensor.Tensor) error {
		for i, v := range g.Data() {
			dst.Data()[i] = k * v
		}
		return nil
	}, out, allocs))
}

func identityGrad(_ *autodiff.Context, g, dst *tensor.Tensor) error {
	return tensor.Copy(g, dst)
}

// add computes out = a + b.
func add(t *testing.T, a, b, out *tensor.Tensor, allocs *autodiff.Allocators) {
	t.Helper()
	require.NoError(t, tensor.Copy(a, out))
	require.NoError(t, tensor.AddInPlace(out, b))
	require.NoError(t, autodiff.AttachLink(a, 0, identityGrad, out, allocs))
	require.NoError(t, autodiff.AttachLink(b, 1, identityGrad, out, allocs))
}

func sumGrad(_ *autodiff.Context, g, dst *tensor.Tensor) error {
	tensor.Fill(dst, g.Data()[0])
	return nil
}

// sum computes z = sum(x).
func sum(t *testing.T, x, z *tensor.Tensor, allocs *autodiff.Allocators) {
	t.Helper()
	z.Data()[0] = tensor.Sum(x)
	require.NoError(t, autodiff.AttachLink(x, 0, sumGrad, z, allocs))
}

func TestBackward_FanOutAccumulates(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{3}, tensor.Shape{1})

	// z = 2x + 3x
	a := f.tracked(t, tensor.Shape{1})
	scale(t, x, 2, a, f.allocs)
	b := f.tracked(t, tensor.Shape{1})
	scale(t, x, 3, b, f.allocs)
	z := f.tracked(t, tensor.Shape{1})
	add(t, a, b, z, f.allocs)
	assert.Equal(t, 15.0, z.Data()[0])

	require.NoError(t, autodiff.Backward(z, f.allocs))
	assert.Equal(t, []float64{5}, x.Grad().Data())
	assert.Equal(t, []float64{1}, a.Grad().Data())
	assert.Equal(t, []float64{1}, z.Grad().Data())
}

func TestBackward_RetainedGraphAddsOnePassPerCall(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{3}, tensor.Shape{1})

	// z = 2x + 3x, run twice without releasing anything.
	a := f.tracked(t, tensor.Shape{1})
	scale(t, x, 2, a, f.allocs)
	b := f.tracked(t, tensor.Shape{1})
	scale(t, x, 3, b, f.allocs)
	z := f.tracked(t, tensor.Shape{1})
	add(t, a, b, z, f.allocs)

	require.NoError(t, autodiff.Backward(z, f.allocs))
	require.NoError(t, autodiff.Backward(z, f.allocs))
	assert.Equal(t, []float64{10}, x.Grad().Data())
	assert.Equal(t, []float64{1}, a.Grad().Data())
	assert.Equal(t, []float64{1}, b.Grad().Data())
}

func TestBackward_SharedSubgraphProcessedOnce(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{1, 2}, tensor.Shape{2})

	// h = 2x is consumed twice; c = h + h; z = sum(c)
	h := f.tracked(t, tensor.Shape{2})
	scale(t, x, 2, h, f.allocs)
	c := f.tracked(t, tensor.Shape{2})
	add(t, h, h, c, f.allocs)
	z := f.tracked(t, tensor.Shape{1})
	sum(t, c, z, f.allocs)

	require.NoError(t, autodiff.Backward(z, f.allocs))
	assert.Equal(t, []float64{2, 2}, h.Grad().Data())
	assert.Equal(t, []float64{4, 4}, x.Grad().Data())
}

func TestBackward_LinearLayer(t *testing.T) {
	f := newFixture()
	layer, err := nn.NewLinear(3, 1, f.tensors, f.allocs)
	require.NoError(t, err)
	tensor.Fill(layer.Weights, 1)

	x, err := f.allocs.NoGrad(tensor.Shape{2, 3})
	require.NoError(t, err)
	copy(x.Data(), []float64{1, 2, 3, 4, 5, 6})

	y := f.tracked(t, tensor.Shape{2, 1})
	require.NoError(t, layer.ForwardGraph(x, y))
	assert.Equal(t, []float64{6, 15}, y.Data())

	z := f.tracked(t, tensor.Shape{1, 1})
	sum(t, y, z, f.allocs)
	require.NoError(t, autodiff.Backward(z, f.allocs))

	assert.Equal(t, []float64{5, 7, 9}, layer.Weights.Grad().Data())
	assert.Equal(t, []float64{2}, layer.Biases.Grad().Data())
	assert.Nil(t, x.Grad(), "untracked inputs receive no gradient")
}

func TestZeroGrad(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{1, 2}, tensor.Shape{2})
	z := f.tracked(t, tensor.Shape{1})
	sum(t, x, z, f.allocs)

	require.NoError(t, autodiff.Backward(z, f.allocs))
	require.NoError(t, autodiff.Backward(z, f.allocs))
	assert.Equal(t, []float64{2, 2}, x.Grad().Data(), "gradients accumulate across passes")

	var untouched *tensor.Tensor
	autodiff.ZeroGrad(x, untouched, f.tracked(t, tensor.Shape{1}))
	assert.Equal(t, []float64{0, 0}, x.Grad().Data())

	var params nn.Params
	params.Add(x)
	require.NoError(t, autodiff.Backward(z, f.allocs))
	params.ZeroGrad()
	assert.Equal(t, []float64{0, 0}, x.Grad().Data())
}

func TestBackward_Errors(t *testing.T) {
	f := newFixture()

	require.ErrorIs(t, autodiff.Backward(nil, f.allocs), tensor.ErrNilTensor)

	v := f.leaf(t, []float64{1, 2}, tensor.Shape{2})
	require.ErrorIs(t, autodiff.Backward(v, f.allocs), autodiff.ErrNotScalar)

	leaf := f.leaf(t, []float64{1}, tensor.Shape{1})
	require.NoError(t, autodiff.Backward(leaf, f.allocs), "no graph, nothing to do")
	assert.Nil(t, leaf.Grad())
}

func TestAttachLink_Errors(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{1}, tensor.Shape{1})

	out, err := f.allocs.NoGrad(tensor.Shape{1})
	require.NoError(t, err)
	require.ErrorIs(t, autodiff.AttachLink(x, 0, identityGrad, out, f.allocs), autodiff.ErrUntracked)
	assert.Nil(t, out.Node())

	require.ErrorIs(t, autodiff.AttachLink(nil, 0, identityGrad, x, f.allocs), tensor.ErrNilTensor)

	// a is recorded first, b consumes a. Linking b into a reverses the tape.
	a := f.tracked(t, tensor.Shape{1})
	scale(t, x, 2, a, f.allocs)
	b := f.tracked(t, tensor.Shape{1})
	scale(t, a, 2, b, f.allocs)
	require.ErrorIs(t, autodiff.AttachLink(b, 1, identityGrad, a, f.allocs), autodiff.ErrTapeOrder)
	assert.Len(t, autodiff.NodeOf(a).Links(), 1, "rejected link is not recorded")

	// A tensor cannot be its own operand.
	require.ErrorIs(t, autodiff.AttachLink(a, 1, identityGrad, a, f.allocs), autodiff.ErrTapeOrder)
}

func TestAttachLink_ExhaustedGraphPool(t *testing.T) {
	tensors := memory.NewTensorPool(memory.DefaultConfig())
	graph := memory.NewGraphPool(memory.Config{MaxNodes: 1})
	allocs := autodiff.NewAllocators(tensors, graph)

	x, err := allocs.Alloc(tensor.Shape{1})
	require.NoError(t, err)
	a, err := allocs.Alloc(tensor.Shape{1})
	require.NoError(t, err)
	b, err := allocs.Alloc(tensor.Shape{1})
	require.NoError(t, err)

	require.NoError(t, autodiff.AttachLink(x, 0, identityGrad, a, allocs))
	require.ErrorIs(t, autodiff.AttachLink(x, 0, identityGrad, b, allocs), memory.ErrExhausted)
	assert.Nil(t, b.Node())
}

func TestBackward_StaleOperand(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{1}, tensor.Shape{1})
	y := f.tracked(t, tensor.Shape{1})
	scale(t, x, 2, y, f.allocs)

	require.NoError(t, f.allocs.Release(x))
	require.ErrorIs(t, autodiff.Backward(y, f.allocs), autodiff.ErrStaleOperand)

	// The buffer goes to a new tensor; the released header stays unbound
	// and the link still sees it as stale.
	reused := f.leaf(t, []float64{5}, tensor.Shape{1})
	assert.NotSame(t, x, reused)
	assert.False(t, x.Bound())
	require.ErrorIs(t, autodiff.Backward(y, f.allocs), autodiff.ErrStaleOperand)
	assert.Nil(t, reused.Grad())
}

func TestBackward_SkipsUntrackedAndLookupOnlyOperands(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{2}, tensor.Shape{1})
	frozen, err := f.allocs.NoGrad(tensor.Shape{1})
	require.NoError(t, err)
	frozen.Data()[0] = 4
	lookup := f.leaf(t, []float64{0}, tensor.Shape{1})

	z := f.tracked(t, tensor.Shape{1})
	z.Data()[0] = x.Data()[0] * frozen.Data()[0]
	require.NoError(t, autodiff.AttachLink(x, 0, func(ctx *autodiff.Context, g, dst *tensor.Tensor) error {
		dst.Data()[0] = g.Data()[0] * ctx.Operand(1).Data()[0]
		return nil
	}, z, f.allocs))
	require.NoError(t, autodiff.AttachLink(frozen, 1, identityGrad, z, f.allocs))
	require.NoError(t, autodiff.AttachLink(lookup, 2, nil, z, f.allocs))

	require.NoError(t, autodiff.Backward(z, f.allocs))
	assert.Equal(t, []float64{4}, x.Grad().Data())
	assert.Nil(t, frozen.Grad())
	assert.Nil(t, lookup.Grad())
}

func TestBackward_ReleasesScratch(t *testing.T) {
	f := newFixture()
	layer, err := nn.NewLinear(4, 3, f.tensors, f.allocs)
	require.NoError(t, err)
	x := f.leaf(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 4})
	y := f.tracked(t, tensor.Shape{2, 3})
	require.NoError(t, layer.ForwardGraph(x, y))
	z := f.tracked(t, tensor.Shape{1})
	sum(t, y, z, f.allocs)

	before := f.tensors.Stats().Live
	require.NoError(t, autodiff.Backward(z, f.allocs))

	// Only the five new gradients (z, y, x, W, b) stay live.
	assert.Equal(t, before+5, f.tensors.Stats().Live)

	require.NoError(t, f.allocs.ReleaseAll(z, y, x))
	require.NoError(t, layer.Release())
	assert.Zero(t, f.tensors.Stats().Live)
	assert.Zero(t, f.graph.Stats().Live)
}

func TestBackward_GradFuncErrorStops(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{1}, tensor.Shape{1})
	z := f.tracked(t, tensor.Shape{1})
	require.NoError(t, autodiff.AttachLink(x, 0, func(ctx *autodiff.Context, _, _ *tensor.Tensor) error {
		_, err := ctx.Scratch(tensor.Shape{3})
		require.NoError(t, err)
		return tensor.ErrShapeMismatch
	}, z, f.allocs))

	live := f.tensors.Stats().Live
	err := autodiff.Backward(z, f.allocs)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.Equal(t, live+1, f.tensors.Stats().Live, "only the seed gradient survives")
	assert.Nil(t, x.Grad())
}

func TestContext(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{1}, tensor.Shape{1})
	z := f.tracked(t, tensor.Shape{1})

	var called bool
	require.NoError(t, autodiff.AttachLink(x, 7, func(ctx *autodiff.Context, g, dst *tensor.Tensor) error {
		called = true
		assert.Same(t, x, ctx.Operand(7))
		assert.Nil(t, ctx.Operand(8))
		assert.Same(t, z, ctx.Output())
		assert.Same(t, f.allocs, ctx.Allocators())

		tmp, err := ctx.ScratchZeroed(tensor.Shape{2, 2})
		require.NoError(t, err)
		assert.False(t, tmp.Tracked())
		assert.Equal(t, []float64{0, 0, 0, 0}, tmp.Data())
		return tensor.Copy(g, dst)
	}, z, f.allocs))

	node := autodiff.NodeOf(z)
	require.NotNil(t, node)
	assert.Same(t, z, node.Output())
	assert.Equal(t, z.Node().Sequence(), node.Sequence())
	assert.Nil(t, autodiff.NodeOf(x))

	require.NoError(t, autodiff.Backward(z, f.allocs))
	assert.True(t, called)
}

func TestDetachGraph(t *testing.T) {
	f := newFixture()
	x := f.leaf(t, []float64{1}, tensor.Shape{1})
	y := f.tracked(t, tensor.Shape{1})
	scale(t, x, 3, y, f.allocs)
	assert.Equal(t, 1, f.graph.Stats().Live)

	require.NoError(t, autodiff.DetachGraph(y, f.allocs))
	assert.Nil(t, y.Node())
	assert.Equal(t, 0, f.graph.Stats().Live)
	assert.Equal(t, []float64{3}, y.Data())

	require.NoError(t, autodiff.DetachGraph(y, f.allocs), "detaching a leaf is a no-op")
	require.NoError(t, autodiff.Backward(y, f.allocs))
	assert.Nil(t, x.Grad())
}
