package memory

import (
	"testing"

	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTensorPool_AllocRelease(t *testing.T) {
	p := NewTensorPool(DefaultConfig())

	x, err := p.Alloc(tensor.Shape{2, 3}, autodiff.Tracked|autodiff.Zeroed)
	require.NoError(t, err)
	assert.True(t, x.Tracked())
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, make([]float64, 6), x.Data())

	s := p.Stats()
	assert.Equal(t, 1, s.Live)
	assert.Equal(t, 48, s.Bytes)
	assert.Equal(t, uint64(1), s.Misses)

	require.NoError(t, p.Release(x))
	s = p.Stats()
	assert.Equal(t, 0, s.Live)
	assert.Equal(t, 1, s.Free)
	assert.Equal(t, 48, s.Bytes)
	assert.False(t, x.Bound())
}

func TestTensorPool_ReuseBySizeClass(t *testing.T) {
	p := NewTensorPool(DefaultConfig())

	x, err := p.Alloc(tensor.Shape{2, 3}, 0)
	require.NoError(t, err)
	buf := &x.Data()[0]
	require.NoError(t, p.Release(x))

	// Same element count, different shape: same size class.
	y, err := p.Alloc(tensor.Shape{6}, autodiff.Tracked)
	require.NoError(t, err)
	assert.Same(t, buf, &y.Data()[0])
	assert.NotSame(t, x, y, "every allocation gets a new header")
	assert.Equal(t, tensor.Shape{6}, y.Shape())
	assert.Equal(t, uint64(1), p.Stats().Hits)

	// Different element count misses.
	z, err := p.Alloc(tensor.Shape{5}, 0)
	require.NoError(t, err)
	assert.NotSame(t, buf, &z.Data()[0])
	assert.Equal(t, uint64(2), p.Stats().Misses)
}

func TestTensorPool_ZeroFillAfterReuse(t *testing.T) {
	p := NewTensorPool(DefaultConfig())

	x, err := p.Alloc(tensor.Shape{4}, 0)
	require.NoError(t, err)
	tensor.Fill(x, 7)
	require.NoError(t, p.Release(x))

	y, err := p.Alloc(tensor.Shape{2, 2}, autodiff.Zeroed)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Stats().Hits)
	assert.Equal(t, []float64{0, 0, 0, 0}, y.Data())
}

func TestTensorPool_ReleaseErrors(t *testing.T) {
	p := NewTensorPool(DefaultConfig())

	require.ErrorIs(t, p.Release(nil), tensor.ErrNilTensor)

	x, err := p.Alloc(tensor.Shape{3}, 0)
	require.NoError(t, err)
	require.NoError(t, p.Release(x))
	require.ErrorIs(t, p.Release(x), ErrDoubleRelease)
	assert.Equal(t, 0, p.Stats().Live)

	g := NewGraphPool(DefaultConfig())
	allocs := autodiff.NewAllocators(p, g)
	in, err := allocs.Alloc(tensor.Shape{1})
	require.NoError(t, err)
	out, err := allocs.Alloc(tensor.Shape{1})
	require.NoError(t, err)
	require.NoError(t, autodiff.AttachLink(in, 0, nil, out, allocs))

	require.ErrorIs(t, p.Release(out), ErrNodeAttached)
	assert.True(t, out.Bound(), "failed release leaves the tensor usable")
	require.NoError(t, allocs.Release(out))
	assert.Equal(t, 0, g.Stats().Live)
}

func TestTensorPool_StaleHandleStaysReleased(t *testing.T) {
	p := NewTensorPool(DefaultConfig())

	a, err := p.Alloc(tensor.Shape{2, 2}, 0)
	require.NoError(t, err)
	require.NoError(t, p.Release(a))

	b, err := p.Alloc(tensor.Shape{2, 2}, autodiff.Zeroed)
	require.NoError(t, err)
	require.NotSame(t, a, b)
	assert.Equal(t, uint64(1), p.Stats().Hits, "the buffer is still reused")

	require.ErrorIs(t, a.Set2D(0, 0, 42), tensor.ErrNilData)
	_, err = a.Get2D(0, 0)
	require.ErrorIs(t, err, tensor.ErrNilData)
	require.ErrorIs(t, p.Release(a), ErrDoubleRelease)

	assert.True(t, b.Bound())
	assert.Equal(t, []float64{0, 0, 0, 0}, b.Data())
	assert.Equal(t, 1, p.Stats().Live)
	require.NoError(t, p.Release(b))
}

func TestTensorPool_RejectsForeignTensors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 64
	p := NewTensorPool(cfg)

	heap, err := tensor.New(tensor.Shape{4, 4})
	require.NoError(t, err)
	require.ErrorIs(t, p.Release(heap), ErrForeign)
	assert.True(t, heap.Bound(), "rejected tensors are left untouched")

	other := NewTensorPool(DefaultConfig())
	x, err := other.Alloc(tensor.Shape{2}, 0)
	require.NoError(t, err)
	require.ErrorIs(t, p.Release(x), ErrForeign)
	assert.True(t, x.Bound())

	s := p.Stats()
	assert.Equal(t, 0, s.Live)
	assert.Equal(t, 0, s.Free)
	assert.Equal(t, 0, s.Bytes)

	_, err = p.Alloc(tensor.Shape{16}, 0)
	require.ErrorIs(t, err, ErrExhausted, "the byte limit still holds")
	require.NoError(t, other.Release(x))
}

func TestTensorPool_FailedGradientReleaseKeepsGradient(t *testing.T) {
	p := NewTensorPool(DefaultConfig())

	x, err := p.Alloc(tensor.Shape{2}, autodiff.Tracked)
	require.NoError(t, err)
	foreign, err := tensor.NewNoGrad(tensor.Shape{2})
	require.NoError(t, err)
	x.SetGrad(foreign)

	require.ErrorIs(t, p.Release(x), ErrForeign)
	assert.Same(t, foreign, x.Grad())
	assert.True(t, x.Bound())
	assert.Equal(t, 1, p.Stats().Live)

	x.SetGrad(nil)
	require.NoError(t, p.Release(x))
	assert.Equal(t, 0, p.Stats().Live)
}

func TestTensorPool_ReleasesGradient(t *testing.T) {
	p := NewTensorPool(DefaultConfig())

	x, err := p.Alloc(tensor.Shape{2}, autodiff.Tracked)
	require.NoError(t, err)
	grad, err := p.Alloc(tensor.Shape{2}, autodiff.Zeroed)
	require.NoError(t, err)
	x.SetGrad(grad)
	assert.Equal(t, 2, p.Stats().Live)

	require.NoError(t, p.Release(x))
	assert.Equal(t, 0, p.Stats().Live)
	assert.Equal(t, 2, p.Stats().Free)
	assert.False(t, grad.Bound())
}

func TestTensorPool_Exhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 64 // 8 elements
	p := NewTensorPool(cfg)

	x, err := p.Alloc(tensor.Shape{6}, 0)
	require.NoError(t, err)

	_, err = p.Alloc(tensor.Shape{3}, 0)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, p.Stats().Live)

	_, err = p.Alloc(tensor.Shape{2}, 0)
	require.NoError(t, err, "fits in the remaining budget")

	// Freeing the 6-element buffer lets the pool evict it for another class.
	require.NoError(t, p.Release(x))
	y, err := p.Alloc(tensor.Shape{5}, 0)
	require.NoError(t, err)
	s := p.Stats()
	assert.Equal(t, uint64(1), s.Evicted)
	assert.Equal(t, 56, s.Bytes)
	assert.Equal(t, 0, s.Free)
	assert.Equal(t, 5, y.Size())
}

func TestTensorPool_MaxFreePerClass(t *testing.T) {
	p := NewTensorPool(Config{MaxFreePerClass: 1})

	a, err := p.Alloc(tensor.Shape{4}, 0)
	require.NoError(t, err)
	b, err := p.Alloc(tensor.Shape{4}, 0)
	require.NoError(t, err)

	require.NoError(t, p.Release(a))
	require.NoError(t, p.Release(b))
	s := p.Stats()
	assert.Equal(t, 1, s.Free)
	assert.Equal(t, uint64(1), s.Evicted)
	assert.Equal(t, 32, s.Bytes)
}

func TestTensorPool_InvalidShape(t *testing.T) {
	p := NewTensorPool(DefaultConfig())
	_, err := p.Alloc(tensor.Shape{2, 0}, 0)
	require.ErrorIs(t, err, tensor.ErrInvalidShape)
	assert.Zero(t, p.Stats().Misses)
}

func TestTensorPool_Close(t *testing.T) {
	p := NewTensorPool(DefaultConfig())

	live, err := p.Alloc(tensor.Shape{2}, 0)
	require.NoError(t, err)
	free, err := p.Alloc(tensor.Shape{3}, 0)
	require.NoError(t, err)
	require.NoError(t, p.Release(free))

	p.Close()
	assert.Equal(t, 0, p.Stats().Free)
	assert.Equal(t, 16, p.Stats().Bytes)

	_, err = p.Alloc(tensor.Shape{2}, 0)
	require.ErrorIs(t, err, ErrClosed)

	require.NoError(t, p.Release(live), "live tensors may still be released")
	assert.Equal(t, 0, p.Stats().Bytes)
	assert.Equal(t, 0, p.Stats().Free)
}

func TestGraphPool_SequenceAndReuse(t *testing.T) {
	p := NewGraphPool(DefaultConfig())

	a, err := p.AllocNode()
	require.NoError(t, err)
	b, err := p.AllocNode()
	require.NoError(t, err)
	assert.Less(t, a.Sequence(), b.Sequence())

	require.NoError(t, p.ReleaseNode(a))
	c, err := p.AllocNode()
	require.NoError(t, err)
	assert.Same(t, a, c, "released nodes are reused")
	assert.Greater(t, c.Sequence(), b.Sequence(), "sequence numbers never go back")
	assert.Empty(t, c.Links())

	s := p.Stats()
	assert.Equal(t, 2, s.Live)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
}

func TestGraphPool_Errors(t *testing.T) {
	p := NewGraphPool(Config{MaxNodes: 1})

	a, err := p.AllocNode()
	require.NoError(t, err)
	_, err = p.AllocNode()
	require.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, p.ReleaseNode(a))
	require.ErrorIs(t, p.ReleaseNode(a), ErrDoubleRelease)
	require.ErrorIs(t, p.ReleaseNode(autodiff.NewNode(0)), ErrDoubleRelease)

	p.Close()
	_, err = p.AllocNode()
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, p.Stats().Free)
}
