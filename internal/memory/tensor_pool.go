package memory

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// TensorPool recycles tensor buffers.
//
// Buffers are grouped by element count, so any two shapes with the same
// number of elements share a size class. Every Alloc returns a new header;
// a released header stays unbound for good, so stale pointers fail with
// ErrNilData on checked access and ErrDoubleRelease on a second release.
// Unbinding also bumps the generation, which the backward pass uses to
// detect graph links to released operands.
type TensorPool struct {
	cfg Config

	free   map[int][][]float64 // size class -> free buffers
	inUse  map[*tensor.Tensor]struct{}
	closed bool

	stats Stats
}

// NewTensorPool creates an empty tensor pool.
func NewTensorPool(cfg Config) *TensorPool {
	return &TensorPool{
		cfg:   cfg,
		free:  make(map[int][][]float64),
		inUse: make(map[*tensor.Tensor]struct{}),
	}
}

// Alloc returns a bound tensor of the given shape, reusing a free buffer of
// the same size class when one exists.
func (p *TensorPool) Alloc(shape tensor.Shape, opts autodiff.AllocOption) (*tensor.Tensor, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	n := shape.NumElements()
	buf, err := p.acquire(n)
	if err != nil {
		return nil, errors.Wrapf(err, "alloc %v", shape)
	}
	if opts&autodiff.Zeroed != 0 {
		clear(buf)
	}

	t := &tensor.Tensor{}
	if err := t.Bind(buf, shape, opts&autodiff.Tracked != 0); err != nil {
		p.putBuffer(buf)
		return nil, err
	}
	p.inUse[t] = struct{}{}
	p.stats.Live++
	return t, nil
}

// Release returns t's buffer, and its gradient's, to the free lists.
// Tensors that still own a graph node must be released through
// autodiff.Allocators.Release so the node goes back to its pool.
// Only tensors issued by this pool may be released; anything else is
// ErrForeign and is left untouched.
func (p *TensorPool) Release(t *tensor.Tensor) error {
	if t == nil {
		return tensor.ErrNilTensor
	}
	if _, ok := p.inUse[t]; !ok {
		if !t.Bound() {
			return ErrDoubleRelease
		}
		return errors.Wrapf(ErrForeign, "release %v", t.Shape())
	}
	if t.Node() != nil {
		return errors.Wrapf(ErrNodeAttached, "release %v", t.Shape())
	}
	if g := t.Grad(); g != nil {
		if err := p.Release(g); err != nil {
			return errors.Wrap(err, "release gradient")
		}
		t.SetGrad(nil)
	}

	delete(p.inUse, t)
	buf := t.Unbind()
	p.stats.Released++
	p.stats.Live--
	if p.closed {
		p.stats.Bytes -= len(buf) * bytesPerElement
		return nil
	}
	p.putBuffer(buf)
	return nil
}

// Stats returns a snapshot of pool activity.
func (p *TensorPool) Stats() Stats {
	s := p.stats
	s.Free = 0
	for _, bufs := range p.free {
		s.Free += len(bufs)
	}
	return s
}

// Close drops every free buffer. Tensors still in use remain
// valid and may be released; further allocations fail with ErrClosed.
func (p *TensorPool) Close() {
	for n, bufs := range p.free {
		p.stats.Bytes -= n * len(bufs) * bytesPerElement
		delete(p.free, n)
	}
	p.closed = true
}

// acquire pops a free buffer of n elements or creates one within budget.
func (p *TensorPool) acquire(n int) ([]float64, error) {
	if bufs := p.free[n]; len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		bufs[len(bufs)-1] = nil
		p.free[n] = bufs[:len(bufs)-1]
		p.stats.Hits++
		return buf, nil
	}

	p.stats.Misses++
	need := n * bytesPerElement
	if p.cfg.MaxBytes > 0 && p.stats.Bytes+need > p.cfg.MaxBytes {
		p.evict(p.stats.Bytes + need - p.cfg.MaxBytes)
		if p.stats.Bytes+need > p.cfg.MaxBytes {
			return nil, errors.Wrapf(ErrExhausted, "need %d bytes, holding %d of %d",
				need, p.stats.Bytes, p.cfg.MaxBytes)
		}
	}

	p.stats.Allocated++
	p.stats.Bytes += need
	return make([]float64, n), nil
}

// evict drops free buffers until at least want bytes have been given back
// or nothing is left to drop.
func (p *TensorPool) evict(want int) {
	for n, bufs := range p.free {
		for len(bufs) > 0 && want > 0 {
			bufs[len(bufs)-1] = nil
			bufs = bufs[:len(bufs)-1]
			p.stats.Bytes -= n * bytesPerElement
			p.stats.Evicted++
			want -= n * bytesPerElement
		}
		p.free[n] = bufs
		if want <= 0 {
			return
		}
	}
}

func (p *TensorPool) putBuffer(buf []float64) {
	n := len(buf)
	if p.cfg.MaxFreePerClass > 0 && len(p.free[n]) >= p.cfg.MaxFreePerClass {
		p.stats.Bytes -= n * bytesPerElement
		p.stats.Evicted++
		return
	}
	p.free[n] = append(p.free[n], buf)
}
