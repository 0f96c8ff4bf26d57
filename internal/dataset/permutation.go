package dataset

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// ErrBatchCapacity is returned when more indices are requested than a
// Batch can hold or than remain in a Permutation.
var ErrBatchCapacity = errors.New("batch request exceeds capacity")

// Batch is a reusable container of row indices with a fixed capacity.
type Batch struct {
	idx []int
}

// NewBatch creates an empty batch that can hold up to capacity indices.
func NewBatch(capacity int) *Batch {
	return &Batch{idx: make([]int, 0, capacity)}
}

// Indices returns the current indices. The slice is reused by the next Next.
func (b *Batch) Indices() []int {
	return b.idx
}

// Len returns the number of indices in the batch.
func (b *Batch) Len() int {
	return len(b.idx)
}

// Cap returns the batch capacity.
func (b *Batch) Cap() int {
	return cap(b.idx)
}

// Permutation walks a shuffled ordering of [0, n) once.
//
// Typical epoch loop:
//
//	perm := dataset.NewPermutation(d.Rows, rng)
//	for !perm.Done() {
//	    k := min(perm.Remaining(), batch.Cap())
//	    if err := perm.Next(k, batch); err != nil { ... }
//	    // train on batch.Indices()
//	    perm.Advance(k)
//	}
type Permutation struct {
	order []int
	pos   int
}

// NewPermutation shuffles [0, n) with rng.
func NewPermutation(n int, rng *rand.Rand) *Permutation {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(n, func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return &Permutation{order: order}
}

// Remaining returns how many indices have not been consumed.
func (p *Permutation) Remaining() int {
	return len(p.order) - p.pos
}

// Done reports whether every index has been consumed.
func (p *Permutation) Done() bool {
	return p.pos >= len(p.order)
}

// Next copies the next k indices into batch without consuming them.
func (p *Permutation) Next(k int, batch *Batch) error {
	if k < 0 || k > batch.Cap() || k > p.Remaining() {
		return errors.Wrapf(ErrBatchCapacity, "next %d: capacity %d, remaining %d", k, batch.Cap(), p.Remaining())
	}
	batch.idx = append(batch.idx[:0], p.order[p.pos:p.pos+k]...)
	return nil
}

// Advance consumes k indices. It stops at the end of the permutation.
func (p *Permutation) Advance(k int) {
	p.pos = min(p.pos+k, len(p.order))
}
