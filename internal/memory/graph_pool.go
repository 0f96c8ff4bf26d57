package memory

import (
	"github.com/born-ml/gograd/internal/autodiff"
	"github.com/pkg/errors"
)

const defaultLinkCapacity = 4

// GraphPool recycles graph nodes together with their link storage and
// stamps each allocated node with a strictly increasing sequence number.
type GraphPool struct {
	cfg    Config
	free   []*autodiff.Node
	inUse  map[*autodiff.Node]struct{}
	seq    uint64
	closed bool

	stats Stats
}

// NewGraphPool creates an empty graph pool.
func NewGraphPool(cfg Config) *GraphPool {
	return &GraphPool{
		cfg:   cfg,
		inUse: make(map[*autodiff.Node]struct{}),
	}
}

// AllocNode returns an empty node with the next sequence number.
func (p *GraphPool) AllocNode() (*autodiff.Node, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if p.cfg.MaxNodes > 0 && len(p.inUse) >= p.cfg.MaxNodes {
		return nil, errors.Wrapf(ErrExhausted, "%d graph nodes in use", len(p.inUse))
	}

	var n *autodiff.Node
	if k := len(p.free); k > 0 {
		n = p.free[k-1]
		p.free[k-1] = nil
		p.free = p.free[:k-1]
		p.stats.Hits++
	} else {
		n = autodiff.NewNode(defaultLinkCapacity)
		p.stats.Misses++
		p.stats.Allocated++
	}

	p.seq++
	n.Reset(p.seq)
	p.inUse[n] = struct{}{}
	p.stats.Live++
	return n, nil
}

// ReleaseNode returns n to the free list. Operand references held by its
// links are dropped immediately.
func (p *GraphPool) ReleaseNode(n *autodiff.Node) error {
	if _, ok := p.inUse[n]; !ok {
		return ErrDoubleRelease
	}
	delete(p.inUse, n)
	n.Reset(0)
	p.stats.Released++
	p.stats.Live--
	if p.closed {
		return nil
	}
	if p.cfg.MaxFreePerClass > 0 && len(p.free) >= p.cfg.MaxFreePerClass {
		p.stats.Evicted++
		return nil
	}
	p.free = append(p.free, n)
	return nil
}

// Stats returns a snapshot of pool activity.
func (p *GraphPool) Stats() Stats {
	s := p.stats
	s.Free = len(p.free)
	return s
}

// Close drops every free node. Nodes in use may still be released;
// further allocations fail with ErrClosed.
func (p *GraphPool) Close() {
	p.free = nil
	p.closed = true
}
