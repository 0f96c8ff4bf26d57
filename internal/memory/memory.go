// Package memory provides the recycling allocators behind the autograd
// engine: a tensor pool keyed by element count and a graph pool for nodes.
//
// A training step allocates the same shapes every iteration. Returning each
// buffer to the free list of its size class on release lets the next
// iteration reuse it, so after warm-up the loop cycles a fixed set of
// buffers between "free" and "in use".
//
// Example:
//
//	tensors := memory.NewTensorPool(memory.DefaultConfig())
//	graph := memory.NewGraphPool(memory.DefaultConfig())
//	allocs := autodiff.NewAllocators(tensors, graph)
//	defer tensors.Close()
//	defer graph.Close()
//
// Pools are not safe for concurrent use; give each goroutine its own.
package memory

import (
	"log/slog"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrExhausted     = errors.New("pool exhausted")
	ErrDoubleRelease = errors.New("storage released twice")
	ErrNodeAttached  = errors.New("tensor still owns a graph node")
	ErrClosed        = errors.New("pool is closed")
	ErrForeign       = errors.New("tensor was not allocated by this pool")
)

const (
	bytesPerElement = 8

	defaultMaxFreePerClass = 64
)

// Config controls pool limits. Zero limits mean unlimited.
type Config struct {
	MaxBytes        int // Backing memory a tensor pool may hold, in use or free.
	MaxFreePerClass int // Free buffers retained per size class; extras are dropped.
	MaxNodes        int // Nodes a graph pool may have in use at once.
}

// DefaultConfig returns unlimited pools that retain up to 64 free buffers
// per size class.
func DefaultConfig() Config {
	return Config{
		MaxFreePerClass: defaultMaxFreePerClass,
	}
}

// Stats reports pool activity.
type Stats struct {
	Allocated uint64 // Units created from backing memory.
	Released  uint64 // Release calls that succeeded.
	Hits      uint64 // Allocations served from a free list.
	Misses    uint64 // Allocations that needed new storage.
	Evicted   uint64 // Free units dropped to stay under a limit.
	Live      int    // Units currently in use.
	Free      int    // Units waiting on free lists.
	Bytes     int    // Backing bytes held (tensor pool only).
}

// LogValue groups the counters when a Stats is logged with log/slog.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("live", s.Live),
		slog.Int("free", s.Free),
		slog.Int("bytes", s.Bytes),
		slog.Uint64("hits", s.Hits),
		slog.Uint64("misses", s.Misses),
		slog.Uint64("evicted", s.Evicted),
	)
}
