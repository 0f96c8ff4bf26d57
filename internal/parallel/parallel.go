// Package parallel splits index ranges across goroutines.
//
// Tensor and graph pools are not safe for concurrent use. Work run through
// For receives a worker index so each goroutine can draw from allocators of
// its own.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Workers  int // Goroutines to use; 0 means runtime.NumCPU().
	MinChunk int // Minimum items per worker.
}

// DefaultConfig returns one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MinChunk: 64,
	}
}

// Range is the half-open index interval [Start, End).
type Range struct {
	Start, End int
}

// Len returns the number of indices in r.
func (r Range) Len() int {
	return r.End - r.Start
}

// Split divides [0, n) into at most cfg.Workers contiguous ranges of at
// least cfg.MinChunk items. Only the last range may be shorter.
func Split(n int, cfg Config) []Range {
	if n <= 0 {
		return nil
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunk := max((n+workers-1)/workers, cfg.MinChunk, 1)

	ranges := make([]Range, 0, (n+chunk-1)/chunk)
	for start := 0; start < n; start += chunk {
		ranges = append(ranges, Range{Start: start, End: min(start+chunk, n)})
	}
	return ranges
}

// For calls f once for every range of Split(n, cfg) and returns the first
// error. A single range runs on the calling goroutine.
func For(n int, cfg Config, f func(worker int, r Range) error) error {
	ranges := Split(n, cfg)
	if len(ranges) == 1 {
		return f(0, ranges[0])
	}

	var g errgroup.Group
	for i, r := range ranges {
		g.Go(func() error {
			return f(i, r)
		})
	}
	return g.Wait()
}
