// Package parallel splits independent index ranges across worker
// goroutines. Convolution and normalization kernels use it for their
// per-sample, per-channel loops.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how a loop is split across goroutines.
type Config struct {
	Enabled      bool // run chunks concurrently
	NumWorkers   int  // goroutines to spread chunks over
	MinChunkSize int  // smallest range worth a goroutine
}

// DefaultConfig sizes the worker pool to the CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 16,
	}
}

// For runs f(i) for every i in [0, n). Iterations must be independent.
// Small ranges and disabled configs run sequentially.
func For(n int, cfg Config, f func(i int)) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForSampleChannel runs f(sample, channel) over a samples x channels
// grid, the iteration shape of NCHW layer kernels.
func ForSampleChannel(samples, channels int, cfg Config, f func(sample, channel int)) {
	For(samples*channels, cfg, func(k int) {
		f(k/channels, k%channels)
	})
}
