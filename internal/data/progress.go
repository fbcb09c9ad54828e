package data

import (
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultMinDelay is the minimum interval between progress prints.
const DefaultMinDelay = 100 * time.Millisecond

// Progress wraps an iterator and prints a throttled progress line with an
// ETA while the sequence is consumed.
//
// Items pass through unaltered, and Progress never blocks beyond the
// wrapped iterator's own blocking. Intermediate prints are throttled to at
// most one per MinDelay; the final 100% line with the total elapsed time
// is always printed once the sequence completes.
type Progress struct {
	src      Iterator
	desc     string
	total    int
	minDelay time.Duration
	out      io.Writer

	n        int
	started  bool
	start    time.Time
	lastTick time.Time
	finished bool
}

// ProgressConfig configures a Progress wrapper.
type ProgressConfig struct {
	Desc     string        // optional prefix text (end with a space)
	Total    int           // total number of items in the sequence
	MinDelay time.Duration // minimum delay between prints, default 100ms
	Out      io.Writer     // destination, default os.Stdout
}

// NewProgress wraps src with progress reporting.
func NewProgress(src Iterator, cfg ProgressConfig) *Progress {
	if cfg.MinDelay == 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Progress{
		src:      src,
		desc:     cfg.Desc,
		total:    cfg.Total,
		minDelay: cfg.MinDelay,
		out:      cfg.Out,
	}
}

// Next advances the wrapped iterator, printing progress as a side effect.
func (p *Progress) Next() bool {
	if !p.started {
		p.started = true
		p.start = time.Now()
	}
	if !p.src.Next() {
		p.finish()
		return false
	}

	now := time.Now()
	if now.Sub(p.lastTick) > p.minDelay {
		fmt.Fprintf(p.out, "\r%s%d/%d (%6.2f%%) ", p.desc, p.n+1, p.total,
			float64(p.n)/float64(p.total)*100)
		if p.n > 0 {
			done := now.Sub(p.start)
			projected := time.Duration(float64(done) / float64(p.n) * float64(p.total))
			eta := projected - done
			fmt.Fprintf(p.out, "(ETA: %d:%02d) ", int(eta.Minutes()), int(eta.Seconds())%60)
		}
		p.lastTick = now
	}
	p.n++
	return true
}

// Batch returns the current minibatch of the wrapped iterator.
func (p *Progress) Batch() *Minibatch {
	return p.src.Batch()
}

// Err returns the wrapped iterator's terminal error.
func (p *Progress) Err() error {
	return p.src.Err()
}

// Stop forwards cancellation to the wrapped iterator when it supports it.
func (p *Progress) Stop() {
	if s, ok := p.src.(interface{ Stop() }); ok {
		s.Stop()
	}
}

// finish prints the closing 100% line exactly once.
func (p *Progress) finish() {
	if p.finished {
		return
	}
	p.finished = true
	elapsed := time.Since(p.start)
	fmt.Fprintf(p.out, "\r%s%d/%d (100.00%%) (took %d:%02d)\n", p.desc, p.total, p.total,
		int(elapsed.Minutes()), int(elapsed.Seconds())%60)
}
