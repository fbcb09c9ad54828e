package data

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultNumCached is the bounded queue capacity used when none is
// configured.
const DefaultNumCached = 10

// Background runs a source iterator in a background goroutine, caching up
// to numCached minibatches in a bounded queue.
//
// Exactly one producer goroutine iterates the source; the consumer reads
// through the usual Iterator methods. The channel is the only shared
// state: minibatches are immutable once produced, so its send/receive
// pairs are the sole synchronization points. Ordering is FIFO, and the
// producer blocks (backpressure) whenever the queue is full.
//
// Termination: when the source is exhausted the producer closes the
// channel, which acts as the end-of-stream sentinel. If the source fails,
// the error crosses the goroutine boundary and surfaces from Err after
// Next returns false. Stop cancels the producer between items and drains
// the queue so the goroutine always exits; after Stop the iterator
// reports context.Canceled.
type Background struct {
	ch     chan *Minibatch
	group  *errgroup.Group
	cancel context.CancelFunc

	cur  *Minibatch
	err  error
	done bool
}

// NewBackground starts a producer goroutine over src with a bounded queue
// of the given capacity. A capacity below one falls back to
// DefaultNumCached.
func NewBackground(src Iterator, numCached int) *Background {
	if numCached < 1 {
		numCached = DefaultNumCached
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	b := &Background{
		ch:     make(chan *Minibatch, numCached),
		group:  group,
		cancel: cancel,
	}

	group.Go(func() error {
		defer close(b.ch)
		for src.Next() {
			select {
			case b.ch <- src.Batch():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return src.Err()
	})

	return b
}

// Next blocks until a minibatch is available or the stream terminates.
func (b *Background) Next() bool {
	if b.done {
		return false
	}
	item, ok := <-b.ch
	if !ok {
		b.done = true
		b.err = b.group.Wait()
		return false
	}
	b.cur = item
	return true
}

// Batch returns the current minibatch. Only valid after a true Next.
func (b *Background) Batch() *Minibatch {
	return b.cur
}

// Err returns the producer's terminal error once Next has returned false.
func (b *Background) Err() error {
	return b.err
}

// Stop cancels the producer and drains any cached minibatches. It is the
// early-termination path: a consumer that will not drain to the sentinel
// must call Stop to release the producer goroutine.
func (b *Background) Stop() {
	b.cancel()
	for range b.ch {
		// Discard whatever was already cached.
	}
	b.done = true
	if b.err == nil {
		b.err = b.group.Wait()
	}
}
