// Package data implements minibatch generation for training and testing.
//
// The package provides:
//   - Minibatch: an immutable (features, optional targets) pair
//   - Iterator: a single-pass, scanner-style minibatch sequence
//   - Manager: shuffling, batching and augmentation over an in-memory dataset
//   - Background: a bounded-queue pipeline running the source iterator in
//     a producer goroutine
//   - Progress: a throttled progress/ETA reporter wrapping any iterator
//
// The usual composition, mirrored by Manager.Batches, is
//
//	generator -> augmentation -> Background -> Progress
//
// so that slow minibatch generation (disk reads, image transforms) never
// stalls the training loop beyond the bounded queue's backpressure.
package data

import (
	"github.com/manifold-ml/manifold/internal/tensor"
)

// Minibatch is one unit of training or testing data: a features tensor
// with leading batch dimension and, unless the dataset has no targets, a
// matching targets tensor.
//
// Minibatches are produced once, consumed once and then discarded; they
// are never mutated after production, which is what lets the background
// pipeline hand them across goroutines without locking.
type Minibatch struct {
	Features *tensor.Tensor
	Targets  *tensor.Tensor // nil when the dataset has no targets
}

// Size returns the number of samples in the minibatch.
func (m *Minibatch) Size() int {
	return m.Features.Shape()[0]
}

// Iterator is a lazy, single-pass, non-restartable minibatch sequence.
//
// Usage follows the bufio.Scanner pattern:
//
//	for it.Next() {
//	    b := it.Batch()
//	    // consume b
//	}
//	if err := it.Err(); err != nil {
//	    // the source failed mid-stream
//	}
type Iterator interface {
	// Next advances to the next minibatch, blocking if necessary.
	// It returns false when the sequence is exhausted or failed.
	Next() bool

	// Batch returns the current minibatch. Only valid after a true Next.
	Batch() *Minibatch

	// Err returns the terminal error, if any, once Next has returned
	// false.
	Err() error
}

// sliceIterator yields pre-built minibatch thunks one at a time. Each
// thunk runs when its item is requested, keeping the sequence lazy.
type sliceIterator struct {
	thunks []func() (*Minibatch, error)
	cur    *Minibatch
	err    error
}

func (s *sliceIterator) Next() bool {
	if s.err != nil || len(s.thunks) == 0 {
		return false
	}
	b, err := s.thunks[0]()
	s.thunks = s.thunks[1:]
	if err != nil {
		s.err = err
		return false
	}
	s.cur = b
	return true
}

func (s *sliceIterator) Batch() *Minibatch {
	return s.cur
}

func (s *sliceIterator) Err() error {
	return s.err
}
