package data

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// countingSource yields n minibatches whose first feature encodes the
// item index, tracking how many have been produced.
type countingSource struct {
	n        int
	i        int
	produced atomic.Int64
	cur      *Minibatch
	err      error
}

func (c *countingSource) Next() bool {
	if c.err != nil || c.i >= c.n {
		return false
	}
	c.cur = &Minibatch{Features: tensor.Full(tensor.Shape{1, 1}, float32(c.i))}
	c.i++
	c.produced.Add(1)
	return true
}

func (c *countingSource) Batch() *Minibatch { return c.cur }
func (c *countingSource) Err() error        { return c.err }

// failingSource yields a few items and then fails.
type failingSource struct {
	countingSource
	failAt int
	fail   error
}

func (f *failingSource) Next() bool {
	if f.i >= f.failAt {
		f.err = f.fail
		return false
	}
	return f.countingSource.Next()
}

func TestBackgroundDeliversAllInOrder(t *testing.T) {
	src := &countingSource{n: 25}
	bg := NewBackground(src, 4)

	var got []float32
	for bg.Next() {
		got = append(got, bg.Batch().Features.At(0, 0))
	}
	require.NoError(t, bg.Err())
	require.Len(t, got, 25)
	for i, v := range got {
		assert.Equal(t, float32(i), v)
	}
}

func TestBackgroundBoundedQueue(t *testing.T) {
	// With the consumer stalled, the producer can run at most capacity
	// items ahead plus the one blocked in the send.
	src := &countingSource{n: 100}
	bg := NewBackground(src, 3)

	require.True(t, bg.Next())
	time.Sleep(50 * time.Millisecond)
	produced := src.produced.Load()
	assert.LessOrEqual(t, produced, int64(1+3+1))

	bg.Stop()
}

func TestBackgroundPropagatesSourceError(t *testing.T) {
	boom := errors.New("corrupt shard")
	src := &failingSource{countingSource: countingSource{n: 10}, failAt: 3, fail: boom}
	bg := NewBackground(src, 2)

	var count int
	for bg.Next() {
		count++
	}
	assert.Equal(t, 3, count)
	assert.ErrorIs(t, bg.Err(), boom)
}

func TestBackgroundStop(t *testing.T) {
	src := &countingSource{n: 1000}
	bg := NewBackground(src, 2)

	require.True(t, bg.Next())
	bg.Stop()

	assert.False(t, bg.Next())
	assert.ErrorIs(t, bg.Err(), context.Canceled)

	// Stop is idempotent.
	bg.Stop()
}

func TestBackgroundEmptySource(t *testing.T) {
	bg := NewBackground(&countingSource{n: 0}, 2)
	assert.False(t, bg.Next())
	assert.NoError(t, bg.Err())
}

func TestBackgroundDefaultCapacity(t *testing.T) {
	bg := NewBackground(&countingSource{n: 3}, 0)
	var count int
	for bg.Next() {
		count++
	}
	assert.Equal(t, 3, count)
	assert.NoError(t, bg.Err())
}
