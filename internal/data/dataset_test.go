package data

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-ml/manifold/internal/tensor"
)

func sampleSplit(t *testing.T, n int) (*tensor.Tensor, *tensor.Tensor) {
	t.Helper()
	features := tensor.Zeros(tensor.Shape{n, 2})
	targets := tensor.Zeros(tensor.Shape{n})
	for i := 0; i < n; i++ {
		features.Set(float32(i), i, 0)
		features.Set(float32(i), i, 1)
		targets.Set(float32(i), i)
	}
	return features, targets
}

func TestManagerBatchCounts(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{BatchSize: 4, ValidationBatchSize: 3})
	require.NoError(t, err)

	trainX, trainY := sampleSplit(t, 10)
	testX, testY := sampleSplit(t, 7)
	require.NoError(t, mgr.SetTrainingSet(trainX, trainY))
	require.NoError(t, mgr.SetTestingSet(testX, testY))

	assert.Equal(t, 10, mgr.NumTrain())
	assert.Equal(t, 7, mgr.NumTest())
	// Trailing partial batches are dropped.
	assert.Equal(t, 2, mgr.NumBatches(TrainStage))
	assert.Equal(t, 2, mgr.NumBatches(TestStage))
}

func TestManagerGeneratorSequentialTest(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{BatchSize: 2, Shuffle: true})
	require.NoError(t, err)
	testX, testY := sampleSplit(t, 6)
	require.NoError(t, mgr.SetTestingSet(testX, testY))

	it := mgr.Generator(TestStage)
	var first []float32
	for it.Next() {
		b := it.Batch()
		require.Equal(t, 2, b.Size())
		first = append(first, b.Features.At(0, 0))
		assert.Equal(t, b.Features.At(0, 0), b.Targets.At(0))
	}
	require.NoError(t, it.Err())
	// The test split is never shuffled.
	assert.Equal(t, []float32{0, 2, 4}, first)
}

func TestManagerShuffleCoversAllSamples(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{BatchSize: 2, Shuffle: true})
	require.NoError(t, err)
	trainX, trainY := sampleSplit(t, 8)
	require.NoError(t, mgr.SetTrainingSet(trainX, trainY))

	it := mgr.Generator(TrainStage)
	seen := make(map[float32]bool)
	for it.Next() {
		b := it.Batch()
		for i := 0; i < b.Size(); i++ {
			seen[b.Features.At(i, 0)] = true
		}
	}
	require.NoError(t, it.Err())
	assert.Len(t, seen, 8)
}

func TestManagerNoTarget(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{BatchSize: 2, NoTarget: true})
	require.NoError(t, err)

	features, targets := sampleSplit(t, 4)
	assert.Error(t, mgr.SetTrainingSet(features, targets))
	require.NoError(t, mgr.SetTrainingSet(features, nil))

	it := mgr.Generator(TrainStage)
	require.True(t, it.Next())
	assert.Nil(t, it.Batch().Targets)
}

func TestManagerSplitValidation(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{BatchSize: 2})
	require.NoError(t, err)

	features, _ := sampleSplit(t, 4)
	_, targets := sampleSplit(t, 5)
	assert.Error(t, mgr.SetTrainingSet(features, nil))
	assert.Error(t, mgr.SetTrainingSet(features, targets))

	_, err = NewManager(ManagerConfig{})
	assert.Error(t, err)
}

func TestManagerBatchesPipeline(t *testing.T) {
	var buf bytes.Buffer
	mgr, err := NewManager(ManagerConfig{BatchSize: 2, NumCached: 2, ProgressOut: &buf})
	require.NoError(t, err)
	trainX, trainY := sampleSplit(t, 6)
	require.NoError(t, mgr.SetTrainingSet(trainX, trainY))

	it := mgr.Batches(TrainStage, 1, 4)
	var count int
	for it.Next() {
		count++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, 3, count)
	assert.Contains(t, buf.String(), "Epoch 1/4, Batch 3/3 (100.00%)")
}

func TestManagerAugmentation(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{
		BatchSize: 2,
		Augment: func(b *Minibatch) (*Minibatch, error) {
			return &Minibatch{
				Features: b.Features.Scale(2),
				Targets:  b.Targets,
			}, nil
		},
	})
	require.NoError(t, err)
	trainX, trainY := sampleSplit(t, 4)
	require.NoError(t, mgr.SetTrainingSet(trainX, trainY))

	it := mgr.Batches(TrainStage, 0, 0)
	sum := float32(0)
	for it.Next() {
		sum += it.Batch().Features.Sum()
	}
	require.NoError(t, it.Err())
	// Features 0..3 doubled over both columns: 2*(0+1+2+3)*2.
	assert.Equal(t, float32(24), sum)
}

func TestManagerAugmentationError(t *testing.T) {
	boom := errors.New("bad crop")
	mgr, err := NewManager(ManagerConfig{
		BatchSize: 2,
		Augment: func(b *Minibatch) (*Minibatch, error) {
			return nil, boom
		},
	})
	require.NoError(t, err)
	trainX, trainY := sampleSplit(t, 4)
	require.NoError(t, mgr.SetTrainingSet(trainX, trainY))

	it := mgr.Batches(TrainStage, 0, 0)
	for it.Next() {
	}
	assert.ErrorIs(t, it.Err(), boom)
}

func TestManagerEmptyStage(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{BatchSize: 2})
	require.NoError(t, err)

	it := mgr.Generator(TestStage)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}
