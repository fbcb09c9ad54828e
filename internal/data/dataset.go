package data

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// Stage selects which split of the dataset to iterate.
type Stage int

const (
	// TrainStage iterates the training split with shuffling and
	// augmentation enabled.
	TrainStage Stage = iota

	// TestStage iterates the testing split in order, without
	// augmentation.
	TestStage
)

// String returns "train" or "test".
func (s Stage) String() string {
	if s == TrainStage {
		return "train"
	}
	return "test"
}

// Augment transforms a minibatch before it reaches the training loop
// (e.g. random crops or flips). It must return a fresh minibatch and
// leave its input untouched.
type Augment func(*Minibatch) (*Minibatch, error)

// ManagerConfig configures a dataset Manager.
type ManagerConfig struct {
	BatchSize           int       // training minibatch size
	ValidationBatchSize int       // testing minibatch size, defaults to BatchSize
	Shuffle             bool      // reshuffle the training split every epoch
	NoTarget            bool      // dataset carries features only
	NumCached           int       // background queue capacity, default DefaultNumCached
	Augment             Augment   // optional, applied to training batches only
	ProgressOut         io.Writer // destination for progress lines, default os.Stdout
}

// Manager owns in-memory training and testing splits and turns them into
// minibatch iterators.
//
// Batches composes the full feeding pipeline:
//
//	generator -> augmentation -> background prefetch -> progress
//
// Each call produces a fresh single-pass iterator; epochs re-shuffle the
// training split when shuffling is enabled.
type Manager struct {
	cfg ManagerConfig

	trainX, trainY *tensor.Tensor
	testX, testY   *tensor.Tensor
}

// NewManager creates a Manager. Datasets are attached with
// SetTrainingSet and SetTestingSet.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("data: batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.ValidationBatchSize <= 0 {
		cfg.ValidationBatchSize = cfg.BatchSize
	}
	if cfg.NumCached <= 0 {
		cfg.NumCached = DefaultNumCached
	}
	return &Manager{cfg: cfg}, nil
}

// SetTrainingSet attaches the training split. targets may be nil only for
// a no-target dataset.
func (m *Manager) SetTrainingSet(features, targets *tensor.Tensor) error {
	if err := m.checkSplit(features, targets); err != nil {
		return err
	}
	m.trainX, m.trainY = features, targets
	return nil
}

// SetTestingSet attaches the testing split.
func (m *Manager) SetTestingSet(features, targets *tensor.Tensor) error {
	if err := m.checkSplit(features, targets); err != nil {
		return err
	}
	m.testX, m.testY = features, targets
	return nil
}

func (m *Manager) checkSplit(features, targets *tensor.Tensor) error {
	if features == nil || len(features.Shape()) == 0 {
		return fmt.Errorf("data: features must be a tensor with a leading sample dimension")
	}
	if m.cfg.NoTarget {
		if targets != nil {
			return fmt.Errorf("data: no-target dataset must not carry targets")
		}
		return nil
	}
	if targets == nil {
		return fmt.Errorf("data: targets are required unless the dataset is no-target")
	}
	if targets.Shape()[0] != features.Shape()[0] {
		return fmt.Errorf("data: features have %d samples but targets have %d",
			features.Shape()[0], targets.Shape()[0])
	}
	return nil
}

// NumTrain returns the number of training samples.
func (m *Manager) NumTrain() int {
	if m.trainX == nil {
		return 0
	}
	return m.trainX.Shape()[0]
}

// NumTest returns the number of testing samples.
func (m *Manager) NumTest() int {
	if m.testX == nil {
		return 0
	}
	return m.testX.Shape()[0]
}

// NumBatches returns the number of full minibatches one epoch of the
// given stage yields. Trailing samples that do not fill a batch are
// dropped.
func (m *Manager) NumBatches(stage Stage) int {
	if stage == TrainStage {
		return m.NumTrain() / m.cfg.BatchSize
	}
	return m.NumTest() / m.cfg.ValidationBatchSize
}

// Generator returns a lazy iterator over one epoch of the given stage.
// The training stage reshuffles sample order when configured; the test
// stage is always sequential.
func (m *Manager) Generator(stage Stage) Iterator {
	features, targets := m.trainX, m.trainY
	batchSize := m.cfg.BatchSize
	shuffle := m.cfg.Shuffle
	if stage == TestStage {
		features, targets = m.testX, m.testY
		batchSize = m.cfg.ValidationBatchSize
		shuffle = false
	}
	if features == nil {
		return &sliceIterator{}
	}

	numSamples := features.Shape()[0]
	order := make([]int, numSamples)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		//nolint:gosec // sample order does not need a crypto source
		rand.Shuffle(numSamples, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	numBatches := numSamples / batchSize
	thunks := make([]func() (*Minibatch, error), 0, numBatches)
	for b := 0; b < numBatches; b++ {
		indices := order[b*batchSize : (b+1)*batchSize]
		thunks = append(thunks, func() (*Minibatch, error) {
			mb := &Minibatch{Features: features.Gather(indices)}
			if targets != nil {
				mb.Targets = targets.Gather(indices)
			}
			return mb, nil
		})
	}
	return &sliceIterator{thunks: thunks}
}

// Batches composes the feeding pipeline for one epoch of the given stage.
// When epoch and numEpochs are positive the iterator additionally reports
// progress with an "Epoch e/n, Batch " prefix.
func (m *Manager) Batches(stage Stage, epoch, numEpochs int) Iterator {
	var it Iterator = m.Generator(stage)
	if stage == TrainStage && m.cfg.Augment != nil {
		it = &augmentIterator{src: it, fn: m.cfg.Augment}
	}
	it = NewBackground(it, m.cfg.NumCached)
	if epoch > 0 && numEpochs > 0 {
		it = NewProgress(it, ProgressConfig{
			Desc:  fmt.Sprintf("Epoch %d/%d, Batch ", epoch, numEpochs),
			Total: m.NumBatches(stage),
			Out:   m.cfg.ProgressOut,
		})
	}
	return it
}

// augmentIterator applies the augmentation hook to every minibatch.
type augmentIterator struct {
	src Iterator
	fn  Augment
	cur *Minibatch
	err error
}

func (a *augmentIterator) Next() bool {
	if a.err != nil {
		return false
	}
	if !a.src.Next() {
		return false
	}
	b, err := a.fn(a.src.Batch())
	if err != nil {
		a.err = fmt.Errorf("data: augmentation failed: %w", err)
		return false
	}
	a.cur = b
	return true
}

func (a *augmentIterator) Batch() *Minibatch {
	return a.cur
}

func (a *augmentIterator) Err() error {
	if a.err != nil {
		return a.err
	}
	return a.src.Err()
}
