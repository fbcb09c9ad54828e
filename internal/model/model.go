// Package model wires a layer stack, loss, optimizer and dataset
// manager into training and evaluation runs.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/manifold-ml/manifold/internal/config"
	"github.com/manifold-ml/manifold/internal/data"
	"github.com/manifold-ml/manifold/internal/nn"
	"github.com/manifold-ml/manifold/internal/optim"
	"github.com/manifold-ml/manifold/internal/tensor"
	"github.com/manifold-ml/manifold/internal/weights"
)

// Backward computes parameter gradients for one minibatch and stages
// them on the parameters with SetGrad. The network forward pass has
// already run; predictions is its output in training mode.
type Backward func(net *nn.Sequential, batch *data.Minibatch, predictions *tensor.Tensor) error

// Model couples a network with its training collaborators.
type Model struct {
	runID string
	cfg   *config.Config

	net      *nn.Sequential
	loss     nn.Loss
	opt      optim.Optimizer
	backward Backward

	epoch int
	step  int64
}

// New creates a Model. loss, opt and backward may be nil for
// inference-only use.
func New(cfg *config.Config, net *nn.Sequential, loss nn.Loss, opt optim.Optimizer, backward Backward) *Model {
	return &Model{
		runID:    uuid.NewString(),
		cfg:      cfg,
		net:      net,
		loss:     loss,
		opt:      opt,
		backward: backward,
	}
}

// RunID returns the unique identifier of this model instance.
func (m *Model) RunID() string {
	return m.runID
}

// Network returns the underlying layer stack.
func (m *Model) Network() *nn.Sequential {
	return m.net
}

// Train runs the configured number of epochs over the manager's training
// split, evaluating on the testing split after each epoch. Training
// stops early when ctx is cancelled.
func (m *Model) Train(ctx context.Context, mgr *data.Manager) error {
	if m.loss == nil || m.opt == nil || m.backward == nil {
		return fmt.Errorf("model: training requires a loss, an optimizer and a backward pass")
	}
	if m.cfg.Training.Continue {
		if err := m.loadCheckpoint(); err != nil {
			return err
		}
	}

	numEpochs := m.cfg.Training.NumEpochs
	for epoch := m.epoch + 1; epoch <= numEpochs; epoch++ {
		cost, err := m.trainEpoch(ctx, mgr, epoch, numEpochs)
		if err != nil {
			return err
		}
		m.epoch = epoch

		valCost, err := m.Evaluate(ctx, mgr)
		if err != nil {
			return err
		}
		slog.Info("epoch finished",
			"run", m.runID, "epoch", epoch, "cost", cost, "validation_cost", valCost)

		if m.cfg.SaveLoad.Checkpoint {
			if err := m.saveCheckpoint(valCost); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) trainEpoch(ctx context.Context, mgr *data.Manager, epoch, numEpochs int) (float32, error) {
	it := mgr.Batches(data.TrainStage, epoch, numEpochs)
	defer stop(it)

	var total float64
	var count int
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch := it.Batch()
		predictions := m.net.Forward(batch.Features, nn.Train)
		cost := m.loss.Forward(predictions, batch.Targets)
		total += float64(cost)
		count++
		m.step++

		if err := m.backward(m.net, batch, predictions); err != nil {
			return 0, fmt.Errorf("model: backward pass failed at step %d: %w", m.step, err)
		}
		m.opt.Step()
		m.opt.ZeroGrad()

		if m.cfg.Training.DisplayCost {
			slog.Info("minibatch cost", "step", m.step, "cost", cost)
		}
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("model: training pipeline: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	return float32(total / float64(count)), nil
}

// Evaluate computes the mean loss over the testing split in evaluation
// mode. Parameters and running statistics are left untouched.
func (m *Model) Evaluate(ctx context.Context, mgr *data.Manager) (float32, error) {
	if m.loss == nil {
		return 0, fmt.Errorf("model: evaluation requires a loss")
	}
	it := mgr.Batches(data.TestStage, 0, 0)
	defer stop(it)

	var total float64
	var count int
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch := it.Batch()
		predictions := m.net.Forward(batch.Features, nn.Eval)
		total += float64(m.loss.Forward(predictions, batch.Targets))
		count++
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("model: evaluation pipeline: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	return float32(total / float64(count)), nil
}

// Predict runs the network on the testing split in evaluation mode and
// returns the per-batch outputs.
func (m *Model) Predict(ctx context.Context, mgr *data.Manager) ([]*tensor.Tensor, error) {
	it := mgr.Batches(data.TestStage, 0, 0)
	defer stop(it)

	var outputs []*tensor.Tensor
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outputs = append(outputs, m.net.Forward(it.Batch().Features, nn.Eval))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("model: prediction pipeline: %w", err)
	}
	return outputs, nil
}

// StateDict returns all parameters and buffers keyed by layer and
// parameter name.
func (m *Model) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	for i, layer := range m.net.Layers() {
		for _, p := range layer.Parameters() {
			key := fmt.Sprintf("%03d.%s.%s", i, layer.Name(), p.Name())
			state[key] = p.Tensor()
		}
	}
	return state
}

// LoadStateDict copies stored tensors back into matching parameters.
// Missing or mismatched entries fail the load.
func (m *Model) LoadStateDict(state map[string]*tensor.Tensor) error {
	for i, layer := range m.net.Layers() {
		for _, p := range layer.Parameters() {
			key := fmt.Sprintf("%03d.%s.%s", i, layer.Name(), p.Name())
			t, ok := state[key]
			if !ok {
				return fmt.Errorf("model: state is missing %q", key)
			}
			if !t.Shape().Equal(p.Tensor().Shape()) {
				return fmt.Errorf("model: state %q has shape %v, want %v", key, t.Shape(), p.Tensor().Shape())
			}
			p.Tensor().CopyFrom(t)
		}
	}
	return nil
}

func (m *Model) checkpointPath() string {
	return filepath.Join(m.cfg.SaveLoad.CheckpointDir, "checkpoint.mnfd")
}

func (m *Model) saveCheckpoint(loss float32) error {
	if err := os.MkdirAll(m.cfg.SaveLoad.CheckpointDir, 0o755); err != nil {
		return fmt.Errorf("model: create checkpoint dir: %w", err)
	}
	meta := &weights.CheckpointMeta{Epoch: m.epoch, Step: m.step, Loss: float64(loss)}
	if err := weights.Save(m.checkpointPath(), m.StateDict(), meta); err != nil {
		return err
	}
	slog.Info("checkpoint saved", "run", m.runID, "epoch", m.epoch, "path", m.checkpointPath())
	return nil
}

func (m *Model) loadCheckpoint() error {
	archive, err := weights.Open(m.checkpointPath())
	if err != nil {
		return err
	}
	state := make(map[string]*tensor.Tensor, len(archive.Names()))
	for _, name := range archive.Names() {
		t, err := archive.Tensor(name)
		if err != nil {
			return err
		}
		state[name] = t
	}
	if err := m.LoadStateDict(state); err != nil {
		return err
	}
	if meta := archive.Checkpoint(); meta != nil {
		m.epoch = meta.Epoch
		m.step = meta.Step
	}
	slog.Info("checkpoint restored", "run", m.runID, "epoch", m.epoch)
	return nil
}

// LoadPretrained assigns a parameter archive onto the network layer by
// layer, skipping incompatible entries.
func (m *Model) LoadPretrained(path string) error {
	archive, err := weights.Open(path)
	if err != nil {
		return err
	}
	tensors := make(map[string]*tensor.Tensor, len(archive.Names()))
	for _, name := range archive.Names() {
		t, err := archive.Tensor(name)
		if err != nil {
			return err
		}
		tensors[name] = t
	}
	weights.Assign(tensors, m.net.Layers())
	return nil
}

func stop(it data.Iterator) {
	if s, ok := it.(interface{ Stop() }); ok {
		s.Stop()
	}
}
