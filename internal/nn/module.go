// Package nn implements neural network layers for the Manifold framework.
//
// This package provides building blocks for constructing networks:
//   - Module interface: base interface for all layers in a sequence
//   - Parameter: trainable parameters with gradient staging
//   - Conv2D: convolutional support layer
//   - The normalization family: BatchNorm, BatchRenorm, GroupNorm (with
//     InstanceNorm and LayerNorm parameterizations), DecorrBatchNorm,
//     AdaptiveInstanceNorm2D and ConditionalInstanceNorm2D
//   - Loss functions: MSE, CrossEntropy
//   - Sequential: container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go.
package nn

import (
	"github.com/manifold-ml/manifold/internal/tensor"
)

// Mode selects between training and inference behavior for layers that
// distinguish the two (normalization layers with running statistics).
type Mode int

const (
	// Train computes statistics from the current batch and updates
	// running statistics as a side effect.
	Train Mode = iota

	// Eval normalizes with frozen running statistics and never mutates
	// layer state.
	Eval
)

// String returns "train" or "eval".
func (m Mode) String() string {
	if m == Train {
		return "train"
	}
	return "eval"
}

// Layer is the minimal interface shared by every layer, including those
// that take auxiliary inputs and therefore cannot implement Module.
//
// The weight-assignment collaborator and the model summary operate on this
// interface.
type Layer interface {
	// Name returns the layer name used in logs and parameter naming.
	Name() string

	// Parameters returns all parameters of this layer, trainable or not,
	// in a stable order (weight-like before bias-like).
	Parameters() []*Parameter
}

// Module is a layer that maps a single input tensor to a single output
// tensor and can therefore be stacked in a Sequential.
//
// Forward must not retain or mutate the input. Layers without mode
// dependent behavior ignore the mode argument.
type Module interface {
	Layer

	// Forward computes the output of the module for the given input.
	Forward(input *tensor.Tensor, mode Mode) *tensor.Tensor
}
