// Copyright 2026 Manifold ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn is the public surface of the normalization layers and the
// module types they build on.
package nn

import (
	"github.com/manifold-ml/manifold/internal/nn"
	"github.com/manifold-ml/manifold/internal/tensor"
)

// Mode selects training or evaluation behavior for a forward pass.
type Mode = nn.Mode

// Forward pass modes.
const (
	Train = nn.Train
	Eval  = nn.Eval
)

// Layer is anything that owns named parameters.
type Layer = nn.Layer

// Module is a layer with a single-input forward pass.
type Module = nn.Module

// Parameter wraps a tensor with its training metadata.
type Parameter = nn.Parameter

// NewParameter creates a trainable, regularizable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Activation identifies an elementwise activation function.
type Activation = nn.Activation

// Activation functions.
const (
	Identity  = nn.Identity
	ReLU      = nn.ReLU
	LeakyReLU = nn.LeakyReLU
	PReLU     = nn.PReLU
	Sigmoid   = nn.Sigmoid
	Tanh      = nn.Tanh
	ELU       = nn.ELU
	Ramp      = nn.Ramp
	Sine      = nn.Sine
	Cosine    = nn.Cosine
)

// Sequential chains modules into a single forward pass.
type Sequential = nn.Sequential

// NewSequential creates a named module chain.
//
// Example:
//
//	bn, _ := nn.NewBatchNorm(tensor.Shape{32, 16, 8, 8}, nn.BatchNormConfig{})
//	net := nn.NewSequential("encoder", bn)
func NewSequential(name string, modules ...Module) *Sequential {
	return nn.NewSequential(name, modules...)
}

// Normalization layer configurations.
type (
	BatchNormConfig       = nn.BatchNormConfig
	BatchRenormConfig     = nn.BatchRenormConfig
	GroupNormConfig       = nn.GroupNormConfig
	DecorrBatchNormConfig = nn.DecorrBatchNormConfig
)

// NormAxes selects which axes batch statistics are reduced over.
type NormAxes = nn.NormAxes

// Statistic reduction modes.
const (
	SpatialAxes       = nn.SpatialAxes
	PerActivationAxes = nn.PerActivationAxes
)

// BatchNorm normalizes activations with tracked running statistics.
type BatchNorm = nn.BatchNorm

// NewBatchNorm creates a batch normalization layer.
//
// Example:
//
//	bn, err := nn.NewBatchNorm(tensor.Shape{32, 16, 8, 8}, nn.BatchNormConfig{
//		Epsilon:              1e-4,
//		RunningAverageFactor: 0.1,
//	})
func NewBatchNorm(inputShape tensor.Shape, cfg BatchNormConfig) (*BatchNorm, error) {
	return nn.NewBatchNorm(inputShape, cfg)
}

// BatchRenorm is batch normalization with renormalization correction.
type BatchRenorm = nn.BatchRenorm

// NewBatchRenorm creates a batch renormalization layer.
func NewBatchRenorm(inputShape tensor.Shape, cfg BatchRenormConfig) (*BatchRenorm, error) {
	return nn.NewBatchRenorm(inputShape, cfg)
}

// GroupNorm normalizes over channel groups without running statistics.
type GroupNorm = nn.GroupNorm

// NewGroupNorm creates a group normalization layer.
func NewGroupNorm(inputShape tensor.Shape, cfg GroupNormConfig) (*GroupNorm, error) {
	return nn.NewGroupNorm(inputShape, cfg)
}

// NewInstanceNorm creates group normalization with one channel per group.
func NewInstanceNorm(inputShape tensor.Shape, cfg GroupNormConfig) (*GroupNorm, error) {
	return nn.NewInstanceNorm(inputShape, cfg)
}

// NewLayerNorm creates group normalization with a single group.
func NewLayerNorm(inputShape tensor.Shape, cfg GroupNormConfig) (*GroupNorm, error) {
	return nn.NewLayerNorm(inputShape, cfg)
}

// DecorrBatchNorm whitens channels jointly before the affine transform.
type DecorrBatchNorm = nn.DecorrBatchNorm

// NewDecorrBatchNorm creates a decorrelated batch normalization layer.
func NewDecorrBatchNorm(inputShape tensor.Shape, cfg DecorrBatchNormConfig) (*DecorrBatchNorm, error) {
	return nn.NewDecorrBatchNorm(inputShape, cfg)
}

// AdaptiveInstanceNorm2D applies style-derived scale and bias after
// instance normalization.
type AdaptiveInstanceNorm2D = nn.AdaptiveInstanceNorm2D

// NewAdaptiveInstanceNorm2D creates an adaptive instance normalization
// layer. An empty name defaults to "AdaIN" and a zero epsilon to 1e-5.
func NewAdaptiveInstanceNorm2D(inputShape tensor.Shape, name string, epsilon float32) (*AdaptiveInstanceNorm2D, error) {
	return nn.NewAdaptiveInstanceNorm2D(inputShape, name, epsilon)
}

// ConditionalInstanceNorm2D derives scale and bias from a condition
// vector through owned 1x1 convolutions.
type ConditionalInstanceNorm2D = nn.ConditionalInstanceNorm2D

// NewConditionalInstanceNorm2D creates a conditional instance
// normalization layer.
func NewConditionalInstanceNorm2D(inputShape tensor.Shape, noiseDim int, name string, epsilon float32, activation Activation) (*ConditionalInstanceNorm2D, error) {
	return nn.NewConditionalInstanceNorm2D(inputShape, noiseDim, name, epsilon, activation)
}

// Conv2D is a plain NCHW convolution.
type Conv2D = nn.Conv2D

// Conv2DConfig configures a Conv2D layer.
type Conv2DConfig = nn.Conv2DConfig

// NewConv2D creates a convolution layer.
func NewConv2D(inputShape tensor.Shape, cfg Conv2DConfig) (*Conv2D, error) {
	return nn.NewConv2D(inputShape, cfg)
}

// Loss reduces predictions against targets to a scalar cost.
type Loss = nn.Loss

// NewMSELoss creates a mean squared error loss.
func NewMSELoss() *nn.MSELoss {
	return nn.NewMSELoss()
}

// NewCrossEntropyLoss creates a softmax cross entropy loss over logits.
func NewCrossEntropyLoss() *nn.CrossEntropyLoss {
	return nn.NewCrossEntropyLoss()
}
