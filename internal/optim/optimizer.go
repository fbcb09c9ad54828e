// Package optim implements optimization algorithms for training.
//
// This package provides:
//   - Optimizer interface: base interface for all optimizers
//   - SGD: stochastic gradient descent with momentum
//   - Adam: adaptive moment estimation
//   - LinearDecay: learning rate schedule
//
// Gradients are staged on parameters by the gradient collaborator before
// Step is called; parameters without a staged gradient are skipped, and
// non-trainable parameters (running statistics, frozen scales) are never
// touched. Weight decay applies only to regularizable parameters.
//
// Example usage:
//
//	optimizer := optim.NewSGD(net.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
//
//	for epoch := 0; epoch < epochs; epoch++ {
//	    // ... forward pass, stage gradients ...
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/manifold-ml/manifold/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies the staged gradients to all trainable parameters.
	Step()

	// ZeroGrad clears the staged gradients of all parameters.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate (used by schedules).
	SetLR(lr float32)
}

// trainable filters the parameters an optimizer may update.
func trainable(params []*nn.Parameter) []*nn.Parameter {
	out := make([]*nn.Parameter, 0, len(params))
	for _, p := range params {
		if p.Trainable() {
			out = append(out, p)
		}
	}
	return out
}
