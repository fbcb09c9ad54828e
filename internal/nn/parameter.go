package nn

import (
	"github.com/manifold-ml/manifold/internal/tensor"
)

// Parameter represents a named tensor owned by a layer.
//
// A parameter may be trainable (updated by the optimizer) and
// regularizable (subject to weight decay). Running statistics are carried
// as non-trainable parameters so that checkpoints capture them.
//
// Example:
//
//	gamma := nn.NewParameter("bn1/gamma", tensor.Ones(tensor.Shape{64}))
//	gamma.SetGrad(grad) // staged by the gradient collaborator
type Parameter struct {
	name          string
	tensor        *tensor.Tensor
	grad          *tensor.Tensor
	trainable     bool
	regularizable bool
}

// NewParameter creates a trainable, regularizable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:          name,
		tensor:        t,
		trainable:     true,
		regularizable: true,
	}
}

// NewBuffer creates a non-trainable parameter (e.g. running statistics).
func NewBuffer(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the staged gradient, or nil if none has been set.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// SetGrad stages a gradient for the next optimizer step.
func (p *Parameter) SetGrad(grad *tensor.Tensor) {
	p.grad = grad
}

// ZeroGrad clears the staged gradient.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// Trainable reports whether the optimizer may update this parameter.
func (p *Parameter) Trainable() bool {
	return p.trainable
}

// SetTrainable marks the parameter as trainable or frozen.
func (p *Parameter) SetTrainable(v bool) {
	p.trainable = v
}

// Regularizable reports whether weight decay applies to this parameter.
func (p *Parameter) Regularizable() bool {
	return p.regularizable
}

// SetRegularizable includes or excludes the parameter from weight decay.
func (p *Parameter) SetRegularizable(v bool) {
	p.regularizable = v
}
