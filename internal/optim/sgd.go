package optim

import (
	"github.com/manifold-ml/manifold/internal/nn"
	"github.com/manifold-ml/manifold/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * (grad + weight_decay * param)
//
// With momentum:
//
//	velocity = momentum * velocity + grad
//	param = param - lr * velocity
//
// The weight decay term is added only for regularizable parameters.
type SGD struct {
	params      []*nn.Parameter
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[*nn.Parameter]*tensor.Tensor
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR          float32 // learning rate (default: 0.01)
	Momentum    float32 // momentum factor in [0, 1) (default: 0)
	WeightDecay float32 // L2 penalty on regularizable parameters (default: 0)
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:      trainable(params),
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step applies one gradient descent update. Parameters without a staged
// gradient are skipped.
func (s *SGD) Step() {
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		gd := grad.Data()
		pd := param.Tensor().Data()

		decay := float32(0)
		if s.weightDecay != 0 && param.Regularizable() {
			decay = s.weightDecay
		}

		if s.momentum == 0 {
			for i := range pd {
				pd[i] -= s.lr * (gd[i] + decay*pd[i])
			}
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = tensor.Zeros(param.Tensor().Shape())
			s.velocities[param] = velocity
		}
		vd := velocity.Data()
		for i := range pd {
			vd[i] = s.momentum*vd[i] + gd[i] + decay*pd[i]
			pd[i] -= s.lr * vd[i]
		}
	}
}

// ZeroGrad clears the staged gradients of all parameters.
func (s *SGD) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}
