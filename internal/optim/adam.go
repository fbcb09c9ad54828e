package optim

import (
	"math"

	"github.com/manifold-ml/manifold/internal/nn"
	"github.com/manifold-ml/manifold/internal/tensor"
)

// Adam implements the Adam optimizer (Kingma & Ba, 2015).
//
// Update rule:
//
//	m = beta1*m + (1-beta1)*grad
//	v = beta2*v + (1-beta2)*grad^2
//	m_hat = m / (1 - beta1^t)
//	v_hat = v / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Weight decay is added to the gradient for regularizable parameters.
type Adam struct {
	params      []*nn.Parameter
	lr          float32
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	step        int

	moments1 map[*nn.Parameter]*tensor.Tensor
	moments2 map[*nn.Parameter]*tensor.Tensor
}

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LR          float32 // learning rate (default: 0.001)
	Beta1       float32 // first moment decay (default: 0.9)
	Beta2       float32 // second moment decay (default: 0.999)
	Eps         float32 // denominator guard (default: 1e-8)
	WeightDecay float32 // L2 penalty on regularizable parameters (default: 0)
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Beta1 == 0 {
		config.Beta1 = 0.9
	}
	if config.Beta2 == 0 {
		config.Beta2 = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		params:      trainable(params),
		lr:          config.LR,
		beta1:       config.Beta1,
		beta2:       config.Beta2,
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		moments1:    make(map[*nn.Parameter]*tensor.Tensor),
		moments2:    make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step applies one Adam update. Parameters without a staged gradient are
// skipped, but the bias-correction step counter still advances once per
// call in which any parameter was updated.
func (a *Adam) Step() {
	a.step++
	bc1 := 1 - float32(math.Pow(float64(a.beta1), float64(a.step)))
	bc2 := 1 - float32(math.Pow(float64(a.beta2), float64(a.step)))

	for _, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		m1, ok := a.moments1[param]
		if !ok {
			m1 = tensor.Zeros(param.Tensor().Shape())
			a.moments1[param] = m1
		}
		m2, ok := a.moments2[param]
		if !ok {
			m2 = tensor.Zeros(param.Tensor().Shape())
			a.moments2[param] = m2
		}

		decay := float32(0)
		if a.weightDecay != 0 && param.Regularizable() {
			decay = a.weightDecay
		}

		gd := grad.Data()
		pd := param.Tensor().Data()
		m1d := m1.Data()
		m2d := m2.Data()
		for i := range pd {
			g := gd[i] + decay*pd[i]
			m1d[i] = a.beta1*m1d[i] + (1-a.beta1)*g
			m2d[i] = a.beta2*m2d[i] + (1-a.beta2)*g*g
			mHat := m1d[i] / bc1
			vHat := m2d[i] / bc2
			pd[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears the staged gradients of all parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}
