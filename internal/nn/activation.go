package nn

import (
	"math"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// Activation is a closed set of element-wise activation functions.
//
// The variant is resolved at layer construction time; layers carrying a
// parametric activation (PReLU) own the learned coefficient themselves and
// pass it to Apply on every call.
type Activation int

const (
	// Identity passes values through unchanged.
	Identity Activation = iota
	// ReLU is max(0, x).
	ReLU
	// LeakyReLU is x for x >= 0 and 0.2*x otherwise.
	LeakyReLU
	// PReLU is the parametric rectifier 0.5*(1+a)*x + 0.5*(1-a)*|x|
	// with a learned coefficient a.
	PReLU
	// Sigmoid is 1 / (1 + exp(-x)).
	Sigmoid
	// Tanh is the hyperbolic tangent.
	Tanh
	// ELU is x for x >= 0 and exp(x)-1 otherwise.
	ELU
	// Ramp clamps values to [0, 1].
	Ramp
	// Sine is sin(x).
	Sine
	// Cosine is cos(x).
	Cosine
)

// DefaultPReLUAlpha is the initial (and reset) value of the learned PReLU
// coefficient.
const DefaultPReLUAlpha float32 = 0.1

// String returns the lowercase name of the activation.
func (a Activation) String() string {
	switch a {
	case Identity:
		return "linear"
	case ReLU:
		return "relu"
	case LeakyReLU:
		return "lrelu"
	case PReLU:
		return "prelu"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case ELU:
		return "elu"
	case Ramp:
		return "ramp"
	case Sine:
		return "sin"
	case Cosine:
		return "cos"
	default:
		return "unknown"
	}
}

// Apply computes the activation element-wise. alpha is the learned
// coefficient for PReLU and ignored by every other variant.
func (a Activation) Apply(x *tensor.Tensor, alpha float32) *tensor.Tensor {
	switch a {
	case Identity:
		return x.Clone()
	case ReLU:
		return x.Apply(func(v float32) float32 {
			if v < 0 {
				return 0
			}
			return v
		})
	case LeakyReLU:
		return x.Apply(func(v float32) float32 {
			if v < 0 {
				return 0.2 * v
			}
			return v
		})
	case PReLU:
		f1 := 0.5 * (1 + alpha)
		f2 := 0.5 * (1 - alpha)
		return x.Apply(func(v float32) float32 {
			return f1*v + f2*float32(math.Abs(float64(v)))
		})
	case Sigmoid:
		return x.Apply(func(v float32) float32 {
			return float32(1 / (1 + math.Exp(-float64(v))))
		})
	case Tanh:
		return x.Apply(func(v float32) float32 {
			return float32(math.Tanh(float64(v)))
		})
	case ELU:
		return x.Apply(func(v float32) float32 {
			if v < 0 {
				return float32(math.Exp(float64(v)) - 1)
			}
			return v
		})
	case Ramp:
		return x.Clip(0, 1)
	case Sine:
		return x.Apply(func(v float32) float32 {
			return float32(math.Sin(float64(v)))
		})
	case Cosine:
		return x.Apply(func(v float32) float32 {
			return float32(math.Cos(float64(v)))
		})
	default:
		panic("nn: unknown activation variant")
	}
}
