package tensor

import (
	"fmt"
	"math"
)

func (t *Tensor) binary(other *Tensor, op func(a, b float32) float32) *Tensor {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("tensor: shape mismatch %v vs %v", t.shape, other.shape))
	}
	out := newTensor(t.shape)
	for i := range t.data {
		out.data[i] = op(t.data[i], other.data[i])
	}
	return out
}

// Add returns the element-wise sum. Shapes must match.
func (t *Tensor) Add(other *Tensor) *Tensor {
	return t.binary(other, func(a, b float32) float32 { return a + b })
}

// Sub returns the element-wise difference. Shapes must match.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return t.binary(other, func(a, b float32) float32 { return a - b })
}

// Mul returns the element-wise product. Shapes must match.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return t.binary(other, func(a, b float32) float32 { return a * b })
}

// Div returns the element-wise quotient. Shapes must match.
func (t *Tensor) Div(other *Tensor) *Tensor {
	return t.binary(other, func(a, b float32) float32 { return a / b })
}

// AddScalar returns t + v element-wise.
func (t *Tensor) AddScalar(v float32) *Tensor {
	out := newTensor(t.shape)
	for i := range t.data {
		out.data[i] = t.data[i] + v
	}
	return out
}

// Scale returns t * v element-wise.
func (t *Tensor) Scale(v float32) *Tensor {
	out := newTensor(t.shape)
	for i := range t.data {
		out.data[i] = t.data[i] * v
	}
	return out
}

// Apply returns a tensor with f applied to every element.
func (t *Tensor) Apply(f func(float32) float32) *Tensor {
	out := newTensor(t.shape)
	for i := range t.data {
		out.data[i] = f(t.data[i])
	}
	return out
}

// Sqrt returns the element-wise square root.
func (t *Tensor) Sqrt() *Tensor {
	return t.Apply(func(v float32) float32 {
		return float32(math.Sqrt(float64(v)))
	})
}

// Clip returns the tensor with every element clamped to [lo, hi].
func (t *Tensor) Clip(lo, hi float32) *Tensor {
	return t.Apply(func(v float32) float32 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	})
}
