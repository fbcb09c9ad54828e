package tensor

import (
	"fmt"
	"math/rand"
)

func newTensor(shape Shape) *Tensor {
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.Strides(),
		data:    make([]float32, shape.NumElements()),
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor {
	mustValidate(shape)
	return newTensor(shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float32) *Tensor {
	mustValidate(shape)
	t := newTensor(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Randn creates a tensor filled with samples from the standard normal
// distribution N(0, 1).
func Randn(shape Shape) *Tensor {
	mustValidate(shape)
	t := newTensor(shape)
	for i := range t.data {
		//nolint:gosec // math/rand is fine for weight initialization
		t.data[i] = float32(rand.NormFloat64())
	}
	return t
}

// Rand creates a tensor filled with samples from the uniform
// distribution U(0, 1).
func Rand(shape Shape) *Tensor {
	mustValidate(shape)
	t := newTensor(shape)
	for i := range t.data {
		//nolint:gosec // math/rand is fine for weight initialization
		t.data[i] = rand.Float32()
	}
	return t
}

// Eye creates an n-by-n identity matrix.
func Eye(n int) *Tensor {
	t := Zeros(Shape{n, n})
	for i := 0; i < n; i++ {
		t.data[i*n+i] = 1
	}
	return t
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	t := newTensor(shape)
	copy(t.data, data)
	return t, nil
}

func mustValidate(shape Shape) {
	if err := shape.Validate(); err != nil {
		panic("tensor: " + err.Error())
	}
}
