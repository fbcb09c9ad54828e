// Copyright 2026 Manifold ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public surface of the dense float32 tensor type.
package tensor

import (
	"github.com/manifold-ml/manifold/internal/tensor"
)

// Shape describes tensor dimensions.
type Shape = tensor.Shape

// Tensor is a dense float32 tensor in row-major layout.
type Tensor = tensor.Tensor

// Zeros creates a zero-filled tensor.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{4, 3, 8, 8})
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Ones creates a one-filled tensor.
func Ones(shape Shape) *Tensor {
	return tensor.Ones(shape)
}

// Full creates a tensor filled with v.
func Full(shape Shape, v float32) *Tensor {
	return tensor.Full(shape, v)
}

// Randn creates a tensor of standard normal samples.
func Randn(shape Shape) *Tensor {
	return tensor.Randn(shape)
}

// Rand creates a tensor of uniform [0, 1) samples.
func Rand(shape Shape) *Tensor {
	return tensor.Rand(shape)
}

// Eye creates the n by n identity matrix.
func Eye(n int) *Tensor {
	return tensor.Eye(n)
}

// FromSlice creates a tensor from existing data. The slice is copied.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}
