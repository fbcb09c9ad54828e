package nn

import (
	"math"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// normalizeAxes computes (x - mean) / sqrt(variance + eps) * gamma + beta,
// where mean and variance have the shape obtained by reducing x over axes.
// gamma and beta must match that shape; either may be nil, in which case the
// scale is 1 and the shift is 0.
func normalizeAxes(x *tensor.Tensor, axes []int, mean, variance *tensor.Tensor, eps float32, gamma, beta *tensor.Tensor) *tensor.Tensor {
	md := mean.Data()
	vd := variance.Data()
	inv := make([]float32, len(vd))
	for i, v := range vd {
		inv[i] = float32(1 / math.Sqrt(float64(v+eps)))
	}

	var gd, bd []float32
	if gamma != nil {
		gd = gamma.Data()
	}
	if beta != nil {
		bd = beta.Data()
	}

	out := tensor.Zeros(x.Shape())
	xd := x.Data()
	od := out.Data()
	x.ForEachReduced(axes, func(i, o int) {
		v := (xd[i] - md[o]) * inv[o]
		if gd != nil {
			v *= gd[o]
		}
		if bd != nil {
			v += bd[o]
		}
		od[i] = v
	})
	return out
}

// spatialAxes returns the batch-norm reduction axes for "spatial" mode:
// the batch axis plus every axis after the channel axis.
func spatialAxes(rank int) []int {
	axes := []int{0}
	for i := 2; i < rank; i++ {
		axes = append(axes, i)
	}
	return axes
}
