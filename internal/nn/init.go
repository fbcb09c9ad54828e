package nn

import (
	"math"
	"math/rand"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Draws values from U(-b, b) with b = sqrt(6 / (fan_in + fan_out)), which
// keeps activation variance roughly constant across layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // math/rand is fine for weight initialization
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// HeNormal initialization for weights feeding rectifier activations.
//
// Draws values from N(0, sqrt(2 / fan_in)).
func HeNormal(fanIn int, shape tensor.Shape) *tensor.Tensor {
	std := math.Sqrt(2.0 / float64(fanIn))

	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // math/rand is fine for weight initialization
		data[i] = float32(rand.NormFloat64() * std)
	}
	return t
}
