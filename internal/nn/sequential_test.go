package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-ml/manifold/internal/tensor"
)

func buildNormStack(t *testing.T) *Sequential {
	t.Helper()
	bn, err := NewBatchNorm(tensor.Shape{4, 2, 3, 3}, BatchNormConfig{Name: "bn"})
	require.NoError(t, err)
	gn, err := NewGroupNorm(tensor.Shape{4, 2, 3, 3}, GroupNormConfig{Name: "gn", Groups: 2})
	require.NoError(t, err)
	return NewSequential("stack", bn, gn)
}

func TestSequentialForwardOrder(t *testing.T) {
	net := buildNormStack(t)
	out := net.Forward(tensor.Randn(tensor.Shape{4, 2, 3, 3}), Train)
	assert.Equal(t, tensor.Shape{4, 2, 3, 3}, out.Shape())

	// The final stage is instance normalization, so every (sample, channel)
	// plane ends up standardized.
	mean := out.MeanAxes(2, 3)
	for _, v := range mean.Data() {
		assert.InDelta(t, 0.0, float64(v), 1e-4)
	}
}

func TestSequentialLayersOrdered(t *testing.T) {
	net := buildNormStack(t)
	layers := net.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, "bn", layers[0].Name())
	assert.Equal(t, "gn", layers[1].Name())
}

func TestSequentialAdd(t *testing.T) {
	net := NewSequential("")
	assert.Equal(t, "Sequential", net.Name())
	assert.Empty(t, net.Layers())

	bn, err := NewBatchNorm(tensor.Shape{4, 2}, BatchNormConfig{Axes: PerActivationAxes})
	require.NoError(t, err)
	net.Add(bn)
	assert.Len(t, net.Layers(), 1)
}

func TestSequentialParameters(t *testing.T) {
	net := buildNormStack(t)
	// BatchNorm carries 4 parameters, GroupNorm 2.
	assert.Len(t, net.Parameters(), 6)
}

func TestSequentialReset(t *testing.T) {
	net := buildNormStack(t)
	bn := net.Layers()[0].(*BatchNorm)
	bn.Gamma.Tensor().Fill(7)

	net.Reset()
	assert.Equal(t, float32(1), bn.Gamma.Tensor().At(0))
}

func TestParameterFlags(t *testing.T) {
	p := NewParameter("w", tensor.Ones(tensor.Shape{2}))
	assert.True(t, p.Trainable())
	assert.True(t, p.Regularizable())
	assert.Nil(t, p.Grad())

	b := NewBuffer("stats", tensor.Zeros(tensor.Shape{2}))
	assert.False(t, b.Trainable())
	assert.False(t, b.Regularizable())

	g := tensor.Ones(tensor.Shape{2})
	p.SetGrad(g)
	assert.Same(t, g, p.Grad())
	p.ZeroGrad()
	assert.Nil(t, p.Grad())
}
