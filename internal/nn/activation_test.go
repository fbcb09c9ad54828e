package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-ml/manifold/internal/tensor"
)

func applyScalar(t *testing.T, a Activation, v, alpha float32) float32 {
	t.Helper()
	x, err := tensor.FromSlice([]float32{v}, tensor.Shape{1})
	require.NoError(t, err)
	return a.Apply(x, alpha).Data()[0]
}

func TestActivationValues(t *testing.T) {
	tests := []struct {
		act   Activation
		input float32
		want  float64
	}{
		{Identity, -2, -2},
		{ReLU, -2, 0},
		{ReLU, 3, 3},
		{LeakyReLU, -2, -0.4},
		{LeakyReLU, 3, 3},
		{Sigmoid, 0, 0.5},
		{Tanh, 0, 0},
		{ELU, 1, 1},
		{ELU, -1, math.Exp(-1) - 1},
		{Ramp, -0.5, 0},
		{Ramp, 0.5, 0.5},
		{Ramp, 1.5, 1},
		{Sine, 0, 0},
		{Cosine, 0, 1},
	}
	for _, tc := range tests {
		got := applyScalar(t, tc.act, tc.input, DefaultPReLUAlpha)
		assert.InDelta(t, tc.want, float64(got), 1e-6, "%s(%v)", tc.act, tc.input)
	}
}

func TestPReLU(t *testing.T) {
	// 0.5*(1+a)*x + 0.5*(1-a)*|x| equals x for x >= 0 and a*x otherwise.
	alpha := float32(0.1)
	assert.InDelta(t, 3.0, float64(applyScalar(t, PReLU, 3, alpha)), 1e-6)
	assert.InDelta(t, -0.2, float64(applyScalar(t, PReLU, -2, alpha)), 1e-6)

	alpha = 0.25
	assert.InDelta(t, -0.5, float64(applyScalar(t, PReLU, -2, alpha)), 1e-6)
}

func TestActivationNames(t *testing.T) {
	assert.Equal(t, "linear", Identity.String())
	assert.Equal(t, "relu", ReLU.String())
	assert.Equal(t, "prelu", PReLU.String())
	assert.Equal(t, "ramp", Ramp.String())
}

func TestActivationApplyDoesNotMutateInput(t *testing.T) {
	x, err := tensor.FromSlice([]float32{-1, 1}, tensor.Shape{2})
	require.NoError(t, err)
	ReLU.Apply(x, 0)
	assert.Equal(t, []float32{-1, 1}, x.Data())
}
