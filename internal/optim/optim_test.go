package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-ml/manifold/internal/nn"
	"github.com/manifold-ml/manifold/internal/tensor"
)

func TestSGDStep(t *testing.T) {
	p := nn.NewParameter("w", tensor.Full(tensor.Shape{2}, 1))
	grad, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2})
	require.NoError(t, err)
	p.SetGrad(grad)

	opt := NewSGD([]*nn.Parameter{p}, SGDConfig{LR: 0.1})
	opt.Step()

	assert.InDelta(t, 0.9, float64(p.Tensor().At(0)), 1e-6)
	assert.InDelta(t, 0.8, float64(p.Tensor().At(1)), 1e-6)
}

func TestSGDMomentumAccumulates(t *testing.T) {
	p := nn.NewParameter("w", tensor.Zeros(tensor.Shape{1}))
	opt := NewSGD([]*nn.Parameter{p}, SGDConfig{LR: 1, Momentum: 0.5})

	grad := tensor.Ones(tensor.Shape{1})
	p.SetGrad(grad)
	opt.Step() // velocity 1, param -1
	p.SetGrad(grad)
	opt.Step() // velocity 1.5, param -2.5

	assert.InDelta(t, -2.5, float64(p.Tensor().At(0)), 1e-6)
}

func TestSGDWeightDecayOnlyRegularizable(t *testing.T) {
	w := nn.NewParameter("w", tensor.Full(tensor.Shape{1}, 2))
	b := nn.NewParameter("b", tensor.Full(tensor.Shape{1}, 2))
	b.SetRegularizable(false)

	grad := tensor.Zeros(tensor.Shape{1})
	w.SetGrad(grad)
	b.SetGrad(grad)

	opt := NewSGD([]*nn.Parameter{w, b}, SGDConfig{LR: 0.1, WeightDecay: 0.5})
	opt.Step()

	assert.InDelta(t, 1.9, float64(w.Tensor().At(0)), 1e-6)
	assert.Equal(t, float32(2), b.Tensor().At(0))
}

func TestOptimizerSkipsNonTrainableAndNilGrad(t *testing.T) {
	frozen := nn.NewBuffer("stats", tensor.Ones(tensor.Shape{1}))
	idle := nn.NewParameter("idle", tensor.Ones(tensor.Shape{1}))

	opt := NewSGD([]*nn.Parameter{frozen, idle}, SGDConfig{LR: 1})
	opt.Step()

	assert.Equal(t, float32(1), frozen.Tensor().At(0))
	assert.Equal(t, float32(1), idle.Tensor().At(0))
}

func TestZeroGrad(t *testing.T) {
	p := nn.NewParameter("w", tensor.Ones(tensor.Shape{1}))
	p.SetGrad(tensor.Ones(tensor.Shape{1}))

	opt := NewSGD([]*nn.Parameter{p}, SGDConfig{})
	opt.ZeroGrad()
	assert.Nil(t, p.Grad())
}

func TestAdamFirstStep(t *testing.T) {
	// On the first step the bias-corrected update is lr * g/|g| for any
	// nonzero gradient.
	p := nn.NewParameter("w", tensor.Zeros(tensor.Shape{2}))
	grad, err := tensor.FromSlice([]float32{0.5, -3}, tensor.Shape{2})
	require.NoError(t, err)
	p.SetGrad(grad)

	opt := NewAdam([]*nn.Parameter{p}, AdamConfig{LR: 0.001})
	opt.Step()

	assert.InDelta(t, -0.001, float64(p.Tensor().At(0)), 1e-5)
	assert.InDelta(t, 0.001, float64(p.Tensor().At(1)), 1e-5)
}

func TestAdamConverges(t *testing.T) {
	// Minimize (w - 3)^2 with handwritten gradients.
	p := nn.NewParameter("w", tensor.Zeros(tensor.Shape{1}))
	opt := NewAdam([]*nn.Parameter{p}, AdamConfig{LR: 0.1})

	for i := 0; i < 500; i++ {
		g := 2 * (p.Tensor().At(0) - 3)
		grad, err := tensor.FromSlice([]float32{g}, tensor.Shape{1})
		require.NoError(t, err)
		p.SetGrad(grad)
		opt.Step()
		opt.ZeroGrad()
	}
	assert.InDelta(t, 3.0, float64(p.Tensor().At(0)), 0.05)
}

func TestLinearDecay(t *testing.T) {
	d := LinearDecay{LR0: 1, LRTau: 0.1, Tau: 10}
	assert.InDelta(t, 1.0, float64(d.At(0)), 1e-6)
	assert.InDelta(t, 0.55, float64(d.At(5)), 1e-6)
	assert.InDelta(t, 0.1, float64(d.At(10)), 1e-6)
	assert.InDelta(t, 0.1, float64(d.At(100)), 1e-6)

	opt := NewSGD(nil, SGDConfig{LR: 1})
	d.Apply(opt, 5)
	assert.InDelta(t, 0.55, float64(opt.GetLR()), 1e-6)
}

func TestSetGetLR(t *testing.T) {
	opt := NewAdam(nil, AdamConfig{})
	assert.Equal(t, float32(0.001), opt.GetLR())
	opt.SetLR(0.5)
	assert.Equal(t, float32(0.5), opt.GetLR())
}
