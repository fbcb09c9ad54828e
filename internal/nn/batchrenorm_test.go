package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-ml/manifold/internal/tensor"
)

func TestBatchRenormDefaults(t *testing.T) {
	brn, err := NewBatchRenorm(tensor.Shape{4, 3, 8, 8}, BatchRenormConfig{})
	require.NoError(t, err)
	assert.Equal(t, "BRN", brn.Name())
	assert.Equal(t, float32(1), brn.RMax)
	assert.Equal(t, float32(0), brn.DMax)
}

func TestBatchRenormTrainNormalizes(t *testing.T) {
	brn, err := NewBatchRenorm(tensor.Shape{8, 4, 6, 6}, BatchRenormConfig{
		RMax: 3,
		DMax: 5,
	})
	require.NoError(t, err)

	// Warm up the running statistics so the correction terms are finite
	// and well scaled.
	for i := 0; i < 20; i++ {
		brn.Forward(tensor.Randn(tensor.Shape{8, 4, 6, 6}), Train)
	}

	out := brn.Forward(tensor.Randn(tensor.Shape{8, 4, 6, 6}), Train)
	mean := out.MeanAxes(0, 2, 3)
	for c := 0; c < 4; c++ {
		assert.InDelta(t, 0.0, float64(mean.At(c)), 0.5)
	}
}

func TestBatchRenormUnbiasedRunningVariance(t *testing.T) {
	brn, err := NewBatchRenorm(tensor.Shape{4, 2, 3, 3}, BatchRenormConfig{
		BatchNormConfig: BatchNormConfig{RunningAverageFactor: 0.1},
	})
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{4, 2, 3, 3})
	batchMean := x.MeanAxes(0, 2, 3)
	batchVar := x.VarAxes(0, 2, 3)
	brn.Forward(x, Train)

	// m elements contribute to each per-channel statistic.
	m := float32(4 * 3 * 3)
	for c := 0; c < 2; c++ {
		wantMean := batchMean.At(c) * 0.1
		wantVar := batchVar.At(c) * (m / (m - 1)) * 0.1
		assert.InDelta(t, float64(wantMean), float64(brn.Stats.Mean.Tensor().At(c)), 1e-5)
		assert.InDelta(t, float64(wantVar), float64(brn.Stats.Var.Tensor().At(c)), 1e-4)
	}
}

func TestBatchRenormEvalMatchesBatchNorm(t *testing.T) {
	brn, err := NewBatchRenorm(tensor.Shape{4, 2, 3, 3}, BatchRenormConfig{})
	require.NoError(t, err)
	bn, err := NewBatchNorm(tensor.Shape{4, 2, 3, 3}, BatchNormConfig{})
	require.NoError(t, err)

	// Same frozen statistics in both layers.
	brn.Stats.Mean.Tensor().Fill(0.5)
	brn.Stats.Var.Tensor().Fill(2)
	bn.Stats.Mean.Tensor().Fill(0.5)
	bn.Stats.Var.Tensor().Fill(2)

	x := tensor.Randn(tensor.Shape{4, 2, 3, 3})
	assert.Equal(t, bn.Forward(x, Eval).Data(), brn.Forward(x, Eval).Data())
}

func TestBatchRenormEvalLeavesStats(t *testing.T) {
	brn, err := NewBatchRenorm(tensor.Shape{4, 2, 3, 3}, BatchRenormConfig{})
	require.NoError(t, err)
	brn.Forward(tensor.Randn(tensor.Shape{4, 2, 3, 3}), Train)
	meanBefore := brn.Stats.Mean.Tensor().Clone()

	brn.Forward(tensor.Randn(tensor.Shape{4, 2, 3, 3}), Eval)
	assert.Equal(t, meanBefore.Data(), brn.Stats.Mean.Tensor().Data())
}
