package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-ml/manifold/internal/nn"
	"github.com/manifold-ml/manifold/internal/tensor"
)

func newConv(t *testing.T, in, filters, kernel int, noBias bool) *nn.Conv2D {
	t.Helper()
	conv, err := nn.NewConv2D(tensor.Shape{1, in, 8, 8}, nn.Conv2DConfig{
		Filters:    filters,
		KernelSize: kernel,
		NoBias:     noBias,
	})
	require.NoError(t, err)
	return conv
}

func TestAssignNativeLayout(t *testing.T) {
	conv := newConv(t, 2, 3, 1, false)

	w := tensor.Full(tensor.Shape{3, 2, 1, 1}, 0.5)
	b, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3})
	require.NoError(t, err)

	Assign(map[string]*tensor.Tensor{"0_W": w, "0_b": b}, []nn.Module{conv})

	assert.Equal(t, w.Data(), conv.WeightParam().Tensor().Data())
	assert.Equal(t, b.Data(), conv.BiasParam().Tensor().Data())
}

func TestAssignTransposedKernel(t *testing.T) {
	conv := newConv(t, 2, 3, 2, true)

	// Stored as [kh, kw, in, out], native layout is [out, in, kh, kw].
	stored := tensor.Zeros(tensor.Shape{2, 2, 2, 3})
	v := float32(0)
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				for d := 0; d < 3; d++ {
					stored.Set(v, a, b, c, d)
					v++
				}
			}
		}
	}

	Assign(map[string]*tensor.Tensor{"W": stored}, []nn.Module{conv})

	got := conv.WeightParam().Tensor()
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				for d := 0; d < 3; d++ {
					assert.Equal(t, stored.At(a, b, c, d), got.At(d, c, a, b))
				}
			}
		}
	}
}

func TestAssignFullyConnectedWeight(t *testing.T) {
	conv := newConv(t, 1, 3, 2, true)

	// [in*k*k, out] = [4, 3]; kernel size is recovered from the row count.
	stored, err := tensor.FromSlice([]float32{
		0, 1, 2,
		3, 4, 5,
		6, 7, 8,
		9, 10, 11,
	}, tensor.Shape{4, 3})
	require.NoError(t, err)

	Assign(map[string]*tensor.Tensor{"W": stored}, []nn.Module{conv})

	got := conv.WeightParam().Tensor()
	require.True(t, got.Shape().Equal(tensor.Shape{3, 1, 2, 2}))
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for d := 0; d < 3; d++ {
				assert.Equal(t, stored.At(a*2+b, d), got.At(d, 0, a, b))
			}
		}
	}
}

func TestAssignIncompatibleKeepsInit(t *testing.T) {
	conv := newConv(t, 2, 3, 1, false)
	before := conv.WeightParam().Tensor().Clone()

	Assign(map[string]*tensor.Tensor{
		"W": tensor.Ones(tensor.Shape{7, 7, 7, 7}),
	}, []nn.Module{conv})

	assert.Equal(t, before.Data(), conv.WeightParam().Tensor().Data())
}

func TestAssignPairsAcrossLayers(t *testing.T) {
	first := newConv(t, 1, 2, 1, false)
	second := newConv(t, 2, 4, 1, false)
	norm, err := nn.NewBatchNorm(tensor.Shape{1, 2, 8, 8}, nn.BatchNormConfig{})
	require.NoError(t, err)

	tensors := map[string]*tensor.Tensor{
		"a_W": tensor.Full(tensor.Shape{2, 1, 1, 1}, 1),
		"a_b": tensor.Full(tensor.Shape{2}, 2),
		"b_W": tensor.Full(tensor.Shape{4, 2, 1, 1}, 3),
		"b_b": tensor.Full(tensor.Shape{4}, 4),
	}
	// The normalization layer has no weight/bias slot and is skipped.
	Assign(tensors, []nn.Module{first, norm, second})

	assert.Equal(t, float32(1), first.WeightParam().Tensor().At(0, 0, 0, 0))
	assert.Equal(t, float32(2), first.BiasParam().Tensor().At(0))
	assert.Equal(t, float32(3), second.WeightParam().Tensor().At(0, 0, 0, 0))
	assert.Equal(t, float32(4), second.BiasParam().Tensor().At(0))
}
