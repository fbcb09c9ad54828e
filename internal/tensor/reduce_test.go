package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanAxesSpatial(t *testing.T) {
	// [2, 2, 2, 2] with channel 0 all ones and channel 1 all threes.
	x := Zeros(Shape{2, 2, 2, 2})
	x.ForEachReduced([]int{0, 2, 3}, func(i, out int) {
		x.Data()[i] = float32(1 + 2*out)
	})

	mean := x.MeanAxes(0, 2, 3)
	require.Equal(t, Shape{2}, mean.Shape())
	assert.Equal(t, float32(1), mean.At(0))
	assert.Equal(t, float32(3), mean.At(1))
}

func TestVarAxes(t *testing.T) {
	x, err := FromSlice([]float32{1, 3, 2, 4}, Shape{2, 2})
	require.NoError(t, err)

	// Per-column: mean {1.5, 3.5}, population variance {0.25, 0.25}.
	v := x.VarAxes(0)
	require.Equal(t, Shape{2}, v.Shape())
	assert.InDelta(t, 0.25, float64(v.At(0)), 1e-6)
	assert.InDelta(t, 0.25, float64(v.At(1)), 1e-6)
}

func TestVarAxesConstantInput(t *testing.T) {
	x := Full(Shape{4, 3, 8, 8}, 7)
	v := x.VarAxes(0, 2, 3)
	for c := 0; c < 3; c++ {
		assert.Equal(t, float32(0), v.At(c))
	}
}

func TestMeanAxesMatchesManual(t *testing.T) {
	x := Randn(Shape{3, 4, 5})
	mean := x.MeanAxes(0, 2)
	require.Equal(t, Shape{4}, mean.Shape())

	for c := 0; c < 4; c++ {
		var sum float64
		for n := 0; n < 3; n++ {
			for k := 0; k < 5; k++ {
				sum += float64(x.At(n, c, k))
			}
		}
		want := sum / 15
		if math.Abs(want-float64(mean.At(c))) > 1e-5 {
			t.Errorf("channel %d: mean = %v, want %v", c, mean.At(c), want)
		}
	}
}

func TestForEachReducedCoversAllElements(t *testing.T) {
	x := Zeros(Shape{2, 3, 4})
	counts := make([]int, 3)
	x.ForEachReduced([]int{0, 2}, func(i, out int) {
		counts[out]++
	})
	assert.Equal(t, []int{8, 8, 8}, counts)
}

func TestMeanSumScalars(t *testing.T) {
	x, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{4})
	assert.Equal(t, float32(2.5), x.Mean())
	assert.Equal(t, float32(10), x.Sum())
}

func TestReductionAxisOutOfRangePanics(t *testing.T) {
	x := Zeros(Shape{2, 2})
	assert.Panics(t, func() { x.MeanAxes(2) })
}
