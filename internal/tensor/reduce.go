package tensor

import "fmt"

// reductionMap returns, for each input axis, the stride of that axis in the
// reduced output (0 for reduced axes), along with the reduced shape.
func (t *Tensor) reductionMap(axes []int) (Shape, []int) {
	for _, a := range axes {
		if a < 0 || a >= len(t.shape) {
			panic(fmt.Sprintf("tensor: reduction axis %d out of range for shape %v", a, t.shape))
		}
	}
	outShape := t.shape.Reduce(axes)
	outStrides := outShape.Strides()
	drop := make(map[int]bool, len(axes))
	for _, a := range axes {
		drop[a] = true
	}
	mapStride := make([]int, len(t.shape))
	j := 0
	for i := range t.shape {
		if drop[i] {
			mapStride[i] = 0
		} else {
			mapStride[i] = outStrides[j]
			j++
		}
	}
	return outShape, mapStride
}

// forEachReduced calls visit(flatIndex, outIndex) for every element, where
// outIndex addresses the reduced tensor.
func (t *Tensor) forEachReduced(mapStride []int, visit func(i, out int)) {
	coords := make([]int, len(t.shape))
	for i := range t.data {
		out := 0
		for a := range coords {
			out += coords[a] * mapStride[a]
		}
		visit(i, out)
		for a := len(coords) - 1; a >= 0; a-- {
			coords[a]++
			if coords[a] < t.shape[a] {
				break
			}
			coords[a] = 0
		}
	}
}

// ForEachReduced calls visit(i, out) for every element, where i is the flat
// index into the tensor and out is the flat index of the element's statistic
// in the tensor reduced over the given axes. This is the indexing primitive
// normalization layers build on.
func (t *Tensor) ForEachReduced(axes []int, visit func(i, out int)) {
	_, mapStride := t.reductionMap(axes)
	t.forEachReduced(mapStride, visit)
}

// MeanAxes computes the mean over the given axes. The result has the
// complementary shape, with surviving dimensions in their original order.
func (t *Tensor) MeanAxes(axes ...int) *Tensor {
	outShape, mapStride := t.reductionMap(axes)
	out := newTensor(outShape)
	t.forEachReduced(mapStride, func(i, o int) {
		out.data[o] += t.data[i]
	})
	n := float32(len(t.data) / outShape.NumElements())
	for i := range out.data {
		out.data[i] /= n
	}
	return out
}

// VarAxes computes the population variance over the given axes, matching
// MeanAxes in output shape. Uses a two-pass formula for stability.
func (t *Tensor) VarAxes(axes ...int) *Tensor {
	mean := t.MeanAxes(axes...)
	outShape, mapStride := t.reductionMap(axes)
	out := newTensor(outShape)
	t.forEachReduced(mapStride, func(i, o int) {
		d := t.data[i] - mean.data[o]
		out.data[o] += d * d
	})
	n := float32(len(t.data) / outShape.NumElements())
	for i := range out.data {
		out.data[i] /= n
	}
	return out
}

// Mean returns the mean of all elements.
func (t *Tensor) Mean() float32 {
	var sum float64
	for _, v := range t.data {
		sum += float64(v)
	}
	return float32(sum / float64(len(t.data)))
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float32 {
	var sum float64
	for _, v := range t.data {
		sum += float64(v)
	}
	return float32(sum)
}
