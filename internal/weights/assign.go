package weights

import (
	"log/slog"
	"math"
	"sort"

	"github.com/manifold-ml/manifold/internal/nn"
	"github.com/manifold-ml/manifold/internal/tensor"
)

// weighted is satisfied by layers with a weight/bias parameter pair.
type weighted interface {
	WeightParam() *nn.Parameter
	BiasParam() *nn.Parameter
}

// kerneled is satisfied by layers that expose a convolution kernel shape.
type kerneled interface {
	KernelShape() tensor.Shape
}

// Assign copies pretrained tensors into the ordered layer sequence.
//
// Names are sorted lexicographically and consumed two at a time, weight
// then bias, one pair per layer carrying a weight/bias slot. Weights
// stored in [kh, kw, in, out] layout are transposed into the native
// [out, in, kh, kw] layout, and flattened fully-connected weights are
// reshaped into convolution kernels when the target layer exposes a
// kernel shape. Assign never fails: each incompatible pair is logged and
// the layer keeps its random initialization.
func Assign(tensors map[string]*tensor.Tensor, layers []nn.Module) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	j := 0
	for i, layer := range layers {
		wl, ok := layer.(weighted)
		if !ok {
			continue
		}
		if j >= len(names) {
			break
		}
		weightName := names[j]
		j++
		var bias *tensor.Tensor
		biasName := ""
		if j < len(names) {
			biasName = names[j]
			bias = tensors[biasName]
			j++
		}

		assignWeight(i, wl, weightName, tensors[weightName])
		if bias != nil && wl.BiasParam() != nil {
			assignBias(i, wl, biasName, bias)
		}
	}
	slog.Info("weights loaded")
}

func assignWeight(i int, layer weighted, name string, w *tensor.Tensor) {
	target := layer.WeightParam().Tensor()
	converted := convertWeight(w, layer)
	if converted == nil || !converted.Shape().Equal(target.Shape()) {
		slog.Warn("no compatible parameters found, random initialization is used",
			"layer", i, "name", name, "shape", w.Shape())
		return
	}
	target.CopyFrom(converted)
	slog.Info("assigned layer weight", "layer", i, "name", name, "shape", converted.Shape())
}

func assignBias(i int, layer weighted, name string, b *tensor.Tensor) {
	target := layer.BiasParam().Tensor()
	if b.NumElements() != target.NumElements() {
		slog.Warn("no compatible parameters found, random initialization is used",
			"layer", i, "name", name, "shape", b.Shape())
		return
	}
	copy(target.Data(), b.Data())
	slog.Info("assigned layer bias", "layer", i, "name", name, "shape", b.Shape())
}

// convertWeight reconciles a stored weight with the target layer's
// layout. It returns nil when no conversion applies.
func convertWeight(w *tensor.Tensor, layer weighted) *tensor.Tensor {
	target := layer.WeightParam().Tensor().Shape()
	switch len(w.Shape()) {
	case 4:
		if w.Shape().Equal(target) {
			return w
		}
		return transposeKernel(w)
	case 2:
		kl, ok := layer.(kerneled)
		if !ok {
			return nil
		}
		return fullyConnectedToKernel(w, kl.KernelShape())
	default:
		if w.Shape().Equal(target) {
			return w
		}
		return nil
	}
}

// transposeKernel converts a [kh, kw, in, out] kernel into
// [out, in, kh, kw].
func transposeKernel(w *tensor.Tensor) *tensor.Tensor {
	s := w.Shape()
	kh, kw, in, out := s[0], s[1], s[2], s[3]
	t := tensor.Zeros(tensor.Shape{out, in, kh, kw})
	for a := 0; a < kh; a++ {
		for b := 0; b < kw; b++ {
			for c := 0; c < in; c++ {
				for d := 0; d < out; d++ {
					t.Set(w.At(a, b, c, d), d, c, a, b)
				}
			}
		}
	}
	return t
}

// fullyConnectedToKernel reshapes a flattened [in*k*k, out] weight into
// the [out, in, k, k] kernel shape when the dimensions allow it.
func fullyConnectedToKernel(w *tensor.Tensor, kernel tensor.Shape) *tensor.Tensor {
	in := kernel[1]
	rows := w.Shape()[0]
	if in == 0 || rows%in != 0 {
		return nil
	}
	k := math.Sqrt(float64(rows / in))
	if k != math.Trunc(k) || int(k) != kernel[2] {
		return nil
	}
	size := int(k)
	return transposeKernel(w.Reshape(tensor.Shape{size, size, in, w.Shape()[1]}))
}
