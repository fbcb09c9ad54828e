package nn

import (
	"github.com/manifold-ml/manifold/internal/tensor"
)

// RunningStats tracks the exponentially averaged mean and variance a
// normalization layer uses for inference.
//
// Both buffers start at zero, persist for the lifetime of the layer, and
// are updated only by training-mode forward passes:
//
//	running = running*(1-factor) + batch*factor
//
// Eval-mode passes read the buffers and never mutate them.
type RunningStats struct {
	Mean   *Parameter // non-trainable buffer, shape of the layer statistics
	Var    *Parameter // non-trainable buffer, same shape
	Factor float32    // running average factor in (0, 1)
}

// NewRunningStats creates zero-initialized running statistics.
func NewRunningStats(name string, shape tensor.Shape, factor float32) *RunningStats {
	return &RunningStats{
		Mean:   NewBuffer(name+"/running_mean", tensor.Zeros(shape)),
		Var:    NewBuffer(name+"/running_var", tensor.Zeros(shape)),
		Factor: factor,
	}
}

// Update blends the batch statistics into the running buffers.
func (r *RunningStats) Update(batchMean, batchVar *tensor.Tensor) {
	r.UpdateCorrected(batchMean, batchVar, 1)
}

// UpdateCorrected blends the batch statistics into the running buffers,
// scaling the variance contribution by correction (batch renormalization
// uses the unbiased m/(m-1) factor here).
func (r *RunningStats) UpdateCorrected(batchMean, batchVar *tensor.Tensor, correction float32) {
	blend(r.Mean.Tensor(), batchMean, r.Factor, 1)
	blend(r.Var.Tensor(), batchVar, r.Factor, correction)
}

// blend performs running = running*(1-factor) + batch*factor*scale in place.
func blend(running, batch *tensor.Tensor, factor, scale float32) {
	rd := running.Data()
	bd := batch.Data()
	for i := range rd {
		rd[i] = rd[i]*(1-factor) + bd[i]*factor*scale
	}
}
