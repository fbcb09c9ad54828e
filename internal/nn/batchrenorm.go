package nn

import (
	"fmt"
	"math"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// renormEps guards the divisions inside the renormalization correction
// terms, independent of the layer epsilon.
const renormEps = 1e-10

// BatchRenormConfig configures a BatchRenorm layer.
type BatchRenormConfig struct {
	BatchNormConfig
	RMax float32 // clipping bound for the std-ratio correction, default 1
	DMax float32 // clipping bound for the mean-shift correction, default 0
}

// BatchRenorm implements batch renormalization (Ioffe, 2017).
//
// Training forward computes the correction terms
//
//	r = clip(std_batch / sqrt(running_var + eps'), -r_max, r_max)
//	d = clip((mean_batch - running_mean) / sqrt(running_var + eps'), -d_max, d_max)
//
// and normalizes with the adjusted statistics mean_batch - d*std_batch/r and
// (std_batch/r)^2, while the running statistics are still updated from the
// raw batch statistics with the unbiased variance correction m/(m-1), where
// m is the number of elements contributing to each statistic.
//
// r_max and d_max are plain scalars: never trained, fixed unless
// explicitly overridden.
//
// Eval mode behaves exactly like BatchNorm eval mode.
type BatchRenorm struct {
	*BatchNorm
	RMax float32
	DMax float32
}

// NewBatchRenorm creates a BatchRenorm layer.
func NewBatchRenorm(inputShape tensor.Shape, cfg BatchRenormConfig) (*BatchRenorm, error) {
	if cfg.Name == "" {
		cfg.Name = "BRN"
	}
	if cfg.RMax == 0 {
		cfg.RMax = 1
	}
	bn, err := NewBatchNorm(inputShape, cfg.BatchNormConfig)
	if err != nil {
		return nil, err
	}
	return &BatchRenorm{
		BatchNorm: bn,
		RMax:      cfg.RMax,
		DMax:      cfg.DMax,
	}, nil
}

// Forward normalizes the input with renormalization corrections in Train
// mode; Eval mode falls back to the frozen running statistics.
func (b *BatchRenorm) Forward(x *tensor.Tensor, mode Mode) *tensor.Tensor {
	if mode == Eval {
		return b.BatchNorm.Forward(x, Eval)
	}
	b.checkInput(x)

	batchMean := x.MeanAxes(b.axes...)
	batchStd := x.VarAxes(b.axes...).AddScalar(renormEps).Sqrt()

	runMean := b.Stats.Mean.Tensor().Data()
	runVar := b.Stats.Var.Tensor().Data()
	bm := batchMean.Data()
	bs := batchStd.Data()

	adjMean := tensor.Zeros(batchMean.Shape())
	adjVar := tensor.Zeros(batchMean.Shape())
	am := adjMean.Data()
	av := adjVar.Data()
	for i := range bm {
		runStd := float32(math.Sqrt(float64(runVar[i] + renormEps)))
		r := clipScalar(bs[i]/runStd, -b.RMax, b.RMax)
		d := clipScalar((bm[i]-runMean[i])/runStd, -b.DMax, b.DMax)
		am[i] = bm[i] - d*bs[i]/(r+renormEps)
		stdAdj := bs[i] / (r + renormEps)
		av[i] = stdAdj * stdAdj
	}

	out := normalizeAxes(x, b.axes, adjMean, adjVar, b.epsilon, b.Gamma.Tensor(), b.Beta.Tensor())

	// The running update uses the raw batch statistics with the unbiased
	// variance correction, not the adjusted values.
	m := float32(x.NumElements()) / float32(batchMean.NumElements())
	batchVar := batchStd.Mul(batchStd)
	b.Stats.UpdateCorrected(batchMean, batchVar, m/(m-1))

	return b.activation.Apply(out, b.alphaValue())
}

func clipScalar(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Describe returns a one-line human readable description.
func (b *BatchRenorm) Describe() string {
	return fmt.Sprintf("%s Batch Renorm: %v -> %v factor=%.4f r_max=%.2f d_max=%.2f",
		b.name, b.inputShape, b.OutputShape(), b.Stats.Factor, b.RMax, b.DMax)
}
