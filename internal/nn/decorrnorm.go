package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// DecorrBatchNormConfig configures a DecorrBatchNorm layer.
type DecorrBatchNormConfig struct {
	Name                 string     // layer name, default "DBN"
	Epsilon              float32    // regularizes eigenvalue sqrt and variances, default 1e-4
	RunningAverageFactor float32    // exponential update factor, default 0.1
	Activation           Activation // applied last, zero value is Identity
	NoScale              bool       // freeze gamma at 1 and exclude it from weight decay
}

// DecorrBatchNorm implements decorrelated batch normalization
// (Huang et al., 2018) over NCHW input.
//
// Training forward flattens the input to (channels, batch*spatial),
// computes the channel-channel covariance matrix, eigendecomposes it and
// whitens the centered activations with the inverse matrix square root
// V diag(1/sqrt(lambda + eps)) V^T. The whitened activations then go
// through standard per-channel batch normalization.
//
// For inference the layer maintains running channel means and a running
// whitening matrix, both blended with the same exponential factor as the
// post-whitening running statistics. Eval mode centers with the running
// means, whitens with the running matrix and normalizes with the frozen
// running statistics.
type DecorrBatchNorm struct {
	name       string
	inputShape tensor.Shape
	epsilon    float32
	activation Activation
	noScale    bool

	Gamma *Parameter
	Beta  *Parameter
	Alpha *Parameter
	Stats *RunningStats // post-whitening per-channel statistics

	ChannelMean *Parameter // running pre-whitening channel means [C]
	Whiten      *Parameter // running whitening matrix [C, C], starts as identity
}

// NewDecorrBatchNorm creates a DecorrBatchNorm layer for NCHW inputs of
// the given shape.
func NewDecorrBatchNorm(inputShape tensor.Shape, cfg DecorrBatchNormConfig) (*DecorrBatchNorm, error) {
	if cfg.Name == "" {
		cfg.Name = "DBN"
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-4
	}
	if cfg.RunningAverageFactor == 0 {
		cfg.RunningAverageFactor = 0.1
	}
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("nn: DecorrBatchNorm requires NCHW input, got shape %v", inputShape)
	}
	if cfg.RunningAverageFactor <= 0 || cfg.RunningAverageFactor >= 1 {
		return nil, fmt.Errorf("nn: DecorrBatchNorm running average factor must be in (0, 1), got %v",
			cfg.RunningAverageFactor)
	}

	channels := inputShape[1]
	statShape := tensor.Shape{channels}
	d := &DecorrBatchNorm{
		name:        cfg.Name,
		inputShape:  inputShape.Clone(),
		epsilon:     cfg.Epsilon,
		activation:  cfg.Activation,
		noScale:     cfg.NoScale,
		Gamma:       NewParameter(cfg.Name+"/gamma", tensor.Ones(statShape)),
		Beta:        NewParameter(cfg.Name+"/beta", tensor.Zeros(statShape)),
		Stats:       NewRunningStats(cfg.Name, statShape, cfg.RunningAverageFactor),
		ChannelMean: NewBuffer(cfg.Name+"/channel_mean", tensor.Zeros(statShape)),
		Whiten:      NewBuffer(cfg.Name+"/whiten", tensor.Eye(channels)),
	}
	if cfg.NoScale {
		d.Gamma.SetTrainable(false)
		d.Gamma.SetRegularizable(false)
	}
	d.Beta.SetRegularizable(false)
	if cfg.Activation == PReLU {
		alpha, err := tensor.FromSlice([]float32{DefaultPReLUAlpha}, tensor.Shape{1})
		if err != nil {
			return nil, err
		}
		d.Alpha = NewParameter(cfg.Name+"/alpha", alpha)
		d.Alpha.SetRegularizable(false)
	}
	return d, nil
}

// Name returns the layer name.
func (d *DecorrBatchNorm) Name() string {
	return d.name
}

// InputShape returns the construction-time input shape.
func (d *DecorrBatchNorm) InputShape() tensor.Shape {
	return d.inputShape
}

// OutputShape returns the output shape, identical to the input shape.
func (d *DecorrBatchNorm) OutputShape() tensor.Shape {
	return d.inputShape
}

// Parameters returns the running buffers first, then gamma, beta and the
// optional PReLU coefficient.
func (d *DecorrBatchNorm) Parameters() []*Parameter {
	params := []*Parameter{d.Stats.Mean, d.Stats.Var, d.ChannelMean, d.Whiten, d.Gamma, d.Beta}
	if d.Alpha != nil {
		params = append(params, d.Alpha)
	}
	return params
}

// Forward whitens and normalizes the input.
func (d *DecorrBatchNorm) Forward(x *tensor.Tensor, mode Mode) *tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != d.inputShape[1] {
		panic(fmt.Sprintf("nn: %s expects input shape %v (any batch), got %v", d.name, d.inputShape, shape))
	}

	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	samples := n * h * w

	// Flatten to (channels, batch*spatial) in float64 for the linear algebra.
	flat := mat.NewDense(c, samples, nil)
	xd := x.Data()
	spatial := h * w
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			base := (i*c + j) * spatial
			for k := 0; k < spatial; k++ {
				flat.Set(j, i*spatial+k, float64(xd[base+k]))
			}
		}
	}

	var whitened *mat.Dense
	if mode == Train {
		whitened = d.trainWhiten(flat, c, samples)
	} else {
		whitened = d.evalWhiten(flat, c, samples)
	}

	normed := d.normalizeChannels(whitened, c, samples, mode)

	// Back to NCHW.
	out := tensor.Zeros(shape)
	od := out.Data()
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			base := (i*c + j) * spatial
			for k := 0; k < spatial; k++ {
				od[base+k] = float32(normed.At(j, i*spatial+k))
			}
		}
	}
	return d.activation.Apply(out, d.alphaValue())
}

// trainWhiten centers flat, whitens with the inverse square root of the
// batch covariance and folds the batch transform into the running buffers.
func (d *DecorrBatchNorm) trainWhiten(flat *mat.Dense, c, samples int) *mat.Dense {
	mu := make([]float64, c)
	for j := 0; j < c; j++ {
		row := flat.RawRowView(j)
		var sum float64
		for _, v := range row {
			sum += v
		}
		mu[j] = sum / float64(samples)
		for k := range row {
			row[k] -= mu[j]
		}
	}

	// Covariance of the centered channels.
	var cov mat.Dense
	cov.Mul(flat, flat.T())
	cov.Scale(1/float64(samples), &cov)

	sym := mat.NewSymDense(c, nil)
	for i := 0; i < c; i++ {
		for j := i; j < c; j++ {
			sym.SetSym(i, j, (cov.At(i, j)+cov.At(j, i))/2)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		panic(fmt.Sprintf("nn: %s covariance eigendecomposition failed", d.name))
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Inverse matrix square root: V diag(1/sqrt(lambda + eps)) V^T.
	// Eigenvalues near zero are regularized by epsilon.
	scaled := mat.NewDense(c, c, nil)
	for j := 0; j < c; j++ {
		inv := 1 / sqrt64(vals[j]+float64(d.epsilon))
		for i := 0; i < c; i++ {
			scaled.Set(i, j, vecs.At(i, j)*inv)
		}
	}
	var whitenMat mat.Dense
	whitenMat.Mul(scaled, vecs.T())

	var out mat.Dense
	out.Mul(&whitenMat, flat)

	// Fold batch values into the running buffers.
	muT := tensor.Zeros(tensor.Shape{c})
	for j := 0; j < c; j++ {
		muT.Data()[j] = float32(mu[j])
	}
	blend(d.ChannelMean.Tensor(), muT, d.Stats.Factor, 1)

	wT := tensor.Zeros(tensor.Shape{c, c})
	wd := wT.Data()
	for i := 0; i < c; i++ {
		for j := 0; j < c; j++ {
			wd[i*c+j] = float32(whitenMat.At(i, j))
		}
	}
	blend(d.Whiten.Tensor(), wT, d.Stats.Factor, 1)

	return &out
}

// evalWhiten centers with the running channel means and whitens with the
// running whitening matrix, touching no state.
func (d *DecorrBatchNorm) evalWhiten(flat *mat.Dense, c, samples int) *mat.Dense {
	mu := d.ChannelMean.Tensor().Data()
	for j := 0; j < c; j++ {
		row := flat.RawRowView(j)
		for k := range row {
			row[k] -= float64(mu[j])
		}
	}

	wd := d.Whiten.Tensor().Data()
	whitenMat := mat.NewDense(c, c, nil)
	for i := 0; i < c; i++ {
		for j := 0; j < c; j++ {
			whitenMat.Set(i, j, float64(wd[i*c+j]))
		}
	}

	var out mat.Dense
	out.Mul(whitenMat, flat)
	return &out
}

// normalizeChannels applies per-channel batch normalization to the
// whitened (channels, samples) matrix.
func (d *DecorrBatchNorm) normalizeChannels(m *mat.Dense, c, samples int, mode Mode) *mat.Dense {
	gamma := d.Gamma.Tensor().Data()
	beta := d.Beta.Tensor().Data()

	out := mat.NewDense(c, samples, nil)
	if mode == Train {
		batchMean := tensor.Zeros(tensor.Shape{c})
		batchVar := tensor.Zeros(tensor.Shape{c})
		bm := batchMean.Data()
		bv := batchVar.Data()
		for j := 0; j < c; j++ {
			row := m.RawRowView(j)
			var sum float64
			for _, v := range row {
				sum += v
			}
			mean := sum / float64(samples)
			var sq float64
			for _, v := range row {
				dlt := v - mean
				sq += dlt * dlt
			}
			variance := sq / float64(samples)
			bm[j] = float32(mean)
			bv[j] = float32(variance)

			inv := 1 / sqrt64(variance+float64(d.epsilon))
			for k, v := range row {
				out.Set(j, k, (v-mean)*inv*float64(gamma[j])+float64(beta[j]))
			}
		}
		d.Stats.Update(batchMean, batchVar)
	} else {
		rm := d.Stats.Mean.Tensor().Data()
		rv := d.Stats.Var.Tensor().Data()
		for j := 0; j < c; j++ {
			row := m.RawRowView(j)
			inv := 1 / sqrt64(float64(rv[j])+float64(d.epsilon))
			for k, v := range row {
				out.Set(j, k, (v-float64(rm[j]))*inv*float64(gamma[j])+float64(beta[j]))
			}
		}
	}
	return out
}

func (d *DecorrBatchNorm) alphaValue() float32 {
	if d.Alpha != nil {
		return d.Alpha.Tensor().Data()[0]
	}
	return DefaultPReLUAlpha
}

// Reset restores gamma to ones, beta to zeros and the PReLU coefficient to
// its default. Running statistics and the running whitening transform are
// left untouched.
func (d *DecorrBatchNorm) Reset() {
	d.Gamma.Tensor().Fill(1)
	d.Beta.Tensor().Fill(0)
	if d.Alpha != nil {
		d.Alpha.Tensor().Fill(DefaultPReLUAlpha)
	}
}

// Describe returns a one-line human readable description.
func (d *DecorrBatchNorm) Describe() string {
	return fmt.Sprintf("%s Decorrelated Batch Norm: %v -> %v factor=%.4f activation=%s",
		d.name, d.inputShape, d.OutputShape(), d.Stats.Factor, d.activation)
}

func sqrt64(v float64) float64 {
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}
