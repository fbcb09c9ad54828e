package nn

import (
	"fmt"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// NormAxes selects the dimensions batch statistics are computed over.
type NormAxes int

const (
	// SpatialAxes reduces over the batch axis and all axes after the
	// channel axis, giving one statistic per channel.
	SpatialAxes NormAxes = iota

	// PerActivationAxes reduces over the batch axis only, giving one
	// statistic per feature position.
	PerActivationAxes
)

// BatchNormConfig configures a BatchNorm layer.
type BatchNormConfig struct {
	Name                 string     // layer name, default "BN"
	Epsilon              float32    // added to variances, default 1e-4
	RunningAverageFactor float32    // exponential update factor, default 0.1
	Axes                 NormAxes   // reduction mode, default SpatialAxes
	Activation           Activation // applied last, zero value is Identity
	NoScale              bool       // freeze gamma at 1 and exclude it from weight decay
}

func (c *BatchNormConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "BN"
	}
	if c.Epsilon == 0 {
		c.Epsilon = 1e-4
	}
	if c.RunningAverageFactor == 0 {
		c.RunningAverageFactor = 0.1
	}
}

// BatchNorm normalizes activations with batch statistics during training
// and with running statistics during inference.
//
// Training mode:
//
//	y = (x - mean_batch) / sqrt(var_batch + eps) * gamma + beta
//
// with the running statistics updated afterwards as
// running = running*(1-factor) + batch*factor. The output always depends on
// the batch statistics, never on the updated running values.
//
// Eval mode freezes the running statistics:
//
//	y = (x - running_mean) / sqrt(running_var + eps) * gamma + beta
//
// The configured activation is applied last.
type BatchNorm struct {
	name       string
	inputShape tensor.Shape
	epsilon    float32
	axes       []int
	statShape  tensor.Shape
	activation Activation
	noScale    bool

	Gamma *Parameter
	Beta  *Parameter
	Alpha *Parameter // PReLU coefficient, nil unless Activation == PReLU
	Stats *RunningStats
}

// NewBatchNorm creates a BatchNorm layer for inputs of the given shape.
// The leading dimension is the batch axis; its value is ignored when
// validating forward inputs.
func NewBatchNorm(inputShape tensor.Shape, cfg BatchNormConfig) (*BatchNorm, error) {
	cfg.setDefaults()
	if len(inputShape) < 2 {
		return nil, fmt.Errorf("nn: BatchNorm requires at least 2 dimensions, got shape %v", inputShape)
	}
	if cfg.RunningAverageFactor <= 0 || cfg.RunningAverageFactor >= 1 {
		return nil, fmt.Errorf("nn: BatchNorm running average factor must be in (0, 1), got %v", cfg.RunningAverageFactor)
	}

	var axes []int
	var statShape tensor.Shape
	if cfg.Axes == SpatialAxes {
		axes = spatialAxes(len(inputShape))
		statShape = tensor.Shape{inputShape[1]}
	} else {
		axes = []int{0}
		statShape = inputShape[1:].Clone()
	}

	b := &BatchNorm{
		name:       cfg.Name,
		inputShape: inputShape.Clone(),
		epsilon:    cfg.Epsilon,
		axes:       axes,
		statShape:  statShape,
		activation: cfg.Activation,
		noScale:    cfg.NoScale,
		Gamma:      NewParameter(cfg.Name+"/gamma", tensor.Ones(statShape)),
		Beta:       NewParameter(cfg.Name+"/beta", tensor.Zeros(statShape)),
		Stats:      NewRunningStats(cfg.Name, statShape, cfg.RunningAverageFactor),
	}
	if cfg.NoScale {
		b.Gamma.SetTrainable(false)
		b.Gamma.SetRegularizable(false)
	}
	b.Beta.SetRegularizable(false)
	if cfg.Activation == PReLU {
		alpha, err := tensor.FromSlice([]float32{DefaultPReLUAlpha}, tensor.Shape{1})
		if err != nil {
			return nil, err
		}
		b.Alpha = NewParameter(cfg.Name+"/alpha", alpha)
		b.Alpha.SetRegularizable(false)
	}
	return b, nil
}

// Name returns the layer name.
func (b *BatchNorm) Name() string {
	return b.name
}

// InputShape returns the construction-time input shape.
func (b *BatchNorm) InputShape() tensor.Shape {
	return b.inputShape
}

// OutputShape returns the output shape, identical to the input shape.
func (b *BatchNorm) OutputShape() tensor.Shape {
	return b.inputShape
}

// Parameters returns running statistics first, then gamma, beta and the
// optional PReLU coefficient.
func (b *BatchNorm) Parameters() []*Parameter {
	params := []*Parameter{b.Stats.Mean, b.Stats.Var, b.Gamma, b.Beta}
	if b.Alpha != nil {
		params = append(params, b.Alpha)
	}
	return params
}

// Forward normalizes the input. In Train mode batch statistics are used
// and the running statistics are updated as a side effect; in Eval mode
// the frozen running statistics are used.
func (b *BatchNorm) Forward(x *tensor.Tensor, mode Mode) *tensor.Tensor {
	b.checkInput(x)

	var out *tensor.Tensor
	if mode == Train {
		batchMean := x.MeanAxes(b.axes...)
		batchVar := x.VarAxes(b.axes...)
		out = normalizeAxes(x, b.axes, batchMean, batchVar, b.epsilon, b.Gamma.Tensor(), b.Beta.Tensor())
		// Running statistics move only after the output is computed.
		b.Stats.Update(batchMean, batchVar)
	} else {
		out = normalizeAxes(x, b.axes, b.Stats.Mean.Tensor(), b.Stats.Var.Tensor(), b.epsilon,
			b.Gamma.Tensor(), b.Beta.Tensor())
	}
	return b.activation.Apply(out, b.alphaValue())
}

func (b *BatchNorm) alphaValue() float32 {
	if b.Alpha != nil {
		return b.Alpha.Tensor().Data()[0]
	}
	return DefaultPReLUAlpha
}

func (b *BatchNorm) checkInput(x *tensor.Tensor) {
	shape := x.Shape()
	if len(shape) != len(b.inputShape) {
		panic(fmt.Sprintf("nn: %s expects rank %d input, got shape %v", b.name, len(b.inputShape), shape))
	}
	for i := 1; i < len(shape); i++ {
		if shape[i] != b.inputShape[i] {
			panic(fmt.Sprintf("nn: %s expects input shape %v (any batch), got %v", b.name, b.inputShape, shape))
		}
	}
}

// Reset restores gamma to ones, beta to zeros and the PReLU coefficient to
// its default. Running statistics are not reset.
func (b *BatchNorm) Reset() {
	b.Gamma.Tensor().Fill(1)
	b.Beta.Tensor().Fill(0)
	if b.Alpha != nil {
		b.Alpha.Tensor().Fill(DefaultPReLUAlpha)
	}
}

// Describe returns a one-line human readable description.
func (b *BatchNorm) Describe() string {
	return fmt.Sprintf("%s Batch Norm: %v -> %v factor=%.4f activation=%s",
		b.name, b.inputShape, b.OutputShape(), b.Stats.Factor, b.activation)
}
