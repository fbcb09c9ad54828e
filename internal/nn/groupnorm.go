package nn

import (
	"fmt"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// GroupNormConfig configures a GroupNorm layer.
type GroupNormConfig struct {
	Name       string     // layer name, default "GN"
	Groups     int        // number of channel groups, default 32
	Epsilon    float32    // added to variances, default 1e-4
	Activation Activation // applied last, zero value is Identity
}

func (c *GroupNormConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "GN"
	}
	if c.Groups == 0 {
		c.Groups = 32
	}
	if c.Epsilon == 0 {
		c.Epsilon = 1e-4
	}
}

// GroupNorm implements group normalization (Wu & He, 2018) over NCHW input.
//
// The channel dimension is divided into equally sized groups; mean and
// variance are computed per (sample, group) over the group's channels and
// all spatial positions. Per-channel scale and shift are applied after
// normalization, then the activation.
//
// groups=1 normalizes over all channels and spatial positions (layer
// normalization); groups=channels normalizes each channel over its spatial
// positions only (instance normalization). Both take a dedicated path that
// is numerically equivalent to the general grouped computation.
//
// GroupNorm keeps no running statistics: training and eval forward passes
// are identical.
type GroupNorm struct {
	name       string
	inputShape tensor.Shape
	groups     int
	epsilon    float32
	activation Activation

	Gamma *Parameter // per-channel scale
	Beta  *Parameter // per-channel shift
	Alpha *Parameter // PReLU coefficient, nil unless Activation == PReLU
}

// NewGroupNorm creates a GroupNorm layer for NCHW inputs of the given
// shape. Construction fails if groups does not evenly divide the channel
// count.
func NewGroupNorm(inputShape tensor.Shape, cfg GroupNormConfig) (*GroupNorm, error) {
	cfg.setDefaults()
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("nn: GroupNorm requires NCHW input, got shape %v", inputShape)
	}
	channels := inputShape[1]
	if cfg.Groups < 1 || cfg.Groups > channels {
		return nil, fmt.Errorf("nn: GroupNorm groups must be in [1, %d], got %d", channels, cfg.Groups)
	}
	if channels%cfg.Groups != 0 {
		return nil, fmt.Errorf("nn: GroupNorm groups must divide the channel count: %d %% %d != 0",
			channels, cfg.Groups)
	}

	g := &GroupNorm{
		name:       cfg.Name,
		inputShape: inputShape.Clone(),
		groups:     cfg.Groups,
		epsilon:    cfg.Epsilon,
		activation: cfg.Activation,
		Gamma:      NewParameter(cfg.Name+"/gamma", tensor.Ones(tensor.Shape{channels})),
		Beta:       NewParameter(cfg.Name+"/beta", tensor.Zeros(tensor.Shape{channels})),
	}
	g.Beta.SetRegularizable(false)
	if cfg.Activation == PReLU {
		alpha, err := tensor.FromSlice([]float32{DefaultPReLUAlpha}, tensor.Shape{1})
		if err != nil {
			return nil, err
		}
		g.Alpha = NewParameter(cfg.Name+"/alpha", alpha)
		g.Alpha.SetRegularizable(false)
	}
	return g, nil
}

// NewInstanceNorm creates a GroupNorm with one group per channel,
// normalizing each channel over its spatial positions.
func NewInstanceNorm(inputShape tensor.Shape, cfg GroupNormConfig) (*GroupNorm, error) {
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("nn: InstanceNorm requires NCHW input, got shape %v", inputShape)
	}
	if cfg.Name == "" {
		cfg.Name = "IN"
	}
	cfg.Groups = inputShape[1]
	return NewGroupNorm(inputShape, cfg)
}

// NewLayerNorm creates a GroupNorm with a single group, normalizing each
// sample over all channels and spatial positions.
func NewLayerNorm(inputShape tensor.Shape, cfg GroupNormConfig) (*GroupNorm, error) {
	if cfg.Name == "" {
		cfg.Name = "LN"
	}
	cfg.Groups = 1
	return NewGroupNorm(inputShape, cfg)
}

// Name returns the layer name.
func (g *GroupNorm) Name() string {
	return g.name
}

// Groups returns the number of channel groups.
func (g *GroupNorm) Groups() int {
	return g.groups
}

// InputShape returns the construction-time input shape.
func (g *GroupNorm) InputShape() tensor.Shape {
	return g.inputShape
}

// OutputShape returns the output shape, identical to the input shape.
func (g *GroupNorm) OutputShape() tensor.Shape {
	return g.inputShape
}

// Parameters returns gamma, beta and the optional PReLU coefficient.
func (g *GroupNorm) Parameters() []*Parameter {
	params := []*Parameter{g.Gamma, g.Beta}
	if g.Alpha != nil {
		params = append(params, g.Alpha)
	}
	return params
}

// Forward normalizes the input. GroupNorm has no running statistics, so
// the mode argument does not change the computation.
func (g *GroupNorm) Forward(x *tensor.Tensor, _ Mode) *tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != g.inputShape[1] || shape[2] != g.inputShape[2] || shape[3] != g.inputShape[3] {
		panic(fmt.Sprintf("nn: %s expects input shape %v (any batch), got %v", g.name, g.inputShape, shape))
	}

	var normed *tensor.Tensor
	switch {
	case g.groups == 1:
		// Layer-norm fast path: statistics per sample over (C, H, W).
		axes := []int{1, 2, 3}
		normed = normalizeAxes(x, axes, x.MeanAxes(axes...), x.VarAxes(axes...), g.epsilon, nil, nil)
	case g.groups == shape[1]:
		// Instance-norm fast path: statistics per (sample, channel) over (H, W).
		axes := []int{2, 3}
		normed = normalizeAxes(x, axes, x.MeanAxes(axes...), x.VarAxes(axes...), g.epsilon, nil, nil)
	default:
		grouped := x.Reshape(tensor.Shape{shape[0], g.groups, shape[1] / g.groups, shape[2], shape[3]})
		axes := []int{2, 3, 4}
		normed = normalizeAxes(grouped, axes, grouped.MeanAxes(axes...), grouped.VarAxes(axes...), g.epsilon, nil, nil)
		normed = normed.Reshape(shape)
	}

	out := g.affine(normed)
	return g.activation.Apply(out, g.alphaValue())
}

// affine applies the per-channel scale and shift to NCHW data.
func (g *GroupNorm) affine(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	spatial := h * w
	gamma := g.Gamma.Tensor().Data()
	beta := g.Beta.Tensor().Data()

	out := tensor.Zeros(shape)
	xd := x.Data()
	od := out.Data()
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			base := (i*c + j) * spatial
			gj, bj := gamma[j], beta[j]
			for k := 0; k < spatial; k++ {
				od[base+k] = gj*xd[base+k] + bj
			}
		}
	}
	return out
}

func (g *GroupNorm) alphaValue() float32 {
	if g.Alpha != nil {
		return g.Alpha.Tensor().Data()[0]
	}
	return DefaultPReLUAlpha
}

// Reset restores gamma to ones, beta to zeros and the PReLU coefficient to
// its default.
func (g *GroupNorm) Reset() {
	g.Gamma.Tensor().Fill(1)
	g.Beta.Tensor().Fill(0)
	if g.Alpha != nil {
		g.Alpha.Tensor().Fill(DefaultPReLUAlpha)
	}
}

// Describe returns a one-line human readable description.
func (g *GroupNorm) Describe() string {
	kind := "Group Norm"
	switch {
	case g.groups == 1:
		kind = "Layer Norm"
	case g.groups == g.inputShape[1]:
		kind = "Instance Norm"
	}
	return fmt.Sprintf("%s %s: %v -> %v groups=%d activation=%s",
		g.name, kind, g.inputShape, g.OutputShape(), g.groups, g.activation)
}
