package nn

import (
	"fmt"
	"math"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// styleEps regularizes the per-channel std derived from a style feature
// map.
const styleEps = 1e-8

// AdaptiveInstanceNorm2D normalizes each (sample, channel) plane over its
// spatial positions and rescales it with externally supplied style
// parameters. The layer owns no scale/shift parameters of its own.
//
// The style argument is either a 4D feature map, whose per-channel std and
// mean become the scale and bias, or a 2D matrix of shape
// [batch, 2*channels] whose halves are the scale and bias.
type AdaptiveInstanceNorm2D struct {
	name       string
	inputShape tensor.Shape
	epsilon    float32
}

// NewAdaptiveInstanceNorm2D creates an adaptive instance normalization
// layer for NCHW inputs of the given shape. epsilon defaults to 1e-5.
func NewAdaptiveInstanceNorm2D(inputShape tensor.Shape, name string, epsilon float32) (*AdaptiveInstanceNorm2D, error) {
	if name == "" {
		name = "AdaIN"
	}
	if epsilon == 0 {
		epsilon = 1e-5
	}
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("nn: AdaptiveInstanceNorm2D requires NCHW input, got shape %v", inputShape)
	}
	return &AdaptiveInstanceNorm2D{
		name:       name,
		inputShape: inputShape.Clone(),
		epsilon:    epsilon,
	}, nil
}

// Name returns the layer name.
func (a *AdaptiveInstanceNorm2D) Name() string {
	return a.name
}

// OutputShape returns the output shape, identical to the input shape.
func (a *AdaptiveInstanceNorm2D) OutputShape() tensor.Shape {
	return a.inputShape
}

// Parameters returns nil: the scale and bias come from the style input.
func (a *AdaptiveInstanceNorm2D) Parameters() []*Parameter {
	return nil
}

// Forward normalizes x per (sample, channel) over the spatial axes and
// applies the style-derived scale and bias. It fails if the style tensor
// is neither a 4D feature map nor a [batch, 2*channels] matrix.
func (a *AdaptiveInstanceNorm2D) Forward(x, style *tensor.Tensor) (*tensor.Tensor, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != a.inputShape[1] {
		return nil, fmt.Errorf("nn: %s expects input shape %v (any batch), got %v", a.name, a.inputShape, shape)
	}
	n, c := shape[0], shape[1]

	scale, bias, err := a.styleParams(style, n, c)
	if err != nil {
		return nil, err
	}

	axes := []int{2, 3}
	normed := normalizeAxes(x, axes, x.MeanAxes(axes...), x.VarAxes(axes...), a.epsilon, nil, nil)
	return applyPerChannel(normed, scale, bias), nil
}

// styleParams derives the [n, c] scale and bias matrices from the style
// tensor.
func (a *AdaptiveInstanceNorm2D) styleParams(style *tensor.Tensor, n, c int) (scale, bias *tensor.Tensor, err error) {
	sh := style.Shape()
	switch len(sh) {
	case 4:
		if sh[0] != n || sh[1] != c {
			return nil, nil, fmt.Errorf("nn: %s style feature map must have shape [%d, %d, h, w], got %v",
				a.name, n, c, sh)
		}
		variance := style.VarAxes(2, 3)
		scale = variance.Apply(func(v float32) float32 {
			return float32(math.Sqrt(float64(v + styleEps)))
		})
		bias = style.MeanAxes(2, 3)
		return scale, bias, nil
	case 2:
		if sh[0] != n || sh[1] != 2*c {
			return nil, nil, fmt.Errorf("nn: %s style matrix must have shape [%d, %d], got %v",
				a.name, n, 2*c, sh)
		}
		scale = tensor.Zeros(tensor.Shape{n, c})
		bias = tensor.Zeros(tensor.Shape{n, c})
		sd := style.Data()
		for i := 0; i < n; i++ {
			copy(scale.Data()[i*c:(i+1)*c], sd[i*2*c:i*2*c+c])
			copy(bias.Data()[i*c:(i+1)*c], sd[i*2*c+c:(i+1)*2*c])
		}
		return scale, bias, nil
	default:
		return nil, nil, fmt.Errorf("nn: %s style parameters must be a 4D feature map or a 2D (scale, bias) matrix, got rank %d",
			a.name, len(sh))
	}
}

// Describe returns a one-line human readable description.
func (a *AdaptiveInstanceNorm2D) Describe() string {
	return fmt.Sprintf("%s Adaptive Instance Norm: %v -> %v", a.name, a.inputShape, a.OutputShape())
}

// applyPerChannel computes out[n,c,h,w] = x[n,c,h,w]*scale[n,c] + bias[n,c].
func applyPerChannel(x, scale, bias *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	spatial := h * w

	out := tensor.Zeros(shape)
	xd := x.Data()
	od := out.Data()
	sd := scale.Data()
	bd := bias.Data()
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			base := (i*c + j) * spatial
			s, b := sd[i*c+j], bd[i*c+j]
			for k := 0; k < spatial; k++ {
				od[base+k] = xd[base+k]*s + b
			}
		}
	}
	return out
}

// ConditionalInstanceNorm2D derives the post-normalization scale and shift
// from a condition vector through two owned 1x1 convolutions, one for each.
// The convolution parameters are trainable and belong exclusively to this
// layer.
type ConditionalInstanceNorm2D struct {
	name       string
	inputShape tensor.Shape
	noiseDim   int
	epsilon    float32

	ShiftConv *Conv2D
	ScaleConv *Conv2D
}

// NewConditionalInstanceNorm2D creates a conditional instance
// normalization layer for NCHW inputs of the given shape, conditioned on
// vectors of length noiseDim. epsilon defaults to 1e-5; activation is the
// activation of the two predictor convolutions.
func NewConditionalInstanceNorm2D(inputShape tensor.Shape, noiseDim int, name string, epsilon float32, activation Activation) (*ConditionalInstanceNorm2D, error) {
	if name == "" {
		name = "CIN"
	}
	if epsilon == 0 {
		epsilon = 1e-5
	}
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("nn: ConditionalInstanceNorm2D requires NCHW input, got shape %v", inputShape)
	}
	if noiseDim <= 0 {
		return nil, fmt.Errorf("nn: ConditionalInstanceNorm2D needs a positive noise dimensionality, got %d", noiseDim)
	}

	convInput := tensor.Shape{inputShape[0], noiseDim, 1, 1}
	shiftConv, err := NewConv2D(convInput, Conv2DConfig{
		Name:       name + "/shift",
		Filters:    inputShape[1],
		KernelSize: 1,
		Activation: activation,
	})
	if err != nil {
		return nil, err
	}
	scaleConv, err := NewConv2D(convInput, Conv2DConfig{
		Name:       name + "/scale",
		Filters:    inputShape[1],
		KernelSize: 1,
		Activation: activation,
	})
	if err != nil {
		return nil, err
	}

	return &ConditionalInstanceNorm2D{
		name:       name,
		inputShape: inputShape.Clone(),
		noiseDim:   noiseDim,
		epsilon:    epsilon,
		ShiftConv:  shiftConv,
		ScaleConv:  scaleConv,
	}, nil
}

// Name returns the layer name.
func (c *ConditionalInstanceNorm2D) Name() string {
	return c.name
}

// OutputShape returns the output shape, identical to the input shape.
func (c *ConditionalInstanceNorm2D) OutputShape() tensor.Shape {
	return c.inputShape
}

// Parameters returns the predictor convolutions' parameters.
func (c *ConditionalInstanceNorm2D) Parameters() []*Parameter {
	return append(c.ShiftConv.Parameters(), c.ScaleConv.Parameters()...)
}

// Forward normalizes x per (sample, channel) over the spatial axes, then
// rescales with the scale and shift predicted from the condition vector.
// noise must have shape [batch, noise_dim].
func (c *ConditionalInstanceNorm2D) Forward(x, noise *tensor.Tensor) (*tensor.Tensor, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != c.inputShape[1] {
		return nil, fmt.Errorf("nn: %s expects input shape %v (any batch), got %v", c.name, c.inputShape, shape)
	}
	nsh := noise.Shape()
	if len(nsh) != 2 || nsh[0] != shape[0] || nsh[1] != c.noiseDim {
		return nil, fmt.Errorf("nn: %s expects condition shape [%d, %d], got %v", c.name, shape[0], c.noiseDim, nsh)
	}

	n, ch := shape[0], shape[1]
	cond := noise.Reshape(tensor.Shape{n, c.noiseDim, 1, 1})
	shift := c.ShiftConv.Forward(cond, Eval).Reshape(tensor.Shape{n, ch})
	scale := c.ScaleConv.Forward(cond, Eval).Reshape(tensor.Shape{n, ch})

	// (x - mean) / std per (sample, channel) over the spatial axes.
	axes := []int{2, 3}
	normed := normalizeAxes(x, axes, x.MeanAxes(axes...), x.VarAxes(axes...), c.epsilon, nil, nil)
	return applyPerChannel(normed, scale, shift), nil
}

// Describe returns a one-line human readable description.
func (c *ConditionalInstanceNorm2D) Describe() string {
	return fmt.Sprintf("%s Conditional Instance Norm: %v -> %v noise_dim=%d",
		c.name, c.inputShape, c.OutputShape(), c.noiseDim)
}
