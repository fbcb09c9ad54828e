package nn

import (
	"fmt"

	"github.com/manifold-ml/manifold/internal/parallel"
	"github.com/manifold-ml/manifold/internal/tensor"
)

// Conv2DConfig configures a Conv2D layer.
type Conv2DConfig struct {
	Name       string     // layer name, default "Conv"
	Filters    int        // number of output channels
	KernelSize int        // square kernel side, default 1
	Stride     int        // default 1
	Pad        int        // symmetric zero padding, default 0
	NoBias     bool       // omit the bias vector
	Activation Activation // applied last, zero value is Identity
}

// Conv2D is a plain NCHW convolution.
//
// The conditional instance normalization variant owns two 1x1
// convolutions as its scale/shift predictors, and the weight-assignment
// collaborator relies on KernelShape when converting flattened fully
// connected weights.
type Conv2D struct {
	name       string
	inputShape tensor.Shape
	filters    int
	kernel     int
	stride     int
	pad        int
	activation Activation

	Weight *Parameter // [filters, in_channels, kernel, kernel]
	Bias   *Parameter // [filters], nil with NoBias
	Alpha  *Parameter // PReLU coefficient, nil unless Activation == PReLU
}

// NewConv2D creates a Conv2D layer for NCHW inputs of the given shape.
func NewConv2D(inputShape tensor.Shape, cfg Conv2DConfig) (*Conv2D, error) {
	if cfg.Name == "" {
		cfg.Name = "Conv"
	}
	if cfg.KernelSize == 0 {
		cfg.KernelSize = 1
	}
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("nn: Conv2D requires NCHW input, got shape %v", inputShape)
	}
	if cfg.Filters <= 0 {
		return nil, fmt.Errorf("nn: Conv2D needs a positive filter count, got %d", cfg.Filters)
	}

	inChannels := inputShape[1]
	kernelShape := tensor.Shape{cfg.Filters, inChannels, cfg.KernelSize, cfg.KernelSize}
	fanIn := inChannels * cfg.KernelSize * cfg.KernelSize

	c := &Conv2D{
		name:       cfg.Name,
		inputShape: inputShape.Clone(),
		filters:    cfg.Filters,
		kernel:     cfg.KernelSize,
		stride:     cfg.Stride,
		pad:        cfg.Pad,
		activation: cfg.Activation,
		Weight:     NewParameter(cfg.Name+"/W", HeNormal(fanIn, kernelShape)),
	}
	if !cfg.NoBias {
		c.Bias = NewParameter(cfg.Name+"/b", tensor.Zeros(tensor.Shape{cfg.Filters}))
		c.Bias.SetRegularizable(false)
	}
	if cfg.Activation == PReLU {
		alpha, err := tensor.FromSlice([]float32{DefaultPReLUAlpha}, tensor.Shape{1})
		if err != nil {
			return nil, err
		}
		c.Alpha = NewParameter(cfg.Name+"/alpha", alpha)
		c.Alpha.SetRegularizable(false)
	}
	return c, nil
}

// Name returns the layer name.
func (c *Conv2D) Name() string {
	return c.name
}

// KernelShape returns [filters, in_channels, kernel, kernel].
func (c *Conv2D) KernelShape() tensor.Shape {
	return c.Weight.Tensor().Shape()
}

// WeightParam returns the kernel weight parameter.
func (c *Conv2D) WeightParam() *Parameter {
	return c.Weight
}

// BiasParam returns the bias parameter, or nil when the layer has none.
func (c *Conv2D) BiasParam() *Parameter {
	return c.Bias
}

// InputShape returns the construction-time input shape.
func (c *Conv2D) InputShape() tensor.Shape {
	return c.inputShape
}

// OutputShape returns the NCHW output shape for the construction-time
// input shape.
func (c *Conv2D) OutputShape() tensor.Shape {
	h := (c.inputShape[2]+2*c.pad-c.kernel)/c.stride + 1
	w := (c.inputShape[3]+2*c.pad-c.kernel)/c.stride + 1
	return tensor.Shape{c.inputShape[0], c.filters, h, w}
}

// Parameters returns weight, bias and the optional PReLU coefficient.
func (c *Conv2D) Parameters() []*Parameter {
	params := []*Parameter{c.Weight}
	if c.Bias != nil {
		params = append(params, c.Bias)
	}
	if c.Alpha != nil {
		params = append(params, c.Alpha)
	}
	return params
}

// Forward applies the convolution. Conv2D has no mode dependent behavior.
func (c *Conv2D) Forward(x *tensor.Tensor, _ Mode) *tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != c.inputShape[1] {
		panic(fmt.Sprintf("nn: %s expects input shape %v (any batch), got %v", c.name, c.inputShape, shape))
	}

	n, inC, inH, inW := shape[0], shape[1], shape[2], shape[3]
	outH := (inH+2*c.pad-c.kernel)/c.stride + 1
	outW := (inW+2*c.pad-c.kernel)/c.stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("nn: %s kernel %d does not fit input %v with pad %d", c.name, c.kernel, shape, c.pad))
	}

	out := tensor.Zeros(tensor.Shape{n, c.filters, outH, outW})
	xd := x.Data()
	od := out.Data()
	wd := c.Weight.Tensor().Data()
	var bd []float32
	if c.Bias != nil {
		bd = c.Bias.Tensor().Data()
	}

	parallel.ForSampleChannel(n, c.filters, parallel.DefaultConfig(), func(b, f int) {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				var acc float32
				for ic := 0; ic < inC; ic++ {
					for ky := 0; ky < c.kernel; ky++ {
						iy := oy*c.stride + ky - c.pad
						if iy < 0 || iy >= inH {
							continue
						}
						for kx := 0; kx < c.kernel; kx++ {
							ix := ox*c.stride + kx - c.pad
							if ix < 0 || ix >= inW {
								continue
							}
							xv := xd[((b*inC+ic)*inH+iy)*inW+ix]
							wv := wd[((f*inC+ic)*c.kernel+ky)*c.kernel+kx]
							acc += xv * wv
						}
					}
				}
				if bd != nil {
					acc += bd[f]
				}
				od[((b*c.filters+f)*outH+oy)*outW+ox] = acc
			}
		}
	})

	return c.activation.Apply(out, c.alphaValue())
}

func (c *Conv2D) alphaValue() float32 {
	if c.Alpha != nil {
		return c.Alpha.Tensor().Data()[0]
	}
	return DefaultPReLUAlpha
}

// Describe returns a one-line human readable description.
func (c *Conv2D) Describe() string {
	return fmt.Sprintf("%s Conv2D: %v -> %v kernel=%d stride=%d pad=%d activation=%s",
		c.name, c.inputShape, c.OutputShape(), c.kernel, c.stride, c.pad, c.activation)
}
