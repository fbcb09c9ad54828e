package nn

import (
	"github.com/manifold-ml/manifold/internal/tensor"
)

// Sequential chains modules so that each module's output becomes the next
// module's input.
//
// Example:
//
//	conv, _ := nn.NewConv2D(shape, nn.Conv2DConfig{Filters: 16, KernelSize: 3, Pad: 1})
//	bn, _ := nn.NewBatchNorm(conv.OutputShape(), nn.BatchNormConfig{Activation: nn.ReLU})
//	net := nn.NewSequential("net", conv, bn)
//	out := net.Forward(input, nn.Train)
type Sequential struct {
	name    string
	modules []Module
}

// NewSequential creates a Sequential container.
func NewSequential(name string, modules ...Module) *Sequential {
	if name == "" {
		name = "Sequential"
	}
	return &Sequential{
		name:    name,
		modules: modules,
	}
}

// Name returns the container name.
func (s *Sequential) Name() string {
	return s.name
}

// Add appends a module to the sequence.
func (s *Sequential) Add(m Module) {
	s.modules = append(s.modules, m)
}

// Layers returns the ordered module sequence. The returned slice must not
// be mutated.
func (s *Sequential) Layers() []Module {
	return s.modules
}

// Forward applies all modules in order with the given mode.
func (s *Sequential) Forward(input *tensor.Tensor, mode Mode) *tensor.Tensor {
	output := input
	for _, m := range s.modules {
		output = m.Forward(output, mode)
	}
	return output
}

// Parameters returns the parameters of every module, in layer order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// Reset calls Reset on every layer that supports it.
func (s *Sequential) Reset() {
	for _, m := range s.modules {
		if r, ok := m.(interface{ Reset() }); ok {
			r.Reset()
		}
	}
}
