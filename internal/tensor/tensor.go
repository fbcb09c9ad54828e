// Package tensor implements the dense float32 tensor the rest of the
// framework computes on.
//
// The package provides:
//   - Shape: dimension bookkeeping with row-major strides
//   - Tensor: an n-dimensional float32 array with creation helpers
//   - Element-wise arithmetic and axis reductions used by the layers
//
// Tensors are plain CPU buffers. Layers that need heavier linear algebra
// (eigendecompositions, whitening matmuls) view the underlying data through
// gonum instead of growing this package.
package tensor

import (
	"fmt"
	"strings"
)

// Tensor is a dense n-dimensional float32 array in row-major layout.
type Tensor struct {
	shape   Shape
	strides []int
	data    []float32
}

// Shape returns the tensor shape. The returned slice must not be mutated.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Strides returns the row-major strides of the tensor.
func (t *Tensor) Strides() []int {
	return t.strides
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Mutations are visible to the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float32 {
	return t.data[t.offset(idx)]
}

// Set assigns the element at the given multi-index.
func (t *Tensor) Set(v float32, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index rank %d does not match shape %v", len(idx), t.shape))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d of shape %v", x, i, t.shape))
		}
		off += x * t.strides[i]
	}
	return off
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{
		shape:   t.shape.Clone(),
		strides: t.shape.Strides(),
		data:    data,
	}
}

// CopyFrom overwrites the tensor contents with those of src.
// Shapes must match exactly.
func (t *Tensor) CopyFrom(src *Tensor) {
	if !t.shape.Equal(src.shape) {
		panic(fmt.Sprintf("tensor: CopyFrom shape mismatch: %v vs %v", t.shape, src.shape))
	}
	copy(t.data, src.data)
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Reshape returns a view-copy of the tensor with a new shape holding the
// same elements. The element counts must agree.
func (t *Tensor) Reshape(shape Shape) *Tensor {
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v (%d elements) to %v (%d elements)",
			t.shape, len(t.data), shape, shape.NumElements()))
	}
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.Strides(),
		data:    data,
	}
}

// SliceRows returns a copy of rows [from, to) along the leading dimension.
func (t *Tensor) SliceRows(from, to int) *Tensor {
	if len(t.shape) == 0 {
		panic("tensor: SliceRows on scalar tensor")
	}
	if from < 0 || to > t.shape[0] || from > to {
		panic(fmt.Sprintf("tensor: SliceRows [%d, %d) out of range for leading dimension %d", from, to, t.shape[0]))
	}
	rowSize := t.strides[0]
	shape := t.shape.Clone()
	shape[0] = to - from
	data := make([]float32, (to-from)*rowSize)
	copy(data, t.data[from*rowSize:to*rowSize])
	return &Tensor{
		shape:   shape,
		strides: shape.Strides(),
		data:    data,
	}
}

// Gather returns a copy of the rows selected by indices along the leading
// dimension, in the given order.
func (t *Tensor) Gather(indices []int) *Tensor {
	if len(t.shape) == 0 {
		panic("tensor: Gather on scalar tensor")
	}
	rowSize := t.strides[0]
	shape := t.shape.Clone()
	shape[0] = len(indices)
	data := make([]float32, len(indices)*rowSize)
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[0] {
			panic(fmt.Sprintf("tensor: Gather index %d out of range for leading dimension %d", idx, t.shape[0]))
		}
		copy(data[i*rowSize:(i+1)*rowSize], t.data[idx*rowSize:(idx+1)*rowSize])
	}
	return &Tensor{
		shape:   shape,
		strides: shape.Strides(),
		data:    data,
	}
}

// String renders a short description, not the full contents.
func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tensor%v", t.shape)
	return b.String()
}
