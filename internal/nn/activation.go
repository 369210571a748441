package nn

import (
	"github.com/certgo-ml/certgo/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation layer.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// ReLU is the only activation the bound engines relax, so it is the only
// activation this package ships.
type ReLU struct{}

// NewReLU creates a new ReLU activation layer.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := input.Clone()
	data := out.Data()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return out
}

// OutShape returns the input shape unchanged.
func (r *ReLU) OutShape(in tensor.Shape) tensor.Shape {
	return in.Clone()
}

// Flatten reshapes its input to a 1-D vector, preserving row-major order.
type Flatten struct{}

// NewFlatten creates a new Flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Forward returns the input flattened to shape [n].
func (f *Flatten) Forward(input *tensor.Tensor) *tensor.Tensor {
	out, err := input.Reshape(tensor.Shape{input.NumElements()})
	if err != nil {
		panic(err) // Reshape to the element count cannot fail
	}
	return out
}

// OutShape returns [n] where n is the element count of the input shape.
func (f *Flatten) OutShape(in tensor.Shape) tensor.Shape {
	return tensor.Shape{in.NumElements()}
}
