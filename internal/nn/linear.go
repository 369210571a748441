package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/certgo-ml/certgo/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = W @ x + b
// where:
//   - x is the input vector with shape [in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output vector with shape [out_features]
//
// Weights live in gonum matrices so the bound engines can read them without
// conversion.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *mat.Dense    // [out_features, in_features]
	bias        *mat.VecDense // [out_features]
}

// NewLinear creates a new Linear layer with zero-initialized parameters.
//
// Verified models are trained elsewhere and loaded via SetWeight/SetBias or
// the loader package, so there is no random initialization here.
func NewLinear(inFeatures, outFeatures int) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      mat.NewDense(outFeatures, inFeatures, nil),
		bias:        mat.NewVecDense(outFeatures, nil),
	}
}

// NewLinearFromParams creates a Linear layer from explicit parameters.
//
// weight is row-major [out_features][in_features]; bias has out_features
// entries (nil means zero bias).
func NewLinearFromParams(weight [][]float64, bias []float64) (*Linear, error) {
	if len(weight) == 0 {
		return nil, fmt.Errorf("linear: empty weight matrix")
	}
	out := len(weight)
	in := len(weight[0])
	l := NewLinear(in, out)
	for i, row := range weight {
		if len(row) != in {
			return nil, fmt.Errorf("linear: ragged weight matrix: row %d has %d entries, want %d", i, len(row), in)
		}
		l.weight.SetRow(i, row)
	}
	if bias != nil {
		if len(bias) != out {
			return nil, fmt.Errorf("linear: bias length %d does not match %d output features", len(bias), out)
		}
		for i, v := range bias {
			l.bias.SetVec(i, v)
		}
	}
	return l, nil
}

// Forward computes y = W @ x + b.
//
// Input shape: [in_features]. Output shape: [out_features].
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	if input.NumElements() != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got shape %v", l.inFeatures, input.Shape()))
	}
	x := mat.NewVecDense(l.inFeatures, input.Flatten())
	y := mat.NewVecDense(l.outFeatures, nil)
	y.MulVec(l.weight, x)
	y.AddVec(y, l.bias)

	out := tensor.New(tensor.Shape{l.outFeatures})
	copy(out.Data(), y.RawVector().Data)
	return out
}

// OutShape returns [out_features] for any input shape with the right number
// of elements.
func (l *Linear) OutShape(tensor.Shape) tensor.Shape {
	return tensor.Shape{l.outFeatures}
}

// Weight returns the weight matrix. The matrix is shared, not copied.
func (l *Linear) Weight() *mat.Dense {
	return l.weight
}

// Bias returns the bias vector. The vector is shared, not copied.
func (l *Linear) Bias() *mat.VecDense {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}
