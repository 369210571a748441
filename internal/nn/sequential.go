package nn

import (
	"fmt"

	"github.com/certgo-ml/certgo/internal/tensor"
)

// Sequential is a container that chains layers together.
//
// Each layer's output becomes the next layer's input. If the model was
// trained on normalized inputs, layer 0 is its Normalize layer; the verify
// package relies on that position.
type Sequential struct {
	layers []Module
}

// NewSequential creates a new Sequential container from the given layers.
func NewSequential(layers ...Module) *Sequential {
	return &Sequential{layers: layers}
}

// Forward applies all layers in sequence.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, layer := range s.layers {
		output = layer.Forward(output)
	}
	return output
}

// OutShape folds OutShape across all layers.
func (s *Sequential) OutShape(in tensor.Shape) tensor.Shape {
	shape := in
	for _, layer := range s.layers {
		shape = layer.OutShape(shape)
	}
	return shape
}

// Append adds a layer to the end of the sequence.
func (s *Sequential) Append(layer Module) {
	s.layers = append(s.layers, layer)
}

// Len returns the number of layers in the sequence.
func (s *Sequential) Len() int {
	return len(s.layers)
}

// Layer returns the layer at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Layer(index int) Module {
	if index < 0 || index >= len(s.layers) {
		panic("Sequential.Layer: index out of bounds")
	}
	return s.layers[index]
}

// Tail returns a Sequential over layers[from:]. The layers are shared, not
// copied.
func (s *Sequential) Tail(from int) *Sequential {
	if from < 0 || from > len(s.layers) {
		panic("Sequential.Tail: index out of bounds")
	}
	return &Sequential{layers: s.layers[from:]}
}

// Predict evaluates the model on a single example and returns the predicted
// class index and the raw per-class scores.
func Predict(m Module, input *tensor.Tensor) (int, []float64) {
	out := m.Forward(input)
	scores := out.Flatten()
	if len(scores) == 0 {
		panic("Predict: model produced no outputs")
	}
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return best, scores
}

// String summarizes the container for logs.
func (s *Sequential) String() string {
	return fmt.Sprintf("Sequential(%d layers)", len(s.layers))
}
