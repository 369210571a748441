// Package nn implements the feed-forward classifier layers that CertGo
// verifies.
//
// This package provides the building blocks for the networks under
// verification:
//   - Module interface: Base interface for all layers
//   - Linear: Fully connected layer over gonum matrices
//   - Conv2d: 2D convolution
//   - ReLU, Flatten: Parameter-free layers
//   - Normalize: Per-channel input normalization (mean/sd)
//   - Sequential: Container for stacking layers
//
// Layers are inference-only: CertGo certifies trained models, it does not
// train them. The verify package holds a non-owning reference to a model and
// never mutates it.
package nn

import (
	"github.com/certgo-ml/certgo/internal/tensor"
)

// Module is the base interface for all layers.
//
// Modules operate on single examples: a Conv2d input is [channels, height,
// width], a Linear input is [features]. There is no batch dimension.
type Module interface {
	// Forward computes the output of the layer given an input tensor.
	//
	// The input tensor must have the appropriate shape for this layer.
	// Panics on a shape contract violation.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// OutShape returns the output shape this layer produces for the given
	// input shape, without evaluating the layer.
	OutShape(in tensor.Shape) tensor.Shape
}
