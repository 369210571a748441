// Copyright 2025 The CertGo Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for the classifier layers CertGo
// verifies.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewFlatten(),
//	    linear1,
//	    nn.NewReLU(),
//	    linear2,
//	)
package nn

import (
	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/tensor"
)

// Module is the base interface for all layers.
type Module = nn.Module

// Layers

// Linear is a fully connected layer.
type Linear = nn.Linear

// NewLinear creates a Linear layer with zero-initialized parameters.
func NewLinear(inFeatures, outFeatures int) *Linear {
	return nn.NewLinear(inFeatures, outFeatures)
}

// NewLinearFromParams creates a Linear layer from explicit parameters.
func NewLinearFromParams(weight [][]float64, bias []float64) (*Linear, error) {
	return nn.NewLinearFromParams(weight, bias)
}

// Conv2d is a 2D convolutional layer.
type Conv2d = nn.Conv2d

// NewConv2d creates a Conv2d layer with zero-initialized parameters.
func NewConv2d(inChannels, outChannels, kernel, stride, padding int) *Conv2d {
	return nn.NewConv2d(inChannels, outChannels, kernel, stride, padding)
}

// ReLU is a rectified linear activation layer.
type ReLU = nn.ReLU

// NewReLU creates a ReLU layer.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// Flatten reshapes its input to a 1-D vector.
type Flatten = nn.Flatten

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return nn.NewFlatten()
}

// Normalize is a per-channel input normalization layer.
type Normalize = nn.Normalize

// NewNormalize creates a Normalize layer from per-channel means and
// standard deviations.
func NewNormalize(means, sds []float64) (*Normalize, error) {
	return nn.NewNormalize(means, sds)
}

// Sequential chains layers together.
type Sequential = nn.Sequential

// NewSequential creates a Sequential container from the given layers.
func NewSequential(layers ...Module) *Sequential {
	return nn.NewSequential(layers...)
}

// Predict evaluates a model on a single example and returns the predicted
// class index and the raw per-class scores.
func Predict(m Module, input *tensor.Tensor) (int, []float64) {
	return nn.Predict(m, input)
}

// Materialized is a shape-specialized affine/ReLU pipeline.
type Materialized = nn.Materialized

// Transform builds a Materialized model for a concrete input shape.
func Transform(model Module, inShape tensor.Shape) (*Materialized, error) {
	return nn.Transform(model, inShape)
}
