// Package tensor implements the dense float64 tensor used throughout CertGo.
//
// Verification is exact-arithmetic-sensitive and always operates on a single
// example at a time, so the tensor here is deliberately small: a row-major
// float64 buffer plus a Shape. Heavy linear algebra lives in gonum and is the
// concern of the nn and verify packages, not of this type.
package tensor

import "fmt"

// Tensor is a dense, row-major float64 tensor.
type Tensor struct {
	shape Shape
	data  []float64
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.New: %v", err))
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float64, shape.NumElements()),
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the underlying data slice.
//
// The slice aliases the tensor's memory; mutating it mutates the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// NumElements returns the number of elements in the tensor.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// At returns the element at the given flat (row-major) index.
func (t *Tensor) At(i int) float64 {
	return t.data[i]
}

// Set assigns the element at the given flat (row-major) index.
func (t *Tensor) Set(i int, v float64) {
	t.data[i] = v
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := New(t.shape)
	copy(c.data, t.data)
	return c
}

// Flatten returns a copy of the tensor's data as a 1-D slice in row-major
// order. The result does not alias the tensor.
func (t *Tensor) Flatten() []float64 {
	flat := make([]float64, len(t.data))
	copy(flat, t.data)
	return flat
}

// Reshape returns a view of the tensor with a new shape.
// The number of elements must match; the data is shared, not copied.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("cannot reshape %v to %v: element count mismatch", t.shape, shape)
	}
	return &Tensor{shape: shape.Clone(), data: t.data}, nil
}
