package nn

import (
	"fmt"

	"github.com/certgo-ml/certgo/internal/tensor"
)

// Normalize is a per-channel input normalization layer.
//
// Applies x' = (x - mean_c) / sd_c where c is the channel of x. Models
// trained on normalized data carry this as layer 0 of their Sequential; the
// verify package detects it there and undoes the transform so that
// perturbation radii can be expressed in the original pixel space.
type Normalize struct {
	origMeans []float64 // per-channel means
	origSDs   []float64 // per-channel standard deviations
}

// NewNormalize creates a normalization layer from per-channel means and
// standard deviations. The two slices must have the same length and every
// standard deviation must be positive.
func NewNormalize(means, sds []float64) (*Normalize, error) {
	if len(means) == 0 || len(means) != len(sds) {
		return nil, fmt.Errorf("normalize: means (%d) and sds (%d) must be non-empty and equal length", len(means), len(sds))
	}
	for i, sd := range sds {
		if sd <= 0 {
			return nil, fmt.Errorf("normalize: sd[%d] = %g, must be > 0", i, sd)
		}
	}
	n := &Normalize{
		origMeans: make([]float64, len(means)),
		origSDs:   make([]float64, len(sds)),
	}
	copy(n.origMeans, means)
	copy(n.origSDs, sds)
	return n, nil
}

// Forward normalizes the input per channel.
//
// Input shape: [channels, height, width], or [n] which is treated as a
// single channel.
func (n *Normalize) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := input.Clone()
	data := out.Data()
	shape := input.Shape()

	channels := 1
	if len(shape) == 3 {
		channels = shape[0]
	}
	if channels != len(n.origMeans) {
		panic(fmt.Sprintf("Normalize.Forward: input has %d channels, layer has %d", channels, len(n.origMeans)))
	}

	per := len(data) / channels
	for c := 0; c < channels; c++ {
		mean, sd := n.origMeans[c], n.origSDs[c]
		for i := c * per; i < (c+1)*per; i++ {
			data[i] = (data[i] - mean) / sd
		}
	}
	return out
}

// OutShape returns the input shape unchanged.
func (n *Normalize) OutShape(in tensor.Shape) tensor.Shape {
	return in.Clone()
}

// OrigMeans returns the per-channel means. The slice is shared, not copied.
func (n *Normalize) OrigMeans() []float64 {
	return n.origMeans
}

// OrigSDs returns the per-channel standard deviations. The slice is shared,
// not copied.
func (n *Normalize) OrigSDs() []float64 {
	return n.origSDs
}
