package nn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/certgo-ml/certgo/internal/tensor"
)

// ErrUnsupportedLayer is returned by Transform for a layer kind the bound
// engines cannot encode.
var ErrUnsupportedLayer = errors.New("unsupported layer for materialization")

// StageKind discriminates the two stage kinds of a materialized model.
type StageKind int

const (
	// StageAffine is y = W @ x + b.
	StageAffine StageKind = iota
	// StageReLU is y = max(0, x) element-wise.
	StageReLU
)

// Stage is one step of a materialized model. W and B are nil for ReLU stages.
type Stage struct {
	Kind StageKind
	W    *mat.Dense
	B    *mat.VecDense
}

// Out returns the stage's output width given its input width.
func (s Stage) Out(in int) int {
	if s.Kind == StageAffine {
		r, _ := s.W.Dims()
		return r
	}
	return in
}

// Materialized is a shape-specialized model: an alternating sequence of
// affine and ReLU stages over flattened float64 vectors.
//
// This is the representation every bound engine consumes. Convolutions are
// lowered to explicit dense affine maps over the flattened activation vector,
// normalization (when requested) to a diagonal affine stage, and Flatten
// disappears entirely. A Materialized model is specialized to the input
// shape it was built for and must not be evaluated on any other shape.
type Materialized struct {
	inShape tensor.Shape
	in      int
	out     int
	stages  []Stage
}

// Transform builds a Materialized model from a model and a concrete input
// shape (the shape of one example, no batch dimension).
//
// Supported layers: Linear, Conv2d, ReLU, Flatten, Normalize and nested
// Sequential. Any other layer kind yields ErrUnsupportedLayer.
func Transform(model Module, inShape tensor.Shape) (*Materialized, error) {
	if err := inShape.Validate(); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	m := &Materialized{
		inShape: inShape.Clone(),
		in:      inShape.NumElements(),
	}
	shape, err := m.lower(model, inShape)
	if err != nil {
		return nil, err
	}
	m.out = shape.NumElements()
	if len(m.stages) == 0 {
		return nil, fmt.Errorf("transform: model has no materializable stages")
	}
	return m, nil
}

// lower appends the stages for one layer (recursing into Sequential) and
// returns the shape after it.
func (m *Materialized) lower(layer Module, shape tensor.Shape) (tensor.Shape, error) {
	switch l := layer.(type) {
	case *Sequential:
		var err error
		for i := 0; i < l.Len(); i++ {
			shape, err = m.lower(l.Layer(i), shape)
			if err != nil {
				return nil, err
			}
		}
		return shape, nil

	case *Linear:
		if shape.NumElements() != l.InFeatures() {
			return nil, fmt.Errorf("transform: linear expects %d features, input shape %v has %d",
				l.InFeatures(), shape, shape.NumElements())
		}
		w := mat.DenseCopyOf(l.Weight())
		b := mat.VecDenseCopyOf(l.Bias())
		m.stages = append(m.stages, Stage{Kind: StageAffine, W: w, B: b})
		return l.OutShape(shape), nil

	case *Conv2d:
		w, b, outShape, err := lowerConv(l, shape)
		if err != nil {
			return nil, err
		}
		m.stages = append(m.stages, Stage{Kind: StageAffine, W: w, B: b})
		return outShape, nil

	case *ReLU:
		m.stages = append(m.stages, Stage{Kind: StageReLU})
		return shape, nil

	case *Flatten:
		return tensor.Shape{shape.NumElements()}, nil

	case *Normalize:
		w, b, err := lowerNormalize(l, shape)
		if err != nil {
			return nil, err
		}
		m.stages = append(m.stages, Stage{Kind: StageAffine, W: w, B: b})
		return shape, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedLayer, layer)
	}
}

// lowerConv expands a convolution into a dense affine map over the flattened
// input vector.
func lowerConv(c *Conv2d, shape tensor.Shape) (*mat.Dense, *mat.VecDense, tensor.Shape, error) {
	if len(shape) != 3 || shape[0] != c.inChannels {
		return nil, nil, nil, fmt.Errorf("transform: conv2d expects [%d, H, W], got shape %v", c.inChannels, shape)
	}
	h, w := shape[1], shape[2]
	oh, ow := c.outHW(h, w)
	if oh <= 0 || ow <= 0 {
		return nil, nil, nil, fmt.Errorf("transform: conv2d input %v too small for kernel=%d stride=%d padding=%d",
			shape, c.kernel, c.stride, c.padding)
	}

	rows := c.outChannels * oh * ow
	cols := c.inChannels * h * w
	wd := mat.NewDense(rows, cols, nil)
	bd := mat.NewVecDense(rows, nil)

	for o := 0; o < c.outChannels; o++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				row := (o*oh+y)*ow + x
				bd.SetVec(row, c.bias[o])
				for i := 0; i < c.inChannels; i++ {
					for ky := 0; ky < c.kernel; ky++ {
						iy := y*c.stride - c.padding + ky
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < c.kernel; kx++ {
							ix := x*c.stride - c.padding + kx
							if ix < 0 || ix >= w {
								continue
							}
							wd.Set(row, (i*h+iy)*w+ix, c.at(o, i, ky, kx))
						}
					}
				}
			}
		}
	}
	return wd, bd, tensor.Shape{c.outChannels, oh, ow}, nil
}

// lowerNormalize expands per-channel normalization into a diagonal affine
// stage: x' = x/sd_c - mean_c/sd_c.
func lowerNormalize(n *Normalize, shape tensor.Shape) (*mat.Dense, *mat.VecDense, error) {
	channels := 1
	if len(shape) == 3 {
		channels = shape[0]
	}
	if channels != len(n.origMeans) {
		return nil, nil, fmt.Errorf("transform: normalize has %d channels, input shape %v has %d",
			len(n.origMeans), shape, channels)
	}
	size := shape.NumElements()
	per := size / channels
	w := mat.NewDense(size, size, nil)
	b := mat.NewVecDense(size, nil)
	for c := 0; c < channels; c++ {
		mean, sd := n.origMeans[c], n.origSDs[c]
		for i := c * per; i < (c+1)*per; i++ {
			w.Set(i, i, 1/sd)
			b.SetVec(i, -mean/sd)
		}
	}
	return w, b, nil
}

// InShape returns the input shape the model was specialized to.
func (m *Materialized) InShape() tensor.Shape {
	return m.inShape
}

// In returns the flattened input width.
func (m *Materialized) In() int { return m.in }

// Out returns the output width (the number of classes).
func (m *Materialized) Out() int { return m.out }

// NumStages returns the number of stages.
func (m *Materialized) NumStages() int { return len(m.stages) }

// Stage returns the stage at the given index.
func (m *Materialized) Stage(i int) Stage { return m.stages[i] }

// Forward evaluates the model on a flattened input vector.
func (m *Materialized) Forward(x []float64) []float64 {
	outs := m.forwardAll(x)
	return outs[len(outs)-1]
}

// forwardAll evaluates the model, returning the output of every stage.
// Index 0 holds a copy of the input.
func (m *Materialized) forwardAll(x []float64) [][]float64 {
	if len(x) != m.in {
		panic(fmt.Sprintf("Materialized.Forward: input has %d elements, model expects %d", len(x), m.in))
	}
	outs := make([][]float64, len(m.stages)+1)
	cur := make([]float64, len(x))
	copy(cur, x)
	outs[0] = cur

	for i, s := range m.stages {
		switch s.Kind {
		case StageAffine:
			rows, _ := s.W.Dims()
			y := mat.NewVecDense(rows, nil)
			y.MulVec(s.W, mat.NewVecDense(len(cur), cur))
			y.AddVec(y, s.B)
			cur = y.RawVector().Data
		case StageReLU:
			next := make([]float64, len(cur))
			for j, v := range cur {
				if v > 0 {
					next[j] = v
				}
			}
			cur = next
		}
		outs[i+1] = cur
	}
	return outs
}

// Gradient computes the gradient with respect to the input of the scalar
// objᵀ·output. Used by the gradient-attack oracle.
func (m *Materialized) Gradient(x []float64, obj *mat.VecDense) []float64 {
	outs := m.forwardAll(x)
	if obj.Len() != m.out {
		panic(fmt.Sprintf("Materialized.Gradient: objective has %d entries, model has %d outputs", obj.Len(), m.out))
	}

	g := mat.VecDenseCopyOf(obj)
	for i := len(m.stages) - 1; i >= 0; i-- {
		s := m.stages[i]
		switch s.Kind {
		case StageAffine:
			_, cols := s.W.Dims()
			prev := mat.NewVecDense(cols, nil)
			prev.MulVec(s.W.T(), g)
			g = prev
		case StageReLU:
			// Subgradient 0 at the kink.
			in := outs[i]
			for j := 0; j < g.Len(); j++ {
				if in[j] <= 0 {
					g.SetVec(j, 0)
				}
			}
		}
	}
	grad := make([]float64, g.Len())
	copy(grad, g.RawVector().Data)
	return grad
}
