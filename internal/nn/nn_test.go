package nn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certgo-ml/certgo/internal/tensor"
)

func vec(t *testing.T, data []float64) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.FromSlice(data, tensor.Shape{len(data)})
	require.NoError(t, err)
	return tt
}

// TestLinearForward checks y = Wx + b against hand-computed values.
func TestLinearForward(t *testing.T) {
	l, err := NewLinearFromParams([][]float64{
		{1, 2},
		{3, 4},
	}, []float64{0.5, -0.5})
	require.NoError(t, err)

	out := l.Forward(vec(t, []float64{1, 1}))
	require.True(t, out.Shape().Equal(tensor.Shape{2}))
	require.InDelta(t, 3.5, out.At(0), 1e-12) // 1 + 2 + 0.5
	require.InDelta(t, 6.5, out.At(1), 1e-12) // 3 + 4 - 0.5
}

// TestLinearFromParamsValidation rejects malformed parameters.
func TestLinearFromParamsValidation(t *testing.T) {
	_, err := NewLinearFromParams(nil, nil)
	require.Error(t, err)

	_, err = NewLinearFromParams([][]float64{{1, 2}, {3}}, nil)
	require.Error(t, err, "ragged weight matrix")

	_, err = NewLinearFromParams([][]float64{{1, 2}}, []float64{1, 2})
	require.Error(t, err, "bias length mismatch")
}

// TestLinearForwardShapePanic a wrong input size is a contract violation.
func TestLinearForwardShapePanic(t *testing.T) {
	l := NewLinear(3, 2)
	require.Panics(t, func() { l.Forward(vec(t, []float64{1, 2})) })
}

// TestReLUForward clamps negatives and leaves the input untouched.
func TestReLUForward(t *testing.T) {
	in := vec(t, []float64{-1, 0, 2.5})
	out := NewReLU().Forward(in)
	require.Equal(t, []float64{0, 0, 2.5}, out.Data())
	require.Equal(t, -1.0, in.At(0))
}

// TestFlattenForward preserves row-major order.
func TestFlattenForward(t *testing.T) {
	in, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)
	out := NewFlatten().Forward(in)
	require.True(t, out.Shape().Equal(tensor.Shape{4}))
	require.Equal(t, []float64{1, 2, 3, 4}, out.Data())
}

// TestNormalizeForward covers the single-channel and per-channel paths.
func TestNormalizeForward(t *testing.T) {
	n, err := NewNormalize([]float64{0.5}, []float64{0.25})
	require.NoError(t, err)
	out := n.Forward(vec(t, []float64{0.5, 1.0}))
	require.InDelta(t, 0.0, out.At(0), 1e-12)
	require.InDelta(t, 2.0, out.At(1), 1e-12)

	n3, err := NewNormalize([]float64{0, 1, 2}, []float64{1, 2, 4})
	require.NoError(t, err)
	in, err := tensor.FromSlice([]float64{1, 1, 3, 3, 4, 4}, tensor.Shape{3, 1, 2})
	require.NoError(t, err)
	out = n3.Forward(in)
	require.InDelta(t, 1.0, out.At(0), 1e-12)  // (1-0)/1
	require.InDelta(t, 1.0, out.At(2), 1e-12)  // (3-1)/2
	require.InDelta(t, 0.5, out.At(4), 1e-12)  // (4-2)/4
}

// TestNormalizeValidation rejects bad parameters and channel mismatches.
func TestNormalizeValidation(t *testing.T) {
	_, err := NewNormalize(nil, nil)
	require.Error(t, err)
	_, err = NewNormalize([]float64{0.5}, []float64{0.5, 0.5})
	require.Error(t, err)
	_, err = NewNormalize([]float64{0.5}, []float64{0})
	require.Error(t, err)

	n, err := NewNormalize([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	in, err := tensor.FromSlice(make([]float64, 12), tensor.Shape{3, 2, 2})
	require.NoError(t, err)
	require.Panics(t, func() { n.Forward(in) })
}

// TestConv2dForwardKnownValues checks the convolution against hand-computed
// sums.
func TestConv2dForwardKnownValues(t *testing.T) {
	// 1 channel, 2x2 kernel [[1,0],[0,1]], stride 1, no padding.
	c := NewConv2d(1, 1, 2, 1, 0)
	require.NoError(t, c.SetWeight([]float64{1, 0, 0, 1}))
	require.NoError(t, c.SetBias([]float64{0.5}))

	in, err := tensor.FromSlice([]float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 3, 3})
	require.NoError(t, err)

	out := c.Forward(in)
	require.True(t, out.Shape().Equal(tensor.Shape{1, 2, 2}))
	// Each output is in[y][x] + in[y+1][x+1] + bias.
	require.Equal(t, []float64{6.5, 8.5, 12.5, 14.5}, out.Data())
}

// TestConv2dPadding zero padding contributes nothing to the window sums.
func TestConv2dPadding(t *testing.T) {
	c := NewConv2d(1, 1, 3, 1, 1)
	w := make([]float64, 9)
	for i := range w {
		w[i] = 1
	}
	require.NoError(t, c.SetWeight(w))

	in, err := tensor.FromSlice([]float64{1, 1, 1, 1}, tensor.Shape{1, 2, 2})
	require.NoError(t, err)
	out := c.Forward(in)
	require.True(t, out.Shape().Equal(tensor.Shape{1, 2, 2}))
	// Every 3x3 window covers exactly the four real pixels.
	require.Equal(t, []float64{4, 4, 4, 4}, out.Data())
}

// TestConv2dOutShape covers strides and the shape contract.
func TestConv2dOutShape(t *testing.T) {
	c := NewConv2d(3, 8, 3, 2, 1)
	out := c.OutShape(tensor.Shape{3, 32, 32})
	require.True(t, out.Equal(tensor.Shape{8, 16, 16}))

	require.Panics(t, func() { c.OutShape(tensor.Shape{32, 32}) })
}

// TestSequentialPredict runs a small stack end to end.
func TestSequentialPredict(t *testing.T) {
	l1, err := NewLinearFromParams([][]float64{{1, 0}, {0, 1}, {1, 1}}, nil)
	require.NoError(t, err)
	model := NewSequential(l1, NewReLU())

	pred, scores := Predict(model, vec(t, []float64{0.2, 0.7}))
	require.Equal(t, 2, pred)
	require.InDelta(t, 0.9, scores[2], 1e-12)
	require.Len(t, scores, 3)
}

// TestSequentialTailSharesLayers Tail must expose the same layer values.
func TestSequentialTailSharesLayers(t *testing.T) {
	n, err := NewNormalize([]float64{0.5}, []float64{0.5})
	require.NoError(t, err)
	l, err := NewLinearFromParams([][]float64{{2}}, nil)
	require.NoError(t, err)
	model := NewSequential(n, l)

	tail := model.Tail(1)
	require.Equal(t, 1, tail.Len())
	require.Same(t, l, tail.Layer(0))

	require.Panics(t, func() { model.Tail(5) })
}
