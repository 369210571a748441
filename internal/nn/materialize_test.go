package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/certgo-ml/certgo/internal/tensor"
)

// objective builds a one-hot objective vector for Gradient.
func objective(n, class int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	v.SetVec(class, 1)
	return v
}

// fakeLayer is a Module kind the materializer does not know.
type fakeLayer struct{}

func (fakeLayer) Forward(in *tensor.Tensor) *tensor.Tensor { return in }
func (fakeLayer) OutShape(in tensor.Shape) tensor.Shape    { return in.Clone() }

func randomLinear(t *testing.T, rng *rand.Rand, in, out int) *Linear {
	t.Helper()
	l := NewLinear(in, out)
	for i := 0; i < out; i++ {
		for j := 0; j < in; j++ {
			l.Weight().Set(i, j, rng.NormFloat64())
		}
		l.Bias().SetVec(i, rng.NormFloat64())
	}
	return l
}

// TestTransformLinearMatchesForward the materialized model must agree with
// the layer-by-layer forward pass on dense nets.
func TestTransformLinearMatchesForward(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	model := NewSequential(
		NewFlatten(),
		randomLinear(t, rng, 4, 5),
		NewReLU(),
		randomLinear(t, rng, 5, 3),
	)

	shape := tensor.Shape{1, 2, 2}
	matd, err := Transform(model, shape)
	require.NoError(t, err)
	require.Equal(t, 4, matd.In())
	require.Equal(t, 3, matd.Out())

	for trial := 0; trial < 5; trial++ {
		data := make([]float64, 4)
		for i := range data {
			data[i] = rng.Float64()
		}
		in, err := tensor.FromSlice(data, shape)
		require.NoError(t, err)

		want := model.Forward(in).Flatten()
		got := matd.Forward(data)
		for i := range want {
			require.InDelta(t, want[i], got[i], 1e-12)
		}
	}
}

// TestTransformConvMatchesForward convolution lowering to a dense affine
// stage must be value-exact.
func TestTransformConvMatchesForward(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	conv := NewConv2d(1, 2, 2, 1, 0)
	w := make([]float64, 8)
	for i := range w {
		w[i] = rng.NormFloat64()
	}
	require.NoError(t, conv.SetWeight(w))
	require.NoError(t, conv.SetBias([]float64{rng.NormFloat64(), rng.NormFloat64()}))

	model := NewSequential(
		conv,
		NewReLU(),
		NewFlatten(),
		randomLinear(t, rng, 8, 2),
	)

	shape := tensor.Shape{1, 3, 3}
	matd, err := Transform(model, shape)
	require.NoError(t, err)

	data := make([]float64, 9)
	for i := range data {
		data[i] = rng.Float64()
	}
	in, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)

	want := model.Forward(in).Flatten()
	got := matd.Forward(data)
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-12)
	}
}

// TestTransformNormalizeFolded a materialized full model (normalization
// included) must match the layered forward pass on raw pixels.
func TestTransformNormalizeFolded(t *testing.T) {
	n, err := NewNormalize([]float64{0.1307}, []float64{0.3081})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	model := NewSequential(n, NewFlatten(), randomLinear(t, rng, 4, 2))

	shape := tensor.Shape{1, 2, 2}
	matd, err := Transform(model, shape)
	require.NoError(t, err)

	data := []float64{0.0, 0.25, 0.5, 1.0}
	in, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)

	want := model.Forward(in).Flatten()
	got := matd.Forward(data)
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-12)
	}
}

// TestTransformUnsupportedLayer unknown layer kinds are a typed error.
func TestTransformUnsupportedLayer(t *testing.T) {
	model := NewSequential(fakeLayer{})
	_, err := Transform(model, tensor.Shape{2})
	require.ErrorIs(t, err, ErrUnsupportedLayer)
}

// TestTransformShapeMismatch a linear layer fed the wrong width must fail
// construction, not panic later.
func TestTransformShapeMismatch(t *testing.T) {
	model := NewSequential(NewLinear(4, 2))
	_, err := Transform(model, tensor.Shape{3})
	require.Error(t, err)
}

// TestGradient checks the backward pass against hand-computed values.
func TestGradient(t *testing.T) {
	l1, err := NewLinearFromParams([][]float64{{1, 2}, {3, 4}}, nil)
	require.NoError(t, err)
	l2, err := NewLinearFromParams([][]float64{{1, 0}, {0, 1}}, nil)
	require.NoError(t, err)
	model := NewSequential(l1, NewReLU(), l2)

	matd, err := Transform(model, tensor.Shape{2})
	require.NoError(t, err)

	// x = [1,1]: both pre-activations (3 and 7) are positive, so the
	// gradient of output 0 is row 0 of W1 and likewise for output 1.
	obj := objective(2, 0)
	g := matd.Gradient([]float64{1, 1}, obj)
	require.InDelta(t, 1.0, g[0], 1e-12)
	require.InDelta(t, 2.0, g[1], 1e-12)

	obj = objective(2, 1)
	g = matd.Gradient([]float64{1, 1}, obj)
	require.InDelta(t, 3.0, g[0], 1e-12)
	require.InDelta(t, 4.0, g[1], 1e-12)

	// x = [-1,-1]: both ReLUs are dead, the gradient vanishes.
	g = matd.Gradient([]float64{-1, -1}, objective(2, 0))
	require.Equal(t, []float64{0, 0}, g)
}

// TestGradientObjectiveDifference the pairwise attack objective is linear in
// the per-class objectives.
func TestGradientObjectiveDifference(t *testing.T) {
	l1, err := NewLinearFromParams([][]float64{{1, 0}, {0, 1}}, nil)
	require.NoError(t, err)
	model := NewSequential(l1)
	matd, err := Transform(model, tensor.Shape{2})
	require.NoError(t, err)

	obj := objective(2, 1)
	obj.SetVec(0, -1) // logit(1) - logit(0)
	g := matd.Gradient([]float64{0.5, 0.5}, obj)
	require.Equal(t, []float64{-1, 1}, g)
}
