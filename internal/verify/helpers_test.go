package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certgo-ml/certgo/internal/dataset"
	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/tensor"
)

// registerDS registers a synthetic dataset for tests that need class counts
// outside the built-in benchmarks.
func registerDS(t *testing.T, name string, classes int, shape tensor.Shape) {
	t.Helper()
	require.NoError(t, dataset.Register(name, classes, shape))
}

func linearLayer(t *testing.T, w [][]float64, b []float64) *nn.Linear {
	t.Helper()
	l, err := nn.NewLinearFromParams(w, b)
	require.NoError(t, err)
	return l
}

func tens(t *testing.T, data []float64, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return tt
}

// identityModel3 is a 3-class model whose logits are its inputs.
func identityModel3(t *testing.T) *nn.Sequential {
	t.Helper()
	return nn.NewSequential(linearLayer(t, [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}, nil))
}

// reluNet2 is the two-class stack used by the bound-engine tests:
//
//	Linear(I2) → ReLU → Linear([[1,-1],[-1,1]])
//
// On the box around [0.8, 0.2] the pre-activations stay positive, so every
// engine bound is hand-checkable.
func reluNet2(t *testing.T) *nn.Sequential {
	t.Helper()
	return nn.NewSequential(
		linearLayer(t, [][]float64{{1, 0}, {0, 1}}, nil),
		nn.NewReLU(),
		linearLayer(t, [][]float64{{1, -1}, {-1, 1}}, nil),
	)
}
