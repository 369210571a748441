package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/tensor"
)

const modelJSON = `{
  "layers": [
    {"kind": "normalize", "means": [0.5], "sds": [0.5]},
    {"kind": "flatten"},
    {"kind": "linear", "weight": [[1, 0, 0, 0], [0, 1, 0, 0]], "bias": [0.1, -0.1]},
    {"kind": "relu"},
    {"kind": "linear", "weight": [[1, 0], [0, 1]]}
  ]
}`

// TestLoadRoundTrip builds a model from JSON and checks a forward pass.
func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(modelJSON), 0o644))

	model, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, model.Len())
	require.IsType(t, &nn.Normalize{}, model.Layer(0))

	in, err := tensor.FromSlice([]float64{1.0, 0.5, 0, 0}, tensor.Shape{1, 2, 2})
	require.NoError(t, err)
	out := model.Forward(in)
	// Pixel 0: (1-0.5)/0.5 = 1, +0.1 bias, ReLU, identity → 1.1.
	require.InDelta(t, 1.1, out.At(0), 1e-12)
	// Pixel 1: normalized to 0, -0.1 bias, ReLU clamps → 0.
	require.InDelta(t, 0.0, out.At(1), 1e-12)
}

// TestLoadMissingFile surfaces the filesystem error.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

// TestBuildConv2d wires kernel weights and biases through.
func TestBuildConv2d(t *testing.T) {
	mf := &ModelFile{Layers: []LayerSpec{
		{
			Kind: "conv2d", InChannels: 1, OutChannels: 1,
			Kernel: 2, Stride: 1, Padding: 0,
			WeightFlat: []float64{1, 0, 0, 1}, Bias: []float64{0.5},
		},
	}}
	model, err := Build(mf)
	require.NoError(t, err)

	in, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{1, 2, 2})
	require.NoError(t, err)
	out := model.Forward(in)
	require.InDelta(t, 5.5, out.At(0), 1e-12) // 1 + 4 + 0.5
}

// TestBuildValidation rejects malformed model descriptions.
func TestBuildValidation(t *testing.T) {
	_, err := Build(&ModelFile{})
	require.Error(t, err, "no layers")

	_, err = Build(&ModelFile{Layers: []LayerSpec{{Kind: "softmax"}}})
	require.Error(t, err, "unknown kind")

	_, err = Build(&ModelFile{Layers: []LayerSpec{
		{Kind: "flatten"},
		{Kind: "normalize", Means: []float64{0.5}, SDs: []float64{0.5}},
	}})
	require.Error(t, err, "normalize not first")

	_, err = Build(&ModelFile{Layers: []LayerSpec{
		{Kind: "conv2d", InChannels: 1, OutChannels: 1, Kernel: 2, Stride: 1,
			WeightFlat: []float64{1, 2}},
	}})
	require.Error(t, err, "conv weight length mismatch")

	_, err = Build(&ModelFile{Layers: []LayerSpec{
		{Kind: "linear", Weight: [][]float64{{1, 2}, {3}}},
	}})
	require.Error(t, err, "ragged linear weight")
}

// TestLoadInvalidJSON a parse failure names the file.
func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
