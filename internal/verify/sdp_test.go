package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/solver"
	"github.com/certgo-ml/certgo/internal/tensor"
)

// TestSDPEncodeLayout checks the moment-matrix dimensions, the constraint
// census and the objective of the relaxation for the hinge net.
func TestSDPEncodeLayout(t *testing.T) {
	matd, err := nn.Transform(hingeNet2(t), tensor.Shape{1})
	require.NoError(t, err)
	v, err := NewSDPVerifier(matd)
	require.NoError(t, err)

	bl := [][]float64{{0.15}, {0, 0.4}, {0, 0}}
	bu := [][]float64{{0.3}, {0.1, 0.55}, {0, 0}}
	prog, objConst, err := v.encode(bl, bu, 1, 0)
	require.NoError(t, err)

	// 1 homogenization + 1 input + 2 post-activations.
	require.Equal(t, 4, prog.N)

	// Three box rows per variable (3 vars) plus three ReLU rows per neuron
	// (2 neurons): 9 + 6.
	require.Len(t, prog.Constraints, 15)

	eqs := 0
	for _, c := range prog.Constraints {
		if c.Eq {
			eqs++
		}
	}
	require.Equal(t, 2, eqs) // one quadratic identity per neuron

	// Objective: logit(0) - logit(1) over the post variables is [1, -1].
	require.Len(t, prog.Objective, 2)
	require.InDelta(t, 0.0, objConst, 1e-12)
}

// TestSDPEncodeArityMismatch the bound layout must have one entry per
// affine block plus the input box.
func TestSDPEncodeArityMismatch(t *testing.T) {
	matd, err := nn.Transform(hingeNet2(t), tensor.Shape{1})
	require.NoError(t, err)
	v, err := NewSDPVerifier(matd)
	require.NoError(t, err)

	res := v.Run([][]float64{{0}}, [][]float64{{1}}, 0, 1, solver.DefaultOptions())
	require.Equal(t, solver.StatusError, res.Status)
	require.Equal(t, res, v.Last())
}

// TestSDPRunLinearModel with no ReLU block the relaxation degenerates to a
// box-constrained linear maximization. For the identity model on the box
// [0.75,0.85]x[0.15,0.25] the margin logit(1) - logit(0) tops out at -0.5,
// so certification (value ≤ 0) is the only admissible optimal outcome.
func TestSDPRunLinearModel(t *testing.T) {
	model := nn.NewSequential(linearLayer(t, [][]float64{{1, 0}, {0, 1}}, nil))
	matd, err := nn.Transform(model, tensor.Shape{2})
	require.NoError(t, err)
	v, err := NewSDPVerifier(matd)
	require.NoError(t, err)

	bl := [][]float64{{0.75, 0.15}, {0, 0}}
	bu := [][]float64{{0.85, 0.25}, {0, 0}}
	res := v.Run(bl, bu, 0, 1, solver.DefaultOptions())
	require.NotEqual(t, solver.StatusError, res.Status)
	if res.Optimal() {
		require.LessOrEqual(t, res.Value, 0.05)
	}
}

// TestSDPStrategyOrder certify before bound is an error the dispatcher
// downgrades to non-certification.
func TestSDPStrategyOrder(t *testing.T) {
	matd, err := nn.Transform(hingeNet2(t), tensor.Shape{1})
	require.NoError(t, err)

	s := &sdpStrategy{opts: solver.DefaultOptions()}
	require.NoError(t, s.prepare(matd, 0, 1))
	_, err = s.certify(1, 0)
	require.Error(t, err)
}

// TestClampPost the input box passes through; later entries lose their
// negative lower bounds.
func TestClampPost(t *testing.T) {
	in := [][]float64{{-0.5, 0.2}, {-0.1, 0.3}, {-2, 2}}
	out := clampPost(in)
	require.Equal(t, []float64{-0.5, 0.2}, out[0])
	require.Equal(t, []float64{0, 0.3}, out[1])
	require.Equal(t, []float64{0, 2}, out[2])
}
