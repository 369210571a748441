package verify

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/certgo-ml/certgo/internal/nn"
)

// affineBlock is a maximal run of consecutive affine stages composed into a
// single map y = W x + b. The constraint encoders (MILP, SDP) see the model
// as blocks[0] → ReLU → blocks[1] → ReLU → ... → blocks[last], which lines
// up with the per-ReLU layout of PreBounds.
type affineBlock struct {
	W *mat.Dense
	B *mat.VecDense
}

// affineBlocks composes the materialized stages into ReLU-separated affine
// blocks. The model must start and end with an affine stage and have no two
// adjacent ReLU stages.
func affineBlocks(m *nn.Materialized) ([]affineBlock, error) {
	var blocks []affineBlock
	var cur *affineBlock

	for k := 0; k < m.NumStages(); k++ {
		s := m.Stage(k)
		switch s.Kind {
		case nn.StageAffine:
			if cur == nil {
				cur = &affineBlock{W: mat.DenseCopyOf(s.W), B: mat.VecDenseCopyOf(s.B)}
				continue
			}
			// Compose: y = W2(W1 x + b1) + b2.
			rows, _ := s.W.Dims()
			_, cols := cur.W.Dims()
			w := mat.NewDense(rows, cols, nil)
			w.Mul(s.W, cur.W)
			b := mat.NewVecDense(rows, nil)
			b.MulVec(s.W, cur.B)
			b.AddVec(b, s.B)
			cur = &affineBlock{W: w, B: b}
		case nn.StageReLU:
			if cur == nil {
				return nil, fmt.Errorf("verify: model has a ReLU with no preceding affine stage")
			}
			blocks = append(blocks, *cur)
			cur = nil
		}
	}
	if cur == nil {
		return nil, fmt.Errorf("verify: model must end with an affine stage")
	}
	blocks = append(blocks, *cur)
	return blocks, nil
}
