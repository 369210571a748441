package verify

import (
	"fmt"

	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/solver"
)

// SDPVerifier is the semidefinite-relaxation verifier.
//
// All activations are collected into one vector v = [1, x, a_1, ..., a_R]
// and the moment matrix P = v·vᵀ is relaxed to any PSD matrix satisfying the
// linearized ReLU identities a ⊙ (a - z) = 0, a ≥ 0, a ≥ z and per-variable
// box constraints from the pre-bounds.
//
// Run maximizes the violation margin logit(other) - logit(label): the
// result certifies only when Status is optimal AND Value ≤ 0, the opposite
// sign convention from the MILP backend, because this is the complementary
// maximization.
type SDPVerifier struct {
	m      *nn.Materialized
	blocks []affineBlock

	// Result of the last Run, kept for inspection.
	last solver.Result
}

// NewSDPVerifier creates an SDP verifier for a materialized model.
func NewSDPVerifier(m *nn.Materialized) (*SDPVerifier, error) {
	blocks, err := affineBlocks(m)
	if err != nil {
		return nil, err
	}
	return &SDPVerifier{m: m, blocks: blocks}, nil
}

// Run builds and solves the relaxation for one class pair.
//
// bl/bu use the PreBounds layout with post-activation entries already
// clamped at zero: entry 0 is the input box, entries 1..R bound the
// post-activation vectors, the final entry is ignored.
func (v *SDPVerifier) Run(bl, bu [][]float64, label, other int, opts solver.Options) solver.Result {
	prog, objConst, err := v.encode(bl, bu, label, other)
	if err != nil {
		v.last = solver.Result{Status: solver.StatusError}
		return v.last
	}
	res := prog.Maximize(opts)
	res.Value += objConst
	v.last = res
	return res
}

// Last returns the result of the most recent Run.
func (v *SDPVerifier) Last() solver.Result {
	return v.last
}

func (v *SDPVerifier) encode(bl, bu [][]float64, label, other int) (*solver.SemidefiniteProgram, float64, error) {
	if len(bl) != len(v.blocks)+1 || len(bu) != len(v.blocks)+1 {
		return nil, 0, fmt.Errorf("verify sdp: got %d bound entries, want %d", len(bl), len(v.blocks)+1)
	}
	nIn := v.m.In()
	inner := v.blocks[:len(v.blocks)-1]

	// Matrix index 0 is the homogenization entry; variable i sits at 1+i.
	offset := make([]int, len(inner)+1)
	offset[0] = 1
	dim := 1 + nIn
	for k, blk := range inner {
		rows, _ := blk.W.Dims()
		offset[k+1] = dim
		dim += rows
	}

	prog := &solver.SemidefiniteProgram{N: dim}
	addEq := func(terms []solver.SDPTerm, rhs float64) {
		prog.Constraints = append(prog.Constraints, solver.SDPConstraint{Terms: terms, RHS: rhs, Eq: true})
	}
	addLe := func(terms []solver.SDPTerm, rhs float64) {
		prog.Constraints = append(prog.Constraints, solver.SDPConstraint{Terms: terms, RHS: rhs})
	}

	// Box constraints: l ≤ v_i ≤ u and (v_i - l)(u - v_i) ≥ 0, which
	// linearizes to P[i,i] ≤ (l+u)·P[0,i] - l·u.
	box := func(idx int, l, u float64) {
		addLe([]solver.SDPTerm{{I: 0, J: idx, Coef: 1}}, u)
		addLe([]solver.SDPTerm{{I: 0, J: idx, Coef: -1}}, -l)
		addLe([]solver.SDPTerm{
			{I: idx, J: idx, Coef: 1},
			{I: 0, J: idx, Coef: -(l + u)},
		}, -l*u)
	}
	for j := 0; j < nIn; j++ {
		box(offset[0]+j, bl[0][j], bu[0][j])
	}
	for k := range inner {
		for i := range bl[k+1] {
			box(offset[k+1]+i, bl[k+1][i], bu[k+1][i])
		}
	}

	// ReLU identities per inner block.
	for k, blk := range inner {
		rows, cols := blk.W.Dims()
		prev := offset[k]
		post := offset[k+1]
		for i := 0; i < rows; i++ {
			bi := blk.B.AtVec(i)
			// a ≥ 0
			addLe([]solver.SDPTerm{{I: 0, J: post + i, Coef: -1}}, 0)
			// a ≥ z: Σ W_ij·v_j - a ≤ -b
			ge := make([]solver.SDPTerm, 0, cols+1)
			for j := 0; j < cols; j++ {
				if w := blk.W.At(i, j); w != 0 {
					ge = append(ge, solver.SDPTerm{I: 0, J: prev + j, Coef: w})
				}
			}
			ge = append(ge, solver.SDPTerm{I: 0, J: post + i, Coef: -1})
			addLe(ge, -bi)
			// a·(a - z - b·1) = 0: P[a,a] - Σ W_ij·P[a,v_j] - b·P[0,a] = 0
			eqt := make([]solver.SDPTerm, 0, cols+2)
			eqt = append(eqt, solver.SDPTerm{I: post + i, J: post + i, Coef: 1})
			for j := 0; j < cols; j++ {
				if w := blk.W.At(i, j); w != 0 {
					eqt = append(eqt, solver.SDPTerm{I: post + i, J: prev + j, Coef: -w})
				}
			}
			eqt = append(eqt, solver.SDPTerm{I: 0, J: post + i, Coef: -bi})
			addEq(eqt, 0)
		}
	}

	// Objective: maximize logit(other) - logit(label).
	lastBlk := v.blocks[len(v.blocks)-1]
	_, cols := lastBlk.W.Dims()
	prev := offset[len(inner)]
	for j := 0; j < cols; j++ {
		w := lastBlk.W.At(other, j) - lastBlk.W.At(label, j)
		if w != 0 {
			prog.Objective = append(prog.Objective, solver.SDPTerm{I: 0, J: prev + j, Coef: w})
		}
	}
	objConst := lastBlk.B.AtVec(other) - lastBlk.B.AtVec(label)
	return prog, objConst, nil
}
