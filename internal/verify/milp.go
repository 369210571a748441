package verify

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/solver"
)

// MILPVerifier is the exact verifier: the ReLU network is encoded as a
// mixed-integer program with big-M constraints tightened by pre-bounds, and
// the pairwise margin logit(label) - logit(other) is minimized exactly over
// the perturbation ball.
//
// The two-phase protocol is: Construct once per input with the Fast-Lin
// pre-bounds, then per class pair PrepareVerify followed by Run. Run's
// Result is certified only when Status is optimal AND Value ≥ 0: the
// minimized margin must be provably non-negative. (Note the SDP backend
// uses the opposite sign convention.)
type MILPVerifier struct {
	m            *nn.Materialized
	inMin, inMax float64
	blocks       []affineBlock

	// Set by Construct.
	preL, preU [][]float64

	// Set by PrepareVerify.
	prog     *solver.MixedIntegerProgram
	objConst float64
}

// NewMILPVerifier creates a MILP verifier for a materialized model whose
// de-normalized inputs are confined to [inMin, inMax].
func NewMILPVerifier(m *nn.Materialized, inMin, inMax float64) (*MILPVerifier, error) {
	blocks, err := affineBlocks(m)
	if err != nil {
		return nil, err
	}
	return &MILPVerifier{m: m, inMin: inMin, inMax: inMax, blocks: blocks}, nil
}

// Construct installs the pre-bounds and the perturbation ball for the
// current input. preL/preU use the PreBounds layout: input box, one
// pre-activation box per ReLU, output box. x and eps are kept only for
// interface symmetry; the input box already encodes them.
func (v *MILPVerifier) Construct(preL, preU [][]float64, x []float64, eps float64) error {
	if len(preL) != len(v.blocks)+1 || len(preU) != len(v.blocks)+1 {
		return fmt.Errorf("verify milp: got %d pre-bound entries, want %d", len(preL), len(v.blocks)+1)
	}
	_ = x
	_ = eps
	v.preL = preL
	v.preU = preU
	v.prog = nil
	return nil
}

// PrepareVerify builds the program minimizing logit(label) - logit(other).
// Construct must have been called for the current input.
func (v *MILPVerifier) PrepareVerify(label, other int) error {
	if v.preL == nil {
		return fmt.Errorf("verify milp: PrepareVerify before Construct")
	}
	prog, objConst, err := v.encode(label, other)
	if err != nil {
		return err
	}
	v.prog = prog
	v.objConst = objConst
	return nil
}

// Run solves the program prepared by PrepareVerify and returns the solver
// result, with the affine constant of the objective folded into Value.
func (v *MILPVerifier) Run(opts solver.Options) solver.Result {
	if v.prog == nil {
		return solver.Result{Status: solver.StatusError}
	}
	res := v.prog.Solve(opts)
	res.Value += v.objConst
	return res
}

// encode lays out the variables and big-M constraints.
//
// Variable layout: the input vector, then one post-activation vector per
// inner block, then one binary per unstable neuron. z_k denotes the affine
// image W_k·v_{k-1} + b_k; it is an expression, not a variable.
func (v *MILPVerifier) encode(label, other int) (*solver.MixedIntegerProgram, float64, error) {
	nIn := v.m.In()
	inner := v.blocks[:len(v.blocks)-1]

	// Assign variable indices.
	offset := make([]int, len(inner)+1)
	offset[0] = 0 // input starts at 0
	numVars := nIn
	for k, bl := range inner {
		rows, _ := bl.W.Dims()
		offset[k+1] = numVars
		numVars += rows
	}
	type binVar struct{ block, neuron, idx int }
	var binaries []binVar
	for k, bl := range inner {
		rows, _ := bl.W.Dims()
		for i := 0; i < rows; i++ {
			l, u := v.preL[k+1][i], v.preU[k+1][i]
			if l < 0 && u > 0 {
				binaries = append(binaries, binVar{block: k, neuron: i, idx: numVars})
				numVars++
			}
		}
	}

	var g [][]float64
	var h []float64
	var a [][]float64
	var bEq []float64
	ineq := func(row []float64, rhs float64) {
		g = append(g, row)
		h = append(h, rhs)
	}
	eq := func(row []float64, rhs float64) {
		a = append(a, row)
		bEq = append(bEq, rhs)
	}
	row := func() []float64 { return make([]float64, numVars) }

	// Input box (already the ball intersected with [inMin, inMax]).
	for j := 0; j < nIn; j++ {
		r := row()
		r[j] = 1
		ineq(r, v.preU[0][j])
		r = row()
		r[j] = -1
		ineq(r, -v.preL[0][j])
	}

	binAt := make(map[[2]int]int, len(binaries))
	for _, bv := range binaries {
		binAt[[2]int{bv.block, bv.neuron}] = bv.idx
	}

	for k, bl := range inner {
		rows, cols := bl.W.Dims()
		prev := offset[k]
		post := offset[k+1]
		for i := 0; i < rows; i++ {
			l, u := v.preL[k+1][i], v.preU[k+1][i]
			switch {
			case u <= 0:
				// Dead neuron: a = 0.
				r := row()
				r[post+i] = 1
				eq(r, 0)
			case l >= 0:
				// Active neuron: a = z.
				r := row()
				r[post+i] = 1
				for j := 0; j < cols; j++ {
					r[prev+j] = -bl.W.At(i, j)
				}
				eq(r, bl.B.AtVec(i))
			default:
				d := binAt[[2]int{k, i}]
				// a ≥ 0
				r := row()
				r[post+i] = -1
				ineq(r, 0)
				// a ≥ z  ⇔  z - a ≤ 0
				r = row()
				r[post+i] = -1
				for j := 0; j < cols; j++ {
					r[prev+j] = bl.W.At(i, j)
				}
				ineq(r, -bl.B.AtVec(i))
				// a ≤ u·d
				r = row()
				r[post+i] = 1
				r[d] = -u
				ineq(r, 0)
				// a ≤ z - l(1-d)  ⇔  a - z - l·d ≤ -l
				r = row()
				r[post+i] = 1
				r[d] = -l
				for j := 0; j < cols; j++ {
					r[prev+j] = -bl.W.At(i, j)
				}
				ineq(r, bl.B.AtVec(i)-l)
				// d ∈ [0, 1]
				r = row()
				r[d] = 1
				ineq(r, 1)
				r = row()
				r[d] = -1
				ineq(r, 0)
			}
		}
	}

	// Objective: minimize the pairwise margin through the final block.
	last := v.blocks[len(v.blocks)-1]
	_, cols := last.W.Dims()
	c := make([]float64, numVars)
	prev := offset[len(inner)]
	for j := 0; j < cols; j++ {
		c[prev+j] = last.W.At(label, j) - last.W.At(other, j)
	}
	objConst := last.B.AtVec(label) - last.B.AtVec(other)

	prog := &solver.MixedIntegerProgram{
		LinearProgram: solver.LinearProgram{
			C: c,
			G: denseFromRows(g, numVars),
			H: h,
			A: denseFromRows(a, numVars),
			B: bEq,
		},
	}
	for _, bv := range binaries {
		prog.Binary = append(prog.Binary, bv.idx)
	}
	return prog, objConst, nil
}

func denseFromRows(rows [][]float64, cols int) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	d := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		d.SetRow(i, r)
	}
	return d
}
