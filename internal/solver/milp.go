package solver

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
)

// integralityTol decides when a relaxed binary counts as integral.
const integralityTol = 1e-6

// MixedIntegerProgram is a LinearProgram in which the variables listed in
// Binary are additionally constrained to {0, 1}.
//
// The continuous relaxation must already bound those variables to [0, 1]
// through G/h; branching only adds fixings.
type MixedIntegerProgram struct {
	LinearProgram
	Binary []int
}

// node is one subproblem in the branch-and-bound tree: a set of binaries
// fixed to 0 or 1.
type node struct {
	fixed map[int]float64
}

// Solve minimizes the program by depth-first branch-and-bound over the
// binary variables, using the simplex relaxation at every node.
//
// On StatusOptimal the Value is the proven minimum. If the time budget
// expires the result carries the best incumbent found so far under
// StatusTimeLimit, which callers must treat as non-certification.
func (p *MixedIntegerProgram) Solve(opts Options) Result {
	deadline := opts.deadline()

	incumbent := math.Inf(1)
	haveIncumbent := false

	stack := []node{{fixed: map[int]float64{}}}
	for len(stack) > 0 {
		if expired(deadline) {
			res := Result{Status: StatusTimeLimit}
			if haveIncumbent {
				res.Value = incumbent
			}
			return res
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rel := p.relaxation(nd)
		res, x := rel.Solve(opts)
		switch res.Status {
		case StatusInfeasible:
			continue
		case StatusOptimal:
			// fall through
		default:
			// A failed node relaxation poisons the proof of optimality.
			return Result{Status: StatusError}
		}

		// Bound: the relaxation value cannot improve on the incumbent.
		if haveIncumbent && res.Value >= incumbent-integralityTol {
			continue
		}

		branch, ok := p.mostFractional(x, nd.fixed)
		if !ok {
			// Integral: a candidate solution.
			if res.Value < incumbent {
				incumbent = res.Value
				haveIncumbent = true
				if opts.Verbose {
					log.Printf("solver: milp incumbent %g (%d nodes pending)", incumbent, len(stack))
				}
			}
			continue
		}

		// Branch on the most fractional binary, rounding-preferred side last
		// so depth-first explores it first.
		lo := copyFixed(nd.fixed)
		lo[branch] = 0
		hi := copyFixed(nd.fixed)
		hi[branch] = 1
		if x[branch] < 0.5 {
			stack = append(stack, node{fixed: hi}, node{fixed: lo})
		} else {
			stack = append(stack, node{fixed: lo}, node{fixed: hi})
		}
	}

	if !haveIncumbent {
		return Result{Status: StatusInfeasible}
	}
	return Result{Status: StatusOptimal, Value: incumbent}
}

// relaxation builds the node's LP: the continuous program plus equality
// fixings for the branched binaries.
func (p *MixedIntegerProgram) relaxation(nd node) *LinearProgram {
	rel := &LinearProgram{C: p.C, G: p.G, H: p.H}

	mA := 0
	if p.A != nil {
		mA, _ = p.A.Dims()
	}
	rows := mA + len(nd.fixed)
	if rows == 0 {
		return rel
	}
	n := len(p.C)
	a := mat.NewDense(rows, n, nil)
	b := make([]float64, rows)
	if p.A != nil {
		a.Slice(0, mA, 0, n).(*mat.Dense).Copy(p.A)
		copy(b[:mA], p.B)
	}
	i := mA
	for v, val := range nd.fixed {
		a.Set(i, v, 1)
		b[i] = val
		i++
	}
	rel.A = a
	rel.B = b
	return rel
}

// mostFractional returns the unfixed binary farthest from integrality,
// or ok=false when the point is integral on all binaries.
func (p *MixedIntegerProgram) mostFractional(x []float64, fixed map[int]float64) (int, bool) {
	best, bestDist := -1, integralityTol
	for _, v := range p.Binary {
		if _, isFixed := fixed[v]; isFixed {
			continue
		}
		dist := math.Min(x[v], 1-x[v])
		if dist > bestDist {
			best, bestDist = v, dist
		}
	}
	return best, best >= 0
}

func copyFixed(m map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
