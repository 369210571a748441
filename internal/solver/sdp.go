package solver

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SDPTerm is one coefficient of a linear functional over a symmetric matrix
// variable P: Coef * P[I,J].
type SDPTerm struct {
	I, J int
	Coef float64
}

// SDPConstraint is a linear constraint over P. When Eq is true the
// constraint is Σ Terms = RHS, otherwise Σ Terms ≤ RHS.
type SDPConstraint struct {
	Terms []SDPTerm
	RHS   float64
	Eq    bool
}

// SemidefiniteProgram is
//
//	maximize  Σ Objective over P
//	s.t.      Constraints, P ⪰ 0, P[0,0] = 1
//
// over an N×N symmetric matrix P.
type SemidefiniteProgram struct {
	N           int
	Objective   []SDPTerm
	Constraints []SDPConstraint
}

const (
	sdpMaxIter     = 2000
	sdpFeasTol     = 1e-6
	sdpStallTol    = 1e-8
	sdpStallWindow = 25
)

// Maximize runs a projected-gradient penalty method: ascend the penalized
// objective, project back onto the PSD cone after every step, and pin
// P[0,0] to 1.
//
// The result is StatusOptimal only when the iterate is feasible within
// tolerance and the objective has stalled; anything weaker is reported as
// StatusInaccurate (or StatusTimeLimit) so callers refuse to certify from it.
func (p *SemidefiniteProgram) Maximize(opts Options) Result {
	if p.N <= 0 {
		return Result{Status: StatusError}
	}
	deadline := opts.deadline()

	P := mat.NewSymDense(p.N, nil)
	for i := 0; i < p.N; i++ {
		P.SetSym(i, i, 1)
	}

	prev := math.Inf(-1)
	stall := 0
	mu := 10.0
	for iter := 0; iter < sdpMaxIter; iter++ {
		if expired(deadline) {
			return Result{Status: StatusTimeLimit, Value: evalTerms(p.Objective, P)}
		}

		grad := mat.NewSymDense(p.N, nil)
		addTerms(grad, p.Objective, 1)
		for _, c := range p.Constraints {
			r := evalTerms(c.Terms, P) - c.RHS
			switch {
			case c.Eq:
				addTerms(grad, c.Terms, -mu*r)
			case r > 0:
				addTerms(grad, c.Terms, -mu*r)
			}
		}

		step := 1.0 / (mu * math.Sqrt(float64(iter+1)))
		for i := 0; i < p.N; i++ {
			for j := i; j < p.N; j++ {
				P.SetSym(i, j, P.At(i, j)+step*grad.At(i, j))
			}
		}

		if !projectPSD(P) {
			return Result{Status: StatusError}
		}
		// Pin the homogenization entry.
		if p00 := P.At(0, 0); p00 > 1e-12 {
			scalePSD(P, 1/p00)
		} else {
			P.SetSym(0, 0, 1)
		}

		// Grow the penalty slowly.
		if iter%100 == 99 {
			mu *= 2
		}

		obj := evalTerms(p.Objective, P)
		if math.Abs(obj-prev) < sdpStallTol {
			stall++
		} else {
			stall = 0
		}
		prev = obj
		if stall >= sdpStallWindow && p.maxViolation(P) <= sdpFeasTol {
			if opts.Verbose {
				log.Printf("solver: sdp converged after %d iterations, value %g", iter+1, obj)
			}
			return Result{Status: StatusOptimal, Value: obj}
		}
	}

	return Result{Status: StatusInaccurate, Value: evalTerms(p.Objective, P)}
}

// maxViolation returns the largest constraint violation at P.
func (p *SemidefiniteProgram) maxViolation(P *mat.SymDense) float64 {
	worst := 0.0
	for _, c := range p.Constraints {
		r := evalTerms(c.Terms, P) - c.RHS
		if c.Eq {
			r = math.Abs(r)
		}
		if r > worst {
			worst = r
		}
	}
	return worst
}

// evalTerms computes Σ coef * P[i,j].
func evalTerms(terms []SDPTerm, P *mat.SymDense) float64 {
	v := 0.0
	for _, t := range terms {
		v += t.Coef * P.At(t.I, t.J)
	}
	return v
}

// addTerms accumulates scale * terms into a symmetric gradient matrix.
func addTerms(g *mat.SymDense, terms []SDPTerm, scale float64) {
	for _, t := range terms {
		i, j := t.I, t.J
		if i > j {
			i, j = j, i
		}
		g.SetSym(i, j, g.At(i, j)+scale*t.Coef)
	}
}

// projectPSD replaces P with its projection onto the PSD cone by clamping
// negative eigenvalues to zero. Returns false if the factorization fails.
func projectPSD(P *mat.SymDense) bool {
	var eig mat.EigenSym
	if !eig.Factorize(P, true) {
		return false
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	n := P.SymmetricDim()
	neg := false
	for _, v := range vals {
		if v < 0 {
			neg = true
			break
		}
	}
	if !neg {
		return true
	}
	for i, v := range vals {
		if v < 0 {
			vals[i] = 0
		}
	}
	// P = V diag(vals) Vᵀ
	var scaled mat.Dense
	scaled.CloneFrom(&vecs)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, scaled.At(i, j)*vals[j])
		}
	}
	var out mat.Dense
	out.Mul(&scaled, vecs.T())
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			P.SetSym(i, j, (out.At(i, j)+out.At(j, i))/2)
		}
	}
	return true
}

// scalePSD multiplies every entry of P by s.
func scalePSD(P *mat.SymDense, s float64) {
	n := P.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			P.SetSym(i, j, P.At(i, j)*s)
		}
	}
}
