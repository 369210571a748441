package solver

import (
	"errors"
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// simplexTol is the pivot tolerance handed to gonum's simplex.
const simplexTol = 1e-9

// LinearProgram is a general-form linear program over free variables:
//
//	minimize  cᵀx
//	s.t.      G x ≤ h
//	          A x = b
//
// G/h or A/b may be nil when there are no constraints of that kind.
type LinearProgram struct {
	C []float64
	G *mat.Dense
	H []float64
	A *mat.Dense
	B []float64
}

// NumVars returns the number of decision variables.
func (p *LinearProgram) NumVars() int {
	return len(p.C)
}

// Solve minimizes the program with gonum's simplex method.
//
// The general form is converted to standard form by splitting each free
// variable into a positive and a negative part and adding one slack per
// inequality row. On success the returned slice holds the optimal point in
// the original variables.
func (p *LinearProgram) Solve(opts Options) (Result, []float64) {
	n := len(p.C)
	if n == 0 || p.validate() != nil {
		return Result{Status: StatusError}, nil
	}
	mG := 0
	if p.G != nil {
		mG, _ = p.G.Dims()
	}
	mA := 0
	if p.A != nil {
		mA, _ = p.A.Dims()
	}
	if mG != len(p.H) || mA != len(p.B) {
		return Result{Status: StatusError}, nil
	}
	if mG+mA == 0 {
		// Free minimization of a linear function.
		return Result{Status: StatusUnbounded}, nil
	}

	// Standard form: variables [x⁺ x⁻ s], all ≥ 0, x = x⁺ − x⁻.
	cols := 2*n + mG
	rows := mG + mA
	c := make([]float64, cols)
	for j := 0; j < n; j++ {
		c[j] = p.C[j]
		c[n+j] = -p.C[j]
	}
	a := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	for i := 0; i < mG; i++ {
		for j := 0; j < n; j++ {
			v := p.G.At(i, j)
			a.Set(i, j, v)
			a.Set(i, n+j, -v)
		}
		a.Set(i, 2*n+i, 1) // slack
		b[i] = p.H[i]
	}
	for i := 0; i < mA; i++ {
		for j := 0; j < n; j++ {
			v := p.A.At(i, j)
			a.Set(mG+i, j, v)
			a.Set(mG+i, n+j, -v)
		}
		b[mG+i] = p.B[i]
	}

	if opts.Verbose {
		log.Printf("solver: lp %d vars, %d ineq, %d eq", n, mG, mA)
	}

	optF, optX, err := lp.Simplex(c, a, b, simplexTol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return Result{Status: StatusInfeasible}, nil
		case errors.Is(err, lp.ErrUnbounded):
			return Result{Status: StatusUnbounded}, nil
		default:
			if opts.Verbose {
				log.Printf("solver: simplex failed: %v", err)
			}
			return Result{Status: StatusError}, nil
		}
	}

	x := make([]float64, n)
	for j := 0; j < n; j++ {
		x[j] = optX[j] - optX[n+j]
	}
	return Result{Status: StatusOptimal, Value: optF}, x
}

// validate sanity-checks constraint dimensions against the variable count.
func (p *LinearProgram) validate() error {
	n := len(p.C)
	if p.G != nil {
		if _, c := p.G.Dims(); c != n {
			return fmt.Errorf("lp: G has %d columns, want %d", c, n)
		}
	}
	if p.A != nil {
		if _, c := p.A.Dims(); c != n {
			return fmt.Errorf("lp: A has %d columns, want %d", c, n)
		}
	}
	return nil
}
