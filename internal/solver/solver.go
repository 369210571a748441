// Package solver hosts the constrained-optimization backends used by the
// exact and relaxed verifiers: a simplex bridge for linear programs, a
// branch-and-bound layer for mixed-integer programs, and a first-order
// positive-semidefinite solver for SDP relaxations.
//
// Every solve returns a Result carrying a Status and a signed objective
// Value. Callers must gate on Result.Optimal() before trusting Value; a
// timeout or numerical failure is reported as a non-optimal status, never as
// a panic. The time budget is threaded through Options on each call; there
// is no package-level configuration state.
package solver

import "time"

// Status reports how a solve terminated.
type Status string

const (
	// StatusOptimal means the solver proved optimality of Value.
	StatusOptimal Status = "optimal"
	// StatusInfeasible means the constraints admit no solution.
	StatusInfeasible Status = "infeasible"
	// StatusUnbounded means the objective is unbounded over the feasible set.
	StatusUnbounded Status = "unbounded"
	// StatusTimeLimit means the time budget expired before optimality.
	StatusTimeLimit Status = "time_limit"
	// StatusInaccurate means the solver stopped without meeting tolerances.
	StatusInaccurate Status = "inaccurate"
	// StatusError means the solve failed numerically.
	StatusError Status = "error"
)

// Result is the outcome of one solve.
type Result struct {
	Status Status
	Value  float64
}

// Optimal reports whether the result's status is in the success-marker set.
// Only then is Value a proven optimum.
func (r Result) Optimal() bool {
	return r.Status == StatusOptimal
}

// Options configures a single solve call.
type Options struct {
	// TimeLimit bounds the wall-clock time of the solve. Zero means no limit.
	TimeLimit time.Duration
	// Verbose enables solver progress output.
	Verbose bool
}

// DefaultOptions returns the options used when a caller passes none:
// a 30 second budget per solve, quiet.
func DefaultOptions() Options {
	return Options{TimeLimit: 30 * time.Second}
}

// deadline converts the time limit to an absolute deadline.
// The zero time means no deadline.
func (o Options) deadline() time.Time {
	if o.TimeLimit <= 0 {
		return time.Time{}
	}
	return time.Now().Add(o.TimeLimit)
}

// expired reports whether the deadline has passed.
func expired(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}
