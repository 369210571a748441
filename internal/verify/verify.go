// Package verify certifies the local robustness of a classifier: given one
// input and its label, is every perturbation inside an infinity-norm ball of
// a given radius still classified the same way?
//
// The package offers interchangeable strategies behind one Adaptor contract:
//
//   - Clean: clean-prediction check only (no radius guarantee, unsound)
//   - PGD: projected-gradient attack, a lower-bound oracle (unsound)
//   - IBP: interval bound propagation (sound)
//   - FastLin: linear relaxation tightened with intervals (sound)
//   - MILP: exact big-M mixed-integer encoding (sound, expensive)
//   - SDP: semidefinite relaxation (sound, expensive)
//
// "Sound" means a true verdict is a certificate: no perturbation in the ball
// flips the prediction. The unsound strategies only report that they failed
// to find a counterexample; they must never be read as proofs.
//
// Radii are expressed in the original pixel space ([0,1] intensities) even
// when the model normalizes its inputs; each adaptor undoes the
// normalization internally.
//
// Adaptors are not safe for concurrent use. A caller verifying inputs in
// parallel must construct one adaptor per goroutine.
package verify

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/solver"
	"github.com/certgo-ml/certgo/internal/tensor"
)

// Norm identifies the perturbation norm family.
type Norm string

// NormInf is the infinity norm, the only norm the verifiers support.
const NormInf Norm = "inf"

var (
	// ErrUnsupportedNorm is returned for any norm other than NormInf.
	// This is a contract violation by the caller, not a non-certification.
	ErrUnsupportedNorm = errors.New("only inf-norm perturbation balls are supported")

	// ErrShapeMismatch is returned when Verify is called with an input whose
	// shape differs from the shape the adaptor's solver state was built for.
	ErrShapeMismatch = errors.New("input shape differs from the verifier's initialization shape")
)

// Adaptor is the single contract every verification strategy implements.
//
// Verify reports whether label is certified (or, for the unsound strategies,
// merely not falsified) for every point within radius of input under the
// given norm. Non-certification (a wrong clean prediction, a failed pairwise
// bound, a solver timeout) is (false, nil); errors are reserved for contract
// violations and construction failures.
type Adaptor interface {
	Verify(input *tensor.Tensor, label int, norm Norm, radius float64) (bool, error)
}

// Method selects a verification strategy. The set is closed; there is no
// registration mechanism.
type Method string

const (
	MethodClean   Method = "clean"
	MethodPGD     Method = "pgd"
	MethodIBP     Method = "ibp"
	MethodFastLin Method = "fastlin"
	MethodMILP    Method = "milp"
	MethodSDP     Method = "sdp"
)

// options carries cross-strategy construction settings.
type options struct {
	log    *zap.Logger
	solver solver.Options
}

// Option configures adaptor construction.
type Option func(*options)

// WithLogger routes init-timing and verdict diagnostics to the given logger.
// The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithSolverOptions sets the per-solve options (time budget, verbosity) used
// by the MILP and SDP strategies. The default is solver.DefaultOptions.
func WithSolverOptions(s solver.Options) Option {
	return func(o *options) { o.solver = s }
}

func buildOptions(opts []Option) options {
	o := options{
		log:    zap.NewNop(),
		solver: solver.DefaultOptions(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// New constructs the adaptor for the given method.
//
// dataset names the dataset the model classifies (it determines the class
// count); model is the trained classifier, optionally with a Normalize layer
// at position 0. The adaptor holds a non-owning reference to the model and
// never mutates it.
func New(method Method, dataset string, model *nn.Sequential, opts ...Option) (Adaptor, error) {
	o := buildOptions(opts)
	switch method {
	case MethodClean:
		return newClean(dataset, model, o)
	case MethodPGD:
		return newPGD(dataset, model, o)
	case MethodIBP:
		return newDispatcher(dataset, model, o, string(MethodIBP), &intervalStrategy{})
	case MethodFastLin:
		return newDispatcher(dataset, model, o, string(MethodFastLin), &fastLinStrategy{})
	case MethodMILP:
		return newDispatcher(dataset, model, o, string(MethodMILP), &milpStrategy{opts: o.solver})
	case MethodSDP:
		return newDispatcher(dataset, model, o, string(MethodSDP), &sdpStrategy{opts: o.solver})
	default:
		return nil, fmt.Errorf("verify: unknown method %q", method)
	}
}
