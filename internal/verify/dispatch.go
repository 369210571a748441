package verify

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/tensor"
)

// BoundOracle is the contract shared by the single-phase sound backends.
//
// CalculateBound establishes per-stage value bounds for the inf-norm ball of
// radius eps around the flattened, de-normalized input x; it must be called
// before Verify and a new call replaces all prior state. Verify then answers
// the one-vs-one query: is the logit of label never below the logit of other
// anywhere in the ball established by the last CalculateBound call?
type BoundOracle interface {
	CalculateBound(x []float64, eps float64)
	Verify(label, other int) bool
}

// strategy is what a concrete sound backend plugs into the dispatcher.
// prepare runs once per adaptor at the first Verify call; bound and certify
// run per input, in that order.
type strategy interface {
	prepare(m *nn.Materialized, inMin, inMax float64) error
	bound(x []float64, eps float64) error
	certify(label, other int) (bool, error)
}

// dispatcher drives every sound strategy through the shared verification
// protocol: clean-prediction short-circuit, lazy one-time solver
// construction keyed to the first input's shape, de-normalization of input
// and radius, and the all-pairs-vs-label certification loop.
type dispatcher struct {
	base
	name  string
	strat strategy

	// Lifecycle: Uninitialized (ready == false) until the first Verify call
	// materializes the model and prepares the strategy; Ready thereafter.
	// initShape pins the input shape the solver state was specialized to.
	ready     bool
	initShape tensor.Shape
}

func newDispatcher(ds string, model *nn.Sequential, o options, name string, strat strategy) (*dispatcher, error) {
	b, err := newBase(ds, model, o)
	if err != nil {
		return nil, err
	}
	return &dispatcher{base: b, name: name, strat: strat}, nil
}

// init performs the Uninitialized → Ready transition: materialize the model
// for the observed shape and build the strategy's solver state.
func (d *dispatcher) init(shape tensor.Shape) error {
	start := time.Now()
	matd, err := nn.Transform(d.tail(), shape)
	if err != nil {
		return fmt.Errorf("verify %s: materialize: %w", d.name, err)
	}
	if matd.Out() != d.numClasses {
		return fmt.Errorf("verify %s: model has %d outputs, dataset %q has %d classes",
			d.name, matd.Out(), d.dataset, d.numClasses)
	}
	if err := d.strat.prepare(matd, d.inMin, d.inMax); err != nil {
		return fmt.Errorf("verify %s: prepare solver: %w", d.name, err)
	}
	d.initShape = shape.Clone()
	d.ready = true
	d.log.Info("verifier initialized",
		zap.String("method", d.name),
		zap.Ints("shape", shape),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Verify implements the Adaptor contract.
//
// The verdict is false the moment any one-vs-one query fails to certify;
// solver failures and timeouts count as non-certification, not errors, so a
// sweep over many inputs sees one verdict per input and never aborts.
func (d *dispatcher) Verify(input *tensor.Tensor, label int, norm Norm, radius float64) (bool, error) {
	if norm != NormInf {
		return false, fmt.Errorf("verify %s: %w (got %q)", d.name, ErrUnsupportedNorm, norm)
	}
	if label < 0 || label >= d.numClasses {
		return false, fmt.Errorf("verify %s: label %d out of range [0, %d)", d.name, label, d.numClasses)
	}

	if !d.ready {
		if err := d.init(input.Shape()); err != nil {
			return false, err
		}
	} else if !d.initShape.Equal(input.Shape()) {
		return false, fmt.Errorf("verify %s: %w: initialized with %v, got %v",
			d.name, ErrShapeMismatch, d.initShape, input.Shape())
	}

	// Robustness is meaningless for an already-wrong prediction.
	if d.cleanPredict(input) != label {
		return false, nil
	}
	if radius == 0 {
		return true, nil
	}

	mRadius := radius / d.coef
	flat := d.preprocess(input)
	if err := d.strat.bound(flat, mRadius); err != nil {
		d.log.Debug("bound computation failed, treating as non-certification",
			zap.String("method", d.name), zap.Error(err))
		return false, nil
	}

	for i := 0; i < d.numClasses; i++ {
		if i == label {
			continue
		}
		ok, err := d.strat.certify(label, i)
		if err != nil {
			d.log.Debug("pairwise query failed, treating as non-certification",
				zap.String("method", d.name), zap.Int("other", i), zap.Error(err))
			return false, nil
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
