package verify

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/tensor"
)

// pgdIters and pgdStepDiv fix the attack budget: 100 steps of radius/50,
// no random restart.
const (
	pgdIters   = 100
	pgdStepDiv = 50.0
)

// PGD is the projected-gradient-descent attack strategy.
//
// It is a lower-bound oracle, not a verifier: a true verdict only means the
// bounded first-order search failed to flip the label, which is necessary
// but never sufficient for robustness. It must never be conflated with the
// sound bound-propagation verdicts.
//
// The attack runs in the original pixel space: the model is materialized
// with its normalization layer folded into the first affine stage, steps
// follow the sign of the input gradient, and iterates are projected onto
// the radius ball intersected with [0,1].
type PGD struct {
	base

	ready     bool
	initShape tensor.Shape
	matd      *nn.Materialized // full model, raw pixel space
}

func newPGD(ds string, model *nn.Sequential, o options) (*PGD, error) {
	b, err := newBase(ds, model, o)
	if err != nil {
		return nil, err
	}
	return &PGD{base: b}, nil
}

func (p *PGD) init(shape tensor.Shape) error {
	start := time.Now()
	matd, err := nn.Transform(p.model, shape)
	if err != nil {
		return fmt.Errorf("verify pgd: materialize: %w", err)
	}
	if matd.Out() != p.numClasses {
		return fmt.Errorf("verify pgd: model has %d outputs, dataset %q has %d classes",
			matd.Out(), p.dataset, p.numClasses)
	}
	p.matd = matd
	p.initShape = shape.Clone()
	p.ready = true
	p.log.Info("verifier initialized",
		zap.String("method", "pgd"),
		zap.Ints("shape", shape),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Verify runs the attack and reports whether it failed to find a
// misclassified point in the ball.
func (p *PGD) Verify(input *tensor.Tensor, label int, norm Norm, radius float64) (bool, error) {
	if norm != NormInf {
		return false, fmt.Errorf("verify pgd: %w (got %q)", ErrUnsupportedNorm, norm)
	}
	if label < 0 || label >= p.numClasses {
		return false, fmt.Errorf("verify pgd: label %d out of range [0, %d)", label, p.numClasses)
	}
	if !p.ready {
		if err := p.init(input.Shape()); err != nil {
			return false, err
		}
	} else if !p.initShape.Equal(input.Shape()) {
		return false, fmt.Errorf("verify pgd: %w: initialized with %v, got %v",
			ErrShapeMismatch, p.initShape, input.Shape())
	}

	if p.cleanPredict(input) != label {
		return false, nil
	}
	if radius == 0 {
		return true, nil
	}

	orig := input.Flatten()
	x := make([]float64, len(orig))
	copy(x, orig)
	step := radius / pgdStepDiv

	obj := mat.NewVecDense(p.numClasses, nil)
	for iter := 0; iter < pgdIters; iter++ {
		scores := p.matd.Forward(x)
		target := strongestOther(scores, label)
		if scores[target] > scores[label] {
			return false, nil // found a misclassification inside the ball
		}

		// Ascend logit(target) - logit(label).
		for i := 0; i < p.numClasses; i++ {
			obj.SetVec(i, 0)
		}
		obj.SetVec(target, 1)
		obj.SetVec(label, -1)
		grad := p.matd.Gradient(x, obj)

		for i := range x {
			switch {
			case grad[i] > 0:
				x[i] += step
			case grad[i] < 0:
				x[i] -= step
			}
			// Project onto the ball, then onto valid pixel intensities.
			if x[i] > orig[i]+radius {
				x[i] = orig[i] + radius
			}
			if x[i] < orig[i]-radius {
				x[i] = orig[i] - radius
			}
			if x[i] > 1 {
				x[i] = 1
			}
			if x[i] < 0 {
				x[i] = 0
			}
		}
	}

	scores := p.matd.Forward(x)
	return argmax(scores) == label, nil
}

// strongestOther returns the non-label class with the highest score.
func strongestOther(scores []float64, label int) int {
	best := -1
	for i, v := range scores {
		if i == label {
			continue
		}
		if best < 0 || v > scores[best] {
			best = i
		}
	}
	return best
}

func argmax(scores []float64) int {
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return best
}
