package verify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/certgo-ml/certgo/internal/dataset"
	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/tensor"
)

// base carries what every strategy needs: the model, the class count, and
// the normalization bookkeeping that converts between the original pixel
// space and the space the model computes in.
type base struct {
	dataset    string
	model      *nn.Sequential
	norm       *nn.Normalize // layer 0 if present, else nil
	numClasses int

	// coef converts a radius in original pixel space to model-input space:
	// mRadius = radius / coef.
	coef float64
	// inMin/inMax bound any de-normalized pixel value; the worst-case
	// interval image of [0,1] under (x-mean)/sd across channels.
	inMin, inMax float64

	log *zap.Logger
}

func newBase(ds string, model *nn.Sequential, o options) (base, error) {
	if model == nil || model.Len() == 0 {
		return base{}, fmt.Errorf("verify: model is empty")
	}
	classes, err := dataset.NumClasses(ds)
	if err != nil {
		return base{}, fmt.Errorf("verify: %w", err)
	}
	b := base{
		dataset:    ds,
		model:      model,
		numClasses: classes,
		coef:       1.0,
		inMin:      0.0,
		inMax:      1.0,
		log:        o.log,
	}
	if nl, ok := model.Layer(0).(*nn.Normalize); ok {
		b.norm = nl
		b.coef = normScale(nl)
		b.inMin, b.inMax = validInputRange(nl)
	}
	return b, nil
}

// normScale returns the radius scaling coefficient for a normalization
// layer: the smallest per-channel standard deviation. A radius r in pixel
// space grows to at least r/min(sds) in normalized space, so dividing by
// this coefficient is the conservative conversion.
func normScale(nl *nn.Normalize) float64 {
	sds := nl.OrigSDs()
	min := sds[0]
	for _, sd := range sds[1:] {
		if sd < min {
			min = sd
		}
	}
	return min
}

// validInputRange propagates the raw pixel interval [0,1] through
// x' = (x - mean)/sd, taking at each step the mean/sd extreme that widens
// the interval the most. Only scalar bounds are tracked, so the min/max
// over channels stands in for the per-channel exact value.
func validInputRange(nl *nn.Normalize) (float64, float64) {
	means, sds := nl.OrigMeans(), nl.OrigSDs()
	minMean, maxMean := minMax(means)
	minSD, maxSD := minMax(sds)

	inMin := 0.0 - maxMean
	inMax := 1.0 - minMean
	if inMin <= 0 {
		inMin /= minSD
	} else {
		inMin /= maxSD
	}
	if inMax <= 0 {
		inMax /= maxSD
	} else {
		inMax /= minSD
	}
	return inMin, inMax
}

func minMax(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// cleanPredict evaluates the unperturbed model (normalization included) and
// returns the predicted class.
func (b *base) cleanPredict(input *tensor.Tensor) int {
	pred, _ := nn.Predict(b.model, input)
	return pred
}

// preprocess converts a raw-space input to the flattened model-input-space
// vector the bound oracles expect.
func (b *base) preprocess(input *tensor.Tensor) []float64 {
	if b.norm != nil {
		return b.norm.Forward(input).Flatten()
	}
	return input.Flatten()
}

// tail returns the model without its normalization layer; the part the
// sound verifiers materialize.
func (b *base) tail() *nn.Sequential {
	if b.norm != nil {
		return b.model.Tail(1)
	}
	return b.model
}
