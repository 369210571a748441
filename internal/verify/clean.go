package verify

import (
	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/tensor"
)

// Clean is the degenerate strategy that only checks the clean prediction.
//
// It provides no radius guarantee whatsoever: a true verdict says nothing
// about any perturbed input. It exists as a baseline and must be labeled
// non-authoritative in any report.
type Clean struct {
	base
}

func newClean(ds string, model *nn.Sequential, o options) (*Clean, error) {
	b, err := newBase(ds, model, o)
	if err != nil {
		return nil, err
	}
	return &Clean{base: b}, nil
}

// Verify reports whether the clean prediction matches label. The norm and
// radius are ignored.
func (c *Clean) Verify(input *tensor.Tensor, label int, _ Norm, _ float64) (bool, error) {
	return c.cleanPredict(input) == label, nil
}
