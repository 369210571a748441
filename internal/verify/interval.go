package verify

import (
	"github.com/certgo-ml/certgo/internal/nn"
)

// IntervalBound is the interval-bound-propagation (IBP) engine.
//
// CalculateBound pushes the input box through every stage with interval
// arithmetic: affine stages via the center/radius form, ReLU stages by
// clamping. It is the cheapest sound engine and the loosest.
type IntervalBound struct {
	m            *nn.Materialized
	inMin, inMax float64

	// post[k] is the value interval after k stages; post[0] is the input box.
	postL, postU [][]float64
}

// NewIntervalBound creates an IBP engine for a materialized model whose
// de-normalized inputs are confined to [inMin, inMax].
func NewIntervalBound(m *nn.Materialized, inMin, inMax float64) *IntervalBound {
	return &IntervalBound{m: m, inMin: inMin, inMax: inMax}
}

// CalculateBound computes per-stage bounds for the inf-norm ball of radius
// eps around x. Prior state is replaced entirely.
func (b *IntervalBound) CalculateBound(x []float64, eps float64) {
	l, u := inputBox(x, eps, b.inMin, b.inMax)
	b.postL = [][]float64{l}
	b.postU = [][]float64{u}

	for k := 0; k < b.m.NumStages(); k++ {
		s := b.m.Stage(k)
		switch s.Kind {
		case nn.StageAffine:
			l, u = affineInterval(s, l, u)
		case nn.StageReLU:
			l, u = clampBox(l, u)
		}
		b.postL = append(b.postL, l)
		b.postU = append(b.postU, u)
	}
}

// Verify reports whether logit(label) - logit(other) is provably
// non-negative over the last-calculated ball.
//
// When the final stage is affine the two logit rows are merged into one
// difference row before bounding, which is strictly tighter than comparing
// the separately bounded logits.
func (b *IntervalBound) Verify(label, other int) bool {
	last := b.m.NumStages() - 1
	s := b.m.Stage(last)
	if s.Kind == nn.StageAffine {
		penL := b.postL[last]
		penU := b.postU[last]
		lo := 0.0
		lo += s.B.AtVec(label) - s.B.AtVec(other)
		for j := range penL {
			w := s.W.At(label, j) - s.W.At(other, j)
			if w >= 0 {
				lo += w * penL[j]
			} else {
				lo += w * penU[j]
			}
		}
		return lo >= 0
	}
	out := len(b.postL) - 1
	return b.postL[out][label] >= b.postU[out][other]
}

// PreBounds returns the bound state in the layout the two-phase backends
// consume: entry 0 is the input box, entries 1..R are the pre-activation
// bounds of each ReLU stage in order, and the final entry bounds the output
// logits.
func (b *IntervalBound) PreBounds() (l, u [][]float64) {
	return preLayout(b.m, b.postL, b.postU)
}

// inputBox intersects the eps-ball around x with the valid value interval.
func inputBox(x []float64, eps, inMin, inMax float64) ([]float64, []float64) {
	l := make([]float64, len(x))
	u := make([]float64, len(x))
	for i, v := range x {
		lo, hi := v-eps, v+eps
		if lo < inMin {
			lo = inMin
		}
		if hi > inMax {
			hi = inMax
		}
		l[i], u[i] = lo, hi
	}
	return l, u
}

// affineInterval maps a box through y = W x + b in center/radius form.
func affineInterval(s nn.Stage, l, u []float64) ([]float64, []float64) {
	rows, cols := s.W.Dims()
	outL := make([]float64, rows)
	outU := make([]float64, rows)
	for i := 0; i < rows; i++ {
		center := s.B.AtVec(i)
		radius := 0.0
		for j := 0; j < cols; j++ {
			w := s.W.At(i, j)
			center += w * (l[j] + u[j]) / 2
			if w >= 0 {
				radius += w * (u[j] - l[j]) / 2
			} else {
				radius -= w * (u[j] - l[j]) / 2
			}
		}
		outL[i] = center - radius
		outU[i] = center + radius
	}
	return outL, outU
}

func clampBox(l, u []float64) ([]float64, []float64) {
	outL := make([]float64, len(l))
	outU := make([]float64, len(u))
	for i := range l {
		if l[i] > 0 {
			outL[i] = l[i]
		}
		if u[i] > 0 {
			outU[i] = u[i]
		}
	}
	return outL, outU
}

// preLayout converts per-stage post bounds into the two-phase layout
// described on PreBounds: input box, pre-activation bounds per ReLU stage,
// output bounds.
func preLayout(m *nn.Materialized, postL, postU [][]float64) ([][]float64, [][]float64) {
	l := [][]float64{postL[0]}
	u := [][]float64{postU[0]}
	for k := 0; k < m.NumStages(); k++ {
		if m.Stage(k).Kind == nn.StageReLU {
			// The input to stage k is the output after k stages.
			l = append(l, postL[k])
			u = append(u, postU[k])
		}
	}
	l = append(l, postL[m.NumStages()])
	u = append(u, postU[m.NumStages()])
	return l, u
}
