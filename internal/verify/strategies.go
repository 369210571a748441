package verify

import (
	"fmt"

	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/solver"
)

// intervalStrategy plugs the IBP engine into the dispatcher.
type intervalStrategy struct {
	oracle *IntervalBound
}

func (s *intervalStrategy) prepare(m *nn.Materialized, inMin, inMax float64) error {
	s.oracle = NewIntervalBound(m, inMin, inMax)
	return nil
}

func (s *intervalStrategy) bound(x []float64, eps float64) error {
	s.oracle.CalculateBound(x, eps)
	return nil
}

func (s *intervalStrategy) certify(label, other int) (bool, error) {
	return s.oracle.Verify(label, other), nil
}

// fastLinStrategy plugs the Fast-Lin engine into the dispatcher.
type fastLinStrategy struct {
	oracle *FastLinBound
}

func (s *fastLinStrategy) prepare(m *nn.Materialized, inMin, inMax float64) error {
	s.oracle = NewFastLinBound(m, inMin, inMax)
	return nil
}

func (s *fastLinStrategy) bound(x []float64, eps float64) error {
	s.oracle.CalculateBound(x, eps)
	return nil
}

func (s *fastLinStrategy) certify(label, other int) (bool, error) {
	return s.oracle.Verify(label, other), nil
}

// milpStrategy runs the two-phase MILP protocol: Fast-Lin pre-bounds feed
// Construct, then each pairwise query is PrepareVerify + Run with the
// "value ≥ 0 certifies" sign convention.
type milpStrategy struct {
	opts     solver.Options
	prebound *FastLinBound
	verifier *MILPVerifier
}

func (s *milpStrategy) prepare(m *nn.Materialized, inMin, inMax float64) error {
	s.prebound = NewFastLinBound(m, inMin, inMax)
	v, err := NewMILPVerifier(m, inMin, inMax)
	if err != nil {
		return err
	}
	s.verifier = v
	return nil
}

func (s *milpStrategy) bound(x []float64, eps float64) error {
	s.prebound.CalculateBound(x, eps)
	l, u := s.prebound.PreBounds()
	return s.verifier.Construct(l, u, x, eps)
}

func (s *milpStrategy) certify(label, other int) (bool, error) {
	if err := s.verifier.PrepareVerify(label, other); err != nil {
		return false, err
	}
	res := s.verifier.Run(s.opts)
	return res.Optimal() && res.Value >= 0, nil
}

// sdpStrategy runs the two-phase SDP protocol. The pre-activation bounds
// are clamped to the post-activation range before the solve, and the sign
// convention is "value ≤ 0 certifies", opposite to MILP, because the SDP
// maximizes the violation margin.
type sdpStrategy struct {
	opts     solver.Options
	prebound *FastLinBound
	verifier *SDPVerifier

	bl, bu [][]float64
}

func (s *sdpStrategy) prepare(m *nn.Materialized, inMin, inMax float64) error {
	s.prebound = NewFastLinBound(m, inMin, inMax)
	v, err := NewSDPVerifier(m)
	if err != nil {
		return err
	}
	s.verifier = v
	return nil
}

func (s *sdpStrategy) bound(x []float64, eps float64) error {
	s.prebound.CalculateBound(x, eps)
	l, u := s.prebound.PreBounds()
	s.bl = clampPost(l)
	s.bu = clampPost(u)
	return nil
}

func (s *sdpStrategy) certify(label, other int) (bool, error) {
	if s.bl == nil {
		return false, fmt.Errorf("verify sdp: certify before bound")
	}
	res := s.verifier.Run(s.bl, s.bu, label, other, s.opts)
	return res.Optimal() && res.Value <= 0, nil
}

// clampPost clamps every entry after the input box at zero: those entries
// bound post-activation values, which ReLU keeps non-negative.
func clampPost(bounds [][]float64) [][]float64 {
	out := make([][]float64, len(bounds))
	for i, box := range bounds {
		if i == 0 {
			out[i] = box
			continue
		}
		clamped := make([]float64, len(box))
		for j, v := range box {
			if v > 0 {
				clamped[j] = v
			}
		}
		out[i] = clamped
	}
	return out
}
