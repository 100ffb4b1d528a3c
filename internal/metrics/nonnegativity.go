// Package metrics observes trajectories while they are simulated.
package metrics

import "github.com/san-kum/reactsim/internal/dynamo"

// NonNegativity is the fraction of recorded states in which every species is
// at or above -tolerance. Concentrations that dip below zero usually mean the
// step size is too large for a fast consumption term.
type NonNegativity struct {
	tolerance  float64
	violations int
	samples    int
}

func NewNonNegativity(tolerance float64) *NonNegativity {
	return &NonNegativity{tolerance: tolerance}
}

func (n *NonNegativity) Name() string {
	return "non_negativity"
}

func (n *NonNegativity) Observe(x dynamo.State, t float64) {
	n.samples++
	for _, val := range x {
		if val < -n.tolerance {
			n.violations++
			break
		}
	}
}

func (n *NonNegativity) Value() float64 {
	if n.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(n.violations)/float64(n.samples)
}

func (n *NonNegativity) Reset() {
	n.violations = 0
	n.samples = 0
}
