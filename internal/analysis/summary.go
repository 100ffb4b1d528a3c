package analysis

import (
	"fmt"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/kinetics"
)

// SpeciesSummary describes one species over a trajectory.
type SpeciesSummary struct {
	Name    string
	Initial float64
	Final   float64
	Min     float64
	Max     float64
	MaxTime float64
}

// Summarize reduces a trajectory to one summary per species. Rows of states
// shorter than species are an error.
func Summarize(species []string, times []float64, states [][]float64) ([]SpeciesSummary, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("empty trajectory")
	}
	if len(times) != len(states) {
		return nil, fmt.Errorf("%w: %d times for %d states", dynamo.ErrDimensionMismatch, len(times), len(states))
	}

	out := make([]SpeciesSummary, len(species))
	for j, name := range species {
		out[j] = SpeciesSummary{Name: name}
	}
	for i, row := range states {
		if len(row) < len(species) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d species",
				dynamo.ErrDimensionMismatch, i, len(row), len(species))
		}
		for j := range species {
			v := row[j]
			s := &out[j]
			if i == 0 {
				s.Initial, s.Min, s.Max, s.MaxTime = v, v, v, times[i]
			}
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
				s.MaxTime = times[i]
			}
			s.Final = v
		}
	}
	return out, nil
}

// DerivedSeries evaluates every derived quantity of sys at each state.
// The result is keyed by derived name, one value per state.
func DerivedSeries(sys *kinetics.System, states [][]float64) (map[string][]float64, error) {
	return sys.DerivedSeries(states)
}

// SteadyState reports whether every component of dy/dt at y is below tol in
// magnitude, together with the largest component.
func SteadyState(sys dynamo.System, y dynamo.State, tol float64) (bool, float64, error) {
	dy, err := sys.Derive(y, 0)
	if err != nil {
		return false, 0, err
	}
	m := dy.MaxAbs()
	return m < tol, m, nil
}
