package metrics

import (
	"math"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// Extremum tracks the largest (Peak) or smallest (Trough) value of one
// species and when it was reached.
type Extremum struct {
	name    string
	index   int
	max     bool
	value   float64
	at      float64
	samples int
}

func NewPeak(species string, index int) *Extremum {
	return &Extremum{name: "peak_" + species, index: index, max: true}
}

func NewTrough(species string, index int) *Extremum {
	return &Extremum{name: "min_" + species, index: index}
}

func (e *Extremum) Name() string { return e.name }

func (e *Extremum) Observe(x dynamo.State, t float64) {
	if e.index >= len(x) {
		return
	}
	v := x[e.index]
	if e.samples == 0 || (e.max && v > e.value) || (!e.max && v < e.value) {
		e.value = v
		e.at = t
	}
	e.samples++
}

// Value returns the extremum, or NaN before the first observation.
func (e *Extremum) Value() float64 {
	if e.samples == 0 {
		return math.NaN()
	}
	return e.value
}

// Time returns when the extremum was first reached.
func (e *Extremum) Time() float64 { return e.at }

func (e *Extremum) Reset() {
	e.value = 0
	e.at = 0
	e.samples = 0
}

// Default returns the metrics recorded for every run: non-negativity plus a
// peak for every species.
func Default(species []string) []dynamo.Metric {
	ms := []dynamo.Metric{NewNonNegativity(1e-9)}
	for i, sp := range species {
		ms = append(ms, NewPeak(sp, i))
	}
	return ms
}
