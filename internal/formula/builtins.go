package formula

import (
	"errors"
	"math"
)

var (
	errDivByZero = errors.New("division by zero")
	errDomain    = errors.New("argument outside function domain")
)

type builtin struct {
	minArgs int
	maxArgs int // -1 for variadic
	fn      func(args []float64) (float64, error)
}

var builtins = map[string]builtin{
	"exp": {1, 1, func(a []float64) (float64, error) { return math.Exp(a[0]), nil }},
	"log": {1, 1, func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, errDomain
		}
		return math.Log(a[0]), nil
	}},
	"log10": {1, 1, func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, errDomain
		}
		return math.Log10(a[0]), nil
	}},
	"sqrt": {1, 1, func(a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, errDomain
		}
		return math.Sqrt(a[0]), nil
	}},
	"pow": {2, 2, func(a []float64) (float64, error) {
		r := math.Pow(a[0], a[1])
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, errDomain
		}
		return r, nil
	}},
	"abs": {1, 1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"min": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
}

// IsBuiltin reports whether name is a built-in function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}
