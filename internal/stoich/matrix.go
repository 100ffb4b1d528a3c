// Package stoich builds the stoichiometry matrix of a reaction network.
//
// Rows follow the species list and columns follow the reaction list, so the
// species derivatives are a single product S·v with the rate vector v.
package stoich

import (
	"fmt"
	"sort"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// Matrix is a dense row-major matrix. It is never modified after Build.
type Matrix struct {
	rows, cols int
	data       []float64
	species    []string
	reactions  []string
}

// Build turns a sparse mass-balance table into a dense matrix. Missing
// species/reaction pairs are zero; unknown names are configuration errors.
func Build(species, reactions []string, balances map[string]map[string]float64) (*Matrix, error) {
	rowOf, err := indexOf("species", species)
	if err != nil {
		return nil, err
	}
	colOf, err := indexOf("reaction", reactions)
	if err != nil {
		return nil, err
	}

	m := &Matrix{
		rows:      len(species),
		cols:      len(reactions),
		data:      make([]float64, len(species)*len(reactions)),
		species:   append([]string(nil), species...),
		reactions: append([]string(nil), reactions...),
	}

	// Sorted iteration keeps the reported error deterministic.
	for _, sp := range sortedKeys(balances) {
		i, ok := rowOf[sp]
		if !ok {
			return nil, &dynamo.ConfigError{Kind: dynamo.KindUndefinedRef, Component: "stoich", Name: sp,
				Detail: "mass balance for an undeclared species"}
		}
		for _, r := range sortedKeys(balances[sp]) {
			j, ok := colOf[r]
			if !ok {
				return nil, &dynamo.ConfigError{Kind: dynamo.KindUndefinedRef, Component: "stoich", Name: r,
					Detail: fmt.Sprintf("mass balance of %q references an undeclared reaction", sp)}
			}
			m.data[i*m.cols+j] = balances[sp][r]
		}
	}
	return m, nil
}

func indexOf(what string, names []string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := idx[n]; dup {
			return nil, &dynamo.ConfigError{Kind: dynamo.KindDuplicate, Component: "stoich", Name: n,
				Detail: "duplicate " + what}
		}
		idx[n] = i
	}
	return idx, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) At(i, j int) float64 { return m.data[i*m.cols+j] }

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return append([]float64(nil), m.data[i*m.cols:(i+1)*m.cols]...)
}

func (m *Matrix) Species() []string   { return append([]string(nil), m.species...) }
func (m *Matrix) Reactions() []string { return append([]string(nil), m.reactions...) }

// MulVec writes S·v into dst.
func (m *Matrix) MulVec(v, dst []float64) error {
	if len(v) != m.cols || len(dst) != m.rows {
		return fmt.Errorf("%w: %dx%d matrix, vector %d, destination %d",
			dynamo.ErrDimensionMismatch, m.rows, m.cols, len(v), len(dst))
	}
	for i := 0; i < m.rows; i++ {
		row := m.data[i*m.cols : (i+1)*m.cols]
		sum := 0.0
		for j, s := range row {
			if s != 0 {
				sum += s * v[j]
			}
		}
		dst[i] = sum
	}
	return nil
}

// NonZero returns the number of non-zero coefficients.
func (m *Matrix) NonZero() int {
	n := 0
	for _, v := range m.data {
		if v != 0 {
			n++
		}
	}
	return n
}
