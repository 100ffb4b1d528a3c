// Package kinetics assembles a declarative reaction network into an ODE
// right-hand side dy/dt = S·v(y).
package kinetics

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/formula"
)

// Definition is the declarative description of a reaction network. It is
// plain data: it can be decoded from YAML, JSON or CUE and is validated by
// Assemble before anything is compiled.
type Definition struct {
	Name         string                        `yaml:"name" json:"name"`
	Description  string                        `yaml:"description,omitempty" json:"description,omitempty"`
	Species      []string                      `yaml:"species" json:"species"`
	Reactions    []string                      `yaml:"reactions" json:"reactions"`
	Params       map[string]float64            `yaml:"params,omitempty" json:"params,omitempty"`
	Rates        map[string]string             `yaml:"rates" json:"rates"`
	Functions    map[string]string             `yaml:"functions,omitempty" json:"functions,omitempty"`
	MassBalances map[string]map[string]float64 `yaml:"mass_balances" json:"mass_balances"`
	InitialState []float64                     `yaml:"initial_state,omitempty" json:"initial_state,omitempty"`
}

// Validate checks the structural invariants that do not need compilation:
// non-empty lists, valid and unique identifiers, and the initial state length.
// Formula and reference checks happen in Assemble.
func (d *Definition) Validate() error {
	if len(d.Species) == 0 {
		return &dynamo.ConfigError{Kind: dynamo.KindEmpty, Component: "definition", Name: d.Name, Detail: "no species"}
	}
	if len(d.Reactions) == 0 {
		return &dynamo.ConfigError{Kind: dynamo.KindEmpty, Component: "definition", Name: d.Name, Detail: "no reactions"}
	}

	seen := make(map[string]string)
	check := func(kind, name string) error {
		if !formula.ValidName(name) {
			return &dynamo.ConfigError{Kind: dynamo.KindInvalidName, Component: "definition", Name: name,
				Detail: kind + " name is not an identifier"}
		}
		if prev, ok := seen[name]; ok {
			return &dynamo.ConfigError{Kind: dynamo.KindDuplicate, Component: "definition", Name: name,
				Detail: fmt.Sprintf("declared as %s and %s", prev, kind)}
		}
		seen[name] = kind
		return nil
	}

	for _, sp := range d.Species {
		if err := check("species", sp); err != nil {
			return err
		}
	}
	for _, p := range sortedKeys(d.Params) {
		if err := check("parameter", p); err != nil {
			return err
		}
		if v := d.Params[p]; math.IsNaN(v) || math.IsInf(v, 0) {
			return &dynamo.ConfigError{Kind: dynamo.KindInvalidName, Component: "definition", Name: p,
				Detail: "parameter value is not finite"}
		}
	}
	for _, f := range sortedKeys(d.Functions) {
		if err := check("derived quantity", f); err != nil {
			return err
		}
	}

	// Reactions live in their own namespace: they never appear in formulas.
	reactions := make(map[string]bool, len(d.Reactions))
	for _, r := range d.Reactions {
		if !formula.ValidName(r) {
			return &dynamo.ConfigError{Kind: dynamo.KindInvalidName, Component: "definition", Name: r,
				Detail: "reaction name is not an identifier"}
		}
		if reactions[r] {
			return &dynamo.ConfigError{Kind: dynamo.KindDuplicate, Component: "definition", Name: r,
				Detail: "duplicate reaction"}
		}
		reactions[r] = true
	}

	if d.InitialState != nil && len(d.InitialState) != len(d.Species) {
		return &dynamo.ConfigError{Kind: dynamo.KindDimension, Component: "definition", Name: d.Name,
			Detail: fmt.Sprintf("initial state has %d values for %d species", len(d.InitialState), len(d.Species))}
	}
	return nil
}

// Clone returns a deep copy.
func (d Definition) Clone() Definition {
	c := d
	c.Species = append([]string(nil), d.Species...)
	c.Reactions = append([]string(nil), d.Reactions...)
	if d.InitialState != nil {
		c.InitialState = make([]float64, len(d.InitialState))
		copy(c.InitialState, d.InitialState)
	}
	c.Params = copyMap(d.Params)
	c.Rates = copyMap(d.Rates)
	c.Functions = copyMap(d.Functions)
	if d.MassBalances != nil {
		c.MassBalances = make(map[string]map[string]float64, len(d.MassBalances))
		for sp, row := range d.MassBalances {
			c.MassBalances[sp] = copyMap(row)
		}
	}
	return c
}

// WithParams returns a copy of d with the given parameter values replaced.
// Unknown parameter names are an error so that typos do not go unnoticed.
func (d Definition) WithParams(overrides map[string]float64) (Definition, error) {
	c := d.Clone()
	for name, v := range overrides {
		if _, ok := c.Params[name]; !ok {
			return Definition{}, &dynamo.ConfigError{Kind: dynamo.KindUndefinedRef, Component: "definition", Name: name,
				Detail: "override for an undeclared parameter"}
		}
		c.Params[name] = v
	}
	return c, nil
}

// Initial returns the initial state, or zeros when none is declared.
func (d *Definition) Initial() dynamo.State {
	if d.InitialState == nil {
		return make(dynamo.State, len(d.Species))
	}
	return dynamo.State(d.InitialState).Clone()
}

// SpeciesIndex returns the state index of a species.
func (d *Definition) SpeciesIndex(name string) (int, bool) {
	for i, sp := range d.Species {
		if sp == name {
			return i, true
		}
	}
	return -1, false
}

// Unreferenced returns the parameters and derived quantities that no rate or
// derived formula mentions, sorted by name.
func (d *Definition) Unreferenced() []string {
	used := make(map[string]bool)
	for _, src := range d.Rates {
		for _, id := range formula.Identifiers(src) {
			used[id] = true
		}
	}
	for _, src := range d.Functions {
		for _, id := range formula.Identifiers(src) {
			used[id] = true
		}
	}

	var out []string
	for _, name := range sortedKeys(d.Params) {
		if !used[name] {
			out = append(out, name)
		}
	}
	for _, name := range sortedKeys(d.Functions) {
		if !used[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func copyMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	c := make(map[string]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
