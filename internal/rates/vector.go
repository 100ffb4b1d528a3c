// Package rates compiles a reaction-indexed formula table into one rate
// vector function.
package rates

import (
	"fmt"
	"sort"

	"github.com/san-kum/reactsim/internal/derived"
	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/formula"
)

// Vector evaluates every reaction rate of a model, in reaction-list order.
type Vector struct {
	reactions []string
	exprs     []*formula.Expr
	graph     *derived.Graph
}

// Compile builds the rate vector. Every declared reaction needs a formula and
// every formula must belong to a declared reaction.
func Compile(reactions []string, table map[string]string, ctx *formula.Context, graph *derived.Graph) (*Vector, error) {
	declared := make(map[string]bool, len(reactions))
	for _, r := range reactions {
		declared[r] = true
	}
	var extra []string
	for r := range table {
		if !declared[r] {
			extra = append(extra, r)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, &dynamo.ConfigError{Kind: dynamo.KindUndefinedRef, Component: "rates", Name: extra[0],
			Detail: "formula for an undeclared reaction"}
	}

	v := &Vector{
		reactions: append([]string(nil), reactions...),
		exprs:     make([]*formula.Expr, len(reactions)),
		graph:     graph,
	}
	for j, r := range reactions {
		src, ok := table[r]
		if !ok {
			return nil, &dynamo.ConfigError{Kind: dynamo.KindMissingFormula, Component: "rates", Name: r}
		}
		expr, err := formula.Compile(src, ctx)
		if err != nil {
			return nil, fmt.Errorf("reaction %q: %w", r, err)
		}
		if len(expr.Deps()) > 0 && graph == nil {
			return nil, &dynamo.ConfigError{Kind: dynamo.KindUndefinedRef, Component: "rates", Name: r,
				Detail: "formula uses derived quantities but no graph was given"}
		}
		v.exprs[j] = expr
	}
	return v, nil
}

func (v *Vector) Len() int { return len(v.exprs) }

func (v *Vector) Reactions() []string { return append([]string(nil), v.reactions...) }

// Formula returns the compiled formula of reaction j.
func (v *Vector) Formula(j int) *formula.Expr { return v.exprs[j] }

// Eval returns a fresh rate vector for y.
func (v *Vector) Eval(y []float64) ([]float64, error) {
	out := make([]float64, len(v.exprs))
	if err := v.EvalInto(v.frame(y), out); err != nil {
		return nil, err
	}
	return out, nil
}

// EvalInto writes the rates into dst using env for state and derived values,
// so derived quantities shared between reactions are computed once.
func (v *Vector) EvalInto(env formula.Env, dst []float64) error {
	if len(dst) != len(v.exprs) {
		return fmt.Errorf("%w: rate buffer has %d entries, need %d", dynamo.ErrDimensionMismatch, len(dst), len(v.exprs))
	}
	for j, e := range v.exprs {
		r, err := e.Eval(env)
		if err != nil {
			return err
		}
		dst[j] = r
	}
	return nil
}

// Unresolved returns the unknown identifiers of each reaction formula.
func (v *Vector) Unresolved() map[string][]string {
	out := make(map[string][]string)
	for j, e := range v.exprs {
		if ids := e.Unresolved(); len(ids) > 0 {
			out[v.reactions[j]] = ids
		}
	}
	return out
}

func (v *Vector) frame(y []float64) formula.Env {
	if v.graph == nil {
		return stateEnv(y)
	}
	return v.graph.NewFrame(y)
}

// NewFrame returns an evaluation environment for y.
func (v *Vector) NewFrame(y []float64) formula.Env { return v.frame(y) }

type stateEnv []float64

func (s stateEnv) State() []float64 { return s }

func (s stateEnv) Derived(slot int) (float64, error) {
	return 0, fmt.Errorf("rates: no derived quantity in slot %d", slot)
}
