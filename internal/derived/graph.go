// Package derived resolves named intermediate quantities that formulas share.
//
// Each derived quantity becomes a node in an arena indexed by its slot in the
// formula context. Dependencies between nodes are explicit slot references,
// checked for cycles once when the graph is built. Evaluation goes through a
// [Frame], which memoizes every node for one state vector.
package derived

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/formula"
)

type node struct {
	name string
	expr *formula.Expr
	deps []int
}

// Graph is an immutable set of compiled derived quantities.
type Graph struct {
	nodes []node
	slots map[string]int
	order []int
}

// Names returns the derived identifiers of a function table in the canonical
// slot order used to build a formula context.
func Names(functions map[string]string) []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New compiles every function in the table against ctx. The context must
// declare exactly the derived names of the table.
func New(functions map[string]string, ctx *formula.Context) (*Graph, error) {
	names := ctx.Derived()
	g := &Graph{
		nodes: make([]node, len(names)),
		slots: make(map[string]int, len(names)),
	}

	for name := range functions {
		if b, ok := ctx.Lookup(name); !ok || b.Kind != formula.DerivedRef {
			return nil, &dynamo.ConfigError{Kind: dynamo.KindUndefinedRef, Component: "derived", Name: name,
				Detail: "function is not declared in the context"}
		}
	}

	for slot, name := range names {
		src, ok := functions[name]
		if !ok {
			return nil, &dynamo.ConfigError{Kind: dynamo.KindMissingFormula, Component: "derived", Name: name}
		}
		expr, err := formula.Compile(src, ctx)
		if err != nil {
			return nil, fmt.Errorf("derived %q: %w", name, err)
		}
		g.nodes[slot] = node{name: name, expr: expr, deps: expr.Deps()}
		g.slots[name] = slot
	}

	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

const (
	white = iota
	gray
	black
)

// topoSort orders slots so that every node follows its dependencies.
func (g *Graph) topoSort() ([]int, error) {
	state := make([]int, len(g.nodes))
	order := make([]int, 0, len(g.nodes))
	var path []int

	var visit func(int) error
	visit = func(v int) error {
		state[v] = gray
		path = append(path, v)
		for _, w := range g.nodes[v].deps {
			switch state[w] {
			case gray:
				return g.cycleError(path, w)
			case white:
				if err := visit(w); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[v] = black
		order = append(order, v)
		return nil
	}

	for v := range g.nodes {
		if state[v] == white {
			if err := visit(v); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

func (g *Graph) cycleError(path []int, back int) error {
	start := 0
	for i, v := range path {
		if v == back {
			start = i
			break
		}
	}
	names := make([]string, 0, len(path)-start+1)
	for _, v := range path[start:] {
		names = append(names, g.nodes[v].name)
	}
	names = append(names, g.nodes[back].name)
	return &dynamo.ConfigError{
		Kind:      dynamo.KindCycle,
		Component: "derived",
		Name:      g.nodes[back].name,
		Detail:    strings.Join(names, " -> "),
	}
}

func (g *Graph) Len() int { return len(g.nodes) }

// Order returns the derived names with dependencies first.
func (g *Graph) Order() []string {
	names := make([]string, len(g.order))
	for i, slot := range g.order {
		names[i] = g.nodes[slot].name
	}
	return names
}

// Names returns the derived names in slot order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		names[i] = n.name
	}
	return names
}

// Expr returns the compiled formula of a derived quantity.
func (g *Graph) Expr(name string) (*formula.Expr, bool) {
	slot, ok := g.slots[name]
	if !ok {
		return nil, false
	}
	return g.nodes[slot].expr, true
}

// Func returns a callable for one derived quantity. Every call evaluates on
// a fresh frame.
func (g *Graph) Func(name string) (func(y []float64) (float64, error), bool) {
	slot, ok := g.slots[name]
	if !ok {
		return nil, false
	}
	return func(y []float64) (float64, error) {
		return g.NewFrame(y).Derived(slot)
	}, true
}

// EvalAll evaluates every derived quantity in topological order and returns
// the values in slot order.
func (g *Graph) EvalAll(y []float64) ([]float64, error) {
	f := g.NewFrame(y)
	for _, slot := range g.order {
		if _, err := f.Derived(slot); err != nil {
			return nil, err
		}
	}
	return f.values, nil
}

// EvalSeries evaluates every derived quantity along a trajectory with a single
// reused frame. Row i holds the values for states[i] in slot order.
func (g *Graph) EvalSeries(states [][]float64) ([][]float64, error) {
	out := make([][]float64, len(states))
	f := g.NewFrame(nil)
	for i, y := range states {
		f.Reset(y)
		for _, slot := range g.order {
			if _, err := f.Derived(slot); err != nil {
				return nil, fmt.Errorf("state %d: %w", i, err)
			}
		}
		out[i] = append([]float64(nil), f.values...)
	}
	return out, nil
}

// Unresolved returns the unknown identifiers of every node, keyed by node name.
func (g *Graph) Unresolved() map[string][]string {
	out := make(map[string][]string)
	for _, n := range g.nodes {
		if ids := n.expr.Unresolved(); len(ids) > 0 {
			out[n.name] = ids
		}
	}
	return out
}
