package formula

import (
	"fmt"
	"math"
	"strconv"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// StateSymbol names the state vector inside substituted formulas.
const StateSymbol = "y"

type Kind int

const (
	Literal Kind = iota
	StateRef
	DerivedRef
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case StateRef:
		return "state"
	case DerivedRef:
		return "derived"
	}
	return "unknown"
}

// Binding is what an identifier resolves to. Index is the species position
// for StateRef and the derived slot for DerivedRef.
type Binding struct {
	Kind  Kind
	Value float64
	Index int
}

// Text renders the binding as replacement text for name.
func (b Binding) Text(name string) string {
	switch b.Kind {
	case Literal:
		s := strconv.FormatFloat(b.Value, 'g', -1, 64)
		if math.Signbit(b.Value) {
			return "(" + s + ")"
		}
		return s
	case StateRef:
		return fmt.Sprintf("%s[%d]", StateSymbol, b.Index)
	default:
		return fmt.Sprintf("%s(%s)", name, StateSymbol)
	}
}

// Context is the read-only identifier table formulas are resolved against.
type Context struct {
	bindings map[string]Binding
	repl     map[string]string
	species  []string
	derived  []string
}

// NewContext binds species to their state index, parameters to their value
// and derived names to their slot. A name may live in one namespace only.
func NewContext(species []string, params map[string]float64, derived []string) (*Context, error) {
	c := &Context{
		bindings: make(map[string]Binding, len(species)+len(params)+len(derived)),
		species:  append([]string(nil), species...),
		derived:  append([]string(nil), derived...),
	}

	bind := func(name string, b Binding) error {
		if !ValidName(name) {
			return &dynamo.ConfigError{Kind: dynamo.KindInvalidName, Component: "context", Name: name}
		}
		if IsBuiltin(name) {
			return &dynamo.ConfigError{Kind: dynamo.KindInvalidName, Component: "context", Name: name,
				Detail: "shadows a built-in function"}
		}
		if name == StateSymbol && b.Kind != StateRef {
			return &dynamo.ConfigError{Kind: dynamo.KindInvalidName, Component: "context", Name: name,
				Detail: "reserved for the state vector"}
		}
		if prev, ok := c.bindings[name]; ok {
			return &dynamo.ConfigError{Kind: dynamo.KindDuplicate, Component: "context", Name: name,
				Detail: fmt.Sprintf("declared as %s and %s", prev.Kind, b.Kind)}
		}
		c.bindings[name] = b
		return nil
	}

	for i, sp := range species {
		if err := bind(sp, Binding{Kind: StateRef, Index: i}); err != nil {
			return nil, err
		}
	}
	for name, v := range params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &dynamo.ConfigError{Kind: dynamo.KindInvalidName, Component: "context", Name: name,
				Detail: "parameter value is not finite"}
		}
		if err := bind(name, Binding{Kind: Literal, Value: v}); err != nil {
			return nil, err
		}
	}
	for slot, name := range derived {
		if err := bind(name, Binding{Kind: DerivedRef, Index: slot}); err != nil {
			return nil, err
		}
	}

	c.repl = make(map[string]string, len(c.bindings))
	for name, b := range c.bindings {
		c.repl[name] = b.Text(name)
	}
	return c, nil
}

func (c *Context) Lookup(name string) (Binding, bool) {
	b, ok := c.bindings[name]
	return b, ok
}

// Replacements returns the substitution table for every bound identifier.
// The map is shared; callers must not modify it.
func (c *Context) Replacements() map[string]string { return c.repl }

func (c *Context) Species() []string { return append([]string(nil), c.species...) }

func (c *Context) Derived() []string { return append([]string(nil), c.derived...) }

func (c *Context) NumSpecies() int { return len(c.species) }
