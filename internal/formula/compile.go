package formula

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// Env supplies the values a compiled formula reads while evaluating.
type Env interface {
	State() []float64
	Derived(slot int) (float64, error)
}

type node func(env Env) (float64, error)

// Expr is a formula compiled against a Context.
type Expr struct {
	source     string
	text       string
	root       node
	unresolved []string
	deps       []int
}

func (e *Expr) Eval(env Env) (float64, error) { return e.root(env) }

// String returns the substituted formula text.
func (e *Expr) String() string { return e.text }

func (e *Expr) Source() string { return e.source }

// Unresolved lists identifiers that will fail evaluation.
func (e *Expr) Unresolved() []string { return append([]string(nil), e.unresolved...) }

// Deps lists the derived slots referenced directly by the formula.
func (e *Expr) Deps() []int { return append([]int(nil), e.deps...) }

// Compile substitutes src against ctx, parses the result and resolves every
// identifier. Syntax problems are configuration errors; unknown identifiers
// are deferred to evaluation.
func Compile(src string, ctx *Context) (*Expr, error) {
	text := Substitute(src, ctx.Replacements())
	if strings.TrimSpace(text) == "" {
		return nil, &dynamo.ConfigError{Kind: dynamo.KindEmpty, Component: "formula", Detail: "empty formula"}
	}

	tree, err := parser.ParseExpr(text)
	if err != nil {
		return nil, syntaxError(src, err.Error())
	}

	c := &compiler{ctx: ctx, expr: &Expr{source: src, text: text}, seenDeps: make(map[int]bool)}
	root, err := c.compile(tree)
	if err != nil {
		return nil, err
	}
	c.expr.root = root
	return c.expr, nil
}

func syntaxError(src, detail string) error {
	return &dynamo.ConfigError{Kind: dynamo.KindSyntax, Component: "formula", Name: src, Detail: detail}
}

type compiler struct {
	ctx      *Context
	expr     *Expr
	seenDeps map[int]bool
}

func (c *compiler) compile(n ast.Expr) (node, error) {
	switch n := n.(type) {
	case *ast.BasicLit:
		return c.literal(n)
	case *ast.ParenExpr:
		return c.compile(n.X)
	case *ast.UnaryExpr:
		return c.unary(n)
	case *ast.BinaryExpr:
		return c.binary(n)
	case *ast.StarExpr:
		return nil, syntaxError(c.expr.source, "** is not supported, use pow(x, y)")
	case *ast.IndexExpr:
		return c.index(n)
	case *ast.Ident:
		return c.ident(n.Name), nil
	case *ast.CallExpr:
		return c.call(n)
	}
	return nil, syntaxError(c.expr.source, fmt.Sprintf("unsupported expression %T", n))
}

func (c *compiler) literal(n *ast.BasicLit) (node, error) {
	if n.Kind != token.INT && n.Kind != token.FLOAT {
		return nil, syntaxError(c.expr.source, "unsupported literal "+n.Value)
	}
	v, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return nil, syntaxError(c.expr.source, err.Error())
	}
	return func(Env) (float64, error) { return v, nil }, nil
}

func (c *compiler) unary(n *ast.UnaryExpr) (node, error) {
	x, err := c.compile(n.X)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.ADD:
		return x, nil
	case token.SUB:
		return func(env Env) (float64, error) {
			v, err := x(env)
			return -v, err
		}, nil
	}
	return nil, syntaxError(c.expr.source, "unsupported unary operator "+n.Op.String())
}

func (c *compiler) binary(n *ast.BinaryExpr) (node, error) {
	switch n.Op {
	case token.ADD, token.SUB, token.MUL, token.QUO:
	case token.XOR:
		return nil, syntaxError(c.expr.source, "^ is not supported, use pow(x, y)")
	default:
		return nil, syntaxError(c.expr.source, "unsupported operator "+n.Op.String())
	}

	x, err := c.compile(n.X)
	if err != nil {
		return nil, err
	}
	y, err := c.compile(n.Y)
	if err != nil {
		return nil, err
	}

	src := c.expr.source
	op := n.Op
	return func(env Env) (float64, error) {
		a, err := x(env)
		if err != nil {
			return 0, err
		}
		b, err := y(env)
		if err != nil {
			return 0, err
		}
		switch op {
		case token.ADD:
			return a + b, nil
		case token.SUB:
			return a - b, nil
		case token.MUL:
			return a * b, nil
		}
		if b == 0 {
			return 0, &dynamo.EvalError{Formula: src, Err: fmt.Errorf("%w: %v", dynamo.ErrNumeric, errDivByZero)}
		}
		return a / b, nil
	}, nil
}

func (c *compiler) index(n *ast.IndexExpr) (node, error) {
	id, ok := n.X.(*ast.Ident)
	if !ok || id.Name != StateSymbol {
		return nil, syntaxError(c.expr.source, "indexing is only allowed on the state vector")
	}
	lit, ok := n.Index.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return nil, syntaxError(c.expr.source, "state index must be an integer literal")
	}
	i, err := strconv.Atoi(lit.Value)
	if err != nil || i < 0 || i >= c.ctx.NumSpecies() {
		return nil, syntaxError(c.expr.source, "state index out of range: "+lit.Value)
	}
	return c.stateAt(i), nil
}

func (c *compiler) stateAt(i int) node {
	src := c.expr.source
	return func(env Env) (float64, error) {
		y := env.State()
		if i >= len(y) {
			return 0, &dynamo.EvalError{Formula: src, Err: fmt.Errorf("%w: state has %d entries, need index %d",
				dynamo.ErrDimensionMismatch, len(y), i)}
		}
		return y[i], nil
	}
}

func (c *compiler) derivedAt(slot int) node {
	if !c.seenDeps[slot] {
		c.seenDeps[slot] = true
		c.expr.deps = append(c.expr.deps, slot)
	}
	return func(env Env) (float64, error) { return env.Derived(slot) }
}

func (c *compiler) ident(name string) node {
	if b, ok := c.ctx.Lookup(name); ok {
		switch b.Kind {
		case Literal:
			v := b.Value
			return func(Env) (float64, error) { return v, nil }
		case StateRef:
			return c.stateAt(b.Index)
		case DerivedRef:
			return c.derivedAt(b.Index)
		}
	}
	return c.unresolved(name)
}

func (c *compiler) unresolved(name string) node {
	c.expr.unresolved = append(c.expr.unresolved, name)
	src := c.expr.source
	return func(Env) (float64, error) {
		return 0, &dynamo.EvalError{Formula: src, Ident: name, Err: dynamo.ErrUnresolvedIdentifier}
	}
}

func (c *compiler) call(n *ast.CallExpr) (node, error) {
	fn, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, syntaxError(c.expr.source, "call target must be a name")
	}

	if b, ok := c.ctx.Lookup(fn.Name); ok && b.Kind == DerivedRef {
		if len(n.Args) != 1 {
			return nil, syntaxError(c.expr.source, fn.Name+" takes the state vector as its only argument")
		}
		arg, ok := n.Args[0].(*ast.Ident)
		if !ok || arg.Name != StateSymbol {
			return nil, syntaxError(c.expr.source, fn.Name+" takes the state vector as its only argument")
		}
		return c.derivedAt(b.Index), nil
	}

	args := make([]node, len(n.Args))
	for i, a := range n.Args {
		an, err := c.compile(a)
		if err != nil {
			return nil, err
		}
		args[i] = an
	}

	bi, ok := builtins[fn.Name]
	if !ok {
		return c.unresolved(fn.Name), nil
	}
	if len(args) < bi.minArgs || (bi.maxArgs >= 0 && len(args) > bi.maxArgs) {
		return nil, syntaxError(c.expr.source, fmt.Sprintf("wrong number of arguments to %s: %d", fn.Name, len(args)))
	}

	src := c.expr.source
	name := fn.Name
	return func(env Env) (float64, error) {
		vals := make([]float64, len(args))
		for i, a := range args {
			v, err := a(env)
			if err != nil {
				return 0, err
			}
			vals[i] = v
		}
		r, err := bi.fn(vals)
		if err != nil {
			return 0, &dynamo.EvalError{Formula: src, Ident: name, Err: fmt.Errorf("%w: %v", dynamo.ErrNumeric, err)}
		}
		return r, nil
	}, nil
}
