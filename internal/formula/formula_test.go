package formula

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/reactsim/internal/dynamo"
)

type testEnv struct {
	y       []float64
	derived []float64
}

func (e testEnv) State() []float64 { return e.y }

func (e testEnv) Derived(slot int) (float64, error) { return e.derived[slot], nil }

func TestSubstitute_WholeTokens(t *testing.T) {
	tests := []struct {
		name string
		src  string
		repl map[string]string
		want string
	}{
		{"simple", "mu*X", map[string]string{"mu": "0.1", "X": "y[0]"}, "0.1*y[0]"},
		{"prefix is not a match", "qSof*qS+qSmax", map[string]string{"qS": "Q"}, "qSof*Q+qSmax"},
		{"longer name only", "qSof*qS", map[string]string{"qSof": "F"}, "F*qS"},
		{"keeps whitespace", " pA - qsA ", map[string]string{"pA": "a", "qsA": "b"}, " a - b "},
		{"exponent is not an identifier", "1e5*e5", map[string]string{"e5": "2"}, "1e5*2"},
		{"underscore runs", "k_1*k_12", map[string]string{"k_1": "3"}, "3*k_12"},
		{"unmatched left as-is", "a+b", map[string]string{"c": "1"}, "a+b"},
		{"empty table", "a+b", nil, "a+b"},
		{"replacement not rescanned", "a", map[string]string{"a": "b", "b": "c"}, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.src, tt.repl); got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestSubstitute_Idempotent(t *testing.T) {
	ctx, err := NewContext([]string{"X", "S"}, map[string]float64{"mu": 0.1, "Ks": 0.037}, nil)
	if err != nil {
		t.Fatal(err)
	}

	once := Substitute("mu*X*(S/(S+Ks))", ctx.Replacements())
	twice := Substitute(once, ctx.Replacements())
	if once != twice {
		t.Errorf("second pass changed text: %q -> %q", once, twice)
	}
	if once != "0.1*y[0]*(y[1]/(y[1]+0.037))" {
		t.Errorf("unexpected substitution %q", once)
	}
}

func TestIdentifiers(t *testing.T) {
	got := Identifiers("(qSmax/(1+(A/Kia)))*(S/(S+Ks)) + 2.5e-3*A")
	want := []string{"qSmax", "A", "Kia", "S", "Ks"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Identifiers mismatch (-want +got):\n%s", diff)
	}
}

func TestIsBuiltin(t *testing.T) {
	for _, name := range []string{"exp", "log", "log10", "sqrt", "pow", "abs", "min", "max"} {
		if !IsBuiltin(name) {
			t.Errorf("IsBuiltin(%q) = false", name)
		}
	}
	for _, name := range []string{"mu", "Exp", "ln", "y"} {
		if IsBuiltin(name) {
			t.Errorf("IsBuiltin(%q) = true", name)
		}
	}
}

func TestBindingText(t *testing.T) {
	tests := []struct {
		b    Binding
		want string
	}{
		{Binding{Kind: Literal, Value: 0.5052}, "0.5052"},
		{Binding{Kind: Literal, Value: 14000}, "14000"},
		{Binding{Kind: Literal, Value: 1e-5}, "1e-05"},
		{Binding{Kind: Literal, Value: -2}, "(-2)"},
		{Binding{Kind: StateRef, Index: 3}, "y[3]"},
		{Binding{Kind: DerivedRef, Index: 0}, "qS(y)"},
	}

	for _, tt := range tests {
		if got := tt.b.Text("qS"); got != tt.want {
			t.Errorf("Text() = %q, want %q", got, tt.want)
		}
	}
}

func TestCompile_Eval(t *testing.T) {
	ctx, err := NewContext(
		[]string{"X", "S"},
		map[string]float64{"mu": 0.1, "k": -0.5, "two": 2},
		[]string{"q"},
	)
	if err != nil {
		t.Fatal(err)
	}
	env := testEnv{y: []float64{1, 10}, derived: []float64{4}}

	tests := []struct {
		src  string
		want float64
	}{
		{"mu*X", 0.1},
		{"-mu*X", -0.1},
		{"+S", 10},
		{"S-k", 10.5},
		{"S*k", -5},
		{"(S+X)/two", 5.5},
		{"q*X + q", 8},
		{"2", 2},
		{"1.5e1", 15},
		{"exp(0)", 1},
		{"log(S)", math.Log(10)},
		{"log10(S)", 1},
		{"sqrt(q)", 2},
		{"pow(S, two)", 100},
		{"abs(k)", 0.5},
		{"min(S, X, q)", 1},
		{"max(S, X, q)", 10},
		{"y[1]", 10},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Compile(tt.src, ctx)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.src, err)
			}
			got, err := e.Eval(env)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.src, err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Eval(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestCompile_OverlappingNames(t *testing.T) {
	ctx, err := NewContext(nil, map[string]float64{"qS": 1, "qSof": 10, "qSmax": 100}, nil)
	if err != nil {
		t.Fatal(err)
	}

	e, err := Compile("qS + qSof + qSmax", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e.String() != "1 + 10 + 100" {
		t.Errorf("String() = %q", e.String())
	}
	got, err := e.Eval(testEnv{})
	if err != nil {
		t.Fatal(err)
	}
	if got != 111 {
		t.Errorf("Eval = %v, want 111", got)
	}
}

func TestCompile_DerivedDeps(t *testing.T) {
	ctx, err := NewContext([]string{"A"}, nil, []string{"qS", "qSof"})
	if err != nil {
		t.Fatal(err)
	}

	e, err := Compile("qSof*qS + qS*A", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 0}, e.Deps()); diff != "" {
		t.Errorf("Deps mismatch (-want +got):\n%s", diff)
	}
	if e.String() != "qSof(y)*qS(y) + qS(y)*y[0]" {
		t.Errorf("String() = %q", e.String())
	}
}

func TestCompile_SyntaxErrors(t *testing.T) {
	ctx, err := NewContext([]string{"X"}, map[string]float64{"a": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}

	bad := []string{"a**X", "a^X", "a%X", "a < X", `"x"`, "a.b", "X +", "y[5]", "y[X]", "pow(X)", "   "}
	for _, src := range bad {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src, ctx)
			if !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("Compile(%q) error = %v, want configuration error", src, err)
			}
		})
	}
}

func TestCompile_UnresolvedIsDeferred(t *testing.T) {
	ctx, err := NewContext([]string{"X"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	e, err := Compile("mu*X + f(X)", ctx)
	if err != nil {
		t.Fatalf("unresolved identifiers must not fail compilation: %v", err)
	}
	if diff := cmp.Diff([]string{"mu", "f"}, e.Unresolved()); diff != "" {
		t.Errorf("Unresolved mismatch (-want +got):\n%s", diff)
	}

	_, err = e.Eval(testEnv{y: []float64{1}})
	if !errors.Is(err, dynamo.ErrUnresolvedIdentifier) {
		t.Fatalf("Eval error = %v, want ErrUnresolvedIdentifier", err)
	}
	var evalErr *dynamo.EvalError
	if !errors.As(err, &evalErr) || evalErr.Ident != "mu" {
		t.Errorf("expected EvalError naming mu, got %v", err)
	}
}

func TestCompile_NumericErrors(t *testing.T) {
	ctx, err := NewContext([]string{"X", "S"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	env := testEnv{y: []float64{0, -1}}

	for _, src := range []string{"1/X", "S/(X*2)", "log(X)", "log10(S)", "sqrt(S)", "pow(X, S)"} {
		t.Run(src, func(t *testing.T) {
			e, err := Compile(src, ctx)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := e.Eval(env); !errors.Is(err, dynamo.ErrNumeric) {
				t.Errorf("Eval(%q) error = %v, want ErrNumeric", src, err)
			}
		})
	}
}

func TestCompile_ShortState(t *testing.T) {
	ctx, err := NewContext([]string{"X", "S"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	e, err := Compile("S", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Eval(testEnv{y: []float64{1}}); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestNewContext_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		species []string
		params  map[string]float64
		derived []string
	}{
		{"species and param", []string{"X"}, map[string]float64{"X": 1}, nil},
		{"param and derived", nil, map[string]float64{"mu": 1}, []string{"mu"}},
		{"duplicate species", []string{"X", "X"}, nil, nil},
		{"shadows builtin", []string{"exp"}, nil, nil},
		{"state symbol as param", nil, map[string]float64{"y": 1}, nil},
		{"invalid name", []string{"2X"}, nil, nil},
		{"keyword", []string{"func"}, nil, nil},
		{"not finite", nil, map[string]float64{"k": math.Inf(1)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewContext(tt.species, tt.params, tt.derived)
			if !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("NewContext error = %v, want configuration error", err)
			}
		})
	}
}

func TestNewContext_StateSymbolAsSpecies(t *testing.T) {
	ctx, err := NewContext([]string{"x", "y"}, map[string]float64{"k": 3}, []string{"g"})
	if err != nil {
		t.Fatal(err)
	}

	e, err := Compile("k*y + g", ctx)
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Eval(testEnv{y: []float64{1, 2}, derived: []float64{0.5}})
	if err != nil {
		t.Fatal(err)
	}
	if got != 6.5 {
		t.Errorf("Eval = %v, want 6.5", got)
	}
}
