package kinetics

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/san-kum/reactsim/internal/derived"
	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/formula"
	"github.com/san-kum/reactsim/internal/rates"
	"github.com/san-kum/reactsim/internal/stoich"
)

type options struct {
	logger    *zap.Logger
	overrides map[string]float64
}

type Option func(*options)

// WithLogger sets the logger used to report assembly. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithParams overrides parameter values of the definition before compiling.
func WithParams(params map[string]float64) Option {
	return func(o *options) {
		if o.overrides == nil {
			o.overrides = make(map[string]float64, len(params))
		}
		for k, v := range params {
			o.overrides[k] = v
		}
	}
}

// System is an assembled reaction network. It holds only immutable compiled
// artifacts, so Derive is safe for concurrent use.
type System struct {
	def    Definition
	ctx    *formula.Context
	graph  *derived.Graph
	rates  *rates.Vector
	matrix *stoich.Matrix
}

// Assemble validates def and compiles it into a System. Any configuration
// error aborts assembly; no partial system is returned.
func Assemble(def Definition, opts ...Option) (*System, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	def = def.Clone()
	if len(o.overrides) > 0 {
		var err error
		if def, err = def.WithParams(o.overrides); err != nil {
			return nil, err
		}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	ctx, err := formula.NewContext(def.Species, def.Params, derived.Names(def.Functions))
	if err != nil {
		return nil, err
	}
	graph, err := derived.New(def.Functions, ctx)
	if err != nil {
		return nil, err
	}
	vec, err := rates.Compile(def.Reactions, def.Rates, ctx, graph)
	if err != nil {
		return nil, err
	}
	matrix, err := stoich.Build(def.Species, def.Reactions, def.MassBalances)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(matrix, vec); err != nil {
		return nil, err
	}

	sys := &System{def: def, ctx: ctx, graph: graph, rates: vec, matrix: matrix}

	log := o.logger.With(zap.String("model", def.Name))
	for _, u := range sys.unresolvedList() {
		log.Warn("unresolved identifier", zap.String("formula", u.owner), zap.Strings("identifiers", u.idents))
	}
	log.Debug("model assembled",
		zap.Int("species", matrix.Rows()),
		zap.Int("reactions", matrix.Cols()),
		zap.Int("derived", graph.Len()),
		zap.Int("nonzero", matrix.NonZero()),
		zap.Strings("derived_order", graph.Order()),
	)
	return sys, nil
}

func checkColumns(m *stoich.Matrix, v *rates.Vector) error {
	cols, reactions := m.Reactions(), v.Reactions()
	if len(cols) != len(reactions) {
		return &dynamo.ConfigError{Kind: dynamo.KindDimension, Component: "kinetics",
			Detail: fmt.Sprintf("matrix has %d columns, rate vector has %d entries", len(cols), len(reactions))}
	}
	for j := range cols {
		if cols[j] != reactions[j] {
			return &dynamo.ConfigError{Kind: dynamo.KindDimension, Component: "kinetics", Name: cols[j],
				Detail: fmt.Sprintf("column %d is %q in the matrix but %q in the rate vector", j, cols[j], reactions[j])}
		}
	}
	return nil
}

// Derive returns S·v(y). Evaluation errors are returned unchanged.
func (s *System) Derive(y dynamo.State, _ float64) (dynamo.State, error) {
	if len(y) != s.matrix.Rows() {
		return nil, fmt.Errorf("%w: state has %d values for %d species", dynamo.ErrDimensionMismatch, len(y), s.matrix.Rows())
	}
	v := make([]float64, s.rates.Len())
	if err := s.rates.EvalInto(s.graph.NewFrame(y), v); err != nil {
		return nil, err
	}
	dy := make(dynamo.State, s.matrix.Rows())
	if err := s.matrix.MulVec(v, dy); err != nil {
		return nil, err
	}
	return dy, nil
}

func (s *System) StateDim() int { return s.matrix.Rows() }

func (s *System) Name() string { return s.def.Name }

// Definition returns a copy of the definition the system was assembled from,
// parameter overrides included.
func (s *System) Definition() Definition { return s.def.Clone() }

func (s *System) Species() []string   { return s.matrix.Species() }
func (s *System) Reactions() []string { return s.matrix.Reactions() }

func (s *System) Matrix() *stoich.Matrix { return s.matrix }

// Rates evaluates the rate vector at y.
func (s *System) Rates(y dynamo.State) ([]float64, error) { return s.rates.Eval(y) }

// Derived evaluates every derived quantity at y, keyed by name.
func (s *System) Derived(y dynamo.State) (map[string]float64, error) {
	vals, err := s.graph.EvalAll(y)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(vals))
	for i, name := range s.graph.Names() {
		out[name] = vals[i]
	}
	return out, nil
}

// DerivedSeries evaluates every derived quantity along a trajectory, keyed
// by name.
func (s *System) DerivedSeries(states [][]float64) (map[string][]float64, error) {
	rows, err := s.graph.EvalSeries(states)
	if err != nil {
		return nil, err
	}
	names := s.graph.Names()
	out := make(map[string][]float64, len(names))
	for slot, name := range names {
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = row[slot]
		}
		out[name] = col
	}
	return out, nil
}

// DerivedNames returns the derived quantities in evaluation order.
func (s *System) DerivedNames() []string { return s.graph.Order() }

// Formula returns the substituted rate formula of a reaction.
func (s *System) Formula(reaction string) (string, bool) {
	for j, r := range s.rates.Reactions() {
		if r == reaction {
			return s.rates.Formula(j).String(), true
		}
	}
	return "", false
}

// DerivedFormula returns the substituted formula of a derived quantity.
func (s *System) DerivedFormula(name string) (string, bool) {
	e, ok := s.graph.Expr(name)
	if !ok {
		return "", false
	}
	return e.String(), true
}

// Unresolved returns the identifiers no namespace binds, keyed by the
// reaction or derived quantity whose formula uses them.
func (s *System) Unresolved() map[string][]string {
	out := s.graph.Unresolved()
	for r, ids := range s.rates.Unresolved() {
		out[r] = ids
	}
	return out
}

type unresolved struct {
	owner  string
	idents []string
}

func (s *System) unresolvedList() []unresolved {
	m := s.Unresolved()
	list := make([]unresolved, 0, len(m))
	for owner, ids := range m {
		list = append(list, unresolved{owner: owner, idents: ids})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].owner < list[j].owner })
	return list
}
