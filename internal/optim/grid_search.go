// Package optim searches model parameters for the best value of a run metric.
package optim

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/experiment"
)

// Trial is one point of the grid. Err is set when the run failed; failed
// trials never win.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Limit bounds concurrent runs; zero means GOMAXPROCS.
	Limit  int
	Logger *zap.Logger
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

// Search runs base once per grid point, with the grid values layered over
// base.Params, and returns the trial with the smallest metric value (largest
// when maximize is set) together with every trial in grid order.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, reg *experiment.Registry, metricName string, maximize bool) (Trial, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Trial{}, nil, fmt.Errorf("%d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := g.Limit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var grid []map[string]float64
	g.searchRecursive(0, make(map[string]float64), &grid)

	trials := make([]Trial, len(grid))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, params := range grid {
		i, params := i, params
		eg.Go(func() error {
			trials[i] = g.run(egCtx, base, reg, params, metricName)
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return Trial{}, trials, err
	}

	best := -1
	for i, tr := range trials {
		if tr.Err != nil {
			logger.Debug("trial failed", zap.Any("params", tr.Params), zap.Error(tr.Err))
			continue
		}
		if best < 0 || (maximize && tr.Value > trials[best].Value) || (!maximize && tr.Value < trials[best].Value) {
			best = i
		}
	}
	if best < 0 {
		return Trial{}, trials, fmt.Errorf("no successful trial out of %d", len(trials))
	}
	return trials[best], trials, nil
}

func (g *GridSearch) run(ctx context.Context, base *config.Config, reg *experiment.Registry, params map[string]float64, metricName string) Trial {
	tr := Trial{Params: params}

	cfg := base.Clone()
	if cfg.Params == nil {
		cfg.Params = make(map[string]float64, len(params))
	}
	for k, v := range params {
		cfg.Params[k] = v
	}

	exp := experiment.New(cfg, nil)
	if tr.Err = exp.Setup(reg); tr.Err != nil {
		return tr
	}
	result, err := exp.Run(ctx)
	if err != nil {
		tr.Err = err
		return tr
	}
	val, ok := result.Metrics[metricName]
	switch {
	case !ok:
		tr.Err = fmt.Errorf("run has no metric %q", metricName)
	case math.IsNaN(val) || math.IsInf(val, 0):
		tr.Err = fmt.Errorf("metric %q is not finite", metricName)
	default:
		tr.Value = val
	}
	return tr
}

func (g *GridSearch) searchRecursive(depth int, current map[string]float64, grid *[]map[string]float64) {
	if depth == len(g.paramNames) {
		point := make(map[string]float64, len(current))
		for k, v := range current {
			point[k] = v
		}
		*grid = append(*grid, point)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		g.searchRecursive(depth+1, current, grid)
	}
	delete(current, paramName)
}
