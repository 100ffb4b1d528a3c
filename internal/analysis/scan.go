package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/integrators"
	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/metrics"
	"github.com/san-kum/reactsim/internal/sim"
)

// ScanPoint is the outcome of one member of a parameter scan.
type ScanPoint struct {
	Param float64
	Final float64
	Peak  float64
}

// ScanRequest sweeps Param linearly over [From, To] in Steps values.
type ScanRequest struct {
	Definition kinetics.Definition
	Param      string
	From, To   float64
	Steps      int
	// Species whose final and peak values are recorded.
	Species    string
	Initial    dynamo.State
	Config     dynamo.Config
	Integrator string
	// Limit bounds concurrent runs; zero means GOMAXPROCS.
	Limit  int
	Logger *zap.Logger
}

// Scan assembles the model once per parameter value and runs all members in
// parallel. The first failing member aborts the scan.
func Scan(ctx context.Context, req ScanRequest) ([]ScanPoint, error) {
	if _, ok := req.Definition.Params[req.Param]; !ok {
		return nil, &dynamo.ConfigError{Kind: dynamo.KindUndefinedRef, Component: "scan", Name: req.Param,
			Detail: "not a parameter of " + req.Definition.Name}
	}
	idx, ok := req.Definition.SpeciesIndex(req.Species)
	if !ok {
		return nil, &dynamo.ConfigError{Kind: dynamo.KindUndefinedRef, Component: "scan", Name: req.Species,
			Detail: "not a species of " + req.Definition.Name}
	}
	steps := req.Steps
	if steps < 2 {
		steps = 2
	}
	integName := req.Integrator
	if integName == "" {
		integName = "rk45"
	}
	if _, err := integrators.New(integName); err != nil {
		return nil, err
	}
	logger := req.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	x0 := req.Initial
	if x0 == nil {
		x0 = req.Definition.Initial()
	}

	values := make([]float64, steps)
	jobs := make([]sim.Job, steps)
	stride := (req.To - req.From) / float64(steps-1)
	for i := range jobs {
		values[i] = req.From + float64(i)*stride
		sys, err := kinetics.Assemble(req.Definition,
			kinetics.WithParams(map[string]float64{req.Param: values[i]}))
		if err != nil {
			return nil, err
		}
		jobs[i] = sim.Job{
			Label:   fmt.Sprintf("%s=%g", req.Param, values[i]),
			System:  sys,
			Initial: x0,
			Config:  req.Config,
		}
	}

	ens := &sim.Ensemble{
		NewIntegrator: func() dynamo.Integrator {
			integ, _ := integrators.New(integName)
			return integ
		},
		NewMetrics: func() []dynamo.Metric {
			return []dynamo.Metric{metrics.NewPeak(req.Species, idx)}
		},
		Limit:  req.Limit,
		Logger: logger,
	}
	results, err := ens.Run(ctx, jobs)
	if err != nil {
		return nil, err
	}

	points := make([]ScanPoint, steps)
	for i, res := range results {
		points[i] = ScanPoint{
			Param: values[i],
			Final: res.Final()[idx],
			Peak:  res.Metrics["peak_"+req.Species],
		}
	}
	logger.Debug("scan complete", zap.String("param", req.Param), zap.Int("points", steps))
	return points, nil
}
