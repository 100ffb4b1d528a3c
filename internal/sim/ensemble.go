package sim

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// Job is one member of an ensemble. Each job carries its own system, usually
// the same model assembled with different parameters.
type Job struct {
	Label   string
	System  dynamo.System
	Initial dynamo.State
	Config  dynamo.Config
}

// Ensemble runs independent simulations in parallel.
type Ensemble struct {
	// NewIntegrator returns a fresh integrator per job; integrators keep
	// scratch buffers and cannot be shared.
	NewIntegrator func() dynamo.Integrator
	// NewMetrics optionally returns fresh metrics per job.
	NewMetrics func() []dynamo.Metric
	// Limit bounds the number of concurrent runs. Zero means GOMAXPROCS.
	Limit  int
	Logger *zap.Logger
}

// Run executes every job and returns the results in job order. The first
// failing job cancels the rest.
func (e *Ensemble) Run(ctx context.Context, jobs []Job) ([]*dynamo.Result, error) {
	if e.NewIntegrator == nil {
		return nil, fmt.Errorf("ensemble: no integrator constructor")
	}
	limit := e.Limit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]*dynamo.Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			s := New(job.System, e.NewIntegrator())
			s.SetLogger(logger.With(zap.String("job", job.Label)))
			if e.NewMetrics != nil {
				for _, m := range e.NewMetrics() {
					s.AddMetric(m)
				}
			}

			res, err := s.Run(gctx, job.Initial, job.Config)
			if err != nil {
				return fmt.Errorf("run %q: %w", job.Label, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
