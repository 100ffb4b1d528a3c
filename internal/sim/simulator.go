// Package sim drives an integrator over a dynamo.System and records the
// trajectory.
package sim

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// stepBounder is implemented by adaptive integrators whose step limits can be
// configured per run.
type stepBounder interface {
	SetStepBounds(minDt, maxDt float64)
}

type rejectionCounter interface {
	Rejections() int
}

type Simulator struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	logger     *zap.Logger
}

func New(dyn dynamo.System, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		logger:     zap.NewNop(),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// SetLogger replaces the no-op default logger.
func (s *Simulator) SetLogger(l *zap.Logger) {
	if l != nil {
		s.logger = l
	}
}

// counting wraps a system to count right-hand-side evaluations.
type counting struct {
	dynamo.System
	n int
}

func (c *counting) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	c.n++
	return c.System.Derive(x, t)
}

// Run integrates from x0 over cfg.Duration. On failure the states recorded so
// far are returned together with a *dynamo.SimulationError.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("%w: initial state has %d values, system needs %d",
			dynamo.ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}

	result := &dynamo.Result{
		Metrics: make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	dyn := &counting{System: s.dyn}
	rejectedBefore := 0
	if rc, ok := s.integrator.(rejectionCounter); ok {
		rejectedBefore = rc.Rejections()
	}

	var err error
	if cfg.Adaptive {
		err = s.runAdaptive(ctx, dyn, x0, cfg, result)
	} else {
		err = s.runFixed(ctx, dyn, x0, cfg, result)
	}

	result.Evaluations = dyn.n
	if rc, ok := s.integrator.(rejectionCounter); ok {
		result.Rejected += rc.Rejections() - rejectedBefore
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	if err != nil {
		s.logger.Warn("simulation stopped",
			zap.Int("steps", result.StepsTaken),
			zap.Float64("t", lastTime(result)),
			zap.Error(err))
		return result, err
	}
	s.logger.Info("simulation complete",
		zap.Int("steps", result.StepsTaken),
		zap.Int("rejected", result.Rejected),
		zap.Int("evaluations", result.Evaluations),
		zap.Float64("t_end", lastTime(result)))
	return result, nil
}

func (s *Simulator) record(result *dynamo.Result, x dynamo.State, t float64) {
	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)
	for _, m := range s.metrics {
		m.Observe(x, t)
	}
	for _, obs := range s.observers {
		obs.OnStep(x, t)
	}
}

func (s *Simulator) runFixed(ctx context.Context, dyn dynamo.System, x0 dynamo.State, cfg dynamo.Config, result *dynamo.Result) error {
	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result.States = make([]dynamo.State, 0, steps+1)
	result.Times = make([]float64, 0, steps+1)

	x := x0.Clone()
	t := 0.0
	s.record(result, x, t)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: ctx.Err()}
		default:
		}

		next, err := s.integrator.Step(dyn, x, t, cfg.Dt)
		if err != nil {
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
		}
		if cfg.ValidateState && !next.IsValid() {
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}

		x = next
		// Multiplying avoids drift from repeated addition.
		t = float64(i+1) * cfg.Dt
		result.StepsTaken++
		s.record(result, x, t)
	}
	return nil
}

func (s *Simulator) runAdaptive(ctx context.Context, dyn dynamo.System, x0 dynamo.State, cfg dynamo.Config, result *dynamo.Result) error {
	if b, ok := s.integrator.(stepBounder); ok {
		b.SetStepBounds(cfg.MinDt, cfg.MaxDt)
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt
	s.record(result, x, t)

	end := cfg.Duration
	eps := 1e-12 * math.Max(1, end)
	for i := 0; end-t > eps; i++ {
		select {
		case <-ctx.Done():
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: ctx.Err()}
		default:
		}

		trial := dt
		last := false
		if t+trial >= end {
			trial = end - t
			last = true
		}

		next, taken, proposed, err := s.adaptiveStep(dyn, x, t, trial, cfg, result)
		if err != nil {
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
		}
		if cfg.ValidateState && !next.IsValid() {
			return &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}
		if taken < trial {
			s.logger.Debug("step reduced", zap.Float64("t", t), zap.Float64("tried", trial), zap.Float64("taken", taken))
		}

		x = next
		if last && taken == trial {
			t = end
		} else {
			t += taken
		}
		result.StepsTaken++
		s.record(result, x, t)

		dt = proposed
		if cfg.MaxDt > 0 && dt > cfg.MaxDt {
			dt = cfg.MaxDt
		}
	}
	return nil
}

// adaptiveStep uses the integrator's own error control when it has one and
// falls back to step doubling otherwise.
func (s *Simulator) adaptiveStep(dyn dynamo.System, x dynamo.State, t, dt float64, cfg dynamo.Config, result *dynamo.Result) (dynamo.State, float64, float64, error) {
	if adaptive, ok := s.integrator.(dynamo.AdaptiveIntegrator); ok {
		return adaptive.StepAdaptive(dyn, x, t, dt, cfg.Tolerance)
	}

	for {
		if dt < cfg.MinDt {
			return nil, 0, 0, fmt.Errorf("%w: dt=%g at t=%g", dynamo.ErrStepTooSmall, dt, t)
		}
		x1, err := s.integrator.Step(dyn, x, t, dt)
		if err != nil {
			return nil, 0, 0, err
		}
		xHalf, err := s.integrator.Step(dyn, x, t, dt/2)
		if err != nil {
			return nil, 0, 0, err
		}
		x2, err := s.integrator.Step(dyn, xHalf, t+dt/2, dt/2)
		if err != nil {
			return nil, 0, 0, err
		}

		stepErr := x1.Sub(x2).MaxAbs()
		if stepErr > cfg.Tolerance {
			result.Rejected++
			dt /= 2
			continue
		}

		proposed := dt
		if stepErr < cfg.Tolerance/10 {
			proposed = dt * 2
		}
		return x2, dt, proposed, nil
	}
}

func validateConfig(cfg dynamo.Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping")
	}
	if cfg.Adaptive && cfg.MaxDt > 0 && cfg.MinDt > cfg.MaxDt {
		return fmt.Errorf("min_dt %g exceeds max_dt %g", cfg.MinDt, cfg.MaxDt)
	}
	return nil
}

func lastTime(r *dynamo.Result) float64 {
	if len(r.Times) == 0 {
		return 0
	}
	return r.Times[len(r.Times)-1]
}
