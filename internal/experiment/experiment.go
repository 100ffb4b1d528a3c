// Package experiment wires a run configuration to an assembled model, an
// integrator and a simulator.
package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/sim"
	"github.com/san-kum/reactsim/internal/storage"
)

type Experiment struct {
	cfg       *config.Config
	logger    *zap.Logger
	def       kinetics.Definition
	system    *kinetics.System
	x0        dynamo.State
	simulator *sim.Simulator
}

func New(cfg *config.Config, logger *zap.Logger) *Experiment {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Experiment{cfg: cfg.Clone(), logger: logger}
}

// Setup resolves the model, applies parameter and initial-state overrides and
// builds the simulator. Extra metrics are added after the registry defaults.
func (e *Experiment) Setup(reg *Registry, extra ...dynamo.Metric) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	def, err := reg.GetDefinition(e.cfg.Model)
	if err != nil {
		return err
	}
	system, err := kinetics.Assemble(def,
		kinetics.WithParams(e.cfg.Params),
		kinetics.WithLogger(e.logger))
	if err != nil {
		return fmt.Errorf("assembling %s: %w", def.Name, err)
	}
	x0, err := e.cfg.InitialState(def)
	if err != nil {
		return err
	}
	integ, err := reg.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return err
	}

	e.def = system.Definition()
	e.system = system
	e.x0 = x0
	e.simulator = sim.New(system, integ)
	e.simulator.SetLogger(e.logger.With(zap.String("model", def.Name)))
	for _, m := range reg.DefaultMetrics(def) {
		e.simulator.AddMetric(m)
	}
	for _, m := range extra {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.x0, e.cfg.SimConfig())
}

func (e *Experiment) Config() *config.Config { return e.cfg.Clone() }

// Definition returns the model definition with parameter overrides applied.
func (e *Experiment) Definition() kinetics.Definition { return e.def.Clone() }

func (e *Experiment) System() *kinetics.System { return e.system }

func (e *Experiment) InitialState() dynamo.State { return e.x0.Clone() }

// Metadata describes the run for storage. Result-dependent fields are filled
// in by storage.Store.Save.
func (e *Experiment) Metadata() storage.RunMetadata {
	return storage.RunMetadata{
		Model:      e.def.Name,
		Integrator: e.cfg.Integrator,
		Dt:         e.cfg.Dt,
		Duration:   e.cfg.Duration,
		Adaptive:   e.cfg.Adaptive,
		Tolerance:  e.cfg.Tolerance,
		Species:    append([]string(nil), e.def.Species...),
		Params:     e.def.Clone().Params,
		Initial:    e.x0.Clone(),
	}
}

// Simulator returns the simulator built by Setup, or nil before Setup.
// Observers added to it see every recorded step of Run.
func (e *Experiment) Simulator() *sim.Simulator {
	return e.simulator
}
