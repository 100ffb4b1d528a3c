// Package automation runs batches of simulations: YAML scenarios of saved
// runs and Monte Carlo perturbations of the initial state.
package automation

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/experiment"
	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/metrics"
	"github.com/san-kum/reactsim/internal/sim"
	"github.com/san-kum/reactsim/internal/storage"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. Unset fields fall back to the preset, or to
// the defaults when no preset is named.
type ScenarioStep struct {
	Name       string             `yaml:"name"`
	Model      string             `yaml:"model"`
	Preset     string             `yaml:"preset"`
	Integrator string             `yaml:"integrator"`
	Dt         float64            `yaml:"dt"`
	Duration   float64            `yaml:"duration"`
	Adaptive   *bool              `yaml:"adaptive"`
	Tolerance  float64            `yaml:"tolerance"`
	Params     map[string]float64 `yaml:"params"`
	Initial    map[string]float64 `yaml:"initial"`
}

// LoadScenario loads a scenario from a YAML file. Unknown keys are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var scenario Scenario
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

// Config resolves the step into a run configuration.
func (s ScenarioStep) Config() (*config.Config, error) {
	var cfg *config.Config
	if s.Preset != "" {
		cfg = config.GetPreset(s.Model, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q for model %q", s.Preset, s.Model)
		}
	} else {
		cfg = config.DefaultConfig()
		cfg.Model = s.Model
	}

	if s.Integrator != "" {
		cfg.Integrator = s.Integrator
	}
	if s.Dt > 0 {
		cfg.Dt = s.Dt
	}
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	if s.Adaptive != nil {
		cfg.Adaptive = *s.Adaptive
	}
	if s.Tolerance > 0 {
		cfg.Tolerance = s.Tolerance
	}
	if len(s.Params) > 0 && cfg.Params == nil {
		cfg.Params = make(map[string]float64, len(s.Params))
	}
	for k, v := range s.Params {
		cfg.Params[k] = v
	}
	if len(s.Initial) > 0 && cfg.Initial == nil {
		cfg.Initial = make(map[string]float64, len(s.Initial))
	}
	for k, v := range s.Initial {
		cfg.Initial[k] = v
	}
	return cfg, nil
}

// StepResult is the outcome of one scenario step. RunID is empty when the
// runner has no store.
type StepResult struct {
	Name   string
	RunID  string
	Result *dynamo.Result
}

type Runner struct {
	Registry *experiment.Registry
	// Store, when set, receives every completed step.
	Store  *storage.Store
	Logger *zap.Logger
}

// RunScenario executes the steps in order and stops at the first failure,
// returning the steps completed so far.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := r.Registry
	if reg == nil {
		reg = experiment.NewRegistry()
	}

	results := make([]StepResult, 0, len(scenario.Steps))
	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("%s#%d", step.Model, i+1)
		}
		log := logger.With(zap.String("scenario", scenario.Name), zap.String("step", name))
		log.Info("running step", zap.Int("index", i+1), zap.Int("of", len(scenario.Steps)))

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp := experiment.New(cfg, log)
		if err := exp.Setup(reg); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: name, Result: result}
		if r.Store != nil {
			if sr.RunID, err = r.Store.Save(exp.Metadata(), result); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
			log.Info("run saved", zap.String("id", sr.RunID))
		}
		results = append(results, sr)
	}

	return results, nil
}

// MonteCarloConfig perturbs every initial concentration by a uniform
// relative amount in [-Perturbation, +Perturbation].
type MonteCarloConfig struct {
	Definition   kinetics.Definition
	Integrator   string
	Base         dynamo.State
	Perturbation float64
	NumTrials    int
	Sim          dynamo.Config
	Seed         int64
	Limit        int
	Logger       *zap.Logger
}

// MonteCarloResult holds one trial
type MonteCarloResult struct {
	TrialID    int
	InitState  dynamo.State
	FinalState dynamo.State
	// NonNegative is false if any species went below zero during the trial.
	NonNegative bool
}

// RunMonteCarlo executes the trials in parallel. The same seed reproduces
// the same initial states.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig) ([]MonteCarloResult, error) {
	if cfg.NumTrials <= 0 {
		return nil, fmt.Errorf("monte carlo needs at least one trial")
	}
	sys, err := kinetics.Assemble(cfg.Definition, kinetics.WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}
	reg := experiment.NewRegistry()
	if _, err := reg.GetIntegrator(cfg.Integrator); err != nil {
		return nil, err
	}

	base := cfg.Base
	if base == nil {
		base = cfg.Definition.Initial()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	jobs := make([]sim.Job, cfg.NumTrials)
	for trial := range jobs {
		init := make(dynamo.State, len(base))
		for i, v := range base {
			init[i] = v * (1 + (rng.Float64()-0.5)*2*cfg.Perturbation)
			if init[i] < 0 {
				init[i] = 0
			}
		}
		jobs[trial] = sim.Job{
			Label:   fmt.Sprintf("trial-%d", trial),
			System:  sys,
			Initial: init,
			Config:  cfg.Sim,
		}
	}

	ens := &sim.Ensemble{
		NewIntegrator: func() dynamo.Integrator {
			integ, _ := reg.GetIntegrator(cfg.Integrator)
			return integ
		},
		NewMetrics: func() []dynamo.Metric {
			return []dynamo.Metric{metrics.NewNonNegativity(0)}
		},
		Limit:  cfg.Limit,
		Logger: cfg.Logger,
	}
	runs, err := ens.Run(ctx, jobs)
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(runs))
	for i, res := range runs {
		results[i] = MonteCarloResult{
			TrialID:     i,
			InitState:   jobs[i].Initial,
			FinalState:  res.Final(),
			NonNegative: res.Metrics["non_negativity"] == 1,
		}
	}
	return results, nil
}

// MonteCarloStats counts trials that stayed non-negative and those that did not.
func MonteCarloStats(results []MonteCarloResult) (nonNegative int, negative int) {
	for _, r := range results {
		if r.NonNegative {
			nonNegative++
		} else {
			negative++
		}
	}
	return
}
