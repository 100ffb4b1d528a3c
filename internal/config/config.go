package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/kinetics"
)

const (
	DefaultModel      = "anane2017"
	DefaultIntegrator = "rk45"
	DefaultDt         = 0.01
	DefaultDuration   = 10.0
	DefaultTolerance  = 1e-6
	DefaultMinDt      = 1e-10
	DefaultMaxDt      = 0.1
)

// Config describes one simulation run. Model is a built-in model name or a
// path to a model file.
type Config struct {
	Model      string             `yaml:"model"`
	Integrator string             `yaml:"integrator"`
	Dt         float64            `yaml:"dt"`
	Duration   float64            `yaml:"duration"`
	Adaptive   bool               `yaml:"adaptive"`
	Tolerance  float64            `yaml:"tolerance"`
	MinDt      float64            `yaml:"min_dt"`
	MaxDt      float64            `yaml:"max_dt"`
	Params     map[string]float64 `yaml:"params,omitempty"`
	Initial    map[string]float64 `yaml:"initial,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      DefaultModel,
		Integrator: DefaultIntegrator,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Adaptive:   true,
		Tolerance:  DefaultTolerance,
		MinDt:      DefaultMinDt,
		MaxDt:      DefaultMaxDt,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy, so presets can be modified safely.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Params = copyMap(c.Params)
	cp.Initial = copyMap(c.Initial)
	return &cp
}

// SimConfig converts the run settings for the simulator.
func (c *Config) SimConfig() dynamo.Config {
	sc := dynamo.DefaultConfig()
	sc.Dt = c.Dt
	sc.Duration = c.Duration
	sc.Adaptive = c.Adaptive
	if c.Tolerance > 0 {
		sc.Tolerance = c.Tolerance
	}
	if c.MinDt > 0 {
		sc.MinDt = c.MinDt
	}
	if c.MaxDt > 0 {
		sc.MaxDt = c.MaxDt
	}
	return sc
}

// InitialState returns the definition's initial state with the per-species
// overrides of the config applied.
func (c *Config) InitialState(def kinetics.Definition) (dynamo.State, error) {
	x0 := def.Initial()
	names := make([]string, 0, len(c.Initial))
	for name := range c.Initial {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		i, ok := def.SpeciesIndex(name)
		if !ok {
			return nil, fmt.Errorf("initial value for unknown species %q", name)
		}
		x0[i] = c.Initial[name]
	}
	return x0, nil
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", c.Duration)
	}
	if c.Adaptive && c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping")
	}
	return nil
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
