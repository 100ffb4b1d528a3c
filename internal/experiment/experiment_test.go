package experiment

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/dynamo"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Contains(t, reg.ListModels(), "anane2017")
	assert.Equal(t, []string{"euler", "rk4", "rk45"}, reg.ListIntegrators())

	a, err := reg.GetIntegrator("rk4")
	require.NoError(t, err)
	b, err := reg.GetIntegrator("rk4")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	_, err = reg.GetIntegrator("verlet")
	assert.Error(t, err)

	_, err = reg.GetDefinition("nope")
	assert.Error(t, err)
}

type stepRecorder struct {
	times []float64
}

func (r *stepRecorder) OnStep(_ dynamo.State, t float64) { r.times = append(r.times, t) }

func TestExperimentRun(t *testing.T) {
	cfg := config.GetPreset("growth", "default")
	cfg.Duration = 10
	cfg.Params = map[string]float64{"mu": 0.2}
	cfg.Initial = map[string]float64{"X": 2}

	exp := New(cfg, nil)
	assert.Nil(t, exp.Simulator())
	require.NoError(t, exp.Setup(NewRegistry()))

	steps := &stepRecorder{}
	exp.Simulator().AddObserver(steps)

	result, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.Times, steps.times)

	// dX/dt = mu*X with mu = 0.2, X(0) = 2
	assert.InDelta(t, 2*math.Exp(2), result.Final()[0], 1e-4)
	// S + X is conserved
	assert.InDelta(t, 12.0, result.Final()[0]+result.Final()[1], 1e-9)
	// X reaches 12 near t = 8.96, so S is negative from t = 9.0 on:
	// 11 of the 101 samples.
	assert.InDelta(t, 90.0/101.0, result.Metrics["non_negativity"], 1e-12)
	assert.InDelta(t, result.Final()[0], result.Metrics["peak_X"], 1e-12)
	assert.Equal(t, 0.2, exp.Definition().Params["mu"])
	assert.Equal(t, dynamo.State{2, 10}, exp.InitialState())

	meta := exp.Metadata()
	assert.Equal(t, "growth", meta.Model)
	assert.Equal(t, "rk4", meta.Integrator)
	assert.Equal(t, []string{"X", "S"}, meta.Species)
	assert.Equal(t, []float64{2, 10}, meta.Initial)
}

func TestExperimentFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: decay
species: [A]
reactions: [r]
params: {k: 1}
rates: {r: k*A}
mass_balances: {A: {r: -1}}
initial_state: [1]
`), 0o644))

	cfg := config.DefaultConfig()
	cfg.Model = path
	cfg.Duration = 1

	exp := New(cfg, nil)
	require.NoError(t, exp.Setup(NewRegistry()))
	result, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-1), result.Final()[0], 1e-5)
	assert.InDelta(t, 1.0, result.Times[len(result.Times)-1], 1e-9)
}

func TestExperimentSetupErrors(t *testing.T) {
	reg := NewRegistry()

	cfg := config.GetPreset("growth", "default")
	cfg.Params = map[string]float64{"unknown": 1}
	assert.ErrorIs(t, New(cfg, nil).Setup(reg), dynamo.ErrConfiguration)

	cfg = config.GetPreset("growth", "default")
	cfg.Integrator = "leapfrog"
	assert.Error(t, New(cfg, nil).Setup(reg))

	cfg = config.GetPreset("growth", "default")
	cfg.Initial = map[string]float64{"Q": 1}
	assert.Error(t, New(cfg, nil).Setup(reg))

	_, err := New(config.DefaultConfig(), nil).Run(context.Background())
	assert.Error(t, err)
}
