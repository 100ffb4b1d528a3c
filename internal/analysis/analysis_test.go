package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/kinetics"
)

func growthDef() kinetics.Definition {
	return kinetics.Definition{
		Name:      "growth",
		Species:   []string{"X", "S"},
		Reactions: []string{"growth"},
		Params:    map[string]float64{"mu": 0.1},
		Rates:     map[string]string{"growth": "mu*X"},
		MassBalances: map[string]map[string]float64{
			"X": {"growth": 1},
			"S": {"growth": -1},
		},
		InitialState: []float64{1, 10},
	}
}

func monodDef() kinetics.Definition {
	return kinetics.Definition{
		Name:      "monod",
		Species:   []string{"X", "S"},
		Reactions: []string{"growth"},
		Params:    map[string]float64{"mumax": 1, "Ks": 1, "Y": 0.5},
		Functions: map[string]string{"mu": "mumax*S/(S+Ks)", "qS": "mu/Y"},
		Rates:     map[string]string{"growth": "mu*X"},
		MassBalances: map[string]map[string]float64{
			"X": {"growth": 1},
			"S": {"growth": -2},
		},
	}
}

func TestSummarize(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	states := [][]float64{
		{1, 10},
		{3, 7},
		{2, 4},
		{1.5, 4},
	}

	got, err := Summarize([]string{"X", "S"}, times, states)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, SpeciesSummary{Name: "X", Initial: 1, Final: 1.5, Min: 1, Max: 3, MaxTime: 1}, got[0])
	assert.Equal(t, SpeciesSummary{Name: "S", Initial: 10, Final: 4, Min: 4, Max: 10, MaxTime: 0}, got[1])
}

func TestSummarizeErrors(t *testing.T) {
	_, err := Summarize([]string{"X"}, nil, nil)
	assert.Error(t, err)

	_, err = Summarize([]string{"X"}, []float64{0}, [][]float64{{1}, {2}})
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)

	_, err = Summarize([]string{"X", "S"}, []float64{0}, [][]float64{{1}})
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestDerivedSeries(t *testing.T) {
	sys, err := kinetics.Assemble(monodDef())
	require.NoError(t, err)

	series, err := DerivedSeries(sys, [][]float64{{1, 1}, {1, 3}})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.5, 0.75}, series["mu"], 1e-12)
	assert.InDeltaSlice(t, []float64{1.0, 1.5}, series["qS"], 1e-12)
}

func TestDerivedSeriesError(t *testing.T) {
	sys, err := kinetics.Assemble(monodDef(), kinetics.WithParams(map[string]float64{"Ks": 0}))
	require.NoError(t, err)

	_, err = DerivedSeries(sys, [][]float64{{1, 1}, {1, 0}})
	assert.ErrorIs(t, err, dynamo.ErrNumeric)
}

func TestSteadyState(t *testing.T) {
	sys, err := kinetics.Assemble(monodDef())
	require.NoError(t, err)

	ok, rate, err := SteadyState(sys, dynamo.State{1, 0}, 1e-9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, rate)

	ok, rate, err = SteadyState(sys, dynamo.State{1, 1}, 1e-9)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, 1.0, rate, 1e-12)
}

func TestScan(t *testing.T) {
	req := ScanRequest{
		Definition: growthDef(),
		Param:      "mu",
		From:       0,
		To:         0.2,
		Steps:      3,
		Species:    "X",
		Config:     dynamo.Config{Dt: 0.01, Duration: 1, ValidateState: true},
		Integrator: "rk4",
		Limit:      2,
	}

	points, err := Scan(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, points, 3)

	for i, mu := range []float64{0, 0.1, 0.2} {
		assert.InDelta(t, mu, points[i].Param, 1e-12)
		assert.InDelta(t, math.Exp(mu), points[i].Final, 1e-8)
		assert.InDelta(t, points[i].Final, points[i].Peak, 1e-12)
	}
}

func TestScanRejectsUnknownNames(t *testing.T) {
	base := ScanRequest{
		Definition: growthDef(),
		Param:      "mu",
		Species:    "X",
		Steps:      2,
		Config:     dynamo.Config{Dt: 0.1, Duration: 1},
	}

	req := base
	req.Param = "kd"
	_, err := Scan(context.Background(), req)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)

	req = base
	req.Species = "P"
	_, err = Scan(context.Background(), req)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)

	req = base
	req.Integrator = "verlet"
	_, err = Scan(context.Background(), req)
	assert.Error(t, err)
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, ScanRequest{
		Definition: growthDef(),
		Param:      "mu",
		From:       0.1,
		To:         0.2,
		Steps:      2,
		Species:    "X",
		Config:     dynamo.Config{Dt: 0.01, Duration: 1},
		Integrator: "rk4",
	})
	assert.ErrorIs(t, err, context.Canceled)
}
