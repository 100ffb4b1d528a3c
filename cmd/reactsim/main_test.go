package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments("param", []string{"mu=0.5", " Ks = 2 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"mu": 0.5, "Ks": 2}, got)

	got, err = parseAssignments("param", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseAssignments("init", []string{"X"})
	assert.ErrorContains(t, err, "--init")

	_, err = parseAssignments("param", []string{"mu=fast"})
	assert.Error(t, err)
}

func newTestRunCmd(t *testing.T, set map[string]string) (*cobra.Command, *runFlags) {
	t.Helper()
	f := &runFlags{}
	cmd := &cobra.Command{Use: "run"}
	bindRunFlags(cmd, f)
	for k, v := range set {
		require.NoError(t, cmd.Flags().Set(k, v))
	}
	return cmd, f
}

func TestResolveConfigDefaults(t *testing.T) {
	cmd, f := newTestRunCmd(t, nil)
	cfg, err := resolveConfig(cmd, nil, f)
	require.NoError(t, err)
	assert.Equal(t, "anane2017", cfg.Model)
	assert.Equal(t, "rk45", cfg.Integrator)
	assert.True(t, cfg.Adaptive)
}

func TestResolveConfigPresetAndFlags(t *testing.T) {
	cmd, f := newTestRunCmd(t, map[string]string{
		"preset": "fast",
		"time":   "3",
		"param":  "mu=0.7",
		"init":   "X=4",
	})
	cfg, err := resolveConfig(cmd, []string{"growth"}, f)
	require.NoError(t, err)

	assert.Equal(t, "growth", cfg.Model)
	assert.Equal(t, 0.05, cfg.Dt)
	assert.Equal(t, 3.0, cfg.Duration)
	assert.Equal(t, 0.7, cfg.Params["mu"])
	assert.Equal(t, 4.0, cfg.Initial["X"])
}

func TestResolveConfigUnknownPreset(t *testing.T) {
	cmd, f := newTestRunCmd(t, map[string]string{"preset": "nope"})
	_, err := resolveConfig(cmd, []string{"growth"}, f)
	assert.ErrorContains(t, err, "unknown preset")
}

func TestParseGrid(t *testing.T) {
	name, values, err := parseGrid("F=0:0.04:3")
	require.NoError(t, err)
	assert.Equal(t, "F", name)
	assert.Equal(t, []float64{0, 0.02, 0.04}, values)

	for _, bad := range []string{"F", "F=0:1", "F=a:1:2", "F=0:1:0"} {
		_, _, err := parseGrid(bad)
		assert.Error(t, err, bad)
	}
}

func TestProgressReportsEachTenth(t *testing.T) {
	var buf strings.Builder
	p := &progress{w: &buf, end: 10}
	for i := 0; i <= 20; i++ {
		p.OnStep(nil, float64(i)*0.5)
	}

	out := buf.String()
	assert.Equal(t, 11, strings.Count(out, "%)"))
	assert.Contains(t, out, "t=0/10 (0%)")
	assert.Contains(t, out, "t=5/10 (50%)")
	assert.True(t, strings.HasSuffix(out, "t=10/10 (100%)"))
}
