package config

import "sort"

var Presets = map[string]map[string]*Config{
	"anane2017": {
		"batch": {
			Model: "anane2017", Integrator: "rk45", Dt: 0.001, Duration: 10.0,
			Adaptive: true, Tolerance: 1e-6, MaxDt: 0.1,
		},
		"fedbatch": {
			Model: "anane2017", Integrator: "rk45", Dt: 0.001, Duration: 12.0,
			Adaptive: true, Tolerance: 1e-6, MaxDt: 0.1,
			Params: map[string]float64{"F": 0.02},
		},
		"lowoxygen": {
			Model: "anane2017", Integrator: "rk45", Dt: 0.001, Duration: 8.0,
			Adaptive: true, Tolerance: 1e-6, MaxDt: 0.05,
			Params:  map[string]float64{"Kla": 120},
			Initial: map[string]float64{"X": 0.5},
		},
		"quick": {
			Model: "anane2017", Integrator: "rk4", Dt: 0.002, Duration: 2.0,
		},
	},
	"growth": {
		"default": {
			Model: "growth", Integrator: "rk4", Dt: 0.1, Duration: 20.0,
		},
		"fast": {
			Model: "growth", Integrator: "rk4", Dt: 0.05, Duration: 10.0,
			Params: map[string]float64{"mu": 0.5},
		},
	},
	"monod": {
		"batch": {
			Model: "monod", Integrator: "rk45", Dt: 0.01, Duration: 30.0,
			Adaptive: true, Tolerance: 1e-6, MaxDt: 0.5,
		},
		"lean": {
			Model: "monod", Integrator: "rk45", Dt: 0.01, Duration: 30.0,
			Adaptive: true, Tolerance: 1e-6, MaxDt: 0.5,
			Initial: map[string]float64{"S": 2},
		},
	},
}

// GetPreset returns a copy of a named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
