// Package analysis post-processes reactor trajectories.
//
//   - [Summarize]: initial, final and extreme values per species
//   - [DerivedSeries]: derived quantities (growth rate, uptake rates) along a trajectory
//   - [Scan]: parameter sweep recording the final value of one species
//   - [SteadyState]: whether dy/dt has vanished at a state
//
// A scan runs its members in parallel through [sim.Ensemble]:
//
//	points, err := analysis.Scan(ctx, analysis.ScanRequest{
//	    Definition: def,
//	    Param:      "F",
//	    From:       0, To: 0.05, Steps: 11,
//	    Species:    "X",
//	    Config:     cfg,
//	})
package analysis
