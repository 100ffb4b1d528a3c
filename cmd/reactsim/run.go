package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/reactsim/internal/analysis"
	"github.com/san-kum/reactsim/internal/automation"
	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/experiment"
	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/metrics"
	"github.com/san-kum/reactsim/internal/sim"
	"github.com/san-kum/reactsim/internal/viz"
)

type runFlags struct {
	dt         float64
	duration   float64
	integrator string
	adaptive   bool
	tolerance  float64
	configFile string
	preset     string
	params     []string
	initial    []string
	noSave     bool
	progress   bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [model|file]",
		Short: "run simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, args, &f)
		},
	}
	bindRunFlags(cmd, &f)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().Float64Var(&f.dt, "dt", config.DefaultDt, "timestep (initial step when adaptive)")
	cmd.Flags().Float64Var(&f.duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().StringVar(&f.integrator, "integrator", config.DefaultIntegrator, "integrator")
	cmd.Flags().BoolVar(&f.adaptive, "adaptive", true, "adaptive step size control")
	cmd.Flags().Float64Var(&f.tolerance, "tol", config.DefaultTolerance, "local error tolerance")
	cmd.Flags().StringVar(&f.configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&f.preset, "preset", "", "use preset configuration")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "parameter override name=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.initial, "init", nil, "initial concentration species=value (repeatable)")
	cmd.Flags().BoolVar(&f.noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "report simulated time on stderr")
}

// resolveConfig layers the run configuration: defaults, then preset or
// config file, then explicitly set flags.
func resolveConfig(cmd *cobra.Command, args []string, f *runFlags) (*config.Config, error) {
	model := ""
	if len(args) > 0 {
		model = args[0]
	}

	var cfg *config.Config
	switch {
	case f.configFile != "":
		c, err := config.Load(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
		if model != "" {
			cfg.Model = model
		}
	case f.preset != "":
		if model == "" {
			model = config.DefaultModel
		}
		cfg = config.GetPreset(model, f.preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", f.preset, config.ListPresets(model))
		}
	default:
		cfg = config.DefaultConfig()
		if model != "" {
			cfg.Model = model
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = f.dt
	}
	if flags.Changed("time") {
		cfg.Duration = f.duration
	}
	if flags.Changed("integrator") {
		cfg.Integrator = f.integrator
	}
	if flags.Changed("adaptive") {
		cfg.Adaptive = f.adaptive
	}
	if flags.Changed("tol") {
		cfg.Tolerance = f.tolerance
	}

	params, err := parseAssignments("param", f.params)
	if err != nil {
		return nil, err
	}
	initial, err := parseAssignments("init", f.initial)
	if err != nil {
		return nil, err
	}
	if params != nil && cfg.Params == nil {
		cfg.Params = make(map[string]float64, len(params))
	}
	for k, v := range params {
		cfg.Params[k] = v
	}
	if initial != nil && cfg.Initial == nil {
		cfg.Initial = make(map[string]float64, len(initial))
	}
	for k, v := range initial {
		cfg.Initial[k] = v
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string, f *runFlags) error {
	cfg, err := resolveConfig(cmd, args, f)
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	def, err := registry.GetDefinition(cfg.Model)
	if err != nil {
		return err
	}
	troughs := make([]dynamo.Metric, len(def.Species))
	for i, sp := range def.Species {
		troughs[i] = metrics.NewTrough(sp, i)
	}

	exp := experiment.New(cfg, logger)
	if err := exp.Setup(registry, troughs...); err != nil {
		return err
	}

	var prog *progress
	if f.progress {
		prog = &progress{w: os.Stderr, end: cfg.Duration}
		exp.Simulator().AddObserver(prog)
	}

	fmt.Printf("running %s (%s, dt=%g, t=%g, adaptive=%v)...\n", def.Name, cfg.Integrator, cfg.Dt, cfg.Duration, cfg.Adaptive)
	start := time.Now()
	result, runErr := exp.Run(cmd.Context())
	elapsed := time.Since(start)
	if prog != nil {
		fmt.Fprintln(prog.w)
	}

	var simErr *dynamo.SimulationError
	if runErr != nil && !errors.As(runErr, &simErr) {
		return runErr
	}

	runID := ""
	if !f.noSave && len(result.States) > 0 {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		meta := exp.Metadata()
		if runErr != nil {
			meta.Error = runErr.Error()
		}
		if runID, err = st.Save(meta, result); err != nil {
			return err
		}
	}

	printResult(exp.Definition(), result, elapsed, runID)
	if runErr != nil {
		fmt.Println(viz.ErrorStyle.Render(fmt.Sprintf("\nstopped at t=%g after %d steps", simErr.Time, simErr.Step)))
		return runErr
	}
	return nil
}

// progress reports the simulated time each time another tenth of the run
// has been recorded.
type progress struct {
	w    io.Writer
	end  float64
	next int
}

func (p *progress) OnStep(_ dynamo.State, t float64) {
	if p.end <= 0 {
		return
	}
	pct := int(100 * t / p.end)
	if pct < p.next {
		return
	}
	fmt.Fprintf(p.w, "\r  t=%g/%g (%d%%)", t, p.end, pct)
	p.next = (pct/10 + 1) * 10
}

func printResult(def kinetics.Definition, result *dynamo.Result, elapsed time.Duration, runID string) {
	fmt.Printf("completed in %v\n", elapsed)
	if runID != "" {
		fmt.Printf("run id: %s\n", runID)
	}
	fmt.Printf("steps: %d (rejected %d, evaluations %d)\n", result.StepsTaken, result.Rejected, result.Evaluations)

	if final := result.Final(); final != nil {
		fmt.Println("\nfinal state:")
		for i, sp := range def.Species {
			fmt.Printf("  %-10s %s\n", sp, viz.MetricValue.Render(fmt.Sprintf("%.6g", final[i])))
		}
	}

	fmt.Println("\nmetrics:")
	for _, name := range sortedNames(result.Metrics) {
		fmt.Printf("  %-20s %.6g\n", viz.MetricLabel.Render(name), result.Metrics[name])
	}
}

func newCompareCmd() *cobra.Command {
	var dt, duration float64
	cmd := &cobra.Command{
		Use:   "compare [model] [integrator1] [integrator2] ...",
		Short: "compare integrators on one model with fixed steps",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return compareIntegrators(cmd.Context(), args[0], args[1:], dt, duration)
		},
	}
	cmd.Flags().Float64Var(&dt, "dt", 0.01, "timestep")
	cmd.Flags().Float64Var(&duration, "time", 10.0, "duration")
	return cmd
}

func compareIntegrators(ctx context.Context, model string, names []string, dt, duration float64) error {
	registry := experiment.NewRegistry()
	def, err := registry.GetDefinition(model)
	if err != nil {
		return err
	}
	sys, err := kinetics.Assemble(def, kinetics.WithLogger(logger))
	if err != nil {
		return err
	}
	x0 := def.Initial()

	fmt.Printf("comparing integrators for %s (dt=%g, duration=%g)\n\n", def.Name, dt, duration)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "INTEGRATOR\tFINAL_%s\tEVALS\tTIME_MS\n", def.Species[0])

	for _, name := range names {
		integ, err := registry.GetIntegrator(name)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}

		s := sim.New(sys, integ)
		s.SetLogger(logger)
		cfg := dynamo.Config{Dt: dt, Duration: duration, ValidateState: true}

		start := time.Now()
		result, err := s.Run(ctx, x0, cfg)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}

		fmt.Fprintf(w, "%s\t%.8g\t%d\t%.2f\n", name, result.Final()[0], result.Evaluations,
			float64(elapsed.Microseconds())/1000)
	}
	return w.Flush()
}

func newScenarioCmd() *cobra.Command {
	var noSave bool
	cmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run every step of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}

			runner := &automation.Runner{Logger: logger}
			if !noSave {
				st, err := openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				runner.Store = st
			}

			fmt.Printf("scenario %s: %d steps\n", sc.Name, len(sc.Steps))
			results, err := runner.RunScenario(cmd.Context(), sc)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tRUN\tSTEPS\tT_END")
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%s\t%d\t%g\n", r.Name, r.RunID, r.Result.StepsTaken, r.Result.Times[len(r.Result.Times)-1])
			}
			if ferr := w.Flush(); ferr != nil && err == nil {
				err = ferr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")
	return cmd
}

func newMonteCarloCmd() *cobra.Command {
	var (
		trials     int
		perturb    float64
		seed       int64
		dt         float64
		duration   float64
		integrator string
	)
	cmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "perturb the initial state and report the spread of final states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := experiment.NewRegistry().GetDefinition(args[0])
			if err != nil {
				return err
			}

			results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
				Definition:   def,
				Integrator:   integrator,
				Perturbation: perturb,
				NumTrials:    trials,
				Sim: dynamo.Config{
					Dt: dt, Duration: duration, Adaptive: integrator == "rk45",
					Tolerance: config.DefaultTolerance, MinDt: config.DefaultMinDt, MaxDt: config.DefaultMaxDt,
					ValidateState: true,
				},
				Seed:   seed,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			states := make([][]float64, len(results))
			times := make([]float64, len(results))
			for i, r := range results {
				states[i] = r.FinalState
				times[i] = float64(i)
			}
			summary, err := analysis.Summarize(def.Species, times, states)
			if err != nil {
				return err
			}
			ok, bad := automation.MonteCarloStats(results)
			fmt.Printf("%d trials, %d non-negative, %d with negative concentrations\n\n", len(results), ok, bad)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SPECIES\tFINAL_MIN\tFINAL_MAX")
			for _, s := range summary {
				fmt.Fprintf(w, "%s\t%.6g\t%.6g\n", s.Name, s.Min, s.Max)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	cmd.Flags().Float64Var(&perturb, "perturb", 0.1, "relative perturbation of each initial value")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	return cmd
}
