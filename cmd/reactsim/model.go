package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/reactsim/internal/analysis"
	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/experiment"
	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/modelfile"
	"github.com/san-kum/reactsim/internal/models"
	"github.com/san-kum/reactsim/internal/viz"
)

// assembleModel loads a built-in model or model file and applies --param
// overrides.
func assembleModel(name string, params []string) (*kinetics.System, error) {
	def, err := experiment.NewRegistry().GetDefinition(name)
	if err != nil {
		return nil, err
	}
	overrides, err := parseAssignments("param", params)
	if err != nil {
		return nil, err
	}
	return kinetics.Assemble(def, kinetics.WithParams(overrides), kinetics.WithLogger(logger))
}

func newInspectCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "inspect [model|file]",
		Short: "show species, parameters and substituted rate formulas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := assembleModel(args[0], params)
			if err != nil {
				return err
			}
			def := sys.Definition()

			fmt.Println(viz.HeaderStyle.Render(def.Name))
			if def.Description != "" {
				fmt.Println(viz.Subtle.Render(def.Description))
			}
			fmt.Println()

			x0 := def.Initial()
			v0, rateErr := sys.Rates(x0)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SPECIES\tINITIAL")
			for i, sp := range def.Species {
				fmt.Fprintf(w, "%s\t%g\n", sp, x0[i])
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "PARAMETER\tVALUE")
			for _, p := range sortedNames(def.Params) {
				fmt.Fprintf(w, "%s\t%g\n", p, def.Params[p])
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Println()
			fmt.Println(viz.FormulaTable(sys))

			if rateErr != nil {
				fmt.Println(viz.ErrorStyle.Render("rates at the initial state: " + rateErr.Error()))
			} else {
				fmt.Println(viz.HeaderStyle.Render("initial rates"))
				for j, r := range sys.Reactions() {
					fmt.Printf("%-12s %.6g\n", r, v0[j])
				}
			}

			for owner, ids := range sys.Unresolved() {
				fmt.Println(viz.ErrorStyle.Render(fmt.Sprintf("%s: unresolved %v", owner, ids)))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter override name=value (repeatable)")
	return cmd
}

func newMatrixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matrix [model|file]",
		Short: "print the stoichiometry matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := assembleModel(args[0], nil)
			if err != nil {
				return err
			}
			fmt.Print(viz.MatrixTable(sys.Matrix()))
			fmt.Printf("\n%d species x %d reactions, %d non-zero\n",
				sys.Matrix().Rows(), sys.Matrix().Cols(), sys.Matrix().NonZero())
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var printYAML bool
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "check a model file and report problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := modelfile.Load(args[0])
			if err != nil {
				return err
			}
			sys, err := kinetics.Assemble(def, kinetics.WithLogger(logger))
			if err != nil {
				return err
			}
			if _, err := sys.Derive(def.Initial(), 0); err != nil {
				return fmt.Errorf("evaluating at the initial state: %w", err)
			}
			fmt.Printf("ok: %s, %d species, %d reactions, %d derived\n",
				def.Name, len(def.Species), len(def.Reactions), len(def.Functions))
			for _, name := range def.Unreferenced() {
				fmt.Println(viz.Subtle.Render("unused: " + name))
			}
			if printYAML {
				return modelfile.WriteYAML(os.Stdout, def)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printYAML, "print", false, "print the normalized model as YAML")
	return cmd
}

func newScanCmd() *cobra.Command {
	var (
		param      string
		from, to   float64
		steps      int
		species    string
		dt         float64
		duration   float64
		integrator string
	)
	cmd := &cobra.Command{
		Use:   "scan [model|file]",
		Short: "sweep one parameter and record the final value of a species",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := experiment.NewRegistry().GetDefinition(args[0])
			if err != nil {
				return err
			}
			if species == "" {
				species = def.Species[0]
			}

			simCfg := dynamo.Config{
				Dt: dt, Duration: duration, Adaptive: integrator == "rk45",
				Tolerance: config.DefaultTolerance, MinDt: config.DefaultMinDt, MaxDt: config.DefaultMaxDt,
				ValidateState: true,
			}
			points, err := analysis.Scan(cmd.Context(), analysis.ScanRequest{
				Definition: def,
				Param:      param,
				From:       from,
				To:         to,
				Steps:      steps,
				Species:    species,
				Config:     simCfg,
				Integrator: integrator,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\tFINAL_%s\tPEAK_%s\n", param, species, species)
			xs := make([]float64, len(points))
			finals := make([]float64, len(points))
			for i, p := range points {
				fmt.Fprintf(w, "%.6g\t%.6g\t%.6g\n", p.Param, p.Final, p.Peak)
				xs[i], finals[i] = p.Param, p.Final
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if to > from {
				fmt.Println()
				fmt.Println(viz.PlotSeries(xs, []string{species}, [][]float64{finals}, viz.PlotOptions{
					Width:   60,
					Height:  10,
					Caption: fmt.Sprintf("final %s vs %s", species, param),
				}))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&param, "param", "", "parameter to sweep")
	cmd.Flags().Float64Var(&from, "from", 0, "first value")
	cmd.Flags().Float64Var(&to, "to", 1, "last value")
	cmd.Flags().IntVar(&steps, "steps", 11, "number of values")
	cmd.Flags().StringVar(&species, "species", "", "species to record (default first)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	_ = cmd.MarkFlagRequired("param")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "list built-in models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tSPECIES\tREACTIONS\tDESCRIPTION")
			for _, name := range models.Names() {
				def, err := models.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", name, len(def.Species), len(def.Reactions), def.Description)
			}
			return w.Flush()
		},
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := models.Names()
			if len(args) > 0 {
				names = args
			}
			for _, model := range names {
				presets := config.ListPresets(model)
				if len(presets) == 0 {
					if len(args) > 0 {
						return fmt.Errorf("no presets for model: %s", model)
					}
					continue
				}
				fmt.Printf("%s:\n", model)
				for _, p := range presets {
					cfg := config.GetPreset(model, p)
					fmt.Printf("  %-10s integrator=%s dt=%g time=%g adaptive=%v\n",
						p, cfg.Integrator, cfg.Dt, cfg.Duration, cfg.Adaptive)
				}
			}
			return nil
		},
	}
}
