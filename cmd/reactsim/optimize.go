package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/experiment"
	"github.com/san-kum/reactsim/internal/optim"
)

// parseGrid reads name=from:to:n.
func parseGrid(arg string) (string, []float64, error) {
	name, rng, ok := strings.Cut(arg, "=")
	if !ok {
		return "", nil, fmt.Errorf("--grid %q: expected name=from:to:n", arg)
	}
	parts := strings.Split(rng, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("--grid %q: expected name=from:to:n", arg)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("--grid %q: %w", arg, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("--grid %q: %w", arg, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("--grid %q: invalid count", arg)
	}
	return strings.TrimSpace(name), optim.Linspace(lo, hi, n), nil
}

func newOptimizeCmd() *cobra.Command {
	var (
		grids    []string
		metric   string
		maximize bool
		preset   string
		duration float64
	)
	cmd := &cobra.Command{
		Use:   "optimize [model]",
		Short: "grid search parameters for the best value of a run metric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := args[0]
			base := config.DefaultConfig()
			base.Model = model
			if preset != "" {
				if base = config.GetPreset(model, preset); base == nil {
					return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
				}
			}
			if cmd.Flags().Changed("time") {
				base.Duration = duration
			}

			names := make([]string, 0, len(grids))
			ranges := make([][]float64, 0, len(grids))
			for _, g := range grids {
				name, values, err := parseGrid(g)
				if err != nil {
					return err
				}
				names = append(names, name)
				ranges = append(ranges, values)
			}

			search := optim.NewGridSearch(names, ranges)
			search.Logger = logger
			best, trials, err := search.Search(cmd.Context(), base, experiment.NewRegistry(), metric, maximize)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\n", strings.Join(names, "\t"), strings.ToUpper(metric))
			for _, tr := range trials {
				cells := make([]string, len(names))
				for i, n := range names {
					cells[i] = strconv.FormatFloat(tr.Params[n], 'g', 6, 64)
				}
				val := strconv.FormatFloat(tr.Value, 'g', 6, 64)
				if tr.Err != nil {
					val = "error: " + tr.Err.Error()
				}
				fmt.Fprintf(w, "%s\t%s\n", strings.Join(cells, "\t"), val)
			}
			if ferr := w.Flush(); ferr != nil {
				return ferr
			}
			if err != nil {
				return err
			}

			fmt.Printf("\nbest %s = %.6g at", metric, best.Value)
			for _, n := range names {
				fmt.Printf(" %s=%g", n, best.Params[n])
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&grids, "grid", nil, "parameter grid name=from:to:n (repeatable)")
	cmd.Flags().StringVar(&metric, "metric", "", "metric to optimize, e.g. peak_X")
	cmd.Flags().BoolVar(&maximize, "maximize", false, "maximize instead of minimize")
	cmd.Flags().StringVar(&preset, "preset", "", "base preset")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	_ = cmd.MarkFlagRequired("grid")
	_ = cmd.MarkFlagRequired("metric")
	return cmd
}
