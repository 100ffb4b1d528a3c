package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/reactsim/internal/storage"
	"github.com/san-kum/reactsim/internal/viz"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tINTEG\tSTEPS\tSTATUS")
			for _, run := range runs {
				status := "ok"
				if run.Error != "" {
					status = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%d\t%s\n",
					run.ID[:8],
					run.Model,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.Duration,
					run.Integrator,
					run.Steps,
					status,
				)
			}
			return w.Flush()
		},
	}
}

// loadRun opens the store and reads a run by id, id prefix or "latest".
func loadRun(ref string) (*storage.RunMetadata, []float64, [][]float64, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	defer st.Close()

	id, err := st.Resolve(ref)
	if err != nil {
		return nil, nil, nil, err
	}
	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, nil, err
	}
	_, times, states, err := st.LoadStates(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(states) == 0 {
		return nil, nil, nil, fmt.Errorf("run %s has no data", id)
	}
	return meta, times, states, nil
}

func newPlotCmd() *cobra.Command {
	var (
		species []string
		width   int
		height  int
	)
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results (latest run by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, times, states, err := loadRun(runRef(args))
			if err != nil {
				return err
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("model: %s\n", meta.Model)
			fmt.Printf("samples: %d\n\n", len(states))

			selected := species
			if len(selected) == 0 {
				selected = meta.Species
			}
			for _, name := range selected {
				idx := indexOf(meta.Species, name)
				if idx < 0 {
					return fmt.Errorf("run %s has no species %q", meta.ID, name)
				}
				graph := viz.PlotSeries(times, []string{name}, [][]float64{viz.Column(states, idx)},
					viz.PlotOptions{Width: width, Height: height})
				fmt.Println(graph)
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&species, "species", nil, "species to plot (default all)")
	cmd.Flags().IntVar(&width, "width", 80, "plot width")
	cmd.Flags().IntVar(&height, "height", 10, "plot height")
	return cmd
}

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view [run_id]",
		Short: "browse a run interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, times, states, err := loadRun(runRef(args))
			if err != nil {
				return err
			}
			b, err := viz.NewBrowser(meta.Model+" "+meta.ID[:8], meta.Species, times, states)
			if err != nil {
				return err
			}
			return viz.RunBrowser(b)
		},
	}
}

func newExportCSVCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write a run's states.csv to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := st.Resolve(runRef(args))
			if err != nil {
				return err
			}
			f, err := os.Open(st.CSVPath(id))
			if err != nil {
				return err
			}
			defer f.Close()

			_, err = io.Copy(os.Stdout, f)
			return err
		},
	}
}

func newExportJSONCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write a run with its trajectory as JSON to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, times, states, err := loadRun(runRef(args))
			if err != nil {
				return err
			}
			return storage.ExportJSON(os.Stdout, meta, times, states)
		},
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
