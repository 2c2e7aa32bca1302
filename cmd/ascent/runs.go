package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/storage"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored solutions",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tTERMINAL\tITER\tZNORM\tSMA\tINC")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.1e\t%.1fkm\t%.3f°\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Terminal,
			run.Iterations,
			run.Znorm,
			run.SMA/1e3,
			run.IncDeg,
		)
	}
	return w.Flush()
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := storage.New(dataDir).Load(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "run:\t%s\n", meta.ID)
			fmt.Fprintf(w, "scenario:\t%s\n", meta.Scenario)
			fmt.Fprintf(w, "solved:\t%s\n", meta.Timestamp.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "terminal:\t%s\n", meta.Terminal)
			fmt.Fprintf(w, "iterations:\t%d\n", meta.Iterations)
			fmt.Fprintf(w, "residual:\t%.3e\n", meta.Znorm)
			fmt.Fprintf(w, "burnout:\tT+%.2f s\n", meta.Tf-meta.T0)
			fmt.Fprintf(w, "vgo:\t%.2f m/s\n", meta.Vgo)
			fmt.Fprintf(w, "sma:\t%.3f km\n", meta.SMA/1e3)
			fmt.Fprintf(w, "ecc:\t%.6f\n", meta.Ecc)
			fmt.Fprintf(w, "inc:\t%.4f°\n", meta.IncDeg)
			fmt.Fprintf(w, "lan:\t%.4f°\n", meta.LANDeg)
			fmt.Fprintf(w, "argp:\t%.4f°\n", meta.ArgPDeg)

			names := make([]string, 0, len(meta.Metrics))
			for name := range meta.Metrics {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "%s:\t%.6g\n", name, meta.Metrics[name])
			}
			return w.Flush()
		},
	}
}

func newPlotCmd() *cobra.Command {
	var width, height int
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot altitude, speed, mass and pitch of a stored solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			samples, err := st.LoadSamples(args[0])
			if err != nil {
				return err
			}
			if len(samples) == 0 {
				return fmt.Errorf("no data to plot")
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("scenario: %s\n", meta.Scenario)
			fmt.Printf("samples: %d over %.1f s\n\n", len(samples), samples[len(samples)-1].T-samples[0].T)

			rbody := meta.BodyRadius
			series := []struct {
				caption string
				value   func(i int) float64
			}{
				{"altitude (km)", func(i int) float64 { return (r3.Norm(samples[i].R) - rbody) / 1e3 }},
				{"inertial speed (m/s)", func(i int) float64 { return r3.Norm(samples[i].V) }},
				{"mass (kg)", func(i int) float64 { return samples[i].M }},
				{"pitch (deg)", func(i int) float64 {
					p, _ := astro.PitchHeading(samples[i].R, samples[i].U)
					return astro.Rad2Deg(p)
				}},
			}
			for _, s := range series {
				data := make([]float64, len(samples))
				for i := range samples {
					data[i] = s.value(i)
					if math.IsNaN(data[i]) {
						data[i] = 0
					}
				}
				fmt.Println(asciigraph.Plot(data,
					asciigraph.Height(height),
					asciigraph.Width(width),
					asciigraph.Caption(s.caption),
				))
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 80, "plot width")
	cmd.Flags().IntVar(&height, "height", 10, "plot height")
	return cmd
}

func newExportJSONCmd() *cobra.Command {
	return newExportCmd("export-json", "export a stored solution as json", (*storage.Store).ExportJSON)
}

func newExportCSVCmd() *cobra.Command {
	return newExportCmd("export-csv", "export the samples of a stored solution as csv", (*storage.Store).ExportCSV)
}

func newExportCmd(use, short string, export func(*storage.Store, io.Writer, string) error) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   use + " [run_id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			if out == "" || out == "-" {
				return export(st, os.Stdout, args[0])
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export(st, f, args[0]); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
