package main

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/config"
	"github.com/san-kum/ascent/internal/pvg"
	"github.com/san-kum/ascent/internal/sweep"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sweepParams maps a parameter name onto the scenario field it varies.
var sweepParams = map[string]func(c *config.Config, v float64){
	"apoapsis_km": func(c *config.Config, v float64) { c.Target.Apoapsis = c.Body.Radius + v*1e3 },
	"periapsis_km": func(c *config.Config, v float64) {
		c.Target.Periapsis = c.Body.Radius + v*1e3
		c.Target.Attach = c.Target.Periapsis
	},
	"inclination_deg": func(c *config.Config, v float64) { c.Target.Inclination = v },
}

func newSweepCmd() *cobra.Command {
	var (
		param    string
		from, to float64
		steps    int
		jobs     int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "solve a scenario over a range of one target parameter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, ok := sweepParams[param]
			if !ok {
				return fmt.Errorf("unknown sweep parameter %q", param)
			}
			if steps < 1 {
				return fmt.Errorf("steps must be positive")
			}
			base, err := loadScenario()
			if err != nil {
				return err
			}

			cases := make([]sweep.Case, steps)
			for i := range cases {
				v := from
				if steps > 1 {
					v = from + (to-from)*float64(i)/float64(steps-1)
				}
				cfg := base.Clone()
				set(cfg, v)
				cases[i] = sweep.Case{
					Name:  fmt.Sprintf("%s=%g", param, v),
					Value: v,
					Build: cfg.Builder,
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			start := time.Now()
			results, err := sweep.NewEnsemble(jobs, logger.Named("sweep")).Run(ctx, cases)
			if err != nil {
				return err
			}
			logger.Info("sweep finished", zap.Int("cases", len(cases)), zap.Duration("elapsed", time.Since(start)))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\tSTATUS\tITER\tBURNOUT\tVGO\tSMA\tINC\tTIME\n", param)
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(w, "%g\tfailed: %v\t\t\t\t\t\t%s\n", r.Value, r.Err, r.Elapsed.Round(time.Millisecond))
					continue
				}
				fmt.Fprintln(w, sweepRow(r.Value, r.Solution, r.Elapsed))
			}
			return w.Flush()
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().StringVar(&param, "param", "apoapsis_km", "parameter to vary: apoapsis_km, periapsis_km or inclination_deg")
	cmd.Flags().Float64Var(&from, "from", 200, "first value")
	cmd.Flags().Float64Var(&to, "to", 10000, "last value")
	cmd.Flags().IntVar(&steps, "steps", 5, "number of values")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "parallel solves (default GOMAXPROCS)")
	return cmd
}

func sweepRow(v float64, sol *pvg.Solution, elapsed time.Duration) string {
	el := sol.Elements()
	return fmt.Sprintf("%g\tconverged\t%d\tT+%.1fs\t%.1fm/s\t%.1fkm\t%.3f°\t%s",
		v, sol.Iterations(), sol.Tf()-sol.T0(), sol.Vgo(sol.T0()), el.SMA/1e3, astro.Rad2Deg(el.Inc),
		elapsed.Round(time.Millisecond))
}
