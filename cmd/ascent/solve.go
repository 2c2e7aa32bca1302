package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/san-kum/ascent/internal/config"
	"github.com/san-kum/ascent/internal/pvg"
	"github.com/san-kum/ascent/internal/storage"
	"github.com/san-kum/ascent/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSolveCmd() *cobra.Command {
	var (
		tui     bool
		save    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "solve an ascent scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadScenario()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			var sol *pvg.Solution
			if tui {
				sol, err = viz.Solve(ctx, cfg.Name, cfg.Solver.MaxIterations, scenarioSolver(cfg))
			} else {
				sol, err = scenarioSolver(cfg)(ctx, nil)
			}
			if err != nil {
				return err
			}
			logger.Info("solve finished", zap.String("scenario", cfg.Name), zap.Duration("elapsed", time.Since(start)))

			if !tui {
				fmt.Print(viz.Summary(sol))
			}
			if !save {
				return nil
			}
			st := storage.New(dataDir)
			if err := st.Init(); err != nil {
				return err
			}
			runID, err := st.Save(storage.FromSolution(cfg.Name, sol, cfg.Solver.Samples))
			if err != nil {
				return err
			}
			fmt.Printf("saved: %s\n", runID)
			return nil
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().BoolVar(&tui, "tui", false, "show live solver progress")
	cmd.Flags().BoolVar(&save, "save", true, "store the solution under --data")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the solve after this long")
	return cmd
}

// scenarioSolver solves cfg from a fresh bootstrap, reporting progress to
// observe when it is non-nil.
func scenarioSolver(cfg *config.Config) func(context.Context, func(pvg.Progress)) (*pvg.Solution, error) {
	return func(ctx context.Context, observe func(pvg.Progress)) (*pvg.Solution, error) {
		b, err := cfg.Builder()
		if err != nil {
			return nil, err
		}
		b.Logger(logger.Named("pvg").With(zap.String("scenario", cfg.Name)))
		if observe != nil {
			b.Observer(observe)
		}
		a, err := b.Build()
		if err != nil {
			return nil, err
		}
		if err := a.Run(ctx); err != nil {
			return nil, err
		}
		return a.Solution(), nil
	}
}
