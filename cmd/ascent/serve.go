package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/san-kum/ascent/internal/guidance"
	"github.com/san-kum/ascent/internal/metrics"
	"github.com/san-kum/ascent/internal/pvg"
	"github.com/san-kum/ascent/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve steering commands over http while re-solving in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadScenario()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.NewSolver(reg)

			log := logger.Named("guidance")
			pub := guidance.NewPublisher(m)
			worker := guidance.NewWorker(pub, guidance.WithLogger(log))
			worker.Start(ctx)
			defer worker.Stop()

			worker.Submit(guidance.BuilderJob(func() (*pvg.Builder, error) {
				b, err := cfg.Builder()
				if err != nil {
					return nil, err
				}
				return b.Logger(log.With(zap.String("scenario", cfg.Name))).Metrics(m), nil
			}))

			srv := &http.Server{
				Addr:              addr,
				Handler:           server.New(pub, worker, server.WithLogger(log), server.WithMetrics(m, reg)).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			logger.Info("serving", zap.String("addr", addr), zap.String("scenario", cfg.Name))

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdown); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
