// Package sweep solves a batch of ascent scenarios in parallel.
package sweep

import (
	"context"
	"runtime"
	"time"

	"github.com/san-kum/ascent/internal/pvg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Case is one scenario of a sweep.
type Case struct {
	Name  string
	Value float64
	Build func() (*pvg.Builder, error)
}

type Result struct {
	Name     string
	Value    float64
	Solution *pvg.Solution
	Err      error
	Elapsed  time.Duration
}

type Ensemble struct {
	limit int
	log   *zap.Logger
}

// NewEnsemble runs at most limit solves at once; limit <= 0 means GOMAXPROCS.
func NewEnsemble(limit int, log *zap.Logger) *Ensemble {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ensemble{limit: limit, log: log}
}

// Run solves every case. Failed solves are reported in their Result; Run
// itself only fails when ctx is done. Results keep the order of cases.
func (e *Ensemble) Run(ctx context.Context, cases []Case) ([]Result, error) {
	results := make([]Result, len(cases))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			sol, err := e.solve(ctx, c)
			results[i] = Result{Name: c.Name, Value: c.Value, Solution: sol, Err: err, Elapsed: time.Since(start)}
			if err != nil {
				e.log.Debug("sweep case failed", zap.String("case", c.Name), zap.Error(err))
			}
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Ensemble) solve(ctx context.Context, c Case) (*pvg.Solution, error) {
	b, err := c.Build()
	if err != nil {
		return nil, err
	}
	// each goroutine owns its arena
	a, err := b.Arena(pvg.NewArena()).Logger(e.log.With(zap.String("case", c.Name))).Build()
	if err != nil {
		return nil, err
	}
	if err := a.Run(ctx); err != nil {
		return nil, err
	}
	return a.Solution(), nil
}
