package guidance

import (
	"context"
	"sync"

	"github.com/san-kum/ascent/internal/pvg"
	"go.uber.org/zap"
)

// Job runs one solve, warm starting from warm when it is non-nil.
type Job func(ctx context.Context, warm *pvg.Solution) (*pvg.Solution, error)

// BuilderJob adapts a builder factory into a Job. The factory is called
// for every attempt so each gets fresh phases and arena.
func BuilderJob(build func() (*pvg.Builder, error)) Job {
	return func(ctx context.Context, warm *pvg.Solution) (*pvg.Solution, error) {
		b, err := build()
		if err != nil {
			return nil, err
		}
		if warm != nil {
			b.OldSolution(warm)
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

// Outcome reports one finished request.
type Outcome struct {
	Solution *pvg.Solution
	Err      error
	Retried  bool
}

// Worker runs submitted jobs one at a time. A pending job is replaced by a
// newer submission. Only successful solves are published.
type Worker struct {
	pub    *Publisher
	log    *zap.Logger
	notify func(Outcome)

	jobs   chan Job
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WorkerOption func(*Worker)

func WithLogger(l *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithNotify registers a callback run on the worker goroutine after each job.
func WithNotify(fn func(Outcome)) WorkerOption {
	return func(w *Worker) { w.notify = fn }
}

func NewWorker(pub *Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		pub:  pub,
		log:  zap.NewNop(),
		jobs: make(chan Job, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the worker goroutine. It stops when ctx is done or Stop is
// called.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-w.jobs:
				w.run(ctx, job)
			}
		}
	}()
}

// Submit queues job, dropping any job still waiting.
func (w *Worker) Submit(job Job) {
	for {
		select {
		case w.jobs <- job:
			return
		default:
		}
		select {
		case dropped := <-w.jobs:
			if dropped != nil {
				w.log.Debug("dropping superseded solve request")
			}
		default:
		}
	}
}

// Stop cancels any running solve and waits for the goroutine to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, job Job) {
	warm := w.pub.Current()
	sol, err := job(ctx, warm)
	retried := false
	if err != nil && warm != nil && ctx.Err() == nil {
		w.log.Info("warm started solve failed, bootstrapping", zap.Error(err))
		retried = true
		sol, err = job(ctx, nil)
	}

	if err != nil {
		w.log.Warn("solve failed, keeping last solution", zap.Error(err))
	} else {
		w.pub.Publish(sol)
		w.log.Info("solution published",
			zap.Int("iterations", sol.Iterations()),
			zap.Float64("znorm", sol.Znorm()))
	}
	if w.notify != nil {
		w.notify(Outcome{Solution: sol, Err: err, Retried: retried})
	}
}
