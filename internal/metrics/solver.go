package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Solver collects optimizer outcomes. A nil *Solver discards everything.
type Solver struct {
	solves       *prometheus.CounterVec
	iterations   prometheus.Histogram
	residual     prometheus.Gauge
	duration     prometheus.Histogram
	integrations prometheus.Counter
	published    prometheus.Gauge
}

// NewSolver registers the solver metrics with reg.
func NewSolver(reg prometheus.Registerer) *Solver {
	s := &Solver{
		solves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ascent_solves_total",
				Help: "Completed guidance solves by outcome",
			},
			[]string{"outcome"},
		),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ascent_solve_iterations",
			Help:    "Newton iterations per solve",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),
		residual: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ascent_residual_norm",
			Help: "Residual norm at the end of the last solve",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ascent_solve_duration_seconds",
			Help:    "Wall time per solve",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		integrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ascent_rhs_evaluations_total",
			Help: "Derivative evaluations performed by the integrator",
		}),
		published: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ascent_solution_published_timestamp_seconds",
			Help: "Unix time the current guidance solution was published",
		}),
	}
	reg.MustRegister(s.solves, s.iterations, s.residual, s.duration, s.integrations, s.published)
	return s
}

func (s *Solver) ObserveSolve(outcome string, iterations int, znorm float64, elapsed time.Duration) {
	if s == nil {
		return
	}
	s.solves.WithLabelValues(outcome).Inc()
	s.iterations.Observe(float64(iterations))
	s.residual.Set(znorm)
	s.duration.Observe(elapsed.Seconds())
}

func (s *Solver) AddIntegrations(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.integrations.Add(float64(n))
}

func (s *Solver) MarkPublished(at time.Time) {
	if s == nil {
		return
	}
	s.published.Set(float64(at.Unix()))
}
