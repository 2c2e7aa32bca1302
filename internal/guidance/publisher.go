// Package guidance serves steering commands from the latest converged
// ascent solution and re-solves in the background.
package guidance

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/metrics"
	"github.com/san-kum/ascent/internal/pvg"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrNoSolution = errors.New("guidance: no solution published")

// Command is the steering output at one instant.
type Command struct {
	T       float64 `json:"t"`
	U       r3.Vec  `json:"u"`
	Pitch   float64 `json:"pitch_deg"`
	Heading float64 `json:"heading_deg"`
	Phase   int     `json:"phase"`
	Tgo     float64 `json:"tgo"`
	Vgo     float64 `json:"vgo"`
}

// Publisher holds the current solution. Readers never block writers.
type Publisher struct {
	current   atomic.Pointer[pvg.Solution]
	published atomic.Int64
	metrics   *metrics.Solver
}

func NewPublisher(m *metrics.Solver) *Publisher {
	return &Publisher{metrics: m}
}

// Publish replaces the current solution. nil is ignored.
func (p *Publisher) Publish(sol *pvg.Solution) {
	if sol == nil {
		return
	}
	p.current.Store(sol)
	p.published.Add(1)
	p.metrics.MarkPublished(time.Now())
}

func (p *Publisher) Current() *pvg.Solution {
	return p.current.Load()
}

// Published counts the solutions published so far.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

// Steering evaluates the current solution at t. Tgo runs to final burnout.
func (p *Publisher) Steering(t float64) (Command, error) {
	sol := p.current.Load()
	if sol == nil {
		return Command{}, ErrNoSolution
	}
	u := sol.U(t)
	pitch, heading := astro.PitchHeading(sol.R(t), u)
	return Command{
		T:       t,
		U:       u,
		Pitch:   astro.Rad2Deg(pitch),
		Heading: astro.Rad2Deg(heading),
		Phase:   sol.PhaseAt(t),
		Tgo:     sol.Tgo(t, sol.NumPhases()-1),
		Vgo:     sol.Vgo(t),
	}, nil
}
