package pvg

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/dynamo"
	"github.com/san-kum/ascent/internal/integrators"
	"gonum.org/v1/gonum/spatial/r3"
)

// Solution is a converged trajectory. Times passed to its accessors are
// absolute epochs in seconds and are clamped to [T0, Tf]. Costates are in
// the scaled units of the problem that produced the solution.
type Solution struct {
	scale    Scale
	t0       float64
	mu       float64
	rbody    float64
	terminal string

	phases  []Phase
	arcs    []arc
	tStart  []float64
	dur     []float64
	interps []*integrators.Interpolant
	pmStart []float64
	mStart  []float64
	mEnd    []float64

	yf         []float64
	x          []float64
	znorm      float64
	iterations int
}

// Sample is one point of a solution sampled for export or display.
type Sample struct {
	T     float64
	Phase int
	R, V  r3.Vec
	M     float64
	U     r3.Vec
}

func (o *Optimizer) buildSolution(ctx context.Context, x []float64) (*Solution, error) {
	tr := o.newTrajectory(true)
	if err := o.shoot(ctx, x, tr); err != nil {
		return nil, err
	}
	if tr.truncated {
		return nil, fmt.Errorf("dense output: %w", dynamo.ErrMaxIterations)
	}
	n := len(o.arcs)
	s := &Solution{
		scale:      *o.problem.Scale,
		t0:         o.problem.T0,
		mu:         o.problem.Mu,
		rbody:      o.problem.Rbody,
		terminal:   o.problem.Terminal.Name(),
		phases:     append([]Phase(nil), o.phases...),
		arcs:       append([]arc(nil), o.arcs...),
		tStart:     tr.tStart,
		dur:        tr.dur,
		interps:    tr.interps,
		pmStart:    tr.pmStart,
		mStart:     make([]float64, n),
		mEnd:       make([]float64, n),
		yf:         append([]float64(nil), tr.ends[n-1]...),
		x:          append([]float64(nil), x...),
		znorm:      o.znorm,
		iterations: o.iterations,
	}
	for i := range tr.starts {
		s.mStart[i] = o.problem.Scale.FromMass(tr.starts[i][idxM])
		s.mEnd[i] = o.problem.Scale.FromMass(tr.ends[i][idxM])
	}
	return s, nil
}

func (s *Solution) tbar(t float64) float64 {
	tb := (t - s.t0) / s.scale.TimeScale
	n := len(s.tStart)
	end := s.tStart[n-1] + s.dur[n-1]
	return math.Min(math.Max(tb, 0), end)
}

func (s *Solution) phaseIndex(tb float64) int {
	n := len(s.tStart)
	last := n - 1
	for i := 0; i < n; i++ {
		if s.dur[i] <= 0 {
			continue
		}
		last = i
		if tb < s.tStart[i]+s.dur[i] {
			return i
		}
	}
	return last
}

func (s *Solution) state(t float64) (int, []float64) {
	tb := s.tbar(t)
	i := s.phaseIndex(tb)
	y := make([]float64, stateDim)
	s.interps[i].Evaluate(tb, y)
	return i, y
}

// PhaseAt is the index of the phase flown at t.
func (s *Solution) PhaseAt(t float64) int {
	return s.phaseIndex(s.tbar(t))
}

func (s *Solution) NumPhases() int { return len(s.phases) }

// Phase returns a copy of the i-th phase definition.
func (s *Solution) Phase(i int) Phase { return s.phases[i] }

func (s *Solution) PhaseStart(i int) float64 {
	return s.t0 + s.tStart[i]*s.scale.TimeScale
}

func (s *Solution) PhaseEnd(i int) float64 {
	return s.t0 + (s.tStart[i]+s.dur[i])*s.scale.TimeScale
}

func (s *Solution) T0() float64 { return s.t0 }
func (s *Solution) Tf() float64 { return s.PhaseEnd(len(s.phases) - 1) }

func (s *Solution) R(t float64) r3.Vec {
	_, y := s.state(t)
	return r3.Scale(s.scale.LengthScale, vec(y, idxR))
}

func (s *Solution) V(t float64) r3.Vec {
	_, y := s.state(t)
	return r3.Scale(s.scale.VelocityScale, vec(y, idxV))
}

func (s *Solution) M(t float64) float64 {
	_, y := s.state(t)
	return y[idxM] * s.scale.MassScale
}

func (s *Solution) Pv(t float64) r3.Vec {
	_, y := s.state(t)
	return vec(y, idxPV)
}

func (s *Solution) Pr(t float64) r3.Vec {
	_, y := s.state(t)
	return vec(y, idxPR)
}

// Pm is the mass costate.
func (s *Solution) Pm(t float64) float64 {
	i, y := s.state(t)
	return s.pmStart[i] + y[idxQ]
}

// U is the unit thrust direction at t. Coasts report the primer vector
// direction.
func (s *Solution) U(t float64) r3.Vec {
	i, y := s.state(t)
	if s.arcs[i].unguided {
		return s.arcs[i].u
	}
	return astro.Unit(vec(y, idxPV))
}

// Vgo is the ideal velocity still to be gained from t to final burnout.
func (s *Solution) Vgo(t float64) float64 {
	i := s.PhaseAt(t)
	m := s.M(t)
	vgo := 0.0
	for k := i; k < len(s.phases); k++ {
		if s.phases[k].Coast {
			continue
		}
		m0 := s.mStart[k]
		if k == i {
			m0 = m
		}
		if m0 > s.mEnd[k] {
			vgo += s.phases[k].Ve() * math.Log(m0/s.mEnd[k])
		}
	}
	return vgo
}

// DV is the ideal velocity expended from T0 up to t.
func (s *Solution) DV(t float64) float64 {
	i := s.PhaseAt(t)
	m := s.M(t)
	dv := 0.0
	for k := 0; k <= i; k++ {
		if s.phases[k].Coast {
			continue
		}
		m1 := s.mEnd[k]
		if k == i {
			m1 = m
		}
		if s.mStart[k] > m1 {
			dv += s.phases[k].Ve() * math.Log(s.mStart[k]/m1)
		}
	}
	return dv
}

// Tgo is the time from t to the end of the given phase.
func (s *Solution) Tgo(t float64, phase int) float64 {
	if phase < 0 || phase >= len(s.phases) {
		return 0
	}
	return s.PhaseEnd(phase) - t
}

// TerminalStateVectors returns the burnout position and velocity.
func (s *Solution) TerminalStateVectors() (r3.Vec, r3.Vec) {
	return r3.Scale(s.scale.LengthScale, vec(s.yf, idxR)), r3.Scale(s.scale.VelocityScale, vec(s.yf, idxV))
}

// Elements are the osculating elements at burnout.
func (s *Solution) Elements() astro.Elements {
	r, v := s.TerminalStateVectors()
	return astro.ElementsFromStateVectors(s.mu, r, v)
}

func (s *Solution) Znorm() float64      { return s.znorm }
func (s *Solution) Iterations() int     { return s.iterations }
func (s *Solution) Terminal() string    { return s.terminal }
func (s *Solution) Mu() float64         { return s.mu }
func (s *Solution) BodyRadius() float64 { return s.rbody }

// Unknowns returns the converged costates and free durations.
func (s *Solution) Unknowns() []float64 {
	return append([]float64(nil), s.x...)
}

// Samples returns n evenly spaced points from T0 to Tf.
func (s *Solution) Samples(n int) []Sample {
	if n < 2 {
		n = 2
	}
	out := make([]Sample, n)
	t0, tf := s.T0(), s.Tf()
	for k := range out {
		t := t0 + (tf-t0)*float64(k)/float64(n-1)
		if k == n-1 {
			t = tf
		}
		i, y := s.state(t)
		u := astro.Unit(vec(y, idxPV))
		if s.arcs[i].unguided {
			u = s.arcs[i].u
		}
		out[k] = Sample{
			T:     t,
			Phase: i,
			R:     r3.Scale(s.scale.LengthScale, vec(y, idxR)),
			V:     r3.Scale(s.scale.VelocityScale, vec(y, idxV)),
			M:     y[idxM] * s.scale.MassScale,
			U:     u,
		}
	}
	return out
}
