package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/ascent/internal/dynamo"
)

// Config tunes a Solver.
type Config struct {
	// Hmin and Hmax bound the step magnitude. Hmin may be violated by the
	// final step that lands on tf; a step at Hmin is always accepted.
	Hmin float64
	Hmax float64

	// MaxIter caps attempted steps, rejected ones included.
	MaxIter int

	// Accuracy is both the absolute and relative local error target.
	Accuracy float64

	// Hstart is the first step magnitude; zero selects it heuristically.
	Hstart float64

	// InterpNum is the number of evenly spaced dense output samples,
	// endpoints included.
	InterpNum int

	// FailOnMaxIter returns ErrMaxIterations when MaxIter is hit. When
	// false the solve stops quietly at the time reached.
	FailOnMaxIter bool
}

func DefaultConfig() Config {
	return Config{
		Hmin:          math.Nextafter(1, 2) - 1,
		Hmax:          math.Inf(1),
		MaxIter:       2000,
		Accuracy:      1e-9,
		InterpNum:     20,
		FailOnMaxIter: true,
	}
}

func (c Config) Validate() error {
	if c.Accuracy <= 0 {
		return fmt.Errorf("%w: accuracy must be positive, got %g", dynamo.ErrInvalidConfig, c.Accuracy)
	}
	if c.Hmin < 0 || c.Hmax <= 0 || c.Hmin > c.Hmax {
		return fmt.Errorf("%w: step bounds [%g, %g]", dynamo.ErrInvalidConfig, c.Hmin, c.Hmax)
	}
	if c.MaxIter <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", dynamo.ErrInvalidConfig, c.MaxIter)
	}
	if c.Hstart < 0 {
		return fmt.Errorf("%w: negative initial step %g", dynamo.ErrInvalidConfig, c.Hstart)
	}
	return nil
}

// Result summarises one Solve call.
type Result struct {
	T           float64
	Steps       int
	Rejected    int
	Evaluations int
	Truncated   bool
	Stopped     bool
	Crossings   []Crossing
}

type Solver struct {
	cfg      Config
	stepper  Stepper
	arena    *dynamo.Arena
	safety   float64
	minScale float64
	maxScale float64
}

type Option func(*Solver)

func WithStepper(s Stepper) Option {
	return func(sv *Solver) { sv.stepper = s }
}

// WithArena makes the solver draw scratch vectors from a caller-owned arena.
func WithArena(a *dynamo.Arena) Option {
	return func(sv *Solver) { sv.arena = a }
}

func NewSolver(cfg Config, opts ...Option) *Solver {
	s := &Solver{
		cfg:      cfg,
		stepper:  NewDormandPrince5(),
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Solver) Config() Config { return s.cfg }

func (s *Solver) arenaFor(n int) *dynamo.Arena {
	if s.arena == nil || s.arena.Size() != n {
		s.arena = dynamo.NewArena(n)
	}
	return s.arena
}

// Solve integrates f from (t0, y0) to tf and writes the final state into yf.
// When interp is non-nil it receives cfg.InterpNum evenly spaced samples
// with derivatives re-evaluated at each sample.
func (s *Solver) Solve(ctx context.Context, f dynamo.Func, y0 []float64, t0, tf float64, yf []float64, interp *Interpolant, events ...Event) (Result, error) {
	var res Result
	if err := s.cfg.Validate(); err != nil {
		return res, err
	}
	n := len(y0)
	if err := dynamo.CheckDim(n, yf); err != nil {
		return res, err
	}
	if interp != nil && interp.Dim() != n {
		return res, fmt.Errorf("%w: interpolant dim %d, state dim %d", dynamo.ErrDimensionMismatch, interp.Dim(), n)
	}

	rhs := func(y []float64, t float64, dy []float64) {
		res.Evaluations++
		f(y, t, dy)
	}

	arena := s.arenaFor(n)
	y := arena.GetAndCopy(y0)
	dy := arena.Get()
	ynew := arena.Get()
	dynew := arena.Get()
	ybuf := arena.Get()
	dybuf := arena.Get()
	ws := s.stepper.NewWorkspace(arena)
	defer func() {
		for _, b := range []dynamo.State{y, dy, ynew, dynew, ybuf, dybuf} {
			arena.Put(b)
		}
		ws.Release(arena)
	}()

	direction := 1.0
	if tf < t0 {
		direction = -1.0
	}

	rhs(y, t0, dy)

	samples := s.cfg.InterpNum
	if samples < 2 {
		samples = 2
	}
	span := tf - t0
	nextSample := 1
	sampleTime := func(k int) float64 {
		if k == samples-1 {
			return tf
		}
		return t0 + span*float64(k)/float64(samples-1)
	}
	if interp != nil {
		interp.Reset()
		interp.Add(t0, y, dy)
	}

	gOld := make([]float64, len(events))
	for i := range events {
		gOld[i] = events[i].F(t0, y)
	}

	t := t0
	res.T = t0
	if t == tf {
		copy(yf, y)
		return res, nil
	}

	habs := s.cfg.Hstart
	if habs == 0 {
		habs = s.stepper.InitialStep(rhs, t0, y, dy, direction, s.cfg.Accuracy, s.cfg.Hmax, ws)
	}
	habs = clamp(habs, s.cfg.Hmin, s.cfg.Hmax)

	lastRejected := false
	attempts := 0
	for t != tf {
		select {
		case <-ctx.Done():
			return res, &dynamo.IntegrationError{
				Step: res.Steps, Time: t, State: y.Clone(),
				Wrapped: fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err()),
			}
		default:
		}

		if attempts >= s.cfg.MaxIter {
			if s.cfg.FailOnMaxIter {
				return res, &dynamo.IntegrationError{Step: res.Steps, Time: t, State: y.Clone(), Wrapped: dynamo.ErrMaxIterations}
			}
			res.Truncated = true
			break
		}
		attempts++

		h := habs * direction
		tnew := t + h
		if direction*(tnew-tf) >= 0 {
			tnew = tf
			h = tf - t
		}

		errNorm := s.stepper.Step(rhs, t, h, y, dy, ynew, dynew, s.cfg.Accuracy, ws)
		atFloor := math.Abs(h) <= s.cfg.Hmin
		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			if atFloor {
				return res, &dynamo.IntegrationError{Step: res.Steps, Time: t, State: y.Clone(), Wrapped: dynamo.ErrInvalidState}
			}
			habs = math.Max(s.cfg.Hmin, math.Abs(h)*s.minScale)
			res.Rejected++
			lastRejected = true
			continue
		}
		if errNorm > 1 && !atFloor {
			scale := math.Max(s.minScale, s.safety*math.Pow(errNorm, -1.0/float64(s.stepper.Order())))
			habs = math.Max(s.cfg.Hmin, math.Abs(h)*scale)
			res.Rejected++
			lastRejected = true
			continue
		}

		res.Steps++
		if interp != nil || len(events) > 0 {
			s.stepper.PrepareInterpolant(h, y, dy, ynew, dynew, ws)
		}

		// earliest stopping event inside this step
		stopTheta := math.Inf(1)
		for i := range events {
			ev := &events[i]
			gNew := ev.F(tnew, ynew)
			if ev.matches(gOld[i], gNew) {
				theta := locate(ev, s.stepper, ws, t, h, gOld[i], ybuf)
				s.stepper.Interpolate(theta, ybuf, ws)
				res.Crossings = append(res.Crossings, Crossing{Event: i, T: t + theta*h, Y: ybuf.Clone()})
				if ev.Stop && theta < stopTheta {
					stopTheta = theta
				}
			}
			gOld[i] = gNew
		}

		if !math.IsInf(stopTheta, 1) {
			tstop := t + stopTheta*h
			if interp != nil {
				nextSample = s.emitSamples(interp, rhs, ws, t, h, tstop, direction, nextSample, samples, sampleTime, ybuf, dybuf)
			}
			s.stepper.Interpolate(stopTheta, ynew, ws)
			rhs(ynew, tstop, dynew)
			copy(y, ynew)
			copy(dy, dynew)
			t = tstop
			res.Stopped = true
			break
		}

		if interp != nil {
			nextSample = s.emitSamples(interp, rhs, ws, t, h, tnew, direction, nextSample, samples, sampleTime, ybuf, dybuf)
		}

		copy(y, ynew)
		copy(dy, dynew)
		t = tnew

		scale := s.maxScale
		if errNorm > 0 {
			scale = clamp(s.safety*math.Pow(errNorm, -1.0/float64(s.stepper.Order())), s.minScale, s.maxScale)
		}
		if lastRejected {
			scale = math.Min(scale, 1)
		}
		lastRejected = false
		habs = clamp(math.Abs(h)*scale, s.cfg.Hmin, s.cfg.Hmax)
	}

	res.T = t
	copy(yf, y)
	if interp != nil {
		interp.Add(t, y, dy)
	}
	return res, nil
}

// emitSamples adds every dense output sample strictly inside (t, tend) and
// returns the next pending sample index. The sample at tf itself is added
// from the exact final state.
func (s *Solver) emitSamples(interp *Interpolant, f dynamo.Func, ws Workspace, t, h, tend, direction float64, next, samples int, sampleTime func(int) float64, ybuf, dybuf []float64) int {
	for next < samples-1 {
		ts := sampleTime(next)
		if direction*(ts-tend) >= 0 {
			break
		}
		s.stepper.Interpolate((ts-t)/h, ybuf, ws)
		f(ybuf, ts, dybuf)
		interp.Add(ts, ybuf, dybuf)
		next++
	}
	return next
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
