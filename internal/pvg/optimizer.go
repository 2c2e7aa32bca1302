package pvg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/dynamo"
	"github.com/san-kum/ascent/internal/integrators"
	"github.com/san-kum/ascent/internal/metrics"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

type Status int

const (
	Unconverged Status = iota
	Iterating
	Converged
	Failed
	Canceled
)

func (s Status) String() string {
	switch s {
	case Unconverged:
		return "unconverged"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Config tunes the optimizer.
type Config struct {
	// MaxIterations caps Newton iterations per stage.
	MaxIterations int

	// Tolerance is the residual norm that counts as converged.
	Tolerance float64

	// JacobianStep is the central difference step in scaled units.
	JacobianStep float64

	// SolutionSamples is the number of dense output samples per phase kept
	// in the Solution.
	SolutionSamples int

	// Integrator is used for every arc. FailOnMaxIter should stay false so
	// that a truncated arc shows up as a bad residual instead of an abort.
	Integrator integrators.Config
}

func DefaultConfig() Config {
	ic := integrators.DefaultConfig()
	ic.Accuracy = 1e-11
	ic.MaxIter = 20000
	ic.FailOnMaxIter = false
	return Config{
		MaxIterations:   100,
		Tolerance:       1e-9,
		JacobianStep:    1e-6,
		SolutionSamples: 60,
		Integrator:      ic,
	}
}

func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations %d", ErrInvalidProblem, c.MaxIterations)
	}
	if c.Tolerance <= 0 || c.JacobianStep <= 0 {
		return fmt.Errorf("%w: tolerance %g, jacobian step %g", ErrInvalidProblem, c.Tolerance, c.JacobianStep)
	}
	if c.SolutionSamples < 2 {
		return fmt.Errorf("%w: solution samples %d", ErrInvalidProblem, c.SolutionSamples)
	}
	return c.Integrator.Validate()
}

// Progress is reported to the observer once per Newton iteration and once
// when the run ends.
type Progress struct {
	Stage     string
	Iteration int
	Znorm     float64
	Lambda    float64
	Status    Status
}

type OptimizerOption func(*Optimizer)

func WithLogger(l *zap.Logger) OptimizerOption {
	return func(o *Optimizer) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *metrics.Solver) OptimizerOption {
	return func(o *Optimizer) { o.metrics = m }
}

func WithObserver(fn func(Progress)) OptimizerOption {
	return func(o *Optimizer) { o.observer = fn }
}

// NewArena returns a scratch arena sized for the ascent state.
func NewArena() *dynamo.Arena { return dynamo.NewArena(stateDim) }

// WithArena supplies the scratch arena for the integrator. One arena must
// not be shared by optimizers running concurrently.
func WithArena(a *dynamo.Arena) OptimizerOption {
	return func(o *Optimizer) { o.arena = a }
}

// WithWarmStart seeds the unknowns from a previous solution.
func WithWarmStart(s *Solution) OptimizerOption {
	return func(o *Optimizer) { o.warm = s }
}

// Optimizer solves the shooting problem for one Problem and phase list.
type Optimizer struct {
	problem *Problem
	phases  []Phase
	cfg     Config

	log      *zap.Logger
	metrics  *metrics.Solver
	observer func(Progress)
	arena    *dynamo.Arena
	warm     *Solution

	solver *integrators.Solver
	dense  *integrators.Solver

	arcs []arc
	// free lists the phases whose duration is an unknown, in order; the
	// duration of free[j] is x[6+j].
	free []int
	// coastRow[j] is the residual row paired with free[j], or -1.
	coastRow []int
	// freeBurn is the powered phase with a free burn time, or -1. Its row
	// is the primer normalization.
	freeBurn int
	nx, nz   int

	status      Status
	x           []float64
	znorm       float64
	iterations  int
	evaluations int
	warmUsed    bool
	lastErr     error
	solution    *Solution
}

// NewOptimizer copies phases; neither the problem nor the phases are
// modified afterwards.
func NewOptimizer(p *Problem, phases []Phase, cfg Config, opts ...OptimizerOption) (*Optimizer, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil problem", ErrInvalidProblem)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validatePhases(phases); err != nil {
		return nil, err
	}

	o := &Optimizer{
		problem:  p,
		phases:   append([]Phase(nil), phases...),
		cfg:      cfg,
		log:      zap.NewNop(),
		freeBurn: -1,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.arena == nil {
		o.arena = dynamo.NewArena(stateDim)
	}

	dense := cfg.Integrator
	dense.InterpNum = cfg.SolutionSamples
	o.solver = integrators.NewSolver(cfg.Integrator, integrators.WithArena(o.arena))
	o.dense = integrators.NewSolver(dense, integrators.WithArena(o.arena))

	row := TerminalSize
	for i, ph := range o.phases {
		o.arcs = append(o.arcs, newArc(ph, p.Scale))
		if !ph.OptimizeTime {
			continue
		}
		o.free = append(o.free, i)
		if ph.Coast {
			o.coastRow = append(o.coastRow, row)
			row++
			continue
		}
		if o.freeBurn >= 0 {
			return nil, fmt.Errorf("%w: phases %d and %d both have a free burn time", ErrInvalidProblem, o.freeBurn, i)
		}
		o.freeBurn = i
		o.coastRow = append(o.coastRow, -1)
	}
	if o.freeBurn >= 0 {
		row++
	}
	o.nx = TerminalSize + len(o.free)
	o.nz = row
	if o.nx != o.nz {
		return nil, fmt.Errorf("%w: %d unknowns but %d residuals", ErrInvalidProblem, o.nx, o.nz)
	}
	return o, nil
}

func (o *Optimizer) Status() Status      { return o.status }
func (o *Optimizer) Iterations() int     { return o.iterations }
func (o *Optimizer) Evaluations() int    { return o.evaluations }
func (o *Optimizer) Znorm() float64      { return o.znorm }
func (o *Optimizer) LastError() error    { return o.lastErr }
func (o *Optimizer) Problem() *Problem   { return o.problem }
func (o *Optimizer) Solution() *Solution { return o.solution }

// WarmStarted reports whether the last run was seeded from a previous
// solution.
func (o *Optimizer) WarmStarted() bool { return o.warmUsed }

// Unknowns returns a copy of the current unknown vector.
func (o *Optimizer) Unknowns() []float64 {
	return append([]float64(nil), o.x...)
}

// trajectory is the scratch record of one shot through every phase.
type trajectory struct {
	tStart  []float64
	dur     []float64
	starts  [][]float64
	ends    [][]float64
	pmStart []float64
	pmEnd   []float64
	interps []*integrators.Interpolant
	// truncated is set when any arc ran out of integrator steps before
	// reaching its end time.
	truncated bool
}

func (o *Optimizer) newTrajectory(dense bool) *trajectory {
	n := len(o.arcs)
	tr := &trajectory{
		tStart:  make([]float64, n),
		dur:     make([]float64, n),
		starts:  make([][]float64, n),
		ends:    make([][]float64, n),
		pmStart: make([]float64, n),
		pmEnd:   make([]float64, n),
	}
	for i := range tr.starts {
		tr.starts[i] = make([]float64, stateDim)
		tr.ends[i] = make([]float64, stateDim)
	}
	if dense {
		tr.interps = make([]*integrators.Interpolant, n)
		for i := range tr.interps {
			tr.interps[i] = integrators.NewInterpolant(stateDim)
		}
	}
	return tr
}

func (o *Optimizer) duration(x []float64, i int) float64 {
	for j, pi := range o.free {
		if pi == i {
			return math.Max(x[TerminalSize+j], 0)
		}
	}
	return o.arcs[i].duration
}

// shoot integrates every phase from the unknowns x.
func (o *Optimizer) shoot(ctx context.Context, x []float64, tr *trajectory) error {
	solver := o.solver
	if tr.interps != nil {
		solver = o.dense
	}

	y := tr.starts[0]
	setVec(y, idxR, o.problem.R0Bar)
	setVec(y, idxV, o.problem.V0Bar)
	copy(y[idxPR:idxPR+3], x[0:3])
	copy(y[idxPV:idxPV+3], x[3:6])
	y[idxM] = o.arcs[0].m0

	tr.truncated = false
	t := 0.0
	for i := range o.arcs {
		a := &o.arcs[i]
		start := tr.starts[i]
		if i > 0 {
			copy(start, tr.ends[i-1])
			if !a.massContinuity {
				start[idxM] = a.m0
			}
		}
		start[idxQ] = 0
		if a.unguided {
			a.u = astro.Unit(vec(start, idxPV))
			if r3.Norm(a.u) == 0 {
				a.u = o.problem.U0
			}
		}

		dt := o.duration(x, i)
		var interp *integrators.Interpolant
		if tr.interps != nil {
			interp = tr.interps[i]
		}
		res, err := solver.Solve(ctx, a.derivative, start, t, t+dt, tr.ends[i], interp)
		o.evaluations += res.Evaluations
		if err != nil {
			return fmt.Errorf("phase %d: %w", i, err)
		}
		if res.Truncated {
			tr.truncated = true
		}
		tr.tStart[i] = t
		tr.dur[i] = dt
		t += dt
	}

	o.anchorMassCostate(tr)
	return nil
}

// anchorMassCostate fixes the mass costate at the final burnout and walks
// it back through each arc and staging boundary.
//
// At a free final burnout the Hamiltonian vanishes. Otherwise the final
// mass costate balances the thrust term, which leaves only the free true
// anomaly condition in H(tf). The free burn ends where its Hamiltonian
// matches the one of the following arc.
func (o *Optimizer) anchorMassCostate(tr *trajectory) {
	n := len(o.arcs)
	last := &o.arcs[n-1]
	yf := tr.ends[n-1]
	if o.freeBurn == n-1 {
		tr.pmEnd[n-1] = last.hamiltonian(yf, 0) / last.mdot
	} else {
		tr.pmEnd[n-1] = last.thrustTerm(yf) / last.mdot
	}
	for i := n - 1; i >= 0; i-- {
		tr.pmStart[i] = tr.pmEnd[i] - tr.ends[i][idxQ]
		if i == 0 {
			break
		}
		prev := &o.arcs[i-1]
		switch {
		case o.arcs[i].massContinuity:
			tr.pmEnd[i-1] = tr.pmStart[i]
		case i-1 == o.freeBurn:
			hn := o.arcs[i].hamiltonian(tr.starts[i], tr.pmStart[i])
			tr.pmEnd[i-1] = (prev.hamiltonian(tr.ends[i-1], 0) - hn) / prev.mdot
		default:
			tr.pmEnd[i-1] = 0
		}
	}
}

// residuals fills z (length nz) from a completed shot.
func (o *Optimizer) residuals(x []float64, tr *trajectory, z []float64) {
	n := len(o.arcs)
	o.problem.Terminal.Residuals(tr.ends[n-1], z[:TerminalSize])
	for j, pi := range o.free {
		row := o.coastRow[j]
		if row < 0 {
			continue
		}
		next := pi + 1
		hc := o.arcs[pi].hamiltonian(tr.ends[pi], tr.pmEnd[pi])
		hn := o.arcs[next].hamiltonian(tr.starts[next], tr.pmStart[next])
		z[row] = hc - hn
	}
	if o.freeBurn >= 0 {
		z[o.nz-1] = r3.Norm(vec(tr.ends[n-1], idxPV)) - 1
	}
}

// residualNorm shoots x and returns the full residual norm.
func (o *Optimizer) residualNorm(ctx context.Context, x []float64) (float64, error) {
	tr := o.newTrajectory(false)
	if err := o.shoot(ctx, x, tr); err != nil {
		return math.NaN(), err
	}
	if tr.truncated {
		return math.NaN(), dynamo.ErrMaxIterations
	}
	z := make([]float64, o.nz)
	o.residuals(x, tr, z)
	if !finite(z) {
		return math.NaN(), ErrNumerical
	}
	return floats.Norm(z, 2), nil
}

// Run solves the problem. On success the Solution is also available from
// the Solution method.
func (o *Optimizer) Run(ctx context.Context) (*Solution, error) {
	return o.runFrom(ctx, o.warm)
}

// runFrom solves with warm as the seed, or bootstraps when it is nil. The
// configured warm start is left alone.
func (o *Optimizer) runFrom(ctx context.Context, warm *Solution) (*Solution, error) {
	began := time.Now()
	o.status = Iterating
	o.iterations = 0
	o.evaluations = 0
	o.lastErr = nil
	o.solution = nil

	x, seeded, err := o.initialGuess(ctx, warm)
	if err != nil {
		return nil, o.finish(began, &SolveError{Stage: "bootstrap", Err: err})
	}
	o.warmUsed = seeded
	o.x = x

	if !seeded && o.hasOptimizedCoast() {
		err := o.solveStage(ctx, o.reducedStage(), x)
		if err != nil && !errors.Is(err, ErrNotConverged) {
			return nil, o.finish(began, err)
		}
		if err != nil {
			o.log.Debug("reduced stage did not converge, continuing", zap.Error(err))
		}
	}

	if err := o.solveStage(ctx, o.fullStage(), x); err != nil {
		return nil, o.finish(began, err)
	}

	sol, err := o.buildSolution(ctx, x)
	if err != nil {
		return nil, o.finish(began, &SolveError{Stage: "solution", Iteration: o.iterations, Znorm: o.znorm, Err: err})
	}
	o.solution = sol
	o.finish(began, nil)
	return sol, nil
}

func (o *Optimizer) hasOptimizedCoast() bool {
	for _, row := range o.coastRow {
		if row >= 0 {
			return true
		}
	}
	return false
}

// finish records the outcome of a run and returns err.
func (o *Optimizer) finish(began time.Time, err error) error {
	outcome := "converged"
	switch {
	case err == nil:
		o.status = Converged
	case errors.Is(err, dynamo.ErrContextCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		o.status = Canceled
		outcome = "canceled"
	case errors.Is(err, dynamo.ErrMaxIterations):
		o.status = Failed
		outcome = "truncated"
	case errors.Is(err, ErrNumerical):
		o.status = Failed
		outcome = "numerical"
	case errors.Is(err, ErrNotConverged):
		o.status = Failed
		outcome = "not_converged"
	default:
		o.status = Failed
		outcome = "error"
	}
	o.lastErr = err

	elapsed := time.Since(began)
	o.metrics.ObserveSolve(outcome, o.iterations, o.znorm, elapsed)
	o.metrics.AddIntegrations(o.evaluations)

	if err != nil {
		o.log.Warn("pvg solve failed",
			zap.String("outcome", outcome),
			zap.Int("iterations", o.iterations),
			zap.Float64("znorm", o.znorm),
			zap.Error(err))
	} else {
		o.log.Info("pvg solve converged",
			zap.Int("iterations", o.iterations),
			zap.Float64("znorm", o.znorm),
			zap.Bool("warm", o.warmUsed),
			zap.Duration("elapsed", elapsed))
	}
	o.report(Progress{Stage: "done", Iteration: o.iterations, Znorm: o.znorm, Status: o.status})
	return err
}

func (o *Optimizer) report(p Progress) {
	if o.observer != nil {
		o.observer(p)
	}
}

// canceled wraps a context error the way the integrator does.
func canceled(err error) error {
	if errors.Is(err, dynamo.ErrContextCanceled) {
		return err
	}
	return fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, err)
}

func finite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
