package pvg

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/dynamo"
	"github.com/san-kum/ascent/internal/metrics"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Builder assembles an Ascent. Methods record the first error, which Build
// returns.
type Builder struct {
	r0, v0, u0     r3.Vec
	t0, mu, rbody  float64
	initialSet     bool
	peR, apR, attR float64
	inc, lan, argp float64
	lanFree        bool
	argpFree       bool
	targetSet      bool

	phases []Phase
	old    *Solution
	cfg    Config

	log      *zap.Logger
	metrics  *metrics.Solver
	observer func(Progress)
	arena    *dynamo.Arena
}

func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// Initial sets the launch state in physical units.
func (b *Builder) Initial(r0, v0, u0 r3.Vec, t0, mu, rbody float64) *Builder {
	b.r0, b.v0, b.u0 = r0, v0, u0
	b.t0, b.mu, b.rbody = t0, mu, rbody
	b.initialSet = true
	return b
}

// SetTarget describes the target orbit. When attR lies above the periapsis
// the vehicle attaches at that radius with the matching speed and flight
// path angle; otherwise it is inserted at any point of the orbit. A free
// LAN also frees the argument of periapsis.
func (b *Builder) SetTarget(peR, apR, attR, inc, lan, argp float64, lanIsFree, argpIsFree bool) *Builder {
	b.peR, b.apR, b.attR = peR, apR, attR
	b.inc, b.lan, b.argp = inc, lan, argp
	b.lanFree, b.argpFree = lanIsFree, argpIsFree
	b.targetSet = true
	return b
}

func (b *Builder) AddStageUsingFinalMass(m0, mf, thrust, isp float64, minEngines, maxEngines int, opts ...StageOption) *Builder {
	b.phases = append(b.phases, NewStageUsingFinalMass(m0, mf, thrust, isp, minEngines, maxEngines, opts...))
	return b
}

func (b *Builder) AddStageUsingBurnTime(m0, mf, isp, bt float64, minEngines, maxEngines int, opts ...StageOption) *Builder {
	b.phases = append(b.phases, NewStageUsingBurnTime(m0, mf, isp, bt, minEngines, maxEngines, opts...))
	return b
}

func (b *Builder) AddOptimizedCoast(m0, resumeThrust, minT, maxT float64, minEngines, maxEngines int) *Builder {
	b.phases = append(b.phases, NewOptimizedCoast(m0, resumeThrust, minT, maxT, minEngines, maxEngines))
	return b
}

func (b *Builder) AddFixedCoast(m0, duration float64) *Builder {
	b.phases = append(b.phases, NewFixedCoast(m0, duration))
	return b
}

// AddPhase appends a phase built elsewhere.
func (b *Builder) AddPhase(p Phase) *Builder {
	b.phases = append(b.phases, p)
	return b
}

// OldSolution seeds the optimizer from a previous solve.
func (b *Builder) OldSolution(s *Solution) *Builder {
	b.old = s
	return b
}

func (b *Builder) Config(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.log = l
	return b
}

func (b *Builder) Metrics(m *metrics.Solver) *Builder {
	b.metrics = m
	return b
}

func (b *Builder) Observer(fn func(Progress)) *Builder {
	b.observer = fn
	return b
}

func (b *Builder) Arena(a *dynamo.Arena) *Builder {
	b.arena = a
	return b
}

// Terminal returns the terminal condition the target selects.
func (b *Builder) Terminal() (Terminal, error) {
	if !b.targetSet {
		return nil, fmt.Errorf("%w: no target set", ErrInvalidTarget)
	}
	if b.peR <= 0 || b.apR < b.peR || math.IsNaN(b.inc) {
		return nil, fmt.Errorf("%w: periapsis %g, apoapsis %g", ErrInvalidTarget, b.peR, b.apR)
	}
	if b.rbody > 0 && b.peR <= b.rbody {
		return nil, fmt.Errorf("%w: periapsis %g inside body radius %g", ErrInvalidTarget, b.peR, b.rbody)
	}
	sma, ecc := astro.SmaEccFromApsides(b.peR, b.apR)

	if b.attR > b.peR {
		if b.attR > b.apR {
			return nil, fmt.Errorf("%w: attachment radius %g above apoapsis %g", ErrInvalidTarget, b.attR, b.apR)
		}
		v := astro.SpeedAtRadius(b.mu, sma, b.attR)
		gamma := astro.FlightPathAngleAtRadius(b.mu, sma, ecc, b.attR)
		if b.lanFree {
			return NewFlightPathAngle4Reduced(b.attR, v, gamma, b.inc), nil
		}
		return NewFlightPathAngle5Reduced(b.attR, v, gamma, b.inc, b.lan), nil
	}

	switch {
	case b.lanFree:
		return NewKepler3Reduced(sma, ecc, b.inc), nil
	case b.argpFree:
		return NewKepler4Reduced(sma, ecc, b.inc, b.lan), nil
	default:
		return NewKepler5Reduced(sma, ecc, b.inc, b.lan, b.argp), nil
	}
}

// Build validates the inputs and prepares the optimizer. Unless some stage
// was added with OptimizeBurnTime, the last powered stage gets a free burn
// time, or none does when it was added with FixedBurnTime.
func (b *Builder) Build() (*Ascent, error) {
	if !b.initialSet {
		return nil, fmt.Errorf("%w: initial state not set", ErrInvalidProblem)
	}
	if len(b.phases) == 0 {
		return nil, fmt.Errorf("%w: no phases", ErrInvalidPhase)
	}
	term, err := b.Terminal()
	if err != nil {
		return nil, err
	}

	phases := append([]Phase(nil), b.phases...)
	chosen := false
	for _, p := range phases {
		chosen = chosen || (p.OptimizeTime && !p.Coast)
	}
	if last := &phases[len(phases)-1]; !chosen && !last.Coast && !last.FixedBurnTime {
		last.OptimizeTime = true
	}
	for i := range phases {
		if p := &phases[i]; p.OptimizeTime && !p.Coast {
			p.MinT, p.MaxT = 0, p.Bt
		}
	}
	if err := validatePhases(phases); err != nil {
		return nil, err
	}

	prob, err := NewProblem(b.r0, b.v0, b.u0, phases[0].M0, b.t0, b.mu, b.rbody, term)
	if err != nil {
		return nil, err
	}

	opts := []OptimizerOption{WithLogger(b.log), WithMetrics(b.metrics), WithObserver(b.observer)}
	if b.arena != nil {
		opts = append(opts, WithArena(b.arena))
	}
	if b.old != nil {
		opts = append(opts, WithWarmStart(b.old))
	}
	opt, err := NewOptimizer(prob, phases, b.cfg, opts...)
	if err != nil {
		return nil, err
	}
	asc := &Ascent{optimizer: opt, phases: phases, log: opt.log}

	// Without a seed, first converge onto the periapsis of the target with a
	// fixed attachment state, which is far less sensitive to the initial
	// guess, and warm start the real target from it.
	if b.old == nil && b.attR <= b.peR {
		att, err := b.periapsisAttachment()
		if err != nil {
			return nil, err
		}
		bprob, err := NewProblem(b.r0, b.v0, b.u0, phases[0].M0, b.t0, b.mu, b.rbody, att)
		if err != nil {
			return nil, err
		}
		bopts := []OptimizerOption{WithLogger(opt.log.Named("attach")), WithArena(opt.arena)}
		if asc.bootstrap, err = NewOptimizer(bprob, phases, b.cfg, bopts...); err != nil {
			return nil, err
		}
	}
	return asc, nil
}

func (b *Builder) periapsisAttachment() (Terminal, error) {
	sma, _ := astro.SmaEccFromApsides(b.peR, b.apR)
	v := astro.SpeedAtRadius(b.mu, sma, b.peR)
	if b.lanFree {
		return NewFlightPathAngle4Reduced(b.peR, v, 0, b.inc), nil
	}
	return NewFlightPathAngle5Reduced(b.peR, v, 0, b.inc, b.lan), nil
}

// Ascent is a built, runnable solve.
type Ascent struct {
	optimizer *Optimizer
	bootstrap *Optimizer
	phases    []Phase
	solution  *Solution
	log       *zap.Logger
}

// Run executes the optimizer. The Solution is nil unless Run succeeds.
// Every call without an OldSolution bootstraps afresh.
func (a *Ascent) Run(ctx context.Context) error {
	a.solution = nil
	warm := a.optimizer.warm
	var seed *Solution
	if a.bootstrap != nil && warm == nil {
		s, err := a.bootstrap.Run(ctx)
		switch {
		case err == nil:
			seed = s
		case a.bootstrap.Status() == Canceled:
			return err
		default:
			a.log.Debug("periapsis attachment did not converge, solving target directly", zap.Error(err))
		}
	}

	var sol *Solution
	var err error
	if seed != nil {
		sol, err = a.optimizer.runFrom(ctx, seed)
		if err != nil && a.optimizer.Status() == Failed {
			a.log.Debug("seeded solve failed, solving target directly", zap.Error(err))
			sol, err = a.optimizer.runFrom(ctx, warm)
		}
	} else {
		sol, err = a.optimizer.runFrom(ctx, warm)
	}
	if err != nil {
		return err
	}
	a.solution = sol
	return nil
}

func (a *Ascent) Solution() *Solution      { return a.solution }
func (a *Ascent) GetOptimizer() *Optimizer { return a.optimizer }
func (a *Ascent) Phases() []Phase          { return append([]Phase(nil), a.phases...) }
