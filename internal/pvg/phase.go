package pvg

import (
	"fmt"
	"math"
)

// Phase is one powered burn or coast arc in physical units.
type Phase struct {
	M0     float64 // kg at phase start
	Mf     float64 // kg at burnout
	Thrust float64 // N
	Isp    float64 // s
	Mdot   float64 // kg/s

	// Bt is the burn time of a stage or the length of a fixed coast. For a
	// free burn it is the upper bound.
	Bt float64

	// MinT and MaxT bound an optimized coast.
	MinT, MaxT float64

	Coast        bool
	OptimizeTime bool

	Unguided       bool
	MassContinuity bool
	FixedBurnTime  bool

	MinEngines, MaxEngines int
	ResumeThrust           float64
}

// StageOption tweaks a powered phase.
type StageOption func(*Phase)

// Unguided holds the thrust direction inertially fixed for the whole arc.
func Unguided() StageOption { return func(p *Phase) { p.Unguided = true } }

// MassContinuity carries the previous phase's final mass into this one
// instead of resetting it to M0.
func MassContinuity() StageOption { return func(p *Phase) { p.MassContinuity = true } }

// FixedBurnTime keeps a final stage's burn time out of the unknowns.
func FixedBurnTime() StageOption { return func(p *Phase) { p.FixedBurnTime = true } }

// OptimizeBurnTime lets the stage shut down anywhere within its burn time.
// The remaining propellant is dropped with the stage. At most one stage
// may carry it.
func OptimizeBurnTime() StageOption { return func(p *Phase) { p.OptimizeTime = true } }

// NewStageUsingFinalMass derives burn time and mass flow from thrust and isp.
func NewStageUsingFinalMass(m0, mf, thrust, isp float64, minEngines, maxEngines int, opts ...StageOption) Phase {
	p := Phase{M0: m0, Mf: mf, Thrust: thrust, Isp: isp, MinEngines: minEngines, MaxEngines: maxEngines}
	if isp > 0 {
		p.Mdot = thrust / (isp * G0)
	}
	if p.Mdot > 0 {
		p.Bt = (m0 - mf) / p.Mdot
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// NewStageUsingBurnTime derives mass flow and thrust from the burn time.
func NewStageUsingBurnTime(m0, mf, isp, bt float64, minEngines, maxEngines int, opts ...StageOption) Phase {
	p := Phase{M0: m0, Mf: mf, Isp: isp, Bt: bt, MinEngines: minEngines, MaxEngines: maxEngines}
	if bt > 0 {
		p.Mdot = (m0 - mf) / bt
		p.Thrust = p.Mdot * isp * G0
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// NewOptimizedCoast is a coast whose duration is solved for within
// [minT, maxT]. resumeThrust is the thrust of the stage that lights after it.
func NewOptimizedCoast(m0, resumeThrust, minT, maxT float64, minEngines, maxEngines int) Phase {
	return Phase{
		M0: m0, Mf: m0,
		Bt:   minT + 0.5*(maxT-minT),
		MinT: minT, MaxT: maxT,
		Coast: true, OptimizeTime: true,
		ResumeThrust: resumeThrust,
		MinEngines:   minEngines, MaxEngines: maxEngines,
	}
}

func NewFixedCoast(m0, duration float64) Phase {
	return Phase{M0: m0, Mf: m0, Bt: duration, MinT: duration, MaxT: duration, Coast: true}
}

// MaxBurnTime is the longest the phase can last.
func (p Phase) MaxBurnTime() float64 {
	if p.Coast && p.OptimizeTime {
		return p.MaxT
	}
	return p.Bt
}

// Ve is the exhaust velocity in m/s.
func (p Phase) Ve() float64 { return p.Isp * G0 }

func (p Phase) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidPhase}, args...)...)
	}
	for _, f := range []float64{p.M0, p.Mf, p.Thrust, p.Isp, p.Mdot, p.Bt, p.MinT, p.MaxT} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return bad("non-finite parameter")
		}
	}
	if p.M0 <= 0 {
		return bad("initial mass %g must be positive", p.M0)
	}
	if p.MinEngines < 0 || p.MaxEngines < p.MinEngines {
		return bad("engine count [%d, %d]", p.MinEngines, p.MaxEngines)
	}

	if p.Coast {
		if p.OptimizeTime {
			if p.MinT < 0 || p.MaxT <= 0 || p.MinT > p.MaxT {
				return bad("coast bounds [%g, %g]", p.MinT, p.MaxT)
			}
		} else if p.Bt < 0 {
			return bad("coast duration %g", p.Bt)
		}
		return nil
	}

	if p.Mf <= 0 || p.Mf > p.M0 {
		return bad("final mass %g outside (0, %g]", p.Mf, p.M0)
	}
	if p.Bt < 0 {
		return bad("burn time %g", p.Bt)
	}
	if p.OptimizeTime && (p.Mdot <= 0 || p.Bt == 0) {
		return bad("free burn time without propellant flow")
	}
	if p.Mf < p.M0 {
		if p.Isp <= 0 {
			return bad("specific impulse %g must be positive", p.Isp)
		}
		if p.Thrust <= 0 || p.Mdot <= 0 {
			return bad("burn without thrust")
		}
		if p.Mdot*p.Bt > p.M0-p.Mf+1e-9*p.M0 {
			return bad("propellant use %g exceeds available %g", p.Mdot*p.Bt, p.M0-p.Mf)
		}
	}
	return nil
}

// validatePhases checks each phase and the hand-offs between them.
func validatePhases(phases []Phase) error {
	if len(phases) == 0 {
		return fmt.Errorf("%w: no phases", ErrInvalidPhase)
	}
	for i, p := range phases {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("phase %d: %w", i, err)
		}
		if i == 0 {
			continue
		}
		prev := phases[i-1].Mf
		if p.MassContinuity {
			if math.Abs(p.M0-prev) > 1e-6*prev {
				return fmt.Errorf("phase %d: %w: mass continuity from %g but starts at %g", i, ErrInvalidPhase, prev, p.M0)
			}
		} else if p.M0 > prev*(1+1e-9) {
			return fmt.Errorf("phase %d: %w: mass grows from %g to %g", i, ErrInvalidPhase, prev, p.M0)
		}
	}
	last := phases[len(phases)-1]
	if last.Coast || last.Thrust <= 0 || last.Bt <= 0 {
		return fmt.Errorf("%w: last phase must be a powered burn", ErrInvalidPhase)
	}
	return nil
}
