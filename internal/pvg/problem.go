package pvg

import (
	"fmt"
	"math"

	"github.com/san-kum/ascent/internal/astro"
	"gonum.org/v1/gonum/spatial/r3"
)

// Problem is the scaled initial condition of one solve. Its Terminal has
// already been rescaled into the problem's units.
type Problem struct {
	Scale    *Scale
	Terminal Terminal

	R0, V0       r3.Vec
	R0Bar, V0Bar r3.Vec
	U0           r3.Vec
	M0, M0Bar    float64
	T0           float64
	Mu           float64
	Rbody        float64
}

// NewProblem scales the initial state. term must be built in physical
// units; the problem keeps a rescaled copy.
func NewProblem(r0, v0, u0 r3.Vec, m0, t0, mu, rbody float64, term Terminal) (*Problem, error) {
	if mu <= 0 || math.IsNaN(mu) {
		return nil, fmt.Errorf("%w: gravitational parameter %g", ErrInvalidProblem, mu)
	}
	rm := r3.Norm(r0)
	if rm == 0 || math.IsNaN(rm) || math.IsInf(rm, 0) {
		return nil, fmt.Errorf("%w: initial position %v", ErrInvalidProblem, r0)
	}
	// The vacuum model ignores the surface, so a replan started from a
	// point of a converged trajectory may lie below rbody.
	if rbody < 0 || math.IsNaN(rbody) {
		return nil, fmt.Errorf("%w: body radius %g", ErrInvalidProblem, rbody)
	}
	if m0 <= 0 {
		return nil, fmt.Errorf("%w: initial mass %g", ErrInvalidProblem, m0)
	}
	if term == nil {
		return nil, fmt.Errorf("%w: no terminal condition", ErrInvalidProblem)
	}
	if r3.Norm(u0) == 0 {
		u0 = r0
	}

	s := NewScale(mu, rm, m0)
	return &Problem{
		Scale:    s,
		Terminal: term.Rescale(s),
		R0:       r0,
		V0:       v0,
		R0Bar:    r3.Scale(1/s.LengthScale, r0),
		V0Bar:    r3.Scale(1/s.VelocityScale, v0),
		U0:       astro.Unit(u0),
		M0:       m0,
		M0Bar:    m0 / s.MassScale,
		T0:       t0,
		Mu:       mu,
		Rbody:    rbody,
	}, nil
}
