package pvg

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Layout of the per-phase integration vector. idxQ accumulates the change
// of the mass costate over the arc so it can be re-anchored afterwards.
const (
	idxR     = 0
	idxV     = 3
	idxPR    = 6
	idxPV    = 9
	idxM     = 12
	idxQ     = 13
	stateDim = 14
)

func vec(y []float64, i int) r3.Vec {
	return r3.Vec{X: y[i], Y: y[i+1], Z: y[i+2]}
}

func setVec(y []float64, i int, v r3.Vec) {
	y[i], y[i+1], y[i+2] = v.X, v.Y, v.Z
}

// arc is one phase in scaled units.
type arc struct {
	thrust float64
	mdot   float64
	ve     float64

	coast    bool
	unguided bool
	free     bool

	// u is the fixed thrust direction of an unguided arc, set from the
	// velocity costate when the arc starts.
	u r3.Vec

	duration       float64
	minT, maxT     float64
	m0             float64
	massContinuity bool
}

func newArc(p Phase, s *Scale) arc {
	a := arc{
		coast:          p.Coast,
		unguided:       p.Unguided,
		free:           p.OptimizeTime,
		duration:       s.ToTime(p.Bt),
		minT:           s.ToTime(p.MinT),
		maxT:           s.ToTime(p.MaxBurnTime()),
		m0:             s.ToMass(p.M0),
		massContinuity: p.MassContinuity,
	}
	if !p.Coast {
		a.thrust = s.ToForce(p.Thrust)
		a.mdot = s.ToMdot(p.Mdot)
		a.ve = s.ToVelocity(p.Ve())
	}
	return a
}

// direction is the unit thrust vector for the costate pv.
func (a *arc) direction(pv r3.Vec) r3.Vec {
	if a.unguided {
		return a.u
	}
	n := r3.Norm(pv)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, pv)
}

// derivative is the state and costate right hand side with mu = 1.
func (a *arc) derivative(y []float64, _ float64, dy []float64) {
	r := vec(y, idxR)
	v := vec(y, idxV)
	pr := vec(y, idxPR)
	pv := vec(y, idxPV)
	m := y[idxM]

	r2 := r3.Dot(r, r)
	rm := math.Sqrt(r2)
	r3m := r2 * rm
	r5m := r3m * r2

	var at, dq float64
	var u r3.Vec
	if a.thrust > 0 {
		u = a.direction(pv)
		at = a.thrust / m
		dq = a.thrust * r3.Dot(pv, u) / (m * m)
	}

	dv := r3.Add(r3.Scale(-1/r3m, r), r3.Scale(at, u))
	dpr := r3.Sub(r3.Scale(1/r3m, pv), r3.Scale(3*r3.Dot(pv, r)/r5m, r))

	setVec(dy, idxR, v)
	setVec(dy, idxV, dv)
	setVec(dy, idxPR, dpr)
	setVec(dy, idxPV, r3.Scale(-1, pr))
	dy[idxM] = -a.mdot
	dy[idxQ] = dq
}

// hamiltonian evaluates H on this arc with mass costate pm.
func (a *arc) hamiltonian(y []float64, pm float64) float64 {
	r := vec(y, idxR)
	v := vec(y, idxV)
	pr := vec(y, idxPR)
	pv := vec(y, idxPV)
	rm := r3.Norm(r)

	h := r3.Dot(pr, v) - r3.Dot(pv, r)/(rm*rm*rm)
	if a.thrust > 0 {
		h += a.thrustTerm(y)
		h -= pm * a.mdot
	}
	return h
}

// thrustTerm is (T/m) pv.u, the thrust contribution to H.
func (a *arc) thrustTerm(y []float64) float64 {
	if a.thrust <= 0 {
		return 0
	}
	pv := vec(y, idxPV)
	return a.thrust / y[idxM] * r3.Dot(pv, a.direction(pv))
}
