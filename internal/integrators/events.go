package integrators

import "math"

// Event is a scalar function whose sign changes are located during
// integration.
type Event struct {
	F func(t float64, y []float64) float64

	// Direction filters crossings: +1 only rising, -1 only falling, 0 both.
	Direction int

	// Stop ends the integration at the first matching crossing.
	Stop bool

	// Tol is the time tolerance of the bisection; zero picks one relative
	// to the step.
	Tol float64
}

// Crossing is one located event.
type Crossing struct {
	Event int
	T     float64
	Y     []float64
}

func (e *Event) matches(gOld, gNew float64) bool {
	if gOld == 0 || math.IsNaN(gOld) || math.IsNaN(gNew) {
		return false
	}
	rising := gOld < 0 && gNew >= 0
	falling := gOld > 0 && gNew <= 0
	switch {
	case e.Direction > 0:
		return rising
	case e.Direction < 0:
		return falling
	default:
		return rising || falling
	}
}

const maxBisections = 200

// locate brackets the root of an event inside the last accepted step using
// the stepper's continuous extension and returns the fraction of the step
// where it lies.
func locate(ev *Event, s Stepper, ws Workspace, t, h, gOld float64, buf []float64) float64 {
	tol := ev.Tol
	if tol <= 0 {
		tol = 1e-12 * math.Max(1, math.Abs(t))
	}
	lo, hi := 0.0, 1.0
	glo := gOld
	for i := 0; i < maxBisections && math.Abs(hi-lo)*math.Abs(h) > tol; i++ {
		mid := 0.5 * (lo + hi)
		s.Interpolate(mid, buf, ws)
		gm := ev.F(t+mid*h, buf)
		if gm == 0 {
			return mid
		}
		if (glo < 0) == (gm < 0) {
			lo, glo = mid, gm
		} else {
			hi = mid
		}
	}
	return hi
}
