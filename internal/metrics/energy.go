package metrics

import "gonum.org/v1/gonum/spatial/r3"

// Energy tracks the specific orbital energy gained over the trajectory.
type Energy struct {
	name    string
	mu      float64
	initial float64
	current float64
	samples int
}

func NewEnergy(mu float64) *Energy {
	return &Energy{
		name: "energy_gain",
		mu:   mu,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(p Point) {
	rm := r3.Norm(p.R)
	if rm == 0 {
		return
	}
	energy := 0.5*r3.Norm2(p.V) - e.mu/rm
	if e.samples == 0 {
		e.initial = energy
	}
	e.current = energy
	e.samples++
}

// Value is the energy gain in J/kg.
func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.current - e.initial
}

func (e *Energy) Reset() {
	e.initial = 0
	e.current = 0
	e.samples = 0
}
