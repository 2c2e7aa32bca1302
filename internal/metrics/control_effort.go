package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ControlEffort sums the angle the thrust direction sweeps through.
type ControlEffort struct {
	name  string
	sum   float64
	last  r3.Vec
	valid bool
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "steering_sweep_rad",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(p Point) {
	n := r3.Norm(p.U)
	if n == 0 {
		return
	}
	u := r3.Scale(1/n, p.U)
	if c.valid {
		c.sum += math.Acos(math.Max(-1, math.Min(1, r3.Dot(c.last, u))))
	}
	c.last = u
	c.valid = true
}

func (c *ControlEffort) Value() float64 {
	return c.sum
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.last = r3.Vec{}
	c.valid = false
}
