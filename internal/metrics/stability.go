package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Clearance reports the fraction of samples above a minimum altitude.
type Clearance struct {
	name        string
	rbody       float64
	threshold   float64
	violations  int
	samples     int
	minAltitude float64
}

func NewClearance(rbody, threshold float64) *Clearance {
	return &Clearance{
		name:        "clearance",
		rbody:       rbody,
		threshold:   threshold,
		minAltitude: math.Inf(1),
	}
}

func (c *Clearance) Name() string {
	return c.name
}

func (c *Clearance) Observe(p Point) {
	c.samples++
	alt := r3.Norm(p.R) - c.rbody
	c.minAltitude = math.Min(c.minAltitude, alt)
	if alt < c.threshold {
		c.violations++
	}
}

func (c *Clearance) Value() float64 {
	if c.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(c.violations)/float64(c.samples)
}

// MinAltitude is the lowest altitude observed.
func (c *Clearance) MinAltitude() float64 {
	return c.minAltitude
}

func (c *Clearance) Reset() {
	c.violations = 0
	c.samples = 0
	c.minAltitude = math.Inf(1)
}
