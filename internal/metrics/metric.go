package metrics

import "gonum.org/v1/gonum/spatial/r3"

// Point is one sampled trajectory state in physical units.
type Point struct {
	T    float64
	R, V r3.Vec
	U    r3.Vec
	M    float64
}

// Metric accumulates a scalar over a sampled trajectory.
type Metric interface {
	Name() string
	Observe(p Point)
	Value() float64
	Reset()
}

// Evaluate resets each metric, feeds it every point and collects the values.
func Evaluate(points []Point, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for _, p := range points {
			m.Observe(p)
		}
		out[m.Name()] = m.Value()
	}
	return out
}
