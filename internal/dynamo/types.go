package dynamo

import (
	"fmt"
	"math"
)

type State []float64

// Func writes the time derivative of y at t into dy. It must not retain
// y or dy.
type Func func(y []float64, t float64, dy []float64)

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// AddScaled sets s = a + h*b element-wise.
func (s State) AddScaled(a []float64, h float64, b []float64) {
	for i := range s {
		s[i] = a[i] + h*b[i]
	}
}

// CheckDim reports ErrDimensionMismatch when any buffer differs from n.
func CheckDim(n int, bufs ...[]float64) error {
	for _, b := range bufs {
		if len(b) != n {
			return fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, n, len(b))
		}
	}
	return nil
}
