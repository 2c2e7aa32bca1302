package astro

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/ascent/internal/integrators"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoApsis reports that no apsis was crossed within the search window.
var ErrNoApsis = errors.New("astro: no apsis crossing within search window")

func twoBody(mu float64) func(y []float64, t float64, dy []float64) {
	return func(y []float64, t float64, dy []float64) {
		rm := math.Sqrt(y[0]*y[0] + y[1]*y[1] + y[2]*y[2])
		k := -mu / (rm * rm * rm)
		dy[0], dy[1], dy[2] = y[3], y[4], y[5]
		dy[3], dy[4], dy[5] = k*y[0], k*y[1], k*y[2]
	}
}

func pack(r, v r3.Vec) []float64 {
	return []float64{r.X, r.Y, r.Z, v.X, v.Y, v.Z}
}

func unpack(y []float64) (r3.Vec, r3.Vec) {
	return r3.Vec{X: y[0], Y: y[1], Z: y[2]}, r3.Vec{X: y[3], Y: y[4], Z: y[5]}
}

// Propagate advances a two-body state by dt.
func Propagate(ctx context.Context, s *integrators.Solver, mu float64, r, v r3.Vec, dt float64) (r3.Vec, r3.Vec, error) {
	yf := make([]float64, 6)
	if _, err := s.Solve(ctx, twoBody(mu), pack(r, v), 0, dt, yf, nil); err != nil {
		return r, v, err
	}
	rf, vf := unpack(yf)
	return rf, vf, nil
}

// TimeToApsis searches up to maxT ahead for the next apoapsis (or periapsis)
// and returns the elapsed time and the state there.
func TimeToApsis(ctx context.Context, s *integrators.Solver, mu float64, r, v r3.Vec, apoapsis bool, maxT float64) (float64, r3.Vec, r3.Vec, error) {
	dir := 1
	if apoapsis {
		dir = -1
	}
	ev := integrators.Event{
		F: func(t float64, y []float64) float64 {
			return y[0]*y[3] + y[1]*y[4] + y[2]*y[5]
		},
		Direction: dir,
		Stop:      true,
	}

	yf := make([]float64, 6)
	res, err := s.Solve(ctx, twoBody(mu), pack(r, v), 0, maxT, yf, nil, ev)
	if err != nil {
		return 0, r, v, err
	}
	if !res.Stopped {
		return 0, r, v, ErrNoApsis
	}
	rf, vf := unpack(yf)
	return res.T, rf, vf, nil
}
