package pvg

import (
	"math"

	"github.com/san-kum/ascent/internal/astro"
	"gonum.org/v1/gonum/spatial/r3"
)

// FlightPathAngle4Reduced attaches at a fixed radius, speed and flight path
// angle in a plane of given inclination. LAN and the position along the
// orbit are free.
type FlightPathAngle4Reduced struct {
	rT, vT, gammaT, incT float64
	length, velocity     float64

	rbT, vbT, sinGammaT, cosIncT float64
}

func NewFlightPathAngle4Reduced(r, v, gamma, inc float64) FlightPathAngle4Reduced {
	return newFPA4(r, v, gamma, inc, 1, 1)
}

func newFPA4(r, v, gamma, inc, length, velocity float64) FlightPathAngle4Reduced {
	inc = math.Abs(astro.ClampPi(inc))
	return FlightPathAngle4Reduced{
		rT: r, vT: v, gammaT: gamma, incT: inc, length: length, velocity: velocity,
		rbT:       r / length,
		vbT:       v / velocity,
		sinGammaT: math.Sin(gamma),
		cosIncT:   math.Cos(inc),
	}
}

func (f FlightPathAngle4Reduced) Name() string { return "fpa4" }

func (f FlightPathAngle4Reduced) Rescale(s *Scale) Terminal {
	return newFPA4(f.rT, f.vT, f.gammaT, f.incT, s.LengthScale, s.VelocityScale)
}

func (f FlightPathAngle4Reduced) Residuals(yf []float64, z []float64) {
	r, v, pr, pv := terminalState(yf)
	rm, vm := r3.Norm(r), r3.Norm(v)
	h := r3.Cross(r, v)

	z[0] = rm - f.rbT
	z[1] = vm - f.vbT
	z[2] = r3.Dot(r, v)/(rm*vm) - f.sinGammaT
	z[3] = h.Z/r3.Norm(h) - f.cosIncT
	z[4] = rotationTransversality(r, v, pr, pv, r3.Vec{Z: 1})
	z[5] = rotationTransversality(r, v, pr, pv, h)
}

func (f FlightPathAngle4Reduced) PlaneNormal(r0 r3.Vec) r3.Vec {
	return freeLanNormal(r0, f.incT)
}

// FlightPathAngle5Reduced is FlightPathAngle4Reduced with the LAN fixed.
type FlightPathAngle5Reduced struct {
	rT, vT, gammaT, incT, lanT float64
	length, velocity           float64

	rbT, vbT, sinGammaT float64
	nodeT, crossT       r3.Vec
}

func NewFlightPathAngle5Reduced(r, v, gamma, inc, lan float64) FlightPathAngle5Reduced {
	return newFPA5(r, v, gamma, inc, lan, 1, 1)
}

func newFPA5(r, v, gamma, inc, lan, length, velocity float64) FlightPathAngle5Reduced {
	inc = math.Abs(astro.ClampPi(inc))
	// two directions orthogonal to the target normal; the normal miss is
	// measured along them
	node, cross, _ := astro.PerifocalBasis(inc, lan, 0)
	return FlightPathAngle5Reduced{
		rT: r, vT: v, gammaT: gamma, incT: inc, lanT: lan, length: length, velocity: velocity,
		rbT:       r / length,
		vbT:       v / velocity,
		sinGammaT: math.Sin(gamma),
		nodeT:     node,
		crossT:    cross,
	}
}

func (f FlightPathAngle5Reduced) Name() string { return "fpa5" }

func (f FlightPathAngle5Reduced) Rescale(s *Scale) Terminal {
	return newFPA5(f.rT, f.vT, f.gammaT, f.incT, f.lanT, s.LengthScale, s.VelocityScale)
}

func (f FlightPathAngle5Reduced) Residuals(yf []float64, z []float64) {
	r, v, pr, pv := terminalState(yf)
	rm, vm := r3.Norm(r), r3.Norm(v)
	h := r3.Cross(r, v)
	hhat := r3.Scale(1/r3.Norm(h), h)

	z[0] = rm - f.rbT
	z[1] = vm - f.vbT
	z[2] = r3.Dot(r, v)/(rm*vm) - f.sinGammaT
	z[3] = r3.Dot(hhat, f.nodeT)
	z[4] = r3.Dot(hhat, f.crossT)
	z[5] = rotationTransversality(r, v, pr, pv, h)
}

func (f FlightPathAngle5Reduced) PlaneNormal(r3.Vec) r3.Vec {
	return astro.OrbitNormal(f.incT, f.lanT)
}
