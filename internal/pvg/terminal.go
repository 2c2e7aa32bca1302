package pvg

import (
	"math"

	"github.com/san-kum/ascent/internal/astro"
	"gonum.org/v1/gonum/spatial/r3"
)

// TerminalSize is the number of residuals every Terminal produces.
const TerminalSize = 6

// Terminal maps a final state and costate to orbit-shape and transversality
// residuals. Implementations are values: Rescale returns a new instance.
type Terminal interface {
	Name() string

	// Residuals writes TerminalSize residuals for the scaled final vector yf
	// (position, velocity, position costate, velocity costate) into z.
	Residuals(yf []float64, z []float64)

	// Rescale expresses the physical targets in the units of s.
	Rescale(s *Scale) Terminal

	// PlaneNormal is the target orbit normal used to seed the first guess
	// when launching from r0.
	PlaneNormal(r0 r3.Vec) r3.Vec
}

// terminalState unpacks the first twelve components of a final vector.
func terminalState(yf []float64) (r, v, pr, pv r3.Vec) {
	return vec(yf, idxR), vec(yf, idxV), vec(yf, idxPR), vec(yf, idxPV)
}

// rotationTransversality is the residual for a free rotation of the final
// orbit about axis.
func rotationTransversality(r, v, pr, pv, axis r3.Vec) float64 {
	return r3.Dot(r3.Add(r3.Cross(pr, r), r3.Cross(pv, v)), axis)
}

// anomalyTransversality vanishes when the position along the orbit is free.
func anomalyTransversality(r, v, pr, pv r3.Vec) float64 {
	rm := r3.Norm(r)
	return r3.Dot(pr, v) - r3.Dot(pv, r)/(rm*rm*rm)
}

// freeLanNormal returns the normal of the plane with inclination inc that
// contains r0, launching north-east. Inclinations below the launch latitude
// fall back to a due-east plane.
func freeLanNormal(r0 r3.Vec, inc float64) r3.Vec {
	up := astro.Unit(r0)
	east := astro.Unit(r3.Cross(r3.Vec{Z: 1}, up))
	if r3.Norm(east) == 0 {
		east = r3.Vec{Y: 1}
	}
	north := r3.Cross(up, east)

	cosLat := math.Sqrt(math.Max(0, 1-up.Z*up.Z))
	ca := 1.0
	if cosLat > 0 {
		ca = math.Max(-1, math.Min(1, math.Cos(inc)/cosLat))
	}
	sa := -math.Sqrt(1 - ca*ca)
	return astro.Unit(r3.Add(r3.Scale(ca, north), r3.Scale(sa, east)))
}

// Kepler3Reduced targets periapsis, angular momentum magnitude and
// inclination. LAN, argument of periapsis and true anomaly are free.
type Kepler3Reduced struct {
	smaT, eccT, incT float64
	length           float64

	peRT, hmT, cosIncT float64
}

func NewKepler3Reduced(sma, ecc, inc float64) Kepler3Reduced {
	return newKepler3(sma, ecc, inc, 1)
}

func newKepler3(sma, ecc, inc, length float64) Kepler3Reduced {
	inc = math.Abs(astro.ClampPi(inc))
	s := sma / length
	return Kepler3Reduced{
		smaT: sma, eccT: ecc, incT: inc, length: length,
		peRT:    astro.PeriapsisFromKeplerian(s, ecc),
		hmT:     math.Sqrt(s * (1 - ecc*ecc)),
		cosIncT: math.Cos(inc),
	}
}

func (k Kepler3Reduced) Name() string { return "kepler3" }

func (k Kepler3Reduced) Rescale(s *Scale) Terminal {
	return newKepler3(k.smaT, k.eccT, k.incT, s.LengthScale)
}

func (k Kepler3Reduced) Residuals(yf []float64, z []float64) {
	r, v, pr, pv := terminalState(yf)
	h := r3.Cross(r, v)
	hm := r3.Norm(h)

	z[0] = astro.PeriapsisFromStateVectors(1, r, v) - k.peRT
	z[1] = hm - k.hmT
	z[2] = h.Z/hm - k.cosIncT
	z[3] = rotationTransversality(r, v, pr, pv, r3.Vec{Z: 1})
	z[4] = rotationTransversality(r, v, pr, pv, h)
	z[5] = anomalyTransversality(r, v, pr, pv)
}

func (k Kepler3Reduced) PlaneNormal(r0 r3.Vec) r3.Vec {
	return freeLanNormal(r0, k.incT)
}

// Kepler4Reduced fixes the orbit plane and shape; argument of periapsis and
// true anomaly are free.
type Kepler4Reduced struct {
	smaT, eccT, incT, lanT float64
	length                 float64

	peRT float64
	hT   r3.Vec
}

func NewKepler4Reduced(sma, ecc, inc, lan float64) Kepler4Reduced {
	return newKepler4(sma, ecc, inc, lan, 1)
}

func newKepler4(sma, ecc, inc, lan, length float64) Kepler4Reduced {
	inc = math.Abs(astro.ClampPi(inc))
	s := sma / length
	return Kepler4Reduced{
		smaT: sma, eccT: ecc, incT: inc, lanT: lan, length: length,
		peRT: astro.PeriapsisFromKeplerian(s, ecc),
		hT:   astro.HvecFromKeplerian(1, s, ecc, inc, lan),
	}
}

func (k Kepler4Reduced) Name() string { return "kepler4" }

func (k Kepler4Reduced) Rescale(s *Scale) Terminal {
	return newKepler4(k.smaT, k.eccT, k.incT, k.lanT, s.LengthScale)
}

func (k Kepler4Reduced) Residuals(yf []float64, z []float64) {
	r, v, pr, pv := terminalState(yf)
	h := r3.Cross(r, v)
	miss := r3.Sub(h, k.hT)

	z[0] = astro.PeriapsisFromStateVectors(1, r, v) - k.peRT
	z[1] = miss.X
	z[2] = miss.Y
	z[3] = miss.Z
	z[4] = rotationTransversality(r, v, pr, pv, h)
	z[5] = anomalyTransversality(r, v, pr, pv)
}

func (k Kepler4Reduced) PlaneNormal(r3.Vec) r3.Vec {
	return astro.OrbitNormal(k.incT, k.lanT)
}

// Kepler5Reduced fixes every element except the true anomaly.
type Kepler5Reduced struct {
	smaT, eccT, incT, lanT, argpT float64
	length                        float64

	hT, eT, pT, qT r3.Vec
}

func NewKepler5Reduced(sma, ecc, inc, lan, argp float64) Kepler5Reduced {
	return newKepler5(sma, ecc, inc, lan, argp, 1)
}

func newKepler5(sma, ecc, inc, lan, argp, length float64) Kepler5Reduced {
	inc = math.Abs(astro.ClampPi(inc))
	s := sma / length
	p, q, _ := astro.PerifocalBasis(inc, lan, argp)
	return Kepler5Reduced{
		smaT: sma, eccT: ecc, incT: inc, lanT: lan, argpT: argp, length: length,
		hT: astro.HvecFromKeplerian(1, s, ecc, inc, lan),
		eT: astro.EvecFromKeplerian(ecc, inc, lan, argp),
		pT: p,
		qT: q,
	}
}

func (k Kepler5Reduced) Name() string { return "kepler5" }

func (k Kepler5Reduced) Rescale(s *Scale) Terminal {
	return newKepler5(k.smaT, k.eccT, k.incT, k.lanT, k.argpT, s.LengthScale)
}

func (k Kepler5Reduced) Residuals(yf []float64, z []float64) {
	r, v, pr, pv := terminalState(yf)
	hmiss := r3.Sub(r3.Cross(r, v), k.hT)
	emiss := r3.Sub(astro.EccentricityVector(1, r, v), k.eT)

	z[0] = hmiss.X
	z[1] = hmiss.Y
	z[2] = hmiss.Z
	z[3] = r3.Dot(emiss, k.pT)
	z[4] = r3.Dot(emiss, k.qT)
	z[5] = anomalyTransversality(r, v, pr, pv)
}

func (k Kepler5Reduced) PlaneNormal(r3.Vec) r3.Vec {
	return astro.OrbitNormal(k.incT, k.lanT)
}
