package astro

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Elements are classical orbital elements. Angles are radians in [0, 2pi),
// inclination in [0, pi].
type Elements struct {
	SMA         float64
	Ecc         float64
	Inc         float64
	LAN         float64
	ArgP        float64
	TrueAnomaly float64
}

// small guards circular and equatorial special cases
const small = 1e-11

func EccentricityVector(mu float64, r, v r3.Vec) r3.Vec {
	h := r3.Cross(r, v)
	return r3.Sub(r3.Scale(1/mu, r3.Cross(v, h)), Unit(r))
}

// ElementsFromStateVectors converts position and velocity to elements.
// Undefined angles of circular or equatorial orbits are set to zero and
// the remaining angle absorbs the position along the orbit.
func ElementsFromStateVectors(mu float64, r, v r3.Vec) Elements {
	h := r3.Cross(r, v)
	hm := r3.Norm(h)
	rm := r3.Norm(r)
	evec := EccentricityVector(mu, r, v)
	ecc := r3.Norm(evec)
	energy := r3.Norm2(v)/2 - mu/rm

	el := Elements{Ecc: ecc}
	if energy != 0 {
		el.SMA = -mu / (2 * energy)
	} else {
		el.SMA = math.Inf(1)
	}
	el.Inc = SafeAcos(h.Z / hm)

	hHat := r3.Scale(1/hm, h)
	node := r3.Cross(zHat, h)
	nm := r3.Norm(node)

	equatorial := nm <= small*hm
	circular := ecc <= small

	if !equatorial {
		el.LAN = Clamp2Pi(math.Atan2(node.Y, node.X))
	}
	ref := r3.Vec{X: 1}
	if !equatorial {
		ref = r3.Scale(1/nm, node)
	}

	if !circular {
		el.ArgP = Clamp2Pi(math.Atan2(r3.Dot(r3.Cross(ref, evec), hHat), r3.Dot(ref, evec)))
		el.TrueAnomaly = Clamp2Pi(math.Atan2(r3.Dot(r3.Cross(evec, r), hHat), r3.Dot(evec, r)))
	} else {
		el.TrueAnomaly = Clamp2Pi(math.Atan2(r3.Dot(r3.Cross(ref, r), hHat), r3.Dot(ref, r)))
	}
	return el
}

// StateVectorsFromElements is the inverse of ElementsFromStateVectors for
// elliptic orbits.
func StateVectorsFromElements(mu float64, el Elements) (r, v r3.Vec) {
	p := el.SMA * (1 - el.Ecc*el.Ecc)
	cosNu, sinNu := math.Cos(el.TrueAnomaly), math.Sin(el.TrueAnomaly)
	rm := p / (1 + el.Ecc*cosNu)

	rPQW := r3.Vec{X: rm * cosNu, Y: rm * sinNu}
	k := math.Sqrt(mu / p)
	vPQW := r3.Vec{X: -k * sinNu, Y: k * (el.Ecc + cosNu)}

	P, Q, _ := PerifocalBasis(el.Inc, el.LAN, el.ArgP)
	r = r3.Add(r3.Scale(rPQW.X, P), r3.Scale(rPQW.Y, Q))
	v = r3.Add(r3.Scale(vPQW.X, P), r3.Scale(vPQW.Y, Q))
	return r, v
}

// PerifocalBasis returns the periapsis direction, the in-plane normal to it
// and the orbit normal.
func PerifocalBasis(inc, lan, argp float64) (P, Q, W r3.Vec) {
	cO, sO := math.Cos(lan), math.Sin(lan)
	cw, sw := math.Cos(argp), math.Sin(argp)
	ci, si := math.Cos(inc), math.Sin(inc)

	P = r3.Vec{X: cO*cw - sO*sw*ci, Y: sO*cw + cO*sw*ci, Z: sw * si}
	Q = r3.Vec{X: -cO*sw - sO*cw*ci, Y: -sO*sw + cO*cw*ci, Z: cw * si}
	W = r3.Vec{X: sO * si, Y: -cO * si, Z: ci}
	return P, Q, W
}

// OrbitNormal is the unit angular momentum direction for inc and lan.
func OrbitNormal(inc, lan float64) r3.Vec {
	return r3.Vec{X: math.Sin(lan) * math.Sin(inc), Y: -math.Cos(lan) * math.Sin(inc), Z: math.Cos(inc)}
}

// HvecFromKeplerian is the specific angular momentum vector of an orbit.
func HvecFromKeplerian(mu, sma, ecc, inc, lan float64) r3.Vec {
	hm := math.Sqrt(mu * sma * (1 - ecc*ecc))
	return r3.Scale(hm, OrbitNormal(inc, lan))
}

// EvecFromKeplerian is the eccentricity vector of an orbit.
func EvecFromKeplerian(ecc, inc, lan, argp float64) r3.Vec {
	P, _, _ := PerifocalBasis(inc, lan, argp)
	return r3.Scale(ecc, P)
}

func PeriapsisFromKeplerian(sma, ecc float64) float64 { return sma * (1 - ecc) }
func ApoapsisFromKeplerian(sma, ecc float64) float64  { return sma * (1 + ecc) }

// PeriapsisFromStateVectors uses the semi-latus rectum so it stays valid
// for parabolic and hyperbolic orbits.
func PeriapsisFromStateVectors(mu float64, r, v r3.Vec) float64 {
	h := r3.Cross(r, v)
	p := r3.Norm2(h) / mu
	ecc := r3.Norm(EccentricityVector(mu, r, v))
	return p / (1 + ecc)
}

// SmaEccFromApsides converts periapsis and apoapsis radii.
func SmaEccFromApsides(peR, apR float64) (sma, ecc float64) {
	sma = (peR + apR) / 2
	ecc = (apR - peR) / (apR + peR)
	return sma, ecc
}

// SpeedAtRadius is the vis-viva speed at radius r.
func SpeedAtRadius(mu, sma, r float64) float64 {
	return math.Sqrt(mu * (2/r - 1/sma))
}

// FlightPathAngleAtRadius returns the ascending-branch flight path angle
// at radius r on the given orbit.
func FlightPathAngleAtRadius(mu, sma, ecc, r float64) float64 {
	h := math.Sqrt(mu * sma * (1 - ecc*ecc))
	v := SpeedAtRadius(mu, sma, r)
	return SafeAcos(h / (r * v))
}
