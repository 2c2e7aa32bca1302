package astro

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const twoPi = 2 * math.Pi

func Deg2Rad(deg float64) float64 { return deg * math.Pi / 180 }
func Rad2Deg(rad float64) float64 { return rad * 180 / math.Pi }

// ClampPi wraps an angle into (-pi, pi].
func ClampPi(x float64) float64 {
	x = math.Mod(x, twoPi)
	if x > math.Pi {
		x -= twoPi
	} else if x <= -math.Pi {
		x += twoPi
	}
	return x
}

// Clamp2Pi wraps an angle into [0, 2pi).
func Clamp2Pi(x float64) float64 {
	x = math.Mod(x, twoPi)
	if x < 0 {
		x += twoPi
	}
	if x >= twoPi {
		x = 0
	}
	return x
}

// SafeAcos is acos with its argument clamped to [-1, 1].
func SafeAcos(x float64) float64 {
	return math.Acos(math.Max(-1, math.Min(1, x)))
}

// Unit returns v normalised, or the zero vector for a zero input.
func Unit(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}

var zHat = r3.Vec{Z: 1}

// PitchHeading returns the elevation of u above the local horizon at r and
// its compass heading measured from north towards east.
func PitchHeading(r, u r3.Vec) (pitch, heading float64) {
	up := Unit(r)
	east := Unit(r3.Cross(zHat, up))
	if r3.Norm(east) == 0 {
		east = r3.Vec{Y: 1}
	}
	north := r3.Cross(up, east)
	u = Unit(u)
	pitch = math.Asin(math.Max(-1, math.Min(1, r3.Dot(u, up))))
	heading = Clamp2Pi(math.Atan2(r3.Dot(u, east), r3.Dot(u, north)))
	return pitch, heading
}
