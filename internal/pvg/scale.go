package pvg

import "math"

// G0 is standard gravity, used to turn specific impulse into exhaust speed.
const G0 = 9.80665

// Scale holds the characteristic units of one problem. In scaled units the
// gravitational parameter, the initial radius and the initial mass are all 1.
type Scale struct {
	LengthScale       float64
	VelocityScale     float64
	TimeScale         float64
	MassScale         float64
	AccelerationScale float64
	ForceScale        float64
	MdotScale         float64
	Mu                float64
}

func NewScale(mu, r0, m0 float64) *Scale {
	vs := math.Sqrt(mu / r0)
	ts := r0 / vs
	as := vs / ts
	return &Scale{
		LengthScale:       r0,
		VelocityScale:     vs,
		TimeScale:         ts,
		MassScale:         m0,
		AccelerationScale: as,
		ForceScale:        m0 * as,
		MdotScale:         m0 / ts,
		Mu:                mu,
	}
}

func (s *Scale) ToTime(t float64) float64   { return t / s.TimeScale }
func (s *Scale) FromTime(t float64) float64 { return t * s.TimeScale }

func (s *Scale) ToLength(l float64) float64   { return l / s.LengthScale }
func (s *Scale) FromLength(l float64) float64 { return l * s.LengthScale }

func (s *Scale) ToVelocity(v float64) float64   { return v / s.VelocityScale }
func (s *Scale) FromVelocity(v float64) float64 { return v * s.VelocityScale }

func (s *Scale) ToMass(m float64) float64   { return m / s.MassScale }
func (s *Scale) FromMass(m float64) float64 { return m * s.MassScale }

func (s *Scale) ToForce(f float64) float64 { return f / s.ForceScale }
func (s *Scale) ToMdot(m float64) float64  { return m / s.MdotScale }
