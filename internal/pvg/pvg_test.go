package pvg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	earthMu    = 3.986004418e14
	earthRadus = 6.371e6
)

var (
	standardR0 = r3.Vec{X: -521765.111703417, Y: -5568874.59934707, Z: 3050608.87783524}
	standardV0 = r3.Vec{X: 406.088016257895, Y: -38.0495807832894, Z: 0.000701038889818476}
	standardU0 = r3.Vec{X: -0.0820737379089317, Y: -0.874094973679233, Z: 0.478771328926086}
)

const standardT0 = 661803.431918959

func standardBuilder() *Builder {
	return NewBuilder().
		Initial(standardR0, standardV0, standardU0, standardT0, earthMu, earthRadus).
		SetTarget(earthRadus+185e3, earthRadus+10e6, earthRadus+185e3, astro.Deg2Rad(28.608), 0, 0, true, true).
		AddStageUsingBurnTime(49119.7842689869, 7114.2513992454, 288.000034332275, 170.308460385726, 0, 0).
		AddStageUsingBurnTime(2848.62586760223, 1363.71123994759, 270.15767003304, 116.391834883409, 1, 1, OptimizeBurnTime()).
		AddOptimizedCoast(678.290157913434, 0, 0, 450, 1, 1).
		AddStageUsingBurnTime(678.290157913434, 177.582604389742, 230.039271734103, 53.0805126571005, 0, 0, Unguided())
}

func TestScale(t *testing.T) {
	s := NewScale(earthMu, earthRadus, 1000)

	if math.Abs(s.VelocityScale*s.VelocityScale*s.LengthScale-earthMu) > 1e-6*earthMu {
		t.Errorf("velocity scale inconsistent with mu")
	}
	if math.Abs(s.TimeScale-s.LengthScale/s.VelocityScale) > 1e-9 {
		t.Errorf("time scale = %v", s.TimeScale)
	}
	if math.Abs(s.ForceScale-1000*s.VelocityScale/s.TimeScale) > 1e-9 {
		t.Errorf("force scale = %v", s.ForceScale)
	}
	if got := s.FromTime(s.ToTime(123.4)); math.Abs(got-123.4) > 1e-12 {
		t.Errorf("time round trip = %v", got)
	}
	if got := s.ToMdot(s.MdotScale); got != 1 {
		t.Errorf("mdot scale = %v", got)
	}
}

func TestStageConstructors(t *testing.T) {
	p := NewStageUsingBurnTime(49119.7842689869, 7114.2513992454, 288.000034332275, 170.308460385726, 0, 0)
	wantMdot := (49119.7842689869 - 7114.2513992454) / 170.308460385726
	if math.Abs(p.Mdot-wantMdot) > 1e-9 {
		t.Errorf("mdot = %v, want %v", p.Mdot, wantMdot)
	}
	if math.Abs(p.Thrust-wantMdot*288.000034332275*G0) > 1e-6 {
		t.Errorf("thrust = %v", p.Thrust)
	}

	q := NewStageUsingFinalMass(p.M0, p.Mf, p.Thrust, p.Isp, 0, 0, FixedBurnTime())
	if math.Abs(q.Bt-p.Bt) > 1e-9 {
		t.Errorf("burn time = %v, want %v", q.Bt, p.Bt)
	}
	if !q.FixedBurnTime {
		t.Error("option not applied")
	}

	c := NewOptimizedCoast(500, 1000, 10, 450, 1, 1)
	if !c.Coast || !c.OptimizeTime || c.MaxBurnTime() != 450 || c.Mf != 500 {
		t.Errorf("unexpected coast %+v", c)
	}

	z := NewStageUsingBurnTime(500, 500, 300, 0, 1, 1)
	if z.Mdot != 0 || z.Thrust != 0 || z.Validate() != nil {
		t.Errorf("zero burn stage %+v: %v", z, z.Validate())
	}
}

func TestPhaseValidate(t *testing.T) {
	good := NewStageUsingFinalMass(1000, 400, 20000, 300, 1, 1)

	tests := []struct {
		name  string
		phase Phase
		ok    bool
	}{
		{"valid burn", good, true},
		{"zero burn", NewStageUsingFinalMass(400, 400, 20000, 300, 1, 1), true},
		{"valid coast", NewOptimizedCoast(400, 0, 0, 100, 1, 1), true},
		{"fixed coast", NewFixedCoast(400, 30), true},
		{"negative mass", NewStageUsingFinalMass(-1, -2, 20000, 300, 1, 1), false},
		{"final above initial", NewStageUsingFinalMass(400, 500, 20000, 300, 1, 1), false},
		{"no isp", NewStageUsingFinalMass(1000, 400, 20000, 0, 1, 1), false},
		{"inverted coast bounds", NewOptimizedCoast(400, 0, 100, 10, 1, 1), false},
		{"zero coast bound", NewOptimizedCoast(400, 0, 0, 0, 1, 1), false},
		{"negative fixed coast", NewFixedCoast(400, -1), false},
		{"engines", NewStageUsingFinalMass(1000, 400, 20000, 300, 3, 1), false},
		{"nan", NewStageUsingFinalMass(1000, math.NaN(), 20000, 300, 1, 1), false},
		{"free burn", NewStageUsingFinalMass(1000, 400, 20000, 300, 1, 1, OptimizeBurnTime()), true},
		{"free zero burn", NewStageUsingFinalMass(400, 400, 20000, 300, 1, 1, OptimizeBurnTime()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.phase.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidPhase) {
				t.Fatalf("expected ErrInvalidPhase, got %v", err)
			}
		})
	}
}

func TestValidatePhases(t *testing.T) {
	burn := NewStageUsingFinalMass(1000, 400, 20000, 300, 1, 1)
	upper := NewStageUsingFinalMass(300, 100, 5000, 320, 1, 1)

	if err := validatePhases([]Phase{burn, upper}); err != nil {
		t.Fatalf("valid sequence rejected: %v", err)
	}
	if err := validatePhases(nil); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("empty sequence: %v", err)
	}
	heavier := NewStageUsingFinalMass(500, 100, 5000, 320, 1, 1)
	if err := validatePhases([]Phase{burn, heavier}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("mass increase accepted: %v", err)
	}
	if err := validatePhases([]Phase{burn, NewFixedCoast(400, 10)}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("coast as last phase accepted: %v", err)
	}
	cont := NewStageUsingFinalMass(300, 100, 5000, 320, 1, 1, MassContinuity())
	if err := validatePhases([]Phase{burn, cont}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("mass continuity mismatch accepted: %v", err)
	}
}

// onOrbit returns a scaled state vector with zero costates at true anomaly
// nu of the given physical orbit.
func onOrbit(s *Scale, el astro.Elements) []float64 {
	r, v := astro.StateVectorsFromElements(earthMu, el)
	y := make([]float64, stateDim)
	setVec(y, idxR, r3.Scale(1/s.LengthScale, r))
	setVec(y, idxV, r3.Scale(1/s.VelocityScale, v))
	return y
}

func TestTerminalResidualsVanishOnTarget(t *testing.T) {
	s := NewScale(earthMu, earthRadus, 1000)
	sma, ecc := astro.SmaEccFromApsides(6.556e6, 1.6371e7)
	inc := astro.Deg2Rad(28.608)

	attR := 7.5e6
	p := sma * (1 - ecc*ecc)
	nuAtt := math.Acos((p/attR - 1) / ecc)
	vAtt := astro.SpeedAtRadius(earthMu, sma, attR)
	gAtt := astro.FlightPathAngleAtRadius(earthMu, sma, ecc, attR)

	tests := []struct {
		name string
		term Terminal
		el   astro.Elements
	}{
		{"kepler3", NewKepler3Reduced(sma, ecc, inc), astro.Elements{SMA: sma, Ecc: ecc, Inc: inc, LAN: 2.1, ArgP: 0.4, TrueAnomaly: 1.2}},
		{"kepler4", NewKepler4Reduced(sma, ecc, inc, 0.7), astro.Elements{SMA: sma, Ecc: ecc, Inc: inc, LAN: 0.7, ArgP: 5.0, TrueAnomaly: 0.3}},
		{"kepler5", NewKepler5Reduced(sma, ecc, inc, 0.7, 1.1), astro.Elements{SMA: sma, Ecc: ecc, Inc: inc, LAN: 0.7, ArgP: 1.1, TrueAnomaly: 2.9}},
		{"fpa4", NewFlightPathAngle4Reduced(attR, vAtt, gAtt, inc), astro.Elements{SMA: sma, Ecc: ecc, Inc: inc, LAN: 4.0, ArgP: 0.2, TrueAnomaly: nuAtt}},
		{"fpa5", NewFlightPathAngle5Reduced(attR, vAtt, gAtt, inc, 0.7), astro.Elements{SMA: sma, Ecc: ecc, Inc: inc, LAN: 0.7, ArgP: 3.0, TrueAnomaly: nuAtt}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := tt.term.Rescale(s)
			if term.Name() != tt.name {
				t.Errorf("name = %q", term.Name())
			}
			z := make([]float64, TerminalSize)

			term.Residuals(onOrbit(s, tt.el), z)
			for i, v := range z {
				if math.Abs(v) > 1e-10 {
					t.Errorf("residual %d = %g on target", i, v)
				}
			}

			off := tt.el
			off.SMA *= 1.01
			off.Inc += 0.01
			term.Residuals(onOrbit(s, off), z)
			miss := 0.0
			for _, v := range z {
				miss = math.Max(miss, math.Abs(v))
			}
			if miss < 1e-4 {
				t.Errorf("perturbed orbit not detected, max residual %g", miss)
			}
		})
	}
}

func TestRescaleReturnsNewInstance(t *testing.T) {
	k := NewKepler3Reduced(1.1e7, 0.4, 0.5)
	before := k.peRT

	a := k.Rescale(NewScale(earthMu, 6.4e6, 1)).(Kepler3Reduced)
	b := k.Rescale(NewScale(earthMu, 6.8e6, 1)).(Kepler3Reduced)

	if k.peRT != before {
		t.Fatal("template modified by Rescale")
	}
	if math.Abs(a.peRT*6.4e6-b.peRT*6.8e6) > 1e-6 {
		t.Errorf("rescaled periapsis differs: %v vs %v", a.peRT*6.4e6, b.peRT*6.8e6)
	}
	if math.Abs(a.peRT*6.4e6-1.1e7*0.6) > 1e-6 {
		t.Errorf("periapsis = %v", a.peRT*6.4e6)
	}
}

func TestFreeLanPlaneNormal(t *testing.T) {
	up := astro.Unit(standardR0)
	for _, deg := range []float64{30, 35, 51.6, 90, 120} {
		inc := astro.Deg2Rad(deg)
		h := freeLanNormal(standardR0, inc)
		if math.Abs(r3.Dot(h, up)) > 1e-12 {
			t.Errorf("inc %v: normal not perpendicular to position", deg)
		}
		if math.Abs(h.Z-math.Cos(inc)) > 1e-12 {
			t.Errorf("inc %v: normal z = %v, want %v", deg, h.Z, math.Cos(inc))
		}
		down := r3.Cross(h, up)
		north := r3.Cross(up, astro.Unit(r3.Cross(r3.Vec{Z: 1}, up)))
		if deg < 90 && r3.Dot(down, north) < 0 {
			t.Errorf("inc %v: launch heads south", deg)
		}
	}

	// below the launch latitude the plane falls back to due east
	h := freeLanNormal(standardR0, 0)
	if math.Abs(r3.Dot(h, up)) > 1e-12 || r3.Norm(h) < 0.999 {
		t.Errorf("fallback normal = %v", h)
	}
}

func TestArcDerivativeMatchesHamiltonian(t *testing.T) {
	a := arc{thrust: 1.4, mdot: 0.3, ve: 0.35}
	y := []float64{
		0.9, 0.3, 0.2,
		0.05, 0.8, 0.1,
		-0.4, 0.7, 0.2,
		0.6, 0.5, -0.3,
		0.8, 0,
	}
	pm := 0.9
	dy := make([]float64, stateDim)
	a.derivative(y, 0, dy)

	const h = 1e-6
	partial := func(i int) float64 {
		yp := append([]float64(nil), y...)
		ym := append([]float64(nil), y...)
		yp[i] += h
		ym[i] -= h
		return (a.hamiltonian(yp, pm) - a.hamiltonian(ym, pm)) / (2 * h)
	}

	for k := 0; k < 3; k++ {
		// state equations are dH/dcostate, costate equations are -dH/dstate
		checks := []struct {
			name      string
			got, want float64
		}{
			{"dr", dy[idxR+k], partial(idxPR + k)},
			{"dv", dy[idxV+k], partial(idxPV + k)},
			{"dpr", dy[idxPR+k], -partial(idxR + k)},
			{"dpv", dy[idxPV+k], -partial(idxV + k)},
		}
		for _, c := range checks {
			if math.Abs(c.got-c.want) > 1e-7 {
				t.Errorf("%s[%d] = %v, want %v", c.name, k, c.got, c.want)
			}
		}
	}
	if math.Abs(dy[idxQ]+partial(idxM)) > 1e-7 {
		t.Errorf("mass costate rate %v, want %v", dy[idxQ], -partial(idxM))
	}
	if dy[idxM] != -a.mdot {
		t.Errorf("mass rate %v", dy[idxM])
	}
}

func TestUnguidedArcHoldsDirection(t *testing.T) {
	a := arc{thrust: 1, mdot: 0.1, unguided: true, u: r3.Vec{Y: 1}}
	y := make([]float64, stateDim)
	y[idxR] = 1
	y[idxPV] = 1
	y[idxM] = 1
	dy := make([]float64, stateDim)
	a.derivative(y, 0, dy)
	if dy[idxV] != -1 || dy[idxV+1] != 1 {
		t.Errorf("unexpected acceleration %v", dy[idxV:idxV+3])
	}
	if dy[idxQ] != 0 {
		t.Errorf("thrust orthogonal to primer should not change mass costate, got %v", dy[idxQ])
	}
}

func TestOptimizerLayout(t *testing.T) {
	a, err := standardBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}
	o := a.GetOptimizer()
	if o.nx != 8 || o.nz != 8 {
		t.Errorf("layout %d unknowns, %d residuals", o.nx, o.nz)
	}
	if len(o.free) != 2 || o.free[0] != 1 || o.free[1] != 2 {
		t.Errorf("free phases %v", o.free)
	}
	if o.freeBurn != 1 || o.coastRow[0] != -1 || o.coastRow[1] != 6 {
		t.Errorf("rows %v free burn %d", o.coastRow, o.freeBurn)
	}
	if p := a.Phases()[1]; p.MinT != 0 || p.MaxT != p.Bt {
		t.Errorf("free burn bounds [%v, %v]", p.MinT, p.MaxT)
	}
	if a.Phases()[3].OptimizeTime {
		t.Error("final stage freed although stage 2 has the free burn")
	}
	if o.Status() != Unconverged {
		t.Errorf("status %v", o.Status())
	}
	if a.bootstrap == nil {
		t.Error("expected periapsis attachment bootstrap")
	}

	fixed, err := NewBuilder().
		Initial(standardR0, standardV0, standardU0, standardT0, earthMu, earthRadus).
		SetTarget(earthRadus+185e3, earthRadus+10e6, earthRadus+185e3, 0.5, 0, 0, true, true).
		AddStageUsingFinalMass(1000, 400, 20000, 300, 1, 1, FixedBurnTime()).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if fo := fixed.GetOptimizer(); fo.nx != 6 || fo.nz != 6 || fo.freeBurn != -1 {
		t.Errorf("fixed burn layout %d/%d", fo.nx, fo.nz)
	}

	_, err = NewBuilder().
		Initial(standardR0, standardV0, standardU0, standardT0, earthMu, earthRadus).
		SetTarget(earthRadus+185e3, earthRadus+10e6, earthRadus+185e3, 0.5, 0, 0, true, true).
		AddStageUsingFinalMass(1000, 400, 20000, 300, 1, 1, OptimizeBurnTime()).
		AddStageUsingFinalMass(300, 100, 5000, 320, 1, 1, OptimizeBurnTime()).
		Build()
	if !errors.Is(err, ErrInvalidProblem) {
		t.Errorf("two free burns: %v", err)
	}
}

func TestMassCostateAnchoring(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
	}{
		{"free upper stage", standardBuilder},
		{"free final stage", func() *Builder {
			return NewBuilder().
				Initial(standardR0, standardV0, standardU0, standardT0, earthMu, earthRadus).
				SetTarget(earthRadus+185e3, earthRadus+10e6, earthRadus+185e3, astro.Deg2Rad(28.608), 0, 0, true, true).
				AddStageUsingBurnTime(49119.7842689869, 7114.2513992454, 288.000034332275, 170.308460385726, 0, 0).
				AddOptimizedCoast(7000, 0, 0, 450, 1, 1).
				AddStageUsingFinalMass(7000, 1500, 80000, 320, 1, 1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := tt.build().Build()
			if err != nil {
				t.Fatal(err)
			}
			o := a.GetOptimizer()
			tr := o.newTrajectory(false)
			if err := o.shoot(context.Background(), o.guess(40, 2, 0.4), tr); err != nil {
				t.Fatal(err)
			}

			n := len(o.arcs)
			last := &o.arcs[n-1]
			yf := tr.ends[n-1]
			hf := last.hamiltonian(yf, tr.pmEnd[n-1])
			var want float64
			if o.freeBurn != n-1 {
				// only the free true anomaly part of H is left at a fixed burnout
				want = (&arc{}).hamiltonian(yf, 0)
			}
			if math.Abs(hf-want) > 1e-12 {
				t.Errorf("H(tf) = %v, want %v", hf, want)
			}

			if k := o.freeBurn; k < n-1 {
				hk := o.arcs[k].hamiltonian(tr.ends[k], tr.pmEnd[k])
				hn := o.arcs[k+1].hamiltonian(tr.starts[k+1], tr.pmStart[k+1])
				if math.Abs(hk-hn) > 1e-12 {
					t.Errorf("H jumps from %v to %v at free shutdown", hk, hn)
				}
			}
			for i := 0; i < n; i++ {
				if got := tr.pmEnd[i] - tr.pmStart[i]; math.Abs(got-tr.ends[i][idxQ]) > 1e-12 {
					t.Errorf("phase %d: pm change %v, integrated %v", i, got, tr.ends[i][idxQ])
				}
			}
		})
	}
}

func TestNewProblemAcceptsStartBelowSurface(t *testing.T) {
	term := NewKepler3Reduced(11463500, 0.428, 0.5)

	// a point of a converged vacuum trajectory just after liftoff
	r := r3.Scale(6354430.9/r3.Norm(standardR0), standardR0)
	p, err := NewProblem(r, standardV0, standardU0, 2848, standardT0, earthMu, earthRadus, term)
	if err != nil {
		t.Fatalf("start below the surface rejected: %v", err)
	}
	if math.Abs(r3.Norm(p.R0Bar)-1) > 1e-15 {
		t.Errorf("|R0Bar| = %v", r3.Norm(p.R0Bar))
	}

	for _, rb := range []float64{-1, math.NaN()} {
		if _, err := NewProblem(r, standardV0, standardU0, 2848, standardT0, earthMu, rb, term); !errors.Is(err, ErrInvalidProblem) {
			t.Errorf("body radius %v: %v", rb, err)
		}
	}
}

func TestTruncatedIntegrationIsReported(t *testing.T) {
	for _, maxIter := range []int{8, 12, 20} {
		t.Run(fmt.Sprint(maxIter), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Integrator.MaxIter = maxIter
			cfg.MaxIterations = 5

			a, err := standardBuilder().Config(cfg).Build()
			if err != nil {
				t.Fatal(err)
			}
			o := a.GetOptimizer()
			if _, err := o.buildSolution(context.Background(), o.guess(40, 2, 0.4)); !errors.Is(err, dynamo.ErrMaxIterations) {
				t.Errorf("dense shot: expected ErrMaxIterations, got %v", err)
			}

			err = a.Run(context.Background())
			if !errors.Is(err, dynamo.ErrMaxIterations) {
				t.Fatalf("run: expected ErrMaxIterations, got %v", err)
			}
			var se *SolveError
			if !errors.As(err, &se) {
				t.Errorf("expected a SolveError, got %T", err)
			}
			if a.Solution() != nil || o.Status() != Failed {
				t.Errorf("status %v, solution %v", o.Status(), a.Solution())
			}
		})
	}
}

func TestRunDoesNotKeepAttachmentSeed(t *testing.T) {
	// any shot counts as converged, so Run only exercises the seeding
	cfg := DefaultConfig()
	cfg.Tolerance = 1e12

	a, err := standardBuilder().Config(cfg).Build()
	if err != nil {
		t.Fatal(err)
	}
	if a.bootstrap == nil {
		t.Fatal("expected periapsis attachment bootstrap")
	}

	for run := 0; run < 2; run++ {
		a.bootstrap.evaluations = 0
		if err := a.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if a.bootstrap.Evaluations() == 0 {
			t.Errorf("run %d skipped the attachment solve", run)
		}
		if !a.optimizer.WarmStarted() {
			t.Errorf("run %d was not seeded", run)
		}
		if a.optimizer.warm != nil {
			t.Errorf("run %d left the attachment seed as warm start", run)
		}
	}
}

func TestZeroBurnPhaseIsTransparent(t *testing.T) {
	a, err := NewBuilder().
		Initial(standardR0, standardV0, standardU0, standardT0, earthMu, earthRadus).
		SetTarget(earthRadus+185e3, earthRadus+185e3, earthRadus+185e3, astro.Deg2Rad(30), 0, 0, true, true).
		AddStageUsingFinalMass(30000, 10000, 600000, 300, 1, 1).
		AddStageUsingFinalMass(4000, 4000, 80000, 320, 1, 1).
		AddStageUsingFinalMass(4000, 1500, 80000, 320, 1, 1).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	o := a.GetOptimizer()
	tr := o.newTrajectory(false)
	x := o.guess(30, 2, 0.5)
	if err := o.shoot(context.Background(), x, tr); err != nil {
		t.Fatal(err)
	}
	if tr.dur[1] != 0 {
		t.Fatalf("zero burn phase has duration %v", tr.dur[1])
	}
	for i := 0; i < stateDim; i++ {
		if tr.ends[1][i] != tr.starts[1][i] {
			t.Errorf("component %d changed across zero burn phase", i)
		}
		if i != idxM && i != idxQ && tr.starts[2][i] != tr.ends[0][i] {
			t.Errorf("component %d not carried across staging", i)
		}
	}
}

func TestSolutionAccessors(t *testing.T) {
	a, err := standardBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}
	o := a.GetOptimizer()
	x := o.guess(30, 2, 0.4)
	sol, err := o.buildSolution(context.Background(), x)
	if err != nil {
		t.Fatal(err)
	}

	if d := r3.Norm(r3.Sub(sol.R(standardT0), standardR0)); d > 1e-6 {
		t.Errorf("R(T0) off by %v m", d)
	}
	if d := r3.Norm(r3.Sub(sol.R(standardT0-100), standardR0)); d > 1e-6 {
		t.Errorf("times before T0 not clamped, off by %v", d)
	}
	if m := sol.M(standardT0); math.Abs(m-49119.7842689869) > 1e-6 {
		t.Errorf("M(T0) = %v", m)
	}
	if sol.NumPhases() != 4 || sol.PhaseAt(standardT0) != 0 {
		t.Errorf("phase bookkeeping %d %d", sol.NumPhases(), sol.PhaseAt(standardT0))
	}
	if sol.DV(standardT0) != 0 {
		t.Errorf("DV(T0) = %v", sol.DV(standardT0))
	}

	total := sol.Vgo(standardT0)
	for _, f := range []float64{0.1, 0.35, 0.5, 0.8, 1} {
		tt := sol.T0() + f*(sol.Tf()-sol.T0())
		if got := sol.DV(tt) + sol.Vgo(tt); math.Abs(got-total) > 1e-6*total {
			t.Errorf("DV+Vgo at %.2f = %v, want %v", f, got, total)
		}
	}

	for i := 0; i < sol.NumPhases(); i++ {
		if tgo := sol.Tgo(standardT0, i); tgo <= 0 {
			t.Errorf("Tgo(T0, %d) = %v", i, tgo)
		}
	}
	if got := sol.Tgo(standardT0, 0); math.Abs(got-170.308460385726) > 1e-6 {
		t.Errorf("first stage tgo = %v", got)
	}

	mid := sol.PhaseStart(3) + 10
	if sol.PhaseAt(mid) != 3 {
		t.Errorf("PhaseAt = %d", sol.PhaseAt(mid))
	}
	u1, u2 := sol.U(mid), sol.U(mid+30)
	if r3.Norm(r3.Sub(u1, u2)) > 1e-12 {
		t.Error("unguided stage changed direction")
	}

	samples := sol.Samples(25)
	if len(samples) != 25 || samples[0].T != sol.T0() || samples[24].T != sol.Tf() {
		t.Errorf("samples span %v..%v", samples[0].T, samples[len(samples)-1].T)
	}
	rf, _ := sol.TerminalStateVectors()
	if d := r3.Norm(r3.Sub(rf, samples[24].R)); d > 1 {
		t.Errorf("terminal state differs from last sample by %v m", d)
	}
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		want  error
	}{
		{"no initial state", func() *Builder {
			return NewBuilder().SetTarget(7e6, 7e6, 7e6, 0.5, 0, 0, true, true).AddStageUsingFinalMass(1000, 400, 20000, 300, 1, 1)
		}, ErrInvalidProblem},
		{"no target", func() *Builder {
			return NewBuilder().Initial(standardR0, standardV0, standardU0, 0, earthMu, earthRadus).AddStageUsingFinalMass(1000, 400, 20000, 300, 1, 1)
		}, ErrInvalidTarget},
		{"periapsis inside body", func() *Builder {
			return NewBuilder().Initial(standardR0, standardV0, standardU0, 0, earthMu, earthRadus).
				SetTarget(6e6, 7e6, 6e6, 0.5, 0, 0, true, true).AddStageUsingFinalMass(1000, 400, 20000, 300, 1, 1)
		}, ErrInvalidTarget},
		{"no phases", func() *Builder {
			return NewBuilder().Initial(standardR0, standardV0, standardU0, 0, earthMu, earthRadus).
				SetTarget(7e6, 7e6, 7e6, 0.5, 0, 0, true, true)
		}, ErrInvalidPhase},
		{"bad stage", func() *Builder {
			return NewBuilder().Initial(standardR0, standardV0, standardU0, 0, earthMu, earthRadus).
				SetTarget(7e6, 7e6, 7e6, 0.5, 0, 0, true, true).AddStageUsingFinalMass(1000, 1400, 20000, 300, 1, 1)
		}, ErrInvalidPhase},
		{"coast last", func() *Builder {
			return NewBuilder().Initial(standardR0, standardV0, standardU0, 0, earthMu, earthRadus).
				SetTarget(7e6, 7e6, 7e6, 0.5, 0, 0, true, true).
				AddStageUsingFinalMass(1000, 400, 20000, 300, 1, 1).AddOptimizedCoast(400, 0, 0, 100, 1, 1)
		}, ErrInvalidPhase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTerminalSelection(t *testing.T) {
	base := func() *Builder {
		return NewBuilder().Initial(standardR0, standardV0, standardU0, 0, earthMu, earthRadus)
	}
	tests := []struct {
		name string
		b    *Builder
		want string
	}{
		{"free lan", base().SetTarget(6.6e6, 1e7, 6.6e6, 0.5, 0, 0, true, true), "kepler3"},
		{"fixed lan", base().SetTarget(6.6e6, 1e7, 6.6e6, 0.5, 1, 0, false, true), "kepler4"},
		{"fixed argp", base().SetTarget(6.6e6, 1e7, 6.6e6, 0.5, 1, 2, false, false), "kepler5"},
		{"attach free lan", base().SetTarget(6.6e6, 1e7, 7e6, 0.5, 0, 0, true, true), "fpa4"},
		{"attach fixed lan", base().SetTarget(6.6e6, 1e7, 7e6, 0.5, 1, 0, false, true), "fpa5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, err := tt.b.Terminal()
			if err != nil {
				t.Fatal(err)
			}
			if term.Name() != tt.want {
				t.Errorf("got %s, want %s", term.Name(), tt.want)
			}
		})
	}
}

func TestRunCanceled(t *testing.T) {
	a, err := standardBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = a.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if a.Solution() != nil {
		t.Error("canceled run produced a solution")
	}
}

func TestStatusString(t *testing.T) {
	if Converged.String() != "converged" || Status(42).String() != "Status(42)" {
		t.Error("unexpected status names")
	}
	se := &SolveError{Stage: "full", Iteration: 3, Znorm: 1e-3, Err: ErrNotConverged}
	if !errors.Is(se, ErrNotConverged) {
		t.Error("SolveError does not unwrap")
	}
}
