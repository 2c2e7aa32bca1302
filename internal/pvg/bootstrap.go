package pvg

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/optim"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Linear tangent bootstrap grid. Pitch is measured from the initial thrust
// direction towards downrange; turn is the magnitude of the initial
// position costate, which rotates the primer vector downrange over time.
var (
	bootstrapPitch = []float64{10, 25, 40, 55, 70}
	bootstrapTurn  = []float64{1, 2, 4, 8}
	bootstrapCoast = []float64{0.1, 0.4, 0.7}
)

func (o *Optimizer) initialGuess(ctx context.Context, warm *Solution) ([]float64, bool, error) {
	if warm != nil {
		if x, ok := o.warmGuess(warm); ok {
			o.log.Debug("warm start", zap.Int("phases", len(o.arcs)))
			return x, true, nil
		}
		o.log.Info("warm start does not match phase list, bootstrapping")
	}
	x, err := o.bootstrap(ctx)
	return x, false, err
}

// downrange is the horizontal direction along the target plane at launch.
func (o *Optimizer) downrange() r3.Vec {
	r0 := o.problem.R0Bar
	up := astro.Unit(r0)
	hn := o.problem.Terminal.PlaneNormal(r0)
	d := astro.Unit(r3.Cross(hn, up))
	if r3.Norm(d) == 0 {
		d = astro.Unit(r3.Cross(r3.Vec{Z: 1}, up))
	}
	if r3.Norm(d) == 0 {
		d = r3.Vec{Y: 1}
	}
	return d
}

// guess builds the unknowns for one linear tangent candidate.
func (o *Optimizer) guess(pitchDeg, turn, coastFrac float64) []float64 {
	x := make([]float64, o.nx)
	d := o.downrange()
	p := astro.Deg2Rad(pitchDeg)
	pv := astro.Unit(r3.Add(r3.Scale(math.Cos(p), o.problem.U0), r3.Scale(math.Sin(p), d)))
	pr := r3.Scale(-turn, d)
	x[0], x[1], x[2] = pr.X, pr.Y, pr.Z
	x[3], x[4], x[5] = pv.X, pv.Y, pv.Z

	for j, pi := range o.free {
		a := o.arcs[pi]
		if a.coast {
			x[TerminalSize+j] = a.minT + coastFrac*(a.maxT-a.minT)
		} else {
			x[TerminalSize+j] = a.maxT
		}
	}
	return x
}

// bootstrap picks the best linear tangent candidate by residual norm.
func (o *Optimizer) bootstrap(ctx context.Context) ([]float64, error) {
	coast := []float64{0.5}
	if o.hasOptimizedCoast() {
		coast = bootstrapCoast
	}
	grid := optim.NewGridSearch(
		[]string{"pitch", "turn", "coast"},
		[][]float64{bootstrapPitch, bootstrapTurn, coast},
	)

	best, score, err := grid.Search(ctx, func(ctx context.Context, p map[string]float64) (float64, error) {
		return o.residualNorm(ctx, o.guess(p["pitch"], p["turn"], p["coast"]))
	})
	switch {
	case errors.Is(err, optim.ErrNoCandidate):
		o.log.Warn("no bootstrap candidate integrated cleanly, using default guess")
		return o.guess(bootstrapPitch[1], bootstrapTurn[1], 0.5), nil
	case err != nil:
		return nil, canceled(err)
	}

	o.log.Debug("bootstrap",
		zap.Float64("pitch", best["pitch"]),
		zap.Float64("turn", best["turn"]),
		zap.Float64("coast", best["coast"]),
		zap.Float64("znorm", score))
	return o.guess(best["pitch"], best["turn"], best["coast"]), nil
}

// warmGuess converts a previous solution into unknowns for this problem.
// Phases are matched from the end, so a solution computed before staging
// still seeds the remaining phases.
func (o *Optimizer) warmGuess(old *Solution) ([]float64, bool) {
	offset := old.NumPhases() - len(o.arcs)
	if offset < 0 {
		return nil, false
	}

	t := o.problem.T0
	ratio := o.problem.Scale.TimeScale / old.scale.TimeScale
	pv := old.Pv(t)
	pr := r3.Scale(ratio, old.Pr(t))
	pvm := r3.Norm(pv)
	if pvm == 0 || math.IsNaN(pvm) {
		return nil, false
	}

	x := make([]float64, o.nx)
	x[0], x[1], x[2] = pr.X/pvm, pr.Y/pvm, pr.Z/pvm
	x[3], x[4], x[5] = pv.X/pvm, pv.Y/pvm, pv.Z/pvm

	for j, pi := range o.free {
		k := pi + offset
		start, end := old.PhaseStart(k), old.PhaseEnd(k)
		rem := end - start
		if t > start {
			rem = math.Max(end-t, 0)
		}
		a := o.arcs[pi]
		lo := a.minT
		if !a.coast {
			lo = 0
		}
		x[TerminalSize+j] = math.Min(math.Max(o.problem.Scale.ToTime(rem), lo), a.maxT)
	}
	return x, true
}
