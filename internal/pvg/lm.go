package pvg

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/ascent/internal/dynamo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	lambdaStart = 1e-3
	lambdaMin   = 1e-12
	lambdaMax   = 1e12
)

// errReshape asks solveStage to restart after the active set changed.
var errReshape = errors.New("pvg: active set changed")

// stage is a square subproblem: the unknowns in cols are solved for the
// residual rows; everything else stays at its current value.
type stage struct {
	name string
	cols []int
	rows []int
	iter int
}

func (o *Optimizer) fullStage() *stage {
	st := &stage{name: "full"}
	for i := 0; i < o.nx; i++ {
		st.cols = append(st.cols, i)
	}
	for i := 0; i < o.nz; i++ {
		st.rows = append(st.rows, i)
	}
	return st
}

// reducedStage holds optimized coasts at their current durations.
func (o *Optimizer) reducedStage() *stage {
	st := o.fullStage()
	st.name = "reduced"
	for j := range o.free {
		if o.coastRow[j] >= 0 {
			st.freeze(TerminalSize+j, o.coastRow[j])
		}
	}
	return st
}

func (st *stage) freeze(col, row int) {
	st.cols = remove(st.cols, col)
	st.rows = remove(st.rows, row)
}

func remove(s []int, v int) []int {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

// solveStage runs Levenberg-Marquardt on st, updating x in place.
func (o *Optimizer) solveStage(ctx context.Context, st *stage, x []float64) error {
	for {
		err := o.levenberg(ctx, st, x)
		if errors.Is(err, errReshape) {
			continue
		}
		return err
	}
}

func (o *Optimizer) levenberg(ctx context.Context, st *stage, x []float64) error {
	m, n := len(st.rows), len(st.cols)
	tr := o.newTrajectory(false)
	full := make([]float64, o.nz)
	work := make([]float64, o.nx)

	var evalErr error
	truncated := false
	f := func(z, xs []float64) {
		if evalErr == nil {
			copy(work, x)
			for k, c := range st.cols {
				work[c] = xs[k]
			}
			if err := o.shoot(ctx, work, tr); err != nil {
				evalErr = err
			} else {
				truncated = tr.truncated
				o.residuals(work, tr, full)
				for k, r := range st.rows {
					z[k] = full[r]
				}
				return
			}
		}
		for k := range z {
			z[k] = math.NaN()
		}
	}
	// A failure right after a truncated shot also wraps
	// dynamo.ErrMaxIterations.
	fail := func(err error) error {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			err = canceled(err)
		case truncated && !errors.Is(err, dynamo.ErrMaxIterations):
			err = fmt.Errorf("%w: %w", err, dynamo.ErrMaxIterations)
		}
		return &SolveError{Stage: st.name, Iteration: st.iter, Znorm: o.znorm, Err: err}
	}

	xs := make([]float64, n)
	for k, c := range st.cols {
		xs[k] = x[c]
	}
	z := make([]float64, m)
	f(z, xs)
	if evalErr != nil {
		return fail(evalErr)
	}
	if !finite(z) {
		return fail(fmt.Errorf("%w: non-finite residual", ErrNumerical))
	}
	o.znorm = floats.Norm(z, 2)

	lambda := lambdaStart
	jac := mat.NewDense(m, n, nil)
	jtj := mat.NewSymDense(n, nil)
	a := mat.NewSymDense(n, nil)
	var g, dx mat.VecDense
	trial := make([]float64, n)
	ztrial := make([]float64, m)

	for {
		o.log.Debug("lm iteration",
			zap.String("stage", st.name),
			zap.Int("iteration", st.iter),
			zap.Float64("znorm", o.znorm),
			zap.Float64("lambda", lambda))
		o.report(Progress{Stage: st.name, Iteration: st.iter, Znorm: o.znorm, Lambda: lambda, Status: Iterating})

		if o.znorm < o.cfg.Tolerance {
			return nil
		}
		if st.iter >= o.cfg.MaxIterations {
			return fail(fmt.Errorf("%w: %d iterations", ErrNotConverged, st.iter))
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		st.iter++
		o.iterations++

		fd.Jacobian(jac, f, xs, &fd.JacobianSettings{
			Formula:     fd.Central,
			Step:        o.cfg.JacobianStep,
			OriginValue: z,
		})
		if evalErr != nil {
			return fail(evalErr)
		}
		if !finite(jac.RawMatrix().Data) {
			return fail(fmt.Errorf("%w: non-finite jacobian", ErrNumerical))
		}

		jtj.SymOuterK(1, jac.T())
		g.MulVec(jac.T(), mat.NewVecDense(m, z))

		accepted := false
		for !accepted {
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					a.SetSym(i, j, jtj.At(i, j))
				}
				a.SetSym(i, i, jtj.At(i, i)+lambda*math.Max(jtj.At(i, i), lambdaMin))
			}

			var chol mat.Cholesky
			solved := chol.Factorize(a)
			if solved {
				solved = chol.SolveVecTo(&dx, &g) == nil
			}
			if !solved {
				lambda *= 10
				if lambda > lambdaMax {
					return fail(fmt.Errorf("%w: singular normal equations", ErrNumerical))
				}
				continue
			}

			for k := range trial {
				trial[k] = xs[k] - dx.AtVec(k)
			}
			pinned := o.project(st, trial)

			f(ztrial, trial)
			if evalErr != nil {
				return fail(evalErr)
			}
			tn := floats.Norm(ztrial, 2)
			if finite(ztrial) && tn < o.znorm {
				copy(xs, trial)
				copy(z, ztrial)
				o.znorm = tn
				lambda = math.Max(lambda/10, lambdaMin)
				accepted = true

				for k, c := range st.cols {
					x[c] = xs[k]
				}
				if len(pinned) > 0 && st.name == "full" {
					for _, j := range pinned {
						o.log.Debug("coast pinned at bound", zap.Int("phase", o.free[j]), zap.Float64("duration", x[TerminalSize+j]))
						st.freeze(TerminalSize+j, o.coastRow[j])
					}
					return errReshape
				}
				continue
			}

			lambda *= 10
			if lambda > lambdaMax {
				return fail(fmt.Errorf("%w: stalled", ErrNotConverged))
			}
		}
	}
}

// project clamps free durations in xs into their bounds and, when no
// free burn carries the primer normalization, renormalises the velocity
// costate. It returns the free indices of optimized coasts that had to be
// clamped.
func (o *Optimizer) project(st *stage, xs []float64) []int {
	var pinned []int
	for k, c := range st.cols {
		if c < TerminalSize {
			continue
		}
		j := c - TerminalSize
		a := &o.arcs[o.free[j]]
		lo, hi := a.minT, a.maxT
		if !a.coast {
			lo = 0
		}
		if xs[k] < lo || xs[k] > hi {
			xs[k] = math.Min(math.Max(xs[k], lo), hi)
			if o.coastRow[j] >= 0 {
				pinned = append(pinned, j)
			}
		}
	}

	if o.freeBurn < 0 && len(st.cols) >= 6 && st.cols[5] == 5 {
		pvm := math.Sqrt(xs[3]*xs[3] + xs[4]*xs[4] + xs[5]*xs[5])
		if pvm > 0 {
			for k := 0; k < 6; k++ {
				xs[k] /= pvm
			}
		}
	}
	return pinned
}
