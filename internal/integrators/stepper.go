package integrators

import "github.com/san-kum/ascent/internal/dynamo"

// Workspace is per-solve scratch storage owned by a Stepper.
type Workspace interface {
	Release(a *dynamo.Arena)
}

// Stepper is one embedded Runge-Kutta scheme. The Solver owns step size
// control; a Stepper only computes trial steps and their local interpolant.
type Stepper interface {
	// Order is the order of the error estimate used by the step controller.
	Order() int

	NewWorkspace(a *dynamo.Arena) Workspace

	// InitialStep picks a first step magnitude from the derivative at t0.
	InitialStep(f dynamo.Func, t0 float64, y0, dy0 []float64, direction, accuracy, hmax float64, ws Workspace) float64

	// Step computes a trial step of signed size h from (t, y) with derivative
	// dy, writing the result and its derivative into ynew and dynew. It
	// returns the RMS local error relative to accuracy; values above 1 mean
	// the step should be rejected.
	Step(f dynamo.Func, t, h float64, y, dy, ynew, dynew []float64, accuracy float64, ws Workspace) float64

	// PrepareInterpolant builds the continuous extension of the step just
	// accepted. It must be called before the next Step.
	PrepareInterpolant(h float64, y, dy, ynew, dynew []float64, ws Workspace)

	// Interpolate evaluates the continuous extension at fraction theta of
	// the last accepted step.
	Interpolate(theta float64, out []float64, ws Workspace)
}
