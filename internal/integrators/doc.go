// Package integrators implements adaptive Runge-Kutta integration of
// first-order ODE systems.
//
// A [Solver] drives any [Stepper] from t0 to tf with error-controlled step
// sizes, optional dense output into an [Interpolant], optional scalar
// [Event] detection, and cooperative cancellation through a context.
// [DormandPrince5] is the embedded 5(4) pair used throughout the module.
//
// # Example
//
//	s := integrators.NewSolver(integrators.DefaultConfig())
//	yf := make([]float64, 2)
//	interp := integrators.NewInterpolant(2)
//	_, err := s.Solve(ctx, f, []float64{1, 0}, 0, 10, yf, interp)
//
// # Thread Safety
//
// A Solver reuses its scratch arena between calls and must not be shared by
// concurrent solves. Interpolants are read-only once the solve returns.
package integrators
