// Package pvg solves multi-phase rocket ascents with primer vector guidance.
//
// The ascent is posed as a two-point boundary value problem: the unknowns
// are the initial position and velocity costates plus the free phase
// durations (optimized coasts and, by default, the final burn). Each
// iteration integrates the coupled state and costate equations through the
// ordered phase list and evaluates a terminal residual, which a damped
// Newton (Levenberg-Marquardt) iteration drives to zero.
//
// All numerics run in nondimensional units derived from the initial radius,
// the gravitational parameter and the initial mass (see Scale).
//
// # Example
//
//	a, err := pvg.NewBuilder().
//		Initial(r0, v0, u0, t0, mu, rbody).
//		SetTarget(peR, apR, peR, inc, 0, 0, true, true).
//		AddStageUsingFinalMass(m0, mf, thrust, isp, 1, 1).
//		Build()
//	if err != nil {
//		return err
//	}
//	if err := a.Run(ctx); err != nil {
//		return err
//	}
//	sol := a.Solution()
//	fmt.Println(sol.Vgo(t0), sol.Tgo(t0, 0))
//
// # Thread Safety
//
// An Ascent runs synchronously on the calling goroutine and must not be
// shared. A Solution is immutable and may be read from any goroutine.
package pvg
