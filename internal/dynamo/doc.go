// Package dynamo provides the numeric primitives shared by the integrators
// and the guidance solver.
//
//   - [State]: flat state vector
//   - [Func]: right-hand side of an ODE, dy = f(y, t), evaluated in place
//   - [Arena]: caller-owned pool of fixed-size scratch vectors
//   - [IntegrationError]: failure annotated with step, time and state
//
// # Example
//
//	arena := dynamo.NewArena(14)
//	y := arena.Get()
//	defer arena.Put(y)
//
// # Thread Safety
//
// An [Arena] belongs to a single solve. Concurrent solves must each own
// their arena; nothing in this package holds shared mutable state.
package dynamo
