// Package viz renders solver progress and trajectories in the terminal.
//
// [Model] is a Bubble Tea program that follows an ascent solve: the current
// stage, iteration and damping, and a chart of the residual history. When
// the solve finishes it shows the burnout orbit and an altitude profile
// drawn on a Braille [Canvas].
//
// # Key Bindings
//
//	Q, Ctrl+C - Cancel the solve and quit
package viz
