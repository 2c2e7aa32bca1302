package pvg

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhase indicates a malformed stage or coast definition.
	ErrInvalidPhase = errors.New("pvg: invalid phase")

	// ErrInvalidTarget indicates target orbit parameters that cannot be met.
	ErrInvalidTarget = errors.New("pvg: invalid target")

	// ErrInvalidProblem indicates missing or inconsistent initial conditions.
	ErrInvalidProblem = errors.New("pvg: invalid problem")

	// ErrNotConverged indicates the residual stayed above tolerance.
	ErrNotConverged = errors.New("pvg: optimizer did not converge")

	// ErrNumerical indicates a non-finite residual or Jacobian, or a
	// singular linear system.
	ErrNumerical = errors.New("pvg: numerical failure")
)

// SolveError records where an optimizer run failed.
type SolveError struct {
	Stage     string
	Iteration int
	Znorm     float64
	Err       error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("pvg: %s stage, iteration %d (znorm=%.3g): %v", e.Stage, e.Iteration, e.Znorm, e.Err)
}

func (e *SolveError) Unwrap() error {
	return e.Err
}
