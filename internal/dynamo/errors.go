package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrContextCanceled indicates the integration was interrupted.
	ErrContextCanceled = errors.New("dynamo: integration canceled by context")

	// ErrMaxIterations indicates the step budget ran out before the end time.
	ErrMaxIterations = errors.New("dynamo: maximum iterations exceeded")

	// ErrInvalidConfig indicates unusable integrator settings.
	ErrInvalidConfig = errors.New("dynamo: invalid integrator configuration")

	// ErrDimensionMismatch indicates buffers of inconsistent length.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state buffers")
)

// IntegrationError wraps an error with the point where integration stopped.
type IntegrationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}
