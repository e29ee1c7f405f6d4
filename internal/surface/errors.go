package surface

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams reports an unusable Params value.
	ErrInvalidParams = errors.New("invalid surface parameters")
	// ErrInvalidFrame reports malformed frame data.
	ErrInvalidFrame = errors.New("invalid frame")
)

// InsufficientDataError is returned when a side runs out of eligible
// molecules before reaching its pivot target. It is fatal for the frame.
type InsufficientDataError struct {
	Side     Side
	Eligible int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data on %s surface: %d eligible molecules, %d pivots required",
		e.Side, e.Eligible, e.Required)
}

// SingularSystemError is returned when A+diag cannot be factorised. The
// caller may retry with a larger phi or a different n0.
type SingularSystemError struct {
	Side  Side
	Stage string
	Err   error
}

func (e *SingularSystemError) Error() string {
	return fmt.Sprintf("singular %s system on %s surface: %v", e.Stage, e.Side, e.Err)
}

func (e *SingularSystemError) Unwrap() error {
	return e.Err
}

// ReconstructionNonConvergenceError reports that the curvature gain did not
// settle within the halving budget. The accompanying coefficients are the
// last ones computed and remain usable.
type ReconstructionNonConvergenceError struct {
	Side     Side
	Halvings int
	Residual float64
}

func (e *ReconstructionNonConvergenceError) Error() string {
	return fmt.Sprintf("reconstruction of %s surface did not converge after %d halvings (|dVar(H)| = %.3g)",
		e.Side, e.Halvings, e.Residual)
}
