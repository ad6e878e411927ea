package core

import (
	"errors"
	"fmt"
)

// ErrMaxIterations is matched (errors.Is) by failures caused by reaching the
// configured iteration limit without a completion signal.
var ErrMaxIterations = errors.New("maximum iterations exceeded")

// ErrCancelled is matched by failures caused by cancellation of the run.
var ErrCancelled = errors.New("run cancelled")

// MaxIterationsError reports the limit that was exhausted.
type MaxIterationsError struct {
	Limit int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("reached maximum iterations (%d) without completion", e.Limit)
}

// Unwrap makes MaxIterationsError match ErrMaxIterations.
func (e *MaxIterationsError) Unwrap() error { return ErrMaxIterations }
