package routine

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalTransition = errors.New("illegal routine state transition")
	ErrMissingTuning     = errors.New("tuning parameters not resolved")
)

// executionError turns a recovered panic value into an error.
func executionError(rec any) error {
	if recErr, ok := rec.(error); ok {
		return fmt.Errorf("kernel execution failed: %w", recErr)
	}
	return fmt.Errorf("kernel execution failed: %v", rec)
}
