package generator

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means the generator did not finish within the configured
	// wall-clock budget. It is always delivered inside an *InvocationError.
	ErrTimeout = errors.New("generator timed out")

	// ErrOutputTooLarge means stdout or stderr exceeded the capture cap.
	ErrOutputTooLarge = errors.New("generator output exceeded cap")
)

// InvocationError is the single failure type returned by Invoke. Spawn
// errors, non-zero exits, timeouts and output overflow all arrive here with
// the underlying cause attached.
type InvocationError struct {
	Cause    error
	ExitCode int
	// Stderr is the filtered diagnostic output, possibly empty.
	Stderr string
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("generator invocation failed: %v", e.Cause)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Cause }
