package executor

import (
	"context"
	"fmt"
)

// Result captures the outcome of one remote command execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs a single shell command line against an execution target.
// Implementations must be safe for concurrent use. A non-zero exit code
// is reported in Result, not as an error; an error means the command
// could not be delivered to the target at all.
type Executor interface {
	// Run executes command and returns its result. Transport failures
	// (host unreachable, ssh spawn failure) are returned as
	// *ConnectionError.
	Run(ctx context.Context, command string) (Result, error)
	// Target returns a human-readable description of the target.
	Target() string
}

// ConnectionError reports that the execution target could not be
// reached. It aborts a deploy sequence immediately.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
