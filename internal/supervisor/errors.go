package supervisor

import (
	"errors"
	"fmt"

	"github.com/evanmar/deployr/internal/executor"
)

// ConnectionError is re-exported so callers can classify failures
// without importing the executor package.
type ConnectionError = executor.ConnectionError

// LaunchError reports that the service could not be started: the
// session facility is missing on the host or the start command was
// rejected.
type LaunchError struct {
	Service string
	Reason  string
	Err     error
}

func (e *LaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("launch %s: %s: %v", e.Service, e.Reason, e.Err)
	}
	return fmt.Sprintf("launch %s: %s", e.Service, e.Reason)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is a transport-level failure.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsLaunchError reports whether err is a start rejection.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}
