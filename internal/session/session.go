package session

import "context"

// Host starts commands detached from the controlling connection so
// they keep running after it closes. Implementations must be safe for
// concurrent use.
type Host interface {
	// Available reports whether the hosting facility exists on the
	// target.
	Available(ctx context.Context) (bool, error)
	// Has reports whether a session with the given name is running.
	Has(ctx context.Context, name string) (bool, error)
	// StartDetached launches command inside a new detached session in
	// workdir. The session name must be unique per service.
	StartDetached(ctx context.Context, name, command, workdir string) error
	// Kill terminates the named session. A missing session is not an
	// error.
	Kill(ctx context.Context, name string) error
}
