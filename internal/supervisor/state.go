package supervisor

import (
	"log/slog"

	"github.com/evanmar/deployr/internal/metrics"
)

// State names one phase of a deploy run. Transitions are strictly
// sequential: pending -> stopping -> starting -> verifying ->
// healthy | unhealthy, with failed reachable from any non-terminal
// phase.
type State string

const (
	StatePending   State = "pending"
	StateStopping  State = "stopping"
	StateStarting  State = "starting"
	StateVerifying State = "verifying"
	StateHealthy   State = "healthy"
	StateUnhealthy State = "unhealthy"
	StateFailed    State = "failed"
)

// Terminal reports whether a run in this state is over.
func (s State) Terminal() bool {
	switch s {
	case StateHealthy, StateUnhealthy, StateFailed:
		return true
	}
	return false
}

// tracker carries a run's current state and emits transition
// observability.
type tracker struct {
	service string
	state   State
	logger  *slog.Logger
}

func newTracker(service string, logger *slog.Logger) *tracker {
	t := &tracker{service: service, state: StatePending, logger: logger}
	metrics.SetCurrentState(service, string(StatePending), true)
	return t
}

func (t *tracker) to(next State) {
	if next == t.state {
		return
	}
	metrics.RecordStateTransition(t.service, string(t.state), string(next))
	metrics.SetCurrentState(t.service, string(t.state), false)
	metrics.SetCurrentState(t.service, string(next), true)
	if t.logger != nil {
		t.logger.Debug("state transition", "service", t.service, "from", string(t.state), "to", string(next))
	}
	t.state = next
}
