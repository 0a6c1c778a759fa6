package history

import (
	"context"
	"time"
)

// Record is the persisted outcome of one deploy run.
type Record struct {
	Service    string    `json:"service"`
	Host       string    `json:"host"`
	State      string    `json:"state"` // terminal state: healthy, unhealthy, failed
	Healthy    bool      `json:"healthy"`
	Attempts   int       `json:"attempts"` // liveness probes issued
	Found      bool      `json:"found"`    // a prior instance was running
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Sink is a destination for deploy records (audit/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, rec Record) error
	Close() error
}

// Store is a Sink that can also be queried for recent records.
type Store interface {
	Sink
	Recent(ctx context.Context, service string, limit int) ([]Record, error)
}
