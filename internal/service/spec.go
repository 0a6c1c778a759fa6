package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// HostConfig identifies the remote execution target. Addr accepts the
// user@host form the ssh binary understands; an empty Addr selects
// local execution.
type HostConfig struct {
	Addr    string   `json:"addr" mapstructure:"addr"`
	Port    int      `json:"port" mapstructure:"port"`
	Options []string `json:"options" mapstructure:"options"` // extra ssh -o options
}

// ProbeConfig describes the liveness check for a service: an HTTP URL
// that must answer with a 2xx status within Timeout, polled every
// Interval.
type ProbeConfig struct {
	URL      string        `json:"url" mapstructure:"url"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// Spec describes one service to converge on a remote host. A Spec is
// built per invocation from config or flags and discarded afterwards.
type Spec struct {
	Name          string      `json:"name" mapstructure:"name"`
	Identifier    string      `json:"identifier" mapstructure:"identifier"` // pattern matched against remote command lines
	StartCommand  string      `json:"start_command" mapstructure:"start_command"`
	UpdateCommand string      `json:"update_command" mapstructure:"update_command"` // optional refresh step before restart
	WorkDir       string      `json:"workdir" mapstructure:"workdir"`
	Env           []string    `json:"env" mapstructure:"env"` // extra KEY=VALUE pairs
	Session       string      `json:"session" mapstructure:"session"`
	Host          HostConfig  `json:"host" mapstructure:"host"`
	Probe         ProbeConfig `json:"probe" mapstructure:"probe"`
}

// Validate checks the fields every operation depends on.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("service requires a name")
	}
	if strings.TrimSpace(s.StartCommand) == "" {
		return fmt.Errorf("service %s requires a start_command", s.Name)
	}
	if pat := s.MatchPattern(); strings.TrimSpace(pat) == "" {
		return fmt.Errorf("service %s has no usable identifier", s.Name)
	}
	return nil
}

// MatchPattern returns the pattern used to find running instances on
// the host. Falls back to the start command when no identifier is set.
// The caller owns keeping it specific enough not to hit unrelated
// processes.
func (s *Spec) MatchPattern() string {
	if s.Identifier != "" {
		return s.Identifier
	}
	return strings.TrimSpace(s.StartCommand)
}

// SessionName returns the detached session chosen for the service.
func (s *Spec) SessionName() string {
	if s.Session != "" {
		return s.Session
	}
	return s.Name
}

// ProbeTimeout returns the probe timeout or def when unset.
func (s *Spec) ProbeTimeout(def time.Duration) time.Duration {
	if s.Probe.Timeout > 0 {
		return s.Probe.Timeout
	}
	return def
}

// ProbeInterval returns the probe poll interval or def when unset.
func (s *Spec) ProbeInterval(def time.Duration) time.Duration {
	if s.Probe.Interval > 0 {
		return s.Probe.Interval
	}
	return def
}
