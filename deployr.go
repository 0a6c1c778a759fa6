package deployr

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/evanmar/deployr/internal/config"
	"github.com/evanmar/deployr/internal/executor"
	"github.com/evanmar/deployr/internal/git"
	"github.com/evanmar/deployr/internal/history"
	"github.com/evanmar/deployr/internal/metrics"
	"github.com/evanmar/deployr/internal/runner"
	iapi "github.com/evanmar/deployr/internal/server"
	"github.com/evanmar/deployr/internal/service"
	"github.com/evanmar/deployr/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = service.Spec

type ProbeConfig = service.ProbeConfig

type HostConfig = service.HostConfig

type Report = supervisor.Report

type Status = supervisor.Status

type StopResult = supervisor.StopResult

type StartResult = supervisor.StartResult

type RestartResult = supervisor.RestartResult

type HealthResult = supervisor.HealthResult

type State = supervisor.State

type ConnectionError = supervisor.ConnectionError

type LaunchError = supervisor.LaunchError

type HistorySink = history.Sink

type HistoryRecord = history.Record

type Publisher = git.Publisher

// Supervisor is a thin facade over internal/supervisor.Supervisor for
// embedding a single-service deploy flow without a config file.
type Supervisor struct{ inner *supervisor.Supervisor }

// NewSupervisor builds a supervisor that talks to host over ssh, or to
// the local machine when addr is empty.
func NewSupervisor(addr string) *Supervisor {
	var ex executor.Executor
	if addr == "" {
		ex = executor.Local{}
	} else {
		ex = &executor.SSH{Addr: addr}
	}
	return &Supervisor{inner: supervisor.New(ex, nil, nil)}
}

func (s *Supervisor) SetGlobalEnv(kvs []string) { s.inner.SetGlobalEnv(kvs) }

func (s *Supervisor) SetHistorySinks(sinks ...HistorySink) {
	s.inner.SetHistorySinks(sinks...)
}

func (s *Supervisor) SetStepTimeout(d time.Duration) { s.inner.SetStepTimeout(d) }

func (s *Supervisor) Deploy(ctx context.Context, spec Spec) (Report, error) {
	return s.inner.Deploy(ctx, spec)
}
func (s *Supervisor) Stop(ctx context.Context, spec Spec) (StopResult, error) {
	return s.inner.Stop(ctx, spec)
}
func (s *Supervisor) Start(ctx context.Context, spec Spec) (StartResult, error) {
	return s.inner.Start(ctx, spec)
}
func (s *Supervisor) Restart(ctx context.Context, spec Spec) (RestartResult, error) {
	return s.inner.Restart(ctx, spec)
}
func (s *Supervisor) Verify(ctx context.Context, spec Spec) HealthResult {
	return s.inner.Verify(ctx, spec,
		spec.ProbeTimeout(supervisor.DefaultProbeTimeout),
		spec.ProbeInterval(supervisor.DefaultProbeInterval))
}
func (s *Supervisor) Status(ctx context.Context, spec Spec) (Status, error) {
	return s.inner.Status(ctx, spec)
}

// Runner facade: config-driven multi-service engine.

type Runner = runner.Runner

func NewRunner(c *cfg.FileConfig) (*Runner, error) { return runner.New(c) }

func LoadConfig(path string) (*cfg.FileConfig, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing the deploy API backed
// by the given runner.
func NewHTTPServer(addr, basePath string, r *Runner) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, r)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using
// the default registry. It blocks in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}

// Error helpers re-exported for callers switching on failure class.

func IsConnectionError(err error) bool { return supervisor.IsConnectionError(err) }
func IsLaunchError(err error) bool     { return supervisor.IsLaunchError(err) }
