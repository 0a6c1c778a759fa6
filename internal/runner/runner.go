package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evanmar/deployr/internal/config"
	"github.com/evanmar/deployr/internal/executor"
	"github.com/evanmar/deployr/internal/git"
	"github.com/evanmar/deployr/internal/history"
	"github.com/evanmar/deployr/internal/history/factory"
	"github.com/evanmar/deployr/internal/logger"
	"github.com/evanmar/deployr/internal/probe"
	"github.com/evanmar/deployr/internal/supervisor"
)

// Runner binds the loaded configuration to supervisors, the publish
// step and the history backend. It is the engine behind both the CLI
// commands and the HTTP API.
type Runner struct {
	cfg    *config.FileConfig
	logger *slog.Logger
	sink   history.Sink
	store  history.Store // sink that also supports queries, if any
}

// New builds a runner from the loaded config: logger, history backend
// and defaults.
func New(cfg *config.FileConfig) (*Runner, error) {
	r := &Runner{cfg: cfg}
	logCfg := logger.Config{}
	if cfg.Log != nil {
		logCfg = *cfg.Log
	}
	r.logger = logger.New(logCfg)

	if dsn := cfg.History.EffectiveDSN(); dsn != "" {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("history backend: %w", err)
		}
		r.sink = sink
		if st, ok := sink.(history.Store); ok {
			r.store = st
		}
	}
	return r, nil
}

// Logger exposes the runner's structured logger for the CLI.
func (r *Runner) Logger() *slog.Logger { return r.logger }

// Close releases the history backend.
func (r *Runner) Close() error {
	if r.sink != nil {
		return r.sink.Close()
	}
	return nil
}

func (r *Runner) executorFor(sc config.ServiceConfig) executor.Executor {
	if sc.Host.Addr == "" {
		return executor.Local{}
	}
	return &executor.SSH{Addr: sc.Host.Addr, Port: sc.Host.Port, Options: sc.Host.Options}
}

func (r *Runner) supervisorFor(sc config.ServiceConfig) (*supervisor.Supervisor, error) {
	sup := supervisor.New(r.executorFor(sc), nil, probe.NewHTTP(5*time.Second))
	sup.SetLogger(r.logger)
	if r.cfg.StepTimeout > 0 {
		sup.SetStepTimeout(r.cfg.StepTimeout)
	}
	genv, err := r.cfg.GlobalEnv()
	if err != nil {
		return nil, err
	}
	sup.SetGlobalEnv(genv)
	if r.sink != nil {
		sup.SetHistorySinks(r.sink)
	}
	return sup, nil
}

// Deploy publishes the service's local directory (unless skipped),
// then runs the full remote sequence.
func (r *Runner) Deploy(ctx context.Context, name, message string, skipPublish bool) (supervisor.Report, error) {
	sc, err := r.cfg.FindService(name)
	if err != nil {
		return supervisor.Report{}, err
	}
	if !skipPublish && sc.PublishDir != "" {
		pub := &git.Publisher{Dir: sc.PublishDir}
		if err := pub.Publish(ctx, message); err != nil {
			return supervisor.Report{}, err
		}
		r.logger.Info("published local changes", "service", sc.Name, "dir", sc.PublishDir)
	}
	sup, err := r.supervisorFor(sc)
	if err != nil {
		return supervisor.Report{}, err
	}
	return sup.Deploy(ctx, sc.Spec())
}

// Restart stops and starts the service without publishing or
// verifying.
func (r *Runner) Restart(ctx context.Context, name string) (supervisor.RestartResult, error) {
	sc, err := r.cfg.FindService(name)
	if err != nil {
		return supervisor.RestartResult{}, err
	}
	sup, err := r.supervisorFor(sc)
	if err != nil {
		return supervisor.RestartResult{}, err
	}
	return sup.Restart(ctx, sc.Spec())
}

// Stop terminates any matching instance.
func (r *Runner) Stop(ctx context.Context, name string) (supervisor.StopResult, error) {
	sc, err := r.cfg.FindService(name)
	if err != nil {
		return supervisor.StopResult{}, err
	}
	sup, err := r.supervisorFor(sc)
	if err != nil {
		return supervisor.StopResult{}, err
	}
	return sup.Stop(ctx, sc.Spec())
}

// Status reports the live process and session state.
func (r *Runner) Status(ctx context.Context, name string) (supervisor.Status, error) {
	sc, err := r.cfg.FindService(name)
	if err != nil {
		return supervisor.Status{}, err
	}
	sup, err := r.supervisorFor(sc)
	if err != nil {
		return supervisor.Status{}, err
	}
	return sup.Status(ctx, sc.Spec())
}

// Verify polls the service's liveness probe without touching it.
func (r *Runner) Verify(ctx context.Context, name string) (supervisor.HealthResult, error) {
	sc, err := r.cfg.FindService(name)
	if err != nil {
		return supervisor.HealthResult{}, err
	}
	sup, err := r.supervisorFor(sc)
	if err != nil {
		return supervisor.HealthResult{}, err
	}
	spec := sc.Spec()
	return sup.Verify(ctx, spec,
		spec.ProbeTimeout(supervisor.DefaultProbeTimeout),
		spec.ProbeInterval(supervisor.DefaultProbeInterval)), nil
}

// History returns recent deploy records. It requires a queryable
// backend (sqlite).
func (r *Runner) History(ctx context.Context, name string, limit int) ([]history.Record, error) {
	if r.store == nil {
		return nil, fmt.Errorf("history backend does not support queries (configure a sqlite path)")
	}
	if name != "" {
		if _, err := r.cfg.FindService(name); err != nil {
			return nil, err
		}
	}
	return r.store.Recent(ctx, name, limit)
}
