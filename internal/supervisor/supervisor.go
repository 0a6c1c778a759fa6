package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/evanmar/deployr/internal/env"
	"github.com/evanmar/deployr/internal/executor"
	"github.com/evanmar/deployr/internal/history"
	"github.com/evanmar/deployr/internal/metrics"
	"github.com/evanmar/deployr/internal/probe"
	"github.com/evanmar/deployr/internal/service"
	"github.com/evanmar/deployr/internal/session"
)

const (
	DefaultStepTimeout   = 30 * time.Second
	DefaultKillWait      = 5 * time.Second
	DefaultProbeTimeout  = 30 * time.Second
	DefaultProbeInterval = time.Second
)

// StopResult reports the outcome of a stop operation. Found=false is a
// normal outcome, not an error.
type StopResult struct {
	Found bool `json:"found"`
}

// StartResult reports a successful detached start.
type StartResult struct {
	Session string `json:"session"`
}

// RestartResult composes stop and start.
type RestartResult struct {
	Stop  StopResult  `json:"stop"`
	Start StartResult `json:"start"`
}

// HealthResult reports the verification outcome. A timeout yields
// Healthy=false; Verify never fails outright.
type HealthResult struct {
	Healthy  bool `json:"healthy"`
	Attempts int  `json:"attempts"`
}

// Status is a point-in-time view of the service on the host.
type Status struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	Running      bool   `json:"running"`
	SessionAlive bool   `json:"session_alive"`
	Pattern      string `json:"pattern"`
	Session      string `json:"session"`
}

// Report is the full outcome of one deploy run.
type Report struct {
	Service    string       `json:"service"`
	Host       string       `json:"host"`
	State      State        `json:"state"`
	Stop       StopResult   `json:"stop"`
	Start      StartResult  `json:"start"`
	Health     HealthResult `json:"health"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Error      string       `json:"error,omitempty"`
}

// Healthy reports whether the run converged to a verified service.
func (r Report) Healthy() bool { return r.State == StateHealthy }

// Supervisor converges a single named service on a remote host from
// "unknown/possibly running" to "running and verified healthy". All
// remote side effects go through the injected executor and session
// host; the supervisor itself holds no cross-run state.
type Supervisor struct {
	exec   executor.Executor
	host   session.Host
	prober probe.Prober
	logger *slog.Logger

	envM        *env.Env
	stepTimeout time.Duration
	killWait    time.Duration

	mu    sync.Mutex
	sinks []history.Sink
}

// New builds a supervisor over the given collaborators. A nil host
// defaults to tmux over exec; a nil prober defaults to the HTTP
// prober.
func New(exec executor.Executor, host session.Host, prober probe.Prober) *Supervisor {
	if host == nil {
		host = session.NewTmux(exec)
	}
	if prober == nil {
		prober = probe.NewHTTP(5 * time.Second)
	}
	return &Supervisor{
		exec:        exec,
		host:        host,
		prober:      prober,
		envM:        env.New(),
		stepTimeout: DefaultStepTimeout,
		killWait:    DefaultKillWait,
	}
}

// SetLogger sets the structured logger used for run progress.
func (s *Supervisor) SetLogger(l *slog.Logger) { s.logger = l }

// SetStepTimeout bounds each individual remote step (stop, start,
// update). Zero or negative disables the per-step bound.
func (s *Supervisor) SetStepTimeout(d time.Duration) { s.stepTimeout = d }

// SetKillWait bounds how long Stop waits for SIGTERM to take effect
// before escalating to SIGKILL. Zero or negative skips escalation.
func (s *Supervisor) SetKillWait(d time.Duration) { s.killWait = d }

// SetGlobalEnv sets KEY=VALUE pairs exported to every start command,
// merged under per-service env.
func (s *Supervisor) SetGlobalEnv(kvs []string) {
	e := env.New()
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
	s.envM = e
}

// SetHistorySinks configures deploy record destinations. Passing no
// sinks clears the list.
func (s *Supervisor) SetHistorySinks(sinks ...history.Sink) {
	s.mu.Lock()
	s.sinks = append([]history.Sink(nil), sinks...)
	s.mu.Unlock()
}

func (s *Supervisor) stepCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.stepTimeout > 0 {
		return context.WithTimeout(ctx, s.stepTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Supervisor) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Stop finds any process on the host whose command line matches the
// spec's identifier and terminates it, then removes the service's
// detached session. Absence of a matching process is a normal outcome.
func (s *Supervisor) Stop(ctx context.Context, spec service.Spec) (StopResult, error) {
	sctx, cancel := s.stepCtx(ctx)
	defer cancel()

	pattern := spec.MatchPattern()
	found, err := s.matches(sctx, pattern)
	if err != nil {
		return StopResult{}, err
	}
	if found {
		if _, err := s.exec.Run(sctx, killCommand(pattern, "TERM")); err != nil {
			return StopResult{Found: true}, err
		}
		if err := s.awaitGone(sctx, pattern); err != nil {
			return StopResult{Found: true}, err
		}
	}
	// remove a stale session regardless, so a later start does not
	// collide with a dead one
	if err := s.host.Kill(sctx, spec.SessionName()); err != nil {
		return StopResult{Found: found}, err
	}
	metrics.IncStop(spec.Name, found)
	s.log().Info("stop completed", "service", spec.Name, "found", found)
	return StopResult{Found: found}, nil
}

// matchCommand lists pids whose command line matches pattern. The
// shell evaluating the pipeline matches its own pattern argument, so
// its pid ($$) is filtered out.
func matchCommand(pattern string) string {
	return "pgrep -f " + env.Quote(pattern) + ` | grep -qvx "$$"`
}

// killCommand signals every matching pid except the evaluating shell.
func killCommand(pattern, sig string) string {
	return "pgrep -f " + env.Quote(pattern) + ` | grep -vx "$$" | xargs -r kill -` + sig + " 2>/dev/null || true"
}

// matches reports whether the pattern currently matches a live remote
// process.
func (s *Supervisor) matches(ctx context.Context, pattern string) (bool, error) {
	res, err := s.exec.Run(ctx, matchCommand(pattern))
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// awaitGone polls until the pattern no longer matches, escalating to
// SIGKILL when the kill wait elapses.
func (s *Supervisor) awaitGone(ctx context.Context, pattern string) error {
	if s.killWait <= 0 {
		return nil
	}
	deadline := time.Now().Add(s.killWait)
	for time.Now().Before(deadline) {
		alive, err := s.matches(ctx, pattern)
		if err != nil {
			return err
		}
		if !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			return &ConnectionError{Target: s.exec.Target(), Err: ctx.Err()}
		case <-time.After(200 * time.Millisecond):
		}
	}
	_, err := s.exec.Run(ctx, killCommand(pattern, "KILL"))
	return err
}

// Start launches the service's start command inside a fresh detached
// session in its working directory. It fails with *LaunchError when
// the session facility is missing or the host rejects the command.
func (s *Supervisor) Start(ctx context.Context, spec service.Spec) (StartResult, error) {
	sctx, cancel := s.stepCtx(ctx)
	defer cancel()

	avail, err := s.host.Available(sctx)
	if err != nil {
		return StartResult{}, err
	}
	if !avail {
		return StartResult{}, &LaunchError{Service: spec.Name, Reason: "session facility (tmux) not found on host"}
	}

	name := spec.SessionName()
	command := s.envM.ExportPrefix(spec.Env) + spec.StartCommand
	if err := s.host.StartDetached(sctx, name, command, spec.WorkDir); err != nil {
		if IsConnectionError(err) {
			return StartResult{}, err
		}
		return StartResult{}, &LaunchError{Service: spec.Name, Reason: "start command rejected", Err: err}
	}
	metrics.IncStart(spec.Name)
	s.log().Info("started detached session", "service", spec.Name, "session", name)
	return StartResult{Session: name}, nil
}

// Restart composes Stop then Start. Start is always attempted even
// when Stop found nothing, so repeated calls converge on exactly one
// running instance. Transport failures abort immediately.
func (s *Supervisor) Restart(ctx context.Context, spec service.Spec) (RestartResult, error) {
	stop, err := s.Stop(ctx, spec)
	if err != nil {
		return RestartResult{Stop: stop}, err
	}
	start, err := s.Start(ctx, spec)
	return RestartResult{Stop: stop, Start: start}, err
}

// Verify polls the liveness probe every pollInterval until it answers
// 2xx or timeout elapses. It never returns an error; a timeout yields
// Healthy=false with the number of probes issued.
func (s *Supervisor) Verify(ctx context.Context, spec service.Spec, timeout, pollInterval time.Duration) HealthResult {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultProbeInterval
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	var attempts int
	for {
		select {
		case <-ctx.Done():
			return HealthResult{Attempts: attempts}
		case <-deadline.C:
			return HealthResult{Attempts: attempts}
		case <-tick.C:
			attempts++
			metrics.IncProbeAttempt(spec.Name)
			code, err := s.prober.Check(ctx, spec.Probe.URL)
			if err == nil && probe.Healthy(code) {
				return HealthResult{Healthy: true, Attempts: attempts}
			}
			s.log().Debug("probe not healthy yet", "service", spec.Name, "attempt", attempts, "code", code, "err", err)
		}
	}
}

// Update runs the service's refresh command (e.g. git pull) in its
// working directory. A missing update command is a no-op.
func (s *Supervisor) Update(ctx context.Context, spec service.Spec) error {
	cmd := strings.TrimSpace(spec.UpdateCommand)
	if cmd == "" {
		return nil
	}
	sctx, cancel := s.stepCtx(ctx)
	defer cancel()
	if spec.WorkDir != "" {
		cmd = "cd " + env.Quote(spec.WorkDir) + " && " + cmd
	}
	res, err := s.exec.Run(sctx, cmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("update %s failed (exit %d): %s", spec.Name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Status reports whether the identifier currently matches a live
// process and whether the detached session exists.
func (s *Supervisor) Status(ctx context.Context, spec service.Spec) (Status, error) {
	sctx, cancel := s.stepCtx(ctx)
	defer cancel()
	st := Status{
		Name:    spec.Name,
		Host:    s.exec.Target(),
		Pattern: spec.MatchPattern(),
		Session: spec.SessionName(),
	}
	running, err := s.matches(sctx, st.Pattern)
	if err != nil {
		return st, err
	}
	st.Running = running
	alive, err := s.host.Has(sctx, st.Session)
	if err != nil {
		return st, err
	}
	st.SessionAlive = alive
	return st, nil
}

// Deploy runs the full sequence: update, stop, start, verify. The
// sequence is strictly sequential with no retry; Verify's poll loop is
// the only retry. An unhealthy outcome is terminal but non-fatal (the
// new process may still be running), so it is reported in the Report
// with a nil error.
func (s *Supervisor) Deploy(ctx context.Context, spec service.Spec) (Report, error) {
	rep := Report{
		Service:   spec.Name,
		Host:      s.exec.Target(),
		State:     StatePending,
		StartedAt: time.Now().UTC(),
	}
	if err := spec.Validate(); err != nil {
		rep.State = StateFailed
		rep.Error = err.Error()
		rep.FinishedAt = time.Now().UTC()
		return rep, err
	}

	tr := newTracker(spec.Name, s.logger)
	fail := func(err error) (Report, error) {
		tr.to(StateFailed)
		rep.State = StateFailed
		rep.Error = err.Error()
		s.finish(ctx, &rep)
		return rep, err
	}

	if err := s.Update(ctx, spec); err != nil {
		return fail(err)
	}

	tr.to(StateStopping)
	rep.State = StateStopping
	stop, err := s.Stop(ctx, spec)
	rep.Stop = stop
	if err != nil {
		return fail(err)
	}

	tr.to(StateStarting)
	rep.State = StateStarting
	start, err := s.Start(ctx, spec)
	rep.Start = start
	if err != nil {
		return fail(err)
	}

	tr.to(StateVerifying)
	rep.State = StateVerifying
	rep.Health = s.Verify(ctx, spec, spec.ProbeTimeout(DefaultProbeTimeout), spec.ProbeInterval(DefaultProbeInterval))
	if rep.Health.Healthy {
		tr.to(StateHealthy)
		rep.State = StateHealthy
	} else {
		tr.to(StateUnhealthy)
		rep.State = StateUnhealthy
	}
	s.finish(ctx, &rep)
	return rep, nil
}

// finish stamps the report, emits terminal metrics and fans the record
// out to history sinks (best-effort).
func (s *Supervisor) finish(ctx context.Context, rep *Report) {
	rep.FinishedAt = time.Now().UTC()
	metrics.IncDeploy(rep.Service, string(rep.State))
	metrics.ObserveDeployDuration(rep.Service, rep.FinishedAt.Sub(rep.StartedAt).Seconds())
	s.log().Info("deploy finished",
		"service", rep.Service,
		"state", string(rep.State),
		"found", rep.Stop.Found,
		"attempts", rep.Health.Attempts,
		"duration", rep.FinishedAt.Sub(rep.StartedAt))

	s.mu.Lock()
	sinks := append([]history.Sink(nil), s.sinks...)
	s.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	rec := history.Record{
		Service:    rep.Service,
		Host:       rep.Host,
		State:      string(rep.State),
		Healthy:    rep.Health.Healthy,
		Attempts:   rep.Health.Attempts,
		Found:      rep.Stop.Found,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Error:      rep.Error,
	}
	for _, sink := range sinks {
		if err := sink.Send(ctx, rec); err != nil {
			s.log().Warn("history sink send failed", "service", rep.Service, "err", err)
		}
	}
}
