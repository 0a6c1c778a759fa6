package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evanmar/deployr/internal/config"
	"github.com/evanmar/deployr/internal/metrics"
	"github.com/evanmar/deployr/internal/runner"
	"github.com/evanmar/deployr/internal/server"
)

// command carries the global flags into the method-style handlers.
type command struct {
	global *GlobalFlags
}

// withRunner loads the config, builds a runner and hands it to fn
// together with a signal-aware context.
func (c command) withRunner(fn func(ctx context.Context, r *runner.Runner) error) error {
	cfg, err := config.Load(c.global.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	r, err := runner.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, r)
}

func (c command) Deploy(name, message string, skipPublish, allowUnverified bool) error {
	return c.withRunner(func(ctx context.Context, r *runner.Runner) error {
		rep, err := r.Deploy(ctx, name, message, skipPublish)
		if err != nil {
			return err
		}
		printJSON(rep)
		if !rep.Healthy() && !allowUnverified {
			return fmt.Errorf("service %s did not become healthy (state %s, %d probes)",
				rep.Service, rep.State, rep.Health.Attempts)
		}
		return nil
	})
}

func (c command) Restart(name string) error {
	return c.withRunner(func(ctx context.Context, r *runner.Runner) error {
		res, err := r.Restart(ctx, name)
		if err != nil {
			return err
		}
		printJSON(res)
		return nil
	})
}

func (c command) Stop(name string) error {
	return c.withRunner(func(ctx context.Context, r *runner.Runner) error {
		res, err := r.Stop(ctx, name)
		if err != nil {
			return err
		}
		printJSON(res)
		return nil
	})
}

func (c command) Status(name string) error {
	return c.withRunner(func(ctx context.Context, r *runner.Runner) error {
		st, err := r.Status(ctx, name)
		if err != nil {
			return err
		}
		printJSON(st)
		return nil
	})
}

func (c command) Verify(name string) error {
	return c.withRunner(func(ctx context.Context, r *runner.Runner) error {
		res, err := r.Verify(ctx, name)
		if err != nil {
			return err
		}
		printJSON(res)
		if !res.Healthy {
			return fmt.Errorf("health check did not pass after %d probes", res.Attempts)
		}
		return nil
	})
}

func (c command) History(name string, limit int) error {
	return c.withRunner(func(ctx context.Context, r *runner.Runner) error {
		recs, err := r.History(ctx, name, limit)
		if err != nil {
			return err
		}
		printJSON(recs)
		return nil
	})
}

// Serve runs the HTTP API until interrupted.
func (c command) Serve(listen, basePath string) error {
	cfg, err := config.Load(c.global.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if listen == "" || basePath == "" {
		if cfg.Server != nil {
			if listen == "" {
				listen = cfg.Server.Listen
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
		}
	}
	if listen == "" {
		listen = ":8080"
	}

	r, err := runner.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srv, err := server.NewServer(listen, basePath, r)
	if err != nil {
		return err
	}
	r.Logger().Info("HTTP API listening", "addr", listen, "base_path", basePath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	r.Logger().Info("shutting down")
	return srv.Close()
}
