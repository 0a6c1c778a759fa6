package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanmar/deployr/internal/env"
	"github.com/evanmar/deployr/internal/executor"
)

// Tmux hosts detached sessions through the tmux binary on the
// execution target.
type Tmux struct {
	Exec executor.Executor
}

func NewTmux(e executor.Executor) *Tmux { return &Tmux{Exec: e} }

func (t *Tmux) Available(ctx context.Context) (bool, error) {
	res, err := t.Exec.Run(ctx, "command -v tmux >/dev/null 2>&1")
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

func (t *Tmux) Has(ctx context.Context, name string) (bool, error) {
	res, err := t.Exec.Run(ctx, fmt.Sprintf("tmux has-session -t %s 2>/dev/null", env.Quote(name)))
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

func (t *Tmux) StartDetached(ctx context.Context, name, command, workdir string) error {
	var b strings.Builder
	b.WriteString("tmux new-session -d -s ")
	b.WriteString(env.Quote(name))
	if workdir != "" {
		b.WriteString(" -c ")
		b.WriteString(env.Quote(workdir))
	}
	b.WriteString(" ")
	b.WriteString(env.Quote(command))
	res, err := t.Exec.Run(ctx, b.String())
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("tmux new-session %s failed (exit %d): %s", name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (t *Tmux) Kill(ctx context.Context, name string) error {
	// kill-session exits non-zero when the session does not exist;
	// absence is a normal outcome here.
	_, err := t.Exec.Run(ctx, fmt.Sprintf("tmux kill-session -t %s 2>/dev/null || true", env.Quote(name)))
	return err
}
