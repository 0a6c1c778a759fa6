package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultMessage is used when the caller supplies no commit message.
const DefaultMessage = "fix: deploy"

// Publisher commits and pushes a local working tree before the remote
// side pulls it. git itself stays an external tool; this wrapper only
// sequences the three calls and classifies their failures.
type Publisher struct {
	Dir string // repository directory
}

// Publish stages everything, commits with message (a clean tree is not
// an error) and pushes. Any git failure aborts with the command's
// stderr attached.
func (p *Publisher) Publish(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	if err := p.run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return fmt.Errorf("%s is not a git repository: %w", p.Dir, err)
	}
	if err := p.run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	if err := p.run(ctx, "commit", "-m", message); err != nil {
		// nothing staged is a normal state before a redeploy
		if errors.Is(err, errNothingToCommit) {
			return p.push(ctx)
		}
		return fmt.Errorf("git commit failed: %w", err)
	}
	return p.push(ctx)
}

func (p *Publisher) push(ctx context.Context) error {
	if err := p.run(ctx, "push"); err != nil {
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}

var errNothingToCommit = errors.New("nothing to commit")

func (p *Publisher) run(ctx context.Context, args ...string) error {
	// #nosec G204 -- fixed git subcommands, only message/dir vary
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		text := out.String()
		if strings.Contains(text, "nothing to commit") {
			return errNothingToCommit
		}
		return fmt.Errorf("%v: %s", err, strings.TrimSpace(text))
	}
	return nil
}
