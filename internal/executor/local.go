package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// waitDelay bounds cmd.Wait after the context is done, so a forked
// child keeping the output pipes open cannot block past the deadline.
const waitDelay = time.Second

// Local executes commands on the invoking host through /bin/sh. Used
// for same-host deploys and as the baseline implementation in tests.
type Local struct{}

func (Local) Target() string { return "local" }

func (Local) Run(ctx context.Context, command string) (Result, error) {
	// #nosec G204 -- intentional shell execution of an operator-supplied command
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	// A deadline kill surfaces as a signal-terminated ExitError, so the
	// context check must come first.
	if ctx.Err() != nil {
		return res, &ConnectionError{Target: "local", Err: ctx.Err()}
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, nil
	}
	return res, &ConnectionError{Target: "local", Err: err}
}
