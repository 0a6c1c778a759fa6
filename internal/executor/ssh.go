package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
)

// sshExitRemoteUnreachable is the exit code the ssh binary reserves for
// its own failures (connection refused, resolution failure, auth).
// Remote commands cannot produce it through normal exit statuses.
const sshExitRemoteUnreachable = 255

// SSH executes commands on a remote host by shelling out to the local
// ssh binary. Authentication, known_hosts and multiplexing are the ssh
// configuration's concern; the target must already be reachable
// non-interactively.
type SSH struct {
	Addr    string   // user@host or host
	Port    int      // optional; 0 uses ssh defaults
	Options []string // extra -o options, e.g. "ConnectTimeout=5"
}

func (s *SSH) Target() string { return s.Addr }

func (s *SSH) args(command string) []string {
	args := make([]string, 0, 6+2*len(s.Options))
	args = append(args, "-o", "BatchMode=yes")
	for _, o := range s.Options {
		args = append(args, "-o", o)
	}
	if s.Port > 0 {
		args = append(args, "-p", strconv.Itoa(s.Port))
	}
	args = append(args, s.Addr, command)
	return args
}

func (s *SSH) Run(ctx context.Context, command string) (Result, error) {
	// #nosec G204 -- the command line is assembled by the supervisor
	cmd := exec.CommandContext(ctx, "ssh", s.args(command)...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	// A deadline-killed ssh exits on a signal, not 255; classify the
	// timeout before inspecting exit codes.
	if ctx.Err() != nil {
		return res, &ConnectionError{Target: s.Addr, Err: ctx.Err()}
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		if res.ExitCode == sshExitRemoteUnreachable {
			return res, &ConnectionError{Target: s.Addr, Err: errors.New(firstLine(res.Stderr))}
		}
		// non-zero exit of the remote command itself
		return res, nil
	}
	// ssh binary missing or not spawnable
	return res, &ConnectionError{Target: s.Addr, Err: err}
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	if s == "" {
		return "ssh exited 255"
	}
	return s
}
