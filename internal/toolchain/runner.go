package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Command is one process to run.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Stdin   string
	Timeout time.Duration
}

// Result is what a finished (or killed) process produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	// Truncated is set when either stream exceeded MaxOutputBytes.
	Truncated bool
	Elapsed   time.Duration
}

// waitDelay bounds how long output is drained after the process exits.
const waitDelay = 250 * time.Millisecond

// MaxOutputBytes caps how much of each output stream is kept.
const MaxOutputBytes = 64 << 10

// cappedBuffer keeps the first limit bytes written to it and discards the
// rest, so a child that prints forever still has its pipe drained.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

// Runner starts processes. An error means the process could not be run at
// all; a non-zero exit is reported through Result.ExitCode.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands as subprocesses. A timed-out process is killed
// along with its process group.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// Run executes cmd and waits for it, up to cmd.Timeout if set.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdin = strings.NewReader(cmd.Stdin)
	stdout := &cappedBuffer{limit: MaxOutputBytes}
	stderr := &cappedBuffer{limit: MaxOutputBytes}
	c.Stdout = stdout
	c.Stderr = stderr
	isolate(c)
	// Children that inherited the pipes must not keep Wait blocked.
	c.WaitDelay = waitDelay

	start := time.Now()
	err := c.Run()
	reap(c)
	res := Result{
		Stdout:    stdout.buf.String(),
		Stderr:    stderr.buf.String(),
		Truncated: stdout.truncated || stderr.truncated,
		Elapsed:   time.Since(start),
	}

	// The process itself finished; only a leftover child held the pipes.
	if errors.Is(err, exec.ErrWaitDelay) {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			res.TimedOut = true
			res.ExitCode = -1
			return res, nil
		}
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, err
	}
}
