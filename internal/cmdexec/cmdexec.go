// Package cmdexec runs external commands with a bounded lifetime and
// captured combined output. Every pipeline step that shells out (git,
// the language tool, the scanner) goes through Run.
package cmdexec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Command describes one external invocation.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string // nil inherits the process environment
	Timeout time.Duration
}

func (c Command) String() string {
	return c.Path + " " + strings.Join(c.Args, " ")
}

// ExitError is returned when the command exits non-zero, fails to start
// or exceeds its timeout. It carries everything needed for diagnostics.
type ExitError struct {
	Path     string
	Args     []string
	ExitCode int // -1 when the process never ran or was killed
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 512 {
		out = out[:512] + "..."
	}
	return fmt.Sprintf("command %s %s failed (exit %d): %v: %s",
		e.Path, strings.Join(e.Args, " "), e.ExitCode, e.Err, out)
}

func (e *ExitError) Unwrap() error { return e.Err }

// RunFunc is the shape of Run, so callers can hold a replaceable
// reference for tests.
type RunFunc func(ctx context.Context, cmd Command) (string, error)

// Run executes cmd and returns its combined stdout+stderr. A non-zero
// exit, a start failure or an exceeded timeout all yield an *ExitError;
// output is captured in every case. The spawned process is terminated
// when the context or the timeout fires.
func Run(ctx context.Context, cmd Command) (string, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	} else {
		slog.WarnContext(ctx, "command has no timeout", "path", cmd.Path)
	}

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Env != nil {
		c.Env = cmd.Env
	}

	// the command runs in its own process group so that cancellation
	// kills any children it spawned, not just the direct child. Without
	// this a grandchild inheriting the output pipe keeps Run blocked
	// past the deadline.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		err := syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
		if err == syscall.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
	// bound the wait for pipe readers after the kill
	c.WaitDelay = time.Second

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	start := time.Now()
	err := c.Run()
	slog.DebugContext(ctx, "command finished",
		"path", cmd.Path,
		"args", cmd.Args,
		"duration", time.Since(start),
		"error", err,
	)
	if err != nil {
		code := -1
		if c.ProcessState != nil {
			code = c.ProcessState.ExitCode()
		}
		// a fired deadline is reported like any other execution failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return buf.String(), &ExitError{
			Path:     cmd.Path,
			Args:     append([]string(nil), cmd.Args...),
			ExitCode: code,
			Output:   buf.String(),
			Err:      err,
		}
	}
	return buf.String(), nil
}
