package cmdexec_test

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/CZERTAINLY/Prospector/internal/cmdexec"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}

	t.Run("combined output", func(t *testing.T) {
		t.Parallel()
		out, err := cmdexec.Run(t.Context(), cmdexec.Command{
			Path:    sh,
			Args:    []string{"-c", "echo stdout; echo stderr 1>&2"},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		require.Contains(t, out, "stdout")
		require.Contains(t, out, "stderr")
	})

	t.Run("non-zero exit", func(t *testing.T) {
		t.Parallel()
		out, err := cmdexec.Run(t.Context(), cmdexec.Command{
			Path:    sh,
			Args:    []string{"-c", "echo diagnostics; exit 3"},
			Timeout: 5 * time.Second,
		})
		require.Error(t, err)
		var exitErr *cmdexec.ExitError
		require.ErrorAs(t, err, &exitErr)
		require.Equal(t, 3, exitErr.ExitCode)
		require.Contains(t, exitErr.Output, "diagnostics")
		require.Contains(t, out, "diagnostics")
	})

	t.Run("timeout kills the process", func(t *testing.T) {
		t.Parallel()
		start := time.Now()
		_, err := cmdexec.Run(t.Context(), cmdexec.Command{
			Path:    sh,
			Args:    []string{"-c", "sleep 10"},
			Timeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		var exitErr *cmdexec.ExitError
		require.ErrorAs(t, err, &exitErr)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("timeout kills spawned children too", func(t *testing.T) {
		t.Parallel()
		// the background sleep inherits the output pipe; Run must not
		// wait for it after the deadline killed the shell
		start := time.Now()
		_, err := cmdexec.Run(t.Context(), cmdexec.Command{
			Path:    sh,
			Args:    []string{"-c", "sleep 10 & sleep 10"},
			Timeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("missing binary", func(t *testing.T) {
		t.Parallel()
		_, err := cmdexec.Run(t.Context(), cmdexec.Command{
			Path:    "/does/not/exist",
			Timeout: time.Second,
		})
		require.Error(t, err)
		var exitErr *cmdexec.ExitError
		require.ErrorAs(t, err, &exitErr)
		require.Equal(t, -1, exitErr.ExitCode)
	})

	t.Run("working directory", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		out, err := cmdexec.Run(t.Context(), cmdexec.Command{
			Path:    sh,
			Args:    []string{"-c", "pwd"},
			Dir:     dir,
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		require.Contains(t, out, dir)
	})
}

func TestExitErrorTruncatesOutput(t *testing.T) {
	t.Parallel()
	long := make([]byte, 2048)
	for i := range long {
		long[i] = 'x'
	}
	err := &cmdexec.ExitError{
		Path:     "tool",
		ExitCode: 1,
		Output:   string(long),
		Err:      errors.New("exit status 1"),
	}
	require.Less(t, len(err.Error()), 1024)
}
