//go:build !windows

package exec

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/assistant-continuity/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCapturesOutputAndExitCode(t *testing.T) {
	t.Parallel()

	proc, err := NewRunner().Start(context.Background(), ports.ProcessSpec{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err >&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Positive(t, proc.PID())

	exit, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, exit.ExitCode)
	assert.Equal(t, "out\n", exit.Stdout)
	assert.Equal(t, "err\n", exit.Stderr)
}

func TestStartAppliesEnvAndDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	proc, err := NewRunner("AC_BASE=1").Start(context.Background(), ports.ProcessSpec{
		Command: "sh",
		Args:    []string{"-c", `printf '%s %s' "$AC_BASE$AC_EXTRA" "$(pwd)"`},
		Dir:     dir,
		Env:     []string{"AC_EXTRA=2"},
	})
	require.NoError(t, err)

	exit, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, exit.ExitCode)
	assert.Contains(t, exit.Stdout, "12 ")
}

func TestTerminateStopsProcessGroup(t *testing.T) {
	t.Parallel()

	proc, err := NewRunner().Start(context.Background(), ports.ProcessSpec{
		Command: "sh",
		Args:    []string{"-c", "sleep 30 & wait"},
	})
	require.NoError(t, err)

	require.NoError(t, proc.Terminate())

	done := make(chan ports.ProcessExit, 1)
	go func() {
		exit, _ := proc.Wait()
		done <- exit
	}()

	select {
	case exit := <-done:
		assert.NotEqual(t, 0, exit.ExitCode)
	case <-time.After(5 * time.Second):
		_ = proc.Kill()
		t.Fatal("process did not exit after terminate")
	}
}

func TestKillAfterExitIsNoop(t *testing.T) {
	t.Parallel()

	proc, err := NewRunner().Start(context.Background(), ports.ProcessSpec{Command: "true"})
	require.NoError(t, err)

	_, err = proc.Wait()
	require.NoError(t, err)
	assert.NoError(t, proc.Kill())
}

func TestStartRejectsMissingCommand(t *testing.T) {
	t.Parallel()

	_, err := NewRunner().Start(context.Background(), ports.ProcessSpec{Command: "/nonexistent/binary"})
	require.Error(t, err)

	_, err = NewRunner().Start(context.Background(), ports.ProcessSpec{Command: " "})
	assert.ErrorContains(t, err, "command is required")
}

func TestStartHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner().Start(ctx, ports.ProcessSpec{Command: "true"})
	assert.ErrorIs(t, err, context.Canceled)
}
