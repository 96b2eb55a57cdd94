// Package exec starts child processes in their own process group so that
// terminate and kill reach every descendant.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
	"sync"

	"github.com/bnema/assistant-continuity/internal/ports"
)

type Runner struct {
	env []string
}

var _ ports.ProcessRunner = (*Runner)(nil)

// NewRunner returns a runner whose children inherit the current environment
// plus extraEnv.
func NewRunner(extraEnv ...string) *Runner {
	return &Runner{env: extraEnv}
}

// Start does not tie the child to ctx. Lifetime is owned by the caller through
// Terminate and Kill.
func (r *Runner) Start(ctx context.Context, spec ports.ProcessSpec) (ports.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Command) == "" {
		return nil, errors.New("command is required")
	}

	cmd := osexec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(r.env) > 0 || len(spec.Env) > 0 {
		cmd.Env = append(append(os.Environ(), r.env...), spec.Env...)
	}
	setProcessGroup(cmd)

	proc := &process{cmd: cmd}
	cmd.Stdout = &proc.stdout
	cmd.Stderr = &proc.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}

	return proc, nil
}

type process struct {
	cmd    *osexec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer

	waitOnce sync.Once
	exit     ports.ProcessExit
	waitErr  error
}

func (p *process) PID() int {
	return p.cmd.Process.Pid
}

func (p *process) Terminate() error {
	return signalGroup(p.cmd.Process, terminateSignal)
}

func (p *process) Kill() error {
	return signalGroup(p.cmd.Process, killSignal)
}

// Wait reports a non-zero exit through ExitCode, not through the error. The
// error is set only when the child could not be waited on.
func (p *process) Wait() (ports.ProcessExit, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		p.exit = ports.ProcessExit{
			ExitCode: p.cmd.ProcessState.ExitCode(),
			Stdout:   p.stdout.String(),
			Stderr:   p.stderr.String(),
		}

		var exitErr *osexec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.waitErr = fmt.Errorf("wait for pid %d: %w", p.PID(), err)
		}
	})

	return p.exit, p.waitErr
}

func isProcessDone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
