package ports

import "context"

type ProcessSpec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

type ProcessExit struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Process is a started child. Wait must be called exactly once; it returns
// after the child exits and its output streams are drained.
type Process interface {
	PID() int
	Terminate() error
	Kill() error
	Wait() (ProcessExit, error)
}

type ProcessRunner interface {
	Start(ctx context.Context, spec ProcessSpec) (Process, error)
}
