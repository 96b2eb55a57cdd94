package domain

import "time"

// TrackedTask describes one child process under supervision.
type TrackedTask struct {
	Name      string
	Command   string
	Args      []string
	PID       int
	StartedAt time.Time
	Deadline  time.Time
}

func (t TrackedTask) HasDeadline() bool {
	return !t.Deadline.IsZero()
}

func (t TrackedTask) Expired(now time.Time) bool {
	return t.HasDeadline() && !now.Before(t.Deadline)
}

type TaskResult struct {
	Name     string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

func (r TaskResult) Succeeded() bool {
	return r.ExitCode == 0
}

// ActiveTask is the unit of work the operator is currently on.
type ActiveTask struct {
	Description string
	StartedAt   time.Time
}

func (t ActiveTask) IsZero() bool {
	return t.Description == ""
}
