package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
	"go.uber.org/zap"
)

const defaultTerminateGrace = 5 * time.Second

type OrchestratorConfig struct {
	// DefaultTimeout applies to launches without WithTimeout. Zero means none.
	DefaultTimeout time.Duration
	TerminateGrace time.Duration
}

type LaunchOption func(*launchOptions)

type launchOptions struct {
	timeout time.Duration
	dir     string
	env     []string
}

func WithTimeout(timeout time.Duration) LaunchOption {
	return func(o *launchOptions) { o.timeout = timeout }
}

func WithDir(dir string) LaunchOption {
	return func(o *launchOptions) { o.dir = dir }
}

func WithEnv(env ...string) LaunchOption {
	return func(o *launchOptions) { o.env = append(o.env, env...) }
}

// TaskHandle is returned by Launch and consumed by Await.
type TaskHandle struct {
	Task domain.TrackedTask

	proc     ports.Process
	done     chan struct{}
	exit     ports.ProcessExit
	waitErr  error
	timedOut bool
	endedAt  time.Time
}

// Done is closed once the child has exited and its output is collected.
func (h *TaskHandle) Done() <-chan struct{} {
	return h.done
}

// ProcessOrchestrator supervises concurrent child processes. Each child has
// one watcher goroutine that collects its exit and untracks it.
type ProcessOrchestrator struct {
	runner ports.ProcessRunner
	cfg    OrchestratorConfig
	clock  ports.Clock
	logger *zap.Logger

	mu    sync.Mutex
	tasks map[string]*TaskHandle
}

func NewProcessOrchestrator(runner ports.ProcessRunner, cfg OrchestratorConfig, clock ports.Clock, logger *zap.Logger) *ProcessOrchestrator {
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = defaultTerminateGrace
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProcessOrchestrator{
		runner: runner,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		tasks:  map[string]*TaskHandle{},
	}
}

func (o *ProcessOrchestrator) Launch(ctx context.Context, name, command string, args []string, opts ...LaunchOption) (*TaskHandle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: task name is required", domain.ErrInvalidState)
	}

	options := launchOptions{timeout: o.cfg.DefaultTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.tasks[name]; exists {
		return nil, fmt.Errorf("%w: task %q is already running", domain.ErrInvalidState, name)
	}

	proc, err := o.runner.Start(ctx, ports.ProcessSpec{
		Command: command,
		Args:    args,
		Dir:     options.dir,
		Env:     options.env,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: start task %q: %w", domain.ErrProcessFailure, name, err)
	}

	startedAt := o.clock.Now()
	handle := &TaskHandle{
		Task: domain.TrackedTask{
			Name:      name,
			Command:   command,
			Args:      slices.Clone(args),
			PID:       proc.PID(),
			StartedAt: startedAt,
		},
		proc: proc,
		done: make(chan struct{}),
	}
	if options.timeout > 0 {
		handle.Task.Deadline = startedAt.Add(options.timeout)
	}

	o.tasks[name] = handle
	go o.watch(handle, options.timeout)

	o.logger.Debug("task launched",
		zap.String("task", name),
		zap.Int("pid", handle.Task.PID),
		zap.Duration("timeout", options.timeout),
	)

	return handle, nil
}

// watch waits for the child, kills it if its deadline passes first, then
// records the exit and removes the task from the tracked set.
func (o *ProcessOrchestrator) watch(handle *TaskHandle, timeout time.Duration) {
	exited := make(chan struct{})
	var (
		exit    ports.ProcessExit
		waitErr error
	)
	go func() {
		exit, waitErr = handle.proc.Wait()
		close(exited)
	}()

	timedOut := false
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		select {
		case <-exited:
		case <-timer.C:
			timedOut = true
			o.logger.Warn("task deadline exceeded, killing", zap.String("task", handle.Task.Name))
			if err := handle.proc.Kill(); err != nil {
				o.logger.Error("kill timed out task failed", zap.String("task", handle.Task.Name), zap.Error(err))
			}
			<-exited
		}
		timer.Stop()
	} else {
		<-exited
	}

	o.mu.Lock()
	handle.exit = exit
	handle.waitErr = waitErr
	handle.timedOut = timedOut
	handle.endedAt = o.clock.Now()
	if o.tasks[handle.Task.Name] == handle {
		delete(o.tasks, handle.Task.Name)
	}
	o.mu.Unlock()

	close(handle.done)
}

// Await blocks until the task exits. A non-zero exit returns the result along
// with ErrProcessFailure; a deadline kill returns ErrTimeoutExceeded.
func (o *ProcessOrchestrator) Await(ctx context.Context, handle *TaskHandle) (domain.TaskResult, error) {
	if handle == nil {
		return domain.TaskResult{}, fmt.Errorf("%w: nil task handle", domain.ErrInvalidState)
	}

	select {
	case <-ctx.Done():
		return domain.TaskResult{}, ctx.Err()
	case <-handle.done:
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	result := domain.TaskResult{
		Name:     handle.Task.Name,
		ExitCode: handle.exit.ExitCode,
		Stdout:   handle.exit.Stdout,
		Stderr:   handle.exit.Stderr,
		Duration: handle.endedAt.Sub(handle.Task.StartedAt),
	}

	switch {
	case handle.timedOut:
		return result, fmt.Errorf("%w: task %q killed after deadline", domain.ErrTimeoutExceeded, handle.Task.Name)
	case handle.waitErr != nil:
		return result, fmt.Errorf("%w: task %q: %w", domain.ErrProcessFailure, handle.Task.Name, handle.waitErr)
	case !result.Succeeded():
		return result, fmt.Errorf("%w: task %q exited with code %d", domain.ErrProcessFailure, handle.Task.Name, result.ExitCode)
	}

	return result, nil
}

func (o *ProcessOrchestrator) Run(ctx context.Context, name, command string, args []string, opts ...LaunchOption) (domain.TaskResult, error) {
	handle, err := o.Launch(ctx, name, command, args, opts...)
	if err != nil {
		return domain.TaskResult{}, err
	}
	return o.Await(ctx, handle)
}

// Tracked returns the live tasks ordered by start time.
func (o *ProcessOrchestrator) Tracked() []domain.TrackedTask {
	o.mu.Lock()
	defer o.mu.Unlock()

	tasks := make([]domain.TrackedTask, 0, len(o.tasks))
	for _, handle := range o.tasks {
		tasks = append(tasks, handle.Task)
	}
	slices.SortFunc(tasks, func(a, b domain.TrackedTask) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	return tasks
}

// TerminateAll asks every live task to stop, escalates to kill after the
// grace period and keeps going past individual failures. Each failure is
// logged where it happens. The returned error joins them for reporting only:
// every task has already been attempted and callers are not expected to act
// on it beyond logging.
func (o *ProcessOrchestrator) TerminateAll(ctx context.Context) error {
	o.mu.Lock()
	handles := make([]*TaskHandle, 0, len(o.tasks))
	for _, handle := range o.tasks {
		handles = append(handles, handle)
	}
	o.mu.Unlock()

	if len(handles) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, handle := range handles {
		wg.Add(1)
		go func(handle *TaskHandle) {
			defer wg.Done()
			if err := o.terminate(ctx, handle); err != nil {
				o.logger.Error("terminate task failed", zap.String("task", handle.Task.Name), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(handle)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (o *ProcessOrchestrator) terminate(ctx context.Context, handle *TaskHandle) error {
	name := handle.Task.Name

	if err := handle.proc.Terminate(); err != nil {
		o.logger.Warn("terminate signal failed", zap.String("task", name), zap.Error(err))
	}

	grace := time.NewTimer(o.cfg.TerminateGrace)
	defer grace.Stop()

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
	case <-grace.C:
	}

	o.logger.Warn("task ignored terminate, killing", zap.String("task", name))
	if err := handle.proc.Kill(); err != nil {
		return fmt.Errorf("kill task %q: %w", name, err)
	}

	select {
	case <-handle.done:
		return nil
	case <-time.After(o.cfg.TerminateGrace):
		return fmt.Errorf("%w: task %q still running after kill", domain.ErrProcessFailure, name)
	}
}
