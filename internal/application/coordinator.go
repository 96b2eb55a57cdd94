package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	backupTimeout        = 60 * time.Second
	backupSummaryRunes   = 50
	shutdownAccomplished = "AI Assistant shutdown"
	shutdownNextSteps    = "Resume task on next startup"

	DefaultMaxParallelTasks = 4
)

type CoordinatorDeps struct {
	Recaps       *RecapStore
	Service      *ServiceController
	Orchestrator *ProcessOrchestrator
	VCS          ports.VCS
	Tasks        ports.ActiveTaskRepository
	Clock        ports.Clock
	Logger       *zap.Logger
	WorkingDir   string
	// MaxParallel bounds how many RunTasks children run at once. Zero uses
	// DefaultMaxParallelTasks.
	MaxParallel int
	// NewID mints session ids. Nil uses UUIDv7.
	NewID func() (domain.SessionID, error)
}

// SessionCoordinator is the entry point used by the CLI. It ties the recap,
// the service lifecycle and the child processes together.
type SessionCoordinator struct {
	recaps       *RecapStore
	service      *ServiceController
	orchestrator *ProcessOrchestrator
	vcs          ports.VCS
	tasks        ports.ActiveTaskRepository
	clock        ports.Clock
	logger       *zap.Logger
	workingDir   string
	maxParallel  int
	newID        func() (domain.SessionID, error)
}

func NewSessionCoordinator(deps CoordinatorDeps) *SessionCoordinator {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.NewID == nil {
		deps.NewID = newSessionID
	}
	if deps.MaxParallel <= 0 {
		deps.MaxParallel = DefaultMaxParallelTasks
	}

	return &SessionCoordinator{
		recaps:       deps.Recaps,
		service:      deps.Service,
		orchestrator: deps.Orchestrator,
		vcs:          deps.VCS,
		tasks:        deps.Tasks,
		clock:        deps.Clock,
		logger:       deps.Logger,
		workingDir:   deps.WorkingDir,
		maxParallel:  deps.MaxParallel,
		newID:        deps.NewID,
	}
}

func newSessionID() (domain.SessionID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return domain.SessionID(id.String()), nil
}

type SessionStart struct {
	Context  domain.StartContext
	Recap    domain.CumulativeRecap
	Briefing string
	// ServiceErr is set when the service could not be started. The context is
	// still valid.
	ServiceErr error
}

func (c *SessionCoordinator) StartSession(ctx context.Context) (SessionStart, error) {
	recap := c.recaps.Load(ctx)
	start := SessionStart{
		Context:  domain.NewStartContext(recap),
		Recap:    recap,
		Briefing: c.recaps.RenderStartContext(recap),
	}

	if c.service != nil && !c.service.IsRunning(ctx) {
		if err := c.service.Start(ctx); err != nil {
			c.logger.Warn("service did not start with session", zap.Error(err))
			start.ServiceErr = err
		}
	}

	return start, nil
}

func (c *SessionCoordinator) SetTask(ctx context.Context, description string, replace bool) (domain.ActiveTask, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.ActiveTask{}, fmt.Errorf("%w: task description is required", domain.ErrInvalidState)
	}

	unlock, err := c.recaps.lock(ctx)
	if err != nil {
		return domain.ActiveTask{}, err
	}
	defer unlock()

	current, err := c.tasks.Get(ctx)
	if err != nil {
		return domain.ActiveTask{}, fmt.Errorf("get active task: %w", err)
	}
	if !current.IsZero() && !replace {
		return domain.ActiveTask{}, fmt.Errorf("%w: task %q is already active", domain.ErrInvalidState, current.Description)
	}

	task := domain.ActiveTask{Description: description, StartedAt: c.clock.Now()}
	if err := c.tasks.Save(ctx, task); err != nil {
		return domain.ActiveTask{}, fmt.Errorf("save active task: %w", err)
	}

	if !current.IsZero() {
		c.logger.Info("active task replaced", zap.String("previous", current.Description), zap.String("task", description))
	}

	return task, nil
}

func (c *SessionCoordinator) ActiveTask(ctx context.Context) (domain.ActiveTask, error) {
	task, err := c.tasks.Get(ctx)
	if err != nil {
		return domain.ActiveTask{}, fmt.Errorf("get active task: %w", err)
	}
	return task, nil
}

type CompletedTask struct {
	Report domain.SessionReport
	Recap  domain.CumulativeRecap
	Backup string
}

// CompleteTask records the active task as a finished session. Reading the
// task, merging and clearing it happen under the state lock so two callers
// cannot complete the same task. Backup runs last and its failure does not
// fail the completion.
func (c *SessionCoordinator) CompleteTask(ctx context.Context, accomplishments, nextSteps string) (CompletedTask, error) {
	unlock, err := c.recaps.lock(ctx)
	if err != nil {
		return CompletedTask{}, err
	}
	completed, err := c.completeTaskLocked(ctx, accomplishments, nextSteps)
	unlock()
	if err != nil {
		return CompletedTask{}, err
	}

	completed.Backup = c.backup(ctx, accomplishments)
	return completed, nil
}

func (c *SessionCoordinator) completeTaskLocked(ctx context.Context, accomplishments, nextSteps string) (CompletedTask, error) {
	task, err := c.tasks.Get(ctx)
	if err != nil {
		return CompletedTask{}, fmt.Errorf("get active task: %w", err)
	}
	if task.IsZero() {
		return CompletedTask{}, domain.ErrNoActiveTask
	}

	now := c.clock.Now()
	report, err := c.buildReport(ctx, task.StartedAt, now, SessionNotes{
		Accomplishments: accomplishments,
		CurrentState:    "Completed task: " + task.Description,
		NextSteps:       nextSteps,
		Notes:           "Task completed at " + now.Format(time.RFC3339),
	})
	if err != nil {
		return CompletedTask{}, err
	}

	recap, err := c.recaps.mergeLocked(ctx, report)
	if err != nil {
		return CompletedTask{}, fmt.Errorf("merge completed task: %w", err)
	}

	if err := c.tasks.Clear(ctx); err != nil {
		return CompletedTask{}, fmt.Errorf("clear active task: %w", err)
	}

	return CompletedTask{Report: report, Recap: recap}, nil
}

// SessionNotes is the free-text report an operator writes when finishing a
// session.
type SessionNotes struct {
	Accomplishments string
	CurrentState    string
	NextSteps       string
	Notes           string
}

type FinishedSession struct {
	Report domain.SessionReport
	Recap  domain.CumulativeRecap
	Backup string
	// RestartErr is set when the post-session restart failed. The session is
	// recorded regardless.
	RestartErr error
}

// FinishSession records a full session report, backs up the working tree and
// restarts the service to reclaim its memory.
func (c *SessionCoordinator) FinishSession(ctx context.Context, notes SessionNotes) (FinishedSession, error) {
	now := c.clock.Now()

	startedAt := now
	if task, err := c.tasks.Get(ctx); err == nil && !task.IsZero() {
		startedAt = task.StartedAt
	}

	report, err := c.buildReport(ctx, startedAt, now, notes)
	if err != nil {
		return FinishedSession{}, err
	}

	recap, err := c.recaps.Merge(ctx, report)
	if err != nil {
		return FinishedSession{}, fmt.Errorf("merge session: %w", err)
	}

	finished := FinishedSession{
		Report: report,
		Recap:  recap,
		Backup: c.backup(ctx, notes.Accomplishments),
	}

	if c.service != nil {
		if err := c.service.Restart(ctx); err != nil {
			c.logger.Warn("service restart after session failed", zap.Error(err))
			finished.RestartErr = err
		}
	}

	return finished, nil
}

func (c *SessionCoordinator) Consult(ctx context.Context, prompt string, timeout time.Duration) (domain.ConsultResult, error) {
	if c.service == nil {
		return domain.ConsultResult{}, fmt.Errorf("%w: no service configured", domain.ErrServiceUnavailable)
	}
	return c.service.Consult(ctx, prompt, timeout)
}

type TaskSpec struct {
	Name    string        `yaml:"name"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Dir     string        `yaml:"dir"`
	Env     []string      `yaml:"env"`
	Timeout time.Duration `yaml:"timeout"`
}

type TaskOutcome struct {
	Name   string
	Result domain.TaskResult
	Err    error
}

// RunTasks runs the specs concurrently, at most maxParallel at a time, and
// waits for all of them. One failing task does not cancel the others.
// Outcomes keep the order of specs.
func (c *SessionCoordinator) RunTasks(ctx context.Context, specs []TaskSpec) []TaskOutcome {
	outcomes := make([]TaskOutcome, len(specs))

	var g errgroup.Group
	g.SetLimit(c.maxParallel)
	for i, spec := range specs {
		g.Go(func() error {
			opts := []LaunchOption{WithDir(spec.Dir), WithEnv(spec.Env...)}
			if spec.Timeout > 0 {
				opts = append(opts, WithTimeout(spec.Timeout))
			}

			result, err := c.orchestrator.Run(ctx, spec.Name, spec.Command, spec.Args, opts...)
			outcomes[i] = TaskOutcome{Name: spec.Name, Result: result, Err: err}
			if err != nil {
				c.logger.Warn("task failed", zap.String("task", spec.Name), zap.Error(err))
			}
			return nil
		})
	}
	// Failures live in outcomes; no goroutine returns an error.
	_ = g.Wait()

	return outcomes
}

type Status struct {
	Task          domain.ActiveTask
	ServiceName   string
	Service       domain.ServiceState
	Tracked       []domain.TrackedTask
	TotalSessions int
	LastUpdated   time.Time
	CurrentState  string
}

func (c *SessionCoordinator) Status(ctx context.Context) (Status, error) {
	task, err := c.tasks.Get(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("get active task: %w", err)
	}

	recap := c.recaps.Load(ctx)
	status := Status{
		Task:          task,
		Service:       domain.ServiceUnknown,
		TotalSessions: recap.TotalSessions,
		LastUpdated:   recap.LastUpdated,
		CurrentState:  recap.CurrentState.Summary,
	}
	if c.service != nil {
		c.service.IsRunning(ctx)
		status.ServiceName = c.service.Name()
		status.Service = c.service.State()
	}
	if c.orchestrator != nil {
		status.Tracked = c.orchestrator.Tracked()
	}

	return status, nil
}

// Shutdown stops every child process and, when a task is still active, records
// it so the next session can resume it.
func (c *SessionCoordinator) Shutdown(ctx context.Context) error {
	var errs []error

	if c.orchestrator != nil {
		if err := c.orchestrator.TerminateAll(ctx); err != nil {
			c.logger.Error("terminate child tasks during shutdown", zap.Error(err))
		}
	}

	task, err := c.tasks.Get(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("get active task: %w", err))
	} else if !task.IsZero() {
		if _, err := c.CompleteTask(ctx, shutdownAccomplished, shutdownNextSteps); err != nil {
			errs = append(errs, fmt.Errorf("record active task at shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (c *SessionCoordinator) buildReport(ctx context.Context, startedAt, endedAt time.Time, notes SessionNotes) (domain.SessionReport, error) {
	id, err := c.newID()
	if err != nil {
		return domain.SessionReport{}, err
	}

	report := domain.SessionReport{
		ID:               id,
		StartTime:        startedAt,
		EndTime:          endedAt,
		WorkingDirectory: c.workingDir,
		Accomplishments:  notes.Accomplishments,
		CurrentState:     notes.CurrentState,
		NextSteps:        notes.NextSteps,
		Notes:            notes.Notes,
	}

	if c.vcs != nil {
		vcsStatus, err := c.vcs.Status(ctx)
		if err != nil {
			c.logger.Warn("vcs status unavailable", zap.Error(err))
			vcsStatus = domain.VCSStatus{Summary: "unavailable: " + err.Error()}
		}
		report.VCS = vcsStatus
	}

	if c.service != nil {
		running := c.service.IsRunning(ctx)
		report.Service = domain.ServiceStatus{
			Running: running,
			Summary: fmt.Sprintf("%s is %s", c.service.Name(), c.service.State().Label()),
		}
	}

	return report, nil
}

func (c *SessionCoordinator) backup(ctx context.Context, accomplishments string) string {
	if c.vcs == nil {
		return ""
	}

	backupCtx, cancel := context.WithTimeout(ctx, backupTimeout)
	defer cancel()

	message, err := c.vcs.Backup(backupCtx, truncateRunes(strings.TrimSpace(accomplishments), backupSummaryRunes))
	if err != nil {
		c.logger.Warn("backup failed", zap.Error(err))
		return "Backup failed: " + err.Error()
	}

	return message
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
