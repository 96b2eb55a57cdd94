package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/bnema/assistant-continuity/internal/ports"
	"go.uber.org/zap"
)

const (
	defaultProbeTimeout  = 5 * time.Second
	defaultStartSettle   = 3 * time.Second
	defaultStopSettle    = 2 * time.Second
	defaultRestartSettle = 3 * time.Second
)

type ServiceControllerConfig struct {
	Name          string
	ProbeTimeout  time.Duration
	StartSettle   time.Duration
	StopSettle    time.Duration
	RestartSettle time.Duration
	// Sleep waits out a settle interval. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c ServiceControllerConfig) withDefaults() ServiceControllerConfig {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.StartSettle <= 0 {
		c.StartSettle = defaultStartSettle
	}
	if c.StopSettle <= 0 {
		c.StopSettle = defaultStopSettle
	}
	if c.RestartSettle <= 0 {
		c.RestartSettle = defaultRestartSettle
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	return c
}

type ServiceStatusReport struct {
	Name   string
	State  domain.ServiceState
	Detail string
}

// ServiceController drives one supervised service through start, stop and
// restart. Only one directive sequence runs at a time.
type ServiceController struct {
	supervisor ports.ServiceSupervisor
	consultant ports.Consultant
	cfg        ServiceControllerConfig
	logger     *zap.Logger

	mu        sync.Mutex
	consultMu sync.Mutex

	stateMu sync.RWMutex
	state   domain.ServiceState
}

func NewServiceController(supervisor ports.ServiceSupervisor, consultant ports.Consultant, cfg ServiceControllerConfig, logger *zap.Logger) *ServiceController {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ServiceController{
		supervisor: supervisor,
		consultant: consultant,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(zap.String("service", cfg.Name)),
		state:      domain.ServiceUnknown,
	}
}

func (c *ServiceController) Name() string {
	return c.cfg.Name
}

// State is the last observed state; it does not probe.
func (c *ServiceController) State() domain.ServiceState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *ServiceController) setState(state domain.ServiceState) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}

// IsRunning probes once. A probe failure counts as not running.
func (c *ServiceController) IsRunning(ctx context.Context) bool {
	state, err := c.probe(ctx)
	if err != nil {
		c.logger.Debug("service probe failed", zap.Error(err))
		return false
	}
	return state == domain.ServiceRunning
}

func (c *ServiceController) Status(ctx context.Context) (ServiceStatusReport, error) {
	state, probeErr := c.probe(ctx)

	detail, err := c.supervisor.Describe(ctx, c.cfg.Name)
	if err != nil {
		return ServiceStatusReport{Name: c.cfg.Name, State: state}, fmt.Errorf("describe service: %w", errors.Join(err, probeErr))
	}

	return ServiceStatusReport{Name: c.cfg.Name, State: state, Detail: strings.TrimSpace(detail)}, probeErr
}

func (c *ServiceController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start(ctx)
}

func (c *ServiceController) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop(ctx)
}

func (c *ServiceController) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(domain.ServiceStarting)
	return c.transition(ctx, domain.DirectiveRestart, c.cfg.RestartSettle, domain.ServiceRunning)
}

// Consult starts the service, runs one consultation bounded by timeout and
// stops the service again on every exit path.
func (c *ServiceController) Consult(ctx context.Context, task string, timeout time.Duration) (result domain.ConsultResult, err error) {
	c.consultMu.Lock()
	defer c.consultMu.Unlock()

	if err := c.Start(ctx); err != nil {
		return domain.ConsultResult{}, fmt.Errorf("start service for consultation: %w", err)
	}

	defer func() {
		// The consultation deadline must not cancel the stop.
		stopCtx := context.WithoutCancel(ctx)
		if stopErr := c.Stop(stopCtx); stopErr != nil {
			c.logger.Warn("stop service after consultation failed", zap.Error(stopErr))
			err = errors.Join(err, fmt.Errorf("stop service after consultation: %w", stopErr))
		}
	}()

	consultCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		consultCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err = c.consultant.Consult(consultCtx, task)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(consultCtx.Err(), context.DeadlineExceeded) {
			return domain.ConsultResult{}, fmt.Errorf("%w: consultation exceeded %s", domain.ErrTimeoutExceeded, timeout)
		}
		return domain.ConsultResult{}, fmt.Errorf("consult: %w", err)
	}

	return result, nil
}

func (c *ServiceController) start(ctx context.Context) error {
	if c.IsRunning(ctx) {
		return nil
	}

	c.setState(domain.ServiceStarting)
	return c.transition(ctx, domain.DirectiveStart, c.cfg.StartSettle, domain.ServiceRunning)
}

func (c *ServiceController) stop(ctx context.Context) error {
	state, err := c.probe(ctx)
	if err == nil && state == domain.ServiceStopped {
		return nil
	}

	c.setState(domain.ServiceStopping)
	return c.transition(ctx, domain.DirectiveStop, c.cfg.StopSettle, domain.ServiceStopped)
}

// transition issues one directive, waits for it to settle and verifies the
// outcome with a fresh probe.
func (c *ServiceController) transition(ctx context.Context, directive domain.Directive, settle time.Duration, want domain.ServiceState) error {
	c.logger.Debug("issuing service directive", zap.String("directive", string(directive)))

	if err := c.supervisor.Issue(ctx, c.cfg.Name, directive); err != nil {
		c.setState(domain.ServiceUnknown)
		return fmt.Errorf("%w: %s %s: %w", domain.ErrServiceUnavailable, directive, c.cfg.Name, err)
	}

	if err := c.cfg.Sleep(ctx, settle); err != nil {
		c.setState(domain.ServiceUnknown)
		return fmt.Errorf("%w: %s %s interrupted: %w", domain.ErrServiceUnavailable, directive, c.cfg.Name, err)
	}

	state, err := c.probe(ctx)
	if err != nil {
		return fmt.Errorf("%w: verify %s %s: %w", domain.ErrServiceUnavailable, directive, c.cfg.Name, err)
	}
	if state != want {
		return fmt.Errorf("%w: %s %s left service %s", domain.ErrServiceUnavailable, directive, c.cfg.Name, state.Label())
	}

	c.logger.Info("service directive verified", zap.String("directive", string(directive)), zap.String("state", state.Label()))
	return nil
}

func (c *ServiceController) probe(ctx context.Context) (domain.ServiceState, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	result, err := c.supervisor.Probe(probeCtx, c.cfg.Name)
	if err != nil {
		c.setState(domain.ServiceUnknown)
		return domain.ServiceUnknown, err
	}

	c.setState(result.State)
	return result.State, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
